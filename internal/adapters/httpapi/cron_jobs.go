package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

type createCronJobRequest struct {
	Description    string                `json:"description"`
	FlowName       string                `json:"flow_name"`
	FlowRunnerArgs domain.FlowRunnerArgs `json:"flow_runner_args"`
	FlowArgs       json.RawMessage       `json:"flow_args"`
	Periodicity    domain.Duration       `json:"periodicity"`
	Lifetime       domain.Duration       `json:"lifetime"`
	AllowOverruns  bool                  `json:"allow_overruns"`
}

type cronJobResponse struct {
	URN            string                `json:"urn"`
	ID             string                `json:"id"`
	Description    string                `json:"description"`
	FlowName       string                `json:"flow_name"`
	FlowRunnerArgs domain.FlowRunnerArgs `json:"flow_runner_args"`
	FlowArgs       json.RawMessage       `json:"flow_args,omitempty"`
	Periodicity    domain.Duration       `json:"periodicity"`
	Lifetime       domain.Duration       `json:"lifetime"`
	AllowOverruns  bool                  `json:"allow_overruns"`
	State          string                `json:"state"`
	LastRunTime    string                `json:"last_run_time,omitempty"`
	IsFailing      bool                  `json:"is_failing"`
}

func (h *Handler) listCronJobs(w http.ResponseWriter, r *http.Request) {
	offset, ok := h.queryCount(w, r, "offset")
	if !ok {
		return
	}
	count, ok := h.queryCount(w, r, "count")
	if !ok {
		return
	}

	page, err := h.cronService.List(r.Context(), offset, count)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	items := make([]cronJobResponse, 0, len(page.Items))
	for _, job := range page.Items {
		items = append(items, toCronJobResponse(job))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"offset": page.Offset,
		"count":  page.Count,
		"items":  items,
	})
}

func (h *Handler) getCronJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.cronService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCronJobResponse(job))
}

func (h *Handler) createCronJob(w http.ResponseWriter, r *http.Request) {
	var req createCronJobRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	job, err := h.cronService.Create(r.Context(), domain.CronJobSpec{
		Description:    req.Description,
		FlowName:       req.FlowName,
		FlowRunnerArgs: req.FlowRunnerArgs,
		FlowArgs:       req.FlowArgs,
		Periodicity:    req.Periodicity,
		Lifetime:       req.Lifetime,
		AllowOverruns:  req.AllowOverruns,
	}, actorFromContext(r.Context()))
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toCronJobResponse(job))
}

func toCronJobResponse(job domain.CronJobSummary) cronJobResponse {
	resp := cronJobResponse{
		URN:            job.URN,
		ID:             job.ID,
		Description:    job.Description,
		FlowName:       job.FlowName,
		FlowRunnerArgs: job.FlowRunnerArgs,
		FlowArgs:       job.FlowArgs,
		Periodicity:    job.Periodicity,
		Lifetime:       job.Lifetime,
		AllowOverruns:  job.AllowOverruns,
		State:          string(job.State),
		IsFailing:      job.IsFailing,
	}
	if job.LastRunTime != nil {
		resp.LastRunTime = job.LastRunTime.UTC().Format(timeFormat)
	}
	return resp
}
