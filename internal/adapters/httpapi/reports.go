package httpapi

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

type descriptorResponse struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind"`
}

type pieSliceResponse struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

type seriesResponse struct {
	Label string   `json:"label"`
	Data  [][2]int `json:"data"`
}

type tableResponse struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type reportResponse struct {
	descriptorResponse
	Start       string             `json:"start"`
	End         string             `json:"end"`
	GeneratedAt string             `json:"generated_at"`
	NoData      bool               `json:"no_data"`
	Pie         []pieSliceResponse `json:"pie,omitempty"`
	Series      []seriesResponse   `json:"series,omitempty"`
	Table       *tableResponse     `json:"table,omitempty"`
}

func (h *Handler) listReports(w http.ResponseWriter, _ *http.Request) {
	descs := h.reportService.Descriptors()
	items := make([]descriptorResponse, 0, len(descs))
	for _, d := range descs {
		items = append(items, toDescriptorResponse(d))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.runReport(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, toReportResponse(report))
}

func (h *Handler) getReportPage(w http.ResponseWriter, r *http.Request) {
	report, ok := h.runReport(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.pages.Render(&buf, report); err != nil {
		h.handleDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("write report page", zap.String("report", report.Descriptor.Name), zap.Error(err))
	}
}

func (h *Handler) runReport(w http.ResponseWriter, r *http.Request) (domain.Report, bool) {
	var at time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("at")); raw != "" {
		parsed, err := dateparse.ParseIn(raw, time.UTC)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "at must be a date or time")
			return domain.Report{}, false
		}
		at = parsed
	}

	report, err := h.reportService.Run(r.Context(), chi.URLParam(r, "name"), at)
	if err != nil {
		h.handleDomainError(w, err)
		return domain.Report{}, false
	}
	return report, true
}

func toDescriptorResponse(d domain.ReportDescriptor) descriptorResponse {
	return descriptorResponse{
		Name:        d.Name,
		Category:    d.Category,
		Title:       d.Title,
		Description: d.Description,
		Kind:        string(d.Kind),
	}
}

func toReportResponse(report domain.Report) reportResponse {
	resp := reportResponse{
		descriptorResponse: toDescriptorResponse(report.Descriptor),
		Start:              report.Range.Start.UTC().Format(timeFormat),
		End:                report.Range.End.UTC().Format(timeFormat),
		GeneratedAt:        report.GeneratedAt.UTC().Format(timeFormat),
		NoData:             report.NoData,
	}
	for _, s := range report.Pie {
		resp.Pie = append(resp.Pie, pieSliceResponse{Label: s.Label, Value: s.Value})
	}
	for _, s := range report.Series {
		data := make([][2]int, 0, len(s.Data))
		for _, p := range s.Data {
			data = append(data, [2]int{p.X, p.Y})
		}
		resp.Series = append(resp.Series, seriesResponse{Label: s.Label, Data: data})
	}
	if report.Table != nil {
		resp.Table = &tableResponse{Columns: report.Table.Columns, Rows: report.Table.Rows}
		if resp.Table.Rows == nil {
			resp.Table.Rows = [][]string{}
		}
	}
	return resp
}
