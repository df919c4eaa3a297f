package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reportRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consolestats_report_runs_total",
		Help: "Number of report runs by report name.",
	}, []string{"report"})

	reportLogErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consolestats_report_log_errors_total",
		Help: "Number of report runs that could not read the audit log.",
	}, []string{"report"})

	cronJobsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consolestats_cron_jobs_created_total",
		Help: "Number of cron jobs created through the console.",
	})

	outboxDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consolestats_outbox_dispatch_total",
		Help: "Outbox dispatch outcomes.",
	}, []string{"result"})
)
