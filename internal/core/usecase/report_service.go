package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
	"github.com/atvirokodosprendimai/consolestats/internal/core/ports"
)

type ReportConfig struct {
	SystemUsers   []string
	ActivityWeeks int
	ShortWindow   time.Duration
	LongWindow    time.Duration
}

func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		SystemUsers:   domain.DefaultSystemUsers,
		ActivityWeeks: 10,
		ShortWindow:   7 * domain.Day,
		LongWindow:    30 * domain.Day,
	}
}

type reportDef struct {
	desc  domain.ReportDescriptor
	query func(now time.Time) domain.AuditQuery
	build func(events []domain.AuditEvent, now time.Time, out *domain.Report)
}

// ReportService runs the console's usage reports and audit tables against
// the audit log.
type ReportService struct {
	log    ports.AuditLogReader
	clock  clockwork.Clock
	logger *zap.Logger

	defs  map[string]reportDef
	order []string
}

func NewReportService(log ports.AuditLogReader, cfg ReportConfig, clock clockwork.Clock, logger *zap.Logger) *ReportService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultReportConfig()
	if cfg.SystemUsers == nil {
		cfg.SystemUsers = defaults.SystemUsers
	}
	if cfg.ActivityWeeks <= 0 {
		cfg.ActivityWeeks = defaults.ActivityWeeks
	}
	if cfg.ShortWindow <= 0 {
		cfg.ShortWindow = defaults.ShortWindow
	}
	if cfg.LongWindow <= 0 {
		cfg.LongWindow = defaults.LongWindow
	}

	s := &ReportService{log: log, clock: clock, logger: logger, defs: make(map[string]reportDef)}
	s.registerAll(cfg)
	return s
}

func (s *ReportService) Descriptors() []domain.ReportDescriptor {
	out := make([]domain.ReportDescriptor, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.defs[name].desc)
	}
	return out
}

// Run executes the named report as of at. A zero at means now. Audit log
// read failures produce a report flagged NoData rather than an error.
func (s *ReportService) Run(ctx context.Context, name string, at time.Time) (domain.Report, error) {
	def, ok := s.defs[name]
	if !ok {
		return domain.Report{}, fmt.Errorf("%w: %s", domain.ErrUnknownReport, name)
	}
	now := at
	if now.IsZero() {
		now = s.clock.Now()
	}
	now = now.UTC()

	q := def.query(now)
	report := domain.Report{
		Descriptor:  def.desc,
		Range:       q.Range,
		GeneratedAt: s.clock.Now().UTC(),
	}
	reportRunsTotal.WithLabelValues(name).Inc()

	events, err := s.log.Events(ctx, q)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Report{}, ctxErr
		}
		reportLogErrorsTotal.WithLabelValues(name).Inc()
		s.logger.Warn("audit log read failed",
			zap.String("report", name),
			zap.Time("start", q.Range.Start),
			zap.Time("end", q.Range.End),
			zap.Error(err),
		)
		report.NoData = true
		return report, nil
	}

	def.build(events, now, &report)
	return report, nil
}

func (s *ReportService) register(def reportDef) {
	if _, exists := s.defs[def.desc.Name]; exists {
		panic("duplicate report " + def.desc.Name)
	}
	s.defs[def.desc.Name] = def
	s.order = append(s.order, def.desc.Name)
}

func (s *ReportService) registerAll(cfg ReportConfig) {
	system := domain.NewUserSet(cfg.SystemUsers...)
	weeks := cfg.ActivityWeeks
	activityWindow := time.Duration(weeks) * domain.Week

	s.register(reportDef{
		desc: domain.ReportDescriptor{
			Name:        "most-active-users",
			Category:    "/Server/User Breakdown/" + windowLabel(cfg.ShortWindow),
			Title:       "Active User actions.",
			Description: "Breakdown of user activity for the last " + windowLabel(cfg.ShortWindow) + ".",
			Kind:        domain.ReportPie,
		},
		query: windowQuery(cfg.ShortWindow),
		build: func(events []domain.AuditEvent, _ time.Time, out *domain.Report) {
			out.Pie = CountByUser(events, system)
		},
	})

	s.register(reportDef{
		desc: domain.ReportDescriptor{
			Name:        "user-activity",
			Category:    "/Server/User Breakdown/Activity",
			Title:       "User Activity",
			Description: fmt.Sprintf("Number of audited actions by each user over the last %d weeks.", weeks),
			Kind:        domain.ReportStack,
		},
		query: windowQuery(activityWindow),
		build: func(events []domain.AuditEvent, now time.Time, out *domain.Report) {
			out.Series = WeeklyActivity(events, now, weeks, func(e domain.AuditEvent) (string, bool) {
				return e.User, !system.Contains(e.User)
			})
		},
	})

	s.register(reportDef{
		desc: domain.ReportDescriptor{
			Name:        "client-activity",
			Category:    "/Server/Clients/Activity",
			Title:       "Client Activity",
			Description: fmt.Sprintf("Number of audited actions against each client over the last %d weeks.", weeks),
			Kind:        domain.ReportStack,
		},
		query: windowQuery(activityWindow),
		build: func(events []domain.AuditEvent, now time.Time, out *domain.Report) {
			out.Series = WeeklyActivity(events, now, weeks, func(e domain.AuditEvent) (string, bool) {
				return e.Client, e.Client != ""
			})
		},
	})

	for _, window := range []time.Duration{cfg.ShortWindow, cfg.LongWindow} {
		s.registerFlowReports(window, system)
		s.registerAuditTables(window)
	}
}

func (s *ReportService) registerFlowReports(window time.Duration, system domain.UserSet) {
	label := windowLabel(window)
	suffix := windowSuffix(window)
	query := func(now time.Time) domain.AuditQuery {
		return domain.AuditQuery{
			Range:   domain.WindowEnding(now, window),
			Actions: []domain.AuditAction{domain.ActionRunFlow},
		}
	}

	s.register(reportDef{
		desc: domain.ReportDescriptor{
			Name:        "system-flows-" + suffix,
			Category:    "/Server/Flows/System/" + label,
			Title:       "System flows launched in the last " + label,
			Description: "Flows started by internal service accounts, with the accounts that ran them most.",
			Kind:        domain.ReportTable,
		},
		query: query,
		build: func(events []domain.AuditEvent, _ time.Time, out *domain.Report) {
			out.Table = FlowRunCounts(events, system.Contains)
		},
	})

	s.register(reportDef{
		desc: domain.ReportDescriptor{
			Name:        "user-flows-" + suffix,
			Category:    "/Server/Flows/User/" + label,
			Title:       "User flows launched in the last " + label,
			Description: "Flows started by console users, with the users that ran them most.",
			Kind:        domain.ReportTable,
		},
		query: query,
		build: func(events []domain.AuditEvent, _ time.Time, out *domain.Report) {
			out.Table = FlowRunCounts(events, func(user string) bool { return !system.Contains(user) })
		},
	})
}

type auditTableDef struct {
	name     string
	category string
	title    string
	actions  []domain.AuditAction
	columns  []AuditColumn
}

var auditTables = []auditTableDef{
	{
		name:     "client-approvals",
		category: "/Server/Approvals/Clients/",
		title:    "Client approval requests and grants for the last ",
		actions: []domain.AuditAction{
			domain.ActionClientApprovalBreakGlassRequest,
			domain.ActionClientApprovalGrant,
			domain.ActionClientApprovalRequest,
		},
		columns: []AuditColumn{columnTimestamp, columnApprovalType, columnUser, columnClient, columnReason},
	},
	{
		name:     "hunt-approvals",
		category: "/Server/Approvals/Hunts/",
		title:    "Hunt approval requests and grants for the last ",
		actions:  []domain.AuditAction{domain.ActionHuntApprovalGrant, domain.ActionHuntApprovalRequest},
		columns:  []AuditColumn{columnTimestamp, columnApprovalType, columnUser, columnURN, columnReason},
	},
	{
		name:     "cron-approvals",
		category: "/Server/Approvals/Crons/",
		title:    "Cron approval requests and grants for the last ",
		actions:  []domain.AuditAction{domain.ActionCronApprovalGrant, domain.ActionCronApprovalRequest},
		columns:  []AuditColumn{columnTimestamp, columnApprovalType, columnUser, columnURN, columnReason},
	},
	{
		name:     "hunt-actions",
		category: "/Server/Hunts/",
		title:    "Hunt management actions for the last ",
		actions: []domain.AuditAction{
			domain.ActionHuntCreated,
			domain.ActionHuntModified,
			domain.ActionHuntPaused,
			domain.ActionHuntStarted,
			domain.ActionHuntStopped,
		},
		columns: []AuditColumn{columnTimestamp, columnAction, columnUser, columnFlowName, columnURN, columnDescription},
	},
}

func (s *ReportService) registerAuditTables(window time.Duration) {
	label := windowLabel(window)
	for _, t := range auditTables {
		s.register(reportDef{
			desc: domain.ReportDescriptor{
				Name:     t.name + "-" + windowSuffix(window),
				Category: t.category + label,
				Title:    t.title + label,
				Kind:     domain.ReportTable,
			},
			query: func(now time.Time) domain.AuditQuery {
				return domain.AuditQuery{Range: domain.WindowEnding(now, window), Actions: t.actions}
			},
			build: func(events []domain.AuditEvent, _ time.Time, out *domain.Report) {
				out.Table = AuditRows(events, t.actions, t.columns)
			},
		})
	}
}

func windowQuery(window time.Duration) func(time.Time) domain.AuditQuery {
	return func(now time.Time) domain.AuditQuery {
		return domain.AuditQuery{Range: domain.WindowEnding(now, window)}
	}
}

// windowLabel renders whole-day windows as "7 days".
func windowLabel(window time.Duration) string {
	if window%domain.Day == 0 {
		days := int(window / domain.Day)
		if days == 1 {
			return "1 day"
		}
		return strconv.Itoa(days) + " days"
	}
	return window.String()
}

func windowSuffix(window time.Duration) string {
	if window%domain.Day == 0 {
		return strconv.Itoa(int(window/domain.Day)) + "d"
	}
	return domain.Duration(window).String()
}
