package usecase

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

const mostRunByLimit = 3

// CountByUser counts events per user, skipping users in exclude. Slices are
// ordered by count descending, then user name.
func CountByUser(events []domain.AuditEvent, exclude domain.UserSet) []domain.PieSlice {
	counts := make(map[string]int)
	for _, e := range events {
		if exclude.Contains(e.User) {
			continue
		}
		counts[e.User]++
	}

	slices := make([]domain.PieSlice, 0, len(counts))
	for user, n := range counts {
		slices = append(slices, domain.PieSlice{Label: user, Value: n})
	}
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Value != slices[j].Value {
			return slices[i].Value > slices[j].Value
		}
		return slices[i].Label < slices[j].Label
	})
	return slices
}

// WeeklyActivity buckets events into weeks ending at now. Bucket x=-k holds
// events aged [k-1, k) weeks. Every series carries all weeks,
// oldest first. keyOf returns the series label and whether the event counts.
func WeeklyActivity(events []domain.AuditEvent, now time.Time, weeks int, keyOf func(domain.AuditEvent) (string, bool)) []domain.Series {
	if weeks <= 0 {
		return nil
	}
	counts := make(map[string][]int)
	for _, e := range events {
		label, ok := keyOf(e)
		if !ok {
			continue
		}
		age := now.Sub(e.Timestamp)
		if age <= 0 {
			continue
		}
		k := int(age/domain.Week) + 1
		if k > weeks {
			// the range start itself belongs to the oldest bucket
			if age > time.Duration(weeks)*domain.Week {
				continue
			}
			k = weeks
		}
		buckets, ok := counts[label]
		if !ok {
			buckets = make([]int, weeks)
			counts[label] = buckets
		}
		buckets[weeks-k]++
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	series := make([]domain.Series, 0, len(labels))
	for _, label := range labels {
		buckets := counts[label]
		data := make([]domain.ChartPoint, 0, weeks)
		for i, n := range buckets {
			data = append(data, domain.ChartPoint{X: i - weeks, Y: n})
		}
		series = append(series, domain.Series{Label: label, Data: data})
	}
	return series
}

// FlowRunCounts tallies RUN_FLOW events per flow for the users accepted by
// keep. Rows are ordered by run count descending, then flow name.
func FlowRunCounts(events []domain.AuditEvent, keep func(user string) bool) *domain.Table {
	type flowTally struct {
		name  string
		total int
		users map[string]int
	}
	tallies := make(map[string]*flowTally)
	for _, e := range events {
		if e.Action != domain.ActionRunFlow || !keep(e.User) {
			continue
		}
		t, ok := tallies[e.FlowName]
		if !ok {
			t = &flowTally{name: e.FlowName, users: make(map[string]int)}
			tallies[e.FlowName] = t
		}
		t.total++
		t.users[e.User]++
	}

	ordered := make([]*flowTally, 0, len(tallies))
	for _, t := range tallies {
		ordered = append(ordered, t)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].total != ordered[j].total {
			return ordered[i].total > ordered[j].total
		}
		return ordered[i].name < ordered[j].name
	})

	table := &domain.Table{Columns: []string{"Flow Name", "Run Count", "Most Run By"}}
	for _, t := range ordered {
		users := make([]domain.PieSlice, 0, len(t.users))
		for u, n := range t.users {
			users = append(users, domain.PieSlice{Label: u, Value: n})
		}
		sort.Slice(users, func(i, j int) bool {
			if users[i].Value != users[j].Value {
				return users[i].Value > users[j].Value
			}
			return users[i].Label < users[j].Label
		})
		if len(users) > mostRunByLimit {
			users = users[:mostRunByLimit]
		}
		top := make([]string, 0, len(users))
		for _, u := range users {
			top = append(top, fmt.Sprintf("%s (%d)", u.Label, u.Value))
		}
		table.Rows = append(table.Rows, []string{t.name, strconv.Itoa(t.total), strings.Join(top, ", ")})
	}
	return table
}

// AuditColumn maps an audit event to one cell of an audit table.
type AuditColumn struct {
	Header string
	Value  func(domain.AuditEvent) string
}

var (
	columnTimestamp = AuditColumn{Header: "Timestamp", Value: func(e domain.AuditEvent) string {
		return e.Timestamp.UTC().Format(time.RFC3339)
	}}
	columnAction       = AuditColumn{Header: "Action", Value: func(e domain.AuditEvent) string { return string(e.Action) }}
	columnApprovalType = AuditColumn{Header: "Approval Type", Value: func(e domain.AuditEvent) string { return string(e.Action) }}
	columnUser         = AuditColumn{Header: "User", Value: func(e domain.AuditEvent) string { return e.User }}
	columnClient       = AuditColumn{Header: "Client", Value: func(e domain.AuditEvent) string { return e.Client }}
	columnURN          = AuditColumn{Header: "URN", Value: func(e domain.AuditEvent) string { return e.URN }}
	columnReason       = AuditColumn{Header: "Reason", Value: func(e domain.AuditEvent) string { return e.Description }}
	columnDescription  = AuditColumn{Header: "Description", Value: func(e domain.AuditEvent) string { return e.Description }}
	columnFlowName     = AuditColumn{Header: "Flow Name", Value: func(e domain.AuditEvent) string { return e.FlowName }}
)

// AuditRows builds a table of the events whose action is in actions. Columns
// are ordered by header, rows by timestamp.
func AuditRows(events []domain.AuditEvent, actions []domain.AuditAction, columns []AuditColumn) *domain.Table {
	cols := make([]AuditColumn, len(columns))
	copy(cols, columns)
	sort.Slice(cols, func(i, j int) bool { return cols[i].Header < cols[j].Header })

	wanted := make(map[domain.AuditAction]struct{}, len(actions))
	for _, a := range actions {
		wanted[a] = struct{}{}
	}

	matched := make([]domain.AuditEvent, 0, len(events))
	for _, e := range events {
		if _, ok := wanted[e.Action]; ok {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	table := &domain.Table{Columns: make([]string, 0, len(cols))}
	for _, c := range cols {
		table.Columns = append(table.Columns, c.Header)
	}
	for _, e := range matched {
		row := make([]string, 0, len(cols))
		for _, c := range cols {
			row = append(row, c.Value(e))
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}
