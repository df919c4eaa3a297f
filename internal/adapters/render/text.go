package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/olekukonko/tablewriter"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

// TextRenderer prints reports as terminal tables.
type TextRenderer struct {
	clock clockwork.Clock
}

func NewTextRenderer(clock clockwork.Clock) *TextRenderer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TextRenderer{clock: clock}
}

func newTable(out io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	return table
}

func (r *TextRenderer) Render(w io.Writer, report domain.Report) error {
	if _, err := fmt.Fprintf(w, "%s\n%s\n\n", report.Descriptor.Title, report.Descriptor.Category); err != nil {
		return err
	}

	if report.Empty() {
		if _, err := fmt.Fprintln(w, noDataMessage); err != nil {
			return err
		}
	} else {
		switch report.Descriptor.Kind {
		case domain.ReportPie:
			r.pieTable(w, report.Pie).Render()
		case domain.ReportStack:
			r.stackTable(w, report.Series).Render()
		default:
			table := newTable(w, report.Table.Columns)
			table.AppendBulk(report.Table.Rows)
			table.Render()
		}
	}

	_, err := fmt.Fprintf(w, "\n%s to %s, generated %s\n",
		report.Range.Start.Format("2006-01-02 15:04"),
		report.Range.End.Format("2006-01-02 15:04 MST"),
		humanize.RelTime(report.GeneratedAt, r.clock.Now(), "ago", "from now"),
	)
	return err
}

func (r *TextRenderer) pieTable(w io.Writer, slices []domain.PieSlice) *tablewriter.Table {
	table := newTable(w, []string{"User", "Actions"})
	total := 0
	for _, s := range slices {
		table.Append([]string{s.Label, humanize.Comma(int64(s.Value))})
		total += s.Value
	}
	table.SetFooter([]string{"Total", humanize.Comma(int64(total))})
	return table
}

func (r *TextRenderer) stackTable(w io.Writer, series []domain.Series) *tablewriter.Table {
	header := []string{"Label"}
	for _, p := range series[0].Data {
		header = append(header, strconv.Itoa(p.X))
	}
	header = append(header, "Total")
	table := newTable(w, header)

	for _, s := range series {
		row := []string{s.Label}
		for _, p := range s.Data {
			row = append(row, humanize.Comma(int64(p.Y)))
		}
		row = append(row, humanize.Comma(int64(s.Total())))
		table.Append(row)
	}
	return table
}

// Descriptors lists the available reports.
func (r *TextRenderer) Descriptors(w io.Writer, descs []domain.ReportDescriptor) {
	table := newTable(w, []string{"Name", "Kind", "Category", "Title"})
	for _, d := range descs {
		table.Append([]string{d.Name, string(d.Kind), d.Category, d.Title})
	}
	table.Render()
}

func (r *TextRenderer) CronJobs(w io.Writer, page domain.CronJobPage) {
	table := newTable(w, []string{"ID", "Flow", "Periodicity", "State", "Last Run", "Failing", "Description"})
	for _, job := range page.Items {
		lastRun := "never"
		if job.LastRunTime != nil {
			lastRun = humanize.RelTime(*job.LastRunTime, r.clock.Now(), "ago", "from now")
		}
		table.Append([]string{
			job.ID,
			job.FlowName,
			job.Periodicity.String(),
			string(job.State),
			lastRun,
			strconv.FormatBool(job.IsFailing),
			job.Description,
		})
	}
	table.SetCaption(true, fmt.Sprintf("%s jobs from offset %d", humanize.Comma(int64(page.Count)), page.Offset))
	table.Render()
}
