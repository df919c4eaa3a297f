package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/microcosm-cc/bluemonday"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

const noDataMessage = "No data Available"

const reportTemplate = `<div class="report">
<h2>{{ html .Title }}</h2>
{{- with .Description }}
<p>{{ html . }}</p>
{{- end }}
{{- if .Empty }}
<div class="no-data">` + noDataMessage + `</div>
{{- else if eq .Kind "pie" }}
<report-pie-chart params="{{ html .Params }}"></report-pie-chart>
{{- else if eq .Kind "stack" }}
<report-stack-chart params="{{ html .Params }}"></report-stack-chart>
{{- else }}
<table class="report-table">
<thead><tr>{{ range .Columns }}<th>{{ html . }}</th>{{ end }}</tr></thead>
<tbody>
{{- range .Rows }}
<tr>{{ range . }}<td>{{ html . }}</td>{{ end }}</tr>
{{- end }}
</tbody>
</table>
{{- end }}
<p><span class="report-range">{{ .Start | date "2006-01-02 15:04" }} to {{ .End | date "2006-01-02 15:04 MST" }}</span></p>
</div>
`

// NewBlueMondayPolicy allows the UGC set plus the chart elements the
// console front end hydrates.
func NewBlueMondayPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()

	p.AllowAttrs("params").OnElements("report-pie-chart")
	p.AllowAttrs("params").OnElements("report-stack-chart")

	p.AllowAttrs("class").OnElements("span")
	p.AllowAttrs("class").OnElements("div")
	p.AllowAttrs("class").OnElements("table")

	return p
}

// HTMLRenderer turns reports into sanitized HTML fragments.
type HTMLRenderer struct {
	tmpl   *template.Template
	policy *bluemonday.Policy
}

func NewHTMLRenderer() (*HTMLRenderer, error) {
	tmpl, err := template.New("report").Funcs(sprig.TxtFuncMap()).Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl, policy: NewBlueMondayPolicy()}, nil
}

type htmlView struct {
	Title       string
	Description string
	Kind        string
	Empty       bool
	Params      string
	Columns     []string
	Rows        [][]string
	Start       time.Time
	End         time.Time
}

func (r *HTMLRenderer) Render(w io.Writer, report domain.Report) error {
	view := htmlView{
		Title:       report.Descriptor.Title,
		Description: report.Descriptor.Description,
		Kind:        string(report.Descriptor.Kind),
		Empty:       report.Empty(),
		Start:       report.Range.Start,
		End:         report.Range.End,
	}
	if !view.Empty {
		switch report.Descriptor.Kind {
		case domain.ReportPie, domain.ReportStack:
			params, err := ChartParams(report)
			if err != nil {
				return err
			}
			view.Params = string(params)
		default:
			view.Columns = report.Table.Columns
			view.Rows = report.Table.Rows
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return fmt.Errorf("render report %s: %w", report.Descriptor.Name, err)
	}
	_, err := r.policy.SanitizeReader(&buf).WriteTo(w)
	return err
}

type flotSeries struct {
	Label string `json:"label"`
	Data  any    `json:"data"`
}

// ChartParams encodes pie and stack reports in the flot series format.
// Stack points are [x, y] pairs.
func ChartParams(report domain.Report) ([]byte, error) {
	var series []flotSeries
	switch report.Descriptor.Kind {
	case domain.ReportPie:
		series = make([]flotSeries, 0, len(report.Pie))
		for _, s := range report.Pie {
			series = append(series, flotSeries{Label: s.Label, Data: s.Value})
		}
	case domain.ReportStack:
		series = make([]flotSeries, 0, len(report.Series))
		for _, s := range report.Series {
			points := make([][2]int, 0, len(s.Data))
			for _, p := range s.Data {
				points = append(points, [2]int{p.X, p.Y})
			}
			series = append(series, flotSeries{Label: s.Label, Data: points})
		}
	default:
		return nil, fmt.Errorf("report %s is not a chart", report.Descriptor.Name)
	}
	return json.Marshal(series)
}
