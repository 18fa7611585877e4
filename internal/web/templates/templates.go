// Package templates renders the HTML fragments of the web server.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/followup/internal/core"
)

// IndexData is what the status page shows.
type IndexData struct {
	Steps   []core.StepInfo
	Tables  []core.TableInfo
	Limiter core.RunLimiterStatus
	// Runs is nil when run history is not configured.
	Runs    []core.RunRecord
	History bool
	Pending int
}

const pageStyle = `body{font-family:sans-serif;margin:2rem;color:#222}
table{border-collapse:collapse;margin-bottom:1.5rem}
th,td{border:1px solid #ccc;padding:.25rem .5rem;text-align:left}
.alert{border:1px solid #c33;background:#fee;padding:.75rem;margin:1rem 0}
.code{color:#888;font-size:.85em}`

// IndexPage renders the status page.
func IndexPage(data IndexData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\">")
		b.WriteString("<title>Follow-up builder</title><style>" + pageStyle + "</style></head><body>")
		b.WriteString("<h1>Follow-up builder</h1>")

		fmt.Fprintf(&b, "<p>Runs: %d active, %d waiting, %d of %d slots free.</p>",
			data.Limiter.Active, data.Limiter.Waiting, data.Limiter.Available, data.Limiter.MaxConcurrent)

		b.WriteString("<h2>Steps</h2><table><tr><th>#</th><th>Name</th><th>Inputs</th></tr>")
		for _, s := range data.Steps {
			fmt.Fprintf(&b, "<tr><td>%d</td><td>%s</td><td>%s</td></tr>",
				int(s.Step), esc(s.Name), esc(strings.Join(s.Inputs, ", ")))
		}
		b.WriteString("</table>")

		b.WriteString("<h2>Table kinds</h2><table><tr><th>Kind</th><th>Sheet</th><th>Key</th><th>Effectivity</th></tr>")
		for _, t := range data.Tables {
			sheet := t.Sheet
			if sheet == "" {
				sheet = "(derived)"
			}
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
				esc(t.Label), esc(sheet), esc(strings.Join(t.KeyFields, ", ")), esc(t.Effectivity.Name))
		}
		b.WriteString("</table>")

		b.WriteString("<h2>Recent runs</h2>")
		if !data.History {
			b.WriteString("<p>Run history is not configured.</p>")
		} else {
			fmt.Fprintf(&b, "<p>%d reference entries waiting for classification.</p>", data.Pending)
			writeRuns(&b, data.Runs)
		}

		b.WriteString("</body></html>")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeRuns(b *strings.Builder, runs []core.RunRecord) {
	if len(runs) == 0 {
		b.WriteString("<p>No runs yet.</p>")
		return
	}
	b.WriteString("<table><tr><th>Started</th><th>Step</th><th>Phase</th><th>Records</th><th>Flagged</th><th>Duration</th><th>Error</th></tr>")
	for _, r := range runs {
		fmt.Fprintf(b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%s</td><td>%s</td></tr>",
			r.Started.Format(time.DateTime), esc(r.Step.Name()), esc(string(r.Phase)),
			r.Stats.Records, r.Stats.FlaggedRecords, r.Duration.Round(time.Millisecond), esc(r.Error))
	}
	b.WriteString("</table>")
}

// ErrorAlert renders an error message with a suggested action.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert" role="alert"><strong>` + esc(message) + `</strong>`)
		if action != "" {
			b.WriteString(`<p>` + esc(action) + `</p>`)
		}
		if code != "" {
			b.WriteString(`<span class="code">` + esc(code) + `</span>`)
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func esc(s string) string { return templ.EscapeString(s) }
