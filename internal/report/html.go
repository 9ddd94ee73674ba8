package report

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spigell/job-sieve/internal/job"
	"github.com/spigell/job-sieve/internal/utils"
)

const htmlFileNameLayout = "jobs_%s.html"

var digestTemplate = template.Must(template.New("digest").Funcs(template.FuncMap{
	"join":    strings.Join,
	"score":   formatScore,
	"preview": func(s string) string { return utils.Preview(s, previewRunes) },
	"inc":     func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Job matches {{.Date}}</title></head>
<body>
<h1>{{len .Records}} job matches for {{.Date}}</h1>
{{- range $i, $rec := .Records}}
<div class="job">
  <h2>{{inc $i}}. <a href="{{$rec.URL}}">{{$rec.Title}}</a> at {{$rec.Company}}</h2>
  <p><strong>Score: {{score $rec.Score}}</strong>{{if $rec.Location}} | {{$rec.Location}}{{end}}{{if $rec.Remote}} | Remote{{end}}</p>
  {{- with $rec.ScoreBreakdown}}
  <p>Similarity {{printf "%.1f" .Similarity}}, skills {{printf "%.1f" .SkillMatch}}, experience {{printf "%.1f" .ExperienceFit}}, company {{printf "%.1f" .CompanySignal}}, adjustments {{printf "%.1f" .Adjustments}}</p>
  {{- end}}
  {{- if $rec.WhyMatched}}
  <p>Why: {{join $rec.WhyMatched "; "}}</p>
  {{- end}}
  <p>{{preview $rec.Description}}</p>
</div>
{{- end}}
</body>
</html>
`))

type digest struct {
	Date    string
	Records []*job.Record
}

// HTMLFileName returns the dated digest name for now.
func HTMLFileName(now time.Time) string {
	return fmt.Sprintf(htmlFileNameLayout, now.Format(dateLayout))
}

// WriteHTML renders records in rank order as an HTML digest suitable for an
// email body.
func WriteHTML(w io.Writer, records []*job.Record, now time.Time) error {
	if err := digestTemplate.Execute(w, digest{Date: now.Format(dateLayout), Records: records}); err != nil {
		return fmt.Errorf("rendering html digest: %w", err)
	}
	return nil
}

// ExportHTML writes the digest to dir/jobs_YYYY-MM-DD.html and returns the path.
func ExportHTML(records []*job.Record, dir string, now time.Time) (string, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, HTMLFileName(now))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if err := WriteHTML(f, records, now); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	return path, nil
}

func formatScore(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return formatFloat(*v)
}
