package report

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/pageaudit/audit"
)

// Format selects a renderer.
type Format string

const (
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts json, html, markdown and md.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "html":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("report: unknown format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	}
	return "application/json"
}

// Render writes r in format f.
func Render(w io.Writer, r *Report, f Format) error {
	switch f {
	case FormatJSON:
		return JSON(w, r)
	case FormatHTML:
		return HTML(w, r)
	case FormatMarkdown:
		return Markdown(w, r)
	}
	return fmt.Errorf("report: unknown format %q", f)
}

// JSON writes r as indented JSON.
func JSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// HTML writes a standalone HTML page.
func HTML(w io.Writer, r *Report) error {
	body, err := fragment(r, true)
	if err != nil {
		return err
	}
	data := struct {
		Title string
		Body  template.HTML
	}{
		Title: "Audit of " + r.URL,
		Body:  template.HTML(body),
	}
	if err := pageTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}

// Markdown converts the report body to Markdown. Screenshots are omitted.
func Markdown(w io.Writer, r *Report) error {
	body, err := fragment(r, false)
	if err != nil {
		return err
	}
	md, err := mdConverter.ConvertString(body)
	if err != nil {
		return fmt.Errorf("report: convert markdown: %w", err)
	}
	if _, err := io.WriteString(w, strings.TrimSpace(md)+"\n"); err != nil {
		return fmt.Errorf("report: write markdown: %w", err)
	}
	return nil
}

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// bodyPolicy is applied to the rendered fragment. Finding messages embed
// text taken from audited pages.
var bodyPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataURIImages()
	p.AllowAttrs("class").Globally()
	return p
}()

func fragment(r *Report, shots bool) (string, error) {
	var buf bytes.Buffer
	if err := bodyTmpl.Execute(&buf, newView(r, shots)); err != nil {
		return "", fmt.Errorf("report: render body: %w", err)
	}
	return bodyPolicy.Sanitize(buf.String()), nil
}

type section struct {
	Name     string
	Scored   bool
	Score    int
	Grade    audit.Grade
	Findings []audit.Finding
	Error    string
}

type flag struct {
	Key string
	OK  bool
}

type shot struct {
	Criterion string
	Selector  string
	DataURI   template.URL
	Error     string
}

type namedError struct {
	Name    string
	Message string
}

type view struct {
	R        *Report
	Status   string
	Sections []section
	Errors   []namedError
	A11y     *audit.AccessibilityReport
	Levels   []*audit.LevelResult
	Flags    []flag
	Shots    []shot
}

func newView(r *Report, withShots bool) view {
	v := r.Visit
	vw := view{R: r, Status: "no response"}
	if v.StatusCode != nil {
		vw.Status = fmt.Sprint(*v.StatusCode)
	}

	add := func(name string, scored bool, score int, grade audit.Grade, fs []audit.Finding) {
		vw.Sections = append(vw.Sections, section{
			Name: name, Scored: scored, Score: score, Grade: grade,
			Findings: fs, Error: v.Errors[name],
		})
	}
	if s := v.SecurityHeaders; s != nil {
		add("security-headers", true, s.Score, s.Grade, s.Findings)
	} else {
		add("security-headers", false, 0, "", nil)
	}
	if p := v.Performance; p != nil {
		add("performance", true, p.Score, p.Grade, p.Findings)
	} else {
		add("performance", false, 0, "", nil)
	}
	if c := v.ContentWeight; c != nil {
		add("content-weight", true, c.Score, c.Grade, c.Findings)
	} else {
		add("content-weight", false, 0, "", nil)
	}
	if m := v.Mobile; m != nil {
		add("mobile", true, m.Score, m.Grade, m.Findings)
	} else {
		add("mobile", false, 0, "", nil)
	}

	for _, name := range failedNames(v) {
		vw.Errors = append(vw.Errors, namedError{Name: name, Message: v.Errors[name]})
	}

	if a := v.Accessibility; a != nil {
		vw.A11y = a
		for _, l := range a.Summary.ScoredLevels {
			vw.Levels = append(vw.Levels, a.ByLevel[l])
		}
		keys := make([]string, 0, len(a.Compliance))
		for k := range a.Compliance {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			vw.Flags = append(vw.Flags, flag{Key: k, OK: a.Compliance[k]})
		}
		if withShots {
			for _, s := range a.Screenshots {
				sv := shot{Criterion: s.Criterion, Selector: s.Selector, Error: s.Error}
				if len(s.PNG) > 0 {
					sv.DataURI = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(s.PNG))
				}
				vw.Shots = append(vw.Shots, sv)
			}
		}
	}
	return vw
}

func failedNames(v *audit.Visit) []string {
	if v == nil {
		return nil
	}
	names := make([]string, 0, len(v.Errors))
	for k := range v.Errors {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"elements": func(es []string) string {
		if len(es) > 3 {
			return strings.Join(es[:3], ", ") + fmt.Sprintf(" (+%d more)", len(es)-3)
		}
		return strings.Join(es, ", ")
	},
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}

var bodyTmpl = template.Must(template.New("body").Funcs(funcs).Parse(`
<h1>Audit of {{.R.URL}}</h1>
<p>Run <code>{{.R.ID}}</code> finished {{.R.FinishedAt.Format "2006-01-02 15:04:05 MST"}}. HTTP status: <strong>{{.Status}}</strong>{{with .R.Visit.FinalURL}}, final URL {{.}}{{end}}.</p>
<table>
<thead><tr><th>Check</th><th>Score</th><th>Grade</th><th>Issues</th></tr></thead>
<tbody>
{{- range .Sections}}
<tr><td>{{.Name}}</td>{{if .Scored}}<td>{{.Score}}</td><td>{{.Grade}}</td><td>{{len .Findings}}</td>{{else}}<td>-</td><td>-</td><td>{{if .Error}}failed{{else}}not run{{end}}</td>{{end}}</tr>
{{- end}}
{{- range .Levels}}
<tr><td>a11y-{{.Level}}</td><td>{{.Score}}</td><td>{{.Grade}}</td><td>{{len .Violations}}</td></tr>
{{- end}}
</tbody>
</table>
{{- if .Errors}}
<h2>Failed checks</h2>
<ul>
{{- range .Errors}}
<li><strong>{{.Name}}</strong>: {{.Message}}</li>
{{- end}}
</ul>
{{- end}}
{{- range .Sections}}{{if .Findings}}
<h2>{{.Name}}</h2>
<ul>
{{- range .Findings}}
<li><strong>{{.Severity}}</strong> {{.Type}}: {{.Message}}{{if .Elements}} <code>{{elements .Elements}}</code>{{end}}</li>
{{- end}}
</ul>
{{- end}}{{end}}
{{- with .A11y}}
<h2>Accessibility</h2>
<p>Compliance score: <strong>{{.ComplianceScore}}</strong>. Violations {{.Summary.TotalViolations}}, warnings {{.Summary.TotalWarnings}}, passes {{.Summary.TotalPasses}}.</p>
{{- if .Summary.UnscoredLevels}}
<p>Not scored: {{range $i, $l := .Summary.UnscoredLevels}}{{if $i}}, {{end}}{{$l}}{{end}}</p>
{{- end}}
{{- end}}
{{- if .Flags}}
<table>
<thead><tr><th>Conformance</th><th>Met</th></tr></thead>
<tbody>
{{- range .Flags}}
<tr><td>{{.Key}}</td><td>{{yesno .OK}}</td></tr>
{{- end}}
</tbody>
</table>
{{- end}}
{{- with .A11y}}
{{- if .Summary.PriorityIssues}}
<h3>Priority issues</h3>
<ol>
{{- range .Summary.PriorityIssues}}
<li>{{.Criterion}} ({{.Level}}): {{.Message}}{{if .Elements}} <code>{{elements .Elements}}</code>{{end}}</li>
{{- end}}
</ol>
{{- end}}
{{- if .Summary.Recommendations}}
<h3>Recommendations</h3>
<ul>
{{- range .Summary.Recommendations}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
{{- if .Violations}}
<h3>Violations</h3>
<ul>
{{- range .Violations}}
<li>{{.Criterion}} [{{.Level}}, {{.Spec}}] {{.Message}}{{if .Elements}} <code>{{elements .Elements}}</code>{{end}}</li>
{{- end}}
</ul>
{{- end}}
{{- end}}
{{- if .Shots}}
<h3>Screenshots</h3>
{{- range .Shots}}
<figure>{{if .DataURI}}<img src="{{.DataURI}}" alt="Highlighted element for {{.Criterion}}">{{else}}<p>Capture failed: {{.Error}}</p>{{end}}<figcaption>{{.Criterion}} <code>{{.Selector}}</code></figcaption></figure>
{{- end}}
{{- end}}
`))

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #ccc; padding: .3rem .6rem; text-align: left; }
code { font-size: .85em; }
figure img { max-width: 100%; border: 1px solid #ccc; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))
