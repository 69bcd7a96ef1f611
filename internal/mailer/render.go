// Package mailer turns check-in and summary messages into email.
package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/commitlog/dailyagent/internal/calendar"
	"github.com/commitlog/dailyagent/internal/service"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const maxListedRepositories = 5

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// Email is a rendered message ready for a transport.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

type summaryView struct {
	DateLabel    string
	Passed       bool
	Commits      int
	PRs          int
	Issues       int
	Total        int
	MinRequired  int
	Repositories []string
	MoreRepos    int
	Response     string
	ResponseHTML htmltemplate.HTML
	HasResponse  bool
}

var checkinHTML = htmltemplate.Must(htmltemplate.New("checkin").Parse(`<!DOCTYPE html>
<html><body style="font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;color:#1f2328;max-width:600px;margin:0 auto;padding:24px;">
<h2 style="margin-top:0;">Daily Check-in</h2>
<p style="color:#57606a;">{{.}}</p>
<p>What did you work on today? Reply to this email with a short summary of what you got done.</p>
<p>Your reply will be checked against today's GitHub activity and you will get a summary afterwards.</p>
</body></html>`))

var checkinText = texttemplate.Must(texttemplate.New("checkin").Parse(`Daily Check-in
{{.}}

What did you work on today? Reply to this email with a short summary of what you got done.

Your reply will be checked against today's GitHub activity and you will get a summary afterwards.
`))

var summaryHTML = htmltemplate.Must(htmltemplate.New("summary").Parse(`<!DOCTYPE html>
<html><body style="font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;color:#1f2328;max-width:600px;margin:0 auto;padding:24px;">
<h2 style="margin-top:0;">Daily Summary</h2>
<p style="color:#57606a;">{{.DateLabel}}</p>
{{if .Passed}}<p style="padding:12px;background:#dafbe1;border-radius:6px;">✅ Verified: your GitHub activity backs up today's commitment.</p>
{{else}}<p style="padding:12px;background:#fff8c5;border-radius:6px;">⚠️ Not verified: found {{.Total}} of the {{.MinRequired}} required GitHub activities.</p>
{{end}}
<h3>Your reply</h3>
{{if .HasResponse}}<div style="border-left:3px solid #d0d7de;padding-left:12px;">{{.ResponseHTML}}</div>
{{else}}<p style="color:#57606a;">No reply received.</p>
{{end}}
<h3>GitHub activity</h3>
<ul>
<li>Commits: {{.Commits}}</li>
<li>Pull requests: {{.PRs}}</li>
<li>Issues: {{.Issues}}</li>
</ul>
{{if .Repositories}}<p>Repositories:</p>
<ul>{{range .Repositories}}<li>{{.}}</li>{{end}}{{if .MoreRepos}}<li>and {{.MoreRepos}} more</li>{{end}}</ul>
{{end}}
<p>{{if .Passed}}Keep it up!{{else}}Tomorrow is a fresh start.{{end}}</p>
</body></html>`))

var summaryText = texttemplate.Must(texttemplate.New("summary").Parse(`Daily Summary
{{.DateLabel}}

{{if .Passed}}✅ Verified: your GitHub activity backs up today's commitment.{{else}}⚠️ Not verified: found {{.Total}} of the {{.MinRequired}} required GitHub activities.{{end}}

Your reply:
{{if .HasResponse}}{{.Response}}{{else}}No reply received.{{end}}

GitHub activity:
- Commits: {{.Commits}}
- Pull requests: {{.PRs}}
- Issues: {{.Issues}}
{{if .Repositories}}
Repositories:
{{range .Repositories}}- {{.}}
{{end}}{{if .MoreRepos}}- and {{.MoreRepos}} more
{{end}}{{end}}
{{if .Passed}}Keep it up!{{else}}Tomorrow is a fresh start.{{end}}
`))

// CheckinSubject renders "Daily Check-in - Monday, January 15, 2024".
func CheckinSubject(msg service.CheckinMessage) string {
	return "Daily Check-in - " + calendar.LongDate(msg.Date)
}

// SummarySubject appends a pass or warning marker.
func SummarySubject(msg service.SummaryMessage) string {
	marker := "⚠️"
	if msg.Result.Passed {
		marker = "✅"
	}
	return fmt.Sprintf("Daily Summary - %s %s", calendar.LongDate(msg.Date), marker)
}

// RenderCheckin builds the check-in email.
func RenderCheckin(msg service.CheckinMessage) (Email, error) {
	label := calendar.LongDate(msg.Date)

	var htmlBuf, textBuf bytes.Buffer
	if err := checkinHTML.Execute(&htmlBuf, label); err != nil {
		return Email{}, fmt.Errorf("render checkin html: %w", err)
	}
	if err := checkinText.Execute(&textBuf, label); err != nil {
		return Email{}, fmt.Errorf("render checkin text: %w", err)
	}

	return Email{
		To:       msg.To,
		Subject:  CheckinSubject(msg),
		TextBody: textBuf.String(),
		HTMLBody: htmlBuf.String(),
	}, nil
}

// RenderSummary builds the summary email. The reply is treated as markdown
// and sanitized before it is embedded.
func RenderSummary(msg service.SummaryMessage) (Email, error) {
	result := msg.Result
	view := summaryView{
		DateLabel:   calendar.LongDate(msg.Date),
		Passed:      result.Passed,
		Commits:     result.CommitsCount,
		PRs:         result.PRsCount,
		Issues:      result.IssuesCount,
		Total:       result.TotalActivity,
		MinRequired: result.MinRequired,
		Response:    strings.TrimSpace(result.UserResponse),
	}
	view.HasResponse = view.Response != ""
	if view.MinRequired < 1 {
		view.MinRequired = 1
	}

	repos := result.Repositories
	if len(repos) > maxListedRepositories {
		view.MoreRepos = len(repos) - maxListedRepositories
		repos = repos[:maxListedRepositories]
	}
	view.Repositories = repos

	if view.HasResponse {
		rendered, err := renderMarkdown(view.Response)
		if err != nil {
			return Email{}, err
		}
		view.ResponseHTML = rendered
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := summaryHTML.Execute(&htmlBuf, view); err != nil {
		return Email{}, fmt.Errorf("render summary html: %w", err)
	}
	if err := summaryText.Execute(&textBuf, view); err != nil {
		return Email{}, fmt.Errorf("render summary text: %w", err)
	}

	return Email{
		To:       msg.To,
		Subject:  SummarySubject(msg),
		TextBody: textBuf.String(),
		HTMLBody: htmlBuf.String(),
	}, nil
}

func renderMarkdown(source string) (htmltemplate.HTML, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render reply markdown: %w", err)
	}
	return htmltemplate.HTML(sanitizer.SanitizeBytes(buf.Bytes())), nil
}
