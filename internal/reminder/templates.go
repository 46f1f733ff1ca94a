package reminder

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

const subject = "Complete your union membership verification"

type mailData struct {
	FirstName string
	VerifyURL string
	Contact   string
}

var textBody = texttemplate.Must(texttemplate.New("reminder.txt").Parse(`Dear {{.FirstName}},

You started your membership application but have not finished verification yet.
Complete it here:

{{.VerifyURL}}
{{if .Contact}}
Questions? Write to {{.Contact}}.
{{end}}`))

var htmlBody = htmltemplate.Must(htmltemplate.New("reminder.html").Parse(`<div style="font-family: Arial, sans-serif; padding: 20px;">
<p>Dear <strong>{{.FirstName}}</strong>,</p>
<p>You started your membership application but have not finished verification yet.</p>
<p><a href="{{.VerifyURL}}">Complete verification now</a></p>
{{if .Contact}}<p style="font-size: 12px;">Questions? Write to <a href="mailto:{{.Contact}}">{{.Contact}}</a>.</p>{{end}}
</div>`))

func render(data mailData) (string, string, error) {
	var text, html strings.Builder
	if err := textBody.Execute(&text, data); err != nil {
		return "", "", err
	}
	if err := htmlBody.Execute(&html, data); err != nil {
		return "", "", err
	}
	return text.String(), html.String(), nil
}
