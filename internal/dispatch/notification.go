package dispatch

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/ombudhq/ombud/internal/complaint"
)

const notificationHTML = `<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background-color: #4F46E5; color: white; padding: 20px; border-radius: 5px 5px 0 0; }
    .content { background-color: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
    .field { margin-bottom: 15px; }
    .label { font-weight: bold; color: #4F46E5; }
    .severity-low { color: #059669; font-weight: bold; }
    .severity-medium { color: #f59e0b; font-weight: bold; }
    .severity-high { color: #dc2626; font-weight: bold; }
    .severity-critical { color: #991b1b; font-weight: bold; }
    .footer { background-color: #f3f4f6; padding: 15px; text-align: center; font-size: 12px; color: #6b7280; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h2>New Complaint Received</h2>
    </div>
    <div class="content">
      <div class="field"><span class="label">Department:</span> {{.Department}}</div>
      <div class="field"><span class="label">Severity:</span> <span class="{{.SeverityClass}}">{{.Severity}}</span></div>
      {{if .RequesterEmail}}<div class="field"><span class="label">User Email:</span> {{.RequesterEmail}}</div>{{end}}
      {{if .Location}}<div class="field"><span class="label">Location:</span> {{.Location}}</div>{{end}}
      {{if .OccurredAt}}<div class="field"><span class="label">Date/Time:</span> {{.OccurredAt}}</div>{{end}}
      <div class="field"><span class="label">Summary:</span><br/>{{.Summary}}</div>
      {{if .DetailLines}}
      <div class="field">
        <span class="label">Detailed Conversation:</span><br/>
        <div style="background-color: white; padding: 15px; border-radius: 5px; margin-top: 10px;">
          {{range .DetailLines}}{{.}}<br/>{{end}}
        </div>
      </div>
      {{end}}
    </div>
    <div class="footer">
      <p>This is an automated email from the Complaint Management System</p>
      <p>Timestamp: {{.Timestamp}}</p>
    </div>
  </div>
</body>
</html>`

var notificationTmpl = template.Must(template.New("notification").Parse(notificationHTML))

type notificationData struct {
	Department     string
	Severity       complaint.Severity
	SeverityClass  string
	RequesterEmail string
	Location       string
	OccurredAt     string
	Summary        string
	DetailLines    []string
	Timestamp      string
}

// renderNotification builds the HTML body. Sentinel fields are omitted and
// line breaks in the detail text are preserved.
func renderNotification(req Request) (string, error) {
	cl := req.Classification
	data := notificationData{
		Department:     req.Department,
		Severity:       cl.Severity,
		SeverityClass:  "severity-" + strings.ToLower(string(cl.Severity)),
		RequesterEmail: req.RequesterEmail,
		Summary:        cl.Summary,
		Timestamp:      time.Now().Format(time.RFC1123),
	}
	if cl.Location != "" && cl.Location != complaint.NotSpecified {
		data.Location = cl.Location
	}
	if cl.OccurredAt != "" && cl.OccurredAt != complaint.NotSpecified {
		data.OccurredAt = cl.OccurredAt
	}
	if strings.TrimSpace(cl.Details) != "" {
		data.DetailLines = strings.Split(cl.Details, "\n")
	}

	var buf bytes.Buffer
	if err := notificationTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
