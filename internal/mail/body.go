package mail

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/itsupport/csreport/internal/storage"
)

// Subject returns the subject line for a report email.
func Subject(r storage.Report) string {
	return fmt.Sprintf("Customer Visit Report - %s", r.CompanyName)
}

var bodyTmpl = template.Must(template.New("report").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333; border-bottom: 2px solid #007bff; padding-bottom: 10px;">Customer Visit Report</h2>

  <div style="background-color: #f8f9fa; padding: 20px; border-radius: 5px; margin: 20px 0;">
    <h3 style="color: #495057; margin-top: 0;">Basic Information</h3>
    <table style="width: 100%; border-collapse: collapse;">
      <tr><td style="padding: 8px; font-weight: bold; width: 30%;">Company:</td><td style="padding: 8px;">{{.CompanyName}}</td></tr>
      <tr><td style="padding: 8px; font-weight: bold;">Contact:</td><td style="padding: 8px;">{{.ContactPerson}}</td></tr>
      <tr><td style="padding: 8px; font-weight: bold;">Mobile:</td><td style="padding: 8px;">{{.Mobile}}</td></tr>
      <tr><td style="padding: 8px; font-weight: bold;">Address:</td><td style="padding: 8px;">{{.Address}}</td></tr>
      <tr><td style="padding: 8px; font-weight: bold;">Report date:</td><td style="padding: 8px;">{{.ReportDate}}</td></tr>
    </table>
  </div>

  <div style="background-color: #e9ecef; padding: 15px; border-radius: 5px; margin: 20px 0;">
    <h4 style="color: #495057; margin-top: 0;">Main Business</h4>
    <p style="margin: 5px 0;">{{.MainBusiness}}</p>
    <h4 style="color: #495057;">Products</h4>
    <p style="margin: 5px 0;">{{.Products}}</p>
    <h4 style="color: #495057;">Service Needs</h4>
    <p style="margin: 5px 0;">{{.ServiceNeeds}}</p>
  </div>
{{if .ChatRecords}}
  <div style="background-color: #fff3cd; padding: 15px; border-radius: 5px; margin: 20px 0;">
    <h4 style="color: #856404; margin-top: 0;">Chat Records</h4>
    <p style="white-space: pre-line; margin: 5px 0;">{{.ChatRecords}}</p>
  </div>
{{end}}
  <div style="text-align: center; margin: 30px 0; padding: 20px; background-color: #d4edda; border-radius: 5px;">
    <p style="margin: 0; color: #155724;">
      <strong>Lookup code: {{.LookupCode}}</strong><br>
      <small>Keep this code to retrieve the report later.</small>
    </p>
  </div>
</div>
`))

// BodyHTML renders the HTML email body for a report. Field values are
// escaped by the template engine.
func BodyHTML(r storage.Report) (string, error) {
	var b strings.Builder
	if err := bodyTmpl.Execute(&b, r); err != nil {
		return "", fmt.Errorf("rendering report email: %w", err)
	}
	return b.String(), nil
}
