package main

import (
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"time"
)

// TemplateError is fatal: a missing or broken template aborts the run
// before any further send, though recipients already sent stay sent and
// ledger-recorded.
type TemplateError struct {
	Name string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %v", e.Name, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

const defaultUserTemplate = `<!DOCTYPE html>
<html>
<body style="font-family:Arial,sans-serif;color:#333;">
  <h2>Account Inactivity Notice</h2>
  <p>Hello {{.Name}},</p>
  <p>Your account has had no activity for <strong>{{.DaysInactive}}</strong> days
  and is currently marked as <strong>{{.Status}}</strong>.</p>
  <p>Please sign in before <strong>{{.Deadline}}</strong> to keep your access.
  If you believe this is an error, contact your manager, {{.ManagerName}}.</p>
  <p>Regards,<br>IT Accounts</p>
</body>
</html>
`

const defaultManagerTemplate = `<!DOCTYPE html>
<html>
<body style="font-family:Arial,sans-serif;color:#333;">
  <h2>Inactive Accounts Summary</h2>
  <p>Hello {{.ManagerName}},</p>
  <p>{{.Count}} account(s) on your team are inactive and have been notified:</p>
  <table border="1" cellpadding="6" cellspacing="0">
    <tr><th>ID</th><th>Name</th><th>Days inactive</th><th>Status</th></tr>
    {{range .Rows}}<tr><td>{{.ID}}</td><td>{{.Name}}</td><td>{{.DaysInactive}}</td><td>{{.Status}}</td></tr>
    {{end}}
  </table>
  <p>Regards,<br>IT Accounts</p>
</body>
</html>
`

type userNoticeData struct {
	Name         string
	DaysInactive int
	Status       Status
	Deadline     string
	ManagerName  string
}

type managerSummaryData struct {
	ManagerName string
	Count       int
	Rows        []summaryRow
}

type summaryRow struct {
	ID           string
	Name         string
	DaysInactive int
	Status       Status
}

// Renderer holds the two parsed notification templates. html/template
// escapes every dynamic field, so roster-controlled values (names) cannot
// inject markup into the rendered mail.
type Renderer struct {
	user    *template.Template
	manager *template.Template
}

// NewRenderer parses the built-in templates, or user_notice.html and
// manager_summary.html from dir when one is given.
func NewRenderer(dir string) (*Renderer, error) {
	if dir == "" {
		return &Renderer{
			user:    template.Must(template.New("user_notice").Parse(defaultUserTemplate)),
			manager: template.Must(template.New("manager_summary").Parse(defaultManagerTemplate)),
		}, nil
	}

	user, err := template.ParseFiles(filepath.Join(dir, "user_notice.html"))
	if err != nil {
		return nil, &TemplateError{Name: "user_notice.html", Err: err}
	}
	manager, err := template.ParseFiles(filepath.Join(dir, "manager_summary.html"))
	if err != nil {
		return nil, &TemplateError{Name: "manager_summary.html", Err: err}
	}
	return &Renderer{user: user, manager: manager}, nil
}

// UserNotice renders the individual notice for one candidate. The deadline
// is formatted dd/mm/yyyy, the format the notices have always used.
func (r *Renderer) UserNotice(candidate Candidate, deadline time.Time) (string, error) {
	var buf strings.Builder
	err := r.user.Execute(&buf, userNoticeData{
		Name:         candidate.User.Name,
		DaysInactive: candidate.User.DaysInactive,
		Status:       candidate.User.Status,
		Deadline:     deadline.Format("02/01/2006"),
		ManagerName:  candidate.Manager.DisplayName(),
	})
	if err != nil {
		return "", &TemplateError{Name: "user_notice", Err: err}
	}
	return buf.String(), nil
}

// ManagerSummary renders the grouped summary for one manager, one table row
// per affected user.
func (r *Renderer) ManagerSummary(group ManagerGroup) (string, error) {
	rows := make([]summaryRow, 0, len(group.Users))
	for _, user := range group.Users {
		rows = append(rows, summaryRow{
			ID:           user.ID,
			Name:         user.Name,
			DaysInactive: user.DaysInactive,
			Status:       user.Status,
		})
	}

	var buf strings.Builder
	err := r.manager.Execute(&buf, managerSummaryData{
		ManagerName: group.Manager.DisplayName(),
		Count:       len(group.Users),
		Rows:        rows,
	})
	if err != nil {
		return "", &TemplateError{Name: "manager_summary", Err: err}
	}
	return buf.String(), nil
}
