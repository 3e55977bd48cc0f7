package main

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestUserNoticeFieldsAndEscaping(t *testing.T) {
	renderer, err := NewRenderer("")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	candidate := Candidate{
		User: UserRecord{
			ID:           "U1",
			Name:         "Ana <script>alert(1)</script>",
			Email:        "ana@x.com",
			DaysInactive: 200,
			Status:       StatusDeactivated,
		},
		Manager: Manager{ID: "J1", Name: "Carlos & Co", Resolved: true},
	}
	deadline := time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)

	body, err := renderer.UserNotice(candidate, deadline)
	if err != nil {
		t.Fatalf("render user notice: %v", err)
	}

	if strings.Contains(body, "<script>") {
		t.Fatalf("user-controlled name must be escaped")
	}
	if !strings.Contains(body, "Ana &lt;script&gt;") {
		t.Fatalf("escaped name missing from body:\n%s", body)
	}
	if !strings.Contains(body, "12/09/2026") {
		t.Fatalf("deadline must be formatted dd/mm/yyyy:\n%s", body)
	}
	if !strings.Contains(body, "200") || !strings.Contains(body, "Deactivated") {
		t.Fatalf("days and status missing from body:\n%s", body)
	}
	if !strings.Contains(body, "Carlos &amp; Co") {
		t.Fatalf("manager name must be present and escaped:\n%s", body)
	}
}

func TestManagerSummaryRowsPerUser(t *testing.T) {
	renderer, err := NewRenderer("")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	group := ManagerGroup{
		Manager: Manager{ID: "J1", Name: "Ana", Resolved: true},
		Users: []UserRecord{
			{ID: "U1", Name: "Luis", DaysInactive: 200, Status: StatusDeactivated},
			{ID: "U3", Name: "Maria", DaysInactive: 95, Status: StatusInactive},
		},
	}

	body, err := renderer.ManagerSummary(group)
	if err != nil {
		t.Fatalf("render manager summary: %v", err)
	}

	if got := strings.Count(body, "<td>U"); got != 2 {
		t.Fatalf("expected 2 user rows, got %d:\n%s", got, body)
	}
	if !strings.Contains(body, "<td>U1</td>") || !strings.Contains(body, "<td>U3</td>") {
		t.Fatalf("user ids missing from table:\n%s", body)
	}
	if !strings.Contains(body, "2 account(s)") {
		t.Fatalf("affected count missing from body:\n%s", body)
	}
}

func TestManagerSummaryUsesFallbackName(t *testing.T) {
	renderer, err := NewRenderer("")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	group := ManagerGroup{
		Manager: Manager{ID: "J9"},
		Users:   []UserRecord{{ID: "U1", Name: "Luis", DaysInactive: 200, Status: StatusDeactivated}},
	}

	body, err := renderer.ManagerSummary(group)
	if err != nil {
		t.Fatalf("render manager summary: %v", err)
	}
	if !strings.Contains(body, "Manager J9") {
		t.Fatalf("synthetic display name missing:\n%s", body)
	}
}

func TestMissingTemplateOverrideIsFatal(t *testing.T) {
	_, err := NewRenderer(t.TempDir())
	var tmplErr *TemplateError
	if !errors.As(err, &tmplErr) {
		t.Fatalf("expected TemplateError, got %v", err)
	}
}
