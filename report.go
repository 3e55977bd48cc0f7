package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type RunSummary struct {
	AsOf                 string `json:"as_of"`
	Mode                 string `json:"mode"`
	InactiveAfterDays    int    `json:"inactive_after_days"`
	DeactivatedAfterDays int    `json:"deactivated_after_days"`
	UsersLoaded          int    `json:"users_loaded"`
	ManagersLoaded       int    `json:"managers_loaded"`
	InvalidRows          int    `json:"invalid_rows"`
	DuplicateRows        int    `json:"duplicate_rows"`
	DateParseWarnings    int    `json:"date_parse_warnings"`
	FutureLogins         int    `json:"future_logins"`
	Candidates           int    `json:"candidates"`
	ManagerGroups        int    `json:"manager_groups"`
	Sent                 int    `json:"sent"`
	Skipped              int    `json:"skipped"`
	Failed               int    `json:"failed"`
}

type RunReport struct {
	Summary    RunSummary `json:"summary"`
	Deliveries []Delivery `json:"deliveries"`
}

func printReport(report RunReport) {
	fmt.Println("Account Inactivity Notifier")
	fmt.Println(strings.Repeat("=", 38))
	fmt.Printf("As of: %s\n", report.Summary.AsOf)
	fmt.Printf("Mode: %s\n", report.Summary.Mode)
	fmt.Printf("Thresholds: inactive >= %d days, deactivated >= %d days\n",
		report.Summary.InactiveAfterDays, report.Summary.DeactivatedAfterDays)
	fmt.Printf("Users loaded: %d (managers %d)\n", report.Summary.UsersLoaded, report.Summary.ManagersLoaded)
	if report.Summary.InvalidRows > 0 {
		fmt.Printf("Invalid rows skipped: %d\n", report.Summary.InvalidRows)
	}
	if report.Summary.DuplicateRows > 0 {
		fmt.Printf("Duplicate rows dropped: %d\n", report.Summary.DuplicateRows)
	}
	if report.Summary.DateParseWarnings > 0 {
		fmt.Printf("Unparseable login dates: %d\n", report.Summary.DateParseWarnings)
	}
	if report.Summary.FutureLogins > 0 {
		fmt.Printf("Future-dated logins clamped: %d\n", report.Summary.FutureLogins)
	}
	fmt.Printf("Candidates: %d across %d manager groups\n", report.Summary.Candidates, report.Summary.ManagerGroups)

	fmt.Println("\nDeliveries")
	fmt.Println(strings.Repeat("-", 38))
	fmt.Printf("Sent: %d | Skipped: %d | Failed: %d\n", report.Summary.Sent, report.Summary.Skipped, report.Summary.Failed)
	for _, delivery := range report.Deliveries {
		if delivery.Outcome != OutcomeFailed {
			continue
		}
		fmt.Printf("failed %s %s: %s\n", delivery.Kind, delivery.Recipient, delivery.Error)
	}
}

func writeJSON(report RunReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
