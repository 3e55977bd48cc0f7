package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// The archive is observability only: the flat-file ledgers stay the single
// source of truth for who has been notified.

type DBConfig struct {
	URL    string
	Schema string
	Tag    string
}

func dbURLFromEnv() string {
	if value := strings.TrimSpace(os.Getenv("INACTIVITY_NOTIFIER_DB_URL")); value != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv("DATABASE_URL"))
}

func sanitizeSchema(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("db schema is required")
	}
	valid := regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	if !valid.MatchString(value) {
		return "", fmt.Errorf("invalid schema name: %s", value)
	}
	return value, nil
}

func storeRunInDB(report RunReport, cfg DBConfig) (string, error) {
	schema, err := sanitizeSchema(cfg.Schema)
	if err != nil {
		return "", err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return "", err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return "", err
	}

	if err := ensureSchema(ctx, db, schema); err != nil {
		return "", err
	}

	return storeRunTx(ctx, db, report, schema, cfg.Tag)
}

func storeRunTx(ctx context.Context, db *sql.DB, report RunReport, schema string, tag string) (string, error) {
	runID := uuid.New()
	asOf, err := parseDate(report.Summary.AsOf)
	if err != nil {
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.notifier_runs (
			id, as_of, mode, inactive_after_days, deactivated_after_days,
			users_loaded, managers_loaded, invalid_rows, duplicate_rows,
			date_parse_warnings, future_logins, candidates, manager_groups,
			sent_count, skipped_count, failed_count, run_tag
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,$9,
			$10,$11,$12,$13,
			$14,$15,$16,$17
		)`, schema),
		runID,
		dateOnly(asOf),
		report.Summary.Mode,
		report.Summary.InactiveAfterDays,
		report.Summary.DeactivatedAfterDays,
		report.Summary.UsersLoaded,
		report.Summary.ManagersLoaded,
		report.Summary.InvalidRows,
		report.Summary.DuplicateRows,
		report.Summary.DateParseWarnings,
		report.Summary.FutureLogins,
		report.Summary.Candidates,
		report.Summary.ManagerGroups,
		report.Summary.Sent,
		report.Summary.Skipped,
		report.Summary.Failed,
		nullString(tag),
	)
	if err != nil {
		_ = tx.Rollback()
		return "", err
	}

	insertDeliverySQL := fmt.Sprintf(`
		INSERT INTO %s.notifier_deliveries (
			id, run_id, kind, ledger_key, recipient, outcome, error
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7
		)`, schema)

	for _, delivery := range report.Deliveries {
		_, err = tx.ExecContext(ctx, insertDeliverySQL,
			uuid.New(),
			runID,
			delivery.Kind,
			delivery.Key,
			nullString(delivery.Recipient),
			string(delivery.Outcome),
			nullString(delivery.Error),
		)
		if err != nil {
			_ = tx.Rollback()
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID.String(), nil
}

func ensureSchema(ctx context.Context, db *sql.DB, schema string) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.notifier_runs (
			id uuid PRIMARY KEY,
			as_of date NOT NULL,
			mode text NOT NULL,
			inactive_after_days integer NOT NULL,
			deactivated_after_days integer NOT NULL,
			users_loaded integer NOT NULL,
			managers_loaded integer NOT NULL,
			invalid_rows integer NOT NULL,
			duplicate_rows integer NOT NULL,
			date_parse_warnings integer NOT NULL,
			future_logins integer NOT NULL,
			candidates integer NOT NULL,
			manager_groups integer NOT NULL,
			sent_count integer NOT NULL,
			skipped_count integer NOT NULL,
			failed_count integer NOT NULL,
			run_tag text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.notifier_deliveries (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.notifier_runs(id) ON DELETE CASCADE,
			kind text NOT NULL,
			ledger_key text NOT NULL,
			recipient text,
			outcome text NOT NULL,
			error text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_notifier_deliveries_run_idx ON %s.notifier_deliveries (run_id)`, schema, schema))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_notifier_deliveries_outcome_idx ON %s.notifier_deliveries (outcome)`, schema, schema))
	return err
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
