package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	defaultInactiveDays    = 90
	defaultDeactivatedDays = 120
	defaultDeadlineDays    = 14
	defaultPause           = time.Second
)

// SMTPConfig comes from the environment so credentials never land in shell
// history. An optional .env next to the binary is honored.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
}

func main() {
	usersPath := flag.String("users", "", "Path to user roster (CSV or XLSX)")
	managersPath := flag.String("managers", "", "Path to manager roster (CSV or XLSX)")
	mode := flag.String("mode", "emit", "Output mode: emit (write HTML files) or send (SMTP)")
	outDir := flag.String("out", "notices", "Output directory for emit mode")
	templatesDir := flag.String("templates", "", "Directory with user_notice.html and manager_summary.html overrides")
	inactiveDays := flag.Int("inactive", defaultInactiveDays, "Days without login before an account is Inactive")
	deactivatedDays := flag.Int("deactivated", defaultDeactivatedDays, "Days without login before an account is Deactivated")
	deadlineDays := flag.Int("deadline", defaultDeadlineDays, "Days the user has to respond")
	sendPause := flag.Duration("pause", defaultPause, "Pause between transport sends")
	asOf := flag.String("as-of", "", "Run as-of date (YYYY-MM-DD); defaults to today")
	ledgerEnabled := flag.Bool("ledger", true, "Track notified recipients to avoid duplicate sends")
	userLedgerPath := flag.String("user-ledger", "notified_users.txt", "Ledger file of notified user emails")
	managerLedgerPath := flag.String("manager-ledger", "notified_managers.txt", "Ledger file of notified manager ids")
	fromOverride := flag.String("from", "", "Sender address (overrides SMTP_FROM)")
	userSubject := flag.String("user-subject", "Account Inactivity Notice", "Subject for user notices")
	managerSubject := flag.String("manager-subject", "Inactive Accounts Summary", "Subject for manager summaries")
	jsonOut := flag.String("json", "", "Optional JSON report output path")
	dbEnabled := flag.Bool("db", false, "Archive the run in Postgres (requires INACTIVITY_NOTIFIER_DB_URL or DATABASE_URL)")
	dbSchema := flag.String("db-schema", "inactivity_notifier", "Postgres schema for archive tables")
	dbTag := flag.String("db-tag", "", "Optional label for this run")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *usersPath == "" {
		exitWithError(errors.New("--users is required"))
	}
	if *managersPath == "" {
		exitWithError(errors.New("--managers is required"))
	}
	if *mode != "emit" && *mode != "send" {
		exitWithError(fmt.Errorf("invalid --mode value: %s", *mode))
	}
	if *inactiveDays <= 0 || *deactivatedDays <= *inactiveDays {
		exitWithError(errors.New("--deactivated must be greater than --inactive, both positive"))
	}

	today := time.Now()
	if *asOf != "" {
		parsed, err := parseDate(*asOf)
		if err != nil {
			exitWithError(fmt.Errorf("invalid --as-of date: %w", err))
		}
		today = parsed
	}
	today = dateOnly(today)

	var smtpCfg SMTPConfig
	if *mode == "send" {
		_ = godotenv.Load()
		if err := env.Parse(&smtpCfg); err != nil {
			exitWithError(fmt.Errorf("unable to read SMTP environment: %w", err))
		}
		if *fromOverride != "" {
			smtpCfg.From = *fromOverride
		}
		if smtpCfg.Host == "" || smtpCfg.From == "" {
			exitWithError(errors.New("send mode requires SMTP_HOST and SMTP_FROM (or --from)"))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, userStats, err := loadUsers(*usersPath)
	if err != nil {
		exitWithError(err)
	}
	managers, managerStats, err := loadManagers(*managersPath)
	if err != nil {
		exitWithError(err)
	}

	futureLogins := classifyUsers(users, today, *inactiveDays, *deactivatedDays)
	candidates := selectCandidates(users, managers)
	groups := groupByManager(candidates)

	var userLedger, managerLedger *Ledger
	if *ledgerEnabled {
		userLedger, err = OpenLedger(*userLedgerPath)
		if err != nil {
			exitWithError(err)
		}
		defer userLedger.Close()
		managerLedger, err = OpenLedger(*managerLedgerPath)
		if err != nil {
			exitWithError(err)
		}
		defer managerLedger.Close()
	}

	renderer, err := NewRenderer(*templatesDir)
	if err != nil {
		exitWithError(err)
	}

	dispatchCfg := DispatchConfig{
		From:           smtpCfg.From,
		UserSubject:    *userSubject,
		ManagerSubject: *managerSubject,
		Pause:          *sendPause,
		Deadline:       today.AddDate(0, 0, *deadlineDays),
		OutDir:         *outDir,
	}

	var result DispatchResult
	cancelled := false
	switch *mode {
	case "send":
		sender, err := dialSMTP(smtpCfg)
		if err != nil {
			exitWithError(err)
		}
		result, err = sendNotifications(ctx, candidates, groups, renderer, userLedger, managerLedger, sender, dispatchCfg)
		if closeErr := sender.Close(); closeErr != nil {
			logrus.WithError(closeErr).Warn("closing SMTP connection")
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				cancelled = true
				logrus.Warn("run cancelled; ledger holds everything already sent")
			} else {
				exitWithError(err)
			}
		}
	case "emit":
		result, err = emitNotifications(candidates, groups, renderer, userLedger, managerLedger, dispatchCfg)
		if err != nil {
			exitWithError(err)
		}
	}

	report := RunReport{
		Summary: RunSummary{
			AsOf:                 today.Format("2006-01-02"),
			Mode:                 *mode,
			InactiveAfterDays:    *inactiveDays,
			DeactivatedAfterDays: *deactivatedDays,
			UsersLoaded:          len(users),
			ManagersLoaded:       len(managers),
			InvalidRows:          userStats.InvalidRows + managerStats.InvalidRows,
			DuplicateRows:        userStats.DuplicateRows + managerStats.DuplicateRows,
			DateParseWarnings:    userStats.ParseWarnings,
			FutureLogins:         futureLogins,
			Candidates:           len(candidates),
			ManagerGroups:        len(groups),
			Sent:                 result.Sent,
			Skipped:              result.Skipped,
			Failed:               result.Failed,
		},
		Deliveries: result.Deliveries,
	}

	printReport(report)

	if *jsonOut != "" {
		if err := writeJSON(report, *jsonOut); err != nil {
			exitWithError(err)
		}
		fmt.Printf("\nJSON report saved to %s\n", *jsonOut)
	}

	if *dbEnabled {
		dbURL := dbURLFromEnv()
		if dbURL == "" {
			exitWithError(errors.New("database URL missing; set INACTIVITY_NOTIFIER_DB_URL or DATABASE_URL"))
		}
		runID, err := storeRunInDB(report, DBConfig{URL: dbURL, Schema: *dbSchema, Tag: *dbTag})
		if err != nil {
			exitWithError(err)
		}
		fmt.Printf("\nArchived run in Postgres (run_id=%s)\n", runID)
	}

	if cancelled {
		os.Exit(1)
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
