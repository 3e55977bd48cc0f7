package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Delivery is the terminal record of one recipient in a run. Only sent
// deliveries reach the ledger; failed ones stay eligible for the next run.
type Delivery struct {
	Kind      string  `json:"kind"` // "user" or "manager"
	Key       string  `json:"key"`  // ledger key (email or manager id)
	Recipient string  `json:"recipient,omitempty"`
	Outcome   Outcome `json:"outcome"`
	Error     string  `json:"error,omitempty"`
}

type DispatchResult struct {
	Deliveries []Delivery
	Sent       int
	Skipped    int
	Failed     int
}

func (r *DispatchResult) add(delivery Delivery) {
	r.Deliveries = append(r.Deliveries, delivery)
	switch delivery.Outcome {
	case OutcomeSent:
		r.Sent++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}

// MailSender is the transport handed one rendered message at a time. The
// connection behind it lives for the whole run and must be closed on every
// exit path.
type MailSender interface {
	Send(from string, to string, subject string, htmlBody string) error
	Close() error
}

type smtpSender struct {
	closer gomail.SendCloser
}

// dialSMTP opens the one SMTP connection used for the whole batch.
func dialSMTP(cfg SMTPConfig) (MailSender, error) {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	closer, err := dialer.Dial()
	if err != nil {
		return nil, fmt.Errorf("unable to connect to SMTP %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &smtpSender{closer: closer}, nil
}

func (s *smtpSender) Send(from string, to string, subject string, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	return gomail.Send(s.closer, msg)
}

func (s *smtpSender) Close() error {
	return s.closer.Close()
}

// DispatchConfig carries the run-scoped knobs the dispatcher needs; it is
// built once in main and threaded through, never read from globals.
type DispatchConfig struct {
	From           string
	UserSubject    string
	ManagerSubject string
	Pause          time.Duration
	Deadline       time.Time
	OutDir         string
}

// sendNotifications walks every candidate and then every manager group,
// skipping recipients the ledgers already hold, and hands the rest to the
// transport. A failed recipient is logged and the loop moves on; only a
// template failure or cancellation stops the batch. Sent keys are recorded
// durably before the next send starts.
func sendNotifications(ctx context.Context, candidates []Candidate, groups []ManagerGroup, renderer *Renderer, userLedger *Ledger, managerLedger *Ledger, sender MailSender, cfg DispatchConfig) (DispatchResult, error) {
	result := DispatchResult{}
	first := true

	spacing := func() error {
		if first {
			first = false
			return nil
		}
		return pause(ctx, cfg.Pause)
	}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		log := logrus.WithFields(logrus.Fields{
			"user":      candidate.User.ID,
			"recipient": candidate.User.Email,
		})

		if userLedger.Seen(candidate.User.Email) {
			result.add(Delivery{Kind: "user", Key: candidate.User.Email, Recipient: candidate.User.Email, Outcome: OutcomeSkipped})
			log.Info("already notified, skipping")
			continue
		}

		body, err := renderer.UserNotice(candidate, cfg.Deadline)
		if err != nil {
			return result, err
		}

		if err := spacing(); err != nil {
			return result, err
		}
		if err := sender.Send(cfg.From, candidate.User.Email, cfg.UserSubject, body); err != nil {
			result.add(Delivery{Kind: "user", Key: candidate.User.Email, Recipient: candidate.User.Email, Outcome: OutcomeFailed, Error: err.Error()})
			log.WithError(err).Error("send failed")
			continue
		}
		if err := userLedger.Record(candidate.User.Email); err != nil {
			return result, err
		}
		result.add(Delivery{Kind: "user", Key: candidate.User.Email, Recipient: candidate.User.Email, Outcome: OutcomeSent})
		log.Info("notice sent")
	}

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		log := logrus.WithFields(logrus.Fields{
			"manager":   group.Manager.ID,
			"recipient": group.Manager.Email,
			"users":     len(group.Users),
		})

		if !group.Manager.Resolved || group.Manager.Email == "" {
			log.Warn("no manager address resolved, summary not sent")
			continue
		}
		if managerLedger.Seen(group.Manager.ID) {
			result.add(Delivery{Kind: "manager", Key: group.Manager.ID, Recipient: group.Manager.Email, Outcome: OutcomeSkipped})
			log.Info("already notified, skipping")
			continue
		}

		body, err := renderer.ManagerSummary(group)
		if err != nil {
			return result, err
		}

		if err := spacing(); err != nil {
			return result, err
		}
		if err := sender.Send(cfg.From, group.Manager.Email, cfg.ManagerSubject, body); err != nil {
			result.add(Delivery{Kind: "manager", Key: group.Manager.ID, Recipient: group.Manager.Email, Outcome: OutcomeFailed, Error: err.Error()})
			log.WithError(err).Error("send failed")
			continue
		}
		if err := managerLedger.Record(group.Manager.ID); err != nil {
			return result, err
		}
		result.add(Delivery{Kind: "manager", Key: group.Manager.ID, Recipient: group.Manager.Email, Outcome: OutcomeSent})
		log.Info("summary sent")
	}

	return result, nil
}

// emitNotifications writes each rendered block to its own HTML file instead
// of sending it: user_notice_<id>.html per candidate, manager_summary_<id>.html
// per group. Ledger semantics match transport mode so emit runs are equally
// idempotent when a ledger is enabled.
func emitNotifications(candidates []Candidate, groups []ManagerGroup, renderer *Renderer, userLedger *Ledger, managerLedger *Ledger, cfg DispatchConfig) (DispatchResult, error) {
	result := DispatchResult{}

	if cfg.OutDir != "" {
		if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
			return result, fmt.Errorf("unable to create output directory: %w", err)
		}
	}

	for _, candidate := range candidates {
		log := logrus.WithField("user", candidate.User.ID)

		if userLedger.Seen(candidate.User.Email) {
			result.add(Delivery{Kind: "user", Key: candidate.User.Email, Outcome: OutcomeSkipped})
			log.Info("already notified, skipping")
			continue
		}

		body, err := renderer.UserNotice(candidate, cfg.Deadline)
		if err != nil {
			return result, err
		}

		path := filepath.Join(cfg.OutDir, fmt.Sprintf("user_notice_%s.html", candidate.User.ID))
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			result.add(Delivery{Kind: "user", Key: candidate.User.Email, Outcome: OutcomeFailed, Error: err.Error()})
			log.WithError(err).Error("write failed")
			continue
		}
		if err := userLedger.Record(candidate.User.Email); err != nil {
			return result, err
		}
		result.add(Delivery{Kind: "user", Key: candidate.User.Email, Recipient: path, Outcome: OutcomeSent})
		log.WithField("file", path).Info("notice written")
	}

	for _, group := range groups {
		log := logrus.WithField("manager", group.Manager.ID)

		if managerLedger.Seen(group.Manager.ID) {
			result.add(Delivery{Kind: "manager", Key: group.Manager.ID, Outcome: OutcomeSkipped})
			log.Info("already notified, skipping")
			continue
		}

		body, err := renderer.ManagerSummary(group)
		if err != nil {
			return result, err
		}

		path := filepath.Join(cfg.OutDir, fmt.Sprintf("manager_summary_%s.html", group.Manager.ID))
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			result.add(Delivery{Kind: "manager", Key: group.Manager.ID, Outcome: OutcomeFailed, Error: err.Error()})
			log.WithError(err).Error("write failed")
			continue
		}
		if err := managerLedger.Record(group.Manager.ID); err != nil {
			return result, err
		}
		result.add(Delivery{Kind: "manager", Key: group.Manager.ID, Recipient: path, Outcome: OutcomeSent})
		log.WithField("file", path).Info("summary written")
	}

	return result, nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
