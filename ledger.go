package main

import (
	"fmt"
	"os"
	"strings"
)

// Ledger is an append-only file of recipient keys already notified, one per
// line. The snapshot is read once at open; Record appends and fsyncs
// immediately so a cancelled or crashed run cannot lose the record of a
// confirmed send. A nil Ledger disables tracking: nothing is ever seen and
// nothing is recorded.
//
// The guarantee is best-effort at-most-once: a crash between a transport
// accept and the ledger append still duplicates that one recipient on the
// next run.
type Ledger struct {
	path string
	seen map[string]struct{}
	file *os.File
}

func OpenLedger(path string) (*Ledger, error) {
	seen := map[string]struct{}{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("unable to read ledger %s: %w", path, err)
		}
	} else {
		for _, line := range strings.Split(string(data), "\n") {
			key := strings.TrimSpace(line)
			if key != "" {
				seen[key] = struct{}{}
			}
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("unable to open ledger %s: %w", path, err)
	}

	return &Ledger{path: path, seen: seen, file: file}, nil
}

func (l *Ledger) Seen(key string) bool {
	if l == nil {
		return false
	}
	_, ok := l.seen[strings.TrimSpace(key)]
	return ok
}

func (l *Ledger) Record(key string) error {
	if l == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if _, ok := l.seen[key]; ok {
		return nil
	}
	if _, err := fmt.Fprintln(l.file, key); err != nil {
		return fmt.Errorf("unable to append to ledger %s: %w", l.path, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("unable to sync ledger %s: %w", l.path, err)
	}
	l.seen[key] = struct{}{}
	return nil
}

func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	return l.file.Close()
}
