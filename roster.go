package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

type UserRecord struct {
	ID           string    `json:"id"`
	ManagerID    string    `json:"manager_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	LastLogin    time.Time `json:"last_login"`
	DaysInactive int       `json:"days_inactive"`
	Status       Status    `json:"status"`
}

type ManagerRecord struct {
	ID    string
	Name  string
	Email string
}

// LoadStats counts rows the loader dropped or degraded rather than
// aborting on.
type LoadStats struct {
	Rows          int
	InvalidRows   int
	DuplicateRows int
	ParseWarnings int
}

// SchemaError reports required columns absent from a roster source. It is
// fatal: the run aborts before anything is rendered or sent.
type SchemaError struct {
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Source, strings.Join(e.Missing, ", "))
}

var userColumns = map[string][]string{
	"id_usuario":   {"id_usuario", "user_id", "usuario", "id"},
	"id_jefatura":  {"id_jefatura", "manager_id", "jefatura"},
	"nombre":       {"nombre", "name", "full_name"},
	"correo":       {"correo", "email", "mail"},
	"ultimo_login": {"ultimo_login", "last_login", "ultimo_acceso", "last_seen"},
}

var managerColumns = map[string][]string{
	"id_jefatura": {"id_jefatura", "manager_id", "jefatura", "id"},
	"nombre":      {"nombre", "name", "full_name"},
	"correo":      {"correo", "email", "mail"},
}

// loadUsers reads the user roster, normalizes key fields and deduplicates by
// user id (first occurrence wins). Unparseable login dates degrade to the
// zero time; only a missing required column aborts the load.
func loadUsers(path string) ([]UserRecord, LoadStats, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, LoadStats{}, err
	}
	if len(rows) == 0 {
		return nil, LoadStats{}, fmt.Errorf("%s: empty roster", path)
	}

	colMap := normalizeHeaders(rows[0])
	idx, missing := resolveColumns(colMap, userColumns)
	if len(missing) > 0 {
		return nil, LoadStats{}, &SchemaError{Source: filepath.Base(path), Missing: missing}
	}

	stats := LoadStats{}
	seen := map[string]struct{}{}
	users := make([]UserRecord, 0, len(rows)-1)

	for _, record := range rows[1:] {
		if len(record) == 0 {
			continue
		}
		stats.Rows++

		id := getValue(record, idx["id_usuario"])
		if id == "" {
			stats.InvalidRows++
			continue
		}
		if _, dup := seen[id]; dup {
			stats.DuplicateRows++
			continue
		}
		seen[id] = struct{}{}

		lastLogin := time.Time{}
		if raw := getValue(record, idx["ultimo_login"]); raw != "" {
			parsed, err := parseDate(raw)
			if err != nil {
				stats.ParseWarnings++
			} else {
				lastLogin = parsed
			}
		}

		users = append(users, UserRecord{
			ID:        id,
			ManagerID: getValue(record, idx["id_jefatura"]),
			Name:      getValue(record, idx["nombre"]),
			Email:     normalizeEmail(getValue(record, idx["correo"])),
			LastLogin: lastLogin,
		})
	}

	return users, stats, nil
}

// loadManagers reads the manager roster into a map keyed by manager id,
// keeping a single canonical record per manager (first occurrence wins).
func loadManagers(path string) (map[string]ManagerRecord, LoadStats, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, LoadStats{}, err
	}
	if len(rows) == 0 {
		return nil, LoadStats{}, fmt.Errorf("%s: empty roster", path)
	}

	colMap := normalizeHeaders(rows[0])
	idx, missing := resolveColumns(colMap, managerColumns)
	if len(missing) > 0 {
		return nil, LoadStats{}, &SchemaError{Source: filepath.Base(path), Missing: missing}
	}

	stats := LoadStats{}
	managers := map[string]ManagerRecord{}

	for _, record := range rows[1:] {
		if len(record) == 0 {
			continue
		}
		stats.Rows++

		id := getValue(record, idx["id_jefatura"])
		if id == "" {
			stats.InvalidRows++
			continue
		}
		if _, dup := managers[id]; dup {
			stats.DuplicateRows++
			continue
		}
		managers[id] = ManagerRecord{
			ID:    id,
			Name:  getValue(record, idx["nombre"]),
			Email: normalizeEmail(getValue(record, idx["correo"])),
		}
	}

	return managers, stats, nil
}

func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbookRows(path)
	default:
		return readCSVRows(path)
	}
}

func readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read CSV %s: %w", path, err)
	}
	return rows, nil
}

func readWorkbookRows(path string) ([][]string, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open workbook %s: %w", path, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unable to read workbook %s: %w", path, err)
	}
	return rows, nil
}

func resolveColumns(headers map[string]int, columns map[string][]string) (map[string]int, []string) {
	idx := make(map[string]int, len(columns))
	missing := []string{}
	for canonical, names := range columns {
		pos, ok := findColumn(headers, names)
		if !ok {
			missing = append(missing, canonical)
			continue
		}
		idx[canonical] = pos
	}
	sort.Strings(missing)
	return idx, missing
}

func normalizeHeaders(headers []string) map[string]int {
	result := make(map[string]int, len(headers))
	for idx, header := range headers {
		normalized := normalizeHeader(header)
		if _, exists := result[normalized]; !exists {
			result[normalized] = idx
		}
	}
	return result
}

func normalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}

func findColumn(headers map[string]int, names []string) (int, bool) {
	for _, name := range names {
		if idx, ok := headers[normalizeHeader(name)]; ok {
			return idx, true
		}
	}
	return -1, false
}

func getValue(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// parseDate accepts the layouts seen across roster exports. Day-first
// layouts are tried before month-first, matching how the rosters are
// produced (dd/mm/yyyy locales).
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	layouts := []string{
		"2006-01-02",
		"2006/01/02",
		"02/01/2006",
		"2/1/2006",
		"02-01-2006",
		"02/01/06",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05Z07:00",
		"02/01/2006 15:04",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %s", value)
}
