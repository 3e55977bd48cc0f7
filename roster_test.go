package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempCSV(t *testing.T, name string, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadUsersNormalizesAndDedupes(t *testing.T) {
	csvData := "ID_Usuario, Id_Jefatura ,Nombre,Correo,Ultimo_Login\n" +
		"U1,J1,Ana Torres,  ANA.TORRES@X.COM ,2026-01-15\n" +
		"U1,J1,Ana Duplicada,dup@x.com,2026-01-16\n" +
		"U2,J2,Luis Rojas,luis@x.com,15/01/2026\n" +
		"U3,J2,Maria Vega,maria@x.com,not-a-date\n" +
		",J2,Sin Id,noid@x.com,2026-01-15\n"

	path := writeTempCSV(t, "usuarios.csv", csvData)

	users, stats, err := loadUsers(path)
	if err != nil {
		t.Fatalf("load users: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	if stats.DuplicateRows != 1 {
		t.Fatalf("expected 1 duplicate row, got %d", stats.DuplicateRows)
	}
	if stats.InvalidRows != 1 {
		t.Fatalf("expected 1 invalid row, got %d", stats.InvalidRows)
	}
	if stats.ParseWarnings != 1 {
		t.Fatalf("expected 1 parse warning, got %d", stats.ParseWarnings)
	}

	if users[0].Name != "Ana Torres" {
		t.Fatalf("first occurrence must win, got %q", users[0].Name)
	}
	if users[0].Email != "ana.torres@x.com" {
		t.Fatalf("email not normalized: %q", users[0].Email)
	}

	want := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	if !users[0].LastLogin.Equal(want) {
		t.Fatalf("ISO date: expected %v, got %v", want, users[0].LastLogin)
	}
	if !users[1].LastLogin.Equal(want) {
		t.Fatalf("day-first date: expected %v, got %v", want, users[1].LastLogin)
	}
	if !users[2].LastLogin.IsZero() {
		t.Fatalf("unparseable date must degrade to zero time, got %v", users[2].LastLogin)
	}
}

func TestLoadUsersAcceptsEnglishHeaders(t *testing.T) {
	csvData := "user_id,manager_id,name,email,last_login\n" +
		"U1,J1,Ana,ana@x.com,2026-01-15\n"
	path := writeTempCSV(t, "users.csv", csvData)

	users, _, err := loadUsers(path)
	if err != nil {
		t.Fatalf("load users: %v", err)
	}
	if len(users) != 1 || users[0].ManagerID != "J1" {
		t.Fatalf("unexpected result: %+v", users)
	}
}

func TestLoadUsersMissingColumnsIsSchemaError(t *testing.T) {
	csvData := "id_usuario,nombre,correo\nU1,Ana,ana@x.com\n"
	path := writeTempCSV(t, "usuarios.csv", csvData)

	_, _, err := loadUsers(path)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if len(schemaErr.Missing) != 2 {
		t.Fatalf("expected 2 missing columns, got %v", schemaErr.Missing)
	}
}

func TestLoadManagersDedupesByID(t *testing.T) {
	csvData := "id_jefatura,nombre,correo\n" +
		"J1,Ana,ANA@X.COM\n" +
		"J1,Ana Otra,otra@x.com\n" +
		"J2,Carlos,carlos@x.com\n" +
		",Sin Id,noid@x.com\n"
	path := writeTempCSV(t, "jefatura.csv", csvData)

	managers, stats, err := loadManagers(path)
	if err != nil {
		t.Fatalf("load managers: %v", err)
	}
	if len(managers) != 2 {
		t.Fatalf("expected 2 managers, got %d", len(managers))
	}
	if stats.DuplicateRows != 1 || stats.InvalidRows != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if managers["J1"].Name != "Ana" {
		t.Fatalf("first occurrence must win, got %q", managers["J1"].Name)
	}
	if managers["J1"].Email != "ana@x.com" {
		t.Fatalf("manager email not normalized: %q", managers["J1"].Email)
	}
}

func TestParseDateDayFirstBeforeMonthFirst(t *testing.T) {
	parsed, err := parseDate("03/02/2026")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	want := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	if !parsed.Equal(want) {
		t.Fatalf("expected day-first %v, got %v", want, parsed)
	}
}
