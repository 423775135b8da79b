// Package testutil provides shared test helpers for setting up databases
// and seed data.
package testutil

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/ravenlake/draftforge/internal/models"
	"github.com/ravenlake/draftforge/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "draftforge-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// SeedProject creates a project with a RAW_INPUT v1 document and returns both.
func SeedProject(t *testing.T, db *store.DB, name string) (models.Project, models.Document) {
	t.Helper()
	content, err := models.ParseContent(models.DocRawInput, RawInputJSON("build a billing portal"))
	if err != nil {
		t.Fatalf("ParseContent: %v", err)
	}
	project, doc, err := db.CreateProject(models.Project{
		Name:      name,
		Input:     "build a billing portal",
		InputType: "text",
	}, content)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return project, doc
}

// RawInputJSON builds a RAW_INPUT content payload.
func RawInputJSON(input string) []byte {
	data, _ := json.Marshal(models.RawInputContent{Input: input, InputType: "text"})
	return data
}

// RequirementsJSON builds a REQUIREMENTS content payload.
func RequirementsJSON(requirements string) []byte {
	req, _ := json.Marshal(requirements)
	data, _ := json.Marshal(models.RequirementsContent{Requirements: req})
	return data
}

// BRDJSON builds a BRD content payload.
func BRDJSON(brd string) []byte {
	raw, _ := json.Marshal(brd)
	data, _ := json.Marshal(models.BRDContent{BRD: raw})
	return data
}
