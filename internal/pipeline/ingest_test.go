package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ravenlake/draftforge/internal/apperr"
	"github.com/ravenlake/draftforge/internal/models"
	"github.com/ravenlake/draftforge/internal/notify"
	"github.com/ravenlake/draftforge/internal/store"
	"github.com/ravenlake/draftforge/internal/testutil"
)

func newIngest(t *testing.T, db *store.DB) *Ingest {
	t.Helper()
	return NewIngest(db, notify.NewService(db, nil, nil), nil)
}

func requirementsCompletion(projectID string) []byte {
	return []byte(fmt.Sprintf(`{
		"project_info": {"id": %q},
		"requirements": ["user login", "billing export"],
		"constraints": ["GDPR"],
		"preferred_format": "markdown"
	}`, projectID))
}

func TestHandleCompletionFullCycle(t *testing.T) {
	db := testutil.TestDB(t)
	project, _ := testutil.SeedProject(t, db, "cycle")
	if err := db.SetProjectStatus(project.ID, models.StatusProcessing); err != nil {
		t.Fatal(err)
	}

	ig := newIngest(t, db)
	doc, err := ig.HandleCompletion(requirementsCompletion(project.ID))
	if err != nil {
		t.Fatalf("HandleCompletion: %v", err)
	}
	if doc.Type != models.DocRequirements || doc.Version != 1 {
		t.Errorf("doc = %s v%d, want REQUIREMENTS v1", doc.Type, doc.Version)
	}

	got, _ := db.GetProject(project.ID)
	if got.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.TotalDocuments != 2 {
		t.Errorf("totalDocuments = %d, want 2", got.TotalDocuments)
	}

	notes, _, err := db.ListNotifications(10, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].Status != models.NotifUnread || notes[0].ProjectID != project.ID {
		t.Errorf("notification = %+v", notes[0])
	}
}

func TestHandleCompletionBareProjectIDConvention(t *testing.T) {
	db := testutil.TestDB(t)
	project, _ := testutil.SeedProject(t, db, "bare")
	ig := newIngest(t, db)

	body := []byte(fmt.Sprintf(`{"project_id": %q, "brd": "## Business Requirements"}`, project.ID))
	doc, err := ig.HandleCompletion(body)
	if err != nil {
		t.Fatalf("HandleCompletion: %v", err)
	}
	if doc.Type != models.DocBRD || doc.ProjectID != project.ID {
		t.Errorf("doc = %+v", doc)
	}
}

// project_info.id takes precedence when both conventions are present.
func TestHandleCompletionIDPrecedence(t *testing.T) {
	db := testutil.TestDB(t)
	project, _ := testutil.SeedProject(t, db, "precedence")
	ig := newIngest(t, db)

	body := []byte(fmt.Sprintf(`{
		"project_info": {"id": %q},
		"project_id": "other-id",
		"blueprint": {"modules": []}
	}`, project.ID))
	doc, err := ig.HandleCompletion(body)
	if err != nil {
		t.Fatal(err)
	}
	if doc.ProjectID != project.ID {
		t.Errorf("projectID = %q, want %q", doc.ProjectID, project.ID)
	}
}

func TestHandleCompletionAutoProvisionsProject(t *testing.T) {
	db := testutil.TestDB(t)
	ig := newIngest(t, db)

	const id = "external-7f3a9b21"
	if _, err := ig.HandleCompletion(requirementsCompletion(id)); err != nil {
		t.Fatalf("HandleCompletion: %v", err)
	}

	project, err := db.GetProject(id)
	if err != nil {
		t.Fatalf("placeholder project missing: %v", err)
	}
	if project.Name != "Project external" {
		t.Errorf("name = %q, want %q", project.Name, "Project external")
	}
	if project.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", project.Status)
	}
}

func TestHandleCompletionRejectsMalformed(t *testing.T) {
	db := testutil.TestDB(t)
	project, _ := testutil.SeedProject(t, db, "malformed")
	if err := db.SetProjectStatus(project.ID, models.StatusProcessing); err != nil {
		t.Fatal(err)
	}
	ig := newIngest(t, db)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"project_id": `},
		{"no stage field", fmt.Sprintf(`{"project_id": %q, "preferred_format": "md"}`, project.ID)},
		{"null stage field", fmt.Sprintf(`{"project_id": %q, "brd": null}`, project.ID)},
		{"missing project id", `{"requirements": ["a"]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ig.HandleCompletion([]byte(tc.body)); !errors.Is(err, apperr.ErrIngest) {
				t.Errorf("err = %v, want ErrIngest", err)
			}
		})
	}

	// A project that dispatched and never receives a valid completion
	// stays processing.
	got, _ := db.GetProject(project.ID)
	if got.Status != models.StatusProcessing {
		t.Errorf("status = %s, want processing (untouched)", got.Status)
	}
	docs, _ := db.ListByProject(project.ID)
	if len(docs) != 1 {
		t.Errorf("documents = %d, want 1", len(docs))
	}
}

func TestHandleCompletionDuplicateProducesNewVersion(t *testing.T) {
	db := testutil.TestDB(t)
	project, _ := testutil.SeedProject(t, db, "dup")
	ig := newIngest(t, db)

	first, err := ig.HandleCompletion(requirementsCompletion(project.ID))
	if err != nil {
		t.Fatal(err)
	}
	second, err := ig.HandleCompletion(requirementsCompletion(project.ID))
	if err != nil {
		t.Fatal(err)
	}
	if first.Version != 1 || second.Version != 2 {
		t.Errorf("versions = %d, %d, want 1, 2", first.Version, second.Version)
	}
	if second.ParentDocumentID != first.ID {
		t.Errorf("second parent = %q, want %s", second.ParentDocumentID, first.ID)
	}

	latest, err := db.Latest(project.ID, models.DocRequirements)
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != second.ID {
		t.Errorf("latest = %s, want the later completion", latest.ID)
	}
}
