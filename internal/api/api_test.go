package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ravenlake/draftforge/internal/apperr"
	"github.com/ravenlake/draftforge/internal/models"
	"github.com/ravenlake/draftforge/internal/notify"
	"github.com/ravenlake/draftforge/internal/pipeline"
	"github.com/ravenlake/draftforge/internal/store"
	"github.com/ravenlake/draftforge/internal/testutil"
)

type fakeCaller struct {
	err    error
	stages []models.DocumentType
}

func (f *fakeCaller) DispatchStage(_ context.Context, stage models.DocumentType, _ pipeline.StagePayload) error {
	f.stages = append(f.stages, stage)
	return f.err
}

type testAPI struct {
	db     *store.DB
	caller *fakeCaller
	srv    *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db := testutil.TestDB(t)
	caller := &fakeCaller{}
	notifier := notify.NewService(db, nil, nil)
	h := NewHandler(db,
		pipeline.NewDispatcher(db, caller, "Ravenlake", nil),
		pipeline.NewIngest(db, notifier, nil),
		notifier)
	srv := httptest.NewServer(NewRouter(h, false, "", nil))
	t.Cleanup(srv.Close)
	return &testAPI{db: db, caller: caller, srv: srv}
}

// do issues a request and decodes the JSON response into a generic map.
func (a *testAPI) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, decoded
}

func (a *testAPI) createProject(t *testing.T, name string) string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/projects", map[string]string{
		"name":       name,
		"input":      "build a billing portal",
		"input_type": "text",
	})
	if status != http.StatusCreated {
		t.Fatalf("create project status = %d, body = %v", status, body)
	}
	project := body["project"].(map[string]any)
	return project["project_id"].(string)
}

func TestCreateProjectReturnsProjectAndDocument(t *testing.T) {
	a := newTestAPI(t)

	status, body := a.do(t, http.MethodPost, "/projects", map[string]string{
		"name":  "portal",
		"input": "build a billing portal",
	})
	if status != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	project := body["project"].(map[string]any)
	if project["status"] != string(models.StatusCreated) {
		t.Errorf("project status = %v, want created", project["status"])
	}
	if project["total_documents"] != float64(1) {
		t.Errorf("total_documents = %v, want 1", project["total_documents"])
	}
	doc := body["document"].(map[string]any)
	if doc["type"] != string(models.DocRawInput) || doc["version"] != float64(1) {
		t.Errorf("document = %v, want RAW_INPUT v1", doc)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	a := newTestAPI(t)
	status, _ := a.do(t, http.MethodPost, "/projects", map[string]string{"input": "no name"})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestGetProjectNotFound(t *testing.T) {
	a := newTestAPI(t)
	status, body := a.do(t, http.MethodGet, "/projects/ghost", nil)
	if status != http.StatusNotFound {
		t.Errorf("status = %d, body = %v, want 404", status, body)
	}
}

// Create a project, dispatch the requirements stage, deliver its completion,
// and observe the status cycle plus the resulting document and notification.
func TestPipelineRoundTrip(t *testing.T) {
	a := newTestAPI(t)
	id := a.createProject(t, "roundtrip")

	status, body := a.do(t, http.MethodPost, "/projects/"+id+"/dispatch", map[string]any{
		"stage": "REQUIREMENTS",
	})
	if status != http.StatusAccepted {
		t.Fatalf("dispatch status = %d, body = %v", status, body)
	}
	if body["status"] != string(models.StatusProcessing) {
		t.Errorf("dispatch response status = %v", body["status"])
	}

	status, project := a.do(t, http.MethodGet, "/projects/"+id, nil)
	if status != http.StatusOK || project["status"] != string(models.StatusProcessing) {
		t.Fatalf("project after dispatch = %v", project)
	}

	completion := map[string]any{
		"project_info": map[string]string{"id": id},
		"requirements": []string{"user login", "billing export"},
		"constraints":  []string{"GDPR"},
	}
	status, doc := a.do(t, http.MethodPost, "/completions", completion)
	if status != http.StatusCreated {
		t.Fatalf("completion status = %d, body = %v", status, doc)
	}
	if doc["type"] != string(models.DocRequirements) || doc["version"] != float64(1) {
		t.Errorf("completion document = %v", doc)
	}

	status, project = a.do(t, http.MethodGet, "/projects/"+id, nil)
	if status != http.StatusOK || project["status"] != string(models.StatusCompleted) {
		t.Fatalf("project after completion = %v", project)
	}
	if project["total_documents"] != float64(2) {
		t.Errorf("total_documents = %v, want 2", project["total_documents"])
	}

	status, docs := a.do(t, http.MethodGet, "/projects/"+id+"/documents", nil)
	if status != http.StatusOK || docs["total"] != float64(2) {
		t.Errorf("documents = %v", docs)
	}

	status, count := a.do(t, http.MethodGet, "/notifications/count", nil)
	if status != http.StatusOK || count["unread"] != float64(1) {
		t.Errorf("unread = %v", count)
	}
}

func TestDispatchMissingPrerequisiteIs404(t *testing.T) {
	a := newTestAPI(t)
	id := a.createProject(t, "nopre")

	status, _ := a.do(t, http.MethodPost, "/projects/"+id+"/dispatch", map[string]any{"stage": "BRD"})
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
	if len(a.caller.stages) != 0 {
		t.Error("outbound call issued despite missing prerequisite")
	}
}

func TestDispatchFailureIs502(t *testing.T) {
	a := newTestAPI(t)
	id := a.createProject(t, "down")
	a.caller.err = fmt.Errorf("%w: connection refused", apperr.ErrDispatch)

	status, _ := a.do(t, http.MethodPost, "/projects/"+id+"/dispatch", map[string]any{"stage": "REQUIREMENTS"})
	if status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", status)
	}
	_, project := a.do(t, http.MethodGet, "/projects/"+id, nil)
	if project["status"] != string(models.StatusCreated) {
		t.Errorf("status = %v, want created (rolled back)", project["status"])
	}
}

func TestDispatchUnknownStageIs400(t *testing.T) {
	a := newTestAPI(t)
	id := a.createProject(t, "badstage")
	status, _ := a.do(t, http.MethodPost, "/projects/"+id+"/dispatch", map[string]any{"stage": "RAW_INPUT"})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestIngestMalformedIs400(t *testing.T) {
	a := newTestAPI(t)
	status, _ := a.do(t, http.MethodPost, "/completions", map[string]any{"preferred_format": "md"})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestUpdateDocumentIfMatch(t *testing.T) {
	a := newTestAPI(t)
	id := a.createProject(t, "ifmatch")

	_, docs := a.do(t, http.MethodGet, "/projects/"+id+"/documents", nil)
	doc := docs["documents"].([]any)[0].(map[string]any)
	docID := doc["document_id"].(string)
	checksum := doc["checksum"].(string)

	// Stale token is rejected.
	req, _ := http.NewRequest(http.MethodPut, a.srv.URL+"/projects/"+id+"/documents/"+docID,
		bytes.NewReader(updateBody(t)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("If-Match", `"deadbeef"`)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("stale If-Match status = %d, want 409", resp.StatusCode)
	}

	// Current token is accepted.
	req, _ = http.NewRequest(http.MethodPut, a.srv.URL+"/projects/"+id+"/documents/"+docID,
		bytes.NewReader(updateBody(t)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("If-Match", `"`+checksum+`"`)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("matching If-Match status = %d, want 200", resp.StatusCode)
	}
}

func TestCreateVersionEndpoint(t *testing.T) {
	a := newTestAPI(t)
	id := a.createProject(t, "versions")

	_, docs := a.do(t, http.MethodGet, "/projects/"+id+"/documents", nil)
	docID := docs["documents"].([]any)[0].(map[string]any)["document_id"].(string)

	status, doc := a.do(t, http.MethodPost, "/projects/"+id+"/documents/"+docID+"/versions",
		map[string]any{"content": json.RawMessage(testutil.RawInputJSON("revised input"))})
	if status != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", status, doc)
	}
	if doc["version"] != float64(2) {
		t.Errorf("version = %v, want 2", doc["version"])
	}
	if doc["parent_document_id"] != docID {
		t.Errorf("parent = %v, want %s", doc["parent_document_id"], docID)
	}
}

func TestNotificationFeedOperations(t *testing.T) {
	a := newTestAPI(t)

	status, created := a.do(t, http.MethodPost, "/notifications", map[string]string{
		"title":   "Maintenance window",
		"message": "tonight",
	})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, body = %v", status, created)
	}
	nid := created["notification_id"].(string)
	if created["type"] != string(models.NotifSystem) {
		t.Errorf("type = %v, want SYSTEM", created["type"])
	}

	status, read := a.do(t, http.MethodPut, "/notifications/"+nid+"/read", nil)
	if status != http.StatusOK || read["status"] != string(models.NotifRead) {
		t.Errorf("mark read = %d %v", status, read)
	}
	// Idempotent.
	status, _ = a.do(t, http.MethodPut, "/notifications/"+nid+"/read", nil)
	if status != http.StatusOK {
		t.Errorf("second mark read status = %d", status)
	}

	status, all := a.do(t, http.MethodPut, "/notifications/read-all", nil)
	if status != http.StatusOK || all["updated"] != float64(0) {
		t.Errorf("read-all = %d %v", status, all)
	}

	status, archived := a.do(t, http.MethodPut, "/notifications/"+nid+"/archive", nil)
	if status != http.StatusOK || archived["status"] != string(models.NotifArchived) {
		t.Errorf("archive = %d %v", status, archived)
	}

	status, list := a.do(t, http.MethodGet, "/notifications", nil)
	if status != http.StatusOK || list["total"] != float64(0) {
		t.Errorf("list after archive = %v", list)
	}
	status, list = a.do(t, http.MethodGet, "/notifications?include_archived=true", nil)
	if status != http.StatusOK || list["total"] != float64(1) {
		t.Errorf("list with archived = %v", list)
	}

	status, _ = a.do(t, http.MethodDelete, "/notifications/cleanup", nil)
	if status != http.StatusBadRequest {
		t.Errorf("cleanup without daysOld status = %d, want 400", status)
	}
	status, removed := a.do(t, http.MethodDelete, "/notifications/cleanup?daysOld=30", nil)
	if status != http.StatusOK || removed["removed"] != float64(0) {
		t.Errorf("cleanup = %d %v", status, removed)
	}
}

func TestAuthMiddleware(t *testing.T) {
	db := testutil.TestDB(t)
	notifier := notify.NewService(db, nil, nil)
	h := NewHandler(db,
		pipeline.NewDispatcher(db, &fakeCaller{}, "", nil),
		pipeline.NewIngest(db, notifier, nil),
		notifier)
	srv := httptest.NewServer(NewRouter(h, true, "secret-token", nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/projects")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/projects", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", resp.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", resp.StatusCode)
	}
}

func updateBody(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"content": json.RawMessage(testutil.RawInputJSON("edited input")),
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}
