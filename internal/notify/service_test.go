package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ravenlake/draftforge/internal/apperr"
	"github.com/ravenlake/draftforge/internal/models"
	"github.com/ravenlake/draftforge/internal/sse"
	"github.com/ravenlake/draftforge/internal/testutil"
)

func TestNotifyStageCompletedTemplates(t *testing.T) {
	db := testutil.TestDB(t)
	project, _ := testutil.SeedProject(t, db, "templates")
	svc := NewService(db, nil, nil)

	cases := []struct {
		stage    models.DocumentType
		title    string
		priority models.NotificationPriority
	}{
		{models.DocRequirements, "Requirements ready", models.PriorityMedium},
		{models.DocBRD, "BRD ready", models.PriorityHigh},
		{models.DocBlueprint, "Blueprint ready", models.PriorityHigh},
	}
	for _, tc := range cases {
		if err := svc.NotifyStageCompleted(project.ID, tc.stage); err != nil {
			t.Fatalf("NotifyStageCompleted(%s): %v", tc.stage, err)
		}
	}

	items, total, err := svc.List(10, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if total != len(cases) {
		t.Fatalf("total = %d, want %d", total, len(cases))
	}
	// Newest first.
	for i, tc := range cases {
		n := items[len(items)-1-i]
		if n.Title != tc.title {
			t.Errorf("title = %q, want %q", n.Title, tc.title)
		}
		if n.Priority != tc.priority {
			t.Errorf("%s priority = %s, want %s", tc.stage, n.Priority, tc.priority)
		}
		if n.Status != models.NotifUnread {
			t.Errorf("status = %s, want unread", n.Status)
		}
		if !strings.Contains(n.Message, project.ID) {
			t.Errorf("message %q does not mention project", n.Message)
		}
	}
}

func TestNotifyStageCompletedRejectsRawInput(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, nil, nil)
	if err := svc.NotifyStageCompleted("p1", models.DocRawInput); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestCreateManualNotification(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, nil, nil)

	created, err := svc.Create(models.Notification{Title: "Maintenance window", Message: "tonight"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Type != models.NotifSystem {
		t.Errorf("type = %s, want SYSTEM default", created.Type)
	}
	if created.ID == "" || created.Status != models.NotifUnread {
		t.Errorf("created = %+v", created)
	}

	if _, err := svc.Create(models.Notification{Message: "no title"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("missing title err = %v, want ErrValidation", err)
	}
}

func TestUnreadCountPolling(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, nil, nil)

	before, err := svc.UnreadCount()
	if err != nil {
		t.Fatal(err)
	}
	if before != 0 {
		t.Fatalf("initial unread = %d", before)
	}

	n, err := svc.Create(models.Notification{Title: "one"})
	if err != nil {
		t.Fatal(err)
	}
	after, _ := svc.UnreadCount()
	if after != before+1 {
		t.Errorf("unread = %d, want %d", after, before+1)
	}

	if _, err := svc.MarkRead(n.ID); err != nil {
		t.Fatal(err)
	}
	final, _ := svc.UnreadCount()
	if final != before {
		t.Errorf("unread after read = %d, want %d", final, before)
	}
}

func TestCleanupValidatesDays(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, nil, nil)
	if _, err := svc.Cleanup(0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if removed, err := svc.Cleanup(30); err != nil || removed != 0 {
		t.Errorf("Cleanup(30) = %d, %v", removed, err)
	}
}

func TestPublishBroadcastsOverBroker(t *testing.T) {
	db := testutil.TestDB(t)
	broker := sse.NewBroker(time.Millisecond)
	defer broker.Close()
	svc := NewService(db, broker, nil)

	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	if _, err := svc.Create(models.Notification{Title: "pushed"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case msg := <-ch:
			for _, name := range []string{"notification.created", "unread_count"} {
				if strings.Contains(string(msg), "event: "+name) {
					seen[name] = true
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for events, saw %v", seen)
		}
	}
}
