package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tasktusk/internal/offline"
	"tasktusk/internal/tasks"
)

type stubService struct {
	deleted string
}

func (s *stubService) ListTasks(ctx context.Context) ([]tasks.ScoredTask, error) {
	return []tasks.ScoredTask{
		{Task: tasks.Task{ID: "t1", Text: "water plants", Priority: 5}, Score: 12.3, Color: "rgb(255, 196, 69)"},
	}, nil
}

func (s *stubService) CreateTask(ctx context.Context, t tasks.Task) (tasks.Task, error) {
	t.ID = "new-id"
	return t, nil
}

func (s *stubService) UpdateTask(ctx context.Context, t tasks.Task) (tasks.Task, error) {
	if t.ID != "t1" {
		return tasks.Task{}, tasks.ErrNotFound
	}
	return t, nil
}

func (s *stubService) DeleteTask(ctx context.Context, id string) error {
	if id != "t1" {
		return tasks.ErrNotFound
	}
	s.deleted = id
	return nil
}

func (s *stubService) ExportTasks(ctx context.Context) ([]tasks.Task, error) {
	return []tasks.Task{{ID: "t1", Text: "water plants"}}, nil
}

func (s *stubService) ImportTasks(ctx context.Context, list []tasks.Task) (int, error) {
	return len(list), nil
}

func (s *stubService) CacheStatus(ctx context.Context) (offline.Status, error) {
	return offline.Status{Generation: "tasktusk-v1.02", Entries: 7}, nil
}

func (s *stubService) RefreshCache(ctx context.Context) (offline.Status, error) {
	return offline.Status{Generation: "tasktusk-v1.02", Entries: 7}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, rd)
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestListTasks(t *testing.T) {
	h := NewServer(&stubService{}, nil)

	w := do(t, h, http.MethodGet, "/api/v1/tasks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "water plants") {
		t.Errorf("body = %q; want task list", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "rgb(255, 196, 69)") {
		t.Errorf("body = %q; want score color included", w.Body.String())
	}
}

func TestCreateTask(t *testing.T) {
	h := NewServer(&stubService{}, nil)

	w := do(t, h, http.MethodPost, "/api/v1/tasks", `{"text":"new task","priority":5,"desire":5,"difficulty":5,"percent":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "new-id") {
		t.Errorf("body = %q; want generated id", w.Body.String())
	}
}

func TestCreateTaskRejectsEmptyText(t *testing.T) {
	h := NewServer(&stubService{}, nil)

	w := do(t, h, http.MethodPost, "/api/v1/tasks", `{"text":"","priority":5,"desire":5,"difficulty":5,"percent":0}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d; want 422 validation failure", w.Code)
	}
}

func TestCreateTaskRejectsOutOfRangeScore(t *testing.T) {
	h := NewServer(&stubService{}, nil)

	w := do(t, h, http.MethodPost, "/api/v1/tasks", `{"text":"x","priority":15,"desire":5,"difficulty":5,"percent":0}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d; want 422 validation failure", w.Code)
	}
}

func TestDeleteTaskNotFound(t *testing.T) {
	h := NewServer(&stubService{}, nil)

	w := do(t, h, http.MethodDelete, "/api/v1/tasks/unknown", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
}

func TestDeleteTask(t *testing.T) {
	svc := &stubService{}
	h := NewServer(svc, nil)

	w := do(t, h, http.MethodDelete, "/api/v1/tasks/t1", "")
	if w.Code != http.StatusOK && w.Code != http.StatusNoContent {
		t.Fatalf("status = %d; want success", w.Code)
	}
	if svc.deleted != "t1" {
		t.Errorf("deleted = %q; want t1", svc.deleted)
	}
}

func TestImportTasks(t *testing.T) {
	h := NewServer(&stubService{}, nil)

	w := do(t, h, http.MethodPost, "/api/v1/tasks/import", `[{"id":"a","text":"one"},{"id":"b","text":"two"}]`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"imported":2`) {
		t.Errorf("body = %q; want imported count", w.Body.String())
	}
}

func TestCacheStatus(t *testing.T) {
	h := NewServer(&stubService{}, nil)

	w := do(t, h, http.MethodGet, "/api/v1/cache/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tasktusk-v1.02") {
		t.Errorf("body = %q; want current generation name", w.Body.String())
	}
}

func TestGatewayCatchAll(t *testing.T) {
	gateway := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "gateway:"+r.URL.Path)
	})
	h := NewServer(&stubService{}, gateway)

	w := do(t, h, http.MethodGet, "/index.html", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if w.Body.String() != "gateway:/index.html" {
		t.Errorf("body = %q; want gateway passthrough", w.Body.String())
	}

	// API paths must not fall through to the gateway.
	w = do(t, h, http.MethodGet, "/api/v1/tasks", "")
	if strings.Contains(w.Body.String(), "gateway:") {
		t.Errorf("API path hit the gateway: %q", w.Body.String())
	}
}
