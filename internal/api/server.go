package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tasktusk/internal/offline"
	"tasktusk/internal/tasks"
)

// Service is the application surface exposed over HTTP.
type Service interface {
	ListTasks(ctx context.Context) ([]tasks.ScoredTask, error)
	CreateTask(ctx context.Context, t tasks.Task) (tasks.Task, error)
	UpdateTask(ctx context.Context, t tasks.Task) (tasks.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ExportTasks(ctx context.Context) ([]tasks.Task, error)
	ImportTasks(ctx context.Context, list []tasks.Task) (int, error)
	CacheStatus(ctx context.Context) (offline.Status, error)
	RefreshCache(ctx context.Context) (offline.Status, error)
}

// NewServer builds the router: the task and cache-admin API under /api/v1,
// and the offline gateway as the catch-all for everything else.
func NewServer(svc Service, gateway http.Handler) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("TaskTusk API", "1.0.0")
	api := humachi.New(router, cfg)

	registerTaskHandlers(api, svc)
	registerCacheHandlers(api, svc)

	if gateway != nil {
		router.Handle("/*", gateway)
	}

	return router
}

type taskBody struct {
	Emoji      string  `json:"emoji,omitempty" maxLength:"16"`
	Text       string  `json:"text" minLength:"1" maxLength:"500"`
	Priority   float64 `json:"priority" minimum:"0" maximum:"10"`
	Desire     float64 `json:"desire" minimum:"0" maximum:"10"`
	Difficulty float64 `json:"difficulty" minimum:"0" maximum:"10"`
	Percent    float64 `json:"percent" minimum:"0" maximum:"100" doc:"Effort already done, in percent"`
}

func (b taskBody) task(id string) tasks.Task {
	return tasks.Task{
		ID:         id,
		Emoji:      b.Emoji,
		Text:       b.Text,
		Priority:   b.Priority,
		Desire:     b.Desire,
		Difficulty: b.Difficulty,
		Percent:    b.Percent,
	}
}

func registerTaskHandlers(api huma.API, svc Service) {
	type taskListOutput struct {
		Body struct {
			Tasks []tasks.ScoredTask `json:"tasks"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-tasks", Method: http.MethodGet, Path: "/api/v1/tasks", Summary: "List tasks sorted by score", Tags: []string{"Tasks"}},
		func(ctx context.Context, input *struct{}) (*taskListOutput, error) {
			list, err := svc.ListTasks(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &taskListOutput{}
			out.Body.Tasks = list
			return out, nil
		})

	type taskOutput struct {
		Body tasks.Task
	}
	huma.Register(api, huma.Operation{OperationID: "create-task", Method: http.MethodPost, Path: "/api/v1/tasks", Summary: "Create a task", Tags: []string{"Tasks"}},
		func(ctx context.Context, input *struct{ Body taskBody }) (*taskOutput, error) {
			created, err := svc.CreateTask(ctx, input.Body.task(""))
			if err != nil {
				return nil, mapErr(err)
			}
			return &taskOutput{Body: created}, nil
		})

	type taskIDInput struct {
		TaskID string `path:"task_id"`
	}
	huma.Register(api, huma.Operation{OperationID: "update-task", Method: http.MethodPut, Path: "/api/v1/tasks/{task_id}", Summary: "Update a task", Tags: []string{"Tasks"}},
		func(ctx context.Context, input *struct {
			TaskID string `path:"task_id"`
			Body   taskBody
		}) (*taskOutput, error) {
			updated, err := svc.UpdateTask(ctx, input.Body.task(input.TaskID))
			if err != nil {
				return nil, mapErr(err)
			}
			return &taskOutput{Body: updated}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-task", Method: http.MethodDelete, Path: "/api/v1/tasks/{task_id}", Summary: "Delete a task", Tags: []string{"Tasks"}},
		func(ctx context.Context, input *taskIDInput) (*struct{}, error) {
			if err := svc.DeleteTask(ctx, input.TaskID); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})

	type exportOutput struct {
		Body []tasks.Task
	}
	huma.Register(api, huma.Operation{OperationID: "export-tasks", Method: http.MethodGet, Path: "/api/v1/tasks/export", Summary: "Export the raw task list", Tags: []string{"Tasks"}},
		func(ctx context.Context, input *struct{}) (*exportOutput, error) {
			list, err := svc.ExportTasks(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &exportOutput{Body: list}, nil
		})

	type importOutput struct {
		Body struct {
			Imported int `json:"imported"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "import-tasks", Method: http.MethodPost, Path: "/api/v1/tasks/import", Summary: "Replace the task list from an export file", Tags: []string{"Tasks"}},
		func(ctx context.Context, input *struct{ Body []tasks.Task }) (*importOutput, error) {
			n, err := svc.ImportTasks(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &importOutput{}
			out.Body.Imported = n
			return out, nil
		})
}

func registerCacheHandlers(api huma.API, svc Service) {
	type statusOutput struct {
		Body offline.Status
	}
	huma.Register(api, huma.Operation{OperationID: "cache-status", Method: http.MethodGet, Path: "/api/v1/cache/status", Summary: "Current cache generation and serving counters", Tags: []string{"Cache"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			st, err := svc.CacheStatus(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: st}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "cache-refresh", Method: http.MethodPost, Path: "/api/v1/cache/refresh", Summary: "Re-run cache install and activation", Tags: []string{"Cache"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			st, err := svc.RefreshCache(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: st}, nil
		})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, tasks.ErrNotFound) {
		return huma.Error404NotFound(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
