package planner

import (
	"context"

	"tasktusk/internal/offline"
	"tasktusk/internal/tasks"
)

// Service bundles the task store and the offline cache controller behind the
// API surface.
type Service struct {
	store *tasks.Store
	cache *offline.Controller
}

func NewService(store *tasks.Store, cache *offline.Controller) *Service {
	return &Service{store: store, cache: cache}
}

func (s *Service) ListTasks(ctx context.Context) ([]tasks.ScoredTask, error) {
	return s.store.List(ctx)
}

func (s *Service) CreateTask(ctx context.Context, t tasks.Task) (tasks.Task, error) {
	return s.store.Create(ctx, t)
}

func (s *Service) UpdateTask(ctx context.Context, t tasks.Task) (tasks.Task, error) {
	return s.store.Update(ctx, t)
}

func (s *Service) DeleteTask(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *Service) ExportTasks(ctx context.Context) ([]tasks.Task, error) {
	return s.store.Export(ctx)
}

func (s *Service) ImportTasks(ctx context.Context, list []tasks.Task) (int, error) {
	return s.store.ReplaceAll(ctx, list)
}

func (s *Service) CacheStatus(ctx context.Context) (offline.Status, error) {
	return s.cache.Status()
}

// RefreshCache re-runs the install/activate lifecycle on demand.
func (s *Service) RefreshCache(ctx context.Context) (offline.Status, error) {
	s.cache.Install(ctx)
	s.cache.Activate()
	return s.cache.Status()
}
