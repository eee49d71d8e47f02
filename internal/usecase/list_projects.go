package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/runoshun/tracksync/internal/domain"
)

// ListProjectsInput contains the parameters for listing projects.
type ListProjectsInput struct{}

// ListProjectsOutput contains the projects.
type ListProjectsOutput struct {
	Projects []domain.Project
	Cached   bool // Served from the local cache because the server was unreachable
}

// ListProjects is the use case for listing projects.
type ListProjects struct {
	api domain.TimeEntryAPI
	kv  domain.KeyValueStore
	log domain.Logger
}

// NewListProjects creates a new ListProjects use case.
func NewListProjects(api domain.TimeEntryAPI, kv domain.KeyValueStore, log domain.Logger) *ListProjects {
	return &ListProjects{api: api, kv: kv, log: log}
}

// Execute fetches the projects and refreshes the local cache.
// On a network failure the cached list is returned instead.
func (uc *ListProjects) Execute(ctx context.Context, _ ListProjectsInput) (*ListProjectsOutput, error) {
	projects, err := uc.api.ListProjects(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNetwork) {
			cached, cacheErr := uc.cached()
			if cacheErr == nil && len(cached) > 0 {
				uc.log.Warn("cli", "server unreachable, using cached projects")
				return &ListProjectsOutput{Projects: cached, Cached: true}, nil
			}
		}
		return nil, fmt.Errorf("list projects: %w", err)
	}

	if data, err := json.Marshal(projects); err == nil {
		if err := uc.kv.Set(domain.KeyProjects, data); err != nil {
			uc.log.Warn("store", fmt.Sprintf("cache projects: %v", err))
		}
	}
	return &ListProjectsOutput{Projects: projects}, nil
}

func (uc *ListProjects) cached() ([]domain.Project, error) {
	data, err := uc.kv.Get(domain.KeyProjects)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	var projects []domain.Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// FindProject returns the project with id, looking in the cache first and
// then on the server. When the server is unreachable the project is
// returned with its id only.
func (uc *ListProjects) FindProject(ctx context.Context, id string) (domain.Project, error) {
	if id == "" {
		return domain.Project{}, domain.ErrProjectRequired
	}
	if cached, err := uc.cached(); err == nil {
		for _, p := range cached {
			if p.ID == id {
				return p, nil
			}
		}
	}
	out, err := uc.Execute(ctx, ListProjectsInput{})
	if errors.Is(err, domain.ErrNetwork) {
		// Offline: the id alone is enough to track time.
		uc.log.Warn("cli", fmt.Sprintf("project %s not resolved: %v", id, err))
		return domain.Project{ID: id}, nil
	}
	if err != nil {
		return domain.Project{}, err
	}
	for _, p := range out.Projects {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Project{}, fmt.Errorf("project %q not found", id)
}
