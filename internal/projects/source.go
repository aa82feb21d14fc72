package projects

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/collabify/cachekit/internal/errors"
	"github.com/collabify/cachekit/internal/graphql"
)

type Task struct {
	ID         string `json:"_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	AssignedTo string `json:"assignedTo"`
}

type ProjectDetails struct {
	ProjectID   string `json:"projectId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tasks       []Task `json:"tasks"`
}

type UserInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Source is where uncached lookups go.
type Source interface {
	ProjectDetails(ctx context.Context, projectID string) (ProjectDetails, error)
	UserInfo(ctx context.Context, userSub string) (UserInfo, error)
}

// SampleSource returns fixed sample data after an artificial delay, standing
// in for a slow project service.
type SampleSource struct {
	ProjectDelay time.Duration
	UserDelay    time.Duration
}

func (s SampleSource) ProjectDetails(ctx context.Context, projectID string) (ProjectDetails, error) {
	slog.InfoContext(ctx, "Fetching project details from source", "project_id", projectID)
	if err := sleep(ctx, s.ProjectDelay); err != nil {
		return ProjectDetails{}, err
	}
	return ProjectDetails{
		ProjectID:   projectID,
		Name:        "Project " + projectID,
		Description: "This is an example project description",
		Tasks: []Task{
			{ID: "t1", Title: "Setup project", Status: "todo", Priority: "medium", AssignedTo: "auth0|user1"},
			{ID: "t2", Title: "Design UI", Status: "in-progress", Priority: "high", AssignedTo: "auth0|user2"},
			{ID: "t3", Title: "Write backend", Status: "done", Priority: "low", AssignedTo: "auth0|user1"},
		},
	}, nil
}

func (s SampleSource) UserInfo(ctx context.Context, userSub string) (UserInfo, error) {
	slog.InfoContext(ctx, "Fetching user info from source", "user_sub", userSub)
	if err := sleep(ctx, s.UserDelay); err != nil {
		return UserInfo{}, err
	}
	suffix := []rune(userSub)
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return UserInfo{
		Name:  "User " + string(suffix),
		Email: userSub + "@example.com",
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GraphQLSource looks projects and users up through the GraphQL API.
type GraphQLSource struct {
	client *graphql.Client
}

func NewGraphQLSource(client *graphql.Client) *GraphQLSource {
	return &GraphQLSource{client: client}
}

func (s *GraphQLSource) ProjectDetails(ctx context.Context, projectID string) (ProjectDetails, error) {
	p, err := s.client.Project(ctx, projectID)
	if err != nil {
		return ProjectDetails{}, err
	}
	if p == nil {
		return ProjectDetails{}, apperrors.NewNotFoundError(
			fmt.Sprintf("project %s not found", projectID), "PROJECT_NOT_FOUND", "Check the project id.")
	}

	details := ProjectDetails{
		ProjectID:   p.ProjectID,
		Name:        p.Name,
		Description: p.Description,
		Tasks:       make([]Task, 0, len(p.Tasks)),
	}
	for _, t := range p.Tasks {
		details.Tasks = append(details.Tasks, Task{
			ID:         t.ID,
			Title:      t.Title,
			Status:     t.Status,
			Priority:   t.Priority,
			AssignedTo: t.AssignedTo,
		})
	}
	return details, nil
}

func (s *GraphQLSource) UserInfo(ctx context.Context, userSub string) (UserInfo, error) {
	u, err := s.client.User(ctx, userSub)
	if err != nil {
		return UserInfo{}, err
	}
	if u == nil {
		return UserInfo{}, apperrors.NewNotFoundError(
			fmt.Sprintf("user %s not found", userSub), "USER_NOT_FOUND", "Check the user sub.")
	}
	return UserInfo{Name: u.Name, Email: u.Email}, nil
}
