// Package projects serves project and user lookups through the cache facade.
package projects

import (
	"context"
	"time"

	"github.com/collabify/cachekit/internal/cache"
)

const (
	ProjectDetailsOp  = "get_project_details"
	UserInfoOp        = "get_user_info"
	ProjectDetailsTTL = 120 * time.Second
	UserInfoTTL       = 60 * time.Second
)

type Service struct {
	facade         *cache.Facade
	projectDetails cache.Operation[ProjectDetails]
	userInfo       cache.Operation[UserInfo]
}

func NewService(facade *cache.Facade, src Source) *Service {
	return &Service{
		facade: facade,
		projectDetails: cache.Memoize(facade, ProjectDetailsOp, ProjectDetailsTTL,
			func(ctx context.Context, args ...any) (ProjectDetails, error) {
				return src.ProjectDetails(ctx, args[0].(string))
			}),
		userInfo: cache.Memoize(facade, UserInfoOp, UserInfoTTL,
			func(ctx context.Context, args ...any) (UserInfo, error) {
				return src.UserInfo(ctx, args[0].(string))
			}),
	}
}

func (s *Service) ProjectDetails(ctx context.Context, projectID string) (ProjectDetails, error) {
	return s.projectDetails(ctx, projectID)
}

func (s *Service) UserInfo(ctx context.Context, userSub string) (UserInfo, error) {
	return s.userInfo(ctx, userSub)
}

// InvalidateProjects drops every cached project lookup.
func (s *Service) InvalidateProjects(ctx context.Context) int {
	return s.facade.Invalidate(ctx, ProjectDetailsOp+":")
}

// InvalidateUsers drops every cached user lookup.
func (s *Service) InvalidateUsers(ctx context.Context) int {
	return s.facade.Invalidate(ctx, UserInfoOp+":")
}
