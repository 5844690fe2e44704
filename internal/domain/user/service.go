package user

import (
	"context"
	"errors"
	"strings"

	"github.com/medibook/medibook/internal/platform/apperr"
	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/internal/platform/validate"
)

type Service struct {
	users Repository
}

func NewService(users Repository) *Service {
	return &Service{users: users}
}

func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	u := &User{ID: req.ID, Name: req.Name, Email: req.Email}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, apperr.Conflict("User with this email already exists")
		}
		return nil, apperr.Internal("create user", err)
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("get user", err)
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	users, total, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal("list users", err)
	}
	if users == nil {
		users = []*User{}
	}
	return users, total, nil
}
