// Package service holds the application operations exposed by the API and
// built on the repositories.
package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jbweber/homelab/roster/internal/logging"
	"github.com/jbweber/homelab/roster/internal/repository"
)

// UserService manages registered users
type UserService struct {
	users  repository.UserRepository
	mapper UserMapper
}

// NewUserService creates a new user service
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// RegisterNewUser validates and stores a new user
func (s *UserService) RegisterNewUser(ctx context.Context, dto *UserDTO) (*UserDTO, error) {
	if err := validate(dto); err != nil {
		return nil, err
	}

	entity := s.mapper.ToEntity(dto)
	entity.ID = 0

	saved, err := s.users.Insert(ctx, *entity)
	if err != nil {
		logging.From(ctx).Error("error during the creation of user",
			zap.String("username", dto.Username), zap.Error(err))
		return nil, err
	}
	return s.mapper.ToDTO(&saved), nil
}

// GetUser returns the user with the given ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*UserDTO, error) {
	user, ok := s.users.FindByID(ctx, id)
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, repository.ErrNotFound)
	}
	return s.mapper.ToDTO(&user), nil
}

// FindByEmail returns the user registered with email
func (s *UserService) FindByEmail(ctx context.Context, email string) (*UserDTO, error) {
	query := repository.UserMapping.SelectAll() + " WHERE email = :email"
	user, ok := s.users.FetchByName(ctx, query, map[string]any{"email": email})
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, repository.ErrNotFound)
	}
	return s.mapper.ToDTO(&user), nil
}

// ListUsers returns every user ordered by ID
func (s *UserService) ListUsers(ctx context.Context) []UserDTO {
	users := s.users.FetchListByQuery(ctx, repository.UserMapping.SelectAll()+" ORDER BY id")
	return s.mapper.ToDTOs(users)
}

// UpdateUser replaces the username and email of an existing user
func (s *UserService) UpdateUser(ctx context.Context, id int64, dto *UserDTO) (*UserDTO, error) {
	if err := validate(dto); err != nil {
		return nil, err
	}
	if _, ok := s.users.FindByID(ctx, id); !ok {
		return nil, fmt.Errorf("user %d: %w", id, repository.ErrNotFound)
	}

	entity := s.mapper.ToEntity(dto)
	entity.ID = id

	updated, err := s.users.Update(ctx, *entity)
	if err != nil {
		logging.From(ctx).Error("error during the update of user", logging.UserID(id), zap.Error(err))
		return nil, err
	}
	return s.mapper.ToDTO(&updated), nil
}

// DeleteUser removes the user with the given ID
func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	user, ok := s.users.FindByID(ctx, id)
	if !ok {
		return fmt.Errorf("user %d: %w", id, repository.ErrNotFound)
	}
	if _, err := s.users.Delete(ctx, user); err != nil {
		logging.From(ctx).Error("error during the delete of user", logging.UserID(id), zap.Error(err))
		return err
	}
	return nil
}

func validate(dto *UserDTO) error {
	switch {
	case dto == nil:
		return fmt.Errorf("%w: user is required", repository.ErrInvalidEntity)
	case strings.TrimSpace(dto.Username) == "":
		return fmt.Errorf("%w: username is required", repository.ErrInvalidEntity)
	case strings.TrimSpace(dto.Email) == "":
		return fmt.Errorf("%w: email is required", repository.ErrInvalidEntity)
	}
	return nil
}
