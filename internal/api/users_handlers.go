package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jbweber/homelab/roster/internal/logging"
	"github.com/jbweber/homelab/roster/internal/repository"
	"github.com/jbweber/homelab/roster/internal/service"
)

// Users groups the user handlers for testability
type Users struct {
	svc *service.UserService
}

// NewUsers creates the user handlers
func NewUsers(svc *service.UserService) *Users {
	return &Users{svc: svc}
}

// RegisterRoutes mounts the user endpoints on r
func (u *Users) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", u.ListUsersHandler)
		r.Post("/", u.CreateUserHandler)
		r.Get("/{id}", u.GetUserHandler)
		r.Put("/{id}", u.UpdateUserHandler)
		r.Delete("/{id}", u.DeleteUserHandler)
	})
}

// ListUsersHandler handles GET /users. With ?email= it returns at most the
// one matching user.
func (u *Users) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	if email := r.URL.Query().Get("email"); email != "" {
		user, err := u.svc.FindByEmail(r.Context(), email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeJSON(w, r, http.StatusOK, []service.UserDTO{})
				return
			}
			u.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, []service.UserDTO{*user})
		return
	}

	writeJSON(w, r, http.StatusOK, u.svc.ListUsers(r.Context()))
}

// CreateUserHandler handles POST /users.
//
// Request: JSON body with fields "username" and "email".
// Response: 201 Created with the stored user, 400 for invalid input, 409 when
// the email is taken.
func (u *Users) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req service.UserDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid JSON")
		return
	}

	created, err := u.svc.RegisterNewUser(r.Context(), &req)
	if err != nil {
		u.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// GetUserHandler handles GET /users/{id}
func (u *Users) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	user, err := u.svc.GetUser(r.Context(), id)
	if err != nil {
		u.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

// UpdateUserHandler handles PUT /users/{id}
func (u *Users) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req service.UserDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid JSON")
		return
	}

	updated, err := u.svc.UpdateUser(r.Context(), id, &req)
	if err != nil {
		u.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// DeleteUserHandler handles DELETE /users/{id}
func (u *Users) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := u.svc.DeleteUser(r.Context(), id); err != nil {
		u.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "Invalid user ID")
		return 0, false
	}
	return id, true
}

// writeServiceError maps service and repository errors to HTTP statuses
func (u *Users) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidEntity):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "User not found")
	case errors.Is(err, repository.ErrDuplicate):
		writeError(w, r, http.StatusConflict, "User already exists")
	default:
		logging.From(r.Context()).Error("user request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Internal error")
	}
}
