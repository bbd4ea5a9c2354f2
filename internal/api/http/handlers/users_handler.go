package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-admin-service/internal/api/dto"
	"github.com/spec-kit/user-admin-service/internal/auth"
	"github.com/spec-kit/user-admin-service/internal/command"
	"github.com/spec-kit/user-admin-service/internal/domain"
	apperrors "github.com/spec-kit/user-admin-service/pkg/util/errorutil"
)

// UserCommands is the command surface the handler forwards to.
type UserCommands interface {
	CreateUser(ctx context.Context, caller domain.Caller, req domain.CreateUserRequest) (command.Result, error)
	UpdateUser(ctx context.Context, caller domain.Caller, req domain.UpdateUserRequest) (command.Result, error)
	DeleteUser(ctx context.Context, caller domain.Caller, req domain.DeleteUserRequest) (command.Result, error)
	UpdatePassword(ctx context.Context, caller domain.Caller, req domain.UpdatePasswordRequest) (command.PasswordResult, error)
	CreatePolicy() auth.Requirement
}

// UsersHandler exposes the user admin commands.
type UsersHandler struct {
	commands UserCommands
}

// NewUsersHandler constructs handler.
func NewUsersHandler(commands UserCommands) *UsersHandler {
	return &UsersHandler{commands: commands}
}

// Create handles POST /v1/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	caller := auth.CallerFromContext(c)
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return rejectPayload(caller, h.commands.CreatePolicy(), "")
	}

	res, err := h.commands.CreateUser(c.UserContext(), caller, domain.CreateUserRequest{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Department:  req.Department,
		Role:        domain.Role(req.Role),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(res)
}

// Update handles PUT /v1/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	caller := auth.CallerFromContext(c)
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return rejectPayload(caller, auth.RequireAdmin, "")
	}

	res, err := h.commands.UpdateUser(c.UserContext(), caller, domain.UpdateUserRequest{
		ID:          c.Params("id"),
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Department:  req.Department,
		Role:        domain.Role(req.Role),
	})
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// Delete handles DELETE /v1/users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	res, err := h.commands.DeleteUser(c.UserContext(), auth.CallerFromContext(c), domain.DeleteUserRequest{
		ID: c.Params("id"),
	})
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// UpdatePassword handles PUT /v1/users/:id/password.
func (h *UsersHandler) UpdatePassword(c *fiber.Ctx) error {
	caller := auth.CallerFromContext(c)
	id := c.Params("id")
	var req dto.UpdatePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return rejectPayload(caller, auth.RequireSelf, id)
	}

	res, err := h.commands.UpdatePassword(c.UserContext(), caller, domain.UpdatePasswordRequest{
		ID:       id,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// rejectPayload refuses an unparseable body, after the caller passed the command's guard.
func rejectPayload(caller domain.Caller, requirement auth.Requirement, targetID string) error {
	if err := auth.Authorize(caller, requirement, targetID); err != nil {
		return err
	}
	return apperrors.NewInvalidArgument("body", "invalid payload")
}
