// Package validation checks the shape of command payloads. Every function is pure.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/user-admin-service/internal/domain"
	apperrors "github.com/spec-kit/user-admin-service/pkg/util/errorutil"
)

// MinPasswordLength is the shortest accepted password, in characters.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@.]+$`)

// Field pairs a payload field name with its value for presence checks.
type Field struct {
	Name  string
	Value string
}

// F is shorthand for building a Field.
func F(name, value string) Field {
	return Field{Name: name, Value: value}
}

// Required fails on the first field that is empty after trimming.
func Required(fields ...Field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.Value) == "" {
			return apperrors.NewInvalidArgument(f.Name, f.Name+" is required")
		}
	}
	return nil
}

// Password enforces the minimum length.
func Password(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperrors.NewInvalidArgument("password", "password must be at least 6 characters")
	}
	return nil
}

// Role accepts only staff or admin.
func Role(raw string) (domain.Role, error) {
	role, ok := domain.ParseRole(raw)
	if !ok {
		return domain.RoleNone, apperrors.NewInvalidArgument("role", `role must be "staff" or "admin"`)
	}
	return role, nil
}

// Email checks the local@domain.tld shape.
func Email(email string) error {
	if !emailPattern.MatchString(email) {
		return apperrors.NewInvalidArgument("email", "email format is invalid")
	}
	return nil
}

// CreateUser validates and normalizes a createUser payload.
func CreateUser(req domain.CreateUserRequest) (domain.CreateUserRequest, error) {
	if err := Required(
		F("email", req.Email),
		F("password", req.Password),
		F("name", req.Name),
		F("department", req.Department),
		F("role", string(req.Role)),
	); err != nil {
		return domain.CreateUserRequest{}, err
	}

	out := domain.CreateUserRequest{
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Password:    req.Password,
		Name:        strings.TrimSpace(req.Name),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Department:  strings.TrimSpace(req.Department),
	}
	if err := Email(out.Email); err != nil {
		return domain.CreateUserRequest{}, err
	}
	if err := Password(out.Password); err != nil {
		return domain.CreateUserRequest{}, err
	}
	role, err := Role(string(req.Role))
	if err != nil {
		return domain.CreateUserRequest{}, err
	}
	out.Role = role
	return out, nil
}

// UpdateUser validates and normalizes an updateUser payload.
func UpdateUser(req domain.UpdateUserRequest) (domain.UpdateUserRequest, error) {
	if err := Required(
		F("id", req.ID),
		F("name", req.Name),
		F("department", req.Department),
		F("role", string(req.Role)),
	); err != nil {
		return domain.UpdateUserRequest{}, err
	}
	role, err := Role(string(req.Role))
	if err != nil {
		return domain.UpdateUserRequest{}, err
	}
	return domain.UpdateUserRequest{
		ID:          strings.TrimSpace(req.ID),
		Name:        strings.TrimSpace(req.Name),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Department:  strings.TrimSpace(req.Department),
		Role:        role,
	}, nil
}

// DeleteUser validates a deleteUser payload.
func DeleteUser(req domain.DeleteUserRequest) (domain.DeleteUserRequest, error) {
	if err := Required(F("id", req.ID)); err != nil {
		return domain.DeleteUserRequest{}, err
	}
	return domain.DeleteUserRequest{ID: strings.TrimSpace(req.ID)}, nil
}

// UpdatePassword validates an updatePassword payload. The password is not trimmed.
func UpdatePassword(req domain.UpdatePasswordRequest) (domain.UpdatePasswordRequest, error) {
	if err := Required(F("id", req.ID), F("password", req.Password)); err != nil {
		return domain.UpdatePasswordRequest{}, err
	}
	if err := Password(req.Password); err != nil {
		return domain.UpdatePasswordRequest{}, err
	}
	return domain.UpdatePasswordRequest{ID: strings.TrimSpace(req.ID), Password: req.Password}, nil
}
