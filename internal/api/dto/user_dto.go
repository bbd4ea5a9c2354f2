package dto

// CreateUserRequest payload for POST /v1/users.
type CreateUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Department  string `json:"department"`
	Role        string `json:"role"`
}

// UpdateUserRequest payload for PUT /v1/users/:id.
type UpdateUserRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Department  string `json:"department"`
	Role        string `json:"role"`
}

// UpdatePasswordRequest payload for PUT /v1/users/:id/password.
type UpdatePasswordRequest struct {
	Password string `json:"password"`
}
