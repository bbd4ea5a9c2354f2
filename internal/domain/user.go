package domain

// CreateUserRequest carries the payload of the createUser operation.
type CreateUserRequest struct {
	Email       string
	Password    string
	Name        string
	PhoneNumber string
	Department  string
	Role        Role
}

// UpdateUserRequest carries the payload of the updateUser operation. Email is immutable here.
type UpdateUserRequest struct {
	ID          string
	Name        string
	PhoneNumber string
	Department  string
	Role        Role
}

// DeleteUserRequest carries the payload of the deleteUser operation.
type DeleteUserRequest struct {
	ID string
}

// UpdatePasswordRequest carries the payload of the updatePassword operation.
type UpdatePasswordRequest struct {
	ID       string
	Password string
}

// IdentityRecord is the identity provider's view of a user.
type IdentityRecord struct {
	ID          string
	Email       string
	DisplayName string
	PhoneNumber string
	Claims      map[string]string
}

// Profile is the business metadata stored in the document store under the identity id.
type Profile struct {
	Name        string
	Email       string
	PhoneNumber string
	Department  string
	Role        Role
}

// ProfileUpdate lists the mutable profile fields.
type ProfileUpdate struct {
	Name        string
	PhoneNumber string
	Department  string
	Role        Role
}
