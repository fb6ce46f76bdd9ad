package http

import "github.com/linkloop/auth-service/app/entity"

// Response is the JSON envelope every non-OAuth endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func OK(message string) Response {
	return Response{Success: true, Message: message}
}

func Fail(message string) Response {
	return Response{Success: false, Message: message}
}

// UserPayload is the identity projection collaborators depend on. Nothing
// secret and nothing beyond these fields is ever serialized.
type UserPayload struct {
	ID              uint64 `json:"id"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	IsEmailVerified bool   `json:"isEmailVerified"`
}

func NewUserPayload(user *entity.User) *UserPayload {
	payload := &UserPayload{
		ID:              user.ID,
		FirstName:       user.FirstName,
		Email:           user.Email,
		IsEmailVerified: user.IsEmailVerified,
	}
	if user.LastName.Valid {
		payload.LastName = user.LastName.String
	}
	return payload
}

type MeResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *UserPayload `json:"user,omitempty"`
}

type SessionResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    *UserPayload `json:"user"`
}
