package dto

import "time"

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// SessionResponse describes the cookies just set. Token values stay in
// httpOnly cookies and are never echoed.
type SessionResponse struct {
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// SessionStatusResponse reports whether the caller is authenticated.
type SessionStatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	SubjectID     string `json:"subject_id,omitempty"`
}
