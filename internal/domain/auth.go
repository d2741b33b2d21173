package domain

import "time"

// Principal is the verified identity attached to a request. It carries
// nothing beyond the subject; role checks live downstream.
type Principal struct {
	SubjectID string
}

// TokenPair is the transport form of a freshly issued session: both
// values already carry the scheme prefix.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Session is what a login hands back to the transport layer.
type Session struct {
	DeviceID string
	Tokens   TokenPair
}
