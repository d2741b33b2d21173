package auth

import "errors"

var (
	// ErrTokenExpired is returned when a correctly signed token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrInvalidPrefix is returned when a transport token lacks the scheme tag.
	ErrInvalidPrefix = errors.New("invalid token prefix")
	// ErrTheftDetected is returned when a presented credential disagrees with the session cache.
	ErrTheftDetected = errors.New("session theft detected")
	// ErrInfrastructure wraps session cache failures.
	ErrInfrastructure = errors.New("session store unavailable")
)

// Kind classifies an authentication failure.
type Kind int

const (
	KindNone Kind = iota
	KindExpired
	KindInvalid
	KindInvalidPrefix
	KindTheft
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindExpired:
		return "expired"
	case KindInvalid:
		return "invalid"
	case KindInvalidPrefix:
		return "invalid_prefix"
	case KindTheft:
		return "theft"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// KindOf maps an error onto the failure taxonomy. Theft wins over a cache
// failure hit while revoking, so the client is still forced to log in again.
// Errors that match none of the sentinels are reported as KindInfrastructure
// so they are never mistaken for an anonymous request.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrTheftDetected):
		return KindTheft
	case errors.Is(err, ErrInfrastructure):
		return KindInfrastructure
	case errors.Is(err, ErrInvalidPrefix):
		return KindInvalidPrefix
	case errors.Is(err, ErrTokenExpired):
		return KindExpired
	case errors.Is(err, ErrTokenInvalid):
		return KindInvalid
	default:
		return KindInfrastructure
	}
}
