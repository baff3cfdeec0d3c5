package publisher

import (
	"errors"
	"fmt"

	"github.com/paracket/paracket/internal/models"
)

// Kind classifies a publish failure for the per-platform audit record.
type Kind string

const (
	// KindAuth: invalid or expired credentials.
	KindAuth Kind = "auth"
	// KindTarget: the destination (subreddit, instance) is missing, private
	// or restricted. Reported, never retried automatically.
	KindTarget Kind = "target"
	// KindContent: the platform rejected the content itself, e.g. too long.
	KindContent Kind = "content"
	// KindTransient: timeout, network or rate-limit; eligible for a later
	// attempt only through the post's lifecycle, not an in-call retry.
	KindTransient Kind = "transient"
	// KindConfig: missing credentials or target metadata before any network
	// call was made.
	KindConfig Kind = "config"
)

// Error is a typed per-platform publish failure.
type Error struct {
	Platform string
	Kind     Kind
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Platform, e.Kind, e.Message)
}

func NewError(platform string, kind Kind, format string, args ...any) *Error {
	return &Error{Platform: platform, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind from any error; failures that reach us
// untyped (network errors, context deadline) count as transient.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// RequireCredentials verifies the bag carries every listed key, returning a
// config-kind error naming the first missing one.
func RequireCredentials(platform string, creds models.Credentials, keys ...string) error {
	for _, key := range keys {
		if creds[key] == "" {
			return NewError(platform, KindConfig, "missing required credential %q", key)
		}
	}
	return nil
}
