package publisher

import (
	"context"
	"time"

	"github.com/paracket/paracket/internal/models"
)

// Target is the destination metadata a platform may need beyond the content
// itself. Only the long-form-forum client uses it today.
type Target struct {
	Subreddit string
}

// Result is a successful publication: where the content ended up.
type Result struct {
	Platform    string    `json:"platform"`
	PostID      string    `json:"post_id"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Publisher is one platform's publication capability. A Publish call is a
// single remote invocation with no internal retry; retry policy belongs to
// the dispatcher. A nil error means the content is irreversibly live.
type Publisher interface {
	Name() string

	// ValidateCredentials checks the credential bag for required keys without
	// touching the network.
	ValidateCredentials(creds models.Credentials) error

	Publish(ctx context.Context, content string, target Target, creds models.Credentials) (*Result, error)
}
