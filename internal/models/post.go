package models

import (
	"sort"
	"time"
)

// Status is the lifecycle state of a scheduled post. The scheduler only ever
// moves active posts forward; posted and failed are terminal for it, and
// inactive posts wait for manual reactivation.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusPosted   Status = "posted"
	StatusFailed   Status = "failed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPosted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the scheduler will never re-select a post in this
// state.
func (s Status) Terminal() bool {
	return s == StatusPosted || s == StatusFailed
}

// PlatformEntry is the per-platform content embedded in a scheduled post.
// Subreddit is only meaningful for the reddit platform.
type PlatformEntry struct {
	Content   string `json:"content"`
	Enabled   bool   `json:"enabled"`
	Subreddit string `json:"subreddit,omitempty"`
}

// Credentials is an opaque per-platform auth parameter bag. Which keys are
// required is the platform client's business.
type Credentials map[string]string

// PlatformResult captures one platform's publish outcome for audit.
type PlatformResult struct {
	Platform    string     `json:"platform"`
	Success     bool       `json:"success"`
	PostID      string     `json:"post_id,omitempty"`
	URL         string     `json:"url,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   string     `json:"error_kind,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// ScheduledPost is the persisted unit of schedulable content. One JSON file
// per post lives in the store directory, keyed by ID.
type ScheduledPost struct {
	ID            string                    `json:"id"`
	Company       string                    `json:"company"`
	ScheduledTime time.Time                 `json:"scheduled_time"`
	CreatedAt     time.Time                 `json:"created_at"`
	Status        Status                    `json:"status"`
	MasterMessage string                    `json:"master_message"`
	Theme         string                    `json:"theme"`
	Platforms     map[string]PlatformEntry  `json:"platforms"`
	Credentials   map[string]Credentials    `json:"credentials,omitempty"`
	PostedResults map[string]PlatformResult `json:"posted_results,omitempty"`
	FailedResults map[string]PlatformResult `json:"failed_results,omitempty"`
	Error         string                    `json:"error,omitempty"`
}

// NewPostID derives a post identifier from the creation time. IDs generated in
// the same second collide; the store's create path is responsible for
// uniqueness.
func NewPostID(t time.Time) string {
	return t.Format("20060102_150405")
}

// Due reports whether the post's scheduled time has arrived.
func (p *ScheduledPost) Due(now time.Time) bool {
	return !p.ScheduledTime.After(now)
}

// EnabledPlatforms returns the names of platforms this post should be
// submitted to, in stable order.
func (p *ScheduledPost) EnabledPlatforms() []string {
	var names []string
	for name, entry := range p.Platforms {
		if entry.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// PlatformCredentials returns the credential bag embedded for one platform,
// which may be nil.
func (p *ScheduledPost) PlatformCredentials(platform string) Credentials {
	if p.Credentials == nil {
		return nil
	}
	return p.Credentials[platform]
}

// Clone returns a deep copy, so handlers can redact fields without mutating
// the stored value.
func (p *ScheduledPost) Clone() *ScheduledPost {
	cp := *p
	cp.Platforms = make(map[string]PlatformEntry, len(p.Platforms))
	for k, v := range p.Platforms {
		cp.Platforms[k] = v
	}
	if p.Credentials != nil {
		cp.Credentials = make(map[string]Credentials, len(p.Credentials))
		for k, v := range p.Credentials {
			creds := make(Credentials, len(v))
			for ck, cv := range v {
				creds[ck] = cv
			}
			cp.Credentials[k] = creds
		}
	}
	if p.PostedResults != nil {
		cp.PostedResults = make(map[string]PlatformResult, len(p.PostedResults))
		for k, v := range p.PostedResults {
			cp.PostedResults[k] = v
		}
	}
	if p.FailedResults != nil {
		cp.FailedResults = make(map[string]PlatformResult, len(p.FailedResults))
		for k, v := range p.FailedResults {
			cp.FailedResults[k] = v
		}
	}
	return &cp
}
