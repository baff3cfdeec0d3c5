package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paracket/paracket/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func samplePost(id string) *models.ScheduledPost {
	return &models.ScheduledPost{
		ID:            id,
		Company:       "Acme",
		ScheduledTime: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		CreatedAt:     time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Status:        models.StatusActive,
		MasterMessage: "We shipped a new thing",
		Theme:         "launch",
		Platforms: map[string]models.PlatformEntry{
			"twitter":  {Content: "We shipped! #launch", Enabled: true},
			"mastodon": {Content: "We shipped a new thing today", Enabled: false},
			"reddit":   {Content: "We shipped\n\nDetails inside.", Enabled: true, Subreddit: "technology"},
		},
		Credentials: map[string]models.Credentials{
			"twitter": {"api_key": "k", "api_secret": "s", "access_token": "t", "access_secret": "ts"},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	s := newTestStore(t)
	post := samplePost("20260310_120000")

	require.NoError(t, s.Create(post))

	got, err := s.Get(post.ID)
	require.NoError(t, err)
	assert.Equal(t, post, got)
}

func TestCreateDuplicate(t *testing.T) {
	s := newTestStore(t)
	post := samplePost("20260310_120000")

	require.NoError(t, s.Create(post))
	assert.ErrorIs(t, s.Create(post), ErrAlreadyExists)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSkipsCorruptRecords(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create(samplePost("20260310_120000")))
	require.NoError(t, s.Create(samplePost("20260310_120001")))

	corrupt := filepath.Join(s.dir, "scheduled_broken.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))

	posts, err := s.List()
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestSaveOverwrites(t *testing.T) {
	s := newTestStore(t)
	post := samplePost("20260310_120000")
	require.NoError(t, s.Create(post))

	post.Status = models.StatusPosted
	post.PostedResults = map[string]models.PlatformResult{
		"twitter": {Platform: "twitter", Success: true, PostID: "1234"},
	}
	require.NoError(t, s.Save(post))

	got, err := s.Get(post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPosted, got.Status)
	assert.Equal(t, "1234", got.PostedResults["twitter"].PostID)
}

func TestSaveIfStatus(t *testing.T) {
	s := newTestStore(t)
	post := samplePost("20260310_120000")
	require.NoError(t, s.Create(post))

	t.Run("matching status succeeds", func(t *testing.T) {
		updated := post.Clone()
		updated.Status = models.StatusPosted
		require.NoError(t, s.SaveIfStatus(updated, models.StatusActive))

		got, err := s.Get(post.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPosted, got.Status)
	})

	t.Run("stale status is rejected", func(t *testing.T) {
		updated := post.Clone()
		updated.Status = models.StatusFailed
		err := s.SaveIfStatus(updated, models.StatusActive)
		assert.ErrorIs(t, err, ErrStatusConflict)

		got, err := s.Get(post.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPosted, got.Status)
	})
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	post := samplePost("20260310_120000")
	require.NoError(t, s.Create(post))

	require.NoError(t, s.Delete(post.ID))
	_, err := s.Get(post.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete(post.ID), ErrNotFound)
}

func TestRunLockExcludesSecondHolder(t *testing.T) {
	s := newTestStore(t)

	lock, err := s.AcquireRunLock()
	require.NoError(t, err)

	_, err = s.AcquireRunLock()
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release())

	lock2, err := s.AcquireRunLock()
	require.NoError(t, err)
	require.NoError(t, lock2.Release())
}

func TestRunLockStaleTakeover(t *testing.T) {
	s := newTestStore(t)
	s.lockStale = 50 * time.Millisecond

	lock, err := s.AcquireRunLock()
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	// The first lock is now stale, so a new scan takes it over.
	lock2, err := s.AcquireRunLock()
	require.NoError(t, err)

	// The original holder's release must not remove the new lock.
	require.NoError(t, lock.Release())
	_, err = s.AcquireRunLock()
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock2.Release())
}

func TestReadRecoversDefaults(t *testing.T) {
	s := newTestStore(t)

	// A hand-written record without id or status.
	raw := []byte(`{"company":"Acme","scheduled_time":"2026-03-14T09:30:00Z","created_at":"2026-03-10T12:00:00Z","master_message":"m","platforms":{}}`)
	path := filepath.Join(s.dir, "scheduled_manual_001.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	got, err := s.Get("manual_001")
	require.NoError(t, err)
	assert.Equal(t, "manual_001", got.ID)
	assert.Equal(t, models.StatusActive, got.Status)
}
