package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paracket/paracket/internal/models"
)

var (
	ErrNotFound = errors.New("scheduled post not found")
	// ErrStatusConflict means the on-disk status no longer matches what the
	// caller read, i.e. another process got there first.
	ErrStatusConflict = errors.New("status changed since read")
	ErrAlreadyExists  = errors.New("scheduled post already exists")
	ErrLocked         = errors.New("another scan holds the run lock")
)

const (
	filePrefix   = "scheduled_"
	fileSuffix   = ".json"
	lockFileName = "scheduler.lock"
)

// Store persists one JSON document per scheduled post in a flat directory.
// Directory listing is the enumeration mechanism; there is no index file.
type Store struct {
	dir       string
	logger    *zap.Logger
	lockStale time.Duration
}

type Option func(*Store)

// WithLockStaleAfter sets how old a leftover run lock may be before a new
// scan takes it over.
func WithLockStaleAfter(d time.Duration) Option {
	return func(s *Store) {
		s.lockStale = d
	}
}

func New(dir string, logger *zap.Logger, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &Store{
		dir:       dir,
		logger:    logger,
		lockStale: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, filePrefix+id+fileSuffix)
}

// List loads every scheduled post in the store. Records that fail to parse
// are logged and skipped so one corrupt file never aborts a scan.
func (s *Store) List() ([]*models.ScheduledPost, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to list store directory: %w", err)
	}

	var posts []*models.ScheduledPost
	for _, path := range matches {
		post, err := s.read(path)
		if err != nil {
			s.logger.Warn("Skipping unreadable scheduled post",
				zap.String("file", path),
				zap.Error(err))
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *Store) Get(id string) (*models.ScheduledPost, error) {
	post, err := s.read(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return post, err
}

// Create persists a new post, failing if a record with the same ID exists.
func (s *Store) Create(post *models.ScheduledPost) error {
	f, err := os.OpenFile(s.path(post.ID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create record: %w", err)
	}

	data, err := marshal(post)
	if err != nil {
		f.Close()
		os.Remove(s.path(post.ID))
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(s.path(post.ID))
		return fmt.Errorf("failed to write record: %w", err)
	}
	return f.Close()
}

// Save overwrites a post's record atomically: write to a temp file in the
// same directory, then rename over the destination.
func (s *Store) Save(post *models.ScheduledPost) error {
	data, err := marshal(post)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, filePrefix+post.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(post.ID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace record: %w", err)
	}
	return nil
}

// SaveIfStatus is the optimistic-concurrency write used at dispatch time: the
// record is only replaced if its on-disk status still matches expected. This
// is what stops an overlapping scan from publishing the same post twice.
func (s *Store) SaveIfStatus(post *models.ScheduledPost, expected models.Status) error {
	current, err := s.Get(post.ID)
	if err != nil {
		return err
	}
	if current.Status != expected {
		return fmt.Errorf("%w: have %q, expected %q", ErrStatusConflict, current.Status, expected)
	}
	return s.Save(post)
}

func (s *Store) Delete(id string) error {
	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *Store) read(path string) (*models.ScheduledPost, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var post models.ScheduledPost
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if post.ID == "" {
		// Tolerate records written by hand: recover the ID from the filename.
		base := filepath.Base(path)
		post.ID = strings.TrimSuffix(strings.TrimPrefix(base, filePrefix), fileSuffix)
	}
	if post.Status == "" {
		post.Status = models.StatusActive
	}
	return &post, nil
}

func marshal(post *models.ScheduledPost) ([]byte, error) {
	data, err := json.MarshalIndent(post, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return append(data, '\n'), nil
}

// RunLock is an exclusive lock over scan passes, held as a file in the store
// directory.
type RunLock struct {
	path  string
	token string
}

type lockInfo struct {
	Token      string    `json:"token"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// AcquireRunLock takes the scan lock, or returns ErrLocked while a live lock
// is held by someone else. A lock older than the stale threshold is assumed
// to belong to a crashed scan and is taken over.
func (s *Store) AcquireRunLock() (*RunLock, error) {
	path := filepath.Join(s.dir, lockFileName)
	token := uuid.NewString()

	for attempt := 0; attempt < 2; attempt++ {
		err := writeLockFile(path, token)
		if err == nil {
			return &RunLock{path: path, token: token}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}

		info, readErr := readLockFile(path)
		if readErr == nil && time.Since(info.AcquiredAt) < s.lockStale {
			return nil, ErrLocked
		}

		s.logger.Warn("Removing stale run lock", zap.String("file", path))
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale run lock: %w", rmErr)
		}
	}
	return nil, ErrLocked
}

// Release drops the lock. Only the holder's token may remove the file, so a
// stale-takeover by another process is never undone here.
func (l *RunLock) Release() error {
	info, err := readLockFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.Token != l.token {
		return nil
	}
	return os.Remove(l.path)
}

func writeLockFile(path, token string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(lockInfo{
		Token:      token,
		PID:        os.Getpid(),
		AcquiredAt: time.Now(),
	})
}

func readLockFile(path string) (*lockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
