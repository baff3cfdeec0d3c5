package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paracket/paracket/internal/models"
	"github.com/paracket/paracket/internal/publisher"
	"github.com/paracket/paracket/internal/store"
)

// Dispatcher performs one scan-and-dispatch pass: select due active posts,
// publish each enabled platform's content, aggregate the outcomes into a new
// status and persist it. Each invocation is a complete, independent pass.
type Dispatcher struct {
	store          *store.Store
	manager        *publisher.Manager
	creds          *CredentialResolver
	metrics        *Metrics
	logger         *zap.Logger
	publishTimeout time.Duration
	now            func() time.Time
}

type DispatcherOption func(*Dispatcher)

func WithPublishTimeout(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		dp.publishTimeout = d
	}
}

// WithClock overrides the dispatcher's notion of "now", for tests.
func WithClock(now func() time.Time) DispatcherOption {
	return func(dp *Dispatcher) {
		dp.now = now
	}
}

func NewDispatcher(st *store.Store, manager *publisher.Manager, creds *CredentialResolver, metrics *Metrics, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:          st,
		manager:        manager,
		creds:          creds,
		metrics:        metrics,
		logger:         logger,
		publishTimeout: 30 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ScanSummary reports what one pass did.
type ScanSummary struct {
	Total   int `json:"total"`
	Due     int `json:"due"`
	Posted  int `json:"posted"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Scan runs one pass. It only returns an error for conditions that prevent
// the scan itself (store inaccessible, lock held); individual post failures
// are recorded in the store, never raised.
func (d *Dispatcher) Scan(ctx context.Context) (*ScanSummary, error) {
	lock, err := d.store.AcquireRunLock()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			d.logger.Warn("Failed to release run lock", zap.Error(err))
		}
	}()

	start := d.now()
	posts, err := d.store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate scheduled posts: %w", err)
	}

	summary := &ScanSummary{Total: len(posts)}
	now := d.now()

	for _, post := range posts {
		if post.Status != models.StatusActive || !post.Due(now) {
			continue
		}
		summary.Due++

		d.logger.Info("Dispatching due post",
			zap.String("post_id", post.ID),
			zap.String("company", post.Company),
			zap.String("theme", post.Theme),
			zap.Time("scheduled_time", post.ScheduledTime))

		switch d.dispatch(ctx, post) {
		case models.StatusPosted:
			summary.Posted++
		case models.StatusFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}

	d.metrics.ScanRuns.Inc()
	d.metrics.ScanDuration.Observe(time.Since(start).Seconds())

	d.logger.Info("Scan complete",
		zap.Int("total", summary.Total),
		zap.Int("due", summary.Due),
		zap.Int("posted", summary.Posted),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))

	return summary, nil
}

// dispatch publishes one post to every enabled platform, flips its status
// and persists it. Returns the status that was written, or empty when the
// write was rejected because another scan got there first.
func (d *Dispatcher) dispatch(ctx context.Context, post *models.ScheduledPost) models.Status {
	posted := make(map[string]models.PlatformResult)
	failed := make(map[string]models.PlatformResult)

	for _, platform := range post.EnabledPlatforms() {
		result := d.publishOne(ctx, post, platform)
		if result.Success {
			posted[platform] = result
			d.metrics.PublishSuccess.WithLabelValues(platform).Inc()
		} else {
			failed[platform] = result
			d.metrics.PublishFailure.WithLabelValues(platform, result.ErrorKind).Inc()
			d.logger.Warn("Platform publish failed",
				zap.String("post_id", post.ID),
				zap.String("platform", platform),
				zap.String("kind", result.ErrorKind),
				zap.String("error", result.Error))
		}
	}

	// Any platform success counts the post as posted; per-platform detail is
	// kept for audit either way.
	if len(posted) > 0 {
		post.Status = models.StatusPosted
	} else {
		post.Status = models.StatusFailed
		if len(failed) == 0 {
			post.Error = "no enabled platforms to publish to"
		}
	}
	if len(posted) > 0 {
		post.PostedResults = posted
	}
	if len(failed) > 0 {
		post.FailedResults = failed
	}

	// The conditional write is what suppresses duplicate publication: if the
	// on-disk status is no longer active, an overlapping scan already owns
	// this post and our write is discarded.
	if err := d.store.SaveIfStatus(post, models.StatusActive); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			d.logger.Warn("Post was updated by a concurrent scan, discarding result",
				zap.String("post_id", post.ID))
			return ""
		}
		d.logger.Error("Failed to persist dispatch result",
			zap.String("post_id", post.ID),
			zap.Error(err))
		return ""
	}

	return post.Status
}

func (d *Dispatcher) publishOne(ctx context.Context, post *models.ScheduledPost, platform string) models.PlatformResult {
	entry := post.Platforms[platform]

	pub, err := d.manager.Get(platform)
	if err != nil {
		return failureResult(platform, publisher.NewError(platform, publisher.KindConfig, "no publisher registered"))
	}

	creds := d.creds.Resolve(platform, post.PlatformCredentials(platform))

	callCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	defer cancel()

	result, err := pub.Publish(callCtx, entry.Content, publisher.Target{Subreddit: entry.Subreddit}, creds)
	if err != nil {
		return failureResult(platform, err)
	}

	return models.PlatformResult{
		Platform:    platform,
		Success:     true,
		PostID:      result.PostID,
		URL:         result.URL,
		PublishedAt: &result.PublishedAt,
	}
}

func failureResult(platform string, err error) models.PlatformResult {
	return models.PlatformResult{
		Platform:  platform,
		Success:   false,
		Error:     err.Error(),
		ErrorKind: string(publisher.KindOf(err)),
	}
}
