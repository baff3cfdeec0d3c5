package server

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/paracket/paracket/internal/adapter"
	"github.com/paracket/paracket/internal/models"
	"github.com/paracket/paracket/internal/store"
	"github.com/paracket/paracket/pkg/util"
)

// postView is a scheduled post as rendered to API clients: credentials are
// redacted and active-but-overdue posts report how late they are.
type postView struct {
	*models.ScheduledPost
	PastDueMinutes int `json:"past_due_minutes,omitempty"`
}

func newPostView(post *models.ScheduledPost, now time.Time) postView {
	view := postView{ScheduledPost: post.Clone()}
	view.Credentials = nil
	if post.Status == models.StatusActive && post.Due(now) {
		view.PastDueMinutes = int(now.Sub(post.ScheduledTime).Minutes())
	}
	return view
}

func (s *Server) handleListPosts(c *gin.Context) {
	posts, err := s.Store.List()
	if err != nil {
		s.Logger.Error("Failed to list posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list posts"})
		return
	}

	statusFilter := c.Query("status")
	now := time.Now()

	views := make([]postView, 0, len(posts))
	for _, post := range posts {
		if statusFilter != "" && string(post.Status) != statusFilter {
			continue
		}
		views = append(views, newPostView(post, now))
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].ScheduledTime.After(views[j].ScheduledTime)
	})

	c.JSON(http.StatusOK, gin.H{"posts": views, "total": len(views)})
}

func (s *Server) handleGetPost(c *gin.Context) {
	post, ok := s.loadPost(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newPostView(post, time.Now()))
}

type createPostRequest struct {
	Company       string                            `json:"company" binding:"required"`
	ScheduledTime time.Time                         `json:"scheduled_time" binding:"required"`
	MasterMessage string                            `json:"master_message"`
	Theme         string                            `json:"theme"`
	Platforms     map[string]models.PlatformEntry   `json:"platforms" binding:"required"`
	Credentials   map[string]models.Credentials     `json:"credentials"`
}

func (s *Server) handleCreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validatePlatforms(req.Platforms); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	post := &models.ScheduledPost{
		Company:       req.Company,
		ScheduledTime: req.ScheduledTime,
		CreatedAt:     now,
		Status:        models.StatusActive,
		MasterMessage: req.MasterMessage,
		Theme:         req.Theme,
		Platforms:     req.Platforms,
		Credentials:   req.Credentials,
	}

	// IDs come from the creation second; disambiguate collisions with a
	// numeric suffix rather than overwriting.
	base := models.NewPostID(now)
	post.ID = base
	for i := 1; ; i++ {
		err := s.Store.Create(post)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			s.Logger.Error("Failed to create post", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create post"})
			return
		}
		post.ID = fmt.Sprintf("%s_%d", base, i)
	}

	s.Logger.Info("Scheduled post created",
		zap.String("post_id", post.ID),
		zap.Time("scheduled_time", post.ScheduledTime))

	c.JSON(http.StatusCreated, newPostView(post, now))
}

func validatePlatforms(platforms map[string]models.PlatformEntry) error {
	if len(platforms) == 0 {
		return fmt.Errorf("at least one platform entry is required")
	}
	for name, entry := range platforms {
		spec, ok := adapter.Spec(name)
		if !ok {
			return fmt.Errorf("unknown platform %q", name)
		}
		if entry.Content == "" {
			return fmt.Errorf("platform %s has empty content", name)
		}
		if length := util.RuneLen(entry.Content); length > spec.MaxLength {
			return fmt.Errorf("platform %s content is %d characters (max %d)", name, length, spec.MaxLength)
		}
		if name == adapter.PlatformReddit && entry.Enabled && entry.Subreddit == "" {
			return fmt.Errorf("reddit entry requires a target subreddit")
		}
	}
	return nil
}

type editScheduleRequest struct {
	ScheduledTime time.Time `json:"scheduled_time" binding:"required"`
}

func (s *Server) handleEditSchedule(c *gin.Context) {
	var req editScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, ok := s.loadPost(c)
	if !ok {
		return
	}
	if post.Status != models.StatusActive {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("cannot edit schedule of a %s post", post.Status)})
		return
	}

	post.ScheduledTime = req.ScheduledTime
	if !s.savePost(c, post, models.StatusActive) {
		return
	}
	c.JSON(http.StatusOK, newPostView(post, time.Now()))
}

type editContentRequest struct {
	Platform  string `json:"platform" binding:"required"`
	Content   string `json:"content" binding:"required"`
	Subreddit string `json:"subreddit"`
}

func (s *Server) handleEditContent(c *gin.Context) {
	var req editContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, ok := s.loadPost(c)
	if !ok {
		return
	}
	if post.Status != models.StatusActive {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("cannot edit content of a %s post", post.Status)})
		return
	}

	entry, exists := post.Platforms[req.Platform]
	if !exists {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("post has no %s entry", req.Platform)})
		return
	}

	spec, specOK := adapter.Spec(req.Platform)
	if specOK {
		if length := util.RuneLen(req.Content); length > spec.MaxLength {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("content is %d characters (max %d)", length, spec.MaxLength),
			})
			return
		}
	}

	entry.Content = req.Content
	if req.Subreddit != "" {
		entry.Subreddit = req.Subreddit
	}
	post.Platforms[req.Platform] = entry

	if !s.savePost(c, post, models.StatusActive) {
		return
	}
	c.JSON(http.StatusOK, newPostView(post, time.Now()))
}

// handleActivate moves a post back to active. Besides waking up inactive
// posts, this is the manual retry path for failed ones: the next scan picks
// the post up again. Posted records stay terminal; reactivating them would
// publish the same content twice.
func (s *Server) handleActivate(c *gin.Context) {
	post, ok := s.loadPost(c)
	if !ok {
		return
	}
	if post.Status == models.StatusActive {
		c.JSON(http.StatusOK, newPostView(post, time.Now()))
		return
	}
	if post.Status == models.StatusPosted {
		c.JSON(http.StatusConflict, gin.H{"error": "post is already published"})
		return
	}

	previous := post.Status
	post.Status = models.StatusActive
	post.Error = ""
	if !s.savePost(c, post, previous) {
		return
	}
	c.JSON(http.StatusOK, newPostView(post, time.Now()))
}

func (s *Server) handleDeactivate(c *gin.Context) {
	post, ok := s.loadPost(c)
	if !ok {
		return
	}
	if post.Status != models.StatusActive {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("cannot deactivate a %s post", post.Status)})
		return
	}

	post.Status = models.StatusInactive
	if !s.savePost(c, post, models.StatusActive) {
		return
	}
	c.JSON(http.StatusOK, newPostView(post, time.Now()))
}

func (s *Server) handleDeletePost(c *gin.Context) {
	id := c.Param("id")
	if err := s.Store.Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		s.Logger.Error("Failed to delete post", zap.String("post_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete post"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

type adaptRequest struct {
	Company       string         `json:"company" binding:"required"`
	BrandVoice    map[string]any `json:"brand_voice"`
	MasterMessage string         `json:"master_message" binding:"required"`
	Platforms     []string       `json:"platforms" binding:"required"`
}

func (s *Server) handleAdapt(c *gin.Context) {
	if s.Adapter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "content adaptation is not configured"})
		return
	}

	var req adaptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	adaptations, err := s.Adapter.AdaptAll(c.Request.Context(), req.Company, req.BrandVoice, req.MasterMessage, req.Platforms)
	if err != nil {
		s.Logger.Error("Adaptation failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"company":     req.Company,
		"adaptations": adaptations,
		"adapted_at":  time.Now(),
	})
}

func (s *Server) handleScan(c *gin.Context) {
	summary, err := s.Dispatcher.Scan(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrLocked) {
			c.JSON(http.StatusConflict, gin.H{"error": "a scan is already running"})
			return
		}
		s.Logger.Error("Manual scan failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) loadPost(c *gin.Context) (*models.ScheduledPost, bool) {
	post, err := s.Store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		} else {
			s.Logger.Error("Failed to load post", zap.String("post_id", c.Param("id")), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load post"})
		}
		return nil, false
	}
	return post, true
}

func (s *Server) savePost(c *gin.Context, post *models.ScheduledPost, expected models.Status) bool {
	if err := s.Store.SaveIfStatus(post, expected); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "post changed concurrently, reload and retry"})
			return false
		}
		s.Logger.Error("Failed to save post", zap.String("post_id", post.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save post"})
		return false
	}
	return true
}
