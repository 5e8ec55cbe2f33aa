package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"swapbot/internal/domain/models"
	"swapbot/internal/domain/repositories"
	"swapbot/internal/domain/services"
	"swapbot/internal/infrastructure/queue"
)

// Handler exposes the bot engine over HTTP: photo intake feeds the
// worker queue, the rest operates on the entitlement ledger directly.
type Handler struct {
	entitlements *services.EntitlementService
	targetMode   *services.TargetModeService
	reconciler   *services.ReconcilerService
	photoQueue   *queue.PhotoQueue
	clock        services.Clock
	logger       *slog.Logger
}

func NewHandler(
	entitlements *services.EntitlementService,
	targetMode *services.TargetModeService,
	reconciler *services.ReconcilerService,
	photoQueue *queue.PhotoQueue,
	clock services.Clock,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		entitlements: entitlements,
		targetMode:   targetMode,
		reconciler:   reconciler,
		photoQueue:   photoQueue,
		clock:        clock,
		logger:       logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	router.POST("/photos", h.SubmitPhoto)
	router.POST("/purchases", h.RecordPurchase)
	router.POST("/users/:id/target-mode", h.ArmTargetMode)
	router.GET("/users/:id/status", h.UserStatus)

	admin := router.Group("/admin")
	admin.POST("/reconcile", h.RunReconciliation)
	admin.POST("/users/:id/reset", h.ResetUser)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "swapbot-gateway",
		"time":    h.clock.Now(),
	})
}

type submitPhotoRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Username string `json:"username"`
	PhotoRef string `json:"photo_ref" binding:"required"`
	GroupID  string `json:"group_id"`
}

// SubmitPhoto accepts one inbound photo event and queues it for the
// worker pool. Rate limiting and entitlement checks happen at
// processing time, not here.
func (h *Handler) SubmitPhoto(c *gin.Context) {
	var req submitPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job := models.PhotoRequest{
		UserID:       req.UserID,
		Username:     req.Username,
		PhotoRef:     req.PhotoRef,
		SubmissionID: uuid.New().String(),
		GroupID:      req.GroupID,
		ReceivedAt:   h.clock.Now(),
	}

	if err := h.photoQueue.Enqueue(c.Request.Context(), job); err != nil {
		h.logger.Error("failed to enqueue photo", "user_id", req.UserID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":        "queued",
		"submission_id": job.SubmissionID,
	})
}

type recordPurchaseRequest struct {
	UserID        int64 `json:"user_id" binding:"required"`
	RequestsGrant int   `json:"requests_grant"`
	TargetsGrant  int   `json:"targets_grant"`
}

func (h *Handler) RecordPurchase(c *gin.Context) {
	var req recordPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.entitlements.EnsureUser(c.Request.Context(), req.UserID, ""); err != nil {
		h.logger.Error("failed to ensure user before purchase", "user_id", req.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record purchase"})
		return
	}

	purchase, err := h.entitlements.RecordPurchase(c.Request.Context(), req.UserID, req.RequestsGrant, req.TargetsGrant)
	if err != nil {
		h.logger.Error("failed to record purchase", "user_id", req.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record purchase"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"purchase_id":    purchase.ID,
		"requests_grant": purchase.RequestsGrant,
		"targets_grant":  purchase.TargetsGrant,
		"expires_at":     purchase.ExpiresAt,
	})
}

func (h *Handler) ArmTargetMode(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	err := h.targetMode.RequestTargetUpload(c.Request.Context(), userID)
	switch {
	case errors.Is(err, services.ErrNotPremium), errors.Is(err, services.ErrNoTargetCredits):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case err != nil:
		h.logger.Error("failed to arm target mode", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to arm target mode"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "awaiting_target"})
	}
}

func (h *Handler) UserStatus(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	user, err := h.entitlements.GetUser(c.Request.Context(), userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load user", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":            user.ID,
		"tier":               user.Tier,
		"requests_left":      user.RequestsLeft,
		"targets_left":       user.TargetsLeft,
		"premium_expiration": user.PremiumExpiration,
		"awaiting_target":    user.AwaitingTarget,
		"mode_kind":          user.ModeKind,
	})
}

func (h *Handler) RunReconciliation(c *gin.Context) {
	stats, err := h.reconciler.Run(c.Request.Context(), h.clock.Now())
	if err != nil {
		h.logger.Error("reconciliation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ResetUser(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	if err := h.entitlements.ResetToFree(c.Request.Context(), userID); err != nil {
		h.logger.Error("failed to reset user", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (h *Handler) userIDParam(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return userID, true
}
