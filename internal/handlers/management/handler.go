package management

import (
	"net/http"

	"llmgate/internal/config"
	"llmgate/internal/constants"
	"llmgate/internal/events"
	"llmgate/internal/upstream"
	"llmgate/internal/usage"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Handler serves the admin surface: health, config, token, usage, probes.
type Handler struct {
	cfg    *config.Manager
	client *upstream.Client
	ledger usage.Ledger
	hub    *events.Hub
}

func New(cfg *config.Manager, client *upstream.Client, ledger usage.Ledger, hub *events.Hub) *Handler {
	return &Handler{cfg: cfg, client: client, ledger: ledger, hub: hub}
}

// GET /health and /v1/health
func (h *Handler) Health(c *gin.Context) {
	s := h.cfg.Current()
	providers := make([]string, 0, len(s.Upstreams))
	for _, u := range s.Upstreams {
		providers = append(providers, u.ID)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   constants.Version,
		"providers": providers,
	})
}

// GET /api/management/token
func (h *Handler) GetToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"forward_token": h.cfg.Current().ForwardToken})
}

// POST /api/management/token/rotate
func (h *Handler) RotateToken(c *gin.Context) {
	token, err := h.cfg.RotateForwardToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error(), "type": "internal_error"}})
		return
	}
	log.Info("forward token rotated")
	c.JSON(http.StatusOK, gin.H{"forward_token": token})
}

// GET /api/management/config
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, redacted(h.cfg.Current()))
}

// PUT /api/management/config replaces upstreams, models, and limits.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var in struct {
		Upstreams *[]config.Upstream    `json:"upstreams"`
		Models    *[]config.ModelCfg    `json:"models"`
		Limits    *config.LimitsConfig  `json:"limits"`
		Proxy     *string               `json:"proxy"`
		EnableRetryFallback *bool       `json:"enable_retry_fallback"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "type": "invalid_request"}})
		return
	}
	err := h.cfg.Update(func(s *config.Settings) {
		if in.Upstreams != nil {
			s.Upstreams = *in.Upstreams
		}
		if in.Models != nil {
			s.Models = *in.Models
		}
		if in.Limits != nil {
			s.Limits = *in.Limits
		}
		if in.Proxy != nil {
			s.Proxy = *in.Proxy
		}
		if in.EnableRetryFallback != nil {
			s.EnableRetryFallback = *in.EnableRetryFallback
		}
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error(), "type": "internal_error"}})
		return
	}
	if h.hub != nil {
		h.hub.Publish(events.TopicConfigUpdated, nil)
	}
	c.JSON(http.StatusOK, redacted(h.cfg.Current()))
}

// POST /api/management/config/reload
func (h *Handler) ReloadConfig(c *gin.Context) {
	if err := h.cfg.Reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error(), "type": "internal_error"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

// GET /api/management/backups
func (h *Handler) ListBackups(c *gin.Context) {
	s := h.cfg.Current()
	times, err := config.ListBackups(s.Backup.Dir, s.Backup.MaxBackups)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error(), "type": "internal_error"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": times})
}

// redacted strips upstream API keys before returning settings to clients.
func redacted(s *config.Settings) *config.Settings {
	out := *s
	out.Upstreams = make([]config.Upstream, len(s.Upstreams))
	copy(out.Upstreams, s.Upstreams)
	for i := range out.Upstreams {
		if out.Upstreams[i].APIKey != "" {
			out.Upstreams[i].APIKey = "***"
		}
	}
	out.ForwardToken = ""
	return &out
}
