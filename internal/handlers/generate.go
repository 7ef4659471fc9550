// Package handlers holds the gin handlers for the public API and the admin
// surface.
package handlers

import (
	"errors"
	"net/http"

	"svgforge-go/internal/agents"
	"svgforge-go/internal/apierr"
	"svgforge-go/internal/auth"
	"svgforge-go/internal/logging"
	"svgforge-go/internal/monitoring"
	"svgforge-go/internal/pool"
	"svgforge-go/internal/quota"
	"svgforge-go/internal/userkeys"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type generateRequest struct {
	UserPrompt string `json:"userPrompt"`
	Mode       string `json:"mode"`
	Context    struct {
		FrameName   string `json:"frameName"`
		ElementInfo string `json:"elementInfo"`
	} `json:"context"`
	FrameDataBase64   string `json:"frameDataBase64"`
	ElementDataBase64 string `json:"elementDataBase64"`
}

// Generate handles one design request. Users with a registered key of their
// own call upstream directly; everyone else spends trial quota and borrows a
// pooled credential for the duration of the request.
type Generate struct {
	Pool         *pool.Pool
	Quota        quota.Ledger
	Keys         userkeys.Store
	Orchestrator *agents.Orchestrator
}

func (h *Generate) Handle(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, apierr.New(http.StatusBadRequest, "invalid_json", "invalid_request_error", "Request must be JSON"))
		return
	}
	if req.UserPrompt == "" {
		apierr.Respond(c, apierr.New(http.StatusBadRequest, "missing_field", "invalid_request_error", "Missing 'userPrompt'"))
		return
	}

	session, ok := auth.SessionFrom(c)
	if !ok {
		apierr.Unauthorized(c, "Missing session")
		return
	}
	userID := session.User.Email
	// Short tag correlating the pool, quota, and upstream log lines of one
	// generation.
	genID := uuid.NewString()[:8]
	c.Set("generation_id", genID)
	c.Set("intent", "")

	in := agents.Input{
		Prompt:       req.UserPrompt,
		Mode:         req.Mode,
		FrameName:    req.Context.FrameName,
		ElementInfo:  req.Context.ElementInfo,
		FrameImage:   req.FrameDataBase64,
		ElementImage: req.ElementDataBase64,
	}

	// A user-registered key bypasses both the trial quota and the pool.
	if ownKey, err := h.Keys.Get(c.Request.Context(), userID); err == nil {
		h.run(c, ownKey, in, "private")
		return
	} else if !errors.Is(err, userkeys.ErrNotFound) {
		logging.WithReq(c, log.Fields{"error": err}).Error("User key lookup failed")
		apierr.Internal(c)
		return
	}

	decision, err := h.Quota.Consume(c.Request.Context(), userID)
	if err != nil {
		monitoring.QuotaDecisionsTotal.WithLabelValues("error").Inc()
		logging.WithReq(c, log.Fields{"error": err}).Error("Quota check failed")
		apierr.Internal(c)
		return
	}
	if !decision.Allowed {
		monitoring.QuotaDecisionsTotal.WithLabelValues("denied").Inc()
		apierr.RespondSoft(c, "Daily free trial limit reached. Register your own API key to continue.")
		return
	}
	monitoring.QuotaDecisionsTotal.WithLabelValues("allowed").Inc()

	lease, err := h.Pool.Acquire(c.Request.Context())
	if err != nil {
		if errors.Is(err, pool.ErrPoolUnavailable) {
			logging.WithReq(c, nil).Error("Credential pool is empty")
			apierr.Respond(c, apierr.New(http.StatusServiceUnavailable, "pool_unavailable", "api_error", "Service is not configured with pooled credentials."))
			return
		}
		// Context cancelled or deadline hit while waiting for a slot.
		apierr.Respond(c, apierr.New(http.StatusServiceUnavailable, "pool_busy", "api_error", "All pooled credentials are busy. Try again shortly."))
		return
	}
	defer func() {
		if err := lease.Release(); err != nil {
			logging.WithReq(c, log.Fields{"error": err}).Error("Lease release failed")
		}
	}()

	logging.WithReq(c, log.Fields{"credential": lease.CredentialID(), "generation_id": genID}).Debug("Pooled credential acquired")
	h.run(c, lease.Secret(), in, lease.CredentialID())
}

func (h *Generate) run(c *gin.Context, apiKey string, in agents.Input, credLabel string) {
	res, err := h.Orchestrator.Run(c.Request.Context(), apiKey, in)
	if err != nil {
		var fe *agents.FlowError
		if errors.As(err, &fe) {
			// User-visible failure, reported inline for the client UI.
			apierr.RespondSoft(c, fe.Msg)
			return
		}
		logging.WithReq(c, log.Fields{"error": err, "credential": credLabel}).Error("Generation failed")
		apierr.Internal(c)
		return
	}

	c.Set("intent", string(res.Intent))
	switch res.Intent {
	case agents.IntentAnswer:
		c.JSON(http.StatusOK, gin.H{"success": true, "answer": res.Answer, "mode": "answer"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "svg": res.SVG})
	}
}
