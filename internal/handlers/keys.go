package handlers

import (
	"errors"
	"net/http"
	"strings"

	"svgforge-go/internal/apierr"
	"svgforge-go/internal/auth"
	"svgforge-go/internal/logging"
	"svgforge-go/internal/userkeys"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Keys manages the signed-in user's own upstream API key.
type Keys struct {
	Store userkeys.Store
}

type putKeyRequest struct {
	APIKey string `json:"apiKey"`
}

// Put registers or replaces the user's key.
func (h *Keys) Put(c *gin.Context) {
	session, ok := auth.SessionFrom(c)
	if !ok {
		apierr.Unauthorized(c, "Missing session")
		return
	}

	var req putKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.APIKey) == "" {
		apierr.Respond(c, apierr.New(http.StatusBadRequest, "missing_field", "invalid_request_error", "Missing 'apiKey'"))
		return
	}

	if err := h.Store.Set(c.Request.Context(), session.User.Email, strings.TrimSpace(req.APIKey)); err != nil {
		logging.WithReq(c, log.Fields{"error": err}).Error("Store user key failed")
		apierr.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Status reports whether the user has a registered key, without echoing it.
func (h *Keys) Status(c *gin.Context) {
	session, ok := auth.SessionFrom(c)
	if !ok {
		apierr.Unauthorized(c, "Missing session")
		return
	}

	_, err := h.Store.Get(c.Request.Context(), session.User.Email)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "registered": true})
	case errors.Is(err, userkeys.ErrNotFound):
		c.JSON(http.StatusOK, gin.H{"success": true, "registered": false})
	default:
		logging.WithReq(c, log.Fields{"error": err}).Error("User key lookup failed")
		apierr.Internal(c)
	}
}

// Delete removes the user's key, returning them to the pooled trial path.
func (h *Keys) Delete(c *gin.Context) {
	session, ok := auth.SessionFrom(c)
	if !ok {
		apierr.Unauthorized(c, "Missing session")
		return
	}

	err := h.Store.Delete(c.Request.Context(), session.User.Email)
	if err != nil && !errors.Is(err, userkeys.ErrNotFound) {
		logging.WithReq(c, log.Fields{"error": err}).Error("Delete user key failed")
		apierr.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
