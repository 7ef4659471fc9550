package handlers

import (
	"net/http"

	"svgforge-go/internal/apierr"
	"svgforge-go/internal/auth"
	"svgforge-go/internal/logging"
	"svgforge-go/internal/quota"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Auth serves the Google sign-in flow and session endpoints.
type Auth struct {
	Manager *auth.Manager
	Quota   quota.Ledger
}

// Login redirects the browser to the Google consent screen.
func (h *Auth) Login(c *gin.Context) {
	url, err := h.Manager.LoginURL()
	if err != nil {
		logging.WithReq(c, log.Fields{"error": err}).Error("Login URL generation failed")
		apierr.Internal(c)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// Callback finishes the OAuth flow and returns the session token.
func (h *Auth) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		apierr.Respond(c, apierr.New(http.StatusBadRequest, "missing_param", "invalid_request_error", "Missing 'state' or 'code'"))
		return
	}

	session, err := h.Manager.Exchange(c.Request.Context(), state, code)
	if err != nil {
		logging.WithReq(c, log.Fields{"error": err}).Warn("OAuth exchange failed")
		apierr.Unauthorized(c, "Sign-in failed. Please try again.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      session.Token,
		"user":       session.User,
		"expires_at": session.ExpiresAt,
	})
}

// Logout revokes the current session.
func (h *Auth) Logout(c *gin.Context) {
	h.Manager.Revoke(auth.TokenFromRequest(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me reports the signed-in user and their remaining trial allowance.
func (h *Auth) Me(c *gin.Context) {
	session, ok := auth.SessionFrom(c)
	if !ok {
		apierr.Unauthorized(c, "Missing session")
		return
	}

	decision, err := h.Quota.Peek(c.Request.Context(), session.User.Email)
	if err != nil {
		logging.WithReq(c, log.Fields{"error": err}).Error("Quota peek failed")
		apierr.Internal(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    session.User,
		"quota":   decision,
	})
}
