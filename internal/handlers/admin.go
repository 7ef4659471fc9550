package handlers

import (
	"net/http"
	"time"

	"svgforge-go/internal/apierr"
	"svgforge-go/internal/logging"
	"svgforge-go/internal/pool"

	"github.com/gin-gonic/gin"
	ws "github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Admin exposes the operator view of the credential pool.
type Admin struct {
	Pool *pool.Pool
	// bcrypt hash of the management key. Empty disables the admin surface.
	ManagementKeyHash string
}

// Guard checks the X-Admin-Key header against the configured bcrypt hash.
func (h *Admin) Guard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.ManagementKeyHash == "" {
			apierr.Respond(c, apierr.New(http.StatusNotFound, "not_found", "invalid_request_error", "Not found"))
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key == "" {
			key = c.Query("admin_key")
		}
		if bcrypt.CompareHashAndPassword([]byte(h.ManagementKeyHash), []byte(key)) != nil {
			apierr.Unauthorized(c, "Invalid admin key")
			return
		}
		c.Next()
	}
}

// PoolState returns one snapshot of every pooled credential.
func (h *Admin) PoolState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"credentials": h.Pool.Snapshots(),
	})
}

// PoolStream pushes pool snapshots over a websocket once per second.
func (h *Admin) PoolStream(c *gin.Context) {
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool {
		// Admin is same-origin only; the Guard already authenticated the key.
		return r.Header.Get("Origin") == "" || r.Host == c.Request.Host
	}}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	// Reader drains control frames and signals close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-pingTicker.C:
			if err := conn.WriteControl(ws.PingMessage, []byte("ping"), time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteJSON(gin.H{"credentials": h.Pool.Snapshots()}); err != nil {
				logging.WithReq(c, log.Fields{"error": err}).Debug("Pool stream write failed")
				return
			}
		}
	}
}
