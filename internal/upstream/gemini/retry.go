package gemini

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	retryBaseInterval = time.Second
	retryMaxInterval  = 8 * time.Second
)

func nextBackoff(attempt int) time.Duration {
	dur := float64(retryBaseInterval) * math.Pow(2, float64(attempt))
	if dur > float64(retryMaxInterval) {
		dur = float64(retryMaxInterval)
	}
	jitter := 0.5 + rand.Float64()
	return time.Duration(dur * jitter)
}

// shouldRetry decides whether an attempt is worth repeating. Rate limiting
// and transient 5xx responses retry with backoff; context cancellation and
// client errors do not.
func shouldRetry(status int, err error, attempt int) (bool, time.Duration) {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, 0
		}
		return true, nextBackoff(attempt)
	}
	switch {
	case status == http.StatusTooManyRequests:
		return true, nextBackoff(attempt)
	case status >= 500 && status <= 599:
		return true, nextBackoff(attempt)
	case status == http.StatusRequestTimeout:
		return true, nextBackoff(attempt)
	}
	return false, 0
}

func parseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, true
	}
	layouts := []string{time.RFC1123, time.RFC1123Z, time.RFC850, time.ANSIC}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			d := time.Until(t)
			if d < 0 {
				d = 0
			}
			return d, true
		}
	}
	return 0, false
}
