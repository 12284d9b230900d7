package analyses

import (
	"context"
	"errors"
	"log"
	"net"
	"strings"
	"time"

	"bjj-backend/internal/shared/metrics"
	"bjj-backend/internal/vision"
)

const visionRetryBaseDelay = 300 * time.Millisecond

type retryingVision struct {
	base       vision.Client
	attempts   int
	requestID  string
	analysisID string
}

// newRetryingVision wraps base with transient-error retries. attempts is
// the total number of calls allowed, minimum 1.
func newRetryingVision(base vision.Client, attempts int, analysisID, requestID string) vision.Client {
	if base == nil {
		return nil
	}
	if attempts < 1 {
		attempts = 1
	}
	return retryingVision{
		base:       base,
		attempts:   attempts,
		requestID:  requestID,
		analysisID: analysisID,
	}
}

func (r retryingVision) AnalyzeSparring(ctx context.Context, input vision.AnalyzeInput) (string, error) {
	resp, err := r.base.AnalyzeSparring(ctx, input)
	for attempt := 1; attempt < r.attempts && shouldRetryVision(err); attempt++ {
		metrics.IncVisionRetry()
		log.Printf("vision retry attempt=%d request_id=%s analysis_id=%s error=%s", attempt, r.requestID, r.analysisID, sanitizeError(err))
		select {
		case <-time.After(visionRetryBaseDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		resp, err = r.base.AnalyzeSparring(ctx, input)
	}
	return resp, err
}

func shouldRetryVision(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) {
		return true
	}

	msg := strings.ToLower(err.Error())
	// 429s are the usual transient failure on Gemini quotas.
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "http status 429") || strings.Contains(msg, "resource_exhausted") {
		return true
	}
	if strings.Contains(msg, "timeout") && (strings.Contains(msg, "gemini") || strings.Contains(msg, "vision") || strings.Contains(msg, "client.timeout")) {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}
