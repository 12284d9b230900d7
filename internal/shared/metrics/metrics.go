package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	analysisStartedTotal   atomic.Uint64
	analysisCompletedTotal atomic.Uint64
	analysisFallbackTotal  atomic.Uint64
	videoUploadsTotal      atomic.Uint64
	visionCallsTotal       atomic.Uint64
	visionRetriesTotal     atomic.Uint64
	framesExtractedTotal   atomic.Uint64
	jobsReceivedTotal      atomic.Uint64
	jobsCompletedTotal     atomic.Uint64
	jobsFailedTotal        atomic.Uint64
	jobsUnrecoverableTotal atomic.Uint64
	panicsRecoveredTotal   atomic.Uint64

	analysisDuration   = newHistogram([]float64{1000, 2500, 5000, 10000, 20000, 40000, 60000, 120000, 180000})
	extractionDuration = newHistogram([]float64{250, 500, 1000, 2500, 5000, 10000, 20000, 40000})
	visionDuration     = newHistogram([]float64{500, 1000, 2500, 5000, 10000, 20000, 40000, 90000, 180000})
)

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Add(1)
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysisCompletedTotal.Add(1)
}

// IncAnalysisFallback increments the counter of analyses settled with the fallback result.
func IncAnalysisFallback() {
	analysisFallbackTotal.Add(1)
}

// IncVideoUploaded increments the upload counter.
func IncVideoUploaded() {
	videoUploadsTotal.Add(1)
}

// IncVisionCall increments the vision model call counter.
func IncVisionCall() {
	visionCallsTotal.Add(1)
}

// IncVisionRetry increments the vision retry counter.
func IncVisionRetry() {
	visionRetriesTotal.Add(1)
}

// AddFramesExtracted adds n to the extracted frame counter.
func AddFramesExtracted(n int) {
	if n > 0 {
		framesExtractedTotal.Add(uint64(n))
	}
}

// IncAnalysisJobsReceived increments the queue messages received counter.
func IncAnalysisJobsReceived() {
	jobsReceivedTotal.Add(1)
}

// IncAnalysisJobsCompleted increments the queue messages completed counter.
func IncAnalysisJobsCompleted() {
	jobsCompletedTotal.Add(1)
}

// IncAnalysisJobsFailed increments the queue messages failed counter.
func IncAnalysisJobsFailed() {
	jobsFailedTotal.Add(1)
}

// IncAnalysisJobsDeletedUnrecoverable increments the counter of malformed
// queue messages deleted without processing.
func IncAnalysisJobsDeletedUnrecoverable() {
	jobsUnrecoverableTotal.Add(1)
}

// IncPanicRecovered increments the recovered panic counter.
func IncPanicRecovered() {
	panicsRecoveredTotal.Add(1)
}

// ObserveAnalysisDurationMs records an end-to-end analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

// ObserveExtractionDurationMs records a frame extraction duration in milliseconds.
func ObserveExtractionDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	extractionDuration.Observe(value)
}

// ObserveVisionDurationMs records a vision model call duration in milliseconds.
func ObserveVisionDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	visionDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_started_total", "Total analyses started", analysisStartedTotal.Load())
	writeCounter(&buf, "analysis_completed_total", "Total analyses completed", analysisCompletedTotal.Load())
	writeCounter(&buf, "analysis_fallback_total", "Total analyses settled with fallback results", analysisFallbackTotal.Load())
	writeCounter(&buf, "video_uploads_total", "Total videos uploaded", videoUploadsTotal.Load())
	writeCounter(&buf, "vision_calls_total", "Total vision model calls", visionCallsTotal.Load())
	writeCounter(&buf, "vision_retries_total", "Total vision model retries", visionRetriesTotal.Load())
	writeCounter(&buf, "frames_extracted_total", "Total frames extracted", framesExtractedTotal.Load())
	writeCounter(&buf, "analysis_jobs_received_total", "Total queue messages received", jobsReceivedTotal.Load())
	writeCounter(&buf, "analysis_jobs_completed_total", "Total queue messages completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "analysis_jobs_failed_total", "Total queue messages failed", jobsFailedTotal.Load())
	writeCounter(&buf, "analysis_jobs_deleted_unrecoverable_total", "Total malformed queue messages deleted", jobsUnrecoverableTotal.Load())
	writeCounter(&buf, "panics_recovered_total", "Total panics recovered by middleware", panicsRecoveredTotal.Load())
	writeHistogram(&buf, "analysis_duration_ms", "End-to-end analysis duration in milliseconds", analysisDuration.Snapshot())
	writeHistogram(&buf, "frame_extraction_duration_ms", "Frame extraction duration in milliseconds", extractionDuration.Snapshot())
	writeHistogram(&buf, "vision_call_duration_ms", "Vision model call duration in milliseconds", visionDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	// Per-bucket counts; the writer accumulates into le-form.
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
