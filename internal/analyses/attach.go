package analyses

import (
	"encoding/base64"
	"math"
	"regexp"
	"strconv"

	"bjj-backend/internal/frames"
)

var eventTimeRe = regexp.MustCompile(`(\d{1,2}):(\d{2})`)

// parseEventTime finds the first MM:SS stamp anywhere in the string, so
// narrative values like "At 0:45 - swept from half guard" still resolve.
func parseEventTime(raw string) (int, bool) {
	m := eventTimeRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	mm, _ := strconv.Atoi(m[1])
	ss, _ := strconv.Atoi(m[2])
	return mm*60 + ss, true
}

// closestFrame returns the sampled frame nearest to the target second.
// Ties resolve to the earlier frame.
func closestFrame(target int, fs []frames.Frame) (frames.Frame, bool) {
	if len(fs) == 0 {
		return frames.Frame{}, false
	}
	best := fs[0]
	bestDiff := math.Abs(best.Second - float64(target))
	for _, f := range fs[1:] {
		if diff := math.Abs(f.Second - float64(target)); diff < bestDiff {
			best = f
			bestDiff = diff
		}
	}
	return best, true
}

// attachFramesToEvents pairs each event with the nearest sampled frame.
// Events without a parseable time, and all events when no frames were
// sampled, are left unattached.
func attachFramesToEvents(events []TimestampedEvent, fs []frames.Frame) {
	for i := range events {
		sec, ok := parseEventTime(events[i].Time)
		if !ok {
			continue
		}
		frame, ok := closestFrame(sec, fs)
		if !ok {
			continue
		}
		events[i].FrameTimestamp = frame.Timestamp
		events[i].FrameImage = base64.StdEncoding.EncodeToString(frame.JPEG)
	}
}
