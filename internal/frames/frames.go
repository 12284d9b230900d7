// Package frames extracts a weighted sample of JPEG frames from sparring
// videos. Sampling is front- and back-loaded: submissions and scrambles
// cluster near the start and end of a roll, so those sections get more
// frames than the middle.
package frames

import "fmt"

// Frame is a single extracted video frame encoded as JPEG.
type Frame struct {
	Index     int     // source frame index
	Second    float64 // position in seconds
	Timestamp string  // mm:ss display form
	JPEG      []byte
}

// Plan describes the weighted allocation for a clip. Start, Middle, and End
// are target counts; Extracted is the number of frames actually produced.
type Plan struct {
	Duration    float64
	FPS         float64
	TotalFrames int
	Target      int
	Start       int
	Middle      int
	End         int
	Extracted   int
}

// PlanFor computes the frame allocation for a clip. Shorter clips get fewer
// frames; the start section receives at least 4 and the end at least 6.
func PlanFor(duration, fps float64, totalFrames int) Plan {
	target := 18
	switch {
	case duration <= 30:
		target = 14
	case duration <= 60:
		target = 16
	}

	start := int(float64(target) * 0.25)
	if start < 4 {
		start = 4
	}
	end := int(float64(target) * 0.40)
	if end < 6 {
		end = 6
	}
	middle := target - start - end

	return Plan{
		Duration:    duration,
		FPS:         fps,
		TotalFrames: totalFrames,
		Target:      target,
		Start:       start,
		Middle:      middle,
		End:         end,
	}
}

// Section labels a position in seconds as START, MIDDLE, or END. The first
// 20% of the clip is START and the last 20% is END.
func (p Plan) Section(second float64) string {
	if second < p.Duration*0.20 {
		return "START"
	}
	if second < p.Duration*0.80 {
		return "MIDDLE"
	}
	return "END"
}

// FormatTimestamp renders a second offset as mm:ss.
func FormatTimestamp(second float64) string {
	s := int(second)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
