package frames

import (
	"context"
	"sort"
)

// Source yields individual frames from an opened video.
type Source interface {
	FPS() float64
	TotalFrames() int
	FrameAt(ctx context.Context, index int) (Frame, error)
	Close() error
}

// Opener opens a video file as a frame Source.
type Opener interface {
	Open(ctx context.Context, path string) (Source, error)
}

// Sample walks the source according to the weighted plan and returns the
// extracted frames in ascending time order. Frames that fail to decode are
// skipped; a video that yields nothing returns an empty slice, not an error.
// The final frame of the clip is always requested so submissions at the very
// end are never missed.
func Sample(ctx context.Context, src Source) ([]Frame, Plan, error) {
	fps := src.FPS()
	total := src.TotalFrames()
	duration := 0.0
	if fps > 0 && total > 0 {
		duration = float64(total) / fps
	}
	plan := PlanFor(duration, fps, total)

	startEnd := int(float64(total) * 0.20)
	endStart := int(float64(total) * 0.80)
	startMax := duration * 0.20
	endMin := duration * 0.80

	var picked []Frame

	countWhere := func(pred func(Frame) bool) int {
		n := 0
		for _, f := range picked {
			if pred(f) {
				n++
			}
		}
		return n
	}

	walk := func(from, to, want int, quotaMet func() bool) error {
		if want <= 0 || to <= from {
			return nil
		}
		stride := (to - from) / want
		if stride < 1 {
			stride = 1
		}
		for idx := from; idx < to; idx += stride {
			if quotaMet() {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if f, err := src.FrameAt(ctx, idx); err == nil {
				picked = append(picked, f)
			}
		}
		return nil
	}

	if err := walk(0, startEnd, plan.Start, func() bool {
		return countWhere(func(f Frame) bool { return f.Second < startMax }) >= plan.Start
	}); err != nil {
		return nil, plan, err
	}

	if err := walk(startEnd, endStart, plan.Middle, func() bool {
		return countWhere(func(f Frame) bool { return f.Second >= startMax && f.Second < endMin }) >= plan.Middle
	}); err != nil {
		return nil, plan, err
	}

	if err := walk(endStart, total, plan.End, func() bool {
		return countWhere(func(f Frame) bool { return f.Second >= endMin }) >= plan.End
	}); err != nil {
		return nil, plan, err
	}

	if total > 0 && !hasIndex(picked, total-1) {
		if f, err := src.FrameAt(ctx, total-1); err == nil {
			picked = append(picked, f)
		}
	}

	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].Second < picked[j].Second
	})

	plan.Extracted = len(picked)
	return picked, plan, nil
}

func hasIndex(fs []Frame, index int) bool {
	for _, f := range fs {
		if f.Index == index {
			return true
		}
	}
	return false
}
