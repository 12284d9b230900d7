package vision

import (
	"strings"
	"testing"

	"bjj-backend/internal/frames"
)

func samplePlan(t *testing.T) (frames.Plan, []frames.Frame) {
	t.Helper()
	plan := frames.PlanFor(20, 30, 600)
	fs := []frames.Frame{
		{Index: 0, Second: 0, Timestamp: "00:00"},
		{Index: 150, Second: 5, Timestamp: "00:05"},
		{Index: 300, Second: 10, Timestamp: "00:10"},
		{Index: 570, Second: 19, Timestamp: "00:19"},
	}
	return plan, fs
}

func TestBuildPromptReplacesAllPlaceholders(t *testing.T) {
	plan, fs := samplePlan(t)

	got := BuildPrompt(plan, fs, "blue belt in rashguard", "white belt in gi")

	if strings.Contains(got, "{{") || strings.Contains(got, "}}") {
		t.Fatalf("prompt still contains unreplaced placeholders:\n%s", got)
	}
	if !strings.Contains(got, "blue belt in rashguard") {
		t.Fatalf("prompt missing user description")
	}
	if !strings.Contains(got, "white belt in gi") {
		t.Fatalf("prompt missing opponent description")
	}
	if !strings.Contains(got, "Duration: 20s") {
		t.Fatalf("prompt missing duration, got:\n%s", got)
	}
	if !strings.Contains(got, "Frames: 4 snapshots") {
		t.Fatalf("prompt should count delivered frames, not planned target")
	}
}

func TestBuildPromptFrameTimeline(t *testing.T) {
	plan, fs := samplePlan(t)

	got := BuildPrompt(plan, fs, "user", "opp")

	wantLines := []string{
		"Frame 1 @ 00:00 (0.00s) [START]",
		"Frame 2 @ 00:05 (5.00s) [MIDDLE]",
		"Frame 3 @ 00:10 (10.00s) [MIDDLE]",
		"Frame 4 @ 00:19 (19.00s) [END]",
	}
	for _, line := range wantLines {
		if !strings.Contains(got, line) {
			t.Fatalf("prompt missing timeline line %q", line)
		}
	}
}

func TestBuildPromptDistributionCounts(t *testing.T) {
	plan, fs := samplePlan(t)

	got := BuildPrompt(plan, fs, "user", "opp")

	if !strings.Contains(got, "START frames (4)") {
		t.Fatalf("prompt missing start frame count")
	}
	if !strings.Contains(got, "MIDDLE frames (4)") {
		t.Fatalf("prompt missing middle frame count")
	}
	if !strings.Contains(got, "END frames (6)") {
		t.Fatalf("prompt missing end frame count")
	}
}

func TestBuildPromptKeepsSubmissionGuidance(t *testing.T) {
	plan, fs := samplePlan(t)

	got := BuildPrompt(plan, fs, "user", "opp")

	for _, want := range []string{
		"SUBMISSION & TAP DETECTION",
		"Straight Ankle Lock",
		"Heel Hook",
		"Rear-Naked Choke",
		"SCORING RULES (OUTCOME-BASED)",
		"OUTPUT FORMAT (JSON ONLY)",
		`"overall_score"`,
		`"recommended_drills"`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing required section %q", want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{20, "20"},
		{33.333, "33.33"},
		{45.5, "45.5"},
		{19.999, "20"},
	}
	for _, tc := range cases {
		if got := formatDuration(tc.in); got != tc.want {
			t.Fatalf("formatDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
