package analyses

import (
	"reflect"
	"testing"
)

func TestParseModelOutputClampsAndDefaults(t *testing.T) {
	result, err := ParseModelOutput("```json\n{\"overall_score\": 150}\n```")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if result.OverallScore != 100 {
		t.Fatalf("expected score clamped to 100, got %d", result.OverallScore)
	}
	if result.PerformanceLabel != "EXCELLENT PERFORMANCE" {
		t.Fatalf("expected label derived from clamped score, got %q", result.PerformanceLabel)
	}
	if result.PerformanceGrades != (PerformanceGrades{DefenseGrade: "C+", OffenseGrade: "C", ControlGrade: "C+"}) {
		t.Fatalf("expected default grades, got %+v", result.PerformanceGrades)
	}
	want := SkillBreakdown{Offense: 95, Defense: 100, Guard: 98, Passing: 90, Standup: 87}
	if result.SkillBreakdown != want {
		t.Fatalf("expected skills derived from clamped base, got %+v", result.SkillBreakdown)
	}
	if !reflect.DeepEqual(result.Strengths, []string{"Good structure", "Showed awareness", "Consistent"}) {
		t.Fatalf("expected default strengths, got %v", result.Strengths)
	}
	if len(result.MissedOpportunities) != 1 || result.MissedOpportunities[0].Category != "POSITION" {
		t.Fatalf("expected canned missed opportunity, got %+v", result.MissedOpportunities)
	}
	if len(result.KeyMoments) != 1 || result.KeyMoments[0].Time != "00:30" {
		t.Fatalf("expected canned key moment, got %+v", result.KeyMoments)
	}
	if result.CoachNotes != "Focus on fundamentals and consistent positioning." {
		t.Fatalf("expected default coach notes, got %q", result.CoachNotes)
	}
	if len(result.RecommendedDrills) != 3 || result.RecommendedDrills[0].Name != "Position Control" {
		t.Fatalf("expected canned drills, got %+v", result.RecommendedDrills)
	}
}

func TestParseModelOutputKeepsValidObject(t *testing.T) {
	result, err := ParseModelOutput(validModelJSON)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if result.OverallScore != 78 {
		t.Fatalf("expected score 78, got %d", result.OverallScore)
	}
	if result.PerformanceLabel != "STRONG PERFORMANCE" {
		t.Fatalf("expected label preserved, got %q", result.PerformanceLabel)
	}
	if result.PerformanceGrades != (PerformanceGrades{DefenseGrade: "B+", OffenseGrade: "B", ControlGrade: "B"}) {
		t.Fatalf("expected grades preserved, got %+v", result.PerformanceGrades)
	}
	if result.SkillBreakdown != (SkillBreakdown{Offense: 75, Defense: 80, Guard: 76, Passing: 70, Standup: 65}) {
		t.Fatalf("expected skills preserved, got %+v", result.SkillBreakdown)
	}
	if result.Strengths[0] != "Strong guard retention" {
		t.Fatalf("expected strengths preserved, got %v", result.Strengths)
	}
	if len(result.MissedOpportunities) != 1 || result.MissedOpportunities[0].Category != "SUBMISSION" {
		t.Fatalf("expected missed opportunity preserved, got %+v", result.MissedOpportunities)
	}
	if result.RecommendedDrills[0].Duration != "10 min/day" {
		t.Fatalf("expected drill duration preserved, got %+v", result.RecommendedDrills[0])
	}
}

func TestLabelForScore(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{100, "EXCELLENT PERFORMANCE"},
		{85, "EXCELLENT PERFORMANCE"},
		{84, "STRONG PERFORMANCE"},
		{75, "STRONG PERFORMANCE"},
		{74, "SOLID PERFORMANCE"},
		{60, "SOLID PERFORMANCE"},
		{59, "DEVELOPING PERFORMANCE"},
		{0, "DEVELOPING PERFORMANCE"},
	}
	for _, tc := range cases {
		if got := labelForScore(tc.score); got != tc.want {
			t.Fatalf("score %d: expected %q, got %q", tc.score, tc.want, got)
		}
	}
}

func TestSkillDefaultsUseFixedOffsets(t *testing.T) {
	result, err := ParseModelOutput(`{"overall_score": 70, "skill_breakdown": {"offense": 80}}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := SkillBreakdown{Offense: 80, Defense: 73, Guard: 68, Passing: 60, Standup: 57}
	if result.SkillBreakdown != want {
		t.Fatalf("expected %+v, got %+v", want, result.SkillBreakdown)
	}
}

func TestTopThreeListRule(t *testing.T) {
	result, err := ParseModelOutput(`{
		"overall_score": 70,
		"strengths": ["Only one", "Only two"],
		"weaknesses": ["w1", "w2", "w3", "w4", "w5"]
	}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(result.Strengths, []string{"Good structure", "Showed awareness", "Consistent"}) {
		t.Fatalf("expected short list wholesale-replaced, got %v", result.Strengths)
	}
	if !reflect.DeepEqual(result.Weaknesses, []string{"w1", "w2", "w3"}) {
		t.Fatalf("expected long list truncated to three, got %v", result.Weaknesses)
	}
}

func TestNumericStringScoreParses(t *testing.T) {
	result, err := ParseModelOutput(`{"overall_score": "72"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.OverallScore != 72 {
		t.Fatalf("expected numeric string coerced to 72, got %d", result.OverallScore)
	}
	if result.PerformanceLabel != "SOLID PERFORMANCE" {
		t.Fatalf("expected label for 72, got %q", result.PerformanceLabel)
	}

	result, err = ParseModelOutput(`{"overall_score": "pretty good"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.OverallScore != 65 {
		t.Fatalf("expected unusable score to default to 65, got %d", result.OverallScore)
	}
}

func TestCoachNotesMinimumLength(t *testing.T) {
	result, err := ParseModelOutput(`{"overall_score": 70, "coach_notes": "Too short."}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.CoachNotes != "Focus on fundamentals and consistent positioning." {
		t.Fatalf("expected short notes replaced, got %q", result.CoachNotes)
	}

	long := "Keep working on maintaining frames from bottom and finishing your passes with chest pressure."
	result, err = ParseModelOutput(`{"overall_score": 70, "coach_notes": "` + long + `"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.CoachNotes != long {
		t.Fatalf("expected long notes preserved, got %q", result.CoachNotes)
	}
}

func TestEventCategoryDefault(t *testing.T) {
	result, err := ParseModelOutput(`{
		"overall_score": 70,
		"key_moments": [{"time": "00:10", "title": "Scramble", "description": "Fast exchange"}]
	}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(result.KeyMoments) != 1 || result.KeyMoments[0].Category != "GENERAL" {
		t.Fatalf("expected category defaulted to GENERAL, got %+v", result.KeyMoments)
	}
}

func TestDrillDefaultsAndTruncation(t *testing.T) {
	result, err := ParseModelOutput(`{
		"overall_score": 70,
		"recommended_drills": [
			{"name": "A", "focus_area": "Guard", "reason": "r"},
			{"name": "B", "focus_area": "Passing", "reason": "r"},
			{"name": "C", "focus_area": "Control", "reason": "r"},
			{"name": "D", "focus_area": "Extra", "reason": "r"}
		]
	}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(result.RecommendedDrills) != 3 {
		t.Fatalf("expected exactly 3 drills, got %d", len(result.RecommendedDrills))
	}
	if result.RecommendedDrills[0].Duration != "15 min/day" || result.RecommendedDrills[0].Frequency != "5x/week" {
		t.Fatalf("expected missing cadence fields filled, got %+v", result.RecommendedDrills[0])
	}
	if result.RecommendedDrills[2].Name != "C" {
		t.Fatalf("expected fourth drill dropped, got %+v", result.RecommendedDrills)
	}

	result, err = ParseModelOutput(`{
		"overall_score": 70,
		"recommended_drills": [{"name": "A", "focus_area": "Guard", "reason": "r"}]
	}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.RecommendedDrills[0].Name != "Position Control" {
		t.Fatalf("expected short drill list wholesale-replaced, got %+v", result.RecommendedDrills)
	}
}
