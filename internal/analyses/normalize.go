package analyses

import (
	"math"
	"strings"

	"github.com/spf13/cast"
)

// ParseModelOutput converts raw model text into a schema-complete result.
// Extraction can fail; normalization cannot — every missing or malformed
// field falls back to its schema default.
func ParseModelOutput(text string) (*AnalysisResult, error) {
	data, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	return normalizeAnalysis(data), nil
}

func normalizeAnalysis(data map[string]any) *AnalysisResult {
	score := intField(data, "overall_score", 65)
	return &AnalysisResult{
		OverallScore:        score,
		PerformanceLabel:    stringField(data, "performance_label", labelForScore(score)),
		PerformanceGrades:   normalizeGrades(data["performance_grades"]),
		SkillBreakdown:      normalizeSkills(data["skill_breakdown"], score),
		Strengths:           normalizeTopThree(data["strengths"], []string{"Good structure", "Showed awareness", "Consistent"}),
		Weaknesses:          normalizeTopThree(data["weaknesses"], []string{"More aggression", "Improve timing", "Work transitions"}),
		MissedOpportunities: normalizeEvents(data["missed_opportunities"]),
		KeyMoments:          normalizeEvents(data["key_moments"]),
		CoachNotes:          normalizeCoachNotes(data["coach_notes"]),
		RecommendedDrills:   normalizeDrills(data["recommended_drills"]),
	}
}

func labelForScore(score int) string {
	switch {
	case score >= 85:
		return "EXCELLENT PERFORMANCE"
	case score >= 75:
		return "STRONG PERFORMANCE"
	case score >= 60:
		return "SOLID PERFORMANCE"
	default:
		return "DEVELOPING PERFORMANCE"
	}
}

func normalizeGrades(value any) PerformanceGrades {
	entry := cast.ToStringMap(value)
	return PerformanceGrades{
		DefenseGrade: stringField(entry, "defense_grade", "C+"),
		OffenseGrade: stringField(entry, "offense_grade", "C"),
		ControlGrade: stringField(entry, "control_grade", "C+"),
	}
}

// normalizeSkills defaults each missing skill from the overall score with a
// fixed per-skill offset.
func normalizeSkills(value any, base int) SkillBreakdown {
	entry := cast.ToStringMap(value)
	return SkillBreakdown{
		Offense: intField(entry, "offense", clampScore(float64(base-5))),
		Defense: intField(entry, "defense", clampScore(float64(base+3))),
		Guard:   intField(entry, "guard", clampScore(float64(base-2))),
		Passing: intField(entry, "passing", clampScore(float64(base-10))),
		Standup: intField(entry, "standup", clampScore(float64(base-13))),
	}
}

// normalizeTopThree applies the all-or-nothing list rule: fewer than three
// usable entries replaces the whole list with defaults, and anything past
// three is dropped.
func normalizeTopThree(value any, defaults []string) []string {
	list := stringList(value)
	if len(list) < 3 {
		list = defaults
	}
	return list[:3]
}

func normalizeEvents(value any) []TimestampedEvent {
	list, _ := value.([]any)
	out := make([]TimestampedEvent, 0, len(list))
	for _, item := range list {
		entry := cast.ToStringMap(item)
		if len(entry) == 0 {
			continue
		}
		out = append(out, TimestampedEvent{
			Time:        stringField(entry, "time", ""),
			Title:       stringField(entry, "title", ""),
			Description: stringField(entry, "description", ""),
			Category:    stringField(entry, "category", "GENERAL"),
		})
	}
	if len(out) == 0 {
		out = append(out, TimestampedEvent{
			Time:        "00:30",
			Title:       "Key Moment",
			Description: "Review footage",
			Category:    "POSITION",
		})
	}
	return out
}

func normalizeCoachNotes(value any) string {
	notes, err := cast.ToStringE(value)
	if err != nil || len(notes) < 50 {
		return "Focus on fundamentals and consistent positioning."
	}
	return notes
}

func normalizeDrills(value any) []Drill {
	list, _ := value.([]any)
	out := make([]Drill, 0, len(list))
	for _, item := range list {
		entry := cast.ToStringMap(item)
		if len(entry) == 0 {
			continue
		}
		out = append(out, Drill{
			Name:      stringField(entry, "name", ""),
			FocusArea: stringField(entry, "focus_area", ""),
			Reason:    stringField(entry, "reason", ""),
			Duration:  stringField(entry, "duration", "15 min/day"),
			Frequency: stringField(entry, "frequency", "5x/week"),
		})
	}
	if len(out) < 3 {
		out = []Drill{
			{Name: "Position Control", FocusArea: "General", Reason: "Improve awareness", Duration: "15 min/day", Frequency: "5x/week"},
			{Name: "Guard Work", FocusArea: "Defense", Reason: "Strengthen defense", Duration: "10 min/day", Frequency: "4x/week"},
			{Name: "Transitions", FocusArea: "Movement", Reason: "Improve flow", Duration: "12 min/day", Frequency: "3x/week"},
		}
	}
	return out[:3]
}

func intField(data map[string]any, key string, def int) int {
	raw, ok := data[key]
	if !ok || raw == nil {
		return def
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return def
	}
	return clampScore(v)
}

func stringField(data map[string]any, key, def string) string {
	raw, ok := data[key]
	if !ok || raw == nil {
		return def
	}
	v, err := cast.ToStringE(raw)
	if err != nil || strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func stringList(value any) []string {
	switch raw := value.(type) {
	case []string:
		return raw
	case []any:
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func clampScore(value float64) int {
	n := int(math.Round(value))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
