package analyses

// fallbackResult is the canned review returned when the vision pipeline
// cannot produce one. Callers must also mark the analysis used_fallback so
// clients can render a disclaimer.
func fallbackResult() *AnalysisResult {
	return &AnalysisResult{
		OverallScore:     65,
		PerformanceLabel: "SOLID PERFORMANCE",
		PerformanceGrades: PerformanceGrades{
			DefenseGrade: "C+",
			OffenseGrade: "C",
			ControlGrade: "C+",
		},
		SkillBreakdown: SkillBreakdown{
			Offense: 60,
			Defense: 68,
			Guard:   63,
			Passing: 55,
			Standup: 52,
		},
		Strengths:  []string{"Maintained defensive structure", "Showed positional awareness", "Consistent movement"},
		Weaknesses: []string{"Could be more aggressive", "Improve transition recognition", "Work on timing"},
		MissedOpportunities: []TimestampedEvent{
			{Time: "00:30", Title: "Position", Description: "Review for openings", Category: "POSITION"},
		},
		KeyMoments: []TimestampedEvent{
			{Time: "00:15", Title: "Exchange", Description: "Positional work", Category: "TRANSITION"},
		},
		CoachNotes: "Focus on fundamentals: maintain posture, control distance, look for position improvement.",
		RecommendedDrills: []Drill{
			{Name: "Positional Sparring", FocusArea: "General", Reason: "Develop awareness", Duration: "15 min/day", Frequency: "5x/week"},
			{Name: "Guard Work", FocusArea: "Defense", Reason: "Strengthen defense", Duration: "10 min/day", Frequency: "4x/week"},
			{Name: "Position Control", FocusArea: "Control", Reason: "Improve control", Duration: "12 min/day", Frequency: "3x/week"},
		},
	}
}
