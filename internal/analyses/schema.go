package analyses

// JSON Schema:
// {
//   "overall_score": "int (0-100)",
//   "performance_label": "EXCELLENT PERFORMANCE | STRONG PERFORMANCE | SOLID PERFORMANCE | DEVELOPING PERFORMANCE | NEEDS IMPROVEMENT",
//   "performance_grades": {
//     "defense_grade": "string",
//     "offense_grade": "string",
//     "control_grade": "string"
//   },
//   "skill_breakdown": {
//     "offense": "int (0-100)",
//     "defense": "int (0-100)",
//     "guard": "int (0-100)",
//     "passing": "int (0-100)",
//     "standup": "int (0-100)"
//   },
//   "strengths": ["string"] (exactly 3),
//   "weaknesses": ["string"] (exactly 3),
//   "missed_opportunities": [
//     {
//       "time": "MM:SS",
//       "title": "string",
//       "description": "string",
//       "category": "SUBMISSION | SWEEP | POSITION | ...",
//       "frame_timestamp": "MM:SS (present when a frame was attached)",
//       "frame_image": "base64 JPEG (present when a frame was attached)"
//     }
//   ],
//   "key_moments": [same shape as missed_opportunities],
//   "coach_notes": "string (>= 50 chars)",
//   "recommended_drills": [
//     {
//       "name": "string",
//       "focus_area": "string",
//       "reason": "string",
//       "duration": "string",
//       "frequency": "string"
//     }
//   ] (exactly 3)
// }
type AnalysisResult struct {
	OverallScore        int                `json:"overall_score"`
	PerformanceLabel    string             `json:"performance_label"`
	PerformanceGrades   PerformanceGrades  `json:"performance_grades"`
	SkillBreakdown      SkillBreakdown     `json:"skill_breakdown"`
	Strengths           []string           `json:"strengths"`
	Weaknesses          []string           `json:"weaknesses"`
	MissedOpportunities []TimestampedEvent `json:"missed_opportunities"`
	KeyMoments          []TimestampedEvent `json:"key_moments"`
	CoachNotes          string             `json:"coach_notes"`
	RecommendedDrills   []Drill            `json:"recommended_drills"`
}

type PerformanceGrades struct {
	DefenseGrade string `json:"defense_grade"`
	OffenseGrade string `json:"offense_grade"`
	ControlGrade string `json:"control_grade"`
}

type SkillBreakdown struct {
	Offense int `json:"offense"`
	Defense int `json:"defense"`
	Guard   int `json:"guard"`
	Passing int `json:"passing"`
	Standup int `json:"standup"`
}

// TimestampedEvent is a notable moment in the roll. FrameTimestamp and
// FrameImage are set only when a sampled frame could be matched to Time.
type TimestampedEvent struct {
	Time           string `json:"time"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Category       string `json:"category"`
	FrameTimestamp string `json:"frame_timestamp,omitempty"`
	FrameImage     string `json:"frame_image,omitempty"`
}

type Drill struct {
	Name      string `json:"name"`
	FocusArea string `json:"focus_area"`
	Reason    string `json:"reason"`
	Duration  string `json:"duration"`
	Frequency string `json:"frequency"`
}
