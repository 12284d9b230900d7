package analyses

import "time"

// Analysis represents a sparring-video analysis job.
type Analysis struct {
	ID                  string          `json:"id"`
	VideoKey            string          `json:"videoKey"`
	UserDescription     string          `json:"userDescription"`
	OpponentDescription string          `json:"opponentDescription"`
	ActivityType        string          `json:"activityType"`
	Status              string          `json:"status"`
	Progress            int             `json:"progress"`
	UsedFallback        bool            `json:"usedFallback"`
	Result              *AnalysisResult `json:"result,omitempty"`
	FailureCode         string          `json:"failureCode,omitempty"`
	FailureMessage      *string         `json:"failureMessage,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
	StartedAt           *time.Time      `json:"startedAt,omitempty"`
	CompletedAt         *time.Time      `json:"completedAt,omitempty"`
}
