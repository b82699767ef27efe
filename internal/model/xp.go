package model

// XPAward is the outcome of scoring one attempt. It is folded into the
// gradebook metadata and never stored on its own.
type XPAward struct {
	FinalXP        int     `json:"finalXp"`
	AnalyticsXP    int     `json:"analyticsXp"`
	PrePenaltyXP   int     `json:"prePenaltyXp"`
	Multiplier     float64 `json:"multiplier"`
	Accuracy       float64 `json:"accuracy"`
	PenaltyApplied bool    `json:"penaltyApplied"`
	RequiresRetry  bool    `json:"requiresRetry"`
	Reason         string  `json:"reason"`
	CorrectCount   int     `json:"correctCount"`
	ScorableCount  int     `json:"scorableCount"`
}

// AccuracyPercent returns accuracy on the 0-100 scale used by the retry policy.
func (a XPAward) AccuracyPercent() float64 {
	return a.Accuracy * 100
}

type BankedAward struct {
	ResourceID   string       `json:"resourceId"`
	ResourceType ResourceType `json:"resourceType"`
	XP           int          `json:"xp"`
}

type BankedXPResult struct {
	BankedXP           int           `json:"bankedXp"`
	AwardedResourceIDs []string      `json:"awardedResourceIds"`
	Awards             []BankedAward `json:"awards"`
}
