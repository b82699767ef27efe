package model

import "time"

// ReadTimeState is the accrued engagement of one user on one article or video.
// ReportedReadTimeSeconds never exceeds CumulativeReadTimeSeconds, and neither
// changes once FinalizedAt is set.
type ReadTimeState struct {
	UserID                    string     `json:"userId"`
	ResourceID                string     `json:"resourceId"`
	CumulativeReadTimeSeconds float64    `json:"cumulativeReadTimeSeconds"`
	ReportedReadTimeSeconds   float64    `json:"reportedReadTimeSeconds"`
	CanonicalDurationSeconds  *float64   `json:"canonicalDurationSeconds,omitempty"`
	LastServerSyncAt          *time.Time `json:"lastServerSyncAt,omitempty"`
	FinalizedAt               *time.Time `json:"finalizedAt,omitempty"`
}

func (s *ReadTimeState) IsFinalized() bool {
	return s.FinalizedAt != nil
}

// Unreported is the accrued time not yet emitted to analytics.
func (s *ReadTimeState) Unreported() float64 {
	d := s.CumulativeReadTimeSeconds - s.ReportedReadTimeSeconds
	if d < 0 {
		return 0
	}
	return d
}
