package model

import (
	"encoding/json"
	"sort"
	"time"
)

// QuestionOutcome is the scored state of a single answered question.
type QuestionOutcome string

const (
	OutcomeCorrect   QuestionOutcome = "correct"
	OutcomeIncorrect QuestionOutcome = "incorrect"
	// OutcomeReported marks a question the learner flagged as broken; it is never scored.
	OutcomeReported QuestionOutcome = "reported"
)

func (o QuestionOutcome) Valid() bool {
	return o == OutcomeCorrect || o == OutcomeIncorrect || o == OutcomeReported
}

type AttemptStatus string

const (
	AttemptInProgress         AttemptStatus = "in_progress"
	AttemptFinalizing         AttemptStatus = "finalizing"
	AttemptFinalized          AttemptStatus = "finalized"
	AttemptFinalizationFailed AttemptStatus = "finalization_failed"
)

type QuestionRecord struct {
	Outcome  QuestionOutcome `json:"outcome"`
	Response json.RawMessage `json:"response,omitempty"`
}

// AttemptState is the in-progress record of one assessment attempt, keyed by
// user, assessment and client session.
type AttemptState struct {
	UserID               string                 `json:"userId"`
	AssessmentID         string                 `json:"assessmentId"`
	SessionID            string                 `json:"sessionId"`
	AttemptNumber        int                    `json:"attemptNumber"`
	StartedAt            time.Time              `json:"startedAt"`
	TotalQuestions       int                    `json:"totalQuestions"`
	CurrentQuestionIndex int                    `json:"currentQuestionIndex"`
	Questions            map[int]QuestionRecord `json:"questions"`
	Status               AttemptStatus          `json:"status"`
	IsFinalized          bool                   `json:"isFinalized"`
	FinalizationError    *string                `json:"finalizationError,omitempty"`
	FinalSummary         *FinalizationSummary   `json:"finalSummary,omitempty"`
}

// Outcomes returns question outcomes ordered by question index.
func (a *AttemptState) Outcomes() []QuestionOutcome {
	indexes := make([]int, 0, len(a.Questions))
	for idx := range a.Questions {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	outcomes := make([]QuestionOutcome, 0, len(indexes))
	for _, idx := range indexes {
		outcomes = append(outcomes, a.Questions[idx].Outcome)
	}
	return outcomes
}

// FinalizationSummary is stored on the attempt once it is finalized.
type FinalizationSummary struct {
	ResultID        string    `json:"resultId"`
	ExerciseXP      int       `json:"exerciseXp"`
	BankedXP        int       `json:"bankedXp"`
	TotalXP         int       `json:"totalXp"`
	AnalyticsXP     int       `json:"analyticsXp"`
	Accuracy        float64   `json:"accuracy"`
	Multiplier      float64   `json:"multiplier"`
	PenaltyApplied  bool      `json:"penaltyApplied"`
	RequiresRetry   bool      `json:"requiresRetry"`
	DurationSeconds int       `json:"durationSeconds"`
	FinalizedAt     time.Time `json:"finalizedAt"`
}
