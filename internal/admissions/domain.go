package admissions

import (
	"time"

	"github.com/google/uuid"
)

// Stage is a step in the admissions pipeline.
type Stage string

const (
	StageNew       Stage = "new"
	StageContacted Stage = "contacted"
	StageInterview Stage = "interview"
	StageOffered   Stage = "offered"
	StageEnrolled  Stage = "enrolled"
	StageRejected  Stage = "rejected"
)

// Stages lists the pipeline in order.
func Stages() []Stage {
	return []Stage{StageNew, StageContacted, StageInterview, StageOffered, StageEnrolled, StageRejected}
}

// ParseStage validates a raw stage string.
func ParseStage(s string) (Stage, bool) {
	for _, stage := range Stages() {
		if Stage(s) == stage {
			return stage, true
		}
	}
	return "", false
}

// transitions holds the allowed next stages. An inquiry can be rejected
// from any active stage; enrolled and rejected are terminal.
var transitions = map[Stage][]Stage{
	StageNew:       {StageContacted, StageRejected},
	StageContacted: {StageInterview, StageRejected},
	StageInterview: {StageOffered, StageRejected},
	StageOffered:   {StageEnrolled, StageRejected},
}

// CanTransition reports whether moving from one stage to another is allowed.
func CanTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the stage ends the pipeline.
func (s Stage) Terminal() bool {
	return s == StageEnrolled || s == StageRejected
}

// NextStages returns the allowed transitions from this stage.
func (s Stage) NextStages() []Stage {
	return transitions[s]
}

// Inquiry is one admissions application moving through the pipeline.
type Inquiry struct {
	ID           int64
	Reference    uuid.UUID
	ChildName    string
	GuardianName string
	Phone        string
	Email        string
	ClassApplied string
	Notes        string
	Stage        Stage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
