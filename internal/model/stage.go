package model

// Stage is a state of the enrichment state machine.
type Stage string

const (
	StagePending     Stage = "PENDING"
	StageFetching    Stage = "FETCHING"
	StageExtracting  Stage = "EXTRACTING"
	StageResearching Stage = "RESEARCHING"
	StageInferring   Stage = "INFERRING"
	StagePersisting  Stage = "PERSISTING"
	StageDone        Stage = "DONE"
	StageFailed      Stage = "FAILED"
)

// Terminal reports whether no further transition follows s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// StageStatus is the outcome of a single stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusDegraded StageStatus = "degraded"
	StageStatusSkipped  StageStatus = "skipped"
	StageStatusFailed   StageStatus = "failed"
)

// StageResult records one stage of an enrichment run.
type StageResult struct {
	Stage    Stage       `json:"stage"`
	Status   StageStatus `json:"status"`
	Duration int64       `json:"duration_ms"`
	Note     string      `json:"note,omitempty"`
}
