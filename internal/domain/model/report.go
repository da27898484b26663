package model

import "time"

// Stage names a pipeline state.
type Stage string

const (
	StageIngest         Stage = "ingest"
	StageExtractFeature Stage = "extract_features"
	StageSemanticSearch Stage = "semantic_search"
	StageAnalyzePlayer  Stage = "analyze_player"
	StageClassify       Stage = "classify"
	StagePersist        Stage = "persist"
	StageReport         Stage = "report"
	StageAdvance        Stage = "advance"
	StageTerminate      Stage = "terminate"
)

// Persist statuses.
const (
	PersistSuccess = "success"
	PersistFailed  = "failed"
	PersistSkipped = "skipped"
)

// StageFailure records a degraded stage for one player.
type StageFailure struct {
	Stage   Stage  `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewStageFailure builds a StageFailure from err.
func NewStageFailure(stage Stage, err error) StageFailure {
	return StageFailure{Stage: stage, Kind: ErrorKind(err), Message: err.Error()}
}

// Report is the per-player outcome appended once the player leaves the pipeline.
type Report struct {
	RunID          string         `json:"run_id"`
	Seq            int            `json:"seq"`
	PlayerID       string         `json:"player_id"`
	Classification string         `json:"classification"`
	Confidence     *float64       `json:"confidence"`
	Reasoning      string         `json:"reasoning"`
	AnomalyScore   *int           `json:"anomaly_score"`
	SocialScore    *int           `json:"social_diversity_score"`
	ActionScore    *int           `json:"player_action_score"`
	SimilarPlayers []string       `json:"similar_player_ids"`
	PersistStatus  string         `json:"kg_persist_status"`
	Failures       []StageFailure `json:"failures,omitempty"`
	CompletedAt    time.Time      `json:"completed_at"`
}

// PlayerTask is one unit of work handed to a pool worker.
type PlayerTask struct {
	Seq      int
	PlayerID string
}

// Analysis is the scratch state accumulated for the current player.
type Analysis struct {
	Features      Features
	Similar       []string
	Scores        map[Signal]SignalScore
	Verdict       Verdict
	PersistStatus string
	Failures      []StageFailure
}

// Fail records a degraded stage.
func (a *Analysis) Fail(stage Stage, err error) {
	a.Failures = append(a.Failures, NewStageFailure(stage, err))
}

// Score returns the parsed score of sig, or nil.
func (a *Analysis) Score(sig Signal) *int {
	return a.Scores[sig].Score
}

// PipelineState is threaded through the pipeline stages.
type PipelineState struct {
	RunID     string
	Queue     []string
	Current   string
	Seq       int
	Remaining int
	Analysis  Analysis
	Reports   []Report
	Done      bool
}

// NewPipelineState seeds a state with a FIFO queue and a step budget.
func NewPipelineState(runID string, ids []string, budget int) *PipelineState {
	q := make([]string, len(ids))
	copy(q, ids)
	return &PipelineState{RunID: runID, Queue: q, Remaining: budget}
}

// Advance pops the next player when budget and queue allow it.
// It returns false once the pipeline must terminate.
func (s *PipelineState) Advance() bool {
	if s.Remaining <= 0 || len(s.Queue) == 0 {
		s.Done = true
		s.Current = ""
		return false
	}
	s.Current = s.Queue[0]
	s.Queue = s.Queue[1:]
	s.Remaining--
	s.Seq++
	s.Analysis = Analysis{Scores: make(map[Signal]SignalScore, len(Signals))}
	return true
}
