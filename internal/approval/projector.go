package approval

// Semantic classifies a projected stage for presentation.
//
// Consumers map semantics to their own presentation tokens (colors, icons,
// CSS classes); the projector never deals with styling.
type Semantic string

const (
	// SemanticNotStarted marks a stage that has not been reached yet.
	SemanticNotStarted Semantic = "not_started"

	// SemanticActive marks the stage currently awaiting a decision.
	SemanticActive Semantic = "active"

	// SemanticComplete marks an approved stage.
	SemanticComplete Semantic = "complete"

	// SemanticFailed marks the stage that rejected the chain.
	SemanticFailed Semantic = "failed"

	// SemanticSkipped marks stages after a rejection. They will never run.
	SemanticSkipped Semantic = "skipped"
)

// Labels shown for each projected stage.
const (
	LabelApproved   = "Approved"
	LabelInProgress = "In Progress"
	LabelRejected   = "Rejected"
	LabelPending    = "Pending"
	LabelSkipped    = "Skipped"
)

// StageView is one entry of the stepper render model.
type StageView struct {
	Index    int      `json:"index"`
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Semantic Semantic `json:"semantic"`
}

// Project maps a definition and a state to the stepper render model.
//
// The result has one entry per stage, in order. When the state is Pending,
// exactly one entry is [SemanticActive] (at CurrentStage); otherwise none is.
// Stages after a rejection are [SemanticSkipped].
//
// Project is pure: identical inputs always yield equal outputs. It returns
// [ErrInvalidConfiguration] for an empty definition and [ErrInvalidState]
// when s fails [State.Validate].
func Project(def StageDefinition, s State) ([]StageView, error) {
	if err := s.Validate(def); err != nil {
		return nil, err
	}

	views := make([]StageView, def.Len())
	for i := range views {
		label, semantic := classify(i, s)
		views[i] = StageView{
			Index:    i,
			Name:     def.Name(i),
			Label:    label,
			Semantic: semantic,
		}
	}
	return views, nil
}

func classify(i int, s State) (string, Semantic) {
	switch {
	case s.Status == OutcomeApproved || i < s.CurrentStage:
		return LabelApproved, SemanticComplete
	case i == s.CurrentStage && s.Status == OutcomePending:
		return LabelInProgress, SemanticActive
	case i == s.CurrentStage && s.Status == OutcomeRejected:
		return LabelRejected, SemanticFailed
	case i > s.CurrentStage && s.Status == OutcomeRejected:
		return LabelSkipped, SemanticSkipped
	default:
		return LabelPending, SemanticNotStarted
	}
}

// Progress counts completed stages in a projection.
func Progress(views []StageView) (completed, total int) {
	for _, v := range views {
		if v.Semantic == SemanticComplete {
			completed++
		}
	}
	return completed, len(views)
}

// ActiveIndex returns the index of the active stage, or -1 if none is active.
func ActiveIndex(views []StageView) int {
	for _, v := range views {
		if v.Semantic == SemanticActive {
			return v.Index
		}
	}
	return -1
}
