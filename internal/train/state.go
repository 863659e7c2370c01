package train

// State is a training state machine state.
type State int

const (
	Init State = iota
	EpochStart
	BatchStep
	Validate
	CheckpointDecision
	Converged
	MaxEpochs
	EarlyStopped
	Failed
)

var stateNames = [...]string{
	Init:               "init",
	EpochStart:         "epoch_start",
	BatchStep:          "batch_step",
	Validate:           "validate",
	CheckpointDecision: "checkpoint_decision",
	Converged:          "converged",
	MaxEpochs:          "max_epochs",
	EarlyStopped:       "early_stopped",
	Failed:             "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s >= Converged
}
