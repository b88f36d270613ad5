package opac

type StepStatus int

const (
	StepOK StepStatus = iota
	StepError
	StepSelectionNeeded
	StepConfirmationNeeded
)

func (s StepStatus) String() string {
	switch s {
	case StepOK:
		return "OK"
	case StepError:
		return "ERROR"
	case StepSelectionNeeded:
		return "SELECTION_NEEDED"
	case StepConfirmationNeeded:
		return "CONFIRMATION_NEEDED"
	}
	return "UNKNOWN"
}

// ActionID tells an adapter which step of a multi-step action it is being
// called for. Adapters are free to define their own ids from ActionUser on.
type ActionID int

const (
	ActionNone         ActionID = 0
	ActionConfirmation ActionID = 1
	ActionBranch       ActionID = 2
	ActionUser         ActionID = 100
)

// StepInput is what the caller sends with each step, Selection is the key
// picked for a SELECTION_NEEDED result (empty for confirmations).
type StepInput struct {
	Action    ActionID
	Selection string
}

// MultiStepResult is the outcome of one step of a reservation, renewal,
// cancellation or booking.
type MultiStepResult struct {
	Status  StepStatus
	Message string

	// Prompt and Options are set for StepSelectionNeeded.
	Prompt  string
	Options []Option
	// Details are set for StepConfirmationNeeded.
	Details []Detail

	// ActionID is the step the adapter wants to be called with next, when it
	// is ActionNone the caller picks one.
	ActionID ActionID
}

func (r MultiStepResult) Terminal() bool {
	return r.Status == StepOK || r.Status == StepError
}

func OK(message string) MultiStepResult {
	return MultiStepResult{Status: StepOK, Message: message}
}

func Failed(message string) MultiStepResult {
	return MultiStepResult{Status: StepError, Message: message}
}

func NeedsSelection(prompt string, options []Option, action ActionID) MultiStepResult {
	return MultiStepResult{
		Status:   StepSelectionNeeded,
		Prompt:   prompt,
		Options:  options,
		ActionID: action,
	}
}

func NeedsConfirmation(details []Detail, action ActionID) MultiStepResult {
	return MultiStepResult{
		Status:   StepConfirmationNeeded,
		Details:  details,
		ActionID: action,
	}
}
