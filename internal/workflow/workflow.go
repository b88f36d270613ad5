// Package workflow drives a multi-step action (reserve, prolong, cancel,
// book) through as many backend round trips as the site asks for, one step at
// a time, until it succeeds, fails or is cancelled.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
	"opacbridge/internal/components/assert"
	"opacbridge/internal/components/chrono"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/opac"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_workflow_advance = "workflow.advance"
	report_workflow_steps   = "workflow.steps"
)

var tracer = telemetry.Tracer("opacbridge/internal/workflow")

type Kind string

const (
	KindReserve    Kind = "reserve"
	KindProlong    Kind = "prolong"
	KindProlongAll Kind = "prolong-all"
	KindCancel     Kind = "cancel"
	KindBook       Kind = "book"
)

type State int

const (
	AwaitingBackend State = iota
	AwaitingSelection
	AwaitingConfirmation
	Succeeded
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case AwaitingBackend:
		return "AWAITING_BACKEND"
	case AwaitingSelection:
		return "AWAITING_USER_SELECTION"
	case AwaitingConfirmation:
		return "AWAITING_USER_CONFIRMATION"
	case Succeeded:
		return "SUCCEEDED"
	case Failed:
		return "FAILED"
	case Cancelled:
		return "CANCELLED_BY_USER"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Cancelled
}

var (
	ErrWrongState       = errors.New("workflow is not in a state that allows this")
	ErrInFlight         = errors.New("workflow already has a step in flight")
	ErrInvalidSelection = errors.New("selection is not one of the offered options")
	ErrNotRetryable     = errors.New("only a step that failed with an error can be retried")
)

// Operation is one call to the backend for the action being driven.
type Operation func(ctx context.Context, step opac.StepInput) (opac.MultiStepResult, error)

// Entry is one line of a workflow's transcript.
type Entry struct {
	At     time.Time
	Input  opac.StepInput
	Status string
	State  State
	Detail string
}

// Workflow is the state machine of one user initiated action. The backend is
// never called concurrently for the same workflow and failed steps are never
// retried on their own.
type Workflow struct {
	ID   uuid.UUID
	Kind Kind

	op   Operation
	time chrono.TimeAPI
	tel  telemetry.API

	mutex      sync.Mutex
	state      State
	input      opac.StepInput
	pending    opac.MultiStepResult
	message    string
	lastErr    error
	inFlight   bool
	steps      int
	transcript []Entry
}

func New(kind Kind, op Operation, clock chrono.TimeAPI, tel telemetry.API) *Workflow {
	assert.NotNil(op)
	assert.NotNil(clock)
	assert.NotNil(tel)

	w := &Workflow{
		ID:    uuid.New(),
		Kind:  kind,
		op:    op,
		time:  clock,
		tel:   telemetry.NewScopedAPI("workflow", tel),
		state: AwaitingBackend,
		input: opac.StepInput{Action: opac.ActionNone},
	}
	w.record("created", "")
	return w
}

// record must be called with the mutex held (or before the workflow escapes New).
func (w *Workflow) record(status, detail string) {
	w.transcript = append(w.transcript, Entry{
		At:     w.time.Now(),
		Input:  w.input,
		Status: status,
		State:  w.state,
		Detail: detail,
	})
}

func (w *Workflow) State() State {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.state
}

// Pending is the result that put the workflow into AwaitingSelection or
// AwaitingConfirmation.
func (w *Workflow) Pending() opac.MultiStepResult {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.pending
}

// Message is the text the backend ended the workflow with, for failures
// caused by an error it is the error's user facing message.
func (w *Workflow) Message() string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.message
}

// Err is the error that failed the last step, if any.
func (w *Workflow) Err() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.lastErr
}

func (w *Workflow) Steps() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.steps
}

func (w *Workflow) Transcript() []Entry {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return slices.Clone(w.transcript)
}

// Advance calls the backend once with the current step input and moves to
// the state the result asks for.
func (w *Workflow) Advance(ctx context.Context) (State, error) {
	w.mutex.Lock()
	if w.state != AwaitingBackend {
		state := w.state
		w.mutex.Unlock()
		return state, ErrWrongState
	}
	if w.inFlight {
		w.mutex.Unlock()
		return AwaitingBackend, ErrInFlight
	}
	w.inFlight = true
	w.steps++
	input := w.input
	step := w.steps
	w.mutex.Unlock()

	ctx, span := tracer.Start(ctx, "workflow."+string(w.Kind), trace.WithAttributes(
		attribute.String("workflow.id", w.ID.String()),
		attribute.Int("workflow.step", step),
		attribute.Int("workflow.action", int(input.Action)),
	))
	defer span.End()

	w.tel.ReportDebug("advance", w.ID.String(), string(w.Kind), step, int(input.Action))
	res, err := w.op(ctx, input)

	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.inFlight = false

	if w.state == Cancelled {
		span.SetAttributes(attribute.String("workflow.outcome", "cancelled"))
		return w.state, nil
	}

	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			w.state = Cancelled
			w.record("cancelled", err.Error())
			span.SetAttributes(attribute.String("workflow.outcome", "cancelled"))
			return w.state, nil
		}
		span.SetStatus(codes.Error, err.Error())
		w.reportError(err)
		w.state = Failed
		w.lastErr = err
		w.message = opac.UserMessage(err)
		w.record("error", err.Error())
		w.tel.ReportCount(report_workflow_steps, int64(w.steps))
		return w.state, nil
	}

	span.SetAttributes(attribute.String("workflow.outcome", res.Status.String()))
	w.lastErr = nil
	switch res.Status {
	case opac.StepOK:
		w.state = Succeeded
		w.message = res.Message
	case opac.StepError:
		w.state = Failed
		w.message = res.Message
	case opac.StepSelectionNeeded:
		w.state = AwaitingSelection
		w.pending = res
	case opac.StepConfirmationNeeded:
		w.state = AwaitingConfirmation
		w.pending = res
	default:
		w.state = Failed
		w.message = fmt.Sprintf("backend returned unknown step status %d", res.Status)
		w.tel.ReportBroken(report_workflow_advance, w.message, string(w.Kind))
	}
	w.record(res.Status.String(), res.Message)
	if w.state.Terminal() {
		w.tel.ReportCount(report_workflow_steps, int64(w.steps))
	}
	return w.state, nil
}

func (w *Workflow) reportError(err error) {
	var credErr *opac.CredentialError
	var opacErr *opac.OpacError
	switch {
	case errors.As(err, &credErr), errors.As(err, &opacErr):
		w.tel.ReportDebug("step rejected", w.ID.String(), err.Error())
	default:
		w.tel.ReportWarning(report_workflow_advance, err, string(w.Kind), w.ID.String())
	}
}

// nextAction is the step id to call the backend with after the user answered.
func (w *Workflow) nextAction(fallback opac.ActionID) opac.ActionID {
	if w.pending.ActionID != opac.ActionNone {
		return w.pending.ActionID
	}
	return fallback
}

// Select answers a selection with the key of one of the offered options.
func (w *Workflow) Select(key string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.state != AwaitingSelection {
		return ErrWrongState
	}
	valid := false
	for _, option := range w.pending.Options {
		if option.Key == key {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %q", ErrInvalidSelection, key)
	}

	w.input = opac.StepInput{
		Action:    w.nextAction(w.input.Action + 1),
		Selection: key,
	}
	w.state = AwaitingBackend
	w.record("selected", key)
	return nil
}

// Confirm acknowledges a confirmation.
func (w *Workflow) Confirm() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.state != AwaitingConfirmation {
		return ErrWrongState
	}
	w.input = opac.StepInput{Action: w.nextAction(opac.ActionConfirmation)}
	w.state = AwaitingBackend
	w.record("confirmed", "")
	return nil
}

// Cancel ends a workflow that has not ended yet. A step that is in flight
// finishes but its result is discarded.
func (w *Workflow) Cancel() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.state.Terminal() {
		return
	}
	w.state = Cancelled
	w.record("cancelled", "")
	w.tel.ReportCount(report_workflow_steps, int64(w.steps))
}

// Retry re-arms the step that failed with an error, with the same input.
func (w *Workflow) Retry() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.state != Failed || w.lastErr == nil {
		return ErrNotRetryable
	}
	w.state = AwaitingBackend
	w.lastErr = nil
	w.message = ""
	w.record("retry", "")
	return nil
}
