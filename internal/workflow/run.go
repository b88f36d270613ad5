package workflow

import (
	"context"
	"opacbridge/internal/backend"
	"opacbridge/internal/components/chrono"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/opac"
)

const report_run_answer = "run.answer"

// Answer is the caller's reply to a selection or confirmation. For a
// confirmation Value is ignored.
type Answer struct {
	Value  string
	Cancel bool
}

// Callbacks is how Run talks to whoever is in front of the user. The
// OnNeeds* methods block until the user answered.
type Callbacks interface {
	OnNeedsSelection(ctx context.Context, prompt string, options []opac.Option, action opac.ActionID) Answer
	OnNeedsConfirmation(ctx context.Context, details []opac.Detail, action opac.ActionID) Answer
	OnSucceeded(message string)
	OnFailed(message string)
	OnCancelled()
}

// maxInvalidAnswers is how many answers that are not among the offered
// options are tolerated before the workflow is cancelled.
const maxInvalidAnswers = 3

// Run drives w to a terminal state and fires exactly one of the terminal
// callbacks.
func Run(ctx context.Context, w *Workflow, cb Callbacks) State {
	invalid := 0
	state := w.State()
	for {
		switch state {
		case AwaitingBackend:
			var err error
			state, err = w.Advance(ctx)
			if err != nil {
				w.tel.ReportBroken(report_run_answer, err, w.ID.String())
				w.Cancel()
				state = w.State()
			}

		case AwaitingSelection:
			pending := w.Pending()
			answer := cb.OnNeedsSelection(ctx, pending.Prompt, pending.Options, pending.ActionID)
			if answer.Cancel || ctx.Err() != nil {
				w.Cancel()
				state = w.State()
				continue
			}
			err := w.Select(answer.Value)
			if err != nil {
				invalid++
				w.tel.ReportWarning(report_run_answer, err, w.ID.String())
				if invalid >= maxInvalidAnswers {
					w.Cancel()
				}
			}
			state = w.State()

		case AwaitingConfirmation:
			pending := w.Pending()
			answer := cb.OnNeedsConfirmation(ctx, pending.Details, pending.ActionID)
			if answer.Cancel || ctx.Err() != nil {
				w.Cancel()
				state = w.State()
				continue
			}
			err := w.Confirm()
			if err != nil {
				w.tel.ReportBroken(report_run_answer, err, w.ID.String())
				w.Cancel()
			}
			state = w.State()

		case Succeeded:
			cb.OnSucceeded(w.Message())
			return state
		case Failed:
			cb.OnFailed(w.Message())
			return state
		case Cancelled:
			cb.OnCancelled()
			return state
		}
	}
}

func Reserve(api backend.API, item opac.DetailedItem, acc opac.Account, clock chrono.TimeAPI, tel telemetry.API) *Workflow {
	return New(KindReserve, func(ctx context.Context, step opac.StepInput) (opac.MultiStepResult, error) {
		return api.Reserve(ctx, item, acc, step)
	}, clock, tel)
}

func Prolong(api backend.API, token string, acc opac.Account, clock chrono.TimeAPI, tel telemetry.API) *Workflow {
	return New(KindProlong, func(ctx context.Context, step opac.StepInput) (opac.MultiStepResult, error) {
		return api.Prolong(ctx, token, acc, step)
	}, clock, tel)
}

func ProlongAll(api backend.API, acc opac.Account, clock chrono.TimeAPI, tel telemetry.API) *Workflow {
	return New(KindProlongAll, func(ctx context.Context, step opac.StepInput) (opac.MultiStepResult, error) {
		return api.ProlongAll(ctx, acc, step)
	}, clock, tel)
}

func Cancel(api backend.API, token string, acc opac.Account, clock chrono.TimeAPI, tel telemetry.API) *Workflow {
	return New(KindCancel, func(ctx context.Context, step opac.StepInput) (opac.MultiStepResult, error) {
		return api.Cancel(ctx, token, acc, step)
	}, clock, tel)
}

func Book(api backend.API, item opac.DetailedItem, acc opac.Account, clock chrono.TimeAPI, tel telemetry.API) *Workflow {
	return New(KindBook, func(ctx context.Context, step opac.StepInput) (opac.MultiStepResult, error) {
		return api.Book(ctx, item, acc, step)
	}, clock, tel)
}
