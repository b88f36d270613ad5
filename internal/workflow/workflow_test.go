package workflow

import (
	"context"
	"errors"
	"testing"
	"time"
	"opacbridge/internal/components/chrono"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/opac"

	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)

func testClock() *chrono.ManualTime {
	return chrono.NewManualTime(testStart)
}

type scriptedBackend struct {
	calls  []opac.StepInput
	script []func(step opac.StepInput) (opac.MultiStepResult, error)
}

func (s *scriptedBackend) op(ctx context.Context, step opac.StepInput) (opac.MultiStepResult, error) {
	s.calls = append(s.calls, step)
	i := len(s.calls) - 1
	if i >= len(s.script) {
		return opac.Failed("script exhausted"), nil
	}
	return s.script[i](step)
}

func branchThenOK() *scriptedBackend {
	return &scriptedBackend{
		script: []func(opac.StepInput) (opac.MultiStepResult, error){
			func(opac.StepInput) (opac.MultiStepResult, error) {
				return opac.NeedsSelection("Abholort", []opac.Option{
					{Key: "1", Label: "Zentralbibliothek"},
					{Key: "2", Label: "Stadtteilbibliothek"},
				}, opac.ActionBranch), nil
			},
			func(step opac.StepInput) (opac.MultiStepResult, error) {
				return opac.OK("Vorgemerkt in " + step.Selection), nil
			},
		},
	}
}

type scriptedCallbacks struct {
	selections    []Answer
	confirmations []Answer

	prompts   []string
	succeeded []string
	failed    []string
	cancelled int
}

func (c *scriptedCallbacks) OnNeedsSelection(ctx context.Context, prompt string, options []opac.Option, action opac.ActionID) Answer {
	c.prompts = append(c.prompts, prompt)
	if len(c.selections) == 0 {
		return Answer{Cancel: true}
	}
	answer := c.selections[0]
	c.selections = c.selections[1:]
	return answer
}

func (c *scriptedCallbacks) OnNeedsConfirmation(ctx context.Context, details []opac.Detail, action opac.ActionID) Answer {
	if len(c.confirmations) == 0 {
		return Answer{Cancel: true}
	}
	answer := c.confirmations[0]
	c.confirmations = c.confirmations[1:]
	return answer
}

func (c *scriptedCallbacks) OnSucceeded(message string) {
	c.succeeded = append(c.succeeded, message)
}

func (c *scriptedCallbacks) OnFailed(message string) {
	c.failed = append(c.failed, message)
}

func (c *scriptedCallbacks) OnCancelled() {
	c.cancelled++
}

func TestRunSelectFirstOption(t *testing.T) {
	backend := branchThenOK()
	cb := &scriptedCallbacks{selections: []Answer{{Value: "1"}}}
	w := New(KindReserve, backend.op, testClock(), telemetry.NewRecorder())

	state := Run(context.Background(), w, cb)
	require.Equal(t, Succeeded, state)
	require.Equal(t, []string{"Vorgemerkt in 1"}, cb.succeeded)
	require.Equal(t, []string{"Abholort"}, cb.prompts)
	require.Equal(t, []opac.StepInput{
		{Action: opac.ActionNone},
		{Action: opac.ActionBranch, Selection: "1"},
	}, backend.calls)
	require.Equal(t, 2, w.Steps())
}

func TestRunCancelAtSelection(t *testing.T) {
	backend := branchThenOK()
	cb := &scriptedCallbacks{}
	w := New(KindReserve, backend.op, testClock(), telemetry.NewRecorder())

	state := Run(context.Background(), w, cb)
	require.Equal(t, Cancelled, state)
	require.Equal(t, 1, cb.cancelled)
	require.Len(t, backend.calls, 1)
	require.Empty(t, cb.succeeded)
	require.Empty(t, cb.failed)
}

func TestRunConfirmation(t *testing.T) {
	backend := &scriptedBackend{
		script: []func(opac.StepInput) (opac.MultiStepResult, error){
			func(opac.StepInput) (opac.MultiStepResult, error) {
				return opac.NeedsSelection("Zweigstelle", []opac.Option{{Key: "a", Label: "A"}}, opac.ActionNone), nil
			},
			func(opac.StepInput) (opac.MultiStepResult, error) {
				return opac.NeedsConfirmation([]opac.Detail{{Label: "Gebühr", Value: "1,00 EUR"}}, opac.ActionNone), nil
			},
			func(opac.StepInput) (opac.MultiStepResult, error) {
				return opac.OK(""), nil
			},
		},
	}
	cb := &scriptedCallbacks{
		selections:    []Answer{{Value: "a"}},
		confirmations: []Answer{{}},
	}
	w := New(KindReserve, backend.op, testClock(), telemetry.NewRecorder())

	require.Equal(t, Succeeded, Run(context.Background(), w, cb))
	require.Equal(t, []opac.StepInput{
		{Action: opac.ActionNone},
		{Action: opac.ActionNone + 1, Selection: "a"},
		{Action: opac.ActionConfirmation},
	}, backend.calls)
}

func TestRunFailsWithMessage(t *testing.T) {
	testCases := []struct {
		name     string
		result   opac.MultiStepResult
		err      error
		expected string
	}{
		{
			name:     "site error",
			result:   opac.Failed("Das Medium ist bereits vorgemerkt"),
			expected: "Das Medium ist bereits vorgemerkt",
		},
		{
			name:     "rejected login",
			err:      &opac.CredentialError{Message: "Ausweis gesperrt"},
			expected: "Ausweis gesperrt",
		},
		{
			name:     "protocol",
			err:      &opac.ProtocolError{Adapter: "sisis", Op: "reserve", Marker: "form"},
			expected: "sisis: reserve: could not find form",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &scriptedBackend{
				script: []func(opac.StepInput) (opac.MultiStepResult, error){
					func(opac.StepInput) (opac.MultiStepResult, error) {
						return tc.result, tc.err
					},
				},
			}
			cb := &scriptedCallbacks{}
			w := New(KindProlong, backend.op, testClock(), telemetry.NewRecorder())

			require.Equal(t, Failed, Run(context.Background(), w, cb))
			require.Equal(t, []string{tc.expected}, cb.failed)
		})
	}
}

func TestRetryAfterError(t *testing.T) {
	unreachable := &opac.UnreachableError{Endpoint: "http://opac", Err: errors.New("timeout")}
	backend := &scriptedBackend{
		script: []func(opac.StepInput) (opac.MultiStepResult, error){
			func(opac.StepInput) (opac.MultiStepResult, error) {
				return opac.NeedsSelection("x", []opac.Option{{Key: "k", Label: "K"}}, opac.ActionBranch), nil
			},
			func(opac.StepInput) (opac.MultiStepResult, error) {
				return opac.MultiStepResult{}, unreachable
			},
			func(opac.StepInput) (opac.MultiStepResult, error) {
				return opac.OK("done"), nil
			},
		},
	}
	w := New(KindReserve, backend.op, testClock(), telemetry.NewRecorder())
	ctx := context.Background()

	state, err := w.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, AwaitingSelection, state)
	require.NoError(t, w.Select("k"))

	state, err = w.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, Failed, state)
	require.ErrorIs(t, w.Err(), unreachable)
	require.Len(t, backend.calls, 2)

	require.NoError(t, w.Retry())
	state, err = w.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, Succeeded, state)
	require.Equal(t, backend.calls[1], backend.calls[2])

	require.ErrorIs(t, w.Retry(), ErrNotRetryable)
}

func TestSiteErrorIsNotRetryable(t *testing.T) {
	backend := &scriptedBackend{
		script: []func(opac.StepInput) (opac.MultiStepResult, error){
			func(opac.StepInput) (opac.MultiStepResult, error) {
				return opac.Failed("nein"), nil
			},
		},
	}
	w := New(KindCancel, backend.op, testClock(), telemetry.NewRecorder())
	_, err := w.Advance(context.Background())
	require.NoError(t, err)
	require.ErrorIs(t, w.Retry(), ErrNotRetryable)
}

func TestWrongStateTransitions(t *testing.T) {
	backend := branchThenOK()
	w := New(KindReserve, backend.op, testClock(), telemetry.NewRecorder())

	require.ErrorIs(t, w.Select("1"), ErrWrongState)
	require.ErrorIs(t, w.Confirm(), ErrWrongState)

	_, err := w.Advance(context.Background())
	require.NoError(t, err)
	_, err = w.Advance(context.Background())
	require.ErrorIs(t, err, ErrWrongState)
	require.ErrorIs(t, w.Select("3"), ErrInvalidSelection)
	require.Equal(t, AwaitingSelection, w.State())
	require.Len(t, backend.calls, 1)
}

func TestInvalidAnswersCancel(t *testing.T) {
	backend := branchThenOK()
	cb := &scriptedCallbacks{selections: []Answer{{Value: "x"}, {Value: "y"}, {Value: "z"}, {Value: "1"}}}
	w := New(KindReserve, backend.op, testClock(), telemetry.NewRecorder())

	require.Equal(t, Cancelled, Run(context.Background(), w, cb))
	require.Len(t, backend.calls, 1)
	require.Len(t, cb.prompts, 3)
}

func TestContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := &scriptedBackend{
		script: []func(opac.StepInput) (opac.MultiStepResult, error){
			func(opac.StepInput) (opac.MultiStepResult, error) {
				cancel()
				return opac.MultiStepResult{}, context.Canceled
			},
		},
	}
	cb := &scriptedCallbacks{}
	w := New(KindBook, backend.op, testClock(), telemetry.NewRecorder())

	require.Equal(t, Cancelled, Run(ctx, w, cb))
	require.Equal(t, 1, cb.cancelled)
}

func TestNoConcurrentSteps(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	op := func(ctx context.Context, step opac.StepInput) (opac.MultiStepResult, error) {
		close(entered)
		<-release
		return opac.OK(""), nil
	}
	w := New(KindProlong, op, testClock(), telemetry.NewRecorder())

	done := make(chan State)
	go func() {
		state, _ := w.Advance(context.Background())
		done <- state
	}()
	<-entered

	_, err := w.Advance(context.Background())
	require.ErrorIs(t, err, ErrInFlight)

	w.Cancel()
	close(release)
	require.Equal(t, Cancelled, <-done)
	require.Equal(t, Cancelled, w.State())
}

func TestTranscript(t *testing.T) {
	backend := branchThenOK()
	cb := &scriptedCallbacks{selections: []Answer{{Value: "2"}}}
	w := New(KindReserve, backend.op, testClock(), telemetry.NewRecorder())
	Run(context.Background(), w, cb)

	var statuses []string
	for _, e := range w.Transcript() {
		statuses = append(statuses, e.Status)
	}
	require.Equal(t, []string{"created", "SELECTION_NEEDED", "selected", "OK"}, statuses)
	require.Equal(t, Succeeded, w.Transcript()[3].State)
	require.NotEmpty(t, w.ID.String())
}

func TestTranscriptUsesClock(t *testing.T) {
	clock := testClock()
	backend := &scriptedBackend{
		script: []func(opac.StepInput) (opac.MultiStepResult, error){
			func(opac.StepInput) (opac.MultiStepResult, error) {
				clock.Advance(2 * time.Second)
				return opac.NeedsConfirmation([]opac.Detail{{Label: "Gebühr", Value: "1,00 EUR"}}, opac.ActionConfirmation), nil
			},
			func(opac.StepInput) (opac.MultiStepResult, error) {
				clock.Advance(time.Second)
				return opac.OK(""), nil
			},
		},
	}
	w := New(KindReserve, backend.op, clock, telemetry.NewRecorder())
	state := Run(context.Background(), w, &scriptedCallbacks{confirmations: []Answer{{}}})
	require.Equal(t, Succeeded, state)

	var at []time.Time
	for _, e := range w.Transcript() {
		at = append(at, e.At)
	}
	require.Equal(t, []time.Time{
		testStart,
		testStart.Add(2 * time.Second),
		testStart.Add(2 * time.Second),
		testStart.Add(3 * time.Second),
	}, at)
}
