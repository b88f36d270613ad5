// Package session keeps the state a backend needs to look continuously
// logged in across otherwise independent calls: the bootstrap token, who is
// logged in since when, and single-slot resume buffers.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"opacbridge/internal/components/assert"
	"opacbridge/internal/components/chrono"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/opac"
)

const (
	report_state_ensure_started       = "state.ensure-started"
	report_state_ensure_authenticated = "state.ensure-authenticated"
	report_state_with_authentication  = "state.with-authentication"
)

// DefaultFreshness is how long a login is trusted before it is repeated.
const DefaultFreshness = 3 * time.Minute

// Flow names a resume buffer.
type Flow string

const (
	// FlowSearchRedirect holds a detail page a search was redirected to.
	FlowSearchRedirect Flow = "search-redirect"
	// FlowReservationBranch holds the page a reservation asked for a branch on.
	FlowReservationBranch Flow = "reservation-branch"
)

// StartFunc performs the bootstrap request and returns the session token.
type StartFunc func(ctx context.Context) (string, error)

// LoginFunc logs acc in, a rejected login must be a *opac.CredentialError.
type LoginFunc func(ctx context.Context, acc opac.Account) error

type Options struct {
	Adapter string
	BaseURL string
	Start   StartFunc
	Login   LoginFunc
	Time    chrono.TimeAPI
	Tel     telemetry.API

	// Freshness defaults to DefaultFreshness when zero.
	Freshness time.Duration
	// TokenOptional allows Start to return an empty token.
	TokenOptional bool
}

type State struct {
	opts Options

	mutex           sync.Mutex
	started         bool
	token           string
	principal       string
	authenticatedAt time.Time
	resume          map[Flow][]byte
}

func New(opts Options) *State {
	assert.NotEmptyStr(opts.BaseURL)
	assert.NotNil(opts.Start)
	assert.NotNil(opts.Login)
	assert.NotNil(opts.Time)
	assert.NotNil(opts.Tel)

	if opts.Freshness <= 0 {
		opts.Freshness = DefaultFreshness
	}
	return &State{
		opts:   opts,
		resume: make(map[Flow][]byte),
	}
}

func (s *State) BaseURL() string {
	return s.opts.BaseURL
}

func (s *State) Freshness() time.Duration {
	return s.opts.Freshness
}

func (s *State) Token() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.token
}

func (s *State) Started() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.started
}

// Principal returns the id of the logged in account, or "" if nobody is.
func (s *State) Principal() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.principal
}

// EnsureStarted runs the bootstrap request once and returns the token.
func (s *State) EnsureStarted(ctx context.Context) (string, error) {
	s.mutex.Lock()
	if s.started {
		token := s.token
		s.mutex.Unlock()
		return token, nil
	}
	s.mutex.Unlock()

	token, err := s.opts.Start(ctx)
	if err != nil {
		s.opts.Tel.ReportWarning(report_state_ensure_started, err)
		return "", err
	}
	if token == "" && !s.opts.TokenOptional {
		err := &opac.ProtocolError{
			Adapter: s.opts.Adapter,
			Op:      "start",
			Marker:  "session token",
		}
		s.opts.Tel.ReportBroken(report_state_ensure_started, err, s.opts.BaseURL)
		return "", err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.started = true
	s.token = token
	s.opts.Tel.ReportDebug("session started", s.opts.BaseURL)
	return token, nil
}

func (s *State) needsLogin(acc opac.Account) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.principal == "" || s.principal != acc.ID {
		return true
	}
	return s.opts.Time.Now().Sub(s.authenticatedAt) > s.opts.Freshness
}

// EnsureAuthenticated logs acc in unless it already is and the login is no
// older than the freshness window. The login is only recorded on success.
func (s *State) EnsureAuthenticated(ctx context.Context, acc opac.Account) error {
	if !acc.Configured() {
		return opac.NewOpacError(opac.ReasonNotConfigured, "no credentials entered for this account")
	}
	if !s.needsLogin(acc) {
		return nil
	}

	_, err := s.EnsureStarted(ctx)
	if err != nil {
		return err
	}

	s.opts.Tel.ReportDebug("login", acc.ID)
	err = s.opts.Login(ctx, acc)
	if err != nil {
		var credErr *opac.CredentialError
		if !errors.As(err, &credErr) {
			s.opts.Tel.ReportWarning(report_state_ensure_authenticated, err, acc.ID)
		}
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.principal = acc.ID
	s.authenticatedAt = s.opts.Time.Now()
	return nil
}

// WithAuthentication runs fn as acc. If fn reports an expired session the
// session is restarted, acc logged in again and fn retried exactly once.
func (s *State) WithAuthentication(ctx context.Context, acc opac.Account, fn func(ctx context.Context) error) error {
	err := s.EnsureAuthenticated(ctx, acc)
	if err != nil {
		return err
	}
	err = fn(ctx)
	if !opac.IsReason(err, opac.ReasonSessionExpired) {
		return err
	}

	s.opts.Tel.ReportDebug("session expired, logging in again", acc.ID)
	s.restart()
	err = s.EnsureAuthenticated(ctx, acc)
	if err != nil {
		return err
	}
	err = fn(ctx)
	if opac.IsReason(err, opac.ReasonSessionExpired) {
		s.opts.Tel.ReportWarning(report_state_with_authentication, err, acc.ID)
		s.Invalidate()
		return &opac.CredentialError{
			Message: fmt.Sprintf("session expired again right after logging in as %s", acc.Name),
		}
	}
	return err
}

// Invalidate forgets the login but keeps the session token.
func (s *State) Invalidate() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.principal = ""
	s.authenticatedAt = time.Time{}
}

// restart drops the token and the login so that both are repeated, resume
// buffers of other flows survive.
func (s *State) restart() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.started = false
	s.token = ""
	s.principal = ""
	s.authenticatedAt = time.Time{}
}

// Reset returns the state to what New produced.
func (s *State) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.started = false
	s.token = ""
	s.principal = ""
	s.authenticatedAt = time.Time{}
	s.resume = make(map[Flow][]byte)
}

// Stash stores body in the resume buffer of flow. A body that was stashed
// before and never taken is discarded.
func (s *State) Stash(flow Flow, body []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.resume[flow]; ok {
		s.opts.Tel.ReportDebug("discarding unconsumed resume buffer", string(flow))
	}
	s.resume[flow] = body
}

// Take empties the resume buffer of flow and returns what was in it.
func (s *State) Take(flow Flow) ([]byte, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	body, ok := s.resume[flow]
	delete(s.resume, flow)
	return body, ok
}

// Discard empties the resume buffer of flow.
func (s *State) Discard(flow Flow) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.resume, flow)
}
