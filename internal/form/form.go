// Package form holds the state of a newsletter sign-up form independently of
// how it is rendered.
package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"signup-go/internal/models"
)

const (
	DefaultDismissDelay = 2 * time.Second

	MsgEmailMissing = "Please enter your email address"
	MsgNotSuccess   = "Failed to subscribe. Please try again."
)

var ErrSubmitting = errors.New("a subscription request is already in flight")

type Phase int

const (
	Idle Phase = iota
	Submitting
	Success
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is what a renderer needs to draw the form. Message is the success
// text in Success and the error text in Failed.
type State struct {
	Phase   Phase
	Message string
}

// CanSubmit reports whether the submit control should be enabled.
func (s State) CanSubmit() bool {
	return s.Phase != Submitting
}

type Subscriber interface {
	Subscribe(ctx context.Context, email string) (*models.SubscribeResponse, error)
}

type Option func(*Form)

func WithDismissDelay(d time.Duration) Option {
	return func(f *Form) {
		f.dismissDelay = d
	}
}

// WithOnDismiss registers a callback run once a success message has been
// shown for the dismiss delay.
func WithOnDismiss(fn func()) Option {
	return func(f *Form) {
		f.onDismiss = fn
	}
}

type Form struct {
	client       Subscriber
	dismissDelay time.Duration
	onDismiss    func()

	mu        sync.Mutex
	state     State
	observers []func(State)
	dismiss   *time.Timer
}

func New(client Subscriber, opts ...Option) *Form {
	f := &Form{
		client:       client,
		dismissDelay: DefaultDismissDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Subscribe registers fn to be called with every new state.
func (f *Form) Subscribe(fn func(State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, fn)
}

// Submit runs one subscription attempt and returns the state it ended in.
// It fails with ErrSubmitting while another attempt is in flight.
func (f *Form) Submit(ctx context.Context, email string) (State, error) {
	f.mu.Lock()
	if f.state.Phase == Submitting {
		f.mu.Unlock()
		return f.State(), ErrSubmitting
	}
	if f.dismiss != nil {
		f.dismiss.Stop()
		f.dismiss = nil
	}
	if email == "" {
		return f.transitionLocked(State{Phase: Failed, Message: MsgEmailMissing}), nil
	}
	f.transitionLocked(State{Phase: Submitting})

	resp, err := f.client.Subscribe(ctx, email)

	f.mu.Lock()
	switch {
	case err != nil:
		return f.transitionLocked(State{Phase: Failed, Message: models.UserMessage(err)}), nil
	case resp == nil || !resp.IsSuccess():
		return f.transitionLocked(State{Phase: Failed, Message: MsgNotSuccess}), nil
	}

	f.dismiss = time.AfterFunc(f.dismissDelay, f.dismissSuccess)
	return f.transitionLocked(State{Phase: Success, Message: resp.Message}), nil
}

func (f *Form) dismissSuccess() {
	f.mu.Lock()
	if f.state.Phase != Success {
		f.mu.Unlock()
		return
	}
	f.dismiss = nil
	f.transitionLocked(State{Phase: Idle})

	if f.onDismiss != nil {
		f.onDismiss()
	}
}

// transitionLocked sets the new state, releases f.mu and notifies observers.
func (f *Form) transitionLocked(s State) State {
	f.state = s
	observers := make([]func(State), len(f.observers))
	copy(observers, f.observers)
	f.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
	return s
}
