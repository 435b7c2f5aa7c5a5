package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/predictor"
)

// Phase is the position of a form in its lifecycle
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

var (
	// ErrSubmissionInFlight is returned when a prediction is already running
	ErrSubmissionInFlight = errors.New("a prediction is already in progress")
	// ErrResetRequired is returned when submitting over a shown result
	ErrResetRequired = errors.New("reset before starting another prediction")
)

// Predictor produces a prediction for a game
type Predictor interface {
	Predict(ctx context.Context, req models.GameRequest) (*models.PredictionResult, error)
}

// State is a snapshot of the form. Request is set in every phase but Idle,
// Result only when Succeeded, the error fields only when Failed.
type State struct {
	Phase        Phase                    `json:"phase"`
	Request      *models.GameRequest      `json:"request,omitempty"`
	Result       *models.PredictionResult `json:"result,omitempty"`
	ErrorMessage string                   `json:"error,omitempty"`
	ErrorKind    predictor.Kind           `json:"errorKind,omitempty"`
	ErrorStatus  int                      `json:"errorStatus,omitempty"`
}

// Controller owns one form's state machine. Transitions are serialized; the
// prediction call itself runs without holding the lock.
type Controller struct {
	mu         sync.Mutex
	predictor  Predictor
	now        func() time.Time
	state      State
	generation uint64
	lastSeen   time.Time
}

// NewController creates a controller in the Idle phase
func NewController(p Predictor) *Controller {
	return &Controller{
		predictor: p,
		now:       time.Now,
		state:     State{Phase: PhaseIdle},
		lastSeen:  time.Now(),
	}
}

// State returns the current snapshot
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = c.now()
	return c.state
}

// Submit validates in and, if it is valid, runs the prediction and moves to
// Succeeded or Failed. Invalid input leaves the phase unchanged and returns
// ValidationErrors without any network call. Prediction failures are not
// returned as errors; they become the Failed state.
func (c *Controller) Submit(ctx context.Context, in Input) (State, error) {
	c.mu.Lock()
	c.lastSeen = c.now()

	switch c.state.Phase {
	case PhaseSubmitting:
		st := c.state
		c.mu.Unlock()
		return st, ErrSubmissionInFlight
	case PhaseSucceeded:
		st := c.state
		c.mu.Unlock()
		return st, ErrResetRequired
	}

	req, verrs := Validate(in, c.now())
	if verrs != nil {
		st := c.state
		c.mu.Unlock()
		return st, verrs
	}

	c.generation++
	gen := c.generation
	c.state = State{Phase: PhaseSubmitting, Request: &req}
	c.mu.Unlock()

	result, err := c.predictor.Predict(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		// Reset while in flight; nobody wants this answer anymore
		logger.Debug("Discarding superseded prediction", "home", req.HomeCode, "away", req.AwayCode)
		return c.state, nil
	}

	if err != nil {
		pe := predictor.AsError(err)
		c.state = State{
			Phase:        PhaseFailed,
			Request:      &req,
			ErrorMessage: pe.Message,
			ErrorKind:    pe.Kind,
			ErrorStatus:  pe.Status,
		}
		return c.state, nil
	}

	c.state = State{Phase: PhaseSucceeded, Request: &req, Result: result}
	return c.state, nil
}

// Reset returns the form to Idle and forgets any request, result or error.
// A prediction still in flight is ignored when it completes.
func (c *Controller) Reset() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastSeen = c.now()
	c.generation++
	c.state = State{Phase: PhaseIdle}
	return c.state
}

func (c *Controller) idleSince(now time.Time) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastSeen), c.state.Phase == PhaseSubmitting
}
