package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/dal"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/form"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/predictor"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/pubsub"
)

const writeTimeout = 5 * time.Second

// Sink receives every completed prediction, e.g. the ClickHouse client
type Sink interface {
	RecordPrediction(ctx context.Context, rec *models.PredictionRecord) error
}

// Observer counts completed predictions
type Observer interface {
	ObserveSubmission(outcome models.Outcome, kind string)
}

// Recorder wraps a predictor and records each call: it publishes a submitted
// event, then saves the outcome to the store and sinks and publishes the
// result event. Recording failures are logged and never change the outcome.
type Recorder struct {
	next      form.Predictor
	store     dal.PredictionStore
	publisher pubsub.Publisher
	sinks     []Sink
	observer  Observer
	now       func() time.Time
}

// Option configures a Recorder
type Option func(*Recorder)

// WithSink adds an analytics sink
func WithSink(s Sink) Option {
	return func(r *Recorder) { r.sinks = append(r.sinks, s) }
}

// WithObserver sets the submission counter
func WithObserver(o Observer) Option {
	return func(r *Recorder) { r.observer = o }
}

// NewRecorder creates a recording predictor
func NewRecorder(next form.Predictor, store dal.PredictionStore, publisher pubsub.Publisher, opts ...Option) *Recorder {
	r := &Recorder{
		next:      next,
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) Predict(ctx context.Context, req models.GameRequest) (*models.PredictionResult, error) {
	id := uuid.NewString()

	r.publish(pubsub.Event{
		Type: pubsub.EventPredictionSubmitted,
		Payload: map[string]interface{}{
			"id":       id,
			"gameDate": req.DateString(),
			"homeCode": req.HomeCode,
			"awayCode": req.AwayCode,
		},
	})

	log := logger.With("id", id, "home", req.HomeCode, "away", req.AwayCode)
	res, err := r.next.Predict(ctx, req)

	rec := &models.PredictionRecord{
		ID:        id,
		GameDate:  req.DateString(),
		HomeCode:  req.HomeCode,
		AwayCode:  req.AwayCode,
		CreatedAt: r.now().UTC(),
	}
	if err != nil {
		pe := predictor.AsError(err)
		rec.Outcome = models.OutcomeFailed
		rec.ErrorKind = string(pe.Kind)
		rec.ErrorMessage = pe.Message
		log.Warn("Prediction failed", "kind", pe.Kind, "status", pe.Status, "detail", pe.Detail())
	} else {
		rec.Outcome = models.OutcomeSucceeded
		rec.WinnerCode = res.WinnerCode
		rec.WinProbability = res.WinProbability
		rec.Confidence = res.Confidence
		log.Info("Prediction succeeded", "winner", res.WinnerCode, "probability", res.WinProbability)
	}

	r.record(ctx, log, rec)
	return res, err
}

func (r *Recorder) record(ctx context.Context, log *slog.Logger, rec *models.PredictionRecord) {
	// The submitter may already be gone; the record is still worth keeping
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if r.store != nil {
		if err := r.store.SavePrediction(wctx, rec); err != nil {
			log.Error("Failed to save prediction", "error", err)
		}
	}
	for _, s := range r.sinks {
		if err := s.RecordPrediction(wctx, rec); err != nil {
			log.Error("Failed to record prediction analytics", "error", err)
		}
	}
	if r.observer != nil {
		r.observer.ObserveSubmission(rec.Outcome, rec.ErrorKind)
	}

	r.publish(ResultEvent(rec))
}

func (r *Recorder) publish(ev pubsub.Event) {
	if r.publisher != nil {
		r.publisher.Publish(ev)
	}
}

// ResultEvent builds the succeeded or failed event for a record
func ResultEvent(rec *models.PredictionRecord) pubsub.Event {
	payload := map[string]interface{}{
		"id":       rec.ID,
		"gameDate": rec.GameDate,
		"homeCode": rec.HomeCode,
		"awayCode": rec.AwayCode,
	}

	if rec.Outcome == models.OutcomeFailed {
		payload["errorKind"] = rec.ErrorKind
		payload["error"] = rec.ErrorMessage
		return pubsub.Event{Type: pubsub.EventPredictionFailed, Payload: payload}
	}

	payload["winnerCode"] = rec.WinnerCode
	payload["winProbability"] = rec.WinProbability
	if rec.Confidence != nil {
		payload["confidence"] = *rec.Confidence
	}
	return pubsub.Event{Type: pubsub.EventPredictionSucceeded, Payload: payload}
}
