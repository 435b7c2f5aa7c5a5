package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/dal"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/predictor"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/pubsub"
)

func init() {
	logger.Init()
}

type stubPredictor struct {
	res *models.PredictionResult
	err error
}

func (s stubPredictor) Predict(ctx context.Context, req models.GameRequest) (*models.PredictionResult, error) {
	return s.res, s.err
}

type captureSink struct {
	records []*models.PredictionRecord
	err     error
}

func (c *captureSink) RecordPrediction(ctx context.Context, rec *models.PredictionRecord) error {
	c.records = append(c.records, rec)
	return c.err
}

type countObserver map[string]int

func (c countObserver) ObserveSubmission(outcome models.Outcome, kind string) {
	c[string(outcome)+"/"+kind]++
}

var game = models.GameRequest{
	Date:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	HomeCode: "LAL",
	AwayCode: "BOS",
}

func drain(ch chan pubsub.Event) []pubsub.Event {
	var out []pubsub.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestRecorderSuccess(t *testing.T) {
	conf := 81.0
	store := dal.NewMemoryDAL()
	bus := pubsub.New()
	events := bus.Subscribe()
	sink := &captureSink{}
	obs := countObserver{}

	r := NewRecorder(stubPredictor{res: &models.PredictionResult{WinnerCode: "BOS", WinProbability: 72, Confidence: &conf}},
		store, bus, WithSink(sink), WithObserver(obs))

	res, err := r.Predict(context.Background(), game)
	if err != nil || res.WinnerCode != "BOS" {
		t.Fatalf("Predict = %+v, %v", res, err)
	}

	recent, _ := store.RecentPredictions(context.Background(), 10)
	if len(recent) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(recent))
	}
	rec := recent[0]
	if rec.Outcome != models.OutcomeSucceeded || rec.WinnerCode != "BOS" || rec.WinProbability != 72 || rec.GameDate != "2024-03-15" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Confidence == nil || *rec.Confidence != 81 {
		t.Errorf("expected confidence 81, got %v", rec.Confidence)
	}

	if len(sink.records) != 1 || sink.records[0].ID != rec.ID {
		t.Errorf("sink did not get the same record: %+v", sink.records)
	}
	if obs["succeeded/"] != 1 {
		t.Errorf("observer counts %v", obs)
	}

	got := drain(events)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Type != pubsub.EventPredictionSubmitted || got[1].Type != pubsub.EventPredictionSucceeded {
		t.Errorf("unexpected event order %s, %s", got[0].Type, got[1].Type)
	}
	if got[0].Payload["id"] != rec.ID || got[1].Payload["winnerCode"] != "BOS" {
		t.Errorf("unexpected payloads %+v / %+v", got[0].Payload, got[1].Payload)
	}
}

func TestRecorderFailure(t *testing.T) {
	store := dal.NewMemoryDAL()
	bus := pubsub.New()
	events := bus.Subscribe()
	obs := countObserver{}

	backendErr := &predictor.Error{Kind: predictor.KindRequestRejected, Status: 422, Message: "invalid team"}
	r := NewRecorder(stubPredictor{err: backendErr}, store, bus, WithObserver(obs))

	_, err := r.Predict(context.Background(), game)
	if !errors.Is(err, backendErr) {
		t.Fatalf("expected backend error to pass through, got %v", err)
	}

	recent, _ := store.RecentPredictions(context.Background(), 10)
	if len(recent) != 1 || recent[0].Outcome != models.OutcomeFailed {
		t.Fatalf("expected one failed record, got %+v", recent)
	}
	if recent[0].ErrorKind != "request_rejected" || recent[0].ErrorMessage != "invalid team" {
		t.Errorf("unexpected error fields %+v", recent[0])
	}
	if obs["failed/request_rejected"] != 1 {
		t.Errorf("observer counts %v", obs)
	}

	got := drain(events)
	if len(got) != 2 || got[1].Type != pubsub.EventPredictionFailed || got[1].Payload["error"] != "invalid team" {
		t.Errorf("unexpected events %+v", got)
	}
}

func TestRecorderSurvivesSinkErrors(t *testing.T) {
	sink := &captureSink{err: errors.New("clickhouse down")}
	r := NewRecorder(stubPredictor{res: &models.PredictionResult{WinnerCode: "LAL", WinProbability: 60}}, nil, nil, WithSink(sink))

	res, err := r.Predict(context.Background(), game)
	if err != nil || res.WinnerCode != "LAL" {
		t.Fatalf("sink errors must not affect the prediction: %+v, %v", res, err)
	}
}

func TestRecorderSavesAfterCancel(t *testing.T) {
	store := dal.NewMemoryDAL()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRecorder(stubPredictor{err: &predictor.Error{Kind: predictor.KindUnknown, Message: predictor.MsgUnknown}}, store, nil)
	r.Predict(ctx, game)

	recent, _ := store.RecentPredictions(context.Background(), 10)
	if len(recent) != 1 {
		t.Errorf("expected the record to be saved despite a canceled context, got %d", len(recent))
	}
}

func TestRecorderLogsCarryRequestFields(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWith("info", "json", &buf)
	t.Cleanup(logger.Init)

	backendErr := &predictor.Error{Kind: predictor.KindUnreachable, Message: "unreachable"}
	r := NewRecorder(stubPredictor{err: backendErr}, dal.NewMemoryDAL(), nil)
	r.Predict(context.Background(), game)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "Prediction failed" || entry["home"] != "LAL" || entry["away"] != "BOS" {
		t.Errorf("unexpected log entry %v", entry)
	}
	if id, _ := entry["id"].(string); id == "" {
		t.Errorf("log entry missing id: %v", entry)
	}
}
