package form

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/predictor"
)

func init() {
	// Initialize logger for tests
	logger.Init()
}

type stubPredictor struct {
	calls  atomic.Int32
	result *models.PredictionResult
	err    error
	block  chan struct{}
}

func (s *stubPredictor) Predict(ctx context.Context, req models.GameRequest) (*models.PredictionResult, error) {
	s.calls.Add(1)
	if s.block != nil {
		<-s.block
	}
	return s.result, s.err
}

var fixedNow = time.Date(2024, time.March, 15, 18, 0, 0, 0, time.UTC)

func newTestController(p Predictor) *Controller {
	c := NewController(p)
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want ValidationErrors
	}{
		{"both missing", Input{}, ValidationErrors{FieldHome: MsgSelectHome, FieldAway: MsgSelectAway}},
		{"home missing", Input{Away: "LAL"}, ValidationErrors{FieldHome: MsgSelectHome}},
		{"away missing", Input{Home: "BOS"}, ValidationErrors{FieldAway: MsgSelectAway}},
		{"same team", Input{Home: "BOS", Away: "BOS"}, ValidationErrors{FieldGeneral: MsgSameTeam}},
		{"unknown teams", Input{Home: "XXX", Away: "YYY"}, ValidationErrors{FieldHome: MsgUnknownTeam, FieldAway: MsgUnknownTeam}},
		{"bad date reported with team errors", Input{Date: "15/03/2024", Home: "BOS"}, ValidationErrors{FieldDate: MsgInvalidDate, FieldAway: MsgSelectAway}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := Validate(tt.in, fixedNow)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("field %s: got %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestValidateBuildsRequest(t *testing.T) {
	req, errs := Validate(Input{Date: "2024-03-15", Home: " BOS ", Away: "LAL"}, fixedNow)
	if errs != nil {
		t.Fatalf("unexpected errors %v", errs)
	}
	if req.HomeCode != "BOS" || req.AwayCode != "LAL" || req.DateString() != "2024-03-15" {
		t.Errorf("unexpected request %+v", req)
	}

	req, errs = Validate(Input{Home: "BOS", Away: "LAL"}, fixedNow)
	if errs != nil {
		t.Fatalf("unexpected errors %v", errs)
	}
	if req.DateString() != "2024-03-15" {
		t.Errorf("empty date should default to today, got %s", req.DateString())
	}
}

func TestValidateEmptyDateUsesUTCToday(t *testing.T) {
	// 23:30 in New York on the 15th is already the 16th in UTC
	eastern := time.FixedZone("EST", -5*60*60)
	now := time.Date(2024, time.March, 15, 23, 30, 0, 0, eastern)

	req, verrs := Validate(Input{Home: "BOS", Away: "LAL"}, now)
	if verrs != nil {
		t.Fatalf("unexpected validation errors: %v", verrs)
	}
	if got := req.DateString(); got != "2024-03-16" {
		t.Errorf("empty date resolved to %s, want 2024-03-16", got)
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	err := ValidationErrors{FieldHome: MsgSelectHome, FieldAway: MsgSelectAway}
	want := "invalid input: away: Please select an away team; home: Please select a home team"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestSubmitInvalidInputMakesNoCall(t *testing.T) {
	inputs := []Input{
		{Home: "BOS", Away: "BOS"},
		{Home: "", Away: "LAL"},
		{Home: "BOS", Away: ""},
		{},
	}

	for _, in := range inputs {
		stub := &stubPredictor{result: &models.PredictionResult{WinnerCode: "BOS", WinProbability: 60}}
		c := newTestController(stub)

		st, err := c.Submit(context.Background(), in)

		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Errorf("input %+v: expected ValidationErrors, got %v", in, err)
		}
		if st.Phase != PhaseIdle {
			t.Errorf("input %+v: expected Idle, got %s", in, st.Phase)
		}
		if stub.calls.Load() != 0 {
			t.Errorf("input %+v: predictor should not be called", in)
		}
	}
}

func TestSubmitSucceeds(t *testing.T) {
	stub := &stubPredictor{result: &models.PredictionResult{WinnerCode: "BOS", WinProbability: 72}}
	c := newTestController(stub)

	st, err := c.Submit(context.Background(), Input{Date: "2024-03-15", Home: "BOS", Away: "LAL"})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if st.Phase != PhaseSucceeded {
		t.Fatalf("expected Succeeded, got %s", st.Phase)
	}
	if st.Request == nil || st.Request.HomeCode != "BOS" {
		t.Errorf("request not retained: %+v", st.Request)
	}
	if st.Result == nil || st.Result.WinnerCode != "BOS" {
		t.Errorf("result not retained: %+v", st.Result)
	}
	if c.State().Phase != PhaseSucceeded {
		t.Error("State() should reflect the completed submission")
	}
}

func TestSubmitAgainAfterSuccessRequiresReset(t *testing.T) {
	stub := &stubPredictor{result: &models.PredictionResult{WinnerCode: "BOS", WinProbability: 72}}
	c := newTestController(stub)

	c.Submit(context.Background(), Input{Home: "BOS", Away: "LAL"})
	_, err := c.Submit(context.Background(), Input{Home: "MIA", Away: "NYK"})
	if !errors.Is(err, ErrResetRequired) {
		t.Errorf("expected ErrResetRequired, got %v", err)
	}
	if stub.calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", stub.calls.Load())
	}
}

func TestSubmitFailureBecomesFailedState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"invalid team"}`))
	}))
	defer srv.Close()

	c := newTestController(predictor.NewClient(srv.URL))
	st, err := c.Submit(context.Background(), Input{Home: "BOS", Away: "LAL"})
	if err != nil {
		t.Fatalf("prediction failures should not surface as errors: %v", err)
	}
	if st.Phase != PhaseFailed {
		t.Fatalf("expected Failed, got %s", st.Phase)
	}
	if st.ErrorMessage != "invalid team" {
		t.Errorf("expected message %q, got %q", "invalid team", st.ErrorMessage)
	}
	if st.ErrorKind != predictor.KindRequestRejected || st.ErrorStatus != http.StatusUnprocessableEntity {
		t.Errorf("unexpected error classification %s %d", st.ErrorKind, st.ErrorStatus)
	}
}

func TestSubmitUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	c := newTestController(predictor.NewClient(baseURL))
	st, _ := c.Submit(context.Background(), Input{Home: "BOS", Away: "LAL"})

	if st.Phase != PhaseFailed || st.ErrorKind != predictor.KindUnreachable {
		t.Fatalf("expected unreachable failure, got %s %s", st.Phase, st.ErrorKind)
	}
	if st.ErrorMessage != predictor.MsgUnreachable {
		t.Errorf("unexpected message %q", st.ErrorMessage)
	}
}

func TestSubmitUnclassifiedErrorIsUnknown(t *testing.T) {
	c := newTestController(&stubPredictor{err: errors.New("boom")})
	st, _ := c.Submit(context.Background(), Input{Home: "BOS", Away: "LAL"})

	if st.ErrorKind != predictor.KindUnknown || st.ErrorStatus != http.StatusInternalServerError {
		t.Errorf("expected unknown/500, got %s/%d", st.ErrorKind, st.ErrorStatus)
	}
	if st.ErrorMessage != predictor.MsgUnknown {
		t.Errorf("raw error leaked to the user: %q", st.ErrorMessage)
	}
}

func TestFailedAllowsResubmit(t *testing.T) {
	stub := &stubPredictor{err: errors.New("boom")}
	c := newTestController(stub)

	c.Submit(context.Background(), Input{Home: "BOS", Away: "LAL"})
	stub.err = nil
	stub.result = &models.PredictionResult{WinnerCode: "LAL", WinProbability: 58}

	st, err := c.Submit(context.Background(), Input{Home: "BOS", Away: "LAL"})
	if err != nil || st.Phase != PhaseSucceeded {
		t.Errorf("expected resubmit to succeed, got %s %v", st.Phase, err)
	}
	if st.ErrorMessage != "" {
		t.Error("error from previous attempt should be cleared")
	}
}

func TestSubmitWhileInFlightIsRefused(t *testing.T) {
	stub := &stubPredictor{
		result: &models.PredictionResult{WinnerCode: "BOS", WinProbability: 60},
		block:  make(chan struct{}),
	}
	c := newTestController(stub)

	done := make(chan State)
	go func() {
		st, _ := c.Submit(context.Background(), Input{Home: "BOS", Away: "LAL"})
		done <- st
	}()

	waitForPhase(t, c, PhaseSubmitting)

	st, err := c.Submit(context.Background(), Input{Home: "MIA", Away: "NYK"})
	if !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("expected ErrSubmissionInFlight, got %v", err)
	}
	if st.Phase != PhaseSubmitting || st.Request.HomeCode != "BOS" {
		t.Errorf("in-flight state should be untouched, got %+v", st)
	}

	close(stub.block)
	if final := <-done; final.Phase != PhaseSucceeded {
		t.Errorf("expected Succeeded, got %s", final.Phase)
	}
	if stub.calls.Load() != 1 {
		t.Errorf("expected exactly 1 call, got %d", stub.calls.Load())
	}
}

func TestResetClearsEverything(t *testing.T) {
	for _, stub := range []*stubPredictor{
		{result: &models.PredictionResult{WinnerCode: "BOS", WinProbability: 60}},
		{err: errors.New("boom")},
	} {
		c := newTestController(stub)
		c.Submit(context.Background(), Input{Home: "BOS", Away: "LAL"})

		st := c.Reset()
		if st.Phase != PhaseIdle || st.Request != nil || st.Result != nil || st.ErrorMessage != "" || st.ErrorKind != "" {
			t.Errorf("reset left residue: %+v", st)
		}
		if c.State() != (State{Phase: PhaseIdle}) {
			t.Errorf("State() after reset = %+v", c.State())
		}
	}
}

func TestResetDiscardsInFlightResult(t *testing.T) {
	stub := &stubPredictor{
		result: &models.PredictionResult{WinnerCode: "BOS", WinProbability: 60},
		block:  make(chan struct{}),
	}
	c := newTestController(stub)

	done := make(chan State)
	go func() {
		st, _ := c.Submit(context.Background(), Input{Home: "BOS", Away: "LAL"})
		done <- st
	}()

	waitForPhase(t, c, PhaseSubmitting)
	c.Reset()
	close(stub.block)

	if st := <-done; st.Phase != PhaseIdle {
		t.Errorf("late completion should be discarded, got %s", st.Phase)
	}
	if c.State().Phase != PhaseIdle {
		t.Errorf("expected Idle, got %s", c.State().Phase)
	}
}

func TestNewView(t *testing.T) {
	req := models.GameRequest{Date: fixedNow, HomeCode: "BOS", AwayCode: "LAL"}

	v := NewView(req, models.PredictionResult{WinnerCode: "BOS", WinProbability: 72})
	if v.WinnerLabel != "Boston Celtics" || v.Percent != 72 || v.BarWidth != 72 {
		t.Errorf("unexpected view %+v", v)
	}
	if !v.IsHomeWinner {
		t.Error("BOS is the home team")
	}
	if v.ConfidenceText != "" {
		t.Errorf("confidence should be omitted, got %q", v.ConfidenceText)
	}
	if v.HomeLabel != "Boston Celtics" || v.AwayLabel != "Los Angeles Lakers" {
		t.Errorf("unexpected matchup %s @ %s", v.AwayLabel, v.HomeLabel)
	}
	if v.GameDate != "Friday, March 15, 2024" {
		t.Errorf("unexpected long date %q", v.GameDate)
	}

	conf := 81.6
	v = NewView(req, models.PredictionResult{WinnerCode: "LAL", WinProbability: 64.5, Confidence: &conf})
	if v.Percent != 65 || v.BarWidth != 64.5 {
		t.Errorf("expected rounded 65 and width 64.5, got %d %v", v.Percent, v.BarWidth)
	}
	if v.ConfidenceText != "Model Confidence: 82%" {
		t.Errorf("unexpected confidence text %q", v.ConfidenceText)
	}
	if v.IsHomeWinner {
		t.Error("LAL is the away team")
	}
}

func TestNewViewPlaceholderAndClamp(t *testing.T) {
	req := models.GameRequest{Date: fixedNow, HomeCode: "BOS", AwayCode: "LAL"}

	v := NewView(req, models.PredictionResult{WinnerCode: "SEA", WinProbability: 140})
	if v.WinnerLabel != "Team" {
		t.Errorf("unknown winner should use placeholder, got %q", v.WinnerLabel)
	}
	if v.BarWidth != 100 || v.Percent != 100 {
		t.Errorf("expected clamp to 100, got %v %d", v.BarWidth, v.Percent)
	}

	v = NewView(req, models.PredictionResult{WinnerCode: "BOS", WinProbability: -3})
	if v.BarWidth != 0 || v.Percent != 0 {
		t.Errorf("expected clamp to 0, got %v %d", v.BarWidth, v.Percent)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&stubPredictor{}, time.Minute)

	c1, id := r.Get("")
	if id == "" || c1 == nil {
		t.Fatal("expected a new session")
	}
	c2, id2 := r.Get(id)
	if c2 != c1 || id2 != id {
		t.Error("same id should return the same controller")
	}
	c3, id3 := r.Get("forged-id")
	if c3 == c1 || id3 == "forged-id" {
		t.Error("unknown ids should get a fresh session with a new id")
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", r.Len())
	}
}

func TestRegistrySweep(t *testing.T) {
	stub := &stubPredictor{block: make(chan struct{}), result: &models.PredictionResult{WinnerCode: "BOS", WinProbability: 50}}
	r := NewRegistry(stub, time.Minute)
	remaining := -1
	r.OnSweep(func(n int) { remaining = n })

	idle, _ := r.Get("")
	busy, _ := r.Get("")
	_ = idle

	go busy.Submit(context.Background(), Input{Home: "BOS", Away: "LAL"})
	waitForPhase(t, busy, PhaseSubmitting)

	removed := r.Sweep(time.Now().Add(2 * time.Minute))
	if removed != 1 {
		t.Errorf("expected 1 idle session removed, got %d", removed)
	}
	if r.Len() != 1 {
		t.Errorf("busy session should survive, got %d sessions", r.Len())
	}
	if remaining != 1 {
		t.Errorf("OnSweep saw %d sessions, want 1", remaining)
	}
	close(stub.block)
}

func TestRegistryRunRejectsNonPositiveInterval(t *testing.T) {
	r := NewRegistry(&stubPredictor{}, time.Minute)

	for _, interval := range []time.Duration{0, -time.Second} {
		if err := r.Run(context.Background(), interval); err == nil {
			t.Errorf("Run(%v) should fail", interval)
		}
	}
}

func waitForPhase(t *testing.T, c *Controller, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		phase := c.state.Phase
		c.mu.Unlock()
		if phase == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for phase %s", want)
}
