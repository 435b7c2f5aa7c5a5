package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
)

// maxBodyBytes bounds how much of a response body is read
const maxBodyBytes = 1 << 20

// Client talks to the remote prediction service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout. A client passed to WithHTTPClient
// is copied, not modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithClientCredentials authenticates every request with an OAuth2 client
// credentials token. Token and API calls go through the current HTTP client's
// transport.
func WithClientCredentials(ctx context.Context, cc *clientcredentials.Config) Option {
	return func(c *Client) {
		timeout := c.httpClient.Timeout
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
		c.httpClient = cc.Client(ctx)
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a prediction client for baseURL, e.g. "http://localhost:5000"
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root the client was configured with
func (c *Client) BaseURL() string {
	return c.baseURL
}

type predictRequest struct {
	Date     string `json:"date"`
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
}

// EncodeRequest serializes req into the /predict request body
func EncodeRequest(req models.GameRequest) ([]byte, error) {
	return json.Marshal(predictRequest{
		Date:     req.DateString(),
		HomeTeam: req.HomeCode,
		AwayTeam: req.AwayCode,
	})
}

// Predict asks the service who wins the game described by req.
// Every failure is returned as *Error.
func (c *Client) Predict(ctx context.Context, req models.GameRequest) (*models.PredictionResult, error) {
	body, err := EncodeRequest(req)
	if err != nil {
		return nil, unknown(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, unknown(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	logger.Debug("Requesting prediction", "date", req.DateString(), "home", req.HomeCode, "away", req.AwayCode)

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classifyTransportError(err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, unreachable(c.baseURL, fmt.Errorf("failed to read response: %w", err))
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, rejected(res.StatusCode, rejectionMessage(data))
	}

	result, err := DecodeResult(data)
	if err != nil {
		return nil, malformed(res.StatusCode, err)
	}
	return result, nil
}

func (c *Client) classifyTransportError(err error) *Error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		status := http.StatusUnauthorized
		if rErr.Response != nil {
			status = rErr.Response.StatusCode
		}
		return &Error{Kind: KindRequestRejected, Status: status, Message: "Prediction service authentication failed", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return unknown(err)
	}
	return unreachable(c.baseURL, err)
}

// rejectionMessage pulls the server's explanation out of an error body
func rejectionMessage(data []byte) string {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	for _, key := range []string{"message", "error"} {
		if s, ok := body[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// wireResult accepts every field name the backend has used for the same concept
type wireResult struct {
	WinnerCode      *string  `json:"winnerCode"`
	PredictedWinner *string  `json:"predictedWinner"`
	Winner          *string  `json:"winner"`
	WinProbability  *float64 `json:"winProbability"`
	Confidence      *float64 `json:"confidence"`
}

// DecodeResult parses a /predict success body and maps the historical aliases
// onto one result. winnerCode is canonical, then predictedWinner, then winner.
// winProbability is canonical; confidence stands in for it when it is missing,
// and in that case is not repeated as the auxiliary confidence value.
func DecodeResult(data []byte) (*models.PredictionResult, error) {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}

	var winner string
	for _, alias := range []*string{w.WinnerCode, w.PredictedWinner, w.Winner} {
		if alias != nil && *alias != "" {
			winner = *alias
			break
		}
	}
	if winner == "" {
		return nil, errors.New("decode prediction: missing winner")
	}

	result := &models.PredictionResult{WinnerCode: winner}
	switch {
	case w.WinProbability != nil:
		result.WinProbability = *w.WinProbability
		result.Confidence = w.Confidence
	case w.Confidence != nil:
		result.WinProbability = *w.Confidence
	default:
		return nil, errors.New("decode prediction: missing win probability")
	}
	return result, nil
}

// CheckHealth reports whether GET {baseURL}/health answers with a 2xx status.
// It never fails; any error counts as unhealthy.
func (c *Client) CheckHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("Prediction service health check failed", "error", err, "base_url", c.baseURL)
		return false
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyBytes))

	return res.StatusCode >= 200 && res.StatusCode <= 299
}
