package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/okian/runboard/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Outcome of one submission.
type outcome int

const (
	outcomeCreated outcome = iota
	outcomeRateLimited
	outcomeRejected
	outcomeFailed
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Get performs a GET request and decodes the JSON response into out.
func (c *HTTPClient) Get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// Post sends body as JSON from the given forwarded client address.
func (c *HTTPClient) Post(ctx context.Context, path, forwardedFor string, body any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, err = readResponseBody(resp)
	return resp.StatusCode, err
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitRuns posts subs concurrently and returns the ones the server
// stored, in no particular order.
func submitRuns(ctx context.Context, config *Config, subs []Submission, stats *Stats) []Submission {
	log := logger.Get()
	log.Info(ctx, "submitting runs", logger.Int("count", len(subs)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	var (
		counts   [outcomeFailed + 1]atomic.Int64
		mu       sync.Mutex
		accepted = make([]Submission, 0, len(subs))
		wg       sync.WaitGroup
	)

	jobs := make(chan Submission, config.Workers*2)
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				o := submitSingleRun(ctx, client, s)
				counts[o].Add(1)
				switch o {
				case outcomeCreated:
					mu.Lock()
					accepted = append(accepted, s)
					mu.Unlock()
				case outcomeRejected, outcomeFailed:
					if config.Verbose {
						log.Warn(ctx, "submission not stored", logger.String("player", s.PlayerName), logger.Int("outcome", int(o)))
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, s := range subs {
			select {
			case <-ctx.Done():
				return
			case jobs <- s:
			}
		}
	}()
	wg.Wait()

	stats.Created = int(counts[outcomeCreated].Load())
	stats.RateLimited = int(counts[outcomeRateLimited].Load())
	stats.Rejected = int(counts[outcomeRejected].Load())
	stats.Failed = int(counts[outcomeFailed].Load())
	stats.Submitted = stats.Created + stats.RateLimited + stats.Rejected + stats.Failed

	log.Info(ctx, "submission completed",
		logger.Int("created", stats.Created),
		logger.Int("rateLimited", stats.RateLimited),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed))
	return accepted
}

// submitSingleRun posts one run and classifies the response.
func submitSingleRun(ctx context.Context, client *HTTPClient, s Submission) outcome {
	status, err := client.Post(ctx, "/leaderboard", s.ForwardedFor, s)
	switch {
	case err != nil:
		return outcomeFailed
	case status == http.StatusCreated:
		return outcomeCreated
	case status == http.StatusTooManyRequests:
		return outcomeRateLimited
	case status == http.StatusBadRequest:
		return outcomeRejected
	default:
		return outcomeFailed
	}
}
