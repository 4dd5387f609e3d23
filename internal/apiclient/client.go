package apiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cattos-tracker/internal/history"
	"cattos-tracker/internal/textutil"

	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout = 10 * time.Second
	maxRetries     = 3
)

// ErrDisabled is returned when delivery is switched off in the configuration.
var ErrDisabled = errors.New("api delivery disabled")

// Options configures a Client.
type Options struct {
	URL    string
	APIKey string
	Selection
	Timeout time.Duration
	// InsecureTLS skips certificate verification for self-signed test servers.
	InsecureTLS bool
	// Backoff is the base delay between attempts; attempt n waits n*Backoff.
	Backoff time.Duration
}

// Client posts equipment snapshots to the collection API.
type Client struct {
	url        string
	apiKey     string
	selection  Selection
	backoff    time.Duration
	httpClient *http.Client
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		log.Warn().Str("url", opts.URL).Msg("TLS certificate verification disabled for API")
	}

	return &Client{
		url:       opts.URL,
		apiKey:    opts.APIKey,
		selection: opts.Selection,
		backoff:   backoff,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Send posts the latest equipment of characters. Nothing is sent when no
// character has equipped items.
func (c *Client) Send(ctx context.Context, characters []history.Character) error {
	payload := BuildPayload(characters, c.selection)
	if len(payload) == 0 {
		log.Info().Msg("No characters with equipment to send")
		return nil
	}

	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * c.backoff
			log.Warn().Int("attempt", attempt+1).Dur("backoff", wait).Msg("Retrying API delivery")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		retry, err := c.doRequest(ctx, body)
		if err == nil {
			log.Info().Int("characters", len(payload)).Msg("Sent equipment to API")
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retry {
			return err
		}
	}

	return fmt.Errorf("delivery failed after %d attempts: %w", maxRetries, lastErr)
}

// doRequest reports whether a failure is worth retrying.
func (c *Client) doRequest(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	log.Debug().Str("url", c.url).Int("bytes", len(body)).Msg("Posting equipment payload")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("API call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, fmt.Errorf("retryable error (status %d): %s", resp.StatusCode, textutil.Truncate(string(respBody), 200))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("API error (status %d): %s", resp.StatusCode, textutil.Truncate(string(respBody), 200))
	}

	log.Debug().Int("status", resp.StatusCode).Msg("API accepted payload")
	return false, nil
}
