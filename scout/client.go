// ABOUTME: HTTP client for the agent backend: reasoning stream, message submission, and history.
// ABOUTME: Consumes the step_update SSE stream and folds decoded frames into the dashboard store.

package scout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/CIRISAI/scoutgui/pipeline"
	"github.com/CIRISAI/scoutgui/sse"
)

// Client talks to one agent's API.
type Client struct {
	// BaseURL is the agent API root, e.g. "https://agents.ciris.ai".
	BaseURL string

	// Token authorizes every request as a Bearer credential.
	Token string

	// AgentID selects the agent on multi-agent deployments.
	AgentID string

	// HTTPClient defaults to a client with no overall timeout; the stream
	// request is long-lived, so per-call deadlines come from contexts.
	HTTPClient *http.Client
}

// NewClient creates a Client for one agent.
func NewClient(baseURL, token, agentID string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		AgentID:    agentID,
		HTTPClient: &http.Client{},
	}
}

// SubmitResult is the synchronous acknowledgment for a submitted message.
// A rejection is a normal outcome, not an error: Accepted is false and
// Reason carries the server-supplied explanation.
type SubmitResult struct {
	Accepted  bool   `json:"accepted"`
	TaskID    string `json:"task_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// StreamSteps connects to the agent's reasoning stream and applies every
// step_update frame to the store until the stream ends or ctx is cancelled.
//
// Cancellation returns nil: tearing the dashboard down is not a failure and
// must not surface an error. A transport failure is returned for the caller
// to log; malformed frames are counted and skipped without ending the loop.
func (c *Client) StreamSteps(ctx context.Context, store *pipeline.Store) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connecting to stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("stream returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	parser := sse.NewParser(resp.Body)
	for {
		frame, err := parser.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading stream: %w", err)
		}

		if frame.Type != pipeline.FrameStepUpdate {
			continue
		}

		events, err := pipeline.ParseStepUpdate([]byte(frame.Data))
		if err != nil {
			// One bad frame must not take down the stream.
			store.NoteFrameFailure()
			log.Printf("scout stream: discarding frame: %v", err)
			continue
		}
		store.ApplySteps(events)
	}
}

// SubmitMessage sends free text to a channel and returns the acknowledgment.
// On acceptance the caller registers (task_id, message_id) with the store so
// the aggregator and projector can correlate.
func (c *Client) SubmitMessage(ctx context.Context, channelID, content string) (SubmitResult, error) {
	body, err := json.Marshal(map[string]string{
		"channel_id": channelID,
		"content":    content,
		"client_ref": uuid.New().String(),
	})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("encoding message: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/agents/"+c.AgentID+"/message", bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submitting message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SubmitResult{}, fmt.Errorf("message submission returned status %d", resp.StatusCode)
	}

	var result SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return SubmitResult{}, fmt.Errorf("decoding submission response: %w", err)
	}
	return result, nil
}

// historyResponse is the wire shape of the history endpoint.
type historyResponse struct {
	Messages []historyMessage `json:"messages"`
}

type historyMessage struct {
	ID        string    `json:"id"`
	IsAgent   bool      `json:"is_agent"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// History fetches the most recent messages on a channel, oldest first.
func (c *Client) History(ctx context.Context, channelID string, limit int) ([]pipeline.Message, error) {
	path := "/v1/agents/" + c.AgentID + "/history?" + url.Values{
		"channel_id": {channelID},
		"limit":      {strconv.Itoa(limit)},
	}.Encode()

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history returned status %d", resp.StatusCode)
	}

	var decoded historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}

	messages := make([]pipeline.Message, len(decoded.Messages))
	for i, m := range decoded.Messages {
		messages[i] = pipeline.Message{
			ID:        m.ID,
			IsAgent:   m.IsAgent,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
	}
	return messages, nil
}

// newRequest builds an authenticated request against the API root.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}
