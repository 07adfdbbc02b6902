// Package oracle implements the ranking oracle contract against an
// OpenAI-compatible chat-completions endpoint. The client only moves bytes
// and classifies transport failures; output shape validation lives in
// core/ranking.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aidline/dispatch/auth"
	"github.com/aidline/dispatch/core/fault"
	"github.com/aidline/dispatch/core/model"
	"github.com/aidline/dispatch/core/ranking"
	"github.com/aidline/dispatch/infra/logger"
)

// Config holds the oracle endpoint settings.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string `json:"baseUrl"`
	Model   string `json:"model"`
	// APIKey authenticates requests as a static bearer token. Leave empty
	// when Auth is configured.
	APIKey         string    `json:"apiKey"`
	Auth           auth.Conf `json:"auth"`
	TimeoutSeconds int       `json:"timeoutSeconds"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 60
	}
}

// Validate checks the config for a usable endpoint.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("oracle: baseUrl is required")
	}
	if c.APIKey == "" && !c.Auth.Configured() {
		return fmt.Errorf("oracle: either apiKey or auth must be configured")
	}
	return nil
}

// Client calls the chat-completions endpoint and validates the answer
// against the ranked-list contract. It implements ranking.Oracle.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens *auth.ClientCred
	log    logger.Logger
}

// NewClient builds a Client from the configuration.
func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:  logger.New("oracle"),
	}
	if cfg.APIKey == "" {
		c.tokens = auth.NewClientCred(cfg.Auth)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Rank sends the requester context and candidate pool to the oracle and
// returns the validated ordered list. Transport and HTTP failures surface as
// KindUpstreamUnavailable; malformed model output as KindRankingFormat.
func (c *Client) Rank(ctx context.Context, resume map[string]any, pool []model.Candidate) ([]model.RankedEntry, error) {
	callID := uuid.NewString()
	c.log.Debugw("oracle call", map[string]any{"call_id": callID, "pool_size": len(pool), "model": c.cfg.Model})

	payload, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Temperature: 0,
		Messages:    []chatMessage{{Role: "user", Content: ranking.BuildPrompt(resume, pool)}},
	})
	if err != nil {
		return nil, fault.Wrap(fault.KindInternal, err, "encode oracle request")
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fault.Wrap(fault.KindInternal, err, "build oracle request")
	}
	req.Header.Set("Content-Type", "application/json")
	token := c.cfg.APIKey
	if c.tokens != nil {
		token, err = c.tokens.GetToken(ctx)
		if err != nil {
			return nil, fault.Wrap(fault.KindUpstreamUnavailable, err, "oracle auth")
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.KindUpstreamUnavailable, err, "oracle call %s", callID)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fault.Wrap(fault.KindUpstreamUnavailable, err, "read oracle response %s", callID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Errorf("oracle call %s: status %d: %s", callID, resp.StatusCode, truncate(string(body), 512))
		return nil, fault.New(fault.KindUpstreamUnavailable, "oracle returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fault.Wrap(fault.KindRankingFormat, err, "decode oracle envelope %s", callID)
	}
	if len(parsed.Choices) == 0 {
		return nil, fault.New(fault.KindRankingFormat, "oracle response contained no choices")
	}

	entries, err := ranking.ParseRankedOutput(parsed.Choices[0].Message.Content)
	if err != nil {
		c.log.Errorf("oracle call %s: raw output rejected: %s", callID, truncate(parsed.Choices[0].Message.Content, 512))
		return nil, err
	}
	return entries, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
