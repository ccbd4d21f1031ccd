package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-go-golems/chatkit/pkg/conversation"
	"github.com/go-go-golems/chatkit/pkg/sse"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// APIError is returned for responses with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

type Client struct {
	settings   *Settings
	httpClient *http.Client
	logger     zerolog.Logger
	sseOptions []sse.Option
}

type Option func(*Client)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithStreamOptions configures the event stream decoder.
func WithStreamOptions(options ...sse.Option) Option {
	return func(c *Client) {
		c.sseOptions = append(c.sseOptions, options...)
	}
}

func NewClient(settings *Settings, options ...Option) (*Client, error) {
	if settings == nil {
		settings = NewSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	ret := &Client{
		settings: settings.Clone(),
		logger:   log.Logger,
	}
	ret.httpClient = settings.HTTPClient
	if ret.httpClient == nil {
		ret.httpClient = &http.Client{Timeout: settings.Timeout}
	}
	for _, o := range options {
		o(ret)
	}
	ret.sseOptions = append([]sse.Option{sse.WithLogger(ret.logger)}, ret.sseOptions...)
	return ret, nil
}

// SendMessage posts a user message and streams the response into state. The
// message continues the state's thread when it already has an id. It returns
// once the stream has ended; the state holds everything received until then
// even when an error is returned.
func (c *Client) SendMessage(ctx context.Context, text string, state *conversation.State) error {
	payload := NewPayload(text, state.Thread().ID())
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "could not encode request")
	}

	url := strings.TrimSuffix(c.settings.Host, "/") + ConversationEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "could not create request")
	}
	conversationHeaders(req.Header, c.settings.ClientSecret)

	c.logger.Info().Str("request_type", payload.Type).Msgf("%s %s", req.Method, url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", url).Msg("conversation request failed")
		return errors.Wrap(err, "conversation request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.logger.Info().Msgf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	return sse.Stream(ctx, resp.Body, state.Handler(), c.sseOptions...)
}

func newAPIError(resp *http.Response) *APIError {
	ret := &APIError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("request failed with status %d", resp.StatusCode),
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ret
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error.Message != "" {
		ret.Message = body.Error.Message
	}
	return ret
}
