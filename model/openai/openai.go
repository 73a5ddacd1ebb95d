// Package openai provides a model.Backend speaking the OpenAI Chat
// Completions API through the official SDK. It targets OpenAI-compatible
// inference endpoints served from the container host: the endpoint address is
// resolved lazily on first use, the SDK's own retries stay disabled and
// transient failures are retried here with bounded exponential backoff.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/modelbridge/hostgw"
	"github.com/hupe1980/modelbridge/logging"
	"github.com/hupe1980/modelbridge/model"
)

const (
	// DefaultPort is the port the local inference endpoint listens on.
	DefaultPort = 8000

	// DefaultAPIKey is the placeholder credential local endpoints accept.
	DefaultAPIKey = "testkey"
)

// Options configure the OpenAI backend.
type Options struct {
	// Host is the endpoint host. Empty means resolve it via Resolver on
	// first use.
	Host string

	// Port is the endpoint port.
	Port int

	// BaseURL overrides the assembled http://host:port/v1 endpoint entirely.
	BaseURL string

	// APIKey is the bearer credential sent to the endpoint.
	APIKey string

	// Model is the default model id, used when a request names none.
	Model string

	// Resolver locates the endpoint host when Host is empty.
	Resolver *hostgw.Resolver

	// Logger receives call and retry outcomes (defaults to NoOp).
	Logger logging.Logger

	// Retry bounds the transient-failure retries around the remote call.
	Retry model.RetryPolicy

	// HTTPClient overrides the SDK's HTTP client.
	HTTPClient *http.Client

	// VerifyOnInit lists the endpoint's models once after construction and
	// logs the outcome. Never fatal.
	VerifyOnInit bool
}

// Backend queries an OpenAI-compatible chat completions endpoint. The SDK
// client is constructed exactly once, on first Query; after that the Backend
// is read-only and safe for any number of concurrent callers.
type Backend struct {
	opts     Options
	initOnce sync.Once
	client   openai.Client
	baseURL  string
}

// New creates an OpenAI backend.
func New(optFns ...func(o *Options)) *Backend {
	opts := Options{
		Port:   DefaultPort,
		APIKey: DefaultAPIKey,
		Model:  openai.ChatModelGPT4oMini,
		Logger: logging.NoOpLogger{},
		Retry:  model.DefaultRetryPolicy(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Resolver == nil {
		opts.Resolver = hostgw.NewResolver(func(ro *hostgw.Options) {
			ro.Logger = opts.Logger
		})
	}

	return &Backend{opts: opts}
}

// ensureClient performs the lazy exactly-once client construction. Concurrent
// first callers block until the single construction finishes; host resolution
// runs at most once per Backend.
func (b *Backend) ensureClient(ctx context.Context) {
	b.initOnce.Do(func() {
		baseURL := b.opts.BaseURL
		if baseURL == "" {
			host := b.opts.Host
			if host == "" {
				host = b.opts.Resolver.Resolve(ctx)
			}
			baseURL = fmt.Sprintf("http://%s:%d/v1", host, b.opts.Port)
		}
		// The SDK resolves request paths relative to the base URL.
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}

		clientOpts := []option.RequestOption{
			option.WithBaseURL(baseURL),
			option.WithAPIKey(b.opts.APIKey),
			// Retries are centralized in Query; the SDK must not add its own.
			option.WithMaxRetries(0),
		}
		if b.opts.HTTPClient != nil {
			clientOpts = append(clientOpts, option.WithHTTPClient(b.opts.HTTPClient))
		}

		b.client = openai.NewClient(clientOpts...)
		b.baseURL = baseURL
		b.opts.Logger.Info("OpenAI-compatible endpoint configured", "base_url", baseURL)

		if b.opts.VerifyOnInit {
			b.verifyEndpoint(ctx)
		}
	})
}

// verifyEndpoint lists the endpoint's models as a reachability check. The
// outcome is only logged: a dead endpoint surfaces on the first real query,
// with retries applied.
func (b *Backend) verifyEndpoint(ctx context.Context) {
	page, err := b.client.Models.List(ctx)
	if err != nil {
		b.opts.Logger.Warn("Endpoint verification failed", "base_url", b.baseURL, "error", err)
		return
	}
	b.opts.Logger.Info("Endpoint verified", "base_url", b.baseURL, "models", len(page.Data))
}

// Query implements model.Backend. One remote call is made, wrapped in the
// transient-failure retry loop; the elapsed time covers exactly that loop.
func (b *Backend) Query(ctx context.Context, req model.Request) (*model.QueryResult, error) {
	b.ensureClient(ctx)

	requestID := uuid.NewString()
	logger := b.opts.Logger
	params := b.buildParams(req)

	t0 := time.Now()
	resp, err := model.RetryTransient(ctx, b.opts.Retry, logger, Transient,
		func() (*openai.ChatCompletion, error) {
			return b.client.Chat.Completions.New(ctx, params, option.WithHeader("X-Request-Id", requestID))
		})
	elapsed := time.Since(t0)

	if err != nil {
		logger.Error("Model call failed", "request_id", requestID, "duration", elapsed, "error", err)
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	result, err := decodeResponse(req.FuncSpec, resp, elapsed, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Model call completed",
		"request_id", requestID,
		"model", resp.Model,
		"duration", elapsed,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens)

	return result, nil
}

// buildParams assembles the request parameters. Absent optional settings are
// dropped from the wire request, never sent as null; a FuncSpec is injected
// as the sole tool with the tool choice forced to it.
func (b *Backend) buildParams(req model.Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, msg := range model.BuildMessages(req.SystemMessage, req.UserMessage, req.ConvertSystemToUser) {
		switch msg.Role {
		case model.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	modelID := req.Settings.Model
	if modelID == "" {
		modelID = b.opts.Model
	}

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    modelID,
	}

	if req.Settings.Temperature != nil {
		params.Temperature = openai.Float(*req.Settings.Temperature)
	}
	if req.Settings.TopP != nil {
		params.TopP = openai.Float(*req.Settings.TopP)
	}
	if req.Settings.MaxTokens != nil {
		params.MaxTokens = openai.Int(*req.Settings.MaxTokens)
	}

	if req.FuncSpec == nil {
		return params
	}

	params.Tools = []openai.ChatCompletionToolParam{{
		Type: "function",
		Function: openai.FunctionDefinitionParam{
			Name:        req.FuncSpec.Name,
			Description: openai.String(req.FuncSpec.Description),
			Parameters:  req.FuncSpec.Parameters,
		},
	}}
	params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
		OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
			Type:     "function",
			Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: req.FuncSpec.Name},
		},
	}

	return params
}

// decodeResponse turns the first choice into a QueryResult, enforcing the
// function-calling contract when a FuncSpec was given.
func decodeResponse(spec *model.FuncSpec, resp *openai.ChatCompletion, elapsed time.Duration, logger logging.Logger) (*model.QueryResult, error) {
	if len(resp.Choices) == 0 {
		return nil, model.NewProtocolViolation(specName(spec), "no choices returned", resp.RawJSON())
	}
	choice := resp.Choices[0]

	result := &model.QueryResult{
		Elapsed:      elapsed,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		Metadata: map[string]any{
			"system_fingerprint": resp.SystemFingerprint,
			"model":              resp.Model,
			"created":            resp.Created,
		},
	}

	if spec == nil {
		result.Text = choice.Message.Content
		return result, nil
	}

	if len(choice.Message.ToolCalls) == 0 {
		return nil, model.NewProtocolViolation(spec.Name, "response carries no tool call", choice.Message.RawJSON())
	}

	call := choice.Message.ToolCalls[0]
	if call.Function.Name != spec.Name {
		return nil, model.NewProtocolViolation(spec.Name,
			fmt.Sprintf("model called %q instead", call.Function.Name), choice.Message.RawJSON())
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		logger.Error("Error decoding the function arguments", "arguments", call.Function.Arguments)
		return nil, &model.DecodeError{FuncName: spec.Name, Payload: call.Function.Arguments, Err: err}
	}
	if args == nil {
		// JSON null: Structured must be non-nil when a FuncSpec was given.
		args = map[string]any{}
	}
	result.Structured = args

	return result, nil
}

func specName(spec *model.FuncSpec) string {
	if spec == nil {
		return ""
	}
	return spec.Name
}

// Transient reports whether err belongs to the failure classes worth
// retrying: rate limiting (429), server-internal errors (5xx), connection
// failures and request timeouts. Caller cancellation is never transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}
