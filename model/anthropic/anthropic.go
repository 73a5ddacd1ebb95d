// Package anthropic provides a model.Backend speaking the Anthropic Messages
// API through the official SDK. By default it targets the hosted API; setting
// a port switches it to an Anthropic-compatible endpoint on the container
// host, resolved lazily the same way the openai backend does.
package anthropic

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

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/google/uuid"

	"github.com/hupe1980/modelbridge/hostgw"
	"github.com/hupe1980/modelbridge/logging"
	"github.com/hupe1980/modelbridge/model"
)

// DefaultMaxTokens caps the response length when a request names no cap. The
// Messages API requires one on every call.
const DefaultMaxTokens = 4096

// Options configure the Anthropic backend.
type Options struct {
	// Host is the endpoint host for local mode. Empty means resolve it via
	// Resolver on first use.
	Host string

	// Port switches the backend to a local Anthropic-compatible endpoint at
	// http://host:port. Zero targets the hosted API.
	Port int

	// BaseURL overrides the endpoint entirely.
	BaseURL string

	// APIKey is the credential sent to the endpoint. Empty defers to the
	// SDK's environment lookup.
	APIKey string

	// Model is the default model id, used when a request names none.
	Model anthropic.Model

	// MaxTokens is the response cap applied when a request names none.
	MaxTokens int64

	// Resolver locates the endpoint host in local mode when Host is empty.
	Resolver *hostgw.Resolver

	// Logger receives call and retry outcomes (defaults to NoOp).
	Logger logging.Logger

	// Retry bounds the transient-failure retries around the remote call.
	Retry model.RetryPolicy

	// HTTPClient overrides the SDK's HTTP client.
	HTTPClient *http.Client
}

// Backend queries the Anthropic Messages API. The SDK client is constructed
// exactly once, on first Query; after that the Backend is read-only and safe
// for any number of concurrent callers.
type Backend struct {
	opts     Options
	initOnce sync.Once
	client   anthropic.Client
}

// New creates an Anthropic backend.
func New(optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: DefaultMaxTokens,
		Logger:    logging.NoOpLogger{},
		Retry:     model.DefaultRetryPolicy(),
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

// ensureClient performs the lazy exactly-once client construction. Host
// resolution runs at most once per Backend, and only in local mode.
func (b *Backend) ensureClient(ctx context.Context) {
	b.initOnce.Do(func() {
		clientOpts := []option.RequestOption{
			// Retries are centralized in Query; the SDK must not add its own.
			option.WithMaxRetries(0),
		}

		baseURL := b.opts.BaseURL
		if baseURL == "" && b.opts.Port != 0 {
			host := b.opts.Host
			if host == "" {
				host = b.opts.Resolver.Resolve(ctx)
			}
			// The SDK's request paths carry the v1 prefix themselves.
			baseURL = fmt.Sprintf("http://%s:%d", host, b.opts.Port)
		}
		if baseURL != "" {
			if !strings.HasSuffix(baseURL, "/") {
				baseURL += "/"
			}
			clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
			b.opts.Logger.Info("Anthropic-compatible endpoint configured", "base_url", baseURL)
		}

		if b.opts.APIKey != "" {
			clientOpts = append(clientOpts, option.WithAPIKey(b.opts.APIKey))
		}
		if b.opts.HTTPClient != nil {
			clientOpts = append(clientOpts, option.WithHTTPClient(b.opts.HTTPClient))
		}

		b.client = anthropic.NewClient(clientOpts...)
	})
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
		func() (*anthropic.Message, error) {
			return b.client.Messages.New(ctx, params, option.WithHeader("X-Request-Id", requestID))
		})
	elapsed := time.Since(t0)

	if err != nil {
		logger.Error("Model call failed", "request_id", requestID, "duration", elapsed, "error", err)
		return nil, fmt.Errorf("anthropic api error: %w", err)
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

// buildParams assembles the request parameters. System text rides in the
// dedicated system field unless the request demotes it to a user turn; absent
// optional settings are dropped from the wire request; a FuncSpec becomes the
// sole tool with the tool choice forced to it.
func (b *Backend) buildParams(req model.Request) anthropic.MessageNewParams {
	var messages []anthropic.MessageParam
	var system []anthropic.TextBlockParam

	for _, msg := range model.BuildMessages(req.SystemMessage, req.UserMessage, req.ConvertSystemToUser) {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	modelID := b.opts.Model
	if req.Settings.Model != "" {
		modelID = anthropic.Model(req.Settings.Model)
	}

	maxTokens := b.opts.MaxTokens
	if req.Settings.MaxTokens != nil {
		maxTokens = *req.Settings.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     modelID,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}

	if req.Settings.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Settings.Temperature)
	}
	if req.Settings.TopP != nil {
		params.TopP = anthropic.Float(*req.Settings.TopP)
	}

	if req.FuncSpec == nil {
		return params
	}

	inputSchema := anthropic.ToolInputSchemaParam{
		Type: constant.Object("object"),
	}
	if req.FuncSpec.Parameters != nil {
		if properties, ok := req.FuncSpec.Parameters["properties"]; ok {
			inputSchema.Properties = properties
		}
		inputSchema.Required = requiredNames(req.FuncSpec.Parameters["required"])
	}

	tool := anthropic.ToolUnionParamOfTool(inputSchema, req.FuncSpec.Name)
	if req.FuncSpec.Description != "" {
		tool.OfTool.Description = anthropic.String(req.FuncSpec.Description)
	}

	params.Tools = []anthropic.ToolUnionParam{tool}
	params.ToolChoice = anthropic.ToolChoiceUnionParam{
		OfTool: &anthropic.ToolChoiceToolParam{Name: req.FuncSpec.Name},
	}

	return params
}

// requiredNames normalizes the schema's required list, which decodes as
// []any from JSON but is assembled as []string in code.
func requiredNames(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		var names []string
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

// decodeResponse turns the response content blocks into a QueryResult,
// enforcing the function-calling contract when a FuncSpec was given.
func decodeResponse(spec *model.FuncSpec, resp *anthropic.Message, elapsed time.Duration, logger logging.Logger) (*model.QueryResult, error) {
	result := &model.QueryResult{
		Elapsed:      elapsed,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		Metadata: map[string]any{
			"model":       string(resp.Model),
			"stop_reason": string(resp.StopReason),
		},
	}

	if spec == nil {
		var sb strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				sb.WriteString(block.AsText().Text)
			}
		}
		result.Text = sb.String()
		return result, nil
	}

	for _, block := range resp.Content {
		if block.Type != "tool_use" {
			continue
		}
		toolBlock := block.AsToolUse()

		if toolBlock.Name != spec.Name {
			return nil, model.NewProtocolViolation(spec.Name,
				fmt.Sprintf("model called %q instead", toolBlock.Name), block.RawJSON())
		}

		raw, err := json.Marshal(toolBlock.Input)
		if err != nil {
			logger.Error("Error decoding the function arguments", "arguments", block.RawJSON())
			return nil, &model.DecodeError{FuncName: spec.Name, Payload: block.RawJSON(), Err: err}
		}

		args := map[string]any{}
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &args); err != nil {
				logger.Error("Error decoding the function arguments", "arguments", string(raw))
				return nil, &model.DecodeError{FuncName: spec.Name, Payload: string(raw), Err: err}
			}
		}
		result.Structured = args

		return result, nil
	}

	return nil, model.NewProtocolViolation(spec.Name, "response carries no tool call", resp.RawJSON())
}

// Transient reports whether err belongs to the failure classes worth
// retrying: rate limiting (429), server-side errors (5xx, including the
// 529 overloaded signal), connection failures and request timeouts. Caller
// cancellation is never transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *anthropic.Error
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
