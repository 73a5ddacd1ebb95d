// Package modelbridge provides a high-level façade over the model backends
// and host gateway resolution, enabling containerized workloads to reach
// inference endpoints running on their host with retries and budget control.
// Most applications interact with this package by:
//  1. Creating a ModelBridge via New() (optionally overriding the backend)
//  2. Issuing queries (Query) or using the convenience helpers (Ask, AskCode, Call)
//
// The façade delegates the remote call to a model.Backend while keeping setup
// and usage ergonomics concise. All defaults target an OpenAI-compatible
// endpoint on the container host; production deployments typically supply an
// explicit endpoint and a structured logger.
package modelbridge

import (
	"context"

	"github.com/hupe1980/modelbridge/code"
	"github.com/hupe1980/modelbridge/hostgw"
	"github.com/hupe1980/modelbridge/logging"
	"github.com/hupe1980/modelbridge/model"
	"github.com/hupe1980/modelbridge/model/openai"
)

// Options configures the ModelBridge instance.
type Options struct {
	// Backend overrides the default OpenAI-compatible backend entirely. The
	// endpoint options below are ignored when it is set.
	Backend model.Backend

	// Host is the endpoint host for the default backend. Empty means resolve
	// the container host gateway on first use.
	Host string

	// Port is the endpoint port for the default backend.
	Port int

	// BaseURL overrides the assembled endpoint of the default backend.
	BaseURL string

	// APIKey is the credential sent to the endpoint.
	APIKey string

	// Model is the default model id, used by requests that name none.
	Model string

	// Resolver locates the endpoint host when Host is empty.
	Resolver *hostgw.Resolver

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Retry bounds the transient-failure retries on the default backend.
	Retry model.RetryPolicy

	// MaxCalls caps the number of model calls issued through this bridge.
	// Zero means unlimited.
	MaxCalls int

	// VerifyOnInit makes the default backend list the endpoint's models once
	// after construction and log the outcome.
	VerifyOnInit bool
}

// ModelBridge is the high-level façade aggregating a backend and the shared
// call budget.
type ModelBridge struct {
	opts    Options
	backend model.Backend
	limiter *model.CallLimiter
}

// New creates a new ModelBridge instance with optional overrides. Without a
// custom backend it talks to an OpenAI-compatible endpoint on the container
// host, resolved lazily on the first query.
func New(optFns ...func(o *Options)) *ModelBridge {
	opts := Options{
		Port:   openai.DefaultPort,
		APIKey: openai.DefaultAPIKey,
		Logger: logging.NoOpLogger{},
		Retry:  model.DefaultRetryPolicy(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	backend := opts.Backend
	if backend == nil {
		backend = openai.New(func(o *openai.Options) {
			o.Host = opts.Host
			o.Port = opts.Port
			o.BaseURL = opts.BaseURL
			o.APIKey = opts.APIKey
			o.Resolver = opts.Resolver
			o.Logger = opts.Logger
			o.Retry = opts.Retry
			o.VerifyOnInit = opts.VerifyOnInit

			if opts.Model != "" {
				o.Model = opts.Model
			}
		})
	}

	return &ModelBridge{
		opts:    opts,
		backend: backend,
		limiter: model.NewCallLimiter(opts.MaxCalls),
	}
}

// Query dispatches one normalized request, counting it against the call
// budget first.
func (b *ModelBridge) Query(ctx context.Context, req model.Request) (*model.QueryResult, error) {
	if err := b.limiter.Increment(); err != nil {
		return nil, err
	}

	return b.backend.Query(ctx, req)
}

// Ask sends system and user text and returns the model's free-text answer.
func (b *ModelBridge) Ask(ctx context.Context, system, user string) (string, error) {
	res, err := b.Query(ctx, model.Request{SystemMessage: system, UserMessage: user})
	if err != nil {
		return "", err
	}

	return res.Text, nil
}

// AskCode asks for source in lang and returns the fenced code extracted from
// the answer.
func (b *ModelBridge) AskCode(ctx context.Context, system, user, lang string) (string, error) {
	text, err := b.Ask(ctx, system, user)
	if err != nil {
		return "", err
	}

	return code.Extract(text, lang), nil
}

// Call forces the model to answer through the given function spec and returns
// the decoded arguments.
func (b *ModelBridge) Call(ctx context.Context, system, user string, spec *model.FuncSpec) (map[string]any, error) {
	res, err := b.Query(ctx, model.Request{SystemMessage: system, UserMessage: user, FuncSpec: spec})
	if err != nil {
		return nil, err
	}

	return res.Structured, nil
}

// Calls returns the number of queries attempted so far, rejected ones
// included.
func (b *ModelBridge) Calls() int { return b.limiter.Count() }

// RemainingCalls returns how many queries are left in the budget, or -1 when
// unlimited.
func (b *ModelBridge) RemainingCalls() int { return b.limiter.Remaining() }

// ResetBudget clears the call counter so the budget covers a new run.
func (b *ModelBridge) ResetBudget() { b.limiter.Reset() }
