package modelbridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/modelbridge/model"
	"github.com/hupe1980/modelbridge/model/openai"
)

// -------------------- Construction Tests --------------------

func TestNew_DefaultBackend(t *testing.T) {
	b := New()

	assert.NotNil(t, b.backend)
	assert.IsType(t, &openai.Backend{}, b.backend)
	assert.Equal(t, 0, b.Calls())
	assert.Equal(t, -1, b.RemainingCalls())
}

func TestNew_CustomBackend(t *testing.T) {
	mock := model.NewMockBackend()
	b := New(func(o *Options) { o.Backend = mock })

	assert.Same(t, mock, b.backend)
}

// -------------------- Query Tests --------------------

func TestQuery_DelegatesToBackend(t *testing.T) {
	mock := model.NewMockBackend()
	mock.AddResult("ping", &model.QueryResult{Text: "pong"})

	b := New(func(o *Options) { o.Backend = mock })

	res, err := b.Query(context.Background(), model.Request{
		SystemMessage: "you answer tersely",
		UserMessage:   "ping",
	})
	assert.NoError(t, err)
	assert.Equal(t, "pong", res.Text)

	reqs := mock.Requests()
	assert.Len(t, reqs, 1)
	assert.Equal(t, "you answer tersely", reqs[0].SystemMessage)
	assert.Equal(t, "ping", reqs[0].UserMessage)
}

// -------------------- Convenience Helper Tests --------------------

func TestAsk(t *testing.T) {
	mock := model.NewMockBackend()
	mock.AddResult("how many?", &model.QueryResult{Text: "42"})

	b := New(func(o *Options) { o.Backend = mock })

	answer, err := b.Ask(context.Background(), "you answer tersely", "how many?")
	assert.NoError(t, err)
	assert.Equal(t, "42", answer)
}

func TestAsk_PropagatesError(t *testing.T) {
	mock := model.NewMockBackend()
	mock.FailWith(errors.New("backend down"))

	b := New(func(o *Options) { o.Backend = mock })

	_, err := b.Ask(context.Background(), "", "hello?")
	assert.ErrorContains(t, err, "backend down")
}

func TestAskCode(t *testing.T) {
	mock := model.NewMockBackend()
	mock.AddResult("write it", &model.QueryResult{
		Text: "Sure:\n```python\nprint(1)\n```\n",
	})

	b := New(func(o *Options) { o.Backend = mock })

	src, err := b.AskCode(context.Background(), "", "write it", "python")
	assert.NoError(t, err)
	assert.Equal(t, "print(1)", src)
}

func TestCall(t *testing.T) {
	mock := model.NewMockBackend()
	mock.AddResult("review", &model.QueryResult{Structured: map[string]any{"is_bug": true}})

	b := New(func(o *Options) { o.Backend = mock })
	spec := model.NewFuncSpec("submit_review", "Submit a review", map[string]any{"type": "object"})

	args, err := b.Call(context.Background(), "you are a reviewer", "review", spec)
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"is_bug": true}, args)

	reqs := mock.Requests()
	assert.Len(t, reqs, 1)
	assert.Equal(t, "submit_review", reqs[0].FuncSpec.Name)
}

// -------------------- Budget Tests --------------------

func TestQuery_EnforcesBudget(t *testing.T) {
	mock := model.NewMockBackend()
	b := New(func(o *Options) {
		o.Backend = mock
		o.MaxCalls = 2
	})

	_, err := b.Ask(context.Background(), "", "one")
	assert.NoError(t, err)
	assert.Equal(t, 1, b.RemainingCalls())

	_, err = b.Ask(context.Background(), "", "two")
	assert.NoError(t, err)

	_, err = b.Ask(context.Background(), "", "three")
	var budgetErr *model.BudgetExceededError
	assert.True(t, errors.As(err, &budgetErr))
	assert.Equal(t, 2, budgetErr.Max)

	// The backend never saw the rejected call.
	assert.Len(t, mock.Requests(), 2)
}

func TestResetBudget(t *testing.T) {
	mock := model.NewMockBackend()
	b := New(func(o *Options) {
		o.Backend = mock
		o.MaxCalls = 1
	})

	_, err := b.Ask(context.Background(), "", "one")
	assert.NoError(t, err)
	_, err = b.Ask(context.Background(), "", "two")
	assert.Error(t, err)

	b.ResetBudget()

	_, err = b.Ask(context.Background(), "", "three")
	assert.NoError(t, err)
}
