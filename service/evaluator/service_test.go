package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/scriptlab/model"
	smemory "github.com/viant/scriptlab/service/dao/session/memory"
	"github.com/viant/scriptlab/service/runner"
)

func TestService_Evaluate(t *testing.T) {
	registry := smemory.New()
	run := runner.New(registry, nil, nil, nil, runner.Config{})
	service := New(registry, nil)
	ctx := context.Background()

	_, wait, err := run.Run(ctx, &runner.Input{SessionID: "s-1", MainSource: "var x = 42"})
	assert.Nil(t, err)
	_, err = wait(ctx, time.Minute)
	assert.Nil(t, err)

	result, err := service.Evaluate(ctx, "s-1", "x + 1", false)
	assert.Nil(t, err)
	assert.Equal(t, model.StatusCompleted, result.Status)
	if assert.Equal(t, 1, len(result.Variables)) {
		assert.Equal(t, "x + 1", result.Variables[0].Name)
		assert.Equal(t, "43", result.Variables[0].Value)
		assert.Empty(t, result.Variables[0].JSON)
	}

	withJSON, err := service.Evaluate(ctx, "s-1", "x", true)
	assert.Nil(t, err)
	if assert.Equal(t, 1, len(withJSON.Variables)) {
		assert.Equal(t, "42", withJSON.Variables[0].JSON)
	}
}

func TestService_Evaluate_MutatesGlobals(t *testing.T) {
	registry := smemory.New()
	run := runner.New(registry, nil, nil, nil, runner.Config{})
	service := New(registry, nil)
	ctx := context.Background()

	_, wait, err := run.Run(ctx, &runner.Input{SessionID: "s-1", MainSource: "var x = 42"})
	assert.Nil(t, err)
	_, err = wait(ctx, time.Minute)
	assert.Nil(t, err)

	_, err = service.Evaluate(ctx, "s-1", "x = x + 1", false)
	assert.Nil(t, err)
	result, err := service.Evaluate(ctx, "s-1", "x", false)
	assert.Nil(t, err)
	if assert.Equal(t, 1, len(result.Variables)) {
		assert.Equal(t, "43", result.Variables[0].Value)
	}
}

func TestService_Evaluate_Errors(t *testing.T) {
	registry := smemory.New()
	run := runner.New(registry, nil, nil, nil, runner.Config{})
	service := New(registry, nil)
	ctx := context.Background()

	t.Run("unknown session", func(t *testing.T) {
		result, err := service.Evaluate(ctx, "ghost", "1 + 1", false)
		assert.Nil(t, err)
		assert.Equal(t, model.StatusUnknown, result.Status)
		if assert.True(t, result.HasErrors()) {
			assert.Contains(t, result.Errors[0].Message, "session not found")
		}
	})

	t.Run("session without live globals", func(t *testing.T) {
		_, err := registry.GetOrCreate(ctx, "fresh")
		assert.Nil(t, err)
		result, err := service.Evaluate(ctx, "fresh", "1 + 1", false)
		assert.Nil(t, err)
		assert.Equal(t, model.StatusUnknown, result.Status)
		if assert.True(t, result.HasErrors()) {
			assert.Contains(t, result.Errors[0].Message, "script not available")
		}
	})

	t.Run("evaluation error does not change status", func(t *testing.T) {
		_, wait, err := run.Run(ctx, &runner.Input{SessionID: "s-1", MainSource: "var x = 1"})
		assert.Nil(t, err)
		_, err = wait(ctx, time.Minute)
		assert.Nil(t, err)

		result, err := service.Evaluate(ctx, "s-1", "ghost.field", false)
		assert.Nil(t, err)
		assert.Equal(t, model.StatusCompleted, result.Status)
		assert.True(t, result.HasErrors())

		// the session remains evaluatable afterwards
		follow, err := service.Evaluate(ctx, "s-1", "x", false)
		assert.Nil(t, err)
		assert.False(t, follow.HasErrors())
	})

	t.Run("empty session id", func(t *testing.T) {
		_, err := service.Evaluate(ctx, "", "1", false)
		assert.NotNil(t, err)
	})
}
