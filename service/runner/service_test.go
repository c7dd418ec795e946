package runner

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/scriptlab/model"
	"github.com/viant/scriptlab/runtime/session"
	smemory "github.com/viant/scriptlab/service/dao/session/memory"
	"github.com/viant/scriptlab/service/engine"
	"github.com/viant/scriptlab/service/event"
)

func newTestService(events *event.Service) (*Service, *smemory.Service) {
	registry := smemory.New()
	return New(registry, nil, nil, events, Config{CancelGracePeriodMs: 1000}), registry
}

func TestService_Run_Completes(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	result, wait, err := service.Run(ctx, &Input{
		SessionID:  "s-1",
		MainSource: "var x = 42\nprintln('x is', x)",
		References: []string{"env"},
	})
	assert.Nil(t, err)
	assert.NotNil(t, result)
	if !assert.NotNil(t, wait) {
		return
	}

	final, err := wait(ctx, time.Minute)
	assert.Nil(t, err)
	assert.Equal(t, model.StatusCompleted, final.Status)
	assert.Equal(t, []string{"x is 42"}, final.Console)
	assert.Equal(t, []string{"env"}, final.References)
	if assert.Equal(t, 1, len(final.Variables)) {
		assert.Equal(t, "x", final.Variables[0].Name)
		assert.Equal(t, "42", final.Variables[0].Value)
		assert.Equal(t, "int64", final.Variables[0].Type)
	}
}

func TestService_Run_AuxiliaryBeforeMain(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	_, wait, err := service.Run(ctx, &Input{
		SessionID: "s-1",
		Auxiliary: []*Source{
			{Name: "helpers", Content: "function double(x) { return 2 * x }"},
		},
		MainSource: "var y = double(21)",
	})
	assert.Nil(t, err)
	final, err := wait(ctx, time.Minute)
	assert.Nil(t, err)
	assert.Equal(t, model.StatusCompleted, final.Status)
	found := false
	for _, variable := range final.Variables {
		if variable.Name == "y" {
			found = true
			assert.Equal(t, "42", variable.Value)
		}
	}
	assert.True(t, found)
}

func TestService_Run_CompileError(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	result, wait, err := service.Run(ctx, &Input{SessionID: "s-1", MainSource: "var x = "})
	assert.Nil(t, err)
	assert.Nil(t, wait)
	assert.Equal(t, model.StatusCompiledWithErrors, result.Status)
	if assert.True(t, result.HasErrors()) {
		assert.Equal(t, 1, result.Errors[0].Line)
	}
}

func TestService_Run_Fault(t *testing.T) {
	service, registry := newTestService(nil)
	ctx := context.Background()

	_, wait, err := service.Run(ctx, &Input{SessionID: "s-1", MainSource: "var x = 1"})
	assert.Nil(t, err)
	_, err = wait(ctx, time.Minute)
	assert.Nil(t, err)

	_, wait, err = service.Run(ctx, &Input{
		SessionID:  "s-1",
		MainSource: "println('before crash')\nthrow new Error('boom')",
	})
	assert.Nil(t, err)
	final, err := wait(ctx, time.Minute)
	assert.Nil(t, err)
	assert.Equal(t, model.StatusThrowedException, final.Status)
	if assert.NotNil(t, final.Fault) {
		assert.Equal(t, "Error", final.Fault.Type)
		assert.Contains(t, final.Fault.Message, "boom")
	}
	// console lines emitted before the crash are preserved
	assert.Equal(t, []string{"before crash"}, final.Console)

	// globals of the prior successful run survive the crash
	sess, err := registry.Load(ctx, "s-1")
	assert.Nil(t, err)
	value, ok := sess.Lookup("x")
	assert.True(t, ok)
	assert.Equal(t, int64(1), value)
}

func TestService_Run_EmptySessionID(t *testing.T) {
	service, _ := newTestService(nil)
	_, _, err := service.Run(context.Background(), &Input{MainSource: "var x = 1"})
	assert.NotNil(t, err)
}

func TestService_Cancel(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	result, wait, err := service.Run(ctx, &Input{SessionID: "s-1", MainSource: "while(true) {}"})
	assert.Nil(t, err)
	assert.Equal(t, model.StatusRunning, result.Status)

	cancelled, err := service.Cancel(ctx, "s-1")
	assert.Nil(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	final, err := wait(ctx, time.Minute)
	assert.Nil(t, err)
	assert.Equal(t, model.StatusCancelled, final.Status)
}

func TestService_Cancel_Idempotent(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	// unknown session
	result, err := service.Cancel(ctx, "ghost")
	assert.Nil(t, err)
	assert.Equal(t, model.StatusUnknown, result.Status)

	// idle session
	_, wait, err := service.Run(ctx, &Input{SessionID: "s-1", MainSource: "var x = 1"})
	assert.Nil(t, err)
	_, err = wait(ctx, time.Minute)
	assert.Nil(t, err)
	result, err = service.Cancel(ctx, "s-1")
	assert.Nil(t, err)
	assert.Equal(t, model.StatusCompleted, result.Status)
}

func TestService_Run_Contention(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	_, wait, err := service.Run(ctx, &Input{SessionID: "s-1", MainSource: "while(true) {}"})
	assert.Nil(t, err)

	rejected, rejectedWait, err := service.Run(ctx, &Input{SessionID: "s-1", MainSource: "var x = 1"})
	assert.Nil(t, err)
	assert.Nil(t, rejectedWait)
	assert.Equal(t, model.StatusAnotherScriptExecuting, rejected.Status)
	if assert.True(t, rejected.HasErrors()) {
		assert.Contains(t, rejected.Errors[0].Message, "another script")
	}

	_, err = service.Cancel(ctx, "s-1")
	assert.Nil(t, err)
	_, err = wait(ctx, time.Minute)
	assert.Nil(t, err)
}

func TestService_Run_ForceRun(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	_, _, err := service.Run(ctx, &Input{SessionID: "s-1", MainSource: "while(true) {}"})
	assert.Nil(t, err)

	result, wait, err := service.Run(ctx, &Input{SessionID: "s-1", MainSource: "var x = 1", ForceRun: true})
	assert.Nil(t, err)
	if !assert.NotNil(t, wait) {
		t.Logf("force run rejected: %+v", result)
		return
	}
	final, err := wait(ctx, time.Minute)
	assert.Nil(t, err)
	assert.Equal(t, model.StatusCompleted, final.Status)
}

func TestService_Run_UnresolvableReference(t *testing.T) {
	service, _ := newTestService(nil)
	result, wait, err := service.Run(context.Background(), &Input{
		SessionID:  "s-1",
		MainSource: "var x = 1",
		References: []string{"nosuchlib"},
	})
	assert.Nil(t, err)
	assert.Nil(t, wait)
	assert.Equal(t, model.StatusCompiledWithErrors, result.Status)
	if assert.True(t, result.HasErrors()) {
		assert.Contains(t, result.Errors[0].Message, "nosuchlib")
	}
}

func TestService_Run_SlowConsumerDoesNotBlock(t *testing.T) {
	events := event.New(event.WithQueueConfig(func(string) event.QueueConfig {
		config := event.DefaultQueueConfig()
		config.Memory.QueueBuffer = 1
		return config
	}))
	service, _ := newTestService(events)
	ctx := context.Background()

	// nothing drains the queues; overflowing publications drop instead of
	// wedging the worker inside the console host call
	_, wait, err := service.Run(ctx, &Input{
		SessionID:  "s-1",
		MainSource: strings.Repeat("println('tick')\n", 10),
	})
	assert.Nil(t, err)
	if !assert.NotNil(t, wait) {
		return
	}
	final, err := wait(ctx, 10*time.Second)
	assert.Nil(t, err)
	assert.Equal(t, model.StatusCompleted, final.Status)
	assert.Equal(t, 10, len(final.Console))
}

func TestService_CancelAfterRunKeepsSessionUsable(t *testing.T) {
	service, registry := newTestService(nil)
	ctx := context.Background()

	sess, err := registry.GetOrCreate(ctx, "s-1")
	assert.Nil(t, err)
	assert.Nil(t, sess.Begin("run-1"))
	rt := engine.NewRuntime(nil)
	cancel := session.NewCancellation(func() {
		rt.Interrupt("script cancelled")
	})
	sess.MarkRunning(cancel)

	program, diags := engine.Compile("main", "var x = 1")
	assert.Empty(t, diags)
	assert.Nil(t, rt.Run(program))

	// the cancel lands after the last program returned but before the
	// outcome is recorded; the pending interrupt must not poison the
	// completed session
	cancel.Cancel()
	service.settle(sess, rt, cancel, nil)
	assert.Equal(t, model.StatusCompleted, sess.Status())

	err = sess.WithRuntime(func(runtime *engine.Runtime) error {
		value, evalErr := runtime.Eval("x + 1")
		assert.Equal(t, int64(2), value)
		return evalErr
	})
	assert.Nil(t, err)
}

func TestService_Run_Events(t *testing.T) {
	events := event.New()
	service, _ := newTestService(events)
	ctx := context.Background()

	var mu sync.Mutex
	var statuses []model.Status
	err := event.SetListenerOf[session.StatusEvent](events, func(evt *event.Event[session.StatusEvent]) {
		mu.Lock()
		statuses = append(statuses, evt.Data.Status)
		mu.Unlock()
	})
	assert.Nil(t, err)
	var lines []string
	err = event.SetListenerOf[session.ConsoleEvent](events, func(evt *event.Event[session.ConsoleEvent]) {
		mu.Lock()
		lines = append(lines, evt.Data.Line)
		mu.Unlock()
	})
	assert.Nil(t, err)

	_, wait, err := service.Run(ctx, &Input{SessionID: "s-1", MainSource: "println('hi')"})
	assert.Nil(t, err)
	_, err = wait(ctx, time.Minute)
	assert.Nil(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) >= 3 && len(lines) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, model.StatusPrepareToRun, statuses[0])
	assert.Equal(t, model.StatusRunning, statuses[1])
	assert.Equal(t, model.StatusCompleted, statuses[len(statuses)-1])
	assert.Equal(t, []string{"hi"}, lines)
}
