package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompile(t *testing.T) {
	t.Run("valid source", func(t *testing.T) {
		program, diagnostics := Compile("main", "var x = 1")
		assert.NotNil(t, program)
		assert.Empty(t, diagnostics)
	})

	t.Run("syntax error carries position", func(t *testing.T) {
		program, diagnostics := Compile("main", "var x = ")
		assert.Nil(t, program)
		if !assert.Equal(t, 1, len(diagnostics)) {
			return
		}
		assert.NotEmpty(t, diagnostics[0].Message)
		assert.Equal(t, 1, diagnostics[0].Line)
	})
}

func TestRuntime_Run(t *testing.T) {
	var console []string
	rt := NewRuntime(func(line string) {
		console = append(console, line)
	})
	program, diagnostics := Compile("main", `
var x = 42
var name = 'Ann'
println('x is', x)
console.log('done')
`)
	assert.Empty(t, diagnostics)
	err := rt.Run(program)
	assert.Nil(t, err)
	assert.Equal(t, []string{"x is 42", "done"}, console)

	globals := rt.Globals()
	if !assert.Equal(t, 2, len(globals)) {
		return
	}
	assert.Equal(t, "x", globals[0].Name)
	assert.Equal(t, int64(42), globals[0].Value)
	assert.Equal(t, "name", globals[1].Name)
	assert.Equal(t, "Ann", globals[1].Value)
}

func TestRuntime_BindAndPreload(t *testing.T) {
	rt := NewRuntime(nil)
	err := rt.Bind("host", map[string]interface{}{"id": 1})
	assert.Nil(t, err)

	library, diagnostics := Compile("lib", "function double(x) { return 2 * x }")
	assert.Empty(t, diagnostics)
	err = rt.Preload(library)
	assert.Nil(t, err)

	program, diagnostics := Compile("main", "var y = double(21)")
	assert.Empty(t, diagnostics)
	err = rt.Run(program)
	assert.Nil(t, err)

	globals := rt.Globals()
	if !assert.Equal(t, 1, len(globals)) {
		return
	}
	assert.Equal(t, "y", globals[0].Name)
	assert.Equal(t, int64(42), globals[0].Value)
}

func TestRuntime_Eval(t *testing.T) {
	rt := NewRuntime(nil)
	program, _ := Compile("main", "var x = 42")
	assert.Nil(t, rt.Run(program))

	value, err := rt.Eval("x + 1")
	assert.Nil(t, err)
	assert.Equal(t, int64(43), value)

	value, err = rt.Eval("undefined")
	assert.Nil(t, err)
	assert.Nil(t, value)

	_, err = rt.Eval("ghost.field")
	assert.NotNil(t, err)
}

func TestRuntime_Interrupt(t *testing.T) {
	rt := NewRuntime(nil)
	program, _ := Compile("main", "while(true) {}")
	errCh := make(chan error, 1)
	go func() {
		errCh <- rt.Run(program)
	}()
	time.Sleep(50 * time.Millisecond)
	rt.Interrupt("stop requested")
	select {
	case err := <-errCh:
		assert.True(t, IsInterrupt(err))
	case <-time.After(2 * time.Second):
		assert.Fail(t, "run did not stop after interrupt")
	}
	rt.ClearInterrupt()
	follow, _ := Compile("main", "var x = 1")
	assert.Nil(t, rt.Run(follow))
}

func TestFaultOf(t *testing.T) {
	rt := NewRuntime(nil)
	program, _ := Compile("main", `throw new Error("boom")`)
	err := rt.Run(program)
	if !assert.NotNil(t, err) {
		return
	}
	fault := FaultOf(err)
	if !assert.NotNil(t, fault) {
		return
	}
	assert.Equal(t, "Error", fault.Type)
	assert.Contains(t, fault.Message, "boom")
	assert.NotEmpty(t, fault.StackTrace)
}
