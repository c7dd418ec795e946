// Package engine isolates the embedded script virtual machine behind a small
// surface so that no other package imports the interpreter directly. It
// separates compilation from execution, exposes asynchronous interruption and
// keeps the global object alive after a run for follow-up evaluation.
package engine

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"github.com/viant/scriptlab/model"
	"github.com/viant/toolbox"
)

// Program is a compiled, immutable script unit. Programs are safe to share
// and re-run across runtimes, which lets reference modules be compiled once
// per process.
type Program struct {
	Name string
	prog *goja.Program
}

// Compile compiles source into a Program. Syntax problems are returned as
// diagnostics rather than a Go error so that callers can surface them as a
// compile outcome instead of a failure.
func Compile(name, source string) (*Program, []*model.ErrorInfo) {
	prog, err := goja.Compile(name, source, false)
	if err != nil {
		return nil, DiagnosticsOf(err)
	}
	return &Program{Name: name, prog: prog}, nil
}

var positionExpr = regexp.MustCompile(`Line (\d+):(\d+)`)

// DiagnosticsOf converts a compile or evaluation error into diagnostics,
// extracting the source position when the message carries one.
func DiagnosticsOf(err error) []*model.ErrorInfo {
	if err == nil {
		return nil
	}
	info := &model.ErrorInfo{Message: err.Error()}
	if match := positionExpr.FindStringSubmatch(info.Message); match != nil {
		info.Line, _ = strconv.Atoi(match[1])
		info.Column, _ = strconv.Atoi(match[2])
	}
	return []*model.ErrorInfo{info}
}

// NamedValue is a single top-level binding produced by a run, exported to a
// plain Go value.
type NamedValue struct {
	Name  string
	Value interface{}
}

// ConsoleFunc receives one console line as user code emits it.
type ConsoleFunc func(line string)

// Runtime wraps one script virtual machine together with the bookkeeping
// needed to tell user-defined globals apart from preloaded bindings. A
// Runtime is not safe for concurrent use; callers serialize access through
// the owning session.
type Runtime struct {
	vm       *goja.Runtime
	baseline map[string]bool
}

// NewRuntime creates a fresh virtual machine with console functions bound.
// Both console.log and println append a line to the supplied sink as the
// call occurs, so output is observable incrementally.
func NewRuntime(console ConsoleFunc) *Runtime {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	r := &Runtime{vm: vm, baseline: map[string]bool{}}
	echo := func(args ...interface{}) {
		if console == nil {
			return
		}
		console(formatConsole(args))
	}
	_ = vm.Set("println", echo)
	consoleObj := vm.NewObject()
	_ = consoleObj.Set("log", echo)
	_ = vm.Set("console", consoleObj)
	r.rebase()
	return r
}

func formatConsole(args []interface{}) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, toolbox.AsString(arg))
	}
	return strings.Join(parts, " ")
}

// rebase marks every key currently present on the global object as
// non-user-defined. Called after builtin and module preloading so that
// Globals reports only bindings introduced by the main run.
func (r *Runtime) rebase() {
	for _, key := range r.vm.GlobalObject().Keys() {
		r.baseline[key] = true
	}
}

// Bind exposes a host value to the script under the given name.
func (r *Runtime) Bind(name string, value interface{}) error {
	if err := r.vm.Set(name, value); err != nil {
		return fmt.Errorf("failed to bind %v: %w", name, err)
	}
	r.baseline[name] = true
	return nil
}

// Preload executes a reference module inside this runtime. Bindings the
// module introduces are visible to the script but excluded from Globals.
func (r *Runtime) Preload(program *Program) error {
	if _, err := r.vm.RunProgram(program.prog); err != nil {
		return fmt.Errorf("failed to load reference %v: %w", program.Name, err)
	}
	r.rebase()
	return nil
}

// Run executes a compiled program to completion, an unhandled exception or
// an interrupt, whichever comes first.
func (r *Runtime) Run(program *Program) error {
	_, err := r.vm.RunProgram(program.prog)
	return err
}

// Eval evaluates a single expression against the live globals and exports
// the computed value. A nil value together with a nil error means the
// expression produced undefined or null.
func (r *Runtime) Eval(expression string) (interface{}, error) {
	value, err := r.vm.RunString(expression)
	if err != nil {
		return nil, err
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}

// Interrupt stops the virtual machine at its next checkpoint. Safe to call
// from any goroutine; idempotent while a run is in flight.
func (r *Runtime) Interrupt(reason string) {
	r.vm.Interrupt(reason)
}

// ClearInterrupt re-arms the runtime after a handled interrupt.
func (r *Runtime) ClearInterrupt() {
	r.vm.ClearInterrupt()
}

// Globals returns the top-level bindings the last run introduced, in the
// global object's key order.
func (r *Runtime) Globals() []NamedValue {
	global := r.vm.GlobalObject()
	var out []NamedValue
	for _, key := range global.Keys() {
		if r.baseline[key] {
			continue
		}
		value := global.Get(key)
		var exported interface{}
		if value != nil && !goja.IsUndefined(value) && !goja.IsNull(value) {
			exported = value.Export()
		}
		out = append(out, NamedValue{Name: key, Value: exported})
	}
	return out
}

// IsInterrupt reports whether err is the outcome of an Interrupt call as
// opposed to a fault raised by user code.
func IsInterrupt(err error) bool {
	var interrupted *goja.InterruptedError
	return errors.As(err, &interrupted)
}

// FaultOf translates an engine error into structured fault detail: exception
// name, message and the script-level stack trace when available.
func FaultOf(err error) *model.Fault {
	if err == nil {
		return nil
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		fault := &model.Fault{Type: "Exception", Message: exception.Error(), StackTrace: exception.String()}
		if idx := strings.Index(fault.Message, ":"); idx > 0 && !strings.ContainsAny(fault.Message[:idx], " \t") {
			fault.Type = fault.Message[:idx]
		}
		return fault
	}
	return &model.Fault{Type: fmt.Sprintf("%T", err), Message: err.Error()}
}
