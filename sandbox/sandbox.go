// Package sandbox hosts a long-lived embedded JavaScript interpreter.
// One Interpreter owns one goja runtime whose top-level bindings persist
// across Execute calls, so multi-step work can build on earlier state.
// All access is serialized by a mutex; a throwing snippet reports the
// exception in the result and leaves the namespace intact.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// ExecResult is the outcome of one snippet.
type ExecResult struct {
	// Value is the string form of the snippet's completion value,
	// empty for undefined/null.
	Value string
	// Stdout collects print and console.log output from this call only.
	Stdout string
	// Err holds the exception text when the snippet threw.
	Err string
	// Duration is wall time spent inside the runtime.
	Duration time.Duration
}

// Failed reports whether the snippet threw.
func (r ExecResult) Failed() bool { return r.Err != "" }

// Interpreter is a persistent JavaScript execution environment.
type Interpreter struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	stdout *bytes.Buffer
	logger *zap.Logger
}

func New(logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	i := &Interpreter{
		stdout: &bytes.Buffer{},
		logger: logger.With(zap.String("component", "sandbox")),
	}
	i.vm = i.newRuntime()
	return i
}

var (
	defaultOnce sync.Once
	defaultInst *Interpreter
)

// Default returns the process-wide shared interpreter.
func Default() *Interpreter {
	defaultOnce.Do(func() {
		defaultInst = New(nil)
	})
	return defaultInst
}

func (i *Interpreter) newRuntime() *goja.Runtime {
	vm := goja.New()
	print := func(call goja.FunctionCall) goja.Value {
		for n, arg := range call.Arguments {
			if n > 0 {
				i.stdout.WriteByte(' ')
			}
			i.stdout.WriteString(arg.String())
		}
		i.stdout.WriteByte('\n')
		return goja.Undefined()
	}
	vm.Set("print", print)
	console := vm.NewObject()
	console.Set("log", print)
	console.Set("error", print)
	vm.Set("console", console)
	return vm
}

// Execute runs one snippet. Bindings established by earlier calls are
// visible; bindings this snippet creates before throwing survive too.
// Cancellation of ctx interrupts the runtime.
func (i *Interpreter) Execute(ctx context.Context, src string) ExecResult {
	i.mu.Lock()
	defer i.mu.Unlock()

	start := time.Now()
	i.stdout.Reset()

	// The watchdog must be confirmed exited before ClearInterrupt,
	// otherwise a stale Interrupt could land after the clear and abort
	// the next caller's snippet.
	watchStop := make(chan struct{})
	watchExited := make(chan struct{})
	go func() {
		defer close(watchExited)
		select {
		case <-ctx.Done():
			i.vm.Interrupt(ctx.Err())
		case <-watchStop:
		}
	}()

	value, err := i.vm.RunString(src)
	close(watchStop)
	<-watchExited
	i.vm.ClearInterrupt()

	res := ExecResult{
		Stdout:   i.stdout.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		res.Err = exceptionText(err)
		i.logger.Debug("snippet failed", zap.String("error", res.Err))
		return res
	}
	if value != nil && !goja.IsUndefined(value) && !goja.IsNull(value) {
		res.Value = value.String()
	}
	return res
}

// Reset discards the runtime and starts a fresh namespace.
func (i *Interpreter) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.vm = i.newRuntime()
	i.logger.Debug("namespace reset")
}

func exceptionText(err error) string {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return exc.Value().String()
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Sprintf("execution interrupted: %v", interrupted.Value())
	}
	return err.Error()
}
