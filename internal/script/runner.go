package script

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/gam3du/gam3du-sub000/internal/channel"
	"github.com/gam3du/gam3du-sub000/internal/codegen"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// Result holds the completion value of a script.
type Result struct {
	// Value is the exported value; nil when IsEmpty is set.
	Value any
	// IsEmpty is true if the script evaluated to undefined or null.
	IsEmpty bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutput sets the sink for print(). Output is discarded by default.
func WithOutput(fn func(string)) Option {
	return func(r *Runner) {
		if fn != nil {
			r.output = fn
		}
	}
}

// WithLogger sets the logger for command tracing.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// Runner executes scripts in a persistent goja runtime. Globals defined by
// one Run stay visible to the next, which is what the REPL relies on.
//
// A Runner is not safe for concurrent use. Interrupt may be called from any
// goroutine.
type Runner struct {
	vm     *goja.Runtime
	client *channel.Client
	output func(string)
	logger *slog.Logger

	// Set for the duration of Run.
	ctx context.Context

	queue    []*asyncCall
	inflight *asyncCall

	// fatal is a protocol failure raised inside the script; it fails Run
	// even if the script caught the exception.
	fatal error
}

type asyncCall struct {
	command schema.Identifier
	args    []schema.Value
	resolve func(any)
	reject  func(any)
	future  *channel.Future
}

// New creates a runner bound to client and loads the generated stubs for
// the client's API.
func New(client *channel.Client, opts ...Option) (*Runner, error) {
	r := &Runner{
		client: client,
		output: func(string) {},
		logger: slog.Default(),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	r.vm = vm

	if err := r.registerAll(); err != nil {
		return nil, fmt.Errorf("register runtime: %w", err)
	}

	stubs, err := codegen.Generate(client.API(), codegen.JavaScript)
	if err != nil {
		return nil, fmt.Errorf("generate stubs: %w", err)
	}
	if _, err := vm.RunScript(string(client.API().Name)+".js", string(stubs)); err != nil {
		return nil, fmt.Errorf("load stubs: %w", convertError(err))
	}
	return r, nil
}

func (r *Runner) registerAll() error {
	hooks := r.vm.NewObject()
	if err := hooks.Set(codegen.BlockingCall, r.jsCall); err != nil {
		return err
	}
	if err := hooks.Set(codegen.AsyncCall, r.jsCallAsync); err != nil {
		return err
	}
	if err := r.vm.Set(codegen.RuntimeObject, hooks); err != nil {
		return err
	}
	if err := r.vm.Set("print", r.jsPrint); err != nil {
		return err
	}
	return r.vm.Set("sleep", r.jsSleep)
}

// Run executes src. It returns once the script and every cooperative call
// it started have finished. When the script evaluates to a Promise, Run
// reports its settled value or rejection.
func (r *Runner) Run(ctx context.Context, name, src string) (Result, error) {
	r.vm.ClearInterrupt()
	r.ctx = ctx
	r.fatal = nil
	defer func() { r.ctx = context.Background() }()

	stop := context.AfterFunc(ctx, r.Interrupt)
	defer stop()

	value, err := r.vm.RunScript(name, src)
	if err == nil {
		err = r.drain()
	}
	if err != nil || r.fatal != nil {
		r.abandonQueue()
		switch {
		case ctx.Err() != nil:
			return Result{}, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		case r.fatal != nil:
			return Result{}, r.fatal
		default:
			return Result{}, convertError(err)
		}
	}

	if p, ok := value.Export().(*goja.Promise); ok {
		switch p.State() {
		case goja.PromiseStateRejected:
			return Result{}, &ScriptError{Message: "uncaught (in promise) " + p.Result().String()}
		case goja.PromiseStateFulfilled:
			value = p.Result()
		default:
			return Result{}, &ScriptError{Message: "script promise never settled"}
		}
	}

	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return Result{IsEmpty: true}, nil
	}
	return Result{Value: value.Export()}, nil
}

// Interrupt stops the running script.
func (r *Runner) Interrupt() {
	r.vm.Interrupt(ErrInterrupted)
}

func (r *Runner) jsCall(call goja.FunctionCall) goja.Value {
	command, args := r.commandArgs(call)
	if err := r.drain(); err != nil {
		panic(r.vm.NewGoError(err))
	}

	r.logger.Debug("script call", "command", string(command), "args", len(args))
	value, err := r.client.Call(r.ctx, command, args)
	if err != nil {
		r.throw(err)
	}
	return r.toJS(value)
}

func (r *Runner) jsCallAsync(call goja.FunctionCall) goja.Value {
	command, args := r.commandArgs(call)

	promise, resolve, reject := r.vm.NewPromise()
	ac := &asyncCall{
		command: command,
		args:    args,
		resolve: func(v any) { resolve(v) },
		reject:  func(v any) { reject(v) },
	}
	r.queue = append(r.queue, ac)
	if r.inflight == nil {
		r.startNext()
	}
	return r.vm.ToValue(promise)
}

// startNext issues the head of the queue.
func (r *Runner) startNext() {
	if len(r.queue) == 0 {
		return
	}
	ac := r.queue[0]
	r.queue = r.queue[1:]
	r.logger.Debug("script call async", "command", string(ac.command), "args", len(ac.args))
	ac.future = r.client.Go(r.ctx, ac.command, ac.args)
	r.inflight = ac
}

// drain settles cooperative calls in order until none remain. Promise
// reactions may queue further calls; those are settled too.
func (r *Runner) drain() error {
	for r.inflight != nil {
		ac := r.inflight
		value, err := ac.future.Await(r.ctx)
		if err != nil && r.ctx.Err() != nil {
			return r.ctx.Err()
		}
		r.inflight = nil
		r.startNext()

		switch {
		case err == nil:
			ac.resolve(r.toJS(value))
		case channel.IsRemoteError(err):
			ac.reject(r.vm.NewGoError(err))
		default:
			r.fatal = err
			ac.reject(r.vm.NewGoError(err))
			return err
		}
	}
	return nil
}

func (r *Runner) abandonQueue() {
	r.queue = nil
	r.inflight = nil
}

// throw raises err inside the script. Anything but a command error also
// fails the surrounding Run.
func (r *Runner) throw(err error) {
	if !channel.IsRemoteError(err) {
		r.fatal = err
	}
	panic(r.vm.NewGoError(err))
}

func (r *Runner) commandArgs(call goja.FunctionCall) (schema.Identifier, []schema.Value) {
	name := call.Argument(0).String()
	command, err := schema.ParseIdentifier(name)
	if err != nil {
		panic(r.vm.NewTypeError("invalid command name %q", name))
	}

	var raw []any
	if arr := call.Argument(1); !goja.IsUndefined(arr) && !goja.IsNull(arr) {
		exported, ok := arr.Export().([]any)
		if !ok {
			panic(r.vm.NewTypeError("%s: arguments must be an array", name))
		}
		raw = exported
	}

	// Omitted trailing arguments are left for the server's defaults.
	for len(raw) > 0 && raw[len(raw)-1] == nil {
		raw = raw[:len(raw)-1]
	}

	args := make([]schema.Value, len(raw))
	for i, in := range raw {
		v, err := fromJS(in)
		if err != nil {
			panic(r.vm.NewTypeError("%s: argument %d: %v", name, i, err))
		}
		args[i] = v
	}
	return command, args
}

// fromJS converts an exported script value. Integral numbers become
// integers so they satisfy integer parameters; float parameters accept
// them too.
func fromJS(in any) (schema.Value, error) {
	switch v := in.(type) {
	case float64:
		if schema.IntegralFloat(v) {
			return schema.IntegerValue(int64(v)), nil
		}
		return schema.FloatValue(float32(v)), nil
	case []any:
		out := make(schema.ListValue, len(v))
		for i, elem := range v {
			val, err := fromJS(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = val
		}
		return out, nil
	default:
		return schema.ValueOf(in)
	}
}

func (r *Runner) toJS(v schema.Value) goja.Value {
	if v == nil {
		return goja.Undefined()
	}
	if _, ok := v.(schema.UnitValue); ok {
		return goja.Undefined()
	}
	return r.vm.ToValue(schema.Native(v))
}

func (r *Runner) jsPrint(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = arg.String()
	}
	r.output(strings.Join(parts, " "))
	return goja.Undefined()
}

func (r *Runner) jsSleep(call goja.FunctionCall) goja.Value {
	ms := call.Argument(0).ToInteger()
	if ms <= 0 {
		return goja.Undefined()
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
	case <-r.ctx.Done():
		panic(r.vm.NewGoError(r.ctx.Err()))
	}
	return goja.Undefined()
}
