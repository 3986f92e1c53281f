// Package tool implements the Tool Invocation Layer: a typed registry mapping tool
// names to handlers, JSON-Schema-driven argument validation, and structured result
// encoding. Grounded on internal/agent/tool_registry.go's sync.RWMutex-guarded map and
// internal/agent/errors.go's tool-error taxonomy, generalized to the pkg/schema +
// pkg/errs contracts instead of the teacher's session-coupled runtime types.
package tool

import (
	"context"
	"encoding/json"

	"github.com/nexuscore/agentkit/pkg/errs"
	"github.com/nexuscore/agentkit/pkg/schema"
)

// MaxToolNameLength bounds a registered tool's name, matching the teacher's guard
// against pathological provider-supplied tool names.
const MaxToolNameLength = 256

// MaxArgumentsSize bounds the raw argument payload size accepted by Invoke.
const MaxArgumentsSize = 10 << 20

// Handler executes a tool against validated arguments, returning a JSON-encodable
// result value or an error. args has already been normalized and schema-validated by
// the time Handler is called.
type Handler func(ctx context.Context, args any) (any, error)

// Descriptor is a ToolDescriptor: the registry's unit of registration.
type Descriptor struct {
	Name        string
	Description string
	Schema      *schema.Schema
	Handler     Handler
}

// Registry holds a set of Descriptors keyed by unique name.
type Registry struct {
	descriptors map[string]*Descriptor
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]*Descriptor)}
}

// Register adds descriptor to the registry, failing with KindValidation
// (DuplicateToolName) if the name is already registered or malformed.
func (r *Registry) Register(d Descriptor) *errs.Error {
	if d.Name == "" || len(d.Name) > MaxToolNameLength {
		return errs.New(errs.KindValidation, "tool.Register", "invalid tool name")
	}
	if _, exists := r.descriptors[d.Name]; exists {
		return errs.New(errs.KindValidation, "tool.Register", "duplicate tool name: "+d.Name)
	}
	if d.Schema == nil {
		d.Schema = schema.Object()
	}
	cp := d
	r.descriptors[d.Name] = &cp
	return nil
}

// Unregister removes a tool by name; a no-op if absent.
func (r *Registry) Unregister(name string) {
	delete(r.descriptors, name)
}

// Get returns the descriptor for name, if registered.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// Names returns every registered tool name, in no particular order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.descriptors))
	for n := range r.descriptors {
		names = append(names, n)
	}
	return names
}

// Definitions returns the JSON tool-declaration document for every registered tool,
// in the given provider flavor.
func (r *Registry) Definitions(flavor schema.Flavor) []map[string]any {
	defs := make([]map[string]any, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		defs = append(defs, schema.RenderTool(flavor, d.Name, d.Description, d.Schema))
	}
	return defs
}

// Result is a tool invocation's structured outcome: the JSON-encodable value on
// success, or the tagged error on failure. Artifact carries any non-textual side
// output (a file, an image, a blob reference) the handler produced alongside its
// primary JSON result.
type Result struct {
	Value    any
	Artifact *Artifact
	Err      *errs.Error
}

// IsError reports whether the invocation failed.
func (r Result) IsError() bool { return r.Err != nil }

// Invoke runs the named tool against a raw JSON argument payload:
//  1. look up the descriptor (UnknownTool on miss)
//  2. normalize null arguments per the schema's required-property law
//  3. validate against the schema (InvalidArguments{path, expected, found})
//  4. invoke the handler, wrapping any handler error as HandlerError{tool, cause}
func (r *Registry) Invoke(ctx context.Context, name string, argsJSON json.RawMessage) Result {
	if len(argsJSON) > MaxArgumentsSize {
		return Result{Err: errs.New(errs.KindToolCall, "tool.Invoke", "arguments exceed max size")}
	}

	d, ok := r.Get(name)
	if !ok {
		return Result{Err: errs.New(errs.KindToolCall, "tool.Invoke", "unknown tool: "+name)}
	}

	normalized, nerr := schema.NormalizeNullArgs(d.Schema, argsJSON)
	if nerr != nil {
		return Result{Err: retagToolCall(nerr)}
	}

	var args any
	if err := json.Unmarshal(normalized, &args); err != nil {
		return Result{Err: errs.New(errs.KindToolCall, "tool.Invoke", "malformed JSON arguments: "+err.Error())}
	}

	if verr := schema.Validate(d.Schema, args); verr != nil {
		return Result{Err: retagToolCall(verr)}
	}

	value, err := d.Handler(ctx, args)
	if err != nil {
		return Result{Err: errs.Wrap(errs.KindToolCall, "tool:"+name, err)}
	}
	return Result{Value: value}
}

func retagToolCall(e *errs.Error) *errs.Error {
	e.Kind = errs.KindToolCall
	return e
}

// Strategy selects how InvokeBatch schedules a set of calls.
type Strategy int

const (
	Sequential Strategy = iota
	Parallel
)

// Call pairs a tool name with its raw argument payload and an identifying CallID used
// to correlate it back to a Result in InvokeBatch's output, which preserves input
// order regardless of scheduling strategy or completion order.
type Call struct {
	CallID    string
	Name      string
	Arguments json.RawMessage
}

// InvokeBatch runs calls under the given strategy, returning one Result per Call in
// the same order as calls regardless of execution order. maxConcurrency bounds the
// number of calls in flight simultaneously when strategy is Parallel; <=0 means
// unbounded.
func (r *Registry) InvokeBatch(ctx context.Context, calls []Call, strategy Strategy, maxConcurrency int) []Result {
	results := make([]Result, len(calls))

	if strategy == Sequential {
		for i, c := range calls {
			results[i] = r.Invoke(ctx, c.Name, c.Arguments)
		}
		return results
	}

	sem := make(chan struct{}, boundedConcurrency(maxConcurrency, len(calls)))
	done := make(chan struct{})
	for i, c := range calls {
		i, c := i, c
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; done <- struct{}{} }()
			results[i] = r.Invoke(ctx, c.Name, c.Arguments)
		}()
	}
	for range calls {
		<-done
	}
	return results
}

func boundedConcurrency(maxConcurrency, n int) int {
	if maxConcurrency <= 0 || maxConcurrency > n {
		if n == 0 {
			return 1
		}
		return n
	}
	return maxConcurrency
}
