package stencil

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/benjaminschreck/go-slidestencil/pkg/stencil/xml"
)

// ResultKind tells the pipeline what a function did
type ResultKind int

const (
	// ResultText substitutes Text for the call
	ResultText ResultKind = iota
	// ResultMutated means the function already changed the shape structurally
	ResultMutated
	// ResultOutOfRange asks for the owning shape to be suppressed
	ResultOutOfRange
	// ResultKeep leaves the call text in place
	ResultKeep
)

// FunctionResult is returned by a Function
type FunctionResult struct {
	Kind ResultKind
	Text string
	// Err optionally explains a Text or Keep result for logging
	Err error
}

// TextResult returns a result substituting text
func TextResult(text string) FunctionResult {
	return FunctionResult{Kind: ResultText, Text: text}
}

// OutOfRangeResult is the sentinel returned when bound data is missing for an index
var OutOfRangeResult = FunctionResult{Kind: ResultOutOfRange}

// Binding is the value the first positional argument resolved to
type Binding struct {
	Value  Value
	Status ResolveStatus
	// Literal is set when the argument was a quoted string or a literal
	Literal bool
}

// Function represents a callable function in templates
type Function interface {
	// Call executes the function for the shape in fctx
	Call(fctx *FunctionContext, bound Binding, args []Argument) (FunctionResult, error)

	// Name returns the function name without namespace
	Name() string

	// MinArgs returns the minimum number of positional arguments required
	MinArgs() int

	// MaxArgs returns the maximum number of positional arguments allowed (-1 for unlimited)
	MaxArgs() int
}

// FunctionHandler is the body of a SimpleFunctionImpl
type FunctionHandler func(fctx *FunctionContext, bound Binding, args []Argument) (FunctionResult, error)

// FunctionContext is what a function sees of the pass
type FunctionContext struct {
	Env    *VariableEnvironment
	Part   *SlidePart
	Shape  *xml.Shape
	Config *Config
	Logger *Logger
	Images *ImageSubstituter

	evaluator *Evaluator
}

// ResolveArgument resolves an argument the way a token is resolved: quoted
// strings are literals, paths go through the environment, and anything else
// is coerced as a literal value
func (c *FunctionContext) ResolveArgument(arg Argument) Binding {
	if arg.Quoted {
		return Binding{Value: Wrap(arg.Value), Status: Resolved, Literal: true}
	}
	if c.Env != nil {
		res := c.Env.Resolve(arg.Value)
		if res.Status != Unresolved {
			return Binding{Value: res.Value, Status: res.Status}
		}
	}
	if c.evaluator != nil {
		if v, ok := c.evaluator.coerceLiteral(arg.Value); ok {
			return Binding{Value: Wrap(v), Status: Resolved, Literal: true}
		}
	}
	return Binding{Status: Unresolved}
}

func (c *FunctionContext) config() *Config {
	if c.Config == nil {
		return GetGlobalConfig()
	}
	return c.Config
}

func (c *FunctionContext) logger() *Logger {
	if c.Logger == nil {
		return GetLogger()
	}
	return c.Logger
}

// FunctionRegistry manages available functions
type FunctionRegistry interface {
	// RegisterFunction adds a function to the registry
	RegisterFunction(fn Function) error

	// GetFunction retrieves a function by name, case-insensitively
	GetFunction(name string) (Function, bool)

	// ListFunctions returns all registered function names
	ListFunctions() []string
}

// DefaultFunctionRegistry is the default implementation of FunctionRegistry
type DefaultFunctionRegistry struct {
	functions map[string]Function
	mutex     sync.RWMutex
}

// NewFunctionRegistry creates a registry holding the built-in functions
func NewFunctionRegistry() *DefaultFunctionRegistry {
	r := &DefaultFunctionRegistry{
		functions: make(map[string]Function),
	}
	registerBuiltinFunctions(r)
	return r
}

func (r *DefaultFunctionRegistry) RegisterFunction(fn Function) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	name := fn.Name()
	if name == "" {
		return fmt.Errorf("function name cannot be empty")
	}
	if !isIdentifier(name) {
		return fmt.Errorf("invalid function name: %s", name)
	}

	r.functions[strings.ToLower(name)] = fn
	return nil
}

func (r *DefaultFunctionRegistry) GetFunction(name string) (Function, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	fn, exists := r.functions[strings.ToLower(name)]
	return fn, exists
}

func (r *DefaultFunctionRegistry) ListFunctions() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.functions))
	for _, fn := range r.functions {
		names = append(names, fn.Name())
	}
	sort.Strings(names)
	return names
}

// SimpleFunctionImpl provides a basic implementation of Function
type SimpleFunctionImpl struct {
	name    string
	minArgs int
	maxArgs int
	handler FunctionHandler
}

func NewSimpleFunction(name string, minArgs, maxArgs int, handler FunctionHandler) Function {
	return &SimpleFunctionImpl{
		name:    name,
		minArgs: minArgs,
		maxArgs: maxArgs,
		handler: handler,
	}
}

func (f *SimpleFunctionImpl) Call(fctx *FunctionContext, bound Binding, args []Argument) (FunctionResult, error) {
	argCount := len(positional(args))
	if argCount < f.minArgs {
		return FunctionResult{}, fmt.Errorf("function %s requires at least %d arguments, got %d", f.name, f.minArgs, argCount)
	}
	if f.maxArgs >= 0 && argCount > f.maxArgs {
		return FunctionResult{}, fmt.Errorf("function %s accepts at most %d arguments, got %d", f.name, f.maxArgs, argCount)
	}

	return f.handler(fctx, bound, args)
}

func (f *SimpleFunctionImpl) Name() string {
	return f.name
}

func (f *SimpleFunctionImpl) MinArgs() int {
	return f.minArgs
}

func (f *SimpleFunctionImpl) MaxArgs() int {
	return f.maxArgs
}

// FunctionProvider supplies custom functions to an engine
type FunctionProvider interface {
	// ProvideFunctions returns a map of function name to Function implementation
	ProvideFunctions() map[string]Function
}

// registerBuiltinFunctions registers Image and the Chart and Table stubs
func registerBuiltinFunctions(registry *DefaultFunctionRegistry) {
	registry.RegisterFunction(NewSimpleFunction("Image", 1, 1, imageFunc))
	registry.RegisterFunction(NewSimpleFunction("Chart", 0, -1, notImplementedFunc("Chart")))
	registry.RegisterFunction(NewSimpleFunction("Table", 0, -1, notImplementedFunc("Table")))
}

// notImplementedFunc returns the fixed marker rendered by data-bound charts and tables
func notImplementedFunc(name string) FunctionHandler {
	marker := fmt.Sprintf("[%s not implemented]", name)
	return func(*FunctionContext, Binding, []Argument) (FunctionResult, error) {
		return TextResult(marker), nil
	}
}
