package stencil

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"
)

// ResultStatus classifies the outcome of evaluating one token
type ResultStatus int

const (
	// StatusResolved means Text holds the rendered value
	StatusResolved ResultStatus = iota
	// StatusUnresolved means a reference was missing; Text follows the unresolved policy
	StatusUnresolved
	// StatusOutOfRange means an indexed access ran past the available data.
	// It is a signal for suppression, not an error.
	StatusOutOfRange
	// StatusFailed means a function failed; Text holds a diagnostic
	StatusFailed
	// StatusMutated means a function changed the shape structurally; Text is empty
	StatusMutated
	// StatusKeep means the token text stays as it is
	StatusKeep
)

func (s ResultStatus) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusUnresolved:
		return "unresolved"
	case StatusOutOfRange:
		return "out of range"
	case StatusFailed:
		return "failed"
	case StatusMutated:
		return "mutated"
	case StatusKeep:
		return "keep"
	default:
		return "unknown"
	}
}

// EvalResult is the rendered outcome of a token
type EvalResult struct {
	Text   string
	Status ResultStatus
	Value  Value
	// Err carries the cause for failed, kept or unresolved results. It is
	// informational and never returned to the caller of a processing pass.
	Err error
}

const (
	// resolverName is the function the expression engine calls to resolve names
	resolverName = "__resolve"
	// callerName is the function namespaced calls inside expressions are routed to
	callerName = "__call"
)

// Evaluator resolves tokens against a VariableEnvironment
type Evaluator struct {
	config    *Config
	functions FunctionRegistry
	programs  *ProgramCache
	formatter *Formatter
	logger    *Logger
}

// NewEvaluator creates an evaluator. A nil registry gets the built-in functions.
func NewEvaluator(config *Config, functions FunctionRegistry, logger *Logger) *Evaluator {
	if config == nil {
		config = GetGlobalConfig()
	}
	if functions == nil {
		functions = NewFunctionRegistry()
	}
	if logger == nil {
		logger = GetLogger()
	}
	return &Evaluator{
		config:    config,
		functions: functions,
		programs: NewProgramCache(CacheConfig{
			MaxSize: config.ProgramCacheSize,
			TTL:     config.ProgramCacheTTL,
		}),
		formatter: NewFormatter(config.Locale),
		logger:    logger,
	}
}

// Functions returns the function registry used for ns.* calls
func (e *Evaluator) Functions() FunctionRegistry {
	return e.functions
}

// EvaluateToken resolves tok. It never fails: problems are reported through
// the result status and rendered according to the unresolved policy.
func (e *Evaluator) EvaluateToken(tok Token, env *VariableEnvironment, fctx *FunctionContext) EvalResult {
	var result EvalResult
	switch tok.Kind {
	case TokenLiteral:
		result = EvalResult{Status: StatusKeep, Err: tok.Err}
	case TokenPlainVariable, TokenPropertyPath, TokenArrayIndex:
		result = e.evalPath(tok, env)
	case TokenFunctionCall:
		result = e.evalFunction(tok, e.functionContext(fctx, env))
	case TokenExpression:
		result = e.evalExpression(tok, env, e.functionContext(fctx, env))
	}

	switch result.Status {
	case StatusKeep:
		result.Text = tok.Raw
	case StatusUnresolved:
		result.Text = e.unresolvedText(tok)
	case StatusOutOfRange, StatusMutated:
		result.Text = ""
	}

	if e.logger.IsDebugMode() {
		e.logger.WithFields(Fields{
			"token":  tok.Raw,
			"kind":   tok.Kind.String(),
			"status": result.Status.String(),
		}).Debug("evaluated token")
	}
	return result
}

func (e *Evaluator) functionContext(fctx *FunctionContext, env *VariableEnvironment) *FunctionContext {
	if fctx == nil {
		fctx = &FunctionContext{}
	}
	if fctx.Env == nil {
		fctx.Env = env
	}
	fctx.evaluator = e
	return fctx
}

func (e *Evaluator) unresolvedText(tok Token) string {
	if e.config.UnresolvedPolicy == UnresolvedLiteral {
		return tok.Raw
	}
	return ""
}

// evalPath handles plain, dotted and indexed references
func (e *Evaluator) evalPath(tok Token, env *VariableEnvironment) EvalResult {
	res := env.Resolve(tok.Expr)
	switch res.Status {
	case Resolved:
		return EvalResult{Text: e.formatter.Format(res.Value, tok.Format), Status: StatusResolved, Value: res.Value}
	case OutOfRange:
		return EvalResult{Status: StatusOutOfRange, Err: fmt.Errorf("%w: %s", ErrOutOfRange, tok.Expr)}
	default:
		return EvalResult{Status: StatusUnresolved, Err: fmt.Errorf("unresolved reference %q", tok.Expr)}
	}
}

// evalFunction dispatches a namespaced call to the registry
func (e *Evaluator) evalFunction(tok Token, fctx *FunctionContext) (result EvalResult) {
	fn, ok := e.functions.GetFunction(tok.Function)
	if !ok {
		e.logger.WithField("function", tok.QualifiedName()).Warn("unknown function")
		return EvalResult{Status: StatusUnresolved, Err: fmt.Errorf("%w: %s", ErrUnknownFunction, tok.QualifiedName())}
	}

	defer func() {
		if r := recover(); r != nil {
			cause := RecoverError(r)
			err := NewFunctionError(tok.QualifiedName(), argStrings(tok.Args), cause)
			result = EvalResult{Text: diagnostic(tok, cause), Status: StatusFailed, Err: err}
		}
	}()

	bound := Binding{Status: Unresolved}
	if pos := positional(tok.Args); len(pos) > 0 {
		bound = fctx.ResolveArgument(pos[0])
	}

	out, err := fn.Call(fctx, bound, tok.Args)
	if err != nil {
		ferr := NewFunctionError(tok.QualifiedName(), argStrings(tok.Args), err)
		e.logger.WithField("function", tok.QualifiedName()).Warn("function failed: %v", err)
		return EvalResult{Text: diagnostic(tok, err), Status: StatusFailed, Err: ferr}
	}

	switch out.Kind {
	case ResultOutOfRange:
		return EvalResult{Status: StatusOutOfRange, Err: fmt.Errorf("%w: %s", ErrOutOfRange, tok.Expr)}
	case ResultMutated:
		return EvalResult{Status: StatusMutated}
	case ResultKeep:
		return EvalResult{Status: StatusKeep, Err: out.Err}
	default:
		return EvalResult{Text: out.Text, Status: StatusResolved, Value: Wrap(out.Text), Err: out.Err}
	}
}

func diagnostic(tok Token, err error) string {
	return fmt.Sprintf("[%s: %v]", tok.QualifiedName(), err)
}

func argStrings(args []Argument) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = a.Raw
	}
	return out
}

// evalExpression hands the token to the expression engine. Names are routed
// back through env, and ns.* calls through the registry, by the hooks
// installed at compile time.
func (e *Evaluator) evalExpression(tok Token, env *VariableEnvironment, fctx *FunctionContext) EvalResult {
	program, err := e.programs.GetOrCompile(tok.Expr, func() (*vm.Program, error) {
		return compileExpression(tok.Expr, e.config.FunctionNamespace)
	})
	if err != nil {
		return EvalResult{Status: StatusKeep, Err: NewParseError(err.Error(), tok.Raw, tok.Start)}
	}

	hook := &resolverHook{env: env, fctx: fctx, evaluator: e}
	out, err := expr.Run(program, map[string]any{resolverName: hook.resolve, callerName: hook.call})
	if hook.failed != nil {
		return EvalResult{Text: hook.diagnostic, Status: StatusFailed, Err: hook.failed}
	}
	if hook.outOfRange {
		return EvalResult{Status: StatusOutOfRange, Err: fmt.Errorf("%w: %s", ErrOutOfRange, tok.Expr)}
	}
	if err != nil {
		return EvalResult{Status: StatusUnresolved, Err: NewEvaluationError(tok.Expr, err)}
	}
	if out == nil && hook.unresolved {
		return EvalResult{Status: StatusUnresolved, Err: fmt.Errorf("unresolved reference in %q", tok.Expr)}
	}
	if out == nil && hook.mutated {
		return EvalResult{Status: StatusMutated}
	}
	v := Wrap(out)
	return EvalResult{Text: e.formatter.Format(v, tok.Format), Status: StatusResolved, Value: v}
}

// coerceLiteral converts an unquoted literal such as 200, 1.5 or true
func (e *Evaluator) coerceLiteral(text string) (any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	program, err := e.programs.GetOrCompile("literal:"+text, func() (*vm.Program, error) {
		return expr.Compile(text, expr.Env(map[string]any{}))
	})
	if err != nil {
		return nil, false
	}
	out, err := expr.Run(program, map[string]any{})
	if err != nil {
		return nil, false
	}
	switch out.(type) {
	case int, float64, bool, string:
		return out, true
	}
	return nil, false
}

// compileExpression compiles text with every free name rewritten into a call
// of the resolver hook and every namespace.Name(...) call into a call of the
// registry hook
func compileExpression(text, namespace string) (*vm.Program, error) {
	return expr.Compile(text,
		expr.Env(map[string]any{
			resolverName: func(string) any { return nil },
			callerName:   func(string, ...any) any { return nil },
		}),
		expr.AllowUndefinedVariables(),
		expr.Patch(resolverPatcher{namespace: namespace}),
	)
}

// resolverPatcher rewrites identifiers and constant member chains into
// __resolve("path") calls. ast.Walk visits children first, so chains collapse
// bottom-up: Items -> Items[0] -> Items[0].Title.
type resolverPatcher struct {
	namespace string
}

func (p resolverPatcher) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if n.Value == resolverName {
			return
		}
		ast.Patch(node, resolveCall(n.Value))
	case *ast.MemberNode:
		base, ok := resolvedPath(n.Node)
		if !ok {
			return
		}
		switch p := n.Property.(type) {
		case *ast.StringNode:
			if isIdentifier(p.Value) {
				ast.Patch(node, resolveCall(base+"."+p.Value))
			}
		case *ast.IntegerNode:
			ast.Patch(node, resolveCall(fmt.Sprintf("%s[%d]", base, p.Value)))
		case *ast.UnaryNode:
			// Items[-1] resolves out of range instead of counting from the end
			if lit, ok := p.Node.(*ast.IntegerNode); ok && p.Operator == "-" {
				ast.Patch(node, resolveCall(fmt.Sprintf("%s[%d]", base, -lit.Value)))
			}
		}
	case *ast.CallNode:
		name, ok := resolvedPath(n.Callee)
		if !ok {
			return
		}
		if fn, found := strings.CutPrefix(name, p.namespace+"."); found && p.namespace != "" && isIdentifier(fn) {
			args := append([]ast.Node{&ast.StringNode{Value: fn}}, n.Arguments...)
			ast.Patch(node, &ast.CallNode{Callee: &ast.IdentifierNode{Value: callerName}, Arguments: args})
			return
		}
		// a called name is a function, not a variable
		if isIdentifier(name) {
			n.Callee = &ast.IdentifierNode{Value: name}
		}
	}
}

func resolveCall(path string) *ast.CallNode {
	return &ast.CallNode{
		Callee:    &ast.IdentifierNode{Value: resolverName},
		Arguments: []ast.Node{&ast.StringNode{Value: path}},
	}
}

// resolvedPath returns the path of a node produced by resolveCall
func resolvedPath(node ast.Node) (string, bool) {
	call, ok := node.(*ast.CallNode)
	if !ok || len(call.Arguments) != 1 {
		return "", false
	}
	callee, ok := call.Callee.(*ast.IdentifierNode)
	if !ok || callee.Value != resolverName {
		return "", false
	}
	arg, ok := call.Arguments[0].(*ast.StringNode)
	if !ok {
		return "", false
	}
	return arg.Value, true
}

// resolverHook answers __resolve and __call for one evaluation
type resolverHook struct {
	env        *VariableEnvironment
	fctx       *FunctionContext
	evaluator  *Evaluator
	outOfRange bool
	unresolved bool
	mutated    bool
	failed     error
	diagnostic string
}

func (h *resolverHook) resolve(path string) any {
	res := h.env.Resolve(path)
	switch res.Status {
	case OutOfRange:
		h.outOfRange = true
		return nil
	case Unresolved:
		h.unresolved = true
		return nil
	}
	if w, ok := res.Value.Interface().(windowList); ok {
		return w.items()
	}
	return res.Value.Interface()
}

// call runs a registry function with already evaluated arguments. The first
// argument is bound the way a token's first argument is.
func (h *resolverHook) call(name string, args ...any) (out any) {
	fn, ok := h.evaluator.functions.GetFunction(name)
	if !ok {
		h.unresolved = true
		return nil
	}
	qualified := h.evaluator.config.FunctionNamespace + "." + fn.Name()

	arguments := make([]Argument, len(args))
	for i, a := range args {
		text := Wrap(a).String()
		arguments[i] = Argument{Raw: text, Value: text}
	}
	bound := Binding{Status: Unresolved}
	if len(args) > 0 && args[0] != nil {
		bound = Binding{Value: Wrap(args[0]), Status: Resolved}
	}

	fail := func(cause error) {
		h.failed = NewFunctionError(qualified, argStrings(arguments), cause)
		h.diagnostic = fmt.Sprintf("[%s: %v]", qualified, cause)
	}
	defer func() {
		if r := recover(); r != nil {
			fail(RecoverError(r))
			out = nil
		}
	}()

	res, err := fn.Call(h.fctx, bound, arguments)
	if err != nil {
		fail(err)
		return nil
	}
	switch res.Kind {
	case ResultOutOfRange:
		h.outOfRange = true
		return nil
	case ResultMutated:
		h.mutated = true
		return nil
	case ResultKeep:
		h.unresolved = true
		return nil
	}
	return res.Text
}
