package stencil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator(policy UnresolvedPolicy) *Evaluator {
	cfg := testConfig()
	cfg.UnresolvedPolicy = policy
	return NewEvaluator(cfg, NewFunctionRegistry(), NewNopLogger())
}

func evalText(t *testing.T, e *Evaluator, env *VariableEnvironment, text string) EvalResult {
	t.Helper()
	tokens := ExtractTokens(text, "ns")
	require.Len(t, tokens, 1)
	return e.EvaluateToken(tokens[0], env, nil)
}

func TestEvaluatePaths(t *testing.T) {
	e := newTestEvaluator(UnresolvedBlank)
	env := NewVariableEnvironment(testData(), nil)

	tests := []struct {
		text   string
		status ResultStatus
		want   string
	}{
		{"${Name}", StatusResolved, "Ada"},
		{"${Customer.Address.City:upper}", StatusResolved, "BERLIN"},
		{"${Items[0].Qty:N2}", StatusResolved, "1.00"},
		{"${Items[9].Title}", StatusOutOfRange, ""},
		{"${Items[-1].Title}", StatusOutOfRange, ""},
		{"${Nobody}", StatusUnresolved, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := evalText(t, e, env, tt.text)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.want, res.Text)
		})
	}
}

func TestEvaluateOutOfRangeCarriesSentinel(t *testing.T) {
	e := newTestEvaluator(UnresolvedBlank)
	env := NewVariableEnvironment(testData(), nil)

	res := evalText(t, e, env, "${Items[5].Title}")
	assert.Equal(t, StatusOutOfRange, res.Status)
	assert.ErrorIs(t, res.Err, ErrOutOfRange)
}

func TestUnresolvedPolicy(t *testing.T) {
	env := NewVariableEnvironment(testData(), nil)

	blank := newTestEvaluator(UnresolvedBlank)
	assert.Equal(t, "", evalText(t, blank, env, "${Nobody}").Text)

	literal := newTestEvaluator(UnresolvedLiteral)
	res := evalText(t, literal, env, "${Nobody}")
	assert.Equal(t, StatusUnresolved, res.Status)
	assert.Equal(t, "${Nobody}", res.Text)
}

func TestEvaluateExpressions(t *testing.T) {
	e := newTestEvaluator(UnresolvedBlank)
	env := NewVariableEnvironment(TemplateData{
		"Price":  10,
		"Rate":   0.5,
		"Active": true,
		"Name":   "Ada",
		"Items":  testItems(3),
		"Order":  map[string]any{"Lines": []any{map[string]any{"Qty": 4}}},
	}, nil)

	tests := []struct {
		text   string
		status ResultStatus
		want   string
	}{
		{"${Price * 2}", StatusResolved, "20"},
		{"${Price * Rate}", StatusResolved, "5"},
		{"${Price * 1.5:N2}", StatusResolved, "15.00"},
		{`${Active ? "on" : "off"}`, StatusResolved, "on"},
		{`${Name + "!"}`, StatusResolved, "Ada!"},
		{"${Items[1].Qty + Items[2].Qty}", StatusResolved, "5"},
		{"${Order.Lines[0].Qty * 2}", StatusResolved, "8"},
		{"${len(Items)}", StatusResolved, "3"},
		{`${Nobody ?? "n/a"}`, StatusResolved, "n/a"},
		{"${Items[7].Qty * 2}", StatusOutOfRange, ""},
		{"${Items[-1].Qty * 2}", StatusOutOfRange, ""},
		{`${Items[-1].Title + "x"}`, StatusOutOfRange, ""},
		{"${Nobody + 1}", StatusUnresolved, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := evalText(t, e, env, tt.text)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.want, res.Text)
		})
	}
}

func TestEvaluateExpressionSyntaxErrorKeepsText(t *testing.T) {
	e := newTestEvaluator(UnresolvedBlank)
	env := NewVariableEnvironment(TemplateData{"Price": 1}, nil)

	res := evalText(t, e, env, "${Price * }")
	assert.Equal(t, StatusKeep, res.Status)
	assert.Equal(t, "${Price * }", res.Text)
	assert.True(t, IsParseError(res.Err))
}

func TestEvaluateExpressionThroughWindow(t *testing.T) {
	e := newTestEvaluator(UnresolvedBlank)
	env := NewVariableEnvironment(TemplateData{"Items": testItems(5)}, nil).
		WithWindows(map[string]RepeatWindow{"Items": {Offset: 3, PageSize: 3}})

	assert.Equal(t, "2", evalText(t, e, env, "${len(Items)}").Text)
	assert.Equal(t, "D!", evalText(t, e, env, `${Items[0].Title + "!"}`).Text)
	assert.Equal(t, StatusOutOfRange, evalText(t, e, env, `${Items[2].Title + "!"}`).Status)
}

func TestExpressionProgramsAreCached(t *testing.T) {
	e := newTestEvaluator(UnresolvedBlank)
	env := NewVariableEnvironment(TemplateData{"A": 1}, nil)

	evalText(t, e, env, "${A + 1}")
	evalText(t, e, env, "${A + 1}")
	evalText(t, e, env, "${A + 2}")
	assert.Equal(t, 2, e.programs.Size())

	// a cached program must not capture the environment it was compiled with
	other := NewVariableEnvironment(TemplateData{"A": 41}, nil)
	assert.Equal(t, "42", evalText(t, e, other, "${A + 1}").Text)
}

func TestEvaluateLiteralToken(t *testing.T) {
	e := newTestEvaluator(UnresolvedBlank)
	env := NewVariableEnvironment(nil, nil)

	res := evalText(t, e, env, "${Broken")
	assert.Equal(t, StatusKeep, res.Status)
	assert.Equal(t, "${Broken", res.Text)
}

func TestEvaluateFunctions(t *testing.T) {
	e := newTestEvaluator(UnresolvedBlank)
	env := NewVariableEnvironment(testData(), nil)

	require.NoError(t, e.Functions().RegisterFunction(NewSimpleFunction("Shout", 1, 1,
		func(_ *FunctionContext, bound Binding, _ []Argument) (FunctionResult, error) {
			if bound.Status == OutOfRange {
				return OutOfRangeResult, nil
			}
			return TextResult(bound.Value.String() + "!"), nil
		})))
	require.NoError(t, e.Functions().RegisterFunction(NewSimpleFunction("Fail", 0, 0,
		func(*FunctionContext, Binding, []Argument) (FunctionResult, error) {
			return FunctionResult{}, errors.New("no data")
		})))
	require.NoError(t, e.Functions().RegisterFunction(NewSimpleFunction("Panic", 0, 0,
		func(*FunctionContext, Binding, []Argument) (FunctionResult, error) {
			panic("bad state")
		})))

	res := evalText(t, e, env, "${ns.Shout(Name)}")
	assert.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, "Ada!", res.Text)

	res = evalText(t, e, env, `${ns.shout("hi")}`)
	assert.Equal(t, "hi!", res.Text)

	res = evalText(t, e, env, "${ns.Shout(Items[8].Title)}")
	assert.Equal(t, StatusOutOfRange, res.Status)
	assert.Empty(t, res.Text)

	res = evalText(t, e, env, "${ns.Fail()}")
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "[ns.Fail: no data]", res.Text)
	assert.True(t, IsFunctionError(res.Err))

	res = evalText(t, e, env, "${ns.Panic()}")
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Text, "bad state")

	res = evalText(t, e, env, "${ns.Shout(Name, Name)}")
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Text, "at most 1")

	res = evalText(t, e, env, "${ns.Missing(Name)}")
	assert.Equal(t, StatusUnresolved, res.Status)
	assert.ErrorIs(t, res.Err, ErrUnknownFunction)
	assert.Empty(t, res.Text)
}

func TestFunctionsInsideExpressions(t *testing.T) {
	e := newTestEvaluator(UnresolvedBlank)
	env := NewVariableEnvironment(TemplateData{"Flag": true, "Name": "Ada", "Items": testItems(2)}, nil)
	require.NoError(t, e.Functions().RegisterFunction(NewSimpleFunction("Shout", 1, 1,
		func(_ *FunctionContext, bound Binding, _ []Argument) (FunctionResult, error) {
			return TextResult(bound.Value.String() + "!"), nil
		})))
	require.NoError(t, e.Functions().RegisterFunction(NewSimpleFunction("Fail", 0, 0,
		func(*FunctionContext, Binding, []Argument) (FunctionResult, error) {
			return FunctionResult{}, errors.New("no data")
		})))

	tests := []struct {
		text   string
		status ResultStatus
		want   string
	}{
		{`${Flag ? ns.Chart() : "x"}`, StatusResolved, "[Chart not implemented]"},
		{`${!Flag ? ns.Chart() : "x"}`, StatusResolved, "x"},
		{`${ns.Shout(Name) + "?"}`, StatusResolved, "Ada!?"},
		{`${ns.Shout(Items[1].Title) + ""}`, StatusResolved, "B!"},
		{`${Flag ? ns.Shout(Items[5].Title) : ""}`, StatusOutOfRange, ""},
		{`${Flag ? ns.Missing() : "x"}`, StatusUnresolved, ""},
		{`${Flag ? ns.Fail() : ""}`, StatusFailed, "[ns.Fail: no data]"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := evalText(t, e, env, tt.text)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.want, res.Text)
			if tt.status == StatusFailed {
				assert.True(t, IsFunctionError(res.Err))
			}
		})
	}
}

func TestNotImplementedFunctions(t *testing.T) {
	e := newTestEvaluator(UnresolvedBlank)
	env := NewVariableEnvironment(testData(), nil)

	assert.Equal(t, "[Chart not implemented]", evalText(t, e, env, "${ns.Chart(Items)}").Text)
	assert.Equal(t, "[Table not implemented]", evalText(t, e, env, "${ns.Table()}").Text)
}

func TestResolveArgumentLiterals(t *testing.T) {
	e := newTestEvaluator(UnresolvedBlank)
	fctx := &FunctionContext{Env: NewVariableEnvironment(testData(), nil), evaluator: e}

	b := fctx.ResolveArgument(Argument{Value: "200"})
	assert.Equal(t, Resolved, b.Status)
	assert.True(t, b.Literal)
	assert.Equal(t, 200, b.Value.Interface())

	b = fctx.ResolveArgument(Argument{Value: "false"})
	assert.Equal(t, false, b.Value.Interface())

	b = fctx.ResolveArgument(Argument{Value: "Name"})
	assert.False(t, b.Literal)
	assert.Equal(t, "Ada", b.Value.String())

	b = fctx.ResolveArgument(Argument{Value: "x.png", Quoted: true})
	assert.True(t, b.Literal)
	assert.Equal(t, "x.png", b.Value.String())

	b = fctx.ResolveArgument(Argument{Value: "logo.png"})
	assert.Equal(t, Unresolved, b.Status)
}
