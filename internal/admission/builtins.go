package admission

import (
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/types"

	"github.com/josephgoksu/genesis/internal/llm"
)

// Built-in function names available to admission policies.
const (
	BuiltinModelKnown      = "genesis.model_known"
	BuiltinModelInputPrice = "genesis.model_input_price"
	BuiltinContextWindow   = "genesis.context_window"
)

var registerOnce sync.Once

// RegisterBuiltins makes the genesis built-ins known to OPA. It registers
// globally so the Rego test runner can compile policies that use them.
func RegisterBuiltins() {
	registerOnce.Do(func() {
		// genesis.model_known(model) -> boolean
		rego.RegisterBuiltin1(&rego.Function{
			Name:    BuiltinModelKnown,
			Decl:    types.NewFunction(types.Args(types.S), types.B),
			Memoize: true,
		}, func(_ rego.BuiltinContext, a *ast.Term) (*ast.Term, error) {
			model, ok := a.Value.(ast.String)
			if !ok {
				return ast.BooleanTerm(false), nil
			}
			return ast.BooleanTerm(llm.GetModel(string(model)) != nil), nil
		})

		// genesis.model_input_price(model) -> number, $ per 1M input tokens or -1
		rego.RegisterBuiltin1(&rego.Function{
			Name:    BuiltinModelInputPrice,
			Decl:    types.NewFunction(types.Args(types.S), types.N),
			Memoize: true,
		}, func(_ rego.BuiltinContext, a *ast.Term) (*ast.Term, error) {
			model, ok := a.Value.(ast.String)
			if !ok {
				return ast.IntNumberTerm(-1), nil
			}
			m := llm.GetModel(string(model))
			if m == nil {
				return ast.IntNumberTerm(-1), nil
			}
			return ast.FloatNumberTerm(m.InputPer1M), nil
		})

		// genesis.context_window(model) -> number
		rego.RegisterBuiltin1(&rego.Function{
			Name:    BuiltinContextWindow,
			Decl:    types.NewFunction(types.Args(types.S), types.N),
			Memoize: true,
		}, func(_ rego.BuiltinContext, a *ast.Term) (*ast.Term, error) {
			model, ok := a.Value.(ast.String)
			if !ok {
				return ast.IntNumberTerm(llm.DefaultContextWindow), nil
			}
			return ast.IntNumberTerm(llm.ContextWindowFor(string(model))), nil
		})
	})
}

// BuiltinNames lists the genesis built-ins.
func BuiltinNames() []string {
	return []string{BuiltinModelKnown, BuiltinModelInputPrice, BuiltinContextWindow}
}
