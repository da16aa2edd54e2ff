// Package query filters transactions with boolean expressions such as
//
//	category == "Groceries" && amount > 50
//	outflow && date > date("2024-03-01")
//
// Expressions are compiled once and cached.
package query

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"aspire/internal/cache"
	"aspire/internal/core"
)

const (
	maxExpressionLength = 512
	maxNodes            = 256
	defaultCacheSize    = 128
)

var ErrInvalidFilter = errors.New("invalid filter")

// Env is what an expression sees for one transaction.
type Env struct {
	Amount   float64   `expr:"amount"`
	Memo     string    `expr:"memo"`
	Account  string    `expr:"account"`
	Category string    `expr:"category"`
	Payee    string    `expr:"payee"`
	Type     string    `expr:"type"`
	Approval string    `expr:"approval"`
	Date     time.Time `expr:"date"`
	Row      int       `expr:"row"`
	Inflow   bool      `expr:"inflow"`
	Outflow  bool      `expr:"outflow"`
}

// NewEnv maps a transaction. Unparseable amounts evaluate as zero.
func NewEnv(t core.Transaction) Env {
	env := Env{
		Memo:     t.Memo,
		Account:  t.Account,
		Category: t.Category,
		Payee:    t.Payee,
		Type:     string(t.Type),
		Approval: string(t.Approval),
		Date:     t.Date,
		Inflow:   t.Type == core.Inflow,
		Outflow:  t.Type == core.Outflow,
	}
	if m, err := core.ParseAmount(t.Amount); err == nil {
		env.Amount = m.Dollars()
	}
	if t.RowNum != nil {
		env.Row = *t.RowNum
	}
	return env
}

// Compiler compiles and caches filter programs. It is safe for concurrent use.
type Compiler struct {
	programs *cache.LRUCache[*vm.Program]
}

func NewCompiler(cacheSize int) *Compiler {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	return &Compiler{programs: cache.NewLRUCache[*vm.Program](cacheSize, 0)}
}

// Filter is a compiled expression.
type Filter struct {
	src     string
	program *vm.Program
}

// Compile checks src against Env and requires a boolean result. date()
// literals are read in UTC like sheet dates.
func (c *Compiler) Compile(src string) (*Filter, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidFilter)
	}
	if len(src) > maxExpressionLength {
		return nil, fmt.Errorf("%w: expression longer than %d characters", ErrInvalidFilter, maxExpressionLength)
	}
	if p, ok := c.programs.Get(src); ok {
		return &Filter{src: src, program: p}, nil
	}
	p, err := expr.Compile(src, expr.Env(Env{}), expr.AsBool(), expr.MaxNodes(maxNodes), expr.Timezone("UTC"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	c.programs.Set(src, p)
	return &Filter{src: src, program: p}, nil
}

// Match evaluates the filter for one transaction.
func (f *Filter) Match(t core.Transaction) (bool, error) {
	out, err := expr.Run(f.program, NewEnv(t))
	if err != nil {
		return false, fmt.Errorf("%w: evaluate %q: %v", ErrInvalidFilter, f.src, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Apply keeps the transactions the filter matches, in order.
func (f *Filter) Apply(ts core.Transactions) (core.Transactions, error) {
	out := core.Transactions{Transactions: make([]core.Transaction, 0, len(ts.Transactions))}
	for _, t := range ts.Transactions {
		ok, err := f.Match(t)
		if err != nil {
			return core.Transactions{}, err
		}
		if ok {
			out.Transactions = append(out.Transactions, t)
		}
	}
	return out, nil
}
