package graph

import (
	"context"
	"errors"
	"time"

	"github.com/graphql-go/graphql"

	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/services"
)

// Status strings returned by deleteExpense.
const (
	StatusDeleted  = "Expense deleted successfully"
	StatusNotFound = "Expense not found"
)

var errExpenseNotFound = errors.New(StatusNotFound)

// ExpenseService is what the resolvers need from the service layer.
type ExpenseService interface {
	GetExpense(ctx context.Context, id int64) (*core.Expense, error)
	ListExpenses(ctx context.Context, limit, offset *int) ([]core.Expense, error)
	SearchExpenses(ctx context.Context, description, category *string, limit, offset *int) ([]core.Expense, error)
	CreateExpense(ctx context.Context, amount float64, description, date, category string) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, in services.UpdateInput) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
}

// Resolver is the root resolver; dependencies are injected here.
type Resolver struct {
	Service ExpenseService
}

func (r *Resolver) getExpense(p graphql.ResolveParams) (interface{}, error) {
	id, err := idArg(p.Args)
	if err != nil {
		return nil, err
	}
	e, err := r.Service.GetExpense(p.Context, id)
	if err != nil || e == nil {
		return nil, err
	}
	return toExpenseType(*e), nil
}

func (r *Resolver) listExpenses(p graphql.ResolveParams) (interface{}, error) {
	exps, err := r.Service.ListExpenses(p.Context, intArg(p.Args, "limit"), intArg(p.Args, "offset"))
	if err != nil {
		return nil, err
	}
	return toExpenseTypes(exps), nil
}

func (r *Resolver) searchExpenses(p graphql.ResolveParams) (interface{}, error) {
	exps, err := r.Service.SearchExpenses(p.Context,
		stringArg(p.Args, "description"),
		stringArg(p.Args, "category"),
		intArg(p.Args, "limit"),
		intArg(p.Args, "offset"))
	if err != nil {
		return nil, err
	}
	return toExpenseTypes(exps), nil
}

func (r *Resolver) createExpense(p graphql.ResolveParams) (interface{}, error) {
	amount, _ := p.Args["amount"].(float64)
	description, _ := p.Args["description"].(string)
	date, _ := p.Args["date"].(string)
	category, _ := p.Args["category"].(string)

	e, err := r.Service.CreateExpense(p.Context, amount, description, date, category)
	if err != nil {
		return nil, err
	}
	return toExpenseType(e), nil
}

func (r *Resolver) updateExpense(p graphql.ResolveParams) (interface{}, error) {
	id, err := idArg(p.Args)
	if err != nil {
		return nil, err
	}
	e, err := r.Service.UpdateExpense(p.Context, id, services.UpdateInput{
		Amount:      floatArg(p.Args, "amount"),
		Description: stringArg(p.Args, "description"),
		Date:        stringArg(p.Args, "date"),
		Category:    stringArg(p.Args, "category"),
	})
	if errors.Is(err, core.ErrNotFound) {
		return nil, errExpenseNotFound
	}
	if err != nil {
		return nil, err
	}
	return toExpenseType(e), nil
}

func (r *Resolver) deleteExpense(p graphql.ResolveParams) (interface{}, error) {
	id, err := idArg(p.Args)
	if err != nil {
		return nil, err
	}
	err = r.Service.DeleteExpense(p.Context, id)
	if errors.Is(err, core.ErrNotFound) {
		return StatusNotFound, nil
	}
	if err != nil {
		return nil, err
	}
	return StatusDeleted, nil
}

// observed records duration and logs failures of one resolver.
func observed(operation string, fn graphql.FieldResolveFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		start := time.Now()
		res, err := fn(p)
		elapsed := time.Since(start)
		metrics.ObserveResolver(operation, elapsed, err != nil)

		if err != nil {
			logger := log.FromContext(p.Context).WithComponent(log.ComponentGraphQL)
			if core.IsValidationError(err) || errors.Is(err, errExpenseNotFound) {
				logger.WarnContext(p.Context, "Resolver rejected input", log.FieldOperation, operation, log.FieldError, err)
			} else {
				logger.ErrorContext(p.Context, "Resolver failed", log.FieldOperation, operation, log.FieldError, err)
			}
		}
		return res, err
	}
}

// intArg returns nil for both absent and explicit null arguments.
func intArg(args map[string]interface{}, name string) *int {
	v, ok := args[name].(int)
	if !ok {
		return nil
	}
	return &v
}

// errInvalidID covers ids graphql-go could not coerce, such as literals outside
// the 32-bit Int range, which reach the resolver as a missing argument.
var errInvalidID = &core.ValidationError{Field: "id", Msg: "missing or not a 32-bit integer"}

func idArg(args map[string]interface{}) (int64, error) {
	v, ok := args["id"].(int)
	if !ok {
		return 0, errInvalidID
	}
	return int64(v), nil
}

func floatArg(args map[string]interface{}, name string) *float64 {
	v, ok := args[name].(float64)
	if !ok {
		return nil
	}
	return &v
}

func stringArg(args map[string]interface{}, name string) *string {
	v, ok := args[name].(string)
	if !ok {
		return nil
	}
	return &v
}
