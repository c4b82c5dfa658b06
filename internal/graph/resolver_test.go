package graph

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/core"
	"expenses/internal/services"
)

type fakeService struct {
	expenses map[int64]core.Expense
	nextID   int64

	lastLimit, lastOffset *int
	lastDesc, lastCat     *string
	lastUpdate            services.UpdateInput
	err                   error
}

func newFakeService() *fakeService {
	return &fakeService{expenses: map[int64]core.Expense{}}
}

func (f *fakeService) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.expenses[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeService) ListExpenses(ctx context.Context, limit, offset *int) ([]core.Expense, error) {
	return f.SearchExpenses(ctx, nil, nil, limit, offset)
}

func (f *fakeService) SearchExpenses(ctx context.Context, description, category *string, limit, offset *int) ([]core.Expense, error) {
	f.lastDesc, f.lastCat, f.lastLimit, f.lastOffset = description, category, limit, offset
	if f.err != nil {
		return nil, f.err
	}
	out := []core.Expense{}
	for id := int64(1); id <= f.nextID; id++ {
		if e, ok := f.expenses[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeService) CreateExpense(ctx context.Context, amount float64, description, date, category string) (core.Expense, error) {
	e, err := core.NewExpense(amount, description, date, category)
	if err != nil {
		return core.Expense{}, err
	}
	f.nextID++
	e.ID = f.nextID
	f.expenses[e.ID] = e
	return e, nil
}

func (f *fakeService) UpdateExpense(ctx context.Context, id int64, in services.UpdateInput) (core.Expense, error) {
	f.lastUpdate = in
	e, ok := f.expenses[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	if in.Amount != nil {
		e.Amount = *in.Amount
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	f.expenses[id] = e
	return e, nil
}

func (f *fakeService) DeleteExpense(ctx context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.expenses[id]; !ok {
		return core.ErrNotFound
	}
	delete(f.expenses, id)
	return nil
}

func run(t *testing.T, svc ExpenseService, query string) *graphql.Result {
	t.Helper()
	schema, err := NewSchema(&Resolver{Service: svc})
	require.NoError(t, err)
	return graphql.Do(graphql.Params{
		Schema:        schema,
		RequestString: query,
		Context:       context.Background(),
	})
}

// decode round-trips the result data through JSON the way the HTTP handler would.
func decode(t *testing.T, res *graphql.Result, out interface{}) {
	t.Helper()
	require.Empty(t, res.Errors)
	raw, err := json.Marshal(res.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestCreateThenGet(t *testing.T) {
	svc := newFakeService()

	var created struct {
		CreateExpense ExpenseType `json:"createExpense"`
	}
	decode(t, run(t, svc, `mutation {
		createExpense(amount: 12.5, description: "Lunch", date: "2024-03-01", category: "2") {
			id amount description date category
		}
	}`), &created)

	assert.Equal(t, ExpenseType{ID: 1, Amount: 12.5, Description: "Lunch", Date: "2024-03-01", Category: "2"}, created.CreateExpense)

	var got struct {
		GetExpense *ExpenseType `json:"getExpense"`
	}
	decode(t, run(t, svc, `{ getExpense(id: 1) { id description category } }`), &got)
	require.NotNil(t, got.GetExpense)
	assert.Equal(t, "Lunch", got.GetExpense.Description)
	assert.Equal(t, "2", got.GetExpense.Category)
}

func TestGetMissingIsNull(t *testing.T) {
	res := run(t, newFakeService(), `{ getExpense(id: 999) { id } }`)

	var got struct {
		GetExpense *ExpenseType `json:"getExpense"`
	}
	decode(t, res, &got)
	assert.Nil(t, got.GetExpense)
}

func TestCreateValidationError(t *testing.T) {
	svc := newFakeService()

	res := run(t, svc, `mutation {
		createExpense(amount: 1, description: "x", date: "01/03/2024", category: "2") { id }
	}`)

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "date")
	assert.Empty(t, svc.expenses)
}

func TestListDefaultsPagination(t *testing.T) {
	svc := newFakeService()

	var got struct {
		ListExpenses []ExpenseType `json:"listExpenses"`
	}
	decode(t, run(t, svc, `{ listExpenses { id } }`), &got)

	assert.Empty(t, got.ListExpenses)
	require.NotNil(t, svc.lastLimit)
	require.NotNil(t, svc.lastOffset)
	assert.Equal(t, 10, *svc.lastLimit)
	assert.Equal(t, 0, *svc.lastOffset)
}

func TestSearchPassesFilters(t *testing.T) {
	svc := newFakeService()

	res := run(t, svc, `{ searchExpenses(description: "cof", category: "3", limit: 5, offset: 2) { id } }`)
	require.Empty(t, res.Errors)

	require.NotNil(t, svc.lastDesc)
	require.NotNil(t, svc.lastCat)
	assert.Equal(t, "cof", *svc.lastDesc)
	assert.Equal(t, "3", *svc.lastCat)
	assert.Equal(t, 5, *svc.lastLimit)
	assert.Equal(t, 2, *svc.lastOffset)

	run(t, svc, `{ searchExpenses { id } }`)
	assert.Nil(t, svc.lastDesc)
	assert.Nil(t, svc.lastCat)
}

func TestUpdate(t *testing.T) {
	svc := newFakeService()
	_, err := svc.CreateExpense(context.Background(), 10, "Bus", "2024-02-10", "4")
	require.NoError(t, err)

	var got struct {
		UpdateExpense ExpenseType `json:"updateExpense"`
	}
	decode(t, run(t, svc, `mutation { updateExpense(id: 1, amount: 11) { amount description } }`), &got)
	assert.Equal(t, 11.0, got.UpdateExpense.Amount)
	assert.Equal(t, "Bus", got.UpdateExpense.Description)
	assert.Nil(t, svc.lastUpdate.Description)
	assert.Nil(t, svc.lastUpdate.Date)

	res := run(t, svc, `mutation { updateExpense(id: 99, amount: 1) { id } }`)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, StatusNotFound, res.Errors[0].Message)
}

func TestDeleteStatus(t *testing.T) {
	svc := newFakeService()
	_, err := svc.CreateExpense(context.Background(), 1, "x", "2024-01-01", "1")
	require.NoError(t, err)

	var got struct {
		DeleteExpense string `json:"deleteExpense"`
	}
	decode(t, run(t, svc, `mutation { deleteExpense(id: 1) }`), &got)
	assert.Equal(t, StatusDeleted, got.DeleteExpense)

	decode(t, run(t, svc, `mutation { deleteExpense(id: 1) }`), &got)
	assert.Equal(t, StatusNotFound, got.DeleteExpense)
}

func TestStoreFailureSurfacesAsError(t *testing.T) {
	svc := newFakeService()
	svc.err = errors.New("database is locked")

	res := run(t, svc, `mutation { deleteExpense(id: 1) }`)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "database is locked")

	res = run(t, svc, `{ listExpenses { id } }`)
	require.NotEmpty(t, res.Errors)
}

func TestUnknownFieldRejected(t *testing.T) {
	res := run(t, newFakeService(), `{ listExpenses { id colour } }`)
	assert.NotEmpty(t, res.Errors)
}

func TestOutOfRangeIDIsRejected(t *testing.T) {
	svc := newFakeService()
	svc.expenses[0] = core.Expense{Description: "zero"}

	for _, query := range []string{
		`{ getExpense(id: 3000000000) { id description } }`,
		`mutation { updateExpense(id: 3000000000, amount: 1) { id } }`,
		`mutation { deleteExpense(id: 3000000000) }`,
	} {
		res := run(t, svc, query)
		assert.NotEmpty(t, res.Errors, query)
	}
	assert.Contains(t, svc.expenses, int64(0))
	assert.Nil(t, svc.lastUpdate.Amount)
}

func TestUpdateNullVariableIsAbsent(t *testing.T) {
	svc := newFakeService()
	_, err := svc.CreateExpense(context.Background(), 10, "Bus", "2024-02-10", "4")
	require.NoError(t, err)

	schema, err := NewSchema(&Resolver{Service: svc})
	require.NoError(t, err)
	res := graphql.Do(graphql.Params{
		Schema: schema,
		RequestString: `mutation($amount: Float, $desc: String) {
			updateExpense(id: 1, amount: $amount, description: $desc) { amount description }
		}`,
		VariableValues: map[string]interface{}{"amount": nil, "desc": "Train"},
		Context:        context.Background(),
	})

	var got struct {
		UpdateExpense ExpenseType `json:"updateExpense"`
	}
	decode(t, res, &got)
	assert.Equal(t, 10.0, got.UpdateExpense.Amount)
	assert.Equal(t, "Train", got.UpdateExpense.Description)
	assert.Nil(t, svc.lastUpdate.Amount)

	// graphql-go does not parse a literal null.
	res = run(t, svc, `mutation { updateExpense(id: 1, amount: null) { amount } }`)
	assert.NotEmpty(t, res.Errors)
	assert.Equal(t, "Train", svc.expenses[1].Description)
}
