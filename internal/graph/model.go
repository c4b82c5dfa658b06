package graph

import "expenses/internal/core"

// ExpenseType is the public representation of an expense.
type ExpenseType struct {
	ID          int64   `json:"id"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Category    string  `json:"category"`
}

func toExpenseType(e core.Expense) ExpenseType {
	return ExpenseType{
		ID:          e.ID,
		Amount:      e.Amount,
		Description: e.Description,
		Date:        e.Date.String(),
		Category:    e.Category.String(),
	}
}

func toExpenseTypes(exps []core.Expense) []ExpenseType {
	out := make([]ExpenseType, len(exps))
	for i, e := range exps {
		out[i] = toExpenseType(e)
	}
	return out
}
