package services

import (
	"context"
	"errors"
	"fmt"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/metrics"
)

// Repository is the data access contract the service needs.
type Repository interface {
	Get(ctx context.Context, id int64) (core.Expense, error)
	List(ctx context.Context, f core.SearchFilter) ([]core.Expense, error)
	Create(ctx context.Context, e core.Expense) (core.Expense, error)
	Update(ctx context.Context, id int64, patch core.ExpensePatch) (core.Expense, error)
	Delete(ctx context.Context, id int64) error
}

// EventPublisher receives committed changes. *amqp.Client implements it.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

// UpdateInput holds the raw optional arguments of an update. Nil means absent.
type UpdateInput struct {
	Amount      *float64
	Description *string
	Date        *string
	Category    *string
}

// ExpenseService validates caller input, runs one repository operation and
// publishes a change event after every successful mutation.
type ExpenseService struct {
	storage   Repository
	publisher EventPublisher
}

func NewExpenseService(storage Repository, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		storage:   storage,
		publisher: publisher,
	}
}

// GetExpense returns nil without error when the id does not exist.
func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	e, err := s.storage.Get(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expense %d: %w", id, err)
	}
	return &e, nil
}

func (s *ExpenseService) ListExpenses(ctx context.Context, limit, offset *int) ([]core.Expense, error) {
	return s.SearchExpenses(ctx, nil, nil, limit, offset)
}

func (s *ExpenseService) SearchExpenses(ctx context.Context, description, category *string, limit, offset *int) ([]core.Expense, error) {
	f, err := core.NewSearchFilter(description, category, limit, offset)
	if err != nil {
		return nil, err
	}
	exps, err := s.storage.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return exps, nil
}

func (s *ExpenseService) CreateExpense(ctx context.Context, amount float64, description, date, category string) (core.Expense, error) {
	e, err := core.NewExpense(amount, description, date, category)
	if err != nil {
		return core.Expense{}, err
	}

	created, err := s.storage.Create(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventCreated, created))
	return created, nil
}

// UpdateExpense returns core.ErrNotFound when the id does not exist.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, in UpdateInput) (core.Expense, error) {
	patch := core.ExpensePatch{
		Amount:      in.Amount,
		Description: in.Description,
	}
	if in.Date != nil {
		d, err := core.ParseDate(*in.Date)
		if err != nil {
			return core.Expense{}, err
		}
		patch.Date = &d
	}
	if in.Category != nil {
		c, err := core.ParseCategory(*in.Category)
		if err != nil {
			return core.Expense{}, err
		}
		patch.Category = &c
	}

	updated, err := s.storage.Update(ctx, id, patch)
	if errors.Is(err, core.ErrNotFound) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}

	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventUpdated, updated))
	return updated, nil
}

// DeleteExpense hard-deletes the row. It returns core.ErrNotFound when nothing was deleted.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	err := s.storage.Delete(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}

	s.publish(ctx, amqp.NewDeleteEvent(id))
	return nil
}

// publish never fails the caller: the change is already committed.
func (s *ExpenseService) publish(ctx context.Context, ev *amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishExpenseEvent(ctx, ev)
	metrics.CountEventPublished(string(ev.Type), err != nil)
	if err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentEvents).ErrorContext(ctx, "Failed to publish expense event",
			"type", ev.Type, log.FieldExpenseID, ev.ID, log.FieldError, err)
	}
}
