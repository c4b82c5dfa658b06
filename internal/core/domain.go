package core

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the only accepted textual form of an expense date.
const DateLayout = "2006-01-02"

const (
	DefaultLimit  = 10
	DefaultOffset = 0
)

type (
	// Date is a calendar date without time of day, always normalized to UTC midnight.
	Date struct {
		time.Time
	}

	// Category is stored as an integer and surfaced as its decimal text.
	Category int64

	Expense struct {
		ID          int64
		Amount      float64
		Description string
		Date        Date
		Category    Category
	}

	// ExpensePatch carries the fields an update should overwrite. A nil field is left untouched.
	ExpensePatch struct {
		Amount      *float64
		Description *string
		Date        *Date
		Category    *Category
	}

	SearchFilter struct {
		Description *string
		Category    *Category
		Limit       int
		Offset      int
	}
)

var (
	ErrNotFound      = errors.New("expense not found")
	ErrInvalidLimit  = &ValidationError{Field: "limit", Msg: "must not be negative"}
	ErrInvalidOffset = &ValidationError{Field: "offset", Msg: "must not be negative"}
)

// ValidationError reports caller input that could not be coerced.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses s in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Msg: fmt.Sprintf("%q does not match YYYY-MM-DD", s)}
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// Value stores the date as YYYY-MM-DD, which both sqlite and postgres accept for a DATE column.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, errors.New("date cannot be zero")
	}
	return d.String(), nil
}

// Scan accepts the time.Time or text forms drivers return for DATE columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v.Year(), int(v.Month()), v.Day())
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	case nil:
		return errors.New("date is null")
	default:
		return fmt.Errorf("unsupported date type %T", src)
	}
}

func (d *Date) scanText(s string) error {
	if len(s) < len(DateLayout) {
		return fmt.Errorf("malformed date %q", s)
	}
	t, err := time.Parse(DateLayout, s[:len(DateLayout)])
	if err != nil {
		return fmt.Errorf("malformed date %q: %w", s, err)
	}
	*d = Date{Time: t}
	return nil
}

// ParseCategory accepts the decimal text form of a category.
func ParseCategory(s string) (Category, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: "category", Msg: fmt.Sprintf("%q is not an integer", s)}
	}
	return Category(n), nil
}

func (c Category) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// NewExpense builds an expense from the textual inputs accepted by the create mutation.
func NewExpense(amount float64, description, date, category string) (Expense, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Expense{}, err
	}
	c, err := ParseCategory(category)
	if err != nil {
		return Expense{}, err
	}
	return Expense{
		Amount:      amount,
		Description: description,
		Date:        d,
		Category:    c,
	}, nil
}

// IsEmpty reports whether the patch would change nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Amount == nil && p.Description == nil && p.Date == nil && p.Category == nil
}

// Apply returns e with every present patch field overwritten.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	return e
}

// NewSearchFilter applies the default page and rejects negative bounds.
// Nil limit or offset means the default; an empty description means no filter.
func NewSearchFilter(description, category *string, limit, offset *int) (SearchFilter, error) {
	f := SearchFilter{Limit: DefaultLimit, Offset: DefaultOffset}
	if limit != nil {
		if *limit < 0 {
			return SearchFilter{}, ErrInvalidLimit
		}
		f.Limit = *limit
	}
	if offset != nil {
		if *offset < 0 {
			return SearchFilter{}, ErrInvalidOffset
		}
		f.Offset = *offset
	}
	if description != nil && *description != "" {
		d := *description
		f.Description = &d
	}
	if category != nil && *category != "" {
		c, err := ParseCategory(*category)
		if err != nil {
			return SearchFilter{}, err
		}
		f.Category = &c
	}
	return f, nil
}
