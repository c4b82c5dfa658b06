package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-03-01", true},
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"2024-3-1", false},
		{"01/03/2024", false},
		{"", false},
		{"2024-03-01T10:00:00Z", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			d, err := ParseDate(tc.in)
			if !tc.ok {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.in, d.String())
		})
	}
}

func TestDateScan(t *testing.T) {
	cases := []struct {
		name string
		src  any
		want string
	}{
		{"time", time.Date(2024, 3, 1, 15, 4, 5, 0, time.FixedZone("x", 3600)), "2024-03-01"},
		{"text", "2024-03-01", "2024-03-01"},
		{"text with time", "2024-03-01 00:00:00+00:00", "2024-03-01"},
		{"bytes", []byte("2024-12-31"), "2024-12-31"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var d Date
			require.NoError(t, d.Scan(tc.src))
			assert.Equal(t, tc.want, d.String())
		})
	}

	var d Date
	assert.Error(t, d.Scan(nil))
	assert.Error(t, d.Scan(42))
	assert.Error(t, d.Scan("03/01"))
}

func TestDateValue(t *testing.T) {
	v, err := NewDate(2024, 3, 1).Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", v)

	_, err = Date{}.Value()
	assert.Error(t, err)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" 007 ")
	require.NoError(t, err)
	assert.Equal(t, Category(7), c)
	assert.Equal(t, "7", c.String())

	for _, bad := range []string{"", "food", "3.5", "1e3"} {
		_, err := ParseCategory(bad)
		assert.Error(t, err, bad)
		assert.True(t, IsValidationError(err), bad)
	}
}

func TestNewExpense(t *testing.T) {
	e, err := NewExpense(12.5, "Lunch", "2024-03-01", "2")
	require.NoError(t, err)
	assert.Equal(t, 12.5, e.Amount)
	assert.Equal(t, "Lunch", e.Description)
	assert.Equal(t, NewDate(2024, 3, 1), e.Date)
	assert.Equal(t, Category(2), e.Category)

	_, err = NewExpense(1, "x", "2024/03/01", "2")
	assert.ErrorContains(t, err, "date")

	_, err = NewExpense(1, "x", "2024-03-01", "two")
	assert.ErrorContains(t, err, "category")
}

func TestExpensePatchApply(t *testing.T) {
	base := Expense{ID: 9, Amount: 1, Description: "a", Date: NewDate(2024, 1, 1), Category: 1}

	assert.True(t, ExpensePatch{}.IsEmpty())
	assert.Equal(t, base, ExpensePatch{}.Apply(base))

	desc := "b"
	got := ExpensePatch{Description: &desc}.Apply(base)
	assert.Equal(t, "b", got.Description)
	assert.Equal(t, base.Amount, got.Amount)
	assert.Equal(t, base.Date, got.Date)
	assert.Equal(t, base.Category, got.Category)
	assert.Equal(t, base.ID, got.ID)
}

func TestNewSearchFilter(t *testing.T) {
	f, err := NewSearchFilter(nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, SearchFilter{Limit: 10, Offset: 0}, f)

	empty := ""
	f, err = NewSearchFilter(&empty, &empty, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, f.Description)
	assert.Nil(t, f.Category)

	desc, cat, limit, offset := "cof", "3", 5, 2
	f, err = NewSearchFilter(&desc, &cat, &limit, &offset)
	require.NoError(t, err)
	require.NotNil(t, f.Description)
	require.NotNil(t, f.Category)
	assert.Equal(t, "cof", *f.Description)
	assert.Equal(t, Category(3), *f.Category)
	assert.Equal(t, 5, f.Limit)
	assert.Equal(t, 2, f.Offset)

	neg := -1
	_, err = NewSearchFilter(nil, nil, &neg, nil)
	assert.ErrorIs(t, err, ErrInvalidLimit)
	_, err = NewSearchFilter(nil, nil, nil, &neg)
	assert.ErrorIs(t, err, ErrInvalidOffset)

	bad := "food"
	_, err = NewSearchFilter(nil, &bad, nil, nil)
	assert.True(t, IsValidationError(err))
}
