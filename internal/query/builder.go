package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/model"
)

// AllOption is the selector value meaning "no filter".
const AllOption = "All"

// Builder assembles a SELECT with optional equality filters. Column names are
// checked against a fixed allow-list and values only ever become bound args.
type Builder struct {
	base    string
	allowed map[string]bool
	where   []string
	args    []any
	order   []string
	err     error
}

// NewBuilder starts from a base SELECT without a WHERE clause. Only the given
// columns may be filtered or ordered on.
func NewBuilder(base string, columns ...string) *Builder {
	allowed := make(map[string]bool, len(columns))
	for _, c := range columns {
		allowed[c] = true
	}
	return &Builder{base: base, allowed: allowed}
}

// Where adds "column = ?" bound to value.
func (b *Builder) Where(column string, value any) *Builder {
	if !b.check(column) {
		return b
	}
	b.where = append(b.where, column+" = ?")
	b.args = append(b.args, value)
	return b
}

// WhereSelected is Where for dropdown selections: blank values and "All" add
// nothing.
func (b *Builder) WhereSelected(column, value string) *Builder {
	value = strings.TrimSpace(value)
	if value == "" || value == AllOption {
		return b
	}
	return b.Where(column, value)
}

func (b *Builder) OrderBy(column string, desc bool) *Builder {
	if !b.check(column) {
		return b
	}
	if desc {
		column += " DESC"
	} else {
		column += " ASC"
	}
	b.order = append(b.order, column)
	return b
}

func (b *Builder) check(column string) bool {
	if b.err != nil {
		return false
	}
	if !b.allowed[column] {
		b.err = fmt.Errorf("column %q is not filterable", column)
		return false
	}
	return true
}

// Build returns the statement text and its positional args.
func (b *Builder) Build() (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	var sb strings.Builder
	sb.WriteString(b.base)
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if len(b.order) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.order, ", "))
	}
	return sb.String(), append([]any(nil), b.args...), nil
}

// ListingFilter holds the dashboard's listing selectors. Empty or "All"
// fields are ignored.
type ListingFilter struct {
	FoodType string `json:"food_type"`
	MealType string `json:"meal_type"`
	Location string `json:"location"`
}

// FilterListings returns the listings matching every set selector, soonest
// expiry first.
func (e *Executor) FilterListings(ctx context.Context, f ListingFilter) (*model.Table, error) {
	cols, _ := database.TableColumns(model.TableFoodListings)
	b := NewBuilder("SELECT "+strings.Join(cols, ", ")+" FROM food_listings", cols...).
		WhereSelected("Food_Type", f.FoodType).
		WhereSelected("Meal_Type", f.MealType).
		WhereSelected("Location", f.Location).
		OrderBy("Expiry_Date", false).
		OrderBy("Food_ID", false)

	stmt, args, err := b.Build()
	if err != nil {
		return model.NewTable(), fmt.Errorf("%w: filter listings: %w", database.ErrQueryFailure, err)
	}
	return e.run(ctx, "filter_listings", stmt, args)
}
