// Package records turns register-number listing items into flat rows ready for
// tabular export.
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMissingField is wrapped by MissingFieldError.
var ErrMissingField = errors.New("missing field")

// Item is one listing record as returned by the API. It is kept as a decoded
// JSON object so scalar values are copied to the flat record unchanged; numbers
// arrive as json.Number when the page was decoded with UseNumber.
type Item map[string]any

// Column names, in output order.
const (
	ColID             = "id"
	ColRegionNumberID = "region_number_id"
	ColFirstLetter    = "first_letter"
	ColSecondLetter   = "second_letter"
	ColNumber         = "number"
	ColPrice          = "price"
	ColCurrency       = "currency"
	ColCityID         = "city_id"
	ColViews          = "views"
	ColAuthorPhone    = "author_phone"
	ColAuthorName     = "author_name"
	ColDescription    = "description"
	ColUserID         = "user_id"
	ColStatus         = "status"
	ColDeletedAt      = "deleted_at"
	ColCreatedAt      = "created_at"
	ColUpdatedAt      = "updated_at"
	ColRegionNumber   = "region_number"
	ColRegionName     = "region_name"
	ColCityName       = "city_name"
)

// Columns is the fixed header of every export.
var Columns = []string{
	ColID, ColRegionNumberID, ColFirstLetter, ColSecondLetter, ColNumber,
	ColPrice, ColCurrency, ColCityID, ColViews, ColAuthorPhone,
	ColAuthorName, ColDescription, ColUserID, ColStatus, ColDeletedAt,
	ColCreatedAt, ColUpdatedAt, ColRegionNumber, ColRegionName, ColCityName,
}

// FlatRecord holds one value per entry of Columns, in the same order.
// A nil value is a JSON null that was passed through.
type FlatRecord []any

// Get returns the value of the named column and whether the column exists.
func (r FlatRecord) Get(column string) (any, bool) {
	for i, c := range Columns {
		if c == column {
			if i < len(r) {
				return r[i], true
			}
			return nil, false
		}
	}
	return nil, false
}

// Map returns the record keyed by column name.
func (r FlatRecord) Map() map[string]any {
	m := make(map[string]any, len(Columns))
	for i, c := range Columns {
		if i < len(r) {
			m[c] = r[i]
		}
	}
	return m
}

// Strings renders every value with FormatValue.
func (r FlatRecord) Strings() []string {
	out := make([]string, len(r))
	for i, v := range r {
		out[i], _ = FormatValue(v)
	}
	return out
}

// MissingFieldError reports a key the flattener expected but did not find.
type MissingFieldError struct {
	ItemID any
	Path   string
}

func (e *MissingFieldError) Error() string {
	if e.ItemID != nil {
		return fmt.Sprintf("item %v: %s %q", e.ItemID, ErrMissingField, e.Path)
	}
	return fmt.Sprintf("item: %s %q", ErrMissingField, e.Path)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}

// FormatValue renders a flat record value as text. The second result is false
// for nil, so SQL sinks can store NULL instead of an empty string.
func FormatValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val), true
		}
		return string(b), true
	}
}

// NumericValue converts json.Number to int64 or float64 so spreadsheet cells
// are typed as numbers. Other values are returned unchanged.
func NumericValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
