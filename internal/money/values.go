// Package money provides the multi-currency value map used by transactions,
// debts, and account log entries. A Values map holds the same monetary
// magnitude expressed in every supported currency as of some reference date.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Values maps a currency code to a decimal amount.
type Values map[string]decimal.Decimal

// Get returns the value for the given currency code, or zero if absent.
func (v Values) Get(code string) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return v[code]
}

// Sub returns a new Values with other subtracted per currency.
// Currencies present in either operand appear in the result.
func (v Values) Sub(other Values) Values {
	out := make(Values, len(v))
	for code, val := range v {
		out[code] = val
	}
	for code, val := range other {
		out[code] = out[code].Sub(val)
	}
	return out
}

// Value implements driver.Valuer so the map is stored as a single JSON column.
func (v Values) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (v *Values) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}

	var data []byte
	switch s := src.(type) {
	case []byte:
		data = s
	case string:
		data = []byte(s)
	default:
		return fmt.Errorf("cannot scan %T into money.Values", src)
	}

	if len(data) == 0 {
		*v = nil
		return nil
	}
	return json.Unmarshal(data, v)
}

// GormDataType tells GORM to use a text column for Values.
func (Values) GormDataType() string { return "text" }
