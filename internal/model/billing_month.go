package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// BillingMonth is a calendar month used as the key of billing delta events.
// The day component is always pinned to the 1st; equality and ordering
// compare year and month only.
type BillingMonth struct {
	Year  int
	Month time.Month
}

// NewBillingMonth normalizes any date to its billing month.
func NewBillingMonth(t time.Time) BillingMonth {
	return BillingMonth{Year: t.Year(), Month: t.Month()}
}

// ParseBillingMonth accepts "2006-01" or "2006-01-02" (day ignored).
func ParseBillingMonth(s string) (BillingMonth, error) {
	layout := "2006-01"
	if strings.Count(s, "-") == 2 {
		layout = "2006-01-02"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return BillingMonth{}, fmt.Errorf("invalid billing month %q: %w", s, err)
	}
	return NewBillingMonth(t), nil
}

// Time returns the first day of the month in UTC.
func (m BillingMonth) Time() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (m BillingMonth) String() string {
	return m.Time().Format("2006-01")
}

func (m BillingMonth) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Before reports whether m is strictly earlier than other.
func (m BillingMonth) Before(other BillingMonth) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// Next returns the following calendar month.
func (m BillingMonth) Next() BillingMonth {
	return NewBillingMonth(m.Time().AddDate(0, 1, 0))
}

// MonthsBetween returns the inclusive range [from, to]. An inverted range
// yields an empty slice.
func MonthsBetween(from, to BillingMonth) []BillingMonth {
	var months []BillingMonth
	for cur := from; !to.Before(cur); cur = cur.Next() {
		months = append(months, cur)
	}
	return months
}

// Value stores the month as a DATE on the 1st.
func (m BillingMonth) Value() (driver.Value, error) {
	return m.Time(), nil
}

// Scan accepts time.Time (DATE column) or string values.
func (m *BillingMonth) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*m = NewBillingMonth(v)
		return nil
	case string:
		parsed, err := ParseBillingMonth(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case []byte:
		return m.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into BillingMonth", src)
	}
}

func (m BillingMonth) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *BillingMonth) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseBillingMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
