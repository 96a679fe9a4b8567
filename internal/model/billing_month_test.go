package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseBillingMonth(t *testing.T) {
	m, err := ParseBillingMonth("2026-09")
	require.NoError(t, err)
	require.Equal(t, 2026, m.Year)
	require.Equal(t, time.September, m.Month)

	// A full date normalizes to its month.
	m, err = ParseBillingMonth("2026-09-17")
	require.NoError(t, err)
	require.Equal(t, "2026-09", m.String())

	_, err = ParseBillingMonth("09/2026")
	require.Error(t, err)
	_, err = ParseBillingMonth("")
	require.Error(t, err)
}

func TestBillingMonthOrdering(t *testing.T) {
	sep := BillingMonth{Year: 2026, Month: time.September}
	oct := BillingMonth{Year: 2026, Month: time.October}
	jan := BillingMonth{Year: 2027, Month: time.January}

	require.True(t, sep.Before(oct))
	require.True(t, oct.Before(jan))
	require.False(t, oct.Before(sep))
	require.False(t, sep.Before(sep))

	require.Equal(t, oct, sep.Next())
	require.Equal(t, jan, BillingMonth{Year: 2026, Month: time.December}.Next())
}

func TestMonthsBetween(t *testing.T) {
	from := BillingMonth{Year: 2026, Month: time.November}
	to := BillingMonth{Year: 2027, Month: time.February}

	months := MonthsBetween(from, to)
	require.Len(t, months, 4)
	require.Equal(t, "2026-11", months[0].String())
	require.Equal(t, "2027-02", months[3].String())

	require.Equal(t, []BillingMonth{from}, MonthsBetween(from, from))
	require.Empty(t, MonthsBetween(to, from))
}

func TestBillingMonthScan(t *testing.T) {
	var m BillingMonth

	require.NoError(t, m.Scan(time.Date(2026, 9, 17, 10, 0, 0, 0, time.UTC)))
	require.Equal(t, "2026-09", m.String())

	require.NoError(t, m.Scan("2026-10-01"))
	require.Equal(t, "2026-10", m.String())

	require.NoError(t, m.Scan([]byte("2026-11")))
	require.Equal(t, "2026-11", m.String())

	require.Error(t, m.Scan(42))
}

func TestBillingMonthValue(t *testing.T) {
	m := BillingMonth{Year: 2026, Month: time.September}
	v, err := m.Value()
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), v)
}

func TestBillingMonthJSON(t *testing.T) {
	m := BillingMonth{Year: 2026, Month: time.September}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.Equal(t, `"2026-09"`, string(data))

	var out BillingMonth
	require.NoError(t, json.Unmarshal([]byte(`"2026-12"`), &out))
	require.Equal(t, BillingMonth{Year: 2026, Month: time.December}, out)

	require.Error(t, json.Unmarshal([]byte(`"next month"`), &out))
}

func TestBillingMonthIsZero(t *testing.T) {
	require.True(t, BillingMonth{}.IsZero())
	require.False(t, BillingMonth{Year: 2026, Month: time.January}.IsZero())
}
