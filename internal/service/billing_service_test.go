package service

import (
	"testing"

	"backend/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeEngineerSubtotalMonthly(t *testing.T) {
	salary := dec("2500.555")
	got, err := ComputeEngineerSubtotal(model.EngagedEngineer{
		BillingType: model.BillingTypeMonthly,
		Salary:      &salary,
	})
	require.NoError(t, err)
	require.Equal(t, "2500.56", got.StringFixed(2))
}

func TestComputeEngineerSubtotalHourly(t *testing.T) {
	rate := dec("25.50")
	hours := dec("81.5")
	got, err := ComputeEngineerSubtotal(model.EngagedEngineer{
		BillingType: model.BillingTypeHourly,
		HourlyRate:  &rate,
		Hours:       &hours,
	})
	require.NoError(t, err)
	require.Equal(t, "2078.25", got.StringFixed(2))
}

func TestComputeEngineerSubtotalRejectsBadInput(t *testing.T) {
	negative := dec("-1")
	rate := dec("10")

	cases := map[string]model.EngagedEngineer{
		"monthly without salary":  {BillingType: model.BillingTypeMonthly},
		"monthly negative salary": {BillingType: model.BillingTypeMonthly, Salary: &negative},
		"hourly without rate":     {BillingType: model.BillingTypeHourly},
		"hourly without hours":    {BillingType: model.BillingTypeHourly, HourlyRate: &rate},
		"hourly negative hours":   {BillingType: model.BillingTypeHourly, HourlyRate: &rate, Hours: &negative},
		"unknown billing type":    {BillingType: "Weekly"},
	}
	for name, engineer := range cases {
		_, err := ComputeEngineerSubtotal(engineer)
		require.ErrorIs(t, err, model.ErrInvalidBillingInput, name)
	}
}

func TestComputeEngineerDeltasExpandsMonths(t *testing.T) {
	salary := dec("1000")
	rate := dec("50")
	hours := dec("10")
	engineers := []model.EngagedEngineer{
		{EngineerName: "Alex", Role: "Backend", Level: "Senior", BillingType: model.BillingTypeMonthly, Salary: &salary},
		{EngineerName: "Kim", Role: "QA", Level: "Mid", BillingType: model.BillingTypeHourly, HourlyRate: &rate, Hours: &hours},
	}

	from, err := model.ParseBillingMonth("2026-11")
	require.NoError(t, err)
	to, err := model.ParseBillingMonth("2027-01")
	require.NoError(t, err)

	deltas, err := ComputeEngineerDeltas(engineers, from, to, model.BillingEventRetainerAdjust)
	require.NoError(t, err)
	require.Len(t, deltas, 6) // 2 engineers x 3 months, year boundary included

	require.Equal(t, "2026-11", deltas[0].BillingMonth.String())
	require.Equal(t, "2027-01", deltas[len(deltas)-1].BillingMonth.String())
	require.Equal(t, "4500.00", SumDeltas(deltas).StringFixed(2))
	for _, d := range deltas {
		require.Equal(t, model.BillingEventRetainerAdjust, d.Type)
	}
}

func TestComputeEngineerDeltasRejectsInvertedPeriod(t *testing.T) {
	from, err := model.ParseBillingMonth("2026-10")
	require.NoError(t, err)
	to, err := model.ParseBillingMonth("2026-09")
	require.NoError(t, err)

	_, err = ComputeEngineerDeltas(nil, from, to, model.BillingEventRetainerAdjust)
	require.ErrorIs(t, err, model.ErrInvalidBillingInput)

	_, err = ComputeEngineerDeltas(nil, model.BillingMonth{}, to, model.BillingEventRetainerAdjust)
	require.ErrorIs(t, err, model.ErrInvalidBillingInput)
}

func TestSumDeltasSigned(t *testing.T) {
	month, err := model.ParseBillingMonth("2026-09")
	require.NoError(t, err)
	deltas := []BillingDeltaInput{
		{BillingMonth: month, DeltaAmount: dec("100.00"), Type: model.BillingEventScopeAdjustment},
		{BillingMonth: month, DeltaAmount: dec("-40.50"), Type: model.BillingEventCorrection},
	}
	require.Equal(t, "59.50", SumDeltas(deltas).StringFixed(2))
	require.True(t, SumDeltas(nil).IsZero())
}
