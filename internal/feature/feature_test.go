package feature

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptionsAreValid(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
}

func TestOptionsValidate(t *testing.T) {
	cases := map[string]Options{
		"empty customer windows": {TerminalWindows: []int{7}, DelayPeriodDays: 7},
		"empty terminal windows": {CustomerWindows: []int{7}, DelayPeriodDays: 7},
		"zero window":            {CustomerWindows: []int{0}, TerminalWindows: []int{7}, DelayPeriodDays: 7},
		"duplicate window":       {CustomerWindows: []int{1, 7, 1}, TerminalWindows: []int{7}, DelayPeriodDays: 7},
		"zero delay":             {CustomerWindows: []int{1}, TerminalWindows: []int{7}},
		"negative workers":       {CustomerWindows: []int{1}, TerminalWindows: []int{7}, DelayPeriodDays: 7, Workers: -1},
		"huge customer window":   {CustomerWindows: []int{200000}, TerminalWindows: []int{7}, DelayPeriodDays: 7},
		"huge delay":             {CustomerWindows: []int{1}, TerminalWindows: []int{7}, DelayPeriodDays: math.MaxInt},
		"delay plus window":      {CustomerWindows: []int{1}, TerminalWindows: []int{MaxHorizonDays}, DelayPeriodDays: 1},
	}

	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, opts.Validate(), ErrConfiguration)
		})
	}
}

func TestOptionsHorizonLimit(t *testing.T) {
	opts := Options{CustomerWindows: []int{1}, TerminalWindows: []int{MaxHorizonDays - 7}, DelayPeriodDays: 7}
	require.NoError(t, opts.Validate())
	assert.Equal(t, MaxHorizonDays, opts.HistoryDays())
}

func TestHistoryDays(t *testing.T) {
	assert.Equal(t, 37, DefaultOptions().HistoryDays())

	opts := Options{CustomerWindows: []int{90}, TerminalWindows: []int{7}, DelayPeriodDays: 7}
	assert.Equal(t, 90, opts.HistoryDays())
}

func TestFeatureColumns(t *testing.T) {
	opts := Options{CustomerWindows: []int{1, 7}, TerminalWindows: []int{30}, DelayPeriodDays: 7}
	assert.Equal(t, []string{
		"CUSTOMER_ID_NB_TX_1DAY_WINDOW",
		"CUSTOMER_ID_AVG_AMOUNT_1DAY_WINDOW",
		"CUSTOMER_ID_NB_TX_7DAY_WINDOW",
		"CUSTOMER_ID_AVG_AMOUNT_7DAY_WINDOW",
		"TERMINAL_ID_NB_TX_30DAY_WINDOW",
		"TERMINAL_ID_RISK_30DAY_WINDOW",
	}, FeatureColumns(opts))
}

func TestRecordValues(t *testing.T) {
	rec := &Record{
		Customer: []CustomerWindow{{Days: 7, TxCount: 3, AvgAmount: decimal.RequireFromString("23.333333")}},
		Terminal: []TerminalWindow{{Days: 7, FraudCount: 1, Risk: decimal.RequireFromString("0.5")}},
	}

	values := rec.Values(2)
	assert.Equal(t, map[string]string{
		"CUSTOMER_ID_NB_TX_7DAY_WINDOW":      "3",
		"CUSTOMER_ID_AVG_AMOUNT_7DAY_WINDOW": "23.33",
		"TERMINAL_ID_NB_TX_7DAY_WINDOW":      "1",
		"TERMINAL_ID_RISK_7DAY_WINDOW":       "0.50",
	}, values)
}

func TestGroupErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("run: %w", &GroupError{
		Pass:          PassTerminal,
		Key:           42,
		TransactionID: 7,
		Err:           Malformed("negative amount %s", "-1"),
	})

	assert.ErrorIs(t, err, ErrMalformedInput)
	var groupErr *GroupError
	require.True(t, errors.As(err, &groupErr))
	assert.Equal(t, int64(42), groupErr.Key)
	assert.Equal(t, "run: terminal 42: transaction 7: malformed input: negative amount -1", err.Error())
}
