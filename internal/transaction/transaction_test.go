package transaction

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBefore(t *testing.T) {
	ts := time.Date(2018, 4, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, Before(Transaction{ID: 9, Timestamp: ts}, Transaction{ID: 1, Timestamp: ts.Add(time.Second)}))
	assert.True(t, Before(Transaction{ID: 1, Timestamp: ts}, Transaction{ID: 2, Timestamp: ts}))
	assert.False(t, Before(Transaction{ID: 2, Timestamp: ts}, Transaction{ID: 2, Timestamp: ts}))
}

func TestFraudValue(t *testing.T) {
	assert.True(t, Transaction{Fraud: true}.FraudValue().Equal(decimal.NewFromInt(1)))
	assert.True(t, Transaction{}.FraudValue().IsZero())
}
