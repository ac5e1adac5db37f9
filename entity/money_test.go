package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "123.45 EUR", Money{Amount: 12345, Currency: "EUR"}.String())
	assert.Equal(t, "0.05 EUR", Money{Amount: 5, Currency: "EUR"}.String())
	assert.Equal(t, "200.00 PLN", Money{Amount: 20000, Currency: "PLN"}.String())
}
