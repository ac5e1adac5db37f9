package entity

import "fmt"

// Money is an amount in the smallest currency unit (e.g. cents), so refund
// arithmetic never touches floating point.
type Money struct {
	Amount   int64  `json:"amount" db:"amount"`
	Currency string `json:"currency" db:"currency"`
}

func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.Amount/100, m.Amount%100, m.Currency)
}
