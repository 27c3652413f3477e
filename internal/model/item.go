package model

import "fmt"

// Item is the product being paid for. Price is in major currency units.
type Item struct {
	ID    int    `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Price int64  `json:"price" yaml:"price"`
	Payee string `json:"payee" yaml:"payee"`
}

func (i Item) String() string {
	return fmt.Sprintf("%s (id=%d, price=%d, payee=%s)", i.Name, i.ID, i.Price, i.Payee)
}

// Validate checks the fields the composer depends on.
func (i Item) Validate() error {
	if i.ID <= 0 {
		return NewValidationError("item.id", "must be positive")
	}
	if i.Price < 0 {
		return NewValidationError("item.price", "must not be negative")
	}
	return nil
}
