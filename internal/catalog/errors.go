package catalog

import (
	"errors"
	"fmt"
)

var ErrProductNotFound = errors.New("product not found")

// OutOfStockError reports which product blocked a reservation and by how much.
type OutOfStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock: product=%s requested=%d available=%d",
		e.ProductID, e.Requested, e.Available)
}
