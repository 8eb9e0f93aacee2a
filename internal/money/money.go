// Package money represents monetary amounts as integer cents so that
// arithmetic never accumulates binary floating-point error. Values cross the
// API boundary as 2-decimal numbers and are rounded half-up on the way in.
package money

import (
	"fmt"
	"math"
)

type Cents int64

// FromAmount converts a 2-decimal amount (e.g. a JSON number) to cents,
// rounding half-up. FromAmount(10.005) == 1001.
func FromAmount(v float64) Cents {
	if v >= 0 {
		return Cents(math.Floor(v*100 + 0.5))
	}
	return -Cents(math.Floor(-v*100 + 0.5))
}

func (c Cents) Amount() float64 { return float64(c) / 100 }

func (c Cents) String() string {
	sign := ""
	n := int64(c)
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%s%d.%02d", sign, n/100, n%100)
}

func (c Cents) Mul(qty int) Cents { return c * Cents(qty) }
