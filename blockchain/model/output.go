package model

import "github.com/lbryio/lbcutil"

// Output is an amount of deweys locked to the owner's key.
type Output struct {
	Amount lbcutil.Amount
	Owner  PubKey
}
