// Package acceptor picks which transactions of a batch get applied to the pool.
package acceptor

import (
	"strings"

	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/utxo"
	"github.com/OdyseeTeam/fast-utxo/validator"
	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
	"github.com/lbryio/lbcutil"
	"github.com/sirupsen/logrus"
)

const (
	PolicyMaxFee  = "maxfee"
	PolicyInOrder = "inorder"
)

// ErrConflict marks a valid transaction that lost its inputs to one accepted before it.
var ErrConflict = errors.New("input already spent by an accepted transaction in this batch")

// Acceptor applies a batch to pool and returns the transactions it accepted. Transactions that
// are invalid or conflict are left out, they are not errors. An error means the pool is no longer
// consistent with what was accepted.
type Acceptor interface {
	Apply(batch []*model.Transaction, pool *utxo.Pool) ([]*model.Transaction, error)
}

// Hooks are told about every transaction of a batch as it is accepted, with the fee it paid, or
// left out, with the reason.
type Hooks struct {
	OnAccept func(tx *model.Transaction, fee lbcutil.Amount)
	OnReject func(tx *model.Transaction, reason error)
}

func (h Hooks) accepted(tx *model.Transaction, hash chainhash.Hash, fee lbcutil.Amount) {
	logrus.Debugf("accepted %s (fee %d)", hash, int64(fee))
	if h.OnAccept != nil {
		h.OnAccept(tx, fee)
	}
}

func (h Hooks) rejected(tx *model.Transaction, hash chainhash.Hash, reason error) {
	logrus.Debugf("rejecting %s: %v", hash, reason)
	if h.OnReject != nil {
		h.OnReject(tx, reason)
	}
}

// ByName returns the acceptor for a policy name.
func ByName(policy string, v *validator.Validator, workers int, hooks Hooks) (Acceptor, error) {
	switch strings.ToLower(policy) {
	case "", PolicyMaxFee:
		return &MaxFee{Validator: v, Workers: workers, Hooks: hooks}, nil
	case PolicyInOrder:
		return &InOrder{Validator: v, Hooks: hooks}, nil
	default:
		return nil, errors.Newf("unknown acceptance policy %q", policy)
	}
}

// IsPoolInvariantViolation reports whether err came from an input vanishing from the pool while
// a batch was being applied.
func IsPoolInvariantViolation(err error) bool {
	return errors.HasAssertionFailure(err)
}

// spend removes the inputs of tx from pool and adds its outputs under hash. All inputs are
// checked before anything is changed.
func spend(tx *model.Transaction, hash chainhash.Hash, pool *utxo.Pool) error {
	for _, in := range tx.Inputs {
		if !pool.Contains(in.Outpoint()) {
			return errors.AssertionFailedf("accepted transaction %s spends %s which is not in the pool", hash, in.Outpoint())
		}
	}
	for _, in := range tx.Inputs {
		pool.Remove(in.Outpoint())
	}
	for n, out := range tx.Outputs {
		pool.Add(model.NewOutpoint(hash, uint32(n)), out)
	}
	return nil
}
