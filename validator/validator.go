/*
Package validator decides whether a single transaction may be applied to a pool of unspent
outputs.

A transaction is valid when, in this order:
 1. every input references an output in the pool,
 2. every input's signature verifies against the owner of the output it claims, over the
    transaction's signable payload for that input,
 3. no output is claimed twice by the same transaction,
 4. no output amount is negative,
 5. the inputs are worth at least as much as the outputs.

Validation only reads the pool.
*/
package validator

import (
	"math"

	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/utxo"
	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcutil"
)

var (
	ErrMissingInput      = errors.New("input claims an output that is not in the pool")
	ErrBadSignature      = errors.New("input signature does not verify")
	ErrDoubleClaim       = errors.New("output claimed more than once")
	ErrNegativeOutput    = errors.New("output amount is negative")
	ErrInsufficientInput = errors.New("outputs are worth more than inputs")
	ErrOverflow          = errors.New("amount overflow")
)

// Verifier checks a signature of message by the holder of pubKey.
type Verifier interface {
	Verify(pubKey, message, sig []byte) bool
}

// Payloader produces the bytes the signature of input i commits to.
type Payloader interface {
	SignablePayload(tx *model.Transaction, i int) ([]byte, error)
}

// CanonicalPayload signs over the transaction's own wire encoding.
type CanonicalPayload struct{}

func (CanonicalPayload) SignablePayload(tx *model.Transaction, i int) ([]byte, error) {
	return tx.SignablePayload(i)
}

type Validator struct {
	verifier  Verifier
	payloader Payloader
}

type Option func(*Validator)

func WithPayloader(p Payloader) Option {
	return func(v *Validator) {
		v.payloader = p
	}
}

func New(verifier Verifier, opts ...Option) *Validator {
	v := &Validator{verifier: verifier, payloader: CanonicalPayload{}}
	for _, o := range opts {
		o(v)
	}
	return v
}

func (v *Validator) IsValid(tx *model.Transaction, pool *utxo.Pool) bool {
	return v.Check(tx, pool) == nil
}

// Check returns nil if tx is valid against pool, or an error wrapping the Err* value of the
// first rule it breaks.
func (v *Validator) Check(tx *model.Transaction, pool *utxo.Pool) error {
	if err := checkInputsExist(tx, pool); err != nil {
		return err
	}
	if err := v.checkSignatures(tx, pool); err != nil {
		return err
	}
	if err := checkUniqueInputs(tx); err != nil {
		return err
	}
	if err := checkOutputAmounts(tx); err != nil {
		return err
	}
	return checkConservation(tx, pool)
}

func checkInputsExist(tx *model.Transaction, pool *utxo.Pool) error {
	for i, in := range tx.Inputs {
		if !pool.Contains(in.Outpoint()) {
			return errors.Wrapf(ErrMissingInput, "input %d (%s)", i, in.Outpoint())
		}
	}
	return nil
}

// the payload is derived per input because it excludes that input's own signature
func (v *Validator) checkSignatures(tx *model.Transaction, pool *utxo.Pool) error {
	for i, in := range tx.Inputs {
		out, err := pool.Get(in.Outpoint())
		if err != nil {
			return errors.Wrapf(ErrMissingInput, "input %d: %v", i, err)
		}
		payload, err := v.payloader.SignablePayload(tx, i)
		if err != nil {
			return errors.Wrapf(ErrBadSignature, "input %d: %v", i, err)
		}
		if !v.verifier.Verify(out.Owner, payload, in.Signature) {
			return errors.Wrapf(ErrBadSignature, "input %d (%s)", i, in.Outpoint())
		}
	}
	return nil
}

func checkUniqueInputs(tx *model.Transaction) error {
	seen := make(map[model.Outpoint]struct{}, len(tx.Inputs))
	for _, in := range tx.Inputs {
		seen[in.Outpoint()] = struct{}{}
	}
	if len(seen) != len(tx.Inputs) {
		return errors.Wrapf(ErrDoubleClaim, "%d inputs claim %d distinct outputs", len(tx.Inputs), len(seen))
	}
	return nil
}

func checkOutputAmounts(tx *model.Transaction) error {
	for n, out := range tx.Outputs {
		if out.Amount < 0 {
			return errors.Wrapf(ErrNegativeOutput, "output %d is %d", n, int64(out.Amount))
		}
	}
	return nil
}

func checkConservation(tx *model.Transaction, pool *utxo.Pool) error {
	var in, out lbcutil.Amount
	var err error
	for i, input := range tx.Inputs {
		prev, gErr := pool.Get(input.Outpoint())
		if gErr != nil {
			return errors.Wrapf(ErrMissingInput, "input %d: %v", i, gErr)
		}
		if in, err = addAmount(in, prev.Amount); err != nil {
			return err
		}
	}
	for _, output := range tx.Outputs {
		if out, err = addAmount(out, output.Amount); err != nil {
			return err
		}
	}
	if in < out {
		return errors.Wrapf(ErrInsufficientInput, "inputs %d < outputs %d", int64(in), int64(out))
	}
	return nil
}

// Fee is what the inputs are worth minus what the outputs are worth. Inputs the pool cannot
// resolve count as zero. Sums that leave the int64 range stick at its bounds.
func Fee(tx *model.Transaction, pool *utxo.Pool) lbcutil.Amount {
	var fee lbcutil.Amount
	for _, in := range tx.Inputs {
		if prev, err := pool.Get(in.Outpoint()); err == nil {
			fee = saturatingAdd(fee, prev.Amount)
		}
	}
	for _, out := range tx.Outputs {
		if out.Amount == math.MinInt64 {
			fee = saturatingAdd(saturatingAdd(fee, math.MaxInt64), 1)
			continue
		}
		fee = saturatingAdd(fee, -out.Amount)
	}
	return fee
}

func saturatingAdd(a, b lbcutil.Amount) lbcutil.Amount {
	sum, err := addAmount(a, b)
	if err == nil {
		return sum
	}
	if b > 0 {
		return math.MaxInt64
	}
	return math.MinInt64
}

func addAmount(a, b lbcutil.Amount) (lbcutil.Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, errors.Wrapf(ErrOverflow, "%d + %d", int64(a), int64(b))
	}
	return a + b, nil
}
