package blockchain

import (
	"sync"

	"github.com/OdyseeTeam/fast-utxo/acceptor"
	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/keys"
	"github.com/OdyseeTeam/fast-utxo/utxo"
	"github.com/OdyseeTeam/fast-utxo/validator"

	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcutil"
	"github.com/sirupsen/logrus"
)

type client struct {
	sync.Mutex
	pool      *utxo.Pool
	validator *validator.Validator
	acceptor  acceptor.Acceptor
	batches   int
	broken    error
	fees      []lbcutil.Amount

	onAcceptFn func(tx *model.Transaction)
	onRejectFn func(tx *model.Transaction, reason error)
	onBatchFn  func(batch Result)
}

// Ledger owns a pool of unspent outputs and applies batches of transactions to it, one batch at
// a time.
type Ledger interface {
	// Validate reports whether tx could be applied to the current pool on its own.
	Validate(tx *model.Transaction) bool
	// AcceptBatch applies the batch and returns the accepted transactions. An error means the
	// pool was corrupted mid-batch; the ledger refuses further batches after that.
	AcceptBatch(txs []*model.Transaction) ([]*model.Transaction, error)
	// Pool returns a copy of the current pool.
	Pool() *utxo.Pool
	// Callbacks run while the batch holds the ledger, so they must not call back into it.
	OnAccept(func(tx *model.Transaction))
	OnReject(func(tx *model.Transaction, reason error))
	OnBatch(func(batch Result))
}

// Result summarizes one applied batch. Fees[i] is the fee Accepted[i] paid.
type Result struct {
	Number   int
	Proposed []*model.Transaction
	Accepted []*model.Transaction
	Fees     []lbcutil.Amount
}

func (r Result) TotalFees() lbcutil.Amount {
	var total lbcutil.Amount
	for _, fee := range r.Fees {
		total += fee
	}
	return total
}

type Config struct {
	// Policy is an acceptance policy name, see acceptor.ByName. Defaults to max fee.
	Policy string
	// Workers is how many transactions are validated at once by the max fee policy.
	Workers int
	// Verifier defaults to secp256k1 signatures.
	Verifier validator.Verifier
	// Payloader defaults to the canonical wire encoding.
	Payloader validator.Payloader
}

// New creates a ledger starting from a copy of pool. The caller keeps ownership of pool.
func New(pool *utxo.Pool, config Config) (Ledger, error) {
	if pool == nil {
		pool = utxo.NewPool()
	}
	verifier := config.Verifier
	if verifier == nil {
		verifier = keys.Verifier{}
	}
	var opts []validator.Option
	if config.Payloader != nil {
		opts = append(opts, validator.WithPayloader(config.Payloader))
	}

	c := &client{pool: pool.Copy(), validator: validator.New(verifier, opts...)}

	acc, err := acceptor.ByName(config.Policy, c.validator, config.Workers, acceptor.Hooks{
		OnAccept: c.accepted,
		OnReject: c.rejected,
	})
	if err != nil {
		return nil, err
	}
	c.acceptor = acc
	return c, nil
}

func (c *client) Validate(tx *model.Transaction) bool {
	c.Lock()
	defer c.Unlock()
	return c.validator.IsValid(tx, c.pool)
}

func (c *client) AcceptBatch(txs []*model.Transaction) ([]*model.Transaction, error) {
	c.Lock()
	defer c.Unlock()

	if c.broken != nil {
		return nil, errors.Wrap(c.broken, "ledger pool is corrupt")
	}

	c.batches++
	c.fees = c.fees[:0]
	accepted, err := c.acceptor.Apply(txs, c.pool)
	if err != nil {
		c.broken = err
		logrus.Errorf("batch %d: %+v", c.batches, err)
		return nil, err
	}

	result := Result{Number: c.batches, Proposed: txs, Accepted: accepted, Fees: append([]lbcutil.Amount(nil), c.fees...)}
	logrus.Infof("batch %d: accepted %d of %d transactions for %s in fees, %d unspent outputs",
		c.batches, len(accepted), len(txs), result.TotalFees(), c.pool.Len())

	if c.onAcceptFn != nil {
		for _, tx := range accepted {
			c.onAcceptFn(tx)
		}
	}
	if c.onBatchFn != nil {
		c.onBatchFn(result)
	}
	return accepted, nil
}

func (c *client) Pool() *utxo.Pool {
	c.Lock()
	defer c.Unlock()
	return c.pool.Copy()
}

func (c *client) accepted(_ *model.Transaction, fee lbcutil.Amount) {
	c.fees = append(c.fees, fee)
}

func (c *client) rejected(tx *model.Transaction, reason error) {
	if c.onRejectFn != nil {
		c.onRejectFn(tx, reason)
	}
}

func (c *client) OnAccept(fn func(*model.Transaction)) {
	c.Lock()
	defer c.Unlock()
	c.onAcceptFn = fn
}

func (c *client) OnReject(fn func(*model.Transaction, error)) {
	c.Lock()
	defer c.Unlock()
	c.onRejectFn = fn
}

func (c *client) OnBatch(fn func(Result)) {
	c.Lock()
	defer c.Unlock()
	c.onBatchFn = fn
}
