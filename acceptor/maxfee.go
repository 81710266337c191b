package acceptor

import (
	"sort"

	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/utxo"
	"github.com/OdyseeTeam/fast-utxo/validator"
	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
	"github.com/lbryio/lbcutil"
	"golang.org/x/sync/errgroup"
)

// MaxFee accepts the highest paying transactions first. Every transaction is validated and
// priced against the pool as it was before the batch, then the valid ones are walked in fee
// order and each is accepted unless one of its inputs went to a transaction accepted earlier in
// the walk.
//
// Equal fees are ordered by transaction hash, lowest bytes first, so the result only depends on
// the batch contents. This is a greedy pass, not the best possible total fee.
type MaxFee struct {
	Validator *validator.Validator
	// Workers > 1 validates that many transactions at once.
	Workers int
	Hooks
}

type candidate struct {
	tx   *model.Transaction
	hash chainhash.Hash
	fee  lbcutil.Amount
	pos  int
}

// Apply returns the accepted transactions in the order they were accepted, highest fee first.
func (m *MaxFee) Apply(batch []*model.Transaction, pool *utxo.Pool) ([]*model.Transaction, error) {
	checks := m.validate(batch, pool)

	candidates := make([]candidate, 0, len(batch))
	for i, tx := range batch {
		hash := tx.Hash()
		if checks[i] != nil {
			m.rejected(tx, hash, checks[i])
			continue
		}
		candidates = append(candidates, candidate{tx: tx, hash: hash, fee: validator.Fee(tx, pool), pos: i})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.fee != b.fee {
			return a.fee > b.fee
		}
		if c := model.CompareHashes(a.hash, b.hash); c != 0 {
			return c < 0
		}
		return a.pos < b.pos
	})

	spent := make(map[model.Outpoint]struct{})
	accepted := make([]*model.Transaction, 0, len(candidates))
Candidates:
	for _, c := range candidates {
		for _, in := range c.tx.Inputs {
			if _, ok := spent[in.Outpoint()]; ok {
				m.rejected(c.tx, c.hash, errors.Wrapf(ErrConflict, "%s", in.Outpoint()))
				continue Candidates
			}
		}

		if err := spend(c.tx, c.hash, pool); err != nil {
			return accepted, err
		}
		for _, in := range c.tx.Inputs {
			spent[in.Outpoint()] = struct{}{}
		}

		m.accepted(c.tx, c.hash, c.fee)
		accepted = append(accepted, c.tx)
	}

	return accepted, nil
}

// validate checks every transaction against the untouched pool. Nothing writes to the pool
// until all checks are done, so they can share it.
func (m *MaxFee) validate(batch []*model.Transaction, pool *utxo.Pool) []error {
	checks := make([]error, len(batch))
	if m.Workers <= 1 {
		for i, tx := range batch {
			checks[i] = m.Validator.Check(tx, pool)
		}
		return checks
	}

	var g errgroup.Group
	g.SetLimit(m.Workers)
	for i, tx := range batch {
		i, tx := i, tx
		g.Go(func() error {
			checks[i] = m.Validator.Check(tx, pool)
			return nil
		})
	}
	_ = g.Wait()
	return checks
}
