package acceptor

import (
	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/utxo"
	"github.com/OdyseeTeam/fast-utxo/validator"
)

// InOrder accepts transactions in the order they were submitted, validating each against the
// pool as left by the ones accepted before it. A transaction may spend outputs created earlier
// in the same batch. Fees play no part.
type InOrder struct {
	Validator *validator.Validator
	Hooks
}

func (a *InOrder) Apply(batch []*model.Transaction, pool *utxo.Pool) ([]*model.Transaction, error) {
	accepted := make([]*model.Transaction, 0, len(batch))
	for _, tx := range batch {
		hash := tx.Hash()
		if err := a.Validator.Check(tx, pool); err != nil {
			a.rejected(tx, hash, err)
			continue
		}
		fee := validator.Fee(tx, pool)
		if err := spend(tx, hash, pool); err != nil {
			return accepted, err
		}
		a.accepted(tx, hash, fee)
		accepted = append(accepted, tx)
	}
	return accepted, nil
}
