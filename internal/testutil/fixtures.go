// Package testutil builds signed transactions and funded pools for tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/keys"
	"github.com/OdyseeTeam/fast-utxo/utxo"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
	"github.com/lbryio/lbcutil"
	"github.com/stretchr/testify/require"
)

func Key(t testing.TB) *keys.Signer {
	t.Helper()
	s, err := keys.NewSigner()
	require.NoError(t, err)
	return s
}

// Coin is an outpoint of a made-up funding transaction.
func Coin(name string, index uint32) model.Outpoint {
	return model.NewOutpoint(chainhash.DoubleHashH([]byte(fmt.Sprintf("funding %s", name))), index)
}

func Out(amount lbcutil.Amount, owner *keys.Signer) model.Output {
	return model.Output{Amount: amount, Owner: owner.PubKey()}
}

// Fund adds an output worth amount owned by owner to pool and returns its outpoint.
func Fund(pool *utxo.Pool, name string, amount lbcutil.Amount, owner *keys.Signer) model.Outpoint {
	o := Coin(name, 0)
	pool.Add(o, Out(amount, owner))
	return o
}

// Spend builds a transaction claiming prev and paying outs, with every input signed by from.
func Spend(t testing.TB, from *keys.Signer, prev []model.Outpoint, outs ...model.Output) *model.Transaction {
	t.Helper()
	tx := model.NewTransaction()
	for _, p := range prev {
		tx.AddInput(p)
	}
	tx.Outputs = append(tx.Outputs, outs...)
	for i := range tx.Inputs {
		require.NoError(t, from.SignInput(tx, i))
	}
	return tx
}
