package model

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
	"github.com/lbryio/lbcd/wire"
	"github.com/lbryio/lbcutil"
)

const TxVersion = 1

// Transaction consumes the outputs its inputs reference and creates new ones. Its canonical
// encoding is the lbrycrd wire format: each input's signature travels in the signature script
// and each output's owner key in the pk script.
type Transaction struct {
	Version  int32
	Inputs   []Input
	Outputs  []Output
	LockTime uint32
}

func NewTransaction() *Transaction {
	return &Transaction{Version: TxVersion}
}

func (t *Transaction) AddInput(prev Outpoint) *Transaction {
	t.Inputs = append(t.Inputs, Input{PrevTxHash: prev.Hash, PrevTxIndex: prev.Index})
	return t
}

func (t *Transaction) AddOutput(amount lbcutil.Amount, owner PubKey) *Transaction {
	t.Outputs = append(t.Outputs, Output{Amount: amount, Owner: owner})
	return t
}

// Hash is the identity of the transaction: the double sha256 of its encoding, signatures
// included.
func (t *Transaction) Hash() chainhash.Hash {
	return t.MsgTx().TxHash()
}

// OutpointAt is the outpoint the n-th output becomes once the transaction is accepted.
func (t *Transaction) OutpointAt(n int) Outpoint {
	return Outpoint{Hash: t.Hash(), Index: uint32(n)}
}

// SignablePayload is the message the signature of input i commits to. It is the encoding of the
// transaction with every other input dropped and input i's signature removed.
func (t *Transaction) SignablePayload(i int) ([]byte, error) {
	if i < 0 || i >= len(t.Inputs) {
		return nil, errors.Newf("input %d out of range, transaction has %d inputs", i, len(t.Inputs))
	}

	msg := wire.NewMsgTx(t.Version)
	msg.LockTime = t.LockTime
	in := t.Inputs[i]
	msg.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: in.PrevTxHash, Index: in.PrevTxIndex},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	for _, out := range t.Outputs {
		msg.AddTxOut(wire.NewTxOut(int64(out.Amount), out.Owner))
	}

	var buf bytes.Buffer
	buf.Grow(msg.SerializeSizeStripped())
	if err := msg.SerializeNoWitness(&buf); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

func (t *Transaction) MsgTx() *wire.MsgTx {
	msg := wire.NewMsgTx(t.Version)
	msg.LockTime = t.LockTime
	for _, in := range t.Inputs {
		msg.AddTxIn(&wire.TxIn{
			PreviousOutPoint: wire.OutPoint{Hash: in.PrevTxHash, Index: in.PrevTxIndex},
			SignatureScript:  in.Signature,
			Sequence:         wire.MaxTxInSequenceNum,
		})
	}
	for _, out := range t.Outputs {
		msg.AddTxOut(wire.NewTxOut(int64(out.Amount), out.Owner))
	}
	return msg
}

func FromMsgTx(msg *wire.MsgTx) *Transaction {
	tx := &Transaction{Version: msg.Version, LockTime: msg.LockTime}
	for _, in := range msg.TxIn {
		tx.Inputs = append(tx.Inputs, Input{
			PrevTxHash:  in.PreviousOutPoint.Hash,
			PrevTxIndex: in.PreviousOutPoint.Index,
			Signature:   in.SignatureScript,
		})
	}
	for _, out := range msg.TxOut {
		tx.Outputs = append(tx.Outputs, Output{Amount: lbcutil.Amount(out.Value), Owner: out.PkScript})
	}
	return tx
}

func (t *Transaction) Bytes() ([]byte, error) {
	msg := t.MsgTx()
	var buf bytes.Buffer
	buf.Grow(msg.SerializeSizeStripped())
	if err := msg.SerializeNoWitness(&buf); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}
