package model

import "github.com/lbryio/lbcd/chaincfg/chainhash"

type Input struct {
	PrevTxHash  chainhash.Hash
	PrevTxIndex uint32
	Signature   Script
}

// Outpoint is the output this input claims.
func (i Input) Outpoint() Outpoint {
	return Outpoint{Hash: i.PrevTxHash, Index: i.PrevTxIndex}
}
