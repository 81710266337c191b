package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/lbryio/lbcd/chaincfg"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
	"github.com/lbryio/lbcutil"
	"golang.org/x/crypto/ripemd160"
)

type Script []byte

func (s Script) String() string { return hex.EncodeToString(s) }
func (s Script) Bytes() []byte  { return s }

// PubKey is a serialized secp256k1 public key. It is the owner of an output and the key an
// input's signature must verify against.
type PubKey []byte

func (p PubKey) String() string { return hex.EncodeToString(p) }
func (p PubKey) Bytes() []byte  { return p }

// Hash160 is ripemd160(sha256(key)), the hash pay-to-pubkey-hash addresses commit to.
func (p PubKey) Hash160() []byte {
	s := sha256.Sum256(p)
	r := ripemd160.New()
	r.Write(s[:])
	return r.Sum(nil)
}

// Address renders the key as a pay-to-pubkey-hash address on the given network.
func (p PubKey) Address(params *chaincfg.Params) (lbcutil.Address, error) {
	return lbcutil.NewAddressPubKeyHash(p.Hash160(), params)
}

// Outpoint identifies one output of one transaction. It is a value type and can be used as a
// map key.
type Outpoint struct {
	Hash  chainhash.Hash
	Index uint32
}

func NewOutpoint(hash chainhash.Hash, index uint32) Outpoint {
	return Outpoint{Hash: hash, Index: index}
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash, o.Index)
}

// Less orders outpoints by hash bytes, then index.
func (o Outpoint) Less(other Outpoint) bool {
	if c := CompareHashes(o.Hash, other.Hash); c != 0 {
		return c < 0
	}
	return o.Index < other.Index
}

// CompareHashes compares two hashes byte by byte in their internal order.
func CompareHashes(a, b chainhash.Hash) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
