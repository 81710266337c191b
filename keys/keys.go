// Package keys verifies and produces the secp256k1 signatures that authorize spending an output.
// Signatures are DER encoded and sign the double sha256 of the message, the same way lbrycrd
// signs transaction digests.
package keys

import (
	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/btcec"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
)

type Verifier struct{}

// Verify reports whether sig is a valid signature of message by pubKey. Malformed keys or
// signatures verify as false.
func (Verifier) Verify(pubKey, message, sig []byte) bool {
	key, err := btcec.ParsePubKey(pubKey, btcec.S256())
	if err != nil {
		return false
	}
	signature, err := btcec.ParseDERSignature(sig, btcec.S256())
	if err != nil {
		return false
	}
	return signature.Verify(chainhash.DoubleHashB(message), key)
}

type Signer struct {
	key *btcec.PrivateKey
}

func NewSigner() (*Signer, error) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Signer{key: key}, nil
}

// SignerFromBytes loads a signer from a 32-byte private key.
func SignerFromBytes(b []byte) (*Signer, error) {
	if len(b) != btcec.PrivKeyBytesLen {
		return nil, errors.Newf("private key must be %d bytes, got %d", btcec.PrivKeyBytesLen, len(b))
	}
	key, _ := btcec.PrivKeyFromBytes(btcec.S256(), b)
	return &Signer{key: key}, nil
}

func (s *Signer) PubKey() model.PubKey {
	return s.key.PubKey().SerializeCompressed()
}

func (s *Signer) PrivateKeyBytes() []byte {
	return s.key.Serialize()
}

func (s *Signer) Sign(message []byte) ([]byte, error) {
	sig, err := s.key.Sign(chainhash.DoubleHashB(message))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return sig.Serialize(), nil
}

// SignInput signs input i of tx in place.
func (s *Signer) SignInput(tx *model.Transaction, i int) error {
	payload, err := tx.SignablePayload(i)
	if err != nil {
		return err
	}
	sig, err := s.Sign(payload)
	if err != nil {
		return err
	}
	tx.Inputs[i].Signature = sig
	return nil
}
