package storage

import (
	"encoding/binary"

	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/utxo"

	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
	"github.com/lbryio/lbcutil"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// utxo records are keyed 'u' | txid (32) | index (4, big endian) so a prefix scan returns them
// in outpoint order. The value is the amount (8, little endian) followed by the owner key.
var utxoPrefix = []byte("u")

const (
	keyLen      = 1 + chainhash.HashSize + 4
	minValueLen = 8
)

// Snapshots keeps the pool between runs in a leveldb database.
type Snapshots struct {
	db *leveldb.DB
}

func OpenSnapshots(dir string) (*Snapshots, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening snapshot db %s", dir)
	}
	return &Snapshots{db: db}, nil
}

func (s *Snapshots) Close() error {
	return errors.WithStack(s.db.Close())
}

// Save replaces the stored pool with pool in one atomic write.
func (s *Snapshots) Save(pool *utxo.Pool) error {
	batch := new(leveldb.Batch)

	iter := s.db.NewIterator(util.BytesPrefix(utxoPrefix), nil)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return errors.WithStack(err)
	}

	pool.Iterate(func(o model.Outpoint, out model.Output) bool {
		batch.Put(encodeKey(o), encodeValue(out))
		return true
	})

	logrus.Debugf("saving %d unspent outputs", pool.Len())
	return errors.WithStack(s.db.Write(batch, nil))
}

// Load reads the stored pool. An empty database gives an empty pool.
func (s *Snapshots) Load() (*utxo.Pool, error) {
	pool := utxo.NewPool()

	iter := s.db.NewIterator(util.BytesPrefix(utxoPrefix), nil)
	defer iter.Release()
	for iter.Next() {
		// Remember that the contents of the returned slice should not be modified, and
		// only valid until the next call to Next.
		o, err := decodeKey(iter.Key())
		if err != nil {
			return nil, err
		}
		out, err := decodeValue(iter.Value())
		if err != nil {
			return nil, errors.Wrapf(err, "%s", o)
		}
		pool.Add(o, out)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.WithStack(err)
	}

	logrus.Debugf("loaded %d unspent outputs", pool.Len())
	return pool, nil
}

func encodeKey(o model.Outpoint) []byte {
	key := make([]byte, keyLen)
	copy(key, utxoPrefix)
	copy(key[1:], o.Hash[:])
	binary.BigEndian.PutUint32(key[1+chainhash.HashSize:], o.Index)
	return key
}

func decodeKey(key []byte) (model.Outpoint, error) {
	if len(key) != keyLen {
		return model.Outpoint{}, errors.Newf("utxo key is %d bytes, want %d", len(key), keyLen)
	}
	var o model.Outpoint
	copy(o.Hash[:], key[1:1+chainhash.HashSize])
	o.Index = binary.BigEndian.Uint32(key[1+chainhash.HashSize:])
	return o, nil
}

func encodeValue(out model.Output) []byte {
	value := make([]byte, minValueLen+len(out.Owner))
	binary.LittleEndian.PutUint64(value, uint64(out.Amount))
	copy(value[minValueLen:], out.Owner)
	return value
}

func decodeValue(value []byte) (model.Output, error) {
	if len(value) < minValueLen {
		return model.Output{}, errors.Newf("utxo value is %d bytes, want at least %d", len(value), minValueLen)
	}
	return model.Output{
		Amount: lbcutil.Amount(int64(binary.LittleEndian.Uint64(value))),
		Owner:  append(model.PubKey(nil), value[minValueLen:]...),
	}, nil
}
