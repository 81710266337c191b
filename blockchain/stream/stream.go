// Package stream reads and writes batch files. A batch file holds any number of batches back to
// back, each framed like a block in a block file:
//
//	magic (4 bytes) | size (uint32 LE) | tx count (compact size) | transactions (wire encoding)
//
// where size counts the bytes after the size field.
package stream

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/OdyseeTeam/fast-utxo/blockchain/model"

	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/wire"
	"github.com/valyala/bytebufferpool"
)

var magicNumberConst = []byte{250, 228, 170, 242}

// smallest possible transaction: version, two empty counts, locktime
const minTxSize = 10

type Batches interface {
	// NextBatch returns the next batch, or an error matching io.EOF when there are no more.
	NextBatch() (*model.Batch, error)
	BatchFile() string
}

type batchStream struct {
	batchNr int
	path    string
	file    *os.File
	r       *bufio.Reader
}

// New opens the batch file at path, or reads from data if it is not empty.
func New(path string, data []byte) (Batches, error) {
	if len(data) == 0 {
		file, err := os.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return &batchStream{path: path, file: file, r: bufio.NewReader(file)}, nil
	}

	return &batchStream{path: path, r: bufio.NewReader(bytes.NewReader(data))}, nil
}

func (bs *batchStream) BatchFile() string {
	return bs.path
}

func (bs *batchStream) NextBatch() (*model.Batch, error) {
	magicNumber, err := bs.readMagicNumber()
	if err != nil {
		if errors.Is(err, io.EOF) {
			bs.close()
		}
		return nil, err
	}

	size, err := bs.readUint32()
	if err != nil {
		return nil, err
	}
	if size > wire.MaxMessagePayload {
		return nil, errors.Newf("batch %d is %d bytes, more than the %d allowed", bs.batchNr, size, wire.MaxMessagePayload)
	}

	payload, err := bs.readBytes(int(size))
	if err != nil {
		return nil, err
	}

	batch := &model.Batch{MagicNumber: magicNumber, Size: size, Number: bs.batchNr}
	bs.batchNr++

	r := bytes.NewReader(payload)
	txCnt, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if txCnt > uint64(size)/minTxSize {
		return nil, errors.Newf("batch %d claims %d transactions in %d bytes", batch.Number, txCnt, size)
	}

	batch.Transactions = make([]*model.Transaction, 0, txCnt)
	for i := uint64(0); i < txCnt; i++ {
		msg := &wire.MsgTx{}
		if err := msg.DeserializeNoWitness(r); err != nil {
			return nil, errors.Wrapf(err, "batch %d, transaction %d", batch.Number, i)
		}
		batch.Transactions = append(batch.Transactions, model.FromMsgTx(msg))
	}
	if r.Len() != 0 {
		return nil, errors.Newf("batch %d has %d trailing bytes", batch.Number, r.Len())
	}

	return batch, nil
}

// ReadAll reads every remaining batch.
func ReadAll(bs Batches) ([]*model.Batch, error) {
	var batches []*model.Batch
	for {
		batch, err := bs.NextBatch()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return batches, nil
			}
			return nil, err
		}
		batches = append(batches, batch)
	}
}

// Write appends one batch holding txs to w.
func Write(w io.Writer, txs []*model.Transaction) error {
	payload := bytebufferpool.Get()
	defer bytebufferpool.Put(payload)

	if err := wire.WriteVarInt(payload, 0, uint64(len(txs))); err != nil {
		return errors.WithStack(err)
	}
	for _, tx := range txs {
		if err := tx.MsgTx().SerializeNoWitness(payload); err != nil {
			return errors.WithStack(err)
		}
	}
	if payload.Len() > wire.MaxMessagePayload {
		return errors.Newf("batch of %d transactions is %d bytes, more than the %d allowed", len(txs), payload.Len(), wire.MaxMessagePayload)
	}

	header := make([]byte, 8)
	copy(header, magicNumberConst)
	binary.LittleEndian.PutUint32(header[4:], uint32(payload.Len()))
	if _, err := w.Write(header); err != nil {
		return errors.WithStack(err)
	}
	_, err := w.Write(payload.B)
	return errors.WithStack(err)
}

func (bs *batchStream) close() {
	if bs.file != nil {
		bs.file.Close()
		bs.file = nil
	}
}

func (bs *batchStream) readBytes(toRead int) ([]byte, error) {
	buf := make([]byte, toRead)
	_, err := io.ReadFull(bs.r, buf)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return buf, nil
}

func (bs *batchStream) readUint32() (uint32, error) {
	buf, err := bs.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// readMagicNumber skips ahead to the next magic number. Anything before it, like the zero
// padding at the end of a preallocated file, is ignored.
func (bs *batchStream) readMagicNumber() ([]byte, error) {
	var pos = 0
	for pos < len(magicNumberConst) {
		b, err := bs.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && pos > 0 {
				return nil, errors.WithStack(io.ErrUnexpectedEOF)
			}
			return nil, errors.WithStack(err)
		}
		if b == magicNumberConst[pos] {
			pos++
		} else if b == magicNumberConst[0] {
			pos = 1
		} else {
			pos = 0
		}
	}
	return magicNumberConst, nil
}
