package storage

import (
	"github.com/OdyseeTeam/fast-utxo/blockchain"
	"github.com/OdyseeTeam/fast-utxo/blockchain/model"

	"github.com/cockroachdb/errors"
	"github.com/genjidb/genji"
	"github.com/genjidb/genji/document"
	"github.com/genjidb/genji/types"
	"github.com/sirupsen/logrus"
)

// Journal records what happened to every batch in a genji database so it can be queried later.
type Journal struct {
	DB *genji.DB
}

// AcceptedTx is one row of the accepted table.
type AcceptedTx struct {
	Batch   int64
	Hash    string
	Fee     int64
	Inputs  int64
	Outputs int64
}

// OpenJournal opens or creates the journal at path. ":memory:" keeps it in memory.
func OpenJournal(path string) (*Journal, error) {
	db, err := genji.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening journal %s", path)
	}

	for _, table := range []string{"batches", "accepted", "rejected"} {
		err = db.Exec("CREATE TABLE IF NOT EXISTS " + table)
		if err != nil {
			db.Close()
			return nil, errors.WithStack(err)
		}
	}
	return &Journal{DB: db}, nil
}

func (j *Journal) Close() error {
	return errors.WithStack(j.DB.Close())
}

// RecordBatch stores the batch summary and one row per accepted transaction.
func (j *Journal) RecordBatch(r blockchain.Result) error {
	tx, err := j.DB.Begin(true)
	if err != nil {
		return errors.WithStack(err)
	}
	defer tx.Rollback()

	err = tx.Exec(`INSERT INTO batches (number, proposed, accepted, fees) VALUES (?, ?, ?, ?)`,
		int64(r.Number), int64(len(r.Proposed)), int64(len(r.Accepted)), int64(r.TotalFees()))
	if err != nil {
		return errors.WithStack(err)
	}

	for i, t := range r.Accepted {
		var fee int64
		if i < len(r.Fees) {
			fee = int64(r.Fees[i])
		}
		err = tx.Exec(`INSERT INTO accepted (batch, hash, fee, inputs, outputs) VALUES (?, ?, ?, ?, ?)`,
			int64(r.Number), t.Hash().String(), fee, int64(len(t.Inputs)), int64(len(t.Outputs)))
		if err != nil {
			return errors.WithStack(err)
		}
	}

	logrus.Debugf("journaled batch %d", r.Number)
	return errors.WithStack(tx.Commit())
}

func (j *Journal) RecordRejection(batch int, t *model.Transaction, reason error) error {
	err := j.DB.Exec(`INSERT INTO rejected (batch, hash, reason) VALUES (?, ?, ?)`,
		int64(batch), t.Hash().String(), reason.Error())
	return errors.WithStack(err)
}

// Accepted returns the transactions accepted in a batch.
func (j *Journal) Accepted(batch int) ([]AcceptedTx, error) {
	res, err := j.DB.Query(`SELECT batch, hash, fee, inputs, outputs FROM accepted WHERE batch = ?`, int64(batch))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer res.Close()

	var rows []AcceptedTx
	err = res.Iterate(func(d types.Document) error {
		var row AcceptedTx
		if err := document.StructScan(d, &row); err != nil {
			return errors.WithStack(err)
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}
