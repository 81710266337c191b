package loader

import (
	"path"

	"github.com/OdyseeTeam/fast-utxo/blockchain"
	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/blockchain/stream"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

var parallelFilesToLoad = 4

type decoded struct {
	file    string
	batches []*model.Batch
	err     error
}

// LoadBatches applies every batch in files to the ledger, file by file and in file order. Files
// are decoded ahead in parallel but batches are applied one at a time. maxBatches > 0 stops after
// that many batches. It returns how many batches were applied.
func LoadBatches(ledger blockchain.Ledger, files []string, maxBatches int) (int, error) {
	results := make([]chan decoded, len(files))
	sem := make(chan struct{}, parallelFilesToLoad)
	done := make(chan struct{})
	defer close(done)

	for i, file := range files {
		results[i] = make(chan decoded, 1)
		go worker(i, file, sem, done, results[i])
	}

	applied := 0
	for _, result := range results {
		d := <-result
		if d.err != nil {
			return applied, d.err
		}

		for _, batch := range d.batches {
			if maxBatches > 0 && applied >= maxBatches {
				return applied, nil
			}
			if _, err := ledger.AcceptBatch(batch.Transactions); err != nil {
				return applied, errors.Wrapf(err, "%s batch %d", path.Base(d.file), batch.Number)
			}
			applied++
		}
		logrus.Infof("file %s: %d batches, %d applied so far", path.Base(d.file), len(d.batches), applied)
	}
	return applied, nil
}

func worker(workerNum int, file string, sem chan struct{}, done <-chan struct{}, result chan<- decoded) {
	select {
	case sem <- struct{}{}:
	case <-done:
		return
	}
	defer func() { <-sem }()

	logrus.Debugf("Worker %d: decoding %s", workerNum, file)
	batchStream, err := stream.New(file, nil)
	if err != nil {
		result <- decoded{file: file, err: err}
		return
	}
	batches, err := stream.ReadAll(batchStream)
	if err != nil {
		err = errors.Wrapf(err, "decoding %s", file)
	}
	result <- decoded{file: file, batches: batches, err: err}
}
