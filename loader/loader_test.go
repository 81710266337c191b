package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OdyseeTeam/fast-utxo/blockchain"
	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/blockchain/stream"
	"github.com/OdyseeTeam/fast-utxo/internal/testutil"
	"github.com/OdyseeTeam/fast-utxo/utxo"
	"github.com/lbryio/lbcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, batches ...[]*model.Transaction) string {
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	for _, b := range batches {
		require.NoError(t, stream.Write(f, b))
	}
	require.NoError(t, f.Close())
	return p
}

// a chain of spends across files only works if batches are applied in file order
func chainedFiles(t *testing.T) (*utxo.Pool, []string, *model.Transaction) {
	a := testutil.Key(t)
	pool := utxo.NewPool()
	prev := testutil.Fund(pool, "start", 100, a)

	dir := t.TempDir()
	var files []string
	var last *model.Transaction
	for f := 0; f < 6; f++ {
		var batches [][]*model.Transaction
		for b := 0; b < 2; b++ {
			last = testutil.Spend(t, a, []model.Outpoint{prev}, testutil.Out(lbcutil.Amount(100-(f*2+b+1)), a))
			prev = last.OutpointAt(0)
			batches = append(batches, []*model.Transaction{last})
		}
		files = append(files, writeFile(t, dir, string(rune('a'+f))+".dat", batches...))
	}
	return pool, files, last
}

func TestLoadBatches(t *testing.T) {
	pool, files, last := chainedFiles(t)
	ledger, err := blockchain.New(pool, blockchain.Config{})
	require.NoError(t, err)

	applied, err := LoadBatches(ledger, files, 0)
	require.NoError(t, err)
	assert.Equal(t, 12, applied)

	final := ledger.Pool()
	assert.Equal(t, 1, final.Len())
	assert.True(t, final.Contains(last.OutpointAt(0)))
}

func TestLoadBatchesLimit(t *testing.T) {
	pool, files, last := chainedFiles(t)
	ledger, err := blockchain.New(pool, blockchain.Config{})
	require.NoError(t, err)

	applied, err := LoadBatches(ledger, files, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, applied)
	assert.False(t, ledger.Pool().Contains(last.OutpointAt(0)))
}

func TestLoadBatchesBadFile(t *testing.T) {
	pool, files, _ := chainedFiles(t)
	ledger, err := blockchain.New(pool, blockchain.Config{})
	require.NoError(t, err)

	files = append(files[:2], filepath.Join(t.TempDir(), "missing.dat"))
	applied, err := LoadBatches(ledger, files, 0)
	assert.Error(t, err)
	assert.Equal(t, 4, applied)
}
