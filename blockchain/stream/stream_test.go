package stream

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/internal/testutil"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBatches(t *testing.T) [][]*model.Transaction {
	a := testutil.Key(t)
	b := testutil.Key(t)
	c0, c1 := testutil.Coin("c", 0), testutil.Coin("c", 1)

	first := []*model.Transaction{
		testutil.Spend(t, a, []model.Outpoint{c0}, testutil.Out(7, b)),
		testutil.Spend(t, a, []model.Outpoint{c0, c1}, testutil.Out(9, b), testutil.Out(1, a)),
	}
	second := []*model.Transaction{
		testutil.Spend(t, b, nil, testutil.Out(0, a)),
	}
	return [][]*model.Transaction{first, second, nil}
}

func TestRoundTrip(t *testing.T) {
	batches := sampleBatches(t)

	var buf bytes.Buffer
	for _, txs := range batches {
		require.NoError(t, Write(&buf, txs))
	}
	// zero padding after the last batch is skipped
	buf.Write(make([]byte, 16))

	bs, err := New("memory", buf.Bytes())
	require.NoError(t, err)
	got, err := ReadAll(bs)
	require.NoError(t, err)
	require.Len(t, got, len(batches))

	for n, batch := range got {
		assert.Equal(t, n, batch.Number)
		require.Equal(t, len(batches[n]), batch.Len())
		for i, tx := range batch.Transactions {
			assert.Equal(t, batches[n][i].Hash(), tx.Hash())
			assert.Equal(t, batches[n][i].Outputs, tx.Outputs)
			assert.Equal(t, batches[n][i].Inputs, tx.Inputs)
		}
	}

	_, err = bs.NextBatch()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batches.dat")
	f, err := os.Create(path)
	require.NoError(t, err)
	for _, txs := range sampleBatches(t) {
		require.NoError(t, Write(f, txs))
	}
	require.NoError(t, f.Close())

	bs, err := New(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, bs.BatchFile())
	got, err := ReadAll(bs)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = New(filepath.Join(t.TempDir(), "missing.dat"), nil)
	assert.Error(t, err)
}

func TestTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleBatches(t)[0]))
	data := buf.Bytes()

	for _, cut := range []int{2, 6, len(data) - 1} {
		bs, err := New("memory", data[:cut])
		require.NoError(t, err)
		_, err = bs.NextBatch()
		require.Error(t, err, "cut at %d", cut)
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "cut at %d: %v", cut, err)
	}
}

func TestCorruptPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleBatches(t)[1]))
	data := buf.Bytes()

	// claim more transactions than the payload could hold
	bad := append([]byte{}, data...)
	bad[8] = 0xfc
	bs, err := New("memory", bad)
	require.NoError(t, err)
	_, err = bs.NextBatch()
	assert.Error(t, err)

	// trailing bytes inside the frame
	extra := append([]byte{}, data...)
	extra[4]++
	extra = append(extra, 0)
	bs, err = New("memory", extra)
	require.NoError(t, err)
	_, err = bs.NextBatch()
	assert.Error(t, err)
}
