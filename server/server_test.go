package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/OdyseeTeam/fast-utxo/blockchain"
	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/internal/testutil"
	"github.com/OdyseeTeam/fast-utxo/storage"
	"github.com/OdyseeTeam/fast-utxo/utxo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (http.Handler, *model.Transaction, *owners) {
	a := testutil.Key(t)
	b := testutil.Key(t)
	pool := utxo.NewPool()
	t0 := testutil.Fund(pool, "T0", 10, a)

	journal, err := storage.OpenJournal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	ledger, err := blockchain.New(pool, blockchain.Config{})
	require.NoError(t, err)
	ledger.OnBatch(func(r blockchain.Result) { require.NoError(t, journal.RecordBatch(r)) })

	tx := testutil.Spend(t, a, []model.Outpoint{t0}, testutil.Out(6, b), testutil.Out(1, a))
	_, err = ledger.AcceptBatch([]*model.Transaction{tx})
	require.NoError(t, err)

	return Handler(journal, ledger), tx, &owners{a: a.PubKey().String(), b: b.PubKey().String()}
}

type owners struct{ a, b string }

func TestBalances(t *testing.T) {
	h, _, k := setup(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/balances", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, map[string]int64{k.a: 1, k.b: 6}, got)
}

func TestSQL(t *testing.T) {
	h, tx, _ := setup(t)

	q := url.Values{"query": {"SELECT hash, fee FROM accepted"}}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sql?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, tx.Hash().String(), rows[0]["hash"])
	assert.EqualValues(t, 3, rows[0]["fee"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sql?query=SELEC", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
