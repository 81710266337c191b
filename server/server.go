package server

import (
	"encoding/json"
	"net/http"

	"github.com/OdyseeTeam/fast-utxo/blockchain"
	"github.com/OdyseeTeam/fast-utxo/storage"

	"github.com/cockroachdb/errors"
	"github.com/genjidb/genji/document"
	"github.com/genjidb/genji/types"
	"github.com/sirupsen/logrus"
)

// Start serves the journal and the ledger's balances on addr in the background.
func Start(addr string, journal *storage.Journal, ledger blockchain.Ledger) *http.Server {
	srv := &http.Server{Addr: addr, Handler: Handler(journal, ledger)}
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Error(err)
		}
	}()
	return srv
}

func Handler(journal *storage.Journal, ledger blockchain.Ledger) http.Handler {
	httpServeMux := http.NewServeMux()
	httpServeMux.Handle("/sql", query(journal))
	httpServeMux.Handle("/balances", balances(ledger))
	return httpServeMux
}

func query(journal *storage.Journal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.FormValue("query")
		res, err := journal.DB.Query(q)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(err.Error()))
			return
		}
		defer res.Close()

		var results = make([]map[string]interface{}, 0)
		err = res.Iterate(func(d types.Document) error {
			var m map[string]interface{}
			err := document.MapScan(d, &m)
			if err != nil {
				return errors.WithStack(err)
			}
			results = append(results, m)
			return nil
		})
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(err.Error()))
			return
		}

		writeJSON(w, results)
	})
}

// balances returns deweys per owner key.
func balances(ledger blockchain.Ledger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := make(map[string]int64)
		for owner, amount := range ledger.Pool().Balances() {
			out[owner] = int64(amount)
		}
		writeJSON(w, out)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}
