package main

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/storage"

	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg"
	"github.com/lbryio/lbcutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newBalancesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Write the balance of every owner address in the pool as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := networkParams()
			if err != nil {
				return err
			}
			snapshots, err := storage.OpenSnapshots(viper.GetString("pool.dir"))
			if err != nil {
				return err
			}
			defer snapshots.Close()
			pool, err := snapshots.Load()
			if err != nil {
				return err
			}

			balances := getBalances(pool.Balances(), params)

			out, _ := cmd.Flags().GetString("out")
			if out == "" || out == "-" {
				return balancesToCSV(balances, cmd.OutOrStdout())
			}
			f, err := os.Create(out)
			if err != nil {
				return errors.WithStack(err)
			}
			defer f.Close()
			logrus.Printf("saving %d balances to %s", len(balances), out)
			return balancesToCSV(balances, f)
		},
	}
	cmd.Flags().String("out", "", "output file, stdout if empty")
	return cmd
}

// getBalances turns per-owner-key totals into per-address totals. Keys that do not parse go
// under "unknown".
func getBalances(byOwner map[string]lbcutil.Amount, params *chaincfg.Params) map[string]lbcutil.Amount {
	balances := make(map[string]lbcutil.Amount)
	for owner, amount := range byOwner {
		address := "unknown"
		key, err := hex.DecodeString(owner)
		if err == nil {
			addr, err := model.PubKey(key).Address(params)
			if err == nil {
				address = addr.EncodeAddress()
			} else {
				logrus.Debugf("owner %s: %v", owner, err)
			}
		}
		balances[address] += amount
	}
	return balances
}

func balancesToCSV(balances map[string]lbcutil.Amount, w io.Writer) error {
	addresses := make([]string, 0, len(balances))
	for address := range balances {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	writer := csv.NewWriter(w)
	for _, address := range addresses {
		if balances[address] <= 0 {
			continue
		}
		err := writer.Write([]string{address, fmt.Sprintf("%d", int64(balances[address]))})
		if err != nil {
			return errors.WithStack(err)
		}
	}
	writer.Flush()
	return errors.WithStack(writer.Error())
}
