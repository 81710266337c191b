package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/OdyseeTeam/fast-utxo/blockchain"
	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/keys"
	"github.com/OdyseeTeam/fast-utxo/loader"
	"github.com/OdyseeTeam/fast-utxo/server"
	"github.com/OdyseeTeam/fast-utxo/storage"

	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var profiler interface{ Stop() }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Errorf("%+v", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	viper.SetDefault("pool.dir", "./pool")
	viper.SetDefault("journal.path", "")
	viper.SetDefault("ledger.policy", "maxfee")
	viper.SetDefault("ledger.workers", 1)
	viper.SetDefault("network", "mainnet")
	viper.SetDefault("log-level", "info")
	viper.SetDefault("server.addr", ":8855")
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fast-utxo",
		Short: "Validate batches of transactions against a pool of unspent outputs",
		Long: `fast-utxo keeps a pool of unspent outputs in leveldb and applies batches of
signed transactions to it. Invalid transactions are dropped and, when two valid
transactions claim the same output, the one paying the higher fee wins.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(viper.GetString("log-level"))
			if err != nil {
				return errors.WithStack(err)
			}
			logrus.SetLevel(level)
			if p, _ := cmd.Flags().GetBool("profile"); p {
				profiler = profile.Start(profile.MemProfile, profile.ProfilePath("."))
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if profiler != nil {
				profiler.Stop()
			}
		},
	}

	cmd.AddCommand(newApplyCmd())
	cmd.AddCommand(newBalancesCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newKeygenCmd())
	cmd.AddCommand(newFundCmd())
	cmd.AddCommand(newSpendCmd())

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/fast-utxo.yaml or ./fast-utxo.yaml)")
	cmd.PersistentFlags().String("pool-dir", "./pool", "leveldb directory holding the unspent output pool")
	cmd.PersistentFlags().String("journal", "", `genji journal path, ":memory:" for a throwaway one, empty to disable`)
	cmd.PersistentFlags().String("network", "mainnet", "network used to render addresses (mainnet, testnet, regtest)")
	cmd.PersistentFlags().String("log-level", "info", "log level")
	cmd.PersistentFlags().Bool("profile", false, "write a memory profile to the current directory")

	viper.BindPFlag("pool.dir", cmd.PersistentFlags().Lookup("pool-dir"))
	viper.BindPFlag("journal.path", cmd.PersistentFlags().Lookup("journal"))
	viper.BindPFlag("network", cmd.PersistentFlags().Lookup("network"))
	viper.BindPFlag("log-level", cmd.PersistentFlags().Lookup("log-level"))

	return cmd
}

// initConfig reads fast-utxo.yaml from the home or current directory, if there is one, and
// FASTUTXO_* environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("fast-utxo")
	}

	viper.SetEnvPrefix("FASTUTXO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			logrus.Errorf("reading config: %v", err)
		}
	}
}

func networkParams() (*chaincfg.Params, error) {
	switch strings.ToLower(viper.GetString("network")) {
	case "mainnet", "":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, errors.Newf("unknown network %q", viper.GetString("network"))
	}
}

// openLedger loads the pool snapshot and builds a ledger on it. The journal is nil when
// disabled.
func openLedger() (*storage.Snapshots, blockchain.Ledger, *storage.Journal, error) {
	snapshots, err := storage.OpenSnapshots(viper.GetString("pool.dir"))
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := snapshots.Load()
	if err != nil {
		snapshots.Close()
		return nil, nil, nil, err
	}

	ledger, err := blockchain.New(pool, blockchain.Config{
		Policy:  viper.GetString("ledger.policy"),
		Workers: viper.GetInt("ledger.workers"),
	})
	if err != nil {
		snapshots.Close()
		return nil, nil, nil, err
	}

	var journal *storage.Journal
	if path := viper.GetString("journal.path"); path != "" {
		journal, err = storage.OpenJournal(path)
		if err != nil {
			snapshots.Close()
			return nil, nil, nil, err
		}
		batch := 0
		ledger.OnBatch(func(r blockchain.Result) {
			batch = r.Number
			if err := journal.RecordBatch(r); err != nil {
				logrus.Errorf("%+v", err)
			}
		})
		ledger.OnReject(func(tx *model.Transaction, reason error) {
			if err := journal.RecordRejection(batch+1, tx, reason); err != nil {
				logrus.Errorf("%+v", err)
			}
		})
	}

	return snapshots, ledger, journal, nil
}

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <batch file>...",
		Short: "Apply batch files to the pool, in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshots, ledger, journal, err := openLedger()
			if err != nil {
				return err
			}
			defer snapshots.Close()
			if journal != nil {
				defer journal.Close()
			}

			accepted := 0
			ledger.OnAccept(func(tx *model.Transaction) {
				accepted++
				logrus.Debugf("accepted %s", tx.Hash())
			})

			maxBatches, _ := cmd.Flags().GetInt("max-batches")
			applied, err := loader.LoadBatches(ledger, args, maxBatches)
			if err != nil {
				return err
			}

			pool := ledger.Pool()
			if err := snapshots.Save(pool); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d batches, accepted %d transactions, %d unspent outputs\n", applied, accepted, pool.Len())
			return nil
		},
	}
	cmd.Flags().String("policy", "maxfee", "acceptance policy (maxfee, inorder)")
	cmd.Flags().Int("workers", 1, "transactions validated at once")
	cmd.Flags().Int("max-batches", 0, "stop after this many batches, 0 for all")
	viper.BindPFlag("ledger.policy", cmd.Flags().Lookup("policy"))
	viper.BindPFlag("ledger.workers", cmd.Flags().Lookup("workers"))
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pool balances and journal queries over http",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshots, ledger, journal, err := openLedger()
			if err != nil {
				return err
			}
			defer snapshots.Close()
			if journal == nil {
				journal, err = storage.OpenJournal(":memory:")
				if err != nil {
					return err
				}
			}
			defer journal.Close()

			srv := server.Start(viper.GetString("server.addr"), journal, ledger)
			logrus.Infof("serving on %s", viper.GetString("server.addr"))

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			return errors.WithStack(srv.Close())
		},
	}
	cmd.Flags().String("addr", ":8855", "listen address")
	viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := networkParams()
			if err != nil {
				return err
			}
			s, err := keys.NewSigner()
			if err != nil {
				return err
			}
			addr, err := s.PubKey().Address(params)
			if err != nil {
				return errors.WithStack(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "private %s\npublic  %s\naddress %s\n",
				hex.EncodeToString(s.PrivateKeyBytes()), s.PubKey(), addr.EncodeAddress())
			return nil
		},
	}
}
