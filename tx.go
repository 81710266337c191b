package main

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/blockchain/stream"
	"github.com/OdyseeTeam/fast-utxo/keys"
	"github.com/OdyseeTeam/fast-utxo/storage"

	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
	"github.com/lbryio/lbcd/wire"
	"github.com/lbryio/lbcutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newFundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fund <public key> <amount>",
		Short: "Add an unspent output owned by a public key to the pool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := hex.DecodeString(args[0])
			if err != nil {
				return errors.Wrap(err, "public key")
			}
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return errors.Wrap(err, "amount")
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

			op := fundingOutpoint(owner, amount, pool.Len())
			pool.Add(op, model.Output{Amount: lbcutil.Amount(amount), Owner: owner})
			if err := snapshots.Save(pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), op)
			return nil
		},
	}
}

// fundingOutpoint derives an outpoint no transaction can produce, from the owner, the amount
// and the pool size.
func fundingOutpoint(owner []byte, amount int64, n int) model.Outpoint {
	seed := make([]byte, 0, len(owner)+16)
	seed = append(seed, owner...)
	seed = binary.BigEndian.AppendUint64(seed, uint64(amount))
	seed = binary.BigEndian.AppendUint64(seed, uint64(n))
	return model.NewOutpoint(chainhash.DoubleHashH(seed), 0)
}

func newSpendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spend",
		Short: "Build and sign a transaction, printing it as hex",
		RunE: func(cmd *cobra.Command, args []string) error {
			keyHex, _ := cmd.Flags().GetString("key")
			ins, _ := cmd.Flags().GetStringSlice("in")
			outs, _ := cmd.Flags().GetStringSlice("to")

			key, err := hex.DecodeString(keyHex)
			if err != nil {
				return errors.Wrap(err, "private key")
			}
			signer, err := keys.SignerFromBytes(key)
			if err != nil {
				return err
			}

			tx := model.NewTransaction()
			for _, in := range ins {
				op, err := parseOutpoint(in)
				if err != nil {
					return err
				}
				tx.AddInput(op)
			}
			for _, out := range outs {
				owner, amount, err := parseOutput(out)
				if err != nil {
					return err
				}
				tx.AddOutput(amount, owner)
			}
			for i := range tx.Inputs {
				if err := signer.SignInput(tx, i); err != nil {
					return err
				}
			}

			b, err := tx.Bytes()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(b))
			return nil
		},
	}
	cmd.Flags().String("key", "", "hex private key that owns every input")
	cmd.Flags().StringSlice("in", nil, "outpoint to spend, as hash:index")
	cmd.Flags().StringSlice("to", nil, "output to create, as publickey:amount")
	cmd.MarkFlagRequired("key")

	cmd.AddCommand(&cobra.Command{
		Use:   "pack <batch file> <tx hex>...",
		Short: "Append a batch made of the given transactions to a batch file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txs := make([]*model.Transaction, 0, len(args)-1)
			for _, arg := range args[1:] {
				tx, err := parseTx(arg)
				if err != nil {
					return err
				}
				txs = append(txs, tx)
			}

			f, err := os.OpenFile(args[0], os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				return errors.WithStack(err)
			}
			defer f.Close()
			return stream.Write(f, txs)
		},
	})
	return cmd
}

func parseOutpoint(s string) (model.Outpoint, error) {
	hash, index, ok := strings.Cut(s, ":")
	if !ok {
		return model.Outpoint{}, errors.Newf("outpoint %q is not hash:index", s)
	}
	h, err := chainhash.NewHashFromStr(hash)
	if err != nil {
		return model.Outpoint{}, errors.Wrapf(err, "outpoint %q", s)
	}
	n, err := strconv.ParseUint(index, 10, 32)
	if err != nil {
		return model.Outpoint{}, errors.Wrapf(err, "outpoint %q", s)
	}
	return model.NewOutpoint(*h, uint32(n)), nil
}

func parseOutput(s string) (model.PubKey, lbcutil.Amount, error) {
	owner, amount, ok := strings.Cut(s, ":")
	if !ok {
		return nil, 0, errors.Newf("output %q is not publickey:amount", s)
	}
	key, err := hex.DecodeString(owner)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "output %q", s)
	}
	n, err := strconv.ParseInt(amount, 10, 64)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "output %q", s)
	}
	return key, lbcutil.Amount(n), nil
}

func parseTx(s string) (*model.Transaction, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "transaction hex")
	}
	msg := &wire.MsgTx{}
	if err := msg.DeserializeNoWitness(bytes.NewReader(b)); err != nil {
		return nil, errors.Wrap(err, "transaction")
	}
	return model.FromMsgTx(msg), nil
}
