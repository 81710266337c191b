package validator

import (
	"math"
	"testing"

	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/OdyseeTeam/fast-utxo/internal/testutil"
	"github.com/OdyseeTeam/fast-utxo/keys"
	"github.com/OdyseeTeam/fast-utxo/utxo"
	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	alice := testutil.Key(t)
	bob := testutil.Key(t)

	pool := utxo.NewPool()
	a := testutil.Fund(pool, "a", 10, alice)
	b := testutil.Fund(pool, "b", 5, alice)
	c := testutil.Fund(pool, "c", 7, bob)
	missing := testutil.Coin("missing", 0)

	v := New(keys.Verifier{})

	tests := []struct {
		name string
		tx   *model.Transaction
		want error
	}{
		{
			name: "valid with fee",
			tx:   testutil.Spend(t, alice, []model.Outpoint{a, b}, testutil.Out(12, bob)),
		},
		{
			name: "valid zero fee",
			tx:   testutil.Spend(t, alice, []model.Outpoint{a}, testutil.Out(4, bob), testutil.Out(6, alice)),
		},
		{
			name: "valid no outputs",
			tx:   testutil.Spend(t, alice, []model.Outpoint{a}),
		},
		{
			name: "missing input",
			tx:   testutil.Spend(t, alice, []model.Outpoint{a, missing}, testutil.Out(1, bob)),
			want: ErrMissingInput,
		},
		{
			name: "signed by wrong key",
			tx:   testutil.Spend(t, alice, []model.Outpoint{c}, testutil.Out(1, alice)),
			want: ErrBadSignature,
		},
		{
			name: "double claim",
			tx:   testutil.Spend(t, alice, []model.Outpoint{a, a}, testutil.Out(1, bob)),
			want: ErrDoubleClaim,
		},
		{
			name: "negative output",
			tx:   testutil.Spend(t, alice, []model.Outpoint{a}, testutil.Out(-1, bob), testutil.Out(2, bob)),
			want: ErrNegativeOutput,
		},
		{
			name: "outputs exceed inputs",
			tx:   testutil.Spend(t, alice, []model.Outpoint{a}, testutil.Out(11, bob)),
			want: ErrInsufficientInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Check(tt.tx, pool)
			if tt.want == nil {
				assert.NoError(t, err)
				assert.True(t, v.IsValid(tt.tx, pool))
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.False(t, v.IsValid(tt.tx, pool))
		})
	}
}

func TestConservationIgnoresSignatures(t *testing.T) {
	alice := testutil.Key(t)
	pool := utxo.NewPool()
	a := testutil.Fund(pool, "a", 5, alice)

	tx := testutil.Spend(t, alice, []model.Outpoint{a}, testutil.Out(3, alice), testutil.Out(3, alice))
	assert.False(t, New(keys.Verifier{}).IsValid(tx, pool))
	assert.False(t, New(acceptAll{}).IsValid(tx, pool))
}

func TestTamperedTransaction(t *testing.T) {
	alice := testutil.Key(t)
	bob := testutil.Key(t)
	pool := utxo.NewPool()
	a := testutil.Fund(pool, "a", 10, alice)

	tx := testutil.Spend(t, alice, []model.Outpoint{a}, testutil.Out(7, bob))
	v := New(keys.Verifier{})
	require.True(t, v.IsValid(tx, pool))

	tx.Outputs[0].Owner = alice.PubKey()
	assert.True(t, errors.Is(v.Check(tx, pool), ErrBadSignature))
}

func TestCheckOrder(t *testing.T) {
	alice := testutil.Key(t)
	pool := utxo.NewPool()
	a := testutil.Fund(pool, "a", 1, alice)

	// breaks every rule after existence; the signature rule is reported first
	tx := model.NewTransaction().AddInput(a).AddInput(a).AddOutput(-5, alice.PubKey()).AddOutput(100, alice.PubKey())
	assert.True(t, errors.Is(New(keys.Verifier{}).Check(tx, pool), ErrBadSignature))
	assert.True(t, errors.Is(New(acceptAll{}).Check(tx, pool), ErrDoubleClaim))
}

func TestCheckDoesNotMutatePool(t *testing.T) {
	alice := testutil.Key(t)
	pool := utxo.NewPool()
	a := testutil.Fund(pool, "a", 10, alice)
	testutil.Fund(pool, "b", 3, alice)
	before := pool.AllRefs()

	v := New(keys.Verifier{})
	v.IsValid(testutil.Spend(t, alice, []model.Outpoint{a}, testutil.Out(9, alice)), pool)
	v.IsValid(testutil.Spend(t, alice, []model.Outpoint{a, testutil.Coin("x", 1)}), pool)

	assert.Equal(t, before, pool.AllRefs())
	out, err := pool.Get(a)
	require.NoError(t, err)
	assert.Equal(t, lbcutil.Amount(10), out.Amount)
}

func TestOverflow(t *testing.T) {
	alice := testutil.Key(t)
	pool := utxo.NewPool()
	a := testutil.Fund(pool, "a", 10, alice)

	tx := testutil.Spend(t, alice, []model.Outpoint{a},
		testutil.Out(1<<62, alice), testutil.Out(1<<62, alice))
	assert.True(t, errors.Is(New(keys.Verifier{}).Check(tx, pool), ErrOverflow))
}

func TestFee(t *testing.T) {
	alice := testutil.Key(t)
	pool := utxo.NewPool()
	a := testutil.Fund(pool, "a", 10, alice)

	tx := testutil.Spend(t, alice, []model.Outpoint{a}, testutil.Out(7, alice))
	assert.Equal(t, lbcutil.Amount(3), Fee(tx, pool))

	unresolved := testutil.Spend(t, alice, []model.Outpoint{a, testutil.Coin("gone", 0)}, testutil.Out(7, alice))
	assert.Equal(t, lbcutil.Amount(3), Fee(unresolved, pool))

	pool.Remove(a)
	assert.Equal(t, lbcutil.Amount(-7), Fee(tx, pool))
}

func TestFeeSaturates(t *testing.T) {
	alice := testutil.Key(t)
	pool := utxo.NewPool()
	a := testutil.Fund(pool, "a", math.MaxInt64, alice)
	b := testutil.Fund(pool, "b", 5, alice)

	rich := testutil.Spend(t, alice, []model.Outpoint{a, b}, testutil.Out(1, alice))
	assert.Equal(t, lbcutil.Amount(math.MaxInt64-1), Fee(rich, pool))

	greedy := testutil.Spend(t, alice, nil,
		testutil.Out(1<<62, alice), testutil.Out(1<<62, alice), testutil.Out(1<<62, alice))
	assert.Equal(t, lbcutil.Amount(math.MinInt64), Fee(greedy, pool))

	tx := model.NewTransaction().AddOutput(math.MinInt64, alice.PubKey())
	assert.Equal(t, lbcutil.Amount(math.MaxInt64), Fee(tx, pool))
}

type payloadFunc func(tx *model.Transaction, i int) ([]byte, error)

func (f payloadFunc) SignablePayload(tx *model.Transaction, i int) ([]byte, error) { return f(tx, i) }

func TestWithPayloader(t *testing.T) {
	alice := testutil.Key(t)
	pool := utxo.NewPool()
	a := testutil.Fund(pool, "a", 10, alice)
	tx := testutil.Spend(t, alice, []model.Outpoint{a}, testutil.Out(7, alice))

	failing := New(keys.Verifier{}, WithPayloader(payloadFunc(func(*model.Transaction, int) ([]byte, error) {
		return nil, errors.New("no payload")
	})))
	assert.True(t, errors.Is(failing.Check(tx, pool), ErrBadSignature))

	wrong := New(keys.Verifier{}, WithPayloader(payloadFunc(func(*model.Transaction, int) ([]byte, error) {
		return []byte("something else"), nil
	})))
	assert.False(t, wrong.IsValid(tx, pool))
}

type acceptAll struct{}

func (acceptAll) Verify(_, _, _ []byte) bool { return true }
