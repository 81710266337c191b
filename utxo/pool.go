// Package utxo holds the set of outputs that are still unspent.
package utxo

import (
	"sort"

	"github.com/OdyseeTeam/fast-utxo/blockchain/model"
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/lbryio/lbcutil"
)

var ErrNotFound = errors.New("utxo not found")

const defaultCapacity = 1024

// Pool maps outpoints to the outputs they reference, one entry per unspent output.
//
// Pool is not safe for concurrent mutation. Concurrent reads are fine as long as nobody writes.
type Pool struct {
	m *swiss.Map[model.Outpoint, model.Output]
}

func NewPool() *Pool {
	return &Pool{m: swiss.NewMap[model.Outpoint, model.Output](defaultCapacity)}
}

// NewPoolFrom builds a pool holding exactly the given outputs.
func NewPoolFrom(outputs map[model.Outpoint]model.Output) *Pool {
	p := NewPool()
	for o, out := range outputs {
		p.Add(o, out)
	}
	return p
}

func (p *Pool) Contains(o model.Outpoint) bool {
	return p.m.Has(o)
}

func (p *Pool) Get(o model.Outpoint) (model.Output, error) {
	out, ok := p.m.Get(o)
	if !ok {
		return model.Output{}, errors.Wrapf(ErrNotFound, "%s", o)
	}
	return out, nil
}

// Add inserts or overwrites the output at o.
func (p *Pool) Add(o model.Outpoint, out model.Output) {
	p.m.Put(o, out)
}

// Remove deletes o. Removing an absent outpoint does nothing.
func (p *Pool) Remove(o model.Outpoint) {
	p.m.Delete(o)
}

func (p *Pool) Len() int { return p.m.Count() }

// Iterate calls fn for every unspent output until fn returns false. Order is unspecified.
func (p *Pool) Iterate(fn func(o model.Outpoint, out model.Output) bool) {
	p.m.Iter(func(o model.Outpoint, out model.Output) bool {
		return !fn(o, out)
	})
}

// AllRefs returns every unspent outpoint, sorted.
func (p *Pool) AllRefs() []model.Outpoint {
	refs := make([]model.Outpoint, 0, p.m.Count())
	p.Iterate(func(o model.Outpoint, _ model.Output) bool {
		refs = append(refs, o)
		return true
	})
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	return refs
}

// Copy returns a pool with the same contents that shares no state with p.
func (p *Pool) Copy() *Pool {
	c := &Pool{m: swiss.NewMap[model.Outpoint, model.Output](uint32(p.m.Count()) + defaultCapacity)}
	p.m.Iter(func(o model.Outpoint, out model.Output) bool {
		out.Owner = append(model.PubKey(nil), out.Owner...)
		c.m.Put(o, out)
		return false
	})
	return c
}

// Balances sums unspent amounts per owner key, keyed by the hex of the key.
func (p *Pool) Balances() map[string]lbcutil.Amount {
	balances := make(map[string]lbcutil.Amount)
	p.Iterate(func(_ model.Outpoint, out model.Output) bool {
		balances[out.Owner.String()] += out.Amount
		return true
	})
	return balances
}
