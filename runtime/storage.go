package runtime

import (
	"fmt"
	"slices"
	"sync"

	"github.com/panyam/pfa/decl"
)

// pathIndex is one evaluated step of a path: an array index, a map key or a
// record field name, with the type it indexes into.
type pathIndex struct {
	key       Value
	container *Type
}

// getPath reads the part of v at path.
func getPath(v Value, path []pathIndex, pos string) Value {
	for _, p := range path {
		switch p.container.Tag {
		case decl.TypeTagArray:
			items := v.Array()
			i := p.key.Int()
			if i < 0 || i >= int64(len(items)) {
				fail(pos, CodeIndexOutOfRange, "array index %d out of range (length %d)", i, len(items))
			}
			v = items[i]
		case decl.TypeTagMap:
			x, ok := v.Map()[p.key.Str()]
			if !ok {
				fail(pos, CodeKeyNotFound, "map has no key %q", p.key.Str())
			}
			v = x
		case decl.TypeTagRecord:
			v = v.Record().Fields[p.key.Str()]
		default:
			ensureNoErr(fmt.Errorf("cannot index into %s", p.container))
		}
	}
	return v
}

// updatePath returns a copy of v with the part at path replaced by
// update(old).  Containers along the path are copied, everything else is
// shared.
func updatePath(v Value, path []pathIndex, update func(Value) Value, pos string) Value {
	if len(path) == 0 {
		return update(v)
	}
	p := path[0]
	out := v.Copy()
	switch p.container.Tag {
	case decl.TypeTagArray:
		items := out.Array()
		i := p.key.Int()
		if i < 0 || i >= int64(len(items)) {
			fail(pos, CodeIndexOutOfRange, "array index %d out of range (length %d)", i, len(items))
		}
		items[i] = updatePath(items[i], path[1:], update, pos)
	case decl.TypeTagMap:
		entries := out.Map()
		old, ok := entries[p.key.Str()]
		if !ok {
			fail(pos, CodeKeyNotFound, "map has no key %q", p.key.Str())
		}
		entries[p.key.Str()] = updatePath(old, path[1:], update, pos)
	case decl.TypeTagRecord:
		fields := out.Record().Fields
		fields[p.key.Str()] = updatePath(fields[p.key.Str()], path[1:], update, pos)
	default:
		ensureNoErr(fmt.Errorf("cannot index into %s", p.container))
	}
	return out
}

// Cell is a single persistent value.  A shared cell is used by every engine
// of a program and serializes access through its own lock.
type Cell struct {
	Name     string
	Type     *Type
	Shared   bool
	Rollback bool

	mu    sync.Mutex
	value Value
}

func newCell(d *decl.CellDecl) (*Cell, error) {
	t := d.Type.ResolvedType()
	v, err := decl.FromJSON(t, d.Init)
	if err != nil {
		return nil, fmt.Errorf("cell %q: %w", d.Name, err)
	}
	return &Cell{Name: d.Name, Type: t, Shared: d.Shared, Rollback: d.Rollback, value: v}, nil
}

func (c *Cell) guard(st *execState) func() {
	if !c.Shared {
		return func() {}
	}
	return st.lock(&c.mu)
}

// writeGuard is guard for writes.  A shared rollback cell stays locked until
// the routine finishes.
func (c *Cell) writeGuard(st *execState) func() {
	if c.Shared && c.Rollback {
		return st.hold(&c.mu)
	}
	return c.guard(st)
}

// Get reads the part of the cell at path.
func (c *Cell) Get(st *execState, path []pathIndex, pos string) Value {
	defer c.guard(st)()
	return getPath(c.value, path, pos)
}

// Update replaces the part of the cell at path and returns the new value
// of the whole cell.
func (c *Cell) Update(st *execState, path []pathIndex, update func(Value) Value, pos string) Value {
	defer c.writeGuard(st)()
	out := updatePath(c.value, path, update, pos)
	if c.Rollback {
		// restored while the routine still holds the lock
		st.snapshot(c, func() func() {
			old := c.value
			return func() { c.value = old }
		})
	}
	c.value = out
	return out
}

// Snapshot returns the current value for hosts and tests.
func (c *Cell) Snapshot() Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Pool is a keyed collection of persistent values.  A shared pool locks per
// key so that updates of different keys do not wait on each other.
type Pool struct {
	Name     string
	Type     *Type
	Shared   bool
	Rollback bool

	// guards entries and locks, never held while user code runs
	mu      sync.RWMutex
	entries map[string]Value
	locks   map[string]*sync.Mutex
}

func newPool(d *decl.PoolDecl) (*Pool, error) {
	t := d.Type.ResolvedType()
	p := &Pool{
		Name:     d.Name,
		Type:     t,
		Shared:   d.Shared,
		Rollback: d.Rollback,
		entries:  make(map[string]Value, len(d.Init)),
		locks:    map[string]*sync.Mutex{},
	}
	for key, datum := range d.Init {
		v, err := decl.FromJSON(t, datum)
		if err != nil {
			return nil, fmt.Errorf("pool %q key %q: %w", d.Name, key, err)
		}
		p.entries[key] = v
	}
	return p, nil
}

// keyLock returns the lock of one key, creating it on first use.
func (p *Pool) keyLock(key string) *sync.Mutex {
	p.mu.RLock()
	l := p.locks[key]
	p.mu.RUnlock()
	if l != nil {
		return l
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if l = p.locks[key]; l == nil {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	return l
}

func (p *Pool) load(key string) (Value, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.entries[key]
	return v, ok
}

func (p *Pool) store(key string, v Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[key] = v
}

func (p *Pool) remove(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, key)
}

func (p *Pool) guard(st *execState, key string) func() {
	if !p.Shared {
		return func() {}
	}
	return st.lock(p.keyLock(key))
}

// writeGuard is guard for writes.  A key of a shared rollback pool stays
// locked until the routine finishes.
func (p *Pool) writeGuard(st *execState, key string) func() {
	if p.Shared && p.Rollback {
		return st.hold(p.keyLock(key))
	}
	return p.guard(st, key)
}

// Get reads the part of one entry at path.  A missing key is a failure.
func (p *Pool) Get(st *execState, key string, path []pathIndex, pos string) Value {
	defer p.guard(st, key)()
	v, ok := p.load(key)
	if !ok {
		fail(pos, CodePoolKeyNotFound, "pool %q has no key %q", p.Name, key)
	}
	return getPath(v, path, pos)
}

// Update replaces the part of one entry at path and returns the new entry.
// init, when given, supplies the entry of a key that does not exist yet.
func (p *Pool) Update(st *execState, key string, path []pathIndex, init func() Value, update func(Value) Value, pos string) Value {
	defer p.writeGuard(st, key)()
	old, exists := p.load(key)
	if !exists {
		if init == nil {
			fail(pos, CodePoolKeyNotFound, "pool %q has no key %q and no init was given", p.Name, key)
		}
		old = init()
	}
	out := updatePath(old, path, update, pos)
	if p.Rollback {
		st.snapshot(poolKey{p, key}, func() func() {
			prev, had := p.load(key)
			return func() {
				if had {
					p.store(key, prev)
				} else {
					p.remove(key)
				}
			}
		})
	}
	p.store(key, out)
	return out
}

// Keys lists the keys present, sorted.
func (p *Pool) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Snapshot returns one entry for hosts and tests.
func (p *Pool) Snapshot(key string) (Value, bool) {
	return p.load(key)
}

type poolKey struct {
	pool *Pool
	key  string
}
