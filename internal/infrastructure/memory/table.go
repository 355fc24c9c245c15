package memory

import (
	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/errs"
)

// table holds committed rows of one entity type. Rows are stored as private
// copies so callers never alias committed state.
type table[T any] struct {
	name     string
	rows     map[uuid.UUID]T
	order    []uuid.UUID
	id       func(T) uuid.UUID
	version  func(T) int
	clone    func(T) T
	conflict func(a, b T) bool
}

func newTable[T any](name string, id func(T) uuid.UUID, version func(T) int, clone func(T) T, conflict func(a, b T) bool) *table[T] {
	return &table[T]{
		name:     name,
		rows:     make(map[uuid.UUID]T),
		id:       id,
		version:  version,
		clone:    clone,
		conflict: conflict,
	}
}

type pending[T any] struct {
	value    T
	baseline int
	created  bool
	upsert   bool
}

// view is a transaction's overlay on a table. Writes are buffered and
// validated against the committed rows at commit time.
type view[T any] struct {
	tx     *tx
	t      *table[T]
	writes map[uuid.UUID]*pending[T]
	order  []uuid.UUID
}

func newView[T any](tx *tx, t *table[T]) *view[T] {
	v := &view[T]{tx: tx, t: t, writes: make(map[uuid.UUID]*pending[T])}
	tx.views = append(tx.views, v)
	return v
}

func (v *view[T]) get(id uuid.UUID) (T, bool) {
	if w, ok := v.writes[id]; ok {
		return v.t.clone(w.value), true
	}
	v.tx.store.mu.RLock()
	defer v.tx.store.mu.RUnlock()
	row, ok := v.t.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	return v.t.clone(row), true
}

// all returns committed rows merged with this view's writes, in insertion order.
func (v *view[T]) all() []T {
	v.tx.store.mu.RLock()
	out := make([]T, 0, len(v.t.order)+len(v.order))
	for _, id := range v.t.order {
		if w, ok := v.writes[id]; ok {
			out = append(out, v.t.clone(w.value))
			continue
		}
		out = append(out, v.t.clone(v.t.rows[id]))
	}
	v.tx.store.mu.RUnlock()
	for _, id := range v.order {
		if w := v.writes[id]; w.created {
			out = append(out, v.t.clone(w.value))
		}
	}
	return out
}

func (v *view[T]) filter(keep func(T) bool) []T {
	var out []T
	for _, row := range v.all() {
		if keep(row) {
			out = append(out, row)
		}
	}
	return out
}

func (v *view[T]) conflicts(row T) bool {
	if v.t.conflict == nil {
		return false
	}
	id := v.t.id(row)
	for _, other := range v.all() {
		if v.t.id(other) != id && v.t.conflict(row, other) {
			return true
		}
	}
	return false
}

func (v *view[T]) create(row T) error {
	id := v.t.id(row)
	if _, exists := v.get(id); exists {
		return errs.Stale(v.t.name, id)
	}
	if v.conflicts(row) {
		return errs.Stale(v.t.name, id)
	}
	v.writes[id] = &pending[T]{value: v.t.clone(row), created: true}
	v.order = append(v.order, id)
	return v.tx.autoCommit()
}

// update replaces a row if check accepts the current one.
func (v *view[T]) update(row T, check func(current T) bool) error {
	id := v.t.id(row)
	current, ok := v.get(id)
	if !ok {
		return errs.NotFound(v.t.name, id)
	}
	if !check(current) {
		return errs.Stale(v.t.name, id)
	}
	if v.conflicts(row) {
		return errs.Stale(v.t.name, id)
	}
	if w, ok := v.writes[id]; ok {
		w.value = v.t.clone(row)
	} else {
		v.writes[id] = &pending[T]{value: v.t.clone(row), baseline: v.t.version(current)}
	}
	return v.tx.autoCommit()
}

// put inserts or replaces without a version check.
func (v *view[T]) put(row T) error {
	id := v.t.id(row)
	if w, ok := v.writes[id]; ok {
		w.value = v.t.clone(row)
		return v.tx.autoCommit()
	}
	if _, exists := v.get(id); exists {
		v.writes[id] = &pending[T]{value: v.t.clone(row), upsert: true}
		return v.tx.autoCommit()
	}
	v.writes[id] = &pending[T]{value: v.t.clone(row), created: true, upsert: true}
	v.order = append(v.order, id)
	return v.tx.autoCommit()
}

// validate runs with the store write lock held.
func (v *view[T]) validate() error {
	for id, w := range v.writes {
		current, exists := v.t.rows[id]
		switch {
		case w.upsert:
		case w.created && exists:
			return errs.Stale(v.t.name, id)
		case !w.created && (!exists || v.t.version(current) != w.baseline):
			return errs.Stale(v.t.name, id)
		}
		if v.t.conflict == nil {
			continue
		}
		for otherID, other := range v.t.rows {
			if otherID == id {
				continue
			}
			if ow, ok := v.writes[otherID]; ok {
				other = ow.value
			}
			if v.t.conflict(w.value, other) {
				return errs.Stale(v.t.name, id)
			}
		}
	}
	return nil
}

// apply runs with the store write lock held, after every view validated.
func (v *view[T]) apply() {
	for _, id := range v.order {
		if _, exists := v.t.rows[id]; !exists {
			v.t.order = append(v.t.order, id)
		}
	}
	for id, w := range v.writes {
		v.t.rows[id] = w.value
	}
	v.reset()
}

func (v *view[T]) reset() {
	v.writes = make(map[uuid.UUID]*pending[T])
	v.order = nil
}
