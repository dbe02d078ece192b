package vm

// Table is the open-addressed, linear-probing hash table used for globals,
// exports, class method tables and instance field tables (spec.md §3).
// Keys are always interned *String pointers, so a slot compares by pointer
// identity. Deletions leave a tombstone (key == tombstoneKey) rather than
// a true empty slot, matching spec.md's "deletions use tombstones (key=null,
// value=true)" — we use a dedicated sentinel pointer instead of a
// (nil,true) pair because Go interfaces make a literal nil key ambiguous
// with "never written".
const maxLoadFactor = 0.75

var tombstoneKey = &String{Chars: "\x00tombstone\x00"}

type tableEntry struct {
	key   *String
	value Value
}

// Table is a String-keyed hash table, open-addressed with linear probing.
type Table struct {
	entries []tableEntry
	count   int // live entries plus tombstones (Delete does not decrement it)
}

func NewTable() *Table {
	return &Table{}
}

func (t *Table) Len() int { return t.count }

func (t *Table) findEntry(entries []tableEntry, key *String) int {
	capacity := len(entries)
	idx := int(key.Hash) % capacity
	var firstTombstone = -1
	for {
		e := &entries[idx]
		if e.key == nil {
			if firstTombstone != -1 {
				return firstTombstone
			}
			return idx
		}
		if e.key == tombstoneKey {
			if firstTombstone == -1 {
				firstTombstone = idx
			}
		} else if e.key == key {
			return idx
		}
		idx = (idx + 1) % capacity
	}
}

func (t *Table) adjustCapacity(newCap int) {
	entries := make([]tableEntry, newCap)
	t.count = 0
	for _, e := range t.entries {
		if e.key == nil || e.key == tombstoneKey {
			continue
		}
		idx := t.findEntry(entries, e.key)
		entries[idx].key = e.key
		entries[idx].value = e.value
		t.count++
	}
	t.entries = entries
}

// Get returns the value for key and whether it was present.
func (t *Table) Get(key *String) (Value, bool) {
	if len(t.entries) == 0 {
		return Value{}, false
	}
	idx := t.findEntry(t.entries, key)
	e := &t.entries[idx]
	if e.key == nil || e.key == tombstoneKey {
		return Value{}, false
	}
	return e.value, true
}

// Set inserts or overwrites key -> value. Returns true if this created a
// new key (as opposed to overwriting an existing one).
func (t *Table) Set(key *String, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoadFactor {
		newCap := 8
		if len(t.entries) > 0 {
			newCap = len(t.entries) * 2
		}
		t.adjustCapacity(newCap)
	}
	idx := t.findEntry(t.entries, key)
	e := &t.entries[idx]
	isNew := e.key == nil || e.key == tombstoneKey
	if e.key == nil {
		t.count++
	}
	e.key = key
	e.value = value
	return isNew
}

// Delete removes key, leaving a tombstone. Returns whether key was present.
func (t *Table) Delete(key *String) bool {
	if len(t.entries) == 0 {
		return false
	}
	idx := t.findEntry(t.entries, key)
	e := &t.entries[idx]
	if e.key == nil || e.key == tombstoneKey {
		return false
	}
	e.key = tombstoneKey
	e.value = Bool(true)
	return true
}

// AddAll copies every live entry of src into t, overwriting on conflict.
// Used by OP_INHERIT to copy a superclass/interface's method table.
func (t *Table) AddAll(src *Table) {
	for _, e := range src.entries {
		if e.key == nil || e.key == tombstoneKey {
			continue
		}
		t.Set(e.key, e.value)
	}
}

// Range iterates the table in bucket order (not insertion order, per
// spec.md §3), calling fn for each live entry until it returns false.
func (t *Table) Range(fn func(key *String, value Value) bool) {
	for _, e := range t.entries {
		if e.key == nil || e.key == tombstoneKey {
			continue
		}
		if !fn(e.key, e.value) {
			return
		}
	}
}

func (t *Table) Keys() []*String {
	out := make([]*String, 0, t.count)
	t.Range(func(k *String, _ Value) bool { out = append(out, k); return true })
	return out
}

// ---- InternTable --------------------------------------------------------

// internEntry differs from tableEntry: before a string is interned there is
// no *String to compare by pointer, so FindString compares raw bytes.
type internEntry struct {
	key *String
}

// InternTable maps raw byte content to the unique *String for that content
// (spec.md §3 Invariants: every reachable String is present here, and equal
// bytes always share one reference).
type InternTable struct {
	entries []internEntry
	count   int
}

func NewInternTable() *InternTable {
	return &InternTable{}
}

func (it *InternTable) findSlot(entries []internEntry, hash uint32, chars string) int {
	capacity := len(entries)
	idx := int(hash) % capacity
	var firstTombstone = -1
	for {
		e := &entries[idx]
		if e.key == nil {
			if firstTombstone != -1 {
				return firstTombstone
			}
			return idx
		}
		if e.key == tombstoneKey {
			if firstTombstone == -1 {
				firstTombstone = idx
			}
		} else if e.key.Hash == hash && e.key.Chars == chars {
			return idx
		}
		idx = (idx + 1) % capacity
	}
}

func (it *InternTable) grow() {
	newCap := 8
	if len(it.entries) > 0 {
		newCap = len(it.entries) * 2
	}
	entries := make([]internEntry, newCap)
	it.count = 0
	for _, e := range it.entries {
		if e.key == nil || e.key == tombstoneKey {
			continue
		}
		idx := it.findSlot(entries, e.key.Hash, e.key.Chars)
		entries[idx].key = e.key
		it.count++
	}
	it.entries = entries
}

// FindString looks up an already-interned string by content, returning nil
// if none exists yet.
func (it *InternTable) FindString(chars string, hash uint32) *String {
	if len(it.entries) == 0 {
		return nil
	}
	idx := it.findSlot(it.entries, hash, chars)
	e := &it.entries[idx]
	if e.key == nil || e.key == tombstoneKey {
		return nil
	}
	return e.key
}

// Insert registers s (which must not already be interned) in the table.
func (it *InternTable) Insert(s *String) {
	if float64(it.count+1) > float64(len(it.entries))*maxLoadFactor {
		it.grow()
	}
	idx := it.findSlot(it.entries, s.Hash, s.Chars)
	e := &it.entries[idx]
	if e.key == nil {
		it.count++
	}
	e.key = s
}

// WeakSweep removes every entry whose String is unmarked (GC step 3).
func (it *InternTable) WeakSweep() {
	for i := range it.entries {
		e := &it.entries[i]
		if e.key == nil || e.key == tombstoneKey {
			continue
		}
		if !e.key.marked {
			e.key = tombstoneKey
			it.count--
		}
	}
}

// Range iterates live entries.
func (it *InternTable) Range(fn func(s *String) bool) {
	for _, e := range it.entries {
		if e.key == nil || e.key == tombstoneKey {
			continue
		}
		if !fn(e.key) {
			return
		}
	}
}
