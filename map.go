// Copyright 2026 The Linear Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package linear is a Go implementation of a hash table based on open
// addressing with linear probing and lazy deletion, as described in
//
//	https://en.wikipedia.org/wiki/Open_addressing
//	https://en.wikipedia.org/wiki/Linear_probing
//	https://en.wikipedia.org/wiki/Lazy_deletion
//
// # Probing
//
// The table is a single flat array of slots. To locate a key we hash it,
// reduce the hash modulo the array length to pick a home bucket, and then
// scan forward one slot at a time, wrapping at the end of the array. Keys
// displaced by collisions therefore sit in a contiguous run of slots
// beginning at their home bucket, and a slot that has never held an entry
// terminates the run: no key can be stored beyond it.
//
// # Lazy deletion
//
// Deleting an entry cannot simply empty its slot as that would split the
// probe run and strand any entry that had been pushed past the slot by a
// collision. Each slot instead carries one of three states: virgin (never
// held an entry), occupied, or tombstone (held an entry that was deleted).
// Probes walk straight through tombstones, while inserts may reclaim the
// first tombstone on their probe sequence once the key is known to be
// absent. Tombstones accumulate between growths and are only discarded
// wholesale when the table grows, so delete-heavy workloads that never
// trigger growth will see probe sequences lengthen over time.
//
// # Growth
//
// Linear probing degrades sharply as a table fills, so an insert that would
// push the load factor past 1/2 first rebuilds the table at the next
// capacity in a precomputed schedule of primes (7, 17, 31, 61, ...) that
// roughly doubles at each step. Prime capacities make the home bucket
// depend on every bit of the hash, which tempers the clustering that
// power-of-two tables exhibit with weak hash functions. Growing re-inserts
// every live entry into the fresh array and drops tombstones in the
// process.
//
// The implementation deliberately has none of the grouped metadata or
// SIMD/SWAR probing of Swiss Table designs. A Map is one slice of slots and
// the probe loop is a handful of branches, which makes the probing behavior
// easy to observe and reason about.
package linear

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"unsafe"
)

const debug = false

// The table grows when an insert would push more than maxLoadNum/maxLoadDen
// of its slots into the occupied state. Tombstones are not counted against
// the load factor.
const (
	maxLoadNum = 1
	maxLoadDen = 2
)

// slotState describes how a probe sequence treats a slot.
type slotState uint8

const (
	// slotVirgin slots have never held an entry. Reaching one proves the
	// probed key is absent.
	slotVirgin slotState = iota
	// slotOccupied slots hold a live entry.
	slotOccupied
	// slotDeleted slots are tombstones. Probes walk through them so that
	// entries stored beyond them remain reachable; inserts may reuse them.
	slotDeleted
)

func (s slotState) String() string {
	switch s {
	case slotVirgin:
		return "virgin"
	case slotOccupied:
		return "occupied"
	case slotDeleted:
		return "tombstone"
	default:
		return "corrupt"
	}
}

// A Slot holds a key/value pair and the state that tells probe sequences
// how to treat the slot. Slots are the unit of storage handed out by an
// Allocator.
type Slot[K comparable, V any] struct {
	key   K
	value V
	state slotState
}

// Map is an unordered map from keys to values with Put, Get, Delete, and
// All operations. Collisions are resolved with plain linear probing,
// deleted entries leave tombstones behind, and the table grows across a
// fixed schedule of prime capacities. By default, a Map[K,V] uses the same
// hash function as Go's builtin map[K]V, though a different hash function
// can be specified using the WithHash option.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	// The hash function to each keys of type K. The hash function is
	// extracted from the Go runtime's implementation of map[K]struct{}.
	hash hashFn
	seed uintptr
	// The allocator to use for the slots slice.
	allocator Allocator[K, V]
	// The slot array. Its length is always primes[primeIdx].
	slots []Slot[K, V]
	// The index into primes of the current capacity.
	primeIdx int
	// The number of occupied slots (i.e. the number of elements in the
	// map). Tombstones are not counted.
	used int
}

// New constructs a new Map with space for at least initialCapacity entries
// before the table needs to grow. The capacity is always drawn from the
// prime schedule, so a map never has fewer than 7 slots. The zero value for
// a Map is not usable.
func New[K comparable, V any](initialCapacity int, options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{}
	m.Init(initialCapacity, options...)
	return m
}

// Init initializes a Map with space for at least initialCapacity entries
// before the table needs to grow, discarding any entries the map previously
// held. Init allows a Map embedded by value in another structure to be
// initialized without copying.
func (m *Map[K, V]) Init(initialCapacity int, options ...option[K, V]) {
	*m = Map[K, V]{
		hash:      getRuntimeHasher[K](),
		seed:      uintptr(rand.Uint64()),
		allocator: defaultAllocator[K, V]{},
		primeIdx:  primeIndexFor(initialCapacity),
	}

	for _, op := range options {
		op.apply(m)
	}

	m.slots = m.allocator.AllocSlots(primes[m.primeIdx])
	m.checkInvariants()
}

// Close closes the map, releasing any memory back to its configured
// allocator. It is unnecessary to close a map using the default allocator.
// It is invalid to use a Map after it has been closed, though Close itself
// is idempotent.
func (m *Map[K, V]) Close() {
	if m.slots != nil {
		m.allocator.FreeSlots(m.slots)
		m.slots = nil
		m.allocator = nil
		m.used = 0
	}
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists. The number of entries in the map
// is unchanged by an overwrite.
func (m *Map[K, V]) Put(key K, value V) {
	// Put is find composed with uncheckedPut. We perform find to see if the
	// key is already present. If it is, we're done and overwrite the
	// existing value. If the value isn't present we perform an uncheckedPut
	// which inserts an entry known not to be in the table (violating this
	// requirement will cause the table to behave erratically).
	//
	// Growth is checked up front against the size the table would have if
	// the key turns out to be absent. An overwrite arriving exactly at the
	// growth threshold can therefore grow the table one step early, which
	// is harmless.
	if m.needsGrow() {
		m.grow()
	}

	h := m.hash(noescape(unsafe.Pointer(&key)), m.seed)
	seq := makeProbeSeq(h, uintptr(len(m.slots)))
	if debug {
		fmt.Printf("put(%v): %s\n", key, seq)
	}

	// The find loop can stop early once it has examined every live entry in
	// the table: the remaining slots are tombstones and virgin slots and
	// cannot hold the key. Without that bound a table whose virgin slots
	// have all been consumed by tombstones would be scanned in full on
	// every miss.
	for n, live := 0, 0; n < len(m.slots); n, seq = n+1, seq.next() {
		s := &m.slots[seq.offset]
		if debug {
			fmt.Printf("put(probing): offset=%d state=%s\n", seq.offset, s.state)
		}

		if s.state == slotVirgin {
			break
		}
		if s.state == slotOccupied {
			if key == s.key {
				if debug {
					fmt.Printf("put(updating): offset=%d key=%v\n", seq.offset, key)
				}
				s.value = value
				m.checkInvariants()
				return
			}
			live++
			if live == m.used {
				break
			}
		}
	}

	m.uncheckedPut(h, key, value)
	m.used++
	m.checkInvariants()
}

// Get retrieves the value from the map for the specified key, return
// ok=false if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if m.used == 0 {
		// Nothing to find. This also keeps misses cheap in a table whose
		// slots are all tombstones.
		return value, false
	}

	h := m.hash(noescape(unsafe.Pointer(&key)), m.seed)
	seq := makeProbeSeq(h, uintptr(len(m.slots)))
	if debug {
		fmt.Printf("get(%v): %s\n", key, seq)
	}

	// To find the location of a key in the table, we compute hash(key) and
	// construct a probeSeq starting at the key's home bucket. We walk the
	// run of non-virgin slots from there, comparing keys at occupied slots
	// and stepping over tombstones. A virgin slot ends the search: the key
	// cannot be stored beyond it. The search also ends once every live
	// entry in the table has been examined, which bounds misses in tables
	// where tombstones have consumed the virgin slots.
	for n, live := 0, 0; n < len(m.slots); n, seq = n+1, seq.next() {
		s := &m.slots[seq.offset]
		if debug {
			fmt.Printf("get(probing): offset=%d state=%s\n", seq.offset, s.state)
		}

		if s.state == slotVirgin {
			return value, false
		}
		if s.state == slotOccupied {
			if key == s.key {
				return s.value, true
			}
			live++
			if live == m.used {
				return value, false
			}
		}
	}
	return value, false
}

// Contains reports whether an entry with the specified key is present in
// the map.
func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Delete deletes the entry corresponding to the specified key from the map.
// It is a noop to delete a non-existent key.
func (m *Map[K, V]) Delete(key K) {
	if m.used == 0 {
		return
	}

	// Delete is find composed with "tombstone at": we perform find(key),
	// and then convert the resulting slot to a tombstone if found. The slot
	// cannot revert to virgin because entries stored beyond it would become
	// unreachable.
	h := m.hash(noescape(unsafe.Pointer(&key)), m.seed)
	seq := makeProbeSeq(h, uintptr(len(m.slots)))
	if debug {
		fmt.Printf("delete(%v): %s\n", key, seq)
	}

	for n, live := 0, 0; n < len(m.slots); n, seq = n+1, seq.next() {
		s := &m.slots[seq.offset]
		if debug {
			fmt.Printf("delete(probing): offset=%d state=%s\n", seq.offset, s.state)
		}

		if s.state == slotVirgin {
			return
		}
		if s.state == slotOccupied {
			if key == s.key {
				if debug {
					fmt.Printf("delete(tombstone): offset=%d key=%v\n", seq.offset, key)
				}
				// The key is retained in the tombstone; only the value is
				// released to the garbage collector.
				var zero V
				s.value = zero
				s.state = slotDeleted
				m.used--
				m.checkInvariants()
				return
			}
			live++
			if live == m.used {
				return
			}
		}
	}
}

// Clear deletes all entries from the map, including any tombstones, leaving
// the capacity unchanged.
func (m *Map[K, V]) Clear() {
	clear(m.slots)
	m.used = 0
	m.checkInvariants()
}

// All calls yield sequentially for each key and value present in the map.
// If yield returns false, range stops the iteration. The map can be mutated
// during iteration, though there is no guarantee that the mutations will be
// visible to the iteration.
//
// TODO: the naming of All and its signature conform to the
// range-over-function protocol. Once the module requires Go 1.23 the method
// can be used directly in a for-range statement.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	// Snapshot the slots so that iteration remains valid if the map is
	// grown during iteration.
	slots := m.slots
	for i := range slots {
		s := &slots[i]
		if s.state == slotOccupied {
			if !yield(s.key, s.value) {
				return
			}
		}
	}
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// Empty reports whether the map contains no entries.
func (m *Map[K, V]) Empty() bool {
	return m.used == 0
}

// Clone returns a copy of the map that shares no storage with the
// original. The clone uses the original's hash function, seed, and
// allocator, so slot positions (tombstones included) carry over unchanged.
func (m *Map[K, V]) Clone() *Map[K, V] {
	c := &Map[K, V]{
		hash:      m.hash,
		seed:      m.seed,
		allocator: m.allocator,
		primeIdx:  m.primeIdx,
		used:      m.used,
	}
	c.slots = c.allocator.AllocSlots(len(m.slots))
	copy(c.slots, m.slots)
	c.checkInvariants()
	return c
}

// String returns a listing of the table's slots, one line per slot with its
// state and, for occupied slots, the entry it holds. Tombstones show the
// key of the entry they once held.
func (m *Map[K, V]) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d\n", len(m.slots), m.used)
	for i := range m.slots {
		s := &m.slots[i]
		switch s.state {
		case slotOccupied:
			fmt.Fprintf(&buf, "  %4d: %v=%v\n", i, s.key, s.value)
		case slotDeleted:
			fmt.Fprintf(&buf, "  %4d: tombstone(%v)\n", i, s.key)
		default:
			fmt.Fprintf(&buf, "  %4d: virgin\n", i)
		}
	}
	return buf.String()
}

// capacity returns the number of slots in the table.
func (m *Map[K, V]) capacity() int {
	return len(m.slots)
}

// uncheckedPut inserts an entry known not to be in the table into the first
// slot on the key's probe sequence that does not hold a live entry. That
// slot is the first tombstone on the sequence when one exists, which keeps
// probe runs from lengthening, and is otherwise the virgin slot
// terminating the run. The caller must have ensured the table has room for
// the entry (see needsGrow).
func (m *Map[K, V]) uncheckedPut(h uintptr, key K, value V) {
	seq := makeProbeSeq(h, uintptr(len(m.slots)))
	for {
		s := &m.slots[seq.offset]
		if s.state != slotOccupied {
			if debug {
				fmt.Printf("put(inserting): offset=%d key=%v reused=%s\n", seq.offset, key, s.state)
			}
			*s = Slot[K, V]{key: key, value: value, state: slotOccupied}
			return
		}
		seq = seq.next()
	}
}

// needsGrow reports whether inserting one more entry would push the table
// past its maximum load factor. Put calls needsGrow before probing, so a
// table never reaches the state where uncheckedPut has no free slot to
// claim.
func (m *Map[K, V]) needsGrow() bool {
	return (m.used+1)*maxLoadDen > len(m.slots)*maxLoadNum
}

// grow rebuilds the table at the next capacity in the prime schedule.
// Every live entry is re-inserted into the fresh slot array and tombstones
// are dropped. Growing past the last prime in the schedule panics; that
// prime is the largest representable by an int32, so the table would hold
// over a billion entries first.
func (m *Map[K, V]) grow() {
	p, ok := nextPrime(m.primeIdx)
	if !ok {
		panic("linear: map cannot grow past the largest prime capacity")
	}

	old := m.slots
	m.primeIdx++
	m.slots = m.allocator.AllocSlots(p)
	for i := range old {
		s := &old[i]
		if s.state == slotOccupied {
			h := m.hash(noescape(unsafe.Pointer(&s.key)), m.seed)
			m.uncheckedPut(h, s.key, s.value)
		}
	}
	m.allocator.FreeSlots(old)

	if debug {
		fmt.Printf("grow: capacity %d -> %d\n", len(old), p)
	}
	m.checkInvariants()
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if len(m.slots) != primes[m.primeIdx] {
			panic(fmt.Sprintf("invariant failed: capacity %d is not primes[%d]=%d\n%s",
				len(m.slots), m.primeIdx, primes[m.primeIdx], m.String()))
		}

		// For every occupied slot, verify we can retrieve the entry using
		// Get. Count the occupied slots.
		var used int
		for i := range m.slots {
			s := &m.slots[i]
			if s.state == slotOccupied {
				if _, ok := m.Get(s.key); !ok {
					panic(fmt.Sprintf("invariant failed: slot(%d): %v not found by Get\n%s",
						i, s.key, m.String()))
				}
				used++
			}
		}
		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, m.used, m.String()))
		}

		if m.used*maxLoadDen > len(m.slots)*maxLoadNum {
			panic(fmt.Sprintf("invariant failed: load %d/%d exceeds %d/%d\n%s",
				m.used, len(m.slots), maxLoadNum, maxLoadDen, m.String()))
		}
	}
}

// probeSeq maintains the state for a probe sequence that iterates through
// the slots of a table. The sequence starts at the home bucket for a hash
// (the hash reduced modulo the table capacity) and advances one slot per
// step, wrapping at the end of the slot array. A sequence of capacity steps
// visits every slot in the table exactly once.
type probeSeq struct {
	offset   uintptr
	capacity uintptr
}

func makeProbeSeq(hash, capacity uintptr) probeSeq {
	return probeSeq{
		offset:   hash % capacity,
		capacity: capacity,
	}
}

func (s probeSeq) next() probeSeq {
	s.offset++
	if s.offset == s.capacity {
		s.offset = 0
	}
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("offset=%d capacity=%d", s.offset, s.capacity)
}
