package hll

const (
	defaultInitialSize = 16
	defaultLoadFactor  = 0.75
)

// longHashSet is an open-addressing uint64 set, used for the EXPLICIT
// representation. It avalanches keys before bucketing them so that
// sequential or clustered raw hashes (as real murmur3 output is not,
// but a pathological input stream might be) still spread across the table.
type longHashSet struct {
	key  []uint64
	used []bool

	f       float64
	n       uint64
	maxFill uint64
	mask    uint64
	size    uint
}

func newLongHashSet() *longHashSet {
	return newLongHashSetSized(defaultInitialSize, defaultLoadFactor)
}

func newLongHashSetSized(expected uint, f float64) *longHashSet {
	n := uint64(arraySize(expected, f))
	return &longHashSet{
		f:       f,
		n:       n,
		mask:    n - 1,
		maxFill: uint64(maxFill(uint(n), f)),
		key:     make([]uint64, n),
		used:    make([]bool, n),
	}
}

func (s *longHashSet) add(k uint64) bool {
	pos := avalanche64(k^s.mask) & s.mask
	for s.used[pos] {
		if s.key[pos] == k {
			return false
		}
		pos = (pos + 1) & s.mask
	}

	s.used[pos] = true
	s.key[pos] = k
	s.size++
	if uint64(s.size) >= s.maxFill {
		s.rehash(uint64(arraySize(s.size+1, s.f)))
	}

	return true
}

func (s *longHashSet) rehash(newN uint64) {
	newKey := make([]uint64, newN)
	newUsed := make([]bool, newN)
	newMask := newN - 1

	i := uint64(0)
	for remaining := s.size; remaining > 0; remaining-- {
		for !s.used[i] {
			i++
		}

		k := s.key[i]
		pos := avalanche64(k^newMask) & newMask
		for newUsed[pos] {
			pos = (pos + 1) & newMask
		}
		newUsed[pos] = true
		newKey[pos] = k
		i++
	}

	s.n = newN
	s.mask = newMask
	s.maxFill = uint64(maxFill(uint(newN), s.f))
	s.key = newKey
	s.used = newUsed
}

func (s *longHashSet) Size() uint {
	return s.size
}

func (s *longHashSet) clone() *longHashSet {
	c := &longHashSet{
		f:       s.f,
		n:       s.n,
		mask:    s.mask,
		maxFill: s.maxFill,
		size:    s.size,
	}
	c.key = make([]uint64, len(s.key))
	copy(c.key, s.key)
	c.used = make([]bool, len(s.used))
	copy(c.used, s.used)
	return c
}

// longHashSetIterator walks entries in descending slot order; order is
// otherwise unspecified and callers must not depend on it.
type longHashSetIterator struct {
	set *longHashSet
	pos uint64
	c   uint
}

func newLongHashSetIterator(s *longHashSet) *longHashSetIterator {
	it := &longHashSetIterator{set: s, c: s.size, pos: s.n}
	if it.c != 0 {
		it.pos--
		for !s.used[it.pos] {
			it.pos--
		}
	}
	return it
}

func (it *longHashSetIterator) hasNext() bool {
	return it.c != 0
}

func (it *longHashSetIterator) next() uint64 {
	it.c--
	value := it.set.key[it.pos]
	if it.c != 0 {
		for it.pos != 0 {
			it.pos--
			if it.set.used[it.pos] {
				break
			}
		}
	}
	return value
}
