package hll

// int2ByteMap is an open-addressing uint32->byte map, used for the SPARSE
// representation (register index -> register value). Zero is never a
// stored value; addRawSparse only stores a p(w), which is at least 1, that
// exceeds the current value, FromBytes skips zero-valued entries, and get's
// default-of-zero for absent keys relies on that invariant.
type int2ByteMap struct {
	key   []uint32
	value []byte
	used  []bool

	f       float64
	n       uint
	maxFill uint
	mask    uint32
	size    uint
}

func newInt2ByteMap() *int2ByteMap {
	return newInt2ByteMapSized(defaultInitialSize, defaultLoadFactor)
}

func newInt2ByteMapSized(expected uint, f float64) *int2ByteMap {
	n := arraySize(expected, f)
	return &int2ByteMap{
		f:       f,
		n:       n,
		mask:    uint32(n - 1),
		maxFill: maxFill(n, f),
		key:     make([]uint32, n),
		value:   make([]byte, n),
		used:    make([]bool, n),
	}
}

func (m *int2ByteMap) clone() *int2ByteMap {
	c := &int2ByteMap{
		f:       m.f,
		n:       m.n,
		mask:    m.mask,
		maxFill: m.maxFill,
		size:    m.size,
	}
	c.key = make([]uint32, len(m.key))
	copy(c.key, m.key)
	c.value = make([]byte, len(m.value))
	copy(c.value, m.value)
	c.used = make([]bool, len(m.used))
	copy(c.used, m.used)
	return c
}

func (m *int2ByteMap) put(k uint32, v byte) byte {
	pos := avalanche32(k^m.mask) & m.mask
	for m.used[pos] {
		if m.key[pos] == k {
			old := m.value[pos]
			m.value[pos] = v
			return old
		}
		pos = (pos + 1) & m.mask
	}

	m.used[pos] = true
	m.key[pos] = k
	m.value[pos] = v
	m.size++
	if m.size >= m.maxFill {
		m.rehash(arraySize(m.size+1, m.f))
	}

	return 0
}

func (m *int2ByteMap) get(k uint32) byte {
	pos := avalanche32(k^m.mask) & m.mask
	for m.used[pos] {
		if m.key[pos] == k {
			return m.value[pos]
		}
		pos = (pos + 1) & m.mask
	}
	return 0
}

func (m *int2ByteMap) Size() uint {
	return m.size
}

func (m *int2ByteMap) rehash(newN uint) {
	newKey := make([]uint32, newN)
	newValue := make([]byte, newN)
	newUsed := make([]bool, newN)
	newMask := uint32(newN - 1)

	i := uint(0)
	for remaining := m.size; remaining > 0; remaining-- {
		for !m.used[i] {
			i++
		}

		k := m.key[i]
		pos := avalanche32(k^newMask) & newMask
		for newUsed[pos] {
			pos = (pos + 1) & newMask
		}
		newUsed[pos] = true
		newKey[pos] = k
		newValue[pos] = m.value[i]
		i++
	}

	m.n = newN
	m.mask = newMask
	m.maxFill = maxFill(newN, m.f)
	m.key = newKey
	m.value = newValue
	m.used = newUsed
}

// int2ByteMapIterator walks entries in descending slot order; order is
// otherwise unspecified and callers must not depend on it.
type int2ByteMapIterator struct {
	m   *int2ByteMap
	pos uint
	c   uint
}

func newInt2ByteMapIterator(m *int2ByteMap) *int2ByteMapIterator {
	it := &int2ByteMapIterator{m: m, c: m.size, pos: m.n}
	if it.c != 0 {
		it.pos--
		for !m.used[it.pos] {
			it.pos--
		}
	}
	return it
}

func (it *int2ByteMapIterator) hasNext() bool {
	return it.c != 0
}

func (it *int2ByteMapIterator) nextKey() uint32 {
	it.c--
	key := it.m.key[it.pos]
	if it.c != 0 {
		for it.pos != 0 {
			it.pos--
			if it.m.used[it.pos] {
				break
			}
		}
	}
	return key
}
