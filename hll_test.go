package hll

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomHashes(n int) []uint64 {
	hashes := make([]uint64, n)
	for i := range hashes {
		hashes[i] = rand.Uint64()
	}
	return hashes
}

func withinTolerance(t *testing.T, estimate, actual uint, tolerance float64) {
	t.Helper()
	relError := math.Abs(float64(estimate)-float64(actual)) / float64(actual)
	require.LessOrEqualf(t, relError, tolerance, "estimate %d too far from actual %d", estimate, actual)
}

func TestNewValidatesParameters(t *testing.T) {
	_, err := New(3, 5)
	require.ErrorIs(t, err, ErrParameterOutOfRange)

	_, err = New(14, 9)
	require.ErrorIs(t, err, ErrParameterOutOfRange)

	_, err = NewWithOptions(14, 5, 19, true)
	require.ErrorIs(t, err, ErrParameterOutOfRange)
}

func TestEmptyHLL(t *testing.T) {
	h, err := New(14, 5)
	require.NoError(t, err)
	require.Equal(t, Empty, h.Type())
	require.Equal(t, uint(0), h.Cardinality())
}

func TestPromotionThroughAllTypes(t *testing.T) {
	h, err := NewWithOptions(12, 5, 4, true)
	require.NoError(t, err)
	require.Equal(t, Empty, h.Type())

	h.AddRaw(1)
	require.Equal(t, Explicit, h.Type())

	seen := map[Type]bool{Explicit: true}
	for i := uint64(0); i < uint64(h.m)*4 && len(seen) < 3; i++ {
		h.AddRaw(rand.Uint64())
		seen[h.Type()] = true
	}

	require.True(t, seen[Sparse] && seen[Full], "expected promotion through SPARSE to FULL, saw types: %v", seen)
}

func TestCardinalityAccuracy(t *testing.T) {
	const count = 20000

	h, err := New(14, 5)
	require.NoError(t, err)

	seen := make(map[uint64]struct{}, count)
	for len(seen) < count {
		v := rand.Uint64()
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		h.AddRaw(v)
	}

	withinTolerance(t, h.Cardinality(), count, 0.05)
}

func TestToBytesFromBytesRoundTrip(t *testing.T) {
	for _, typ := range []Type{Empty, Explicit, Sparse, Full} {
		t.Run(typ.String(), func(t *testing.T) {
			h, err := NewWithOptions(12, 5, 2, true)
			require.NoError(t, err)

			switch typ {
			case Explicit:
				h.AddRaw(1)
				h.AddRaw(2)
			case Sparse:
				for _, v := range randomHashes(100) {
					h.AddRaw(v)
				}
			case Full:
				for _, v := range randomHashes(5000) {
					h.AddRaw(v)
				}
				for h.Type() != Full {
					h.AddRaw(rand.Uint64())
				}
			}
			require.Equal(t, typ, h.Type())

			data := h.ToBytes()
			h2, err := FromBytes(data)
			require.NoError(t, err)
			require.Equal(t, h.Type(), h2.Type())
			require.Equal(t, h.Cardinality(), h2.Cardinality())
		})
	}
}

func TestFromBytesRejectsShortInput(t *testing.T) {
	_, err := FromBytes([]byte{0x01})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrDecode)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.Equal(t, BadLength, decodeErr.Kind)
}

func TestUnionHomogeneous(t *testing.T) {
	h1, err := New(14, 5)
	require.NoError(t, err)
	h2, err := New(14, 5)
	require.NoError(t, err)

	for _, v := range randomHashes(5000) {
		h1.AddRaw(v)
	}
	for _, v := range randomHashes(5000) {
		h2.AddRaw(v)
	}

	combinedCardinality := h1.Cardinality()
	require.NoError(t, h1.Union(h2))
	require.GreaterOrEqual(t, h1.Cardinality(), combinedCardinality)
}

func TestUnionHeterogeneous(t *testing.T) {
	explicitHLL, err := NewWithOptions(12, 5, 4, true)
	require.NoError(t, err)
	explicitHLL.AddRaw(1)
	explicitHLL.AddRaw(2)
	require.Equal(t, Explicit, explicitHLL.Type())

	fullHLL, err := NewWithOptions(12, 5, 4, true)
	require.NoError(t, err)
	for _, v := range randomHashes(20000) {
		fullHLL.AddRaw(v)
	}
	require.Equal(t, Full, fullHLL.Type())

	dest, err := NewWithOptions(12, 5, 4, true)
	require.NoError(t, err)
	require.NoError(t, dest.Union(explicitHLL))
	require.NoError(t, dest.Union(fullHLL))

	require.Equal(t, Full, dest.Type())
	withinTolerance(t, dest.Cardinality(), 20000, 0.1)
}

func TestUnionRejectsMismatchedParameters(t *testing.T) {
	h1, err := New(14, 5)
	require.NoError(t, err)
	h2, err := New(13, 5)
	require.NoError(t, err)

	err = h1.Union(h2)
	require.ErrorIs(t, err, ErrParameterMismatch)
}

func TestClear(t *testing.T) {
	h, err := New(14, 5)
	require.NoError(t, err)
	for _, v := range randomHashes(1000) {
		h.AddRaw(v)
	}
	require.NotEqual(t, Empty, h.Type())

	h.Clear()
	require.Equal(t, Empty, h.Type())
	require.Equal(t, uint(0), h.Cardinality())
}

func TestClone(t *testing.T) {
	h, err := New(14, 5)
	require.NoError(t, err)
	for _, v := range randomHashes(1000) {
		h.AddRaw(v)
	}

	clone := h.Clone()
	require.Equal(t, h.Cardinality(), clone.Cardinality())

	before := h.Cardinality()
	clone.AddRaw(rand.Uint64())
	require.Equal(t, before, h.Cardinality(), "mutating the clone must not affect the original")
}

func TestApproxMemorySizeGrowsAcrossPromotion(t *testing.T) {
	h, err := NewWithOptions(12, 5, 4, true)
	require.NoError(t, err)
	require.Equal(t, Empty, h.Type())

	emptySize := h.ApproxMemorySize()
	require.Greater(t, emptySize, 0)

	h.AddRaw(1)
	require.Equal(t, Explicit, h.Type())
	explicitSize := h.ApproxMemorySize()
	require.Greater(t, explicitSize, 0)

	for _, v := range randomHashes(20000) {
		h.AddRaw(v)
	}
	require.Equal(t, Full, h.Type())
	require.Greater(t, h.ApproxMemorySize(), explicitSize)
}

func TestAddHashesConsistently(t *testing.T) {
	h1, err := New(14, 5)
	require.NoError(t, err)
	h2, err := New(14, 5)
	require.NoError(t, err)

	items := [][]byte{[]byte("alice"), []byte("bob"), []byte("carol")}
	for _, item := range items {
		h1.Add(item)
	}
	for _, item := range items {
		h2.Add(item)
	}

	require.Equal(t, h1.Cardinality(), h2.Cardinality())
	require.Equal(t, h1.ToBytes(), h2.ToBytes())
}
