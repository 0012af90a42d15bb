package hllhash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSum64Deterministic(t *testing.T) {
	a := Sum64([]byte("distinct-value"))
	b := Sum64([]byte("distinct-value"))
	require.Equal(t, a, b)
}

func TestSum64DiffersByInput(t *testing.T) {
	require.NotEqual(t, Sum64([]byte("a")), Sum64([]byte("b")))
}

func TestSum64StringMatchesSum64Bytes(t *testing.T) {
	require.Equal(t, Sum64([]byte("hello")), Sum64String("hello"))
}

func TestSum64WithSeedDiffersFromUnseeded(t *testing.T) {
	require.NotEqual(t, Sum64([]byte("hello")), Sum64WithSeed([]byte("hello"), 42))
}
