package hll

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackUnpackVersionByte(t *testing.T) {
	b := packVersionByte(1, typeOrdinals[Full])
	require.Equal(t, 1, schemaVersionOf(b))
	require.Equal(t, typeOrdinals[Full], typeOrdinalOf(b))
}

func TestPackUnpackParametersByte(t *testing.T) {
	for regwidth := uint(1); regwidth <= 8; regwidth++ {
		for log2m := uint(4); log2m <= 30; log2m++ {
			b := packParametersByte(regwidth, log2m)
			require.Equal(t, regwidth, registerWidthOf(b))
			require.Equal(t, log2m, registerCountLog2Of(b))
		}
	}
}

func TestPackUnpackCutoffByte(t *testing.T) {
	cases := []struct {
		cutoff        int
		sparseEnabled bool
	}{
		{explicitCutoffOff, false},
		{explicitCutoffAuto, true},
		{7, true},
		{7, false},
	}

	for _, c := range cases {
		b := packCutoffByte(c.cutoff, c.sparseEnabled)
		require.Equal(t, c.cutoff, explicitCutoffOf(b))
		require.Equal(t, c.sparseEnabled, sparseEnabledOf(b))
	}
}

func TestWordSerializerDeserializerRoundTrip(t *testing.T) {
	words := []uint64{1, 0, 31, 17, 0, 5, 5}
	wordLength := uint(5)

	s := newWordSerializer(wordLength, uint(len(words)))
	for _, w := range words {
		s.writeWord(w)
	}
	data := s.getBytes()

	d := newWordDeserializer(wordLength, headerByteCount, data)
	// 7 words of 5 bits pad out to 5 bytes; the word count is derived from
	// those 40 bits, so it includes one trailing all-zero padding word.
	require.Equal(t, uint(8), d.totalWordCount())
	for _, want := range words {
		require.Equal(t, want, d.readWord())
	}
}

func TestWordSerializerWideWords(t *testing.T) {
	words := []uint64{0, 1, 1 << 63, ^uint64(0), 12345}
	wordLength := uint(64)

	s := newWordSerializer(wordLength, uint(len(words)))
	for _, w := range words {
		s.writeWord(w)
	}
	data := s.getBytes()

	d := newWordDeserializer(wordLength, headerByteCount, data)
	for _, want := range words {
		require.Equal(t, want, d.readWord())
	}
}
