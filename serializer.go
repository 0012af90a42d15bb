package hll

import "fmt"

const bitsPerByte = 8

// wordSerializer packs a fixed count of fixed-width words into a byte slice,
// MSB-first within each byte, most significant word first. It is one-time
// use: once every word has been written, getBytes returns the backing
// array.
type wordSerializer struct {
	wordLength uint
	wordCount  uint

	buf []byte

	bitsLeftInByte uint
	byteIndex      uint
	wordsWritten   uint
}

func newWordSerializer(wordLength, wordCount uint) *wordSerializer {
	return newPaddedWordSerializer(wordLength, wordCount, headerByteCount)
}

// newPaddedWordSerializer reserves bytePadding leading bytes (for header
// metadata written separately) before the packed word stream begins.
func newPaddedWordSerializer(wordLength, wordCount, bytePadding uint) *wordSerializer {
	if wordLength < 1 || wordLength > 64 {
		panic(fmt.Sprintf("word length must be >= 1 and <= 64 (was %d)", wordLength))
	}

	bitsRequired := wordLength * wordCount
	bytesRequired := bitsRequired / bitsPerByte
	if bitsRequired%bitsPerByte != 0 {
		bytesRequired++
	}
	bytesRequired += bytePadding

	return &wordSerializer{
		wordLength:     wordLength,
		wordCount:      wordCount,
		buf:            make([]byte, bytesRequired),
		bitsLeftInByte: bitsPerByte,
		byteIndex:      bytePadding,
	}
}

func (s *wordSerializer) writeWord(word uint64) {
	if s.wordsWritten == s.wordCount {
		panic("wordSerializer: backing array full")
	}

	bitsLeftInWord := s.wordLength
	for bitsLeftInWord > 0 {
		if s.bitsLeftInByte == 0 {
			s.byteIndex++
			s.bitsLeftInByte = bitsPerByte
		}

		var consumedMask uint64
		if bitsLeftInWord == 64 {
			consumedMask = ^uint64(0)
		} else {
			consumedMask = (uint64(1) << bitsLeftInWord) - 1
		}

		numberOfBitsToWrite := s.bitsLeftInByte
		if bitsLeftInWord < numberOfBitsToWrite {
			numberOfBitsToWrite = bitsLeftInWord
		}
		bitsInByteRemainingAfterWrite := s.bitsLeftInByte - numberOfBitsToWrite

		remainingBitsOfWordToWrite := word & consumedMask

		var bitsTheByteCanAccept uint64
		if bitsLeftInWord > numberOfBitsToWrite {
			bitsTheByteCanAccept = remainingBitsOfWordToWrite >> (bitsLeftInWord - s.bitsLeftInByte)
		} else {
			bitsTheByteCanAccept = remainingBitsOfWordToWrite
		}

		alignedBits := bitsTheByteCanAccept << bitsInByteRemainingAfterWrite
		s.buf[s.byteIndex] |= byte(alignedBits)

		bitsLeftInWord -= numberOfBitsToWrite
		s.bitsLeftInByte = bitsInByteRemainingAfterWrite
	}

	s.wordsWritten++
}

func (s *wordSerializer) getBytes() []byte {
	if s.wordsWritten < s.wordCount {
		panic(fmt.Sprintf("wordSerializer: not all words written (%d/%d)", s.wordsWritten, s.wordCount))
	}
	return s.buf
}
