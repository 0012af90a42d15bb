// Package hll implements the HyperLogLog Storage Specification v1.0.0, a
// cardinality estimator whose wire format is shared across the Java,
// Python, and JavaScript ports of this algorithm.
package hll

import (
	"fmt"
	"math"
	"sort"

	"github.com/DmitriyVTitov/size"
	"github.com/pkg/errors"

	"github.com/AdRoll/go-hll/internal/hllhash"
)

const (
	minimumLog2mParam = 4
	maximumLog2mParam = 30

	minimumRegwidthParam = 1
	maximumRegwidthParam = 8

	// ExplicitThresholdAuto tells NewWithOptions to pick the EXPLICIT ->
	// SPARSE/FULL promotion threshold automatically, to minimize memory use.
	ExplicitThresholdAuto = -1
	// ExplicitThresholdDisabled skips the EXPLICIT representation entirely.
	ExplicitThresholdDisabled = 0

	minimumExpthreshParam = ExplicitThresholdAuto
	maximumExpthreshParam = 18

	maximumExplicitThreshold = 1 << (maximumExpthreshParam - 1)

	bitsPerLong = 64
)

// HLL is a HyperLogLog cardinality estimator. The zero value is not usable;
// construct one with New or NewWithOptions. HLL is not safe for concurrent
// use without external synchronization.
type HLL struct {
	explicitStorage *longHashSet
	sparseStorage   *int2ByteMap
	fullStorage     *bitVector

	typ Type

	log2m    uint
	regwidth uint

	explicitDisabled  bool
	explicitAuto      bool
	explicitThreshold uint

	shortWordLength uint
	sparseDisabled  bool
	sparseThreshold uint

	m                    uint
	mBitsMask            uint64
	valueMask            uint64
	pwMaxMask            uint64
	alphaMSquared        float64
	smallEstimatorCutoff float64
	largeEstimatorCutoff float64
}

// New constructs an empty HLL with the given log2m and regwidth, using
// automatic EXPLICIT threshold selection and SPARSE enabled. This matches
// the defaults used by the PostgreSQL and Java reference implementations.
func New(log2m, regwidth uint) (*HLL, error) {
	return NewWithOptions(log2m, regwidth, ExplicitThresholdAuto, true)
}

// NewWithOptions constructs an empty HLL with explicit control over the
// EXPLICIT->SPARSE/FULL promotion threshold and whether SPARSE is used at
// all in the promotion hierarchy.
//
// expthresh follows the PostgreSQL implementation's convention:
//
//	ExplicitThresholdAuto (-1): promote at whatever cutoff minimizes memory use
//	ExplicitThresholdDisabled (0): skip EXPLICIT entirely
//	1-18: promote once the EXPLICIT set exceeds 2^(expthresh-1) entries
func NewWithOptions(log2m, regwidth uint, expthresh int, sparseEnabled bool) (*HLL, error) {
	if log2m < minimumLog2mParam || log2m > maximumLog2mParam {
		return nil, errors.Wrapf(ErrParameterOutOfRange, "log2m must be in [%d, %d], got %d", minimumLog2mParam, maximumLog2mParam, log2m)
	}
	if regwidth < minimumRegwidthParam || regwidth > maximumRegwidthParam {
		return nil, errors.Wrapf(ErrParameterOutOfRange, "regwidth must be in [%d, %d], got %d", minimumRegwidthParam, maximumRegwidthParam, regwidth)
	}

	h := &HLL{log2m: log2m, regwidth: regwidth}

	h.m = 1 << log2m
	h.mBitsMask = uint64(h.m - 1)
	h.valueMask = (uint64(1) << regwidth) - 1
	h.pwMaxMask = pwMaxMask(regwidth)
	h.alphaMSquared = alphaMSquared(float64(h.m))
	h.smallEstimatorCutoff = smallEstimatorCutoff(h.m)
	h.largeEstimatorCutoff = largeEstimatorCutoff(log2m, regwidth)

	switch {
	case expthresh == ExplicitThresholdAuto:
		h.explicitAuto = true

		// Matches the size calculation used by the PostgreSQL implementation:
		// how many 8-byte words would a FULL representation take, capped at
		// the largest threshold an explicit cutoff byte can express.
		fullRepresentationBytes := (regwidth*h.m + 7) / 8
		numLongs := fullRepresentationBytes / 8
		if numLongs > maximumExplicitThreshold {
			h.explicitThreshold = maximumExplicitThreshold
		} else {
			h.explicitThreshold = numLongs
		}
	case expthresh == ExplicitThresholdDisabled:
		h.explicitDisabled = true
	case expthresh > 0 && expthresh <= maximumExpthreshParam:
		h.explicitThreshold = 1 << uint(expthresh-1)
	default:
		return nil, errors.Wrapf(ErrParameterOutOfRange, "expthresh must be in [%d, %d], got %d", minimumExpthreshParam, maximumExpthreshParam, expthresh)
	}

	h.shortWordLength = regwidth + log2m
	h.sparseDisabled = !sparseEnabled
	if !h.sparseDisabled {
		// NOTE: divides before taking log2, matching the Python/Java
		// reference implementations; a naive log2-then-divide gives a
		// different (and wrong) cutoff for most (m, regwidth) pairs.
		largestPow2LessThanCutoff := uint(math.Log2(float64(h.m*regwidth) / float64(h.shortWordLength)))
		h.sparseThreshold = 1 << largestPow2LessThanCutoff
	}

	h.initializeStorage(Empty)

	return h, nil
}

func (h *HLL) initializeStorage(typ Type) {
	h.typ = typ
	switch typ {
	case Empty:
	case Explicit:
		h.explicitStorage = newLongHashSet()
	case Sparse:
		h.sparseStorage = newInt2ByteMap()
	case Full:
		h.fullStorage = newBitVector(uint64(h.regwidth), uint64(h.m))
	default:
		panic(fmt.Sprintf("hll: unsupported type %v", typ))
	}
}

// Type reports which representation currently backs the HLL.
func (h *HLL) Type() Type {
	return h.typ
}

// AddRaw adds a pre-hashed 64 bit value to the estimator. The caller is
// responsible for hashing the original item with a well-distributed,
// non-cryptographic hash; see internal/hllhash for the convention this
// package expects (and Add, which does the hashing for you).
func (h *HLL) AddRaw(rawValue uint64) {
	switch h.typ {
	case Empty:
		if h.explicitThreshold > 0 {
			h.initializeStorage(Explicit)
			h.explicitStorage.add(rawValue)
		} else if !h.sparseDisabled {
			h.initializeStorage(Sparse)
			h.addRawSparse(rawValue)
		} else {
			h.initializeStorage(Full)
			h.addRawFull(rawValue)
		}

	case Explicit:
		h.explicitStorage.add(rawValue)
		if h.explicitStorage.Size() > h.explicitThreshold {
			h.promoteFromExplicit()
		}

	case Sparse:
		h.addRawSparse(rawValue)
		if h.sparseStorage.Size() > h.sparseThreshold {
			h.promoteFromSparse()
		}

	case Full:
		h.addRawFull(rawValue)

	default:
		panic(fmt.Sprintf("hll: unsupported type %v", h.typ))
	}
}

// Add hashes data with this package's conventional hash (see internal/
// hllhash) and adds the result. Use AddRaw directly if you need a
// different hash, or the same hash precomputed across many HLLs.
func (h *HLL) Add(data []byte) {
	h.AddRaw(hllhash.Sum64(data))
}

func (h *HLL) promoteFromExplicit() {
	old := h.explicitStorage
	if !h.sparseDisabled {
		h.initializeStorage(Sparse)
	} else {
		h.initializeStorage(Full)
	}

	it := newLongHashSetIterator(old)
	for it.hasNext() {
		h.AddRaw(it.next())
	}
}

func (h *HLL) promoteFromSparse() {
	old := h.sparseStorage
	h.initializeStorage(Full)

	it := newInt2ByteMapIterator(old)
	for it.hasNext() {
		registerIndex := it.nextKey()
		registerValue := old.get(registerIndex)
		h.fullStorage.setMaxRegister(uint64(registerIndex), uint64(registerValue))
	}
}

// pOfW computes p(w): the one-indexed position of the least significant set
// bit of the substream value (the hash with its log2m index bits shifted
// out). An all-zero substream yields pw_bits + 1 (pw_bits = 64 - log2m),
// clamped to the largest register value. A nonzero substream is OR-masked
// with pwMaxMask before the scan, which caps the result at a
// register-width-dependent maximum.
func (h *HLL) pOfW(rawValue uint64) byte {
	substreamValue := rawValue >> h.log2m
	if substreamValue == 0 {
		pw := uint64(bitsPerLong-h.log2m) + 1
		if pw > h.valueMask {
			pw = h.valueMask
		}
		return byte(pw)
	}
	return byte(1 + leastSignificantBit(substreamValue|h.pwMaxMask))
}

func (h *HLL) addRawFull(rawValue uint64) {
	pw := h.pOfW(rawValue)
	j := rawValue & h.mBitsMask
	h.fullStorage.setMaxRegister(j, uint64(pw))
}

func (h *HLL) addRawSparse(rawValue uint64) {
	pw := h.pOfW(rawValue)
	j := uint32(rawValue & h.mBitsMask)
	if pw > h.sparseStorage.get(j) {
		h.sparseStorage.put(j, pw)
	}
}

// Cardinality returns the estimated number of distinct values added.
func (h *HLL) Cardinality() uint {
	switch h.typ {
	case Empty:
		return 0
	case Explicit:
		return h.explicitStorage.Size()
	case Sparse:
		return uint(math.Ceil(h.sparseCardinality()))
	case Full:
		return uint(math.Ceil(h.fullCardinality()))
	default:
		panic(fmt.Sprintf("hll: unsupported type %v", h.typ))
	}
}

func (h *HLL) fullCardinality() float64 {
	sum, zeroes := h.fullStorage.sum()
	return h.estimate(sum, zeroes)
}

func (h *HLL) sparseCardinality() float64 {
	sum := float64(0)
	zeroes := 0
	for j := uint(0); j < h.m; j++ {
		register := h.sparseStorage.get(uint32(j))
		sum += 1.0 / float64(uint64(1)<<register)
		if register == 0 {
			zeroes++
		}
	}
	return h.estimate(sum, zeroes)
}

func (h *HLL) estimate(sum float64, zeroes int) float64 {
	estimator := h.alphaMSquared / sum
	switch {
	case zeroes != 0 && estimator < h.smallEstimatorCutoff:
		return smallEstimator(h.m, zeroes)
	case estimator <= h.largeEstimatorCutoff:
		return estimator
	default:
		return largeEstimator(h.log2m, h.regwidth, estimator)
	}
}

// Clear resets the HLL to EMPTY, discarding all added values.
func (h *HLL) Clear() {
	h.explicitStorage = nil
	h.sparseStorage = nil
	h.fullStorage = nil
	h.initializeStorage(Empty)
}

// Clone returns a deep copy of the HLL.
func (h *HLL) Clone() *HLL {
	c := *h
	switch h.typ {
	case Explicit:
		c.explicitStorage = h.explicitStorage.clone()
	case Sparse:
		c.sparseStorage = h.sparseStorage.clone()
	case Full:
		c.fullStorage = h.fullStorage.clone()
	}
	return &c
}

// ApproxMemorySize estimates, in bytes, the heap footprint of the HLL's
// current representation. It is a diagnostic, not a precise accounting;
// see github.com/DmitriyVTitov/size for its traversal semantics.
func (h *HLL) ApproxMemorySize() int {
	switch h.typ {
	case Explicit:
		return size.Of(h.explicitStorage)
	case Sparse:
		return size.Of(h.sparseStorage)
	case Full:
		return size.Of(h.fullStorage)
	default:
		return size.Of(h)
	}
}

// compatibleWith reports whether h and other were constructed with
// parameters that make a Union between them well defined.
func (h *HLL) compatibleWith(other *HLL) bool {
	return h.log2m == other.log2m &&
		h.regwidth == other.regwidth &&
		h.explicitDisabled == other.explicitDisabled &&
		h.explicitAuto == other.explicitAuto &&
		h.explicitThreshold == other.explicitThreshold &&
		h.sparseDisabled == other.sparseDisabled
}

// Union merges other into h in place. Both HLLs must have been constructed
// with identical parameters (log2m, regwidth, explicit threshold mode,
// sparse enablement); otherwise ErrParameterMismatch is returned and h is
// left unmodified.
func (h *HLL) Union(other *HLL) error {
	if !h.compatibleWith(other) {
		return errors.Wrapf(ErrParameterMismatch, "log2m=%d/%d regwidth=%d/%d", h.log2m, other.log2m, h.regwidth, other.regwidth)
	}

	if h.typ == other.typ {
		h.homogeneousUnion(other)
	} else {
		h.heterogeneousUnion(other)
	}
	return nil
}

func (h *HLL) homogeneousUnion(other *HLL) {
	switch h.typ {
	case Empty:
		return

	case Explicit:
		it := newLongHashSetIterator(other.explicitStorage)
		for it.hasNext() {
			h.AddRaw(it.next())
		}

	case Sparse:
		it := newInt2ByteMapIterator(other.sparseStorage)
		for it.hasNext() {
			registerIndex := it.nextKey()
			registerValue := other.sparseStorage.get(registerIndex)
			if registerValue > h.sparseStorage.get(registerIndex) {
				h.sparseStorage.put(registerIndex, registerValue)
			}
		}
		if h.sparseStorage.Size() > h.sparseThreshold {
			h.promoteFromSparse()
		}

	case Full:
		for i := uint64(0); i < uint64(h.m); i++ {
			h.fullStorage.setMaxRegister(i, other.fullStorage.get(i))
		}

	default:
		panic(fmt.Sprintf("hll: unsupported type %v", h.typ))
	}
}

// heterogeneousUnion handles every (src, dest) type pair except src == dest,
// which homogeneousUnion covers. It is split into the EMPTY cases (a union
// with EMPTY is just a clone of the other side) and the remaining
// EXPLICIT/SPARSE/FULL matrix.
func (h *HLL) heterogeneousUnion(other *HLL) {
	if h.typ == Empty {
		switch other.typ {
		case Explicit:
			if other.explicitStorage.Size() <= h.explicitThreshold {
				h.typ = Explicit
				h.explicitStorage = other.explicitStorage.clone()
			} else {
				if !h.sparseDisabled {
					h.initializeStorage(Sparse)
				} else {
					h.initializeStorage(Full)
				}
				it := newLongHashSetIterator(other.explicitStorage)
				for it.hasNext() {
					h.AddRaw(it.next())
				}
			}
		case Sparse:
			if !h.sparseDisabled {
				h.typ = Sparse
				h.sparseStorage = other.sparseStorage.clone()
			} else {
				h.initializeStorage(Full)
				it := newInt2ByteMapIterator(other.sparseStorage)
				for it.hasNext() {
					registerIndex := it.nextKey()
					h.fullStorage.setMaxRegister(uint64(registerIndex), uint64(other.sparseStorage.get(registerIndex)))
				}
			}
		default:
			h.typ = Full
			h.fullStorage = other.fullStorage.clone()
		}
		return
	}

	if other.typ == Empty {
		return
	}

	switch h.typ {
	case Explicit:
		// The destination (EXPLICIT) is by definition smaller-capacity than
		// the source, so a clone of the source is made and the destination's
		// values are replayed into it, rather than the other way around.
		oldExplicit := h.explicitStorage
		if other.typ == Sparse {
			if !h.sparseDisabled {
				h.typ = Sparse
				h.sparseStorage = other.sparseStorage.clone()
			} else {
				h.initializeStorage(Full)
				it := newInt2ByteMapIterator(other.sparseStorage)
				for it.hasNext() {
					registerIndex := it.nextKey()
					h.fullStorage.setMaxRegister(uint64(registerIndex), uint64(other.sparseStorage.get(registerIndex)))
				}
			}
		} else {
			h.typ = Full
			h.fullStorage = other.fullStorage.clone()
		}

		it := newLongHashSetIterator(oldExplicit)
		for it.hasNext() {
			h.AddRaw(it.next())
		}

	case Sparse:
		if other.typ == Explicit {
			it := newLongHashSetIterator(other.explicitStorage)
			for it.hasNext() {
				h.AddRaw(it.next())
			}
		} else {
			// source is FULL: destination is smaller-capacity, so clone the
			// source and merge the destination's registers into the clone.
			oldSparse := h.sparseStorage
			h.typ = Full
			h.fullStorage = other.fullStorage.clone()

			it := newInt2ByteMapIterator(oldSparse)
			for it.hasNext() {
				registerIndex := it.nextKey()
				h.fullStorage.setMaxRegister(uint64(registerIndex), uint64(oldSparse.get(registerIndex)))
			}
		}

	default: // Full
		if other.typ == Explicit {
			it := newLongHashSetIterator(other.explicitStorage)
			for it.hasNext() {
				h.AddRaw(it.next())
			}
		} else {
			it := newInt2ByteMapIterator(other.sparseStorage)
			for it.hasNext() {
				registerIndex := it.nextKey()
				h.fullStorage.setMaxRegister(uint64(registerIndex), uint64(other.sparseStorage.get(registerIndex)))
			}
		}
	}
}

// ToBytes serializes the HLL per the HLL Storage Spec v1.0.0, schema
// version 1.
func (h *HLL) ToBytes() []byte {
	var buf []byte

	switch h.typ {
	case Empty:
		buf = make([]byte, headerByteCount)

	case Explicit:
		values := make([]uint64, 0, h.explicitStorage.Size())
		it := newLongHashSetIterator(h.explicitStorage)
		for it.hasNext() {
			values = append(values, it.next())
		}
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

		s := newWordSerializer(bitsPerLong, h.explicitStorage.Size())
		for _, v := range values {
			s.writeWord(v)
		}
		buf = s.getBytes()

	case Sparse:
		indices := make([]uint32, 0, h.sparseStorage.Size())
		it := newInt2ByteMapIterator(h.sparseStorage)
		for it.hasNext() {
			indices = append(indices, it.nextKey())
		}
		sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

		s := newWordSerializer(h.shortWordLength, h.sparseStorage.Size())
		for _, registerIndex := range indices {
			registerValue := h.sparseStorage.get(registerIndex)
			shortWord := (uint64(registerIndex) << uint64(h.regwidth)) | uint64(registerValue)
			s.writeWord(shortWord)
		}
		buf = s.getBytes()

	case Full:
		s := newWordSerializer(h.regwidth, h.m)
		h.fullStorage.writeTo(s)
		buf = s.getBytes()

	default:
		panic(fmt.Sprintf("hll: unsupported type %v", h.typ))
	}

	h.writeHeader(buf)
	return buf
}

func (h *HLL) writeHeader(buf []byte) {
	var explicitCutoffValue int
	switch {
	case h.explicitDisabled:
		explicitCutoffValue = explicitCutoffOff
	case h.explicitAuto:
		explicitCutoffValue = explicitCutoffAuto
	default:
		explicitCutoffValue = int(math.Log2(float64(h.explicitThreshold))) + 1
	}

	buf[0] = packVersionByte(schemaVersion, typeOrdinals[h.typ])
	buf[1] = packParametersByte(h.regwidth, h.log2m)
	buf[2] = packCutoffByte(explicitCutoffValue, !h.sparseDisabled)
}

// FromBytes deserializes an HLL previously produced by ToBytes. It returns
// a *DecodeError (wrapping ErrDecode) if the input is malformed.
func FromBytes(data []byte) (*HLL, error) {
	if len(data) < headerByteCount {
		return nil, newDecodeError(BadLength, fmt.Errorf("need at least %d header bytes, got %d", headerByteCount, len(data)))
	}

	versionByte, parametersByte, cutoffByte := data[0], data[1], data[2]

	if schemaVersionOf(versionByte) != schemaVersion {
		return nil, newDecodeError(UnknownVersion, fmt.Errorf("schema version %d", schemaVersionOf(versionByte)))
	}

	typ, ok := ordinalTypes[typeOrdinalOf(versionByte)]
	if !ok {
		return nil, newDecodeError(UnknownType, fmt.Errorf("type ordinal %d", typeOrdinalOf(versionByte)))
	}

	explicitCutoffValue := explicitCutoffOf(cutoffByte)
	explicitOff := explicitCutoffValue == explicitCutoffOff
	explicitAuto := explicitCutoffValue == explicitCutoffAuto

	regwidth := registerWidthOf(parametersByte)
	log2m := registerCountLog2Of(parametersByte)
	sparseOn := sparseEnabledOf(cutoffByte)

	var expthresh int
	switch {
	case explicitAuto:
		expthresh = ExplicitThresholdAuto
	case explicitOff:
		expthresh = ExplicitThresholdDisabled
	default:
		expthresh = explicitCutoffValue
	}

	h, err := NewWithOptions(log2m, regwidth, expthresh, sparseOn)
	if err != nil {
		return nil, newDecodeError(BadParameters, err)
	}
	h.initializeStorage(typ)

	if typ == Empty {
		return h, nil
	}

	var wordLength uint
	switch typ {
	case Explicit:
		wordLength = bitsPerLong
	case Sparse:
		wordLength = h.shortWordLength
	case Full:
		wordLength = h.regwidth
	}

	d := newWordDeserializer(wordLength, headerByteCount, data)

	switch typ {
	case Explicit:
		var previous uint64
		for i := uint(0); i < d.totalWordCount(); i++ {
			value := d.readWord()
			if i > 0 && value <= previous {
				return nil, newDecodeError(NonMonotonicExplicit, fmt.Errorf("entry %d (%d) not greater than previous (%d)", i, value, previous))
			}
			h.explicitStorage.add(value)
			previous = value
		}

	case Sparse:
		for i := uint(0); i < d.totalWordCount(); i++ {
			shortWord := d.readWord()
			registerValue := byte(shortWord & h.valueMask)
			if registerValue != 0 {
				h.sparseStorage.put(uint32(shortWord>>h.regwidth), registerValue)
			}
		}

	case Full:
		// m >= 16, so m*regwidth bits is always a whole number of bytes and a
		// well-formed payload holds exactly m registers. A shorter payload is
		// rejected; bytes past the m-th register are ignored.
		if d.totalWordCount() < h.m {
			return nil, newDecodeError(BadLength, fmt.Errorf("FULL payload holds %d registers, need %d", d.totalWordCount(), h.m))
		}
		for i := uint64(0); i < uint64(h.m); i++ {
			h.fullStorage.setRegister(i, d.readWord())
		}
	}

	return h, nil
}
