package bitset

import (
	"fmt"
	"iter"
	"math/bits"
	"strconv"
	"strings"
)

// MaxBitsetWords specifies the number of 64-bit words in the bitset.
const MaxBitsetWords = 16

// MaxBits is the number of bits a TinyBitset can hold.
const MaxBits = 64 * MaxBitsetWords

// TinyBitset implements constant-length bitset.
//
// It is used to describe sets of cores, so the capacity matches the largest
// core count the agent supports.
type TinyBitset struct {
	words [MaxBitsetWords]uint64
}

// Count returns the number of bits set in the bitset.
func (m *TinyBitset) Count() uint {
	count := uint(0)
	for _, word := range m.words {
		count += uint(bits.OnesCount64(word))
	}

	return count
}

// IsEmpty reports whether no bit is set.
func (m *TinyBitset) IsEmpty() bool {
	return m.Count() == 0
}

// Insert inserts the given index into the bitset.
func (m *TinyBitset) Insert(idx uint32) {
	if idx >= MaxBits {
		panic(fmt.Sprintf("index %d is too big: must be less than %d", idx, MaxBits))
	}

	m.words[idx/64] |= 1 << (idx % 64)
}

// Remove clears the given index. Out of range indices are ignored.
func (m *TinyBitset) Remove(idx uint32) {
	if idx >= MaxBits {
		return
	}

	m.words[idx/64] &^= 1 << (idx % 64)
}

// Contains reports whether the given index is set.
func (m *TinyBitset) Contains(idx uint32) bool {
	if idx >= MaxBits {
		return false
	}

	return m.words[idx/64]&(1<<(idx%64)) != 0
}

// Traverse traverses the bitset and calls the given function for each bit set.
//
// Iteration is performed from the least significant bit to the most
// significant one.
func (m *TinyBitset) Traverse(fn func(uint32) bool) {
	for idx, word := range m.words {
		isContinue := NewBitsTraverser(word).Traverse(func(r uint32) bool {
			return fn(64*uint32(idx) + r)
		})

		if !isContinue {
			break
		}
	}
}

func (m *TinyBitset) Iter() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		m.Traverse(yield)
	}
}

// AsSlice returns the bitset as a slice of indices, where each index is a
// position of the bit set.
func (m *TinyBitset) AsSlice() []uint32 {
	out := make([]uint32, 0, m.Count())

	m.Traverse(func(idx uint32) bool {
		out = append(out, idx)
		return true
	})

	return out
}

// String formats the bitset as a compact list, for example "0-3,8,10-11".
func (m *TinyBitset) String() string {
	var b strings.Builder

	first, last := int64(-1), int64(-1)
	flush := func() {
		if first < 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(first, 10))
		if last != first {
			b.WriteByte('-')
			b.WriteString(strconv.FormatInt(last, 10))
		}
	}

	for idx := range m.Iter() {
		if int64(idx) == last+1 && first >= 0 {
			last = int64(idx)
			continue
		}
		flush()
		first, last = int64(idx), int64(idx)
	}
	flush()

	return b.String()
}

// ParseList parses a list of indices and ranges, like "0,2-4,7".
func ParseList(s string) (TinyBitset, error) {
	out := TinyBitset{}

	s = strings.TrimSpace(s)
	if s == "" {
		return out, fmt.Errorf("empty list")
	}

	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)

		lo, hi, isRange := strings.Cut(item, "-")
		from, err := parseIndex(lo)
		if err != nil {
			return TinyBitset{}, err
		}
		to := from
		if isRange {
			if to, err = parseIndex(hi); err != nil {
				return TinyBitset{}, err
			}
		}
		if to < from {
			return TinyBitset{}, fmt.Errorf("invalid range %q: %d > %d", item, from, to)
		}

		for idx := from; idx <= to; idx++ {
			out.Insert(idx)
		}
	}

	return out, nil
}

// ParseHexMask parses a hexadecimal mask, with or without the "0x" prefix,
// where bit N set means index N is in the set.
func ParseHexMask(s string) (TinyBitset, error) {
	out := TinyBitset{}

	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return out, fmt.Errorf("empty mask")
	}

	idx := uint32(0)
	for pos := len(s) - 1; pos >= 0; pos-- {
		nibble, err := strconv.ParseUint(s[pos:pos+1], 16, 8)
		if err != nil {
			return TinyBitset{}, fmt.Errorf("invalid hex digit %q in mask %q", s[pos], s)
		}

		for bit := range NewBitsTraverser(nibble).Iter() {
			if idx+bit >= MaxBits {
				return TinyBitset{}, fmt.Errorf("mask %q is too wide: must be less than %d bits", s, MaxBits)
			}
			out.Insert(idx + bit)
		}
		idx += 4
	}

	return out, nil
}

func parseIndex(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q: %w", s, err)
	}
	if v >= MaxBits {
		return 0, fmt.Errorf("index %d is too big: must be less than %d", v, MaxBits)
	}

	return uint32(v), nil
}

// BitsTraverser is an iterator that allows to iterate over all bits set in the
// given 64-bit unsigned integer.
//
// Iteration is performed from the least significant bit to the most
// significant one.
type BitsTraverser struct {
	word uint64
}

// NewBitsTraverser constructs a new bits traverser over given 64-bit word.
func NewBitsTraverser(word uint64) BitsTraverser {
	return BitsTraverser{word: word}
}

// Traverse traverses the bitset and calls the given function for each bit set.
func (m BitsTraverser) Traverse(fn func(uint32) bool) bool {
	word := m.word

	for word > 0 {
		r := bits.TrailingZeros64(word)
		// Clears the lowest set bit, same as "word &^= 1 << r".
		word &= word - 1

		if !fn(uint32(r)) {
			return false
		}
	}

	return true
}

// Iter returns an iterator over the bits set in this word.
func (m BitsTraverser) Iter() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		m.Traverse(yield)
	}
}
