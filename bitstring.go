package hdl

import (
	"math/bits"
	"math/rand"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const wordWidth = 64

// BitString is a fixed-width bit vector stored little-endian in packed
// 64-bit words. The zero value is the empty (width 0) bit string.
// BitStrings are value types; operations return new strings and never
// mutate their receiver except for Set.
type BitString struct {
	width int
	words []uint64
}

func wordCount(width int) int {
	return (width + wordWidth - 1) / wordWidth
}

func maskLower(bits int) uint64 {
	if bits == 0 {
		return ^uint64(0)
	}
	return ^uint64(0) >> uint(wordWidth-bits)
}

// NewBitString returns an all-zero bit string of the given width.
func NewBitString(width int) BitString {
	assert(width >= 0, "negative width %d", width)
	return BitString{width: width, words: make([]uint64, wordCount(width))}
}

// ParseBitString parses an MSB-first string of '0' and '1' digits.
// The width of the result equals the length of the string.
func ParseBitString(s string) (BitString, error) {
	b := NewBitString(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
		case '1':
			b.Set(len(s)-i-1, true)
		default:
			return BitString{}, errors.Wrapf(ErrInvalidDigit, "%q at %d", s[i], i)
		}
	}
	return b, nil
}

// ParseBitStringBase parses MSB-first digits where every digit carries
// log2Base bits. log2Base must be 1 (binary), 2, 3 (octal) or 4 (hex).
func ParseBitStringBase(log2Base int, digits string) (BitString, error) {
	assert(log2Base >= 1 && log2Base <= 4, "invalid digit width %d", log2Base)
	b := NewBitString(log2Base * len(digits))
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		var v uint64
		switch {
		case c >= '0' && c <= '9':
			v = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			v = uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = uint64(c-'A') + 10
		default:
			return BitString{}, errors.Wrapf(ErrInvalidDigit, "%q at %d", c, i)
		}
		if v >= uint64(1)<<uint(log2Base) {
			return BitString{}, errors.Wrapf(ErrInvalidDigit, "%q at %d exceeds base", c, i)
		}
		offset := (len(digits) - i - 1) * log2Base
		for bit := 0; bit < log2Base; bit++ {
			if v&(1<<uint(bit)) != 0 {
				b.Set(offset+bit, true)
			}
		}
	}
	return b, nil
}

// FromBool returns a width-1 bit string.
func FromBool(value bool) BitString {
	b := NewBitString(1)
	if value {
		b.words[0] = 1
	}
	return b
}

// FromUint8 returns the 8-bit encoding of value.
func FromUint8(value uint8) BitString { return fromUint(uint64(value), 8) }

// FromUint16 returns the 16-bit encoding of value.
func FromUint16(value uint16) BitString { return fromUint(uint64(value), 16) }

// FromUint32 returns the 32-bit encoding of value.
func FromUint32(value uint32) BitString { return fromUint(uint64(value), 32) }

// FromUint64 returns the 64-bit encoding of value.
func FromUint64(value uint64) BitString { return fromUint(value, 64) }

func fromUint(value uint64, width int) BitString {
	b := NewBitString(width)
	b.words[0] = value
	b.clip()
	return b
}

// One returns the bit string of the given width with value 1.
func One(width int) BitString {
	assert(width > 0, "zero width")
	b := NewBitString(width)
	b.words[0] = 1
	return b
}

// Upper returns a bit string with ones at every position >= fromBit and
// zeros below.
func Upper(width, fromBit int) BitString {
	b := NewBitString(width)
	for i := fromBit; i < width; i++ {
		b.Set(i, true)
	}
	return b
}

// RandomBitString returns a uniformly random bit string of the given width.
func RandomBitString(rnd *rand.Rand, width int) BitString {
	b := NewBitString(width)
	for i := range b.words {
		b.words[i] = rnd.Uint64()
	}
	b.clip()
	return b
}

// clip zeroes the unused bits of the top word.
func (b *BitString) clip() {
	if b.width%wordWidth != 0 && len(b.words) > 0 {
		b.words[len(b.words)-1] &= maskLower(b.width % wordWidth)
	}
}

// Width returns the number of bits in the string.
func (b BitString) Width() int { return b.width }

// At returns the bit at index. An out-of-range index panics with
// ErrIndexOutOfBounds.
func (b BitString) At(index int) bool {
	if index < 0 || index >= b.width {
		panic(errors.Wrapf(ErrIndexOutOfBounds, "index %d of width %d", index, b.width))
	}
	return b.words[index/wordWidth]&(1<<uint(index%wordWidth)) != 0
}

// Set assigns the bit at index in place. An out-of-range index panics
// with ErrIndexOutOfBounds.
func (b BitString) Set(index int, value bool) {
	if index < 0 || index >= b.width {
		panic(errors.Wrapf(ErrIndexOutOfBounds, "index %d of width %d", index, b.width))
	}
	if value {
		b.words[index/wordWidth] |= 1 << uint(index%wordWidth)
	} else {
		b.words[index/wordWidth] &^= 1 << uint(index%wordWidth)
	}
}

// And returns the bitwise AND of b and other. Widths must match.
func (b BitString) And(other BitString) BitString {
	assert(b.width == other.width, "and: width mismatch: %d != %d", b.width, other.width)
	result := NewBitString(b.width)
	for i := range b.words {
		result.words[i] = b.words[i] & other.words[i]
	}
	return result
}

// Or returns the bitwise OR of b and other. Widths must match.
func (b BitString) Or(other BitString) BitString {
	assert(b.width == other.width, "or: width mismatch: %d != %d", b.width, other.width)
	result := NewBitString(b.width)
	for i := range b.words {
		result.words[i] = b.words[i] | other.words[i]
	}
	return result
}

// Xor returns the bitwise XOR of b and other. Widths must match.
func (b BitString) Xor(other BitString) BitString {
	assert(b.width == other.width, "xor: width mismatch: %d != %d", b.width, other.width)
	result := NewBitString(b.width)
	for i := range b.words {
		result.words[i] = b.words[i] ^ other.words[i]
	}
	return result
}

// Not returns the bitwise complement of b.
func (b BitString) Not() BitString {
	result := NewBitString(b.width)
	for i := range b.words {
		result.words[i] = ^b.words[i]
	}
	result.clip()
	return result
}

// Add returns the sum of b and other modulo 2^width. Widths must match.
func (b BitString) Add(other BitString) BitString {
	assert(b.width == other.width, "add: width mismatch: %d != %d", b.width, other.width)
	result := NewBitString(b.width)
	var carry uint64
	for i := range b.words {
		result.words[i], carry = bits.Add64(b.words[i], other.words[i], carry)
	}
	result.clip()
	return result
}

// Sub returns the two's complement difference of b and other modulo
// 2^width. Widths must match.
func (b BitString) Sub(other BitString) BitString {
	assert(b.width == other.width, "sub: width mismatch: %d != %d", b.width, other.width)
	result := NewBitString(b.width)
	var borrow uint64
	for i := range b.words {
		result.words[i], borrow = bits.Sub64(b.words[i], other.words[i], borrow)
	}
	result.clip()
	return result
}

// Mul returns the product of b and other truncated to b's width.
// Widths must match.
func (b BitString) Mul(other BitString) BitString {
	assert(b.width == other.width, "mul: width mismatch: %d != %d", b.width, other.width)
	return b.MulU(other).Truncate(b.width)
}

// MulU returns the full unsigned product of b and other, of width
// b.Width()+other.Width().
func (b BitString) MulU(other BitString) BitString {
	width := b.width + other.width
	result := NewBitString(width)
	lhs := b.ZeroExtend(width)
	for i := 0; i < other.width; i++ {
		if other.At(i) {
			result = result.Add(lhs.Shl(i))
		}
	}
	return result
}

// Shl returns b shifted left by amount bits, filling with zeros.
func (b BitString) Shl(amount int) BitString {
	assert(amount >= 0, "negative shift %d", amount)
	result := NewBitString(b.width)
	if amount >= b.width {
		return result
	}
	wordShift, bitShift := amount/wordWidth, uint(amount%wordWidth)
	for i := len(result.words) - 1; i >= wordShift; i-- {
		result.words[i] = b.words[i-wordShift] << bitShift
		if bitShift != 0 && i > wordShift {
			result.words[i] |= b.words[i-wordShift-1] >> (wordWidth - bitShift)
		}
	}
	result.clip()
	return result
}

// ShrU returns b logically shifted right by amount bits, filling with
// zeros.
func (b BitString) ShrU(amount int) BitString {
	assert(amount >= 0, "negative shift %d", amount)
	result := NewBitString(b.width)
	if amount >= b.width {
		return result
	}
	wordShift, bitShift := amount/wordWidth, uint(amount%wordWidth)
	for i := 0; i+wordShift < len(b.words); i++ {
		result.words[i] = b.words[i+wordShift] >> bitShift
		if bitShift != 0 && i+wordShift+1 < len(b.words) {
			result.words[i] |= b.words[i+wordShift+1] << (wordWidth - bitShift)
		}
	}
	return result
}

// ShrS returns b arithmetically shifted right by amount bits, filling
// with the sign bit.
func (b BitString) ShrS(amount int) BitString {
	assert(amount >= 0, "negative shift %d", amount)
	sign := b.width > 0 && b.At(b.width-1)
	if amount >= b.width {
		if sign {
			return NewBitString(b.width).Not()
		}
		return NewBitString(b.width)
	}
	result := b.ShrU(amount)
	if sign {
		result = result.Or(Upper(b.width, b.width-amount))
	}
	return result
}

// ZeroExtend returns b widened to the given width with zeros above.
func (b BitString) ZeroExtend(width int) BitString {
	assert(width >= b.width, "cannot zero extend %d to %d", b.width, width)
	result := NewBitString(width)
	copy(result.words, b.words)
	return result
}

// Truncate returns the low width bits of b.
func (b BitString) Truncate(width int) BitString {
	assert(width <= b.width, "cannot truncate %d to %d", b.width, width)
	result := NewBitString(width)
	copy(result.words, b.words[:len(result.words)])
	result.clip()
	return result
}

// ResizeU zero-extends or truncates b to the given width.
func (b BitString) ResizeU(width int) BitString {
	if width >= b.width {
		return b.ZeroExtend(width)
	}
	return b.Truncate(width)
}

// Concat returns the concatenation of b (high bits) and other (low
// bits), of width b.Width()+other.Width().
func (b BitString) Concat(other BitString) BitString {
	result := other.ZeroExtend(b.width + other.width)
	return result.Or(b.ZeroExtend(b.width + other.width).Shl(other.width))
}

// SliceWidth returns the bits [offset, offset+width) of b.
func (b BitString) SliceWidth(offset, width int) (BitString, error) {
	if offset < 0 || width < 0 || offset+width > b.width {
		return BitString{}, errors.Wrapf(ErrSliceOutOfBounds, "[%d, %d) of width %d", offset, offset+width, b.width)
	}
	return b.ShrU(offset).Truncate(width), nil
}

// Equal returns true if b and other have the same width and bits.
func (b BitString) Equal(other BitString) bool {
	if b.width != other.width {
		return false
	}
	for i := range b.words {
		if b.words[i] != other.words[i] {
			return false
		}
	}
	return true
}

// LtU returns the unsigned comparison b < other. Widths must match.
func (b BitString) LtU(other BitString) bool {
	assert(b.width == other.width, "lt_u: width mismatch: %d != %d", b.width, other.width)
	for i := len(b.words) - 1; i >= 0; i-- {
		if b.words[i] != other.words[i] {
			return b.words[i] < other.words[i]
		}
	}
	return false
}

// LeU returns the unsigned comparison b <= other. Widths must match.
func (b BitString) LeU(other BitString) bool {
	return !other.LtU(b)
}

// LtS returns the signed comparison b < other. Widths must match.
// Signed order is unsigned order with the most significant bit inverted.
func (b BitString) LtS(other BitString) bool {
	assert(b.width == other.width, "lt_s: width mismatch: %d != %d", b.width, other.width)
	return b.flipSign().LtU(other.flipSign())
}

// LeS returns the signed comparison b <= other. Widths must match.
func (b BitString) LeS(other BitString) bool {
	return !other.LtS(b)
}

func (b BitString) flipSign() BitString {
	result := NewBitString(b.width)
	copy(result.words, b.words)
	result.Set(b.width-1, !b.At(b.width-1))
	return result
}

// MinU returns the unsigned minimum of b and other.
func (b BitString) MinU(other BitString) BitString {
	if other.LtU(b) {
		return other
	}
	return b
}

// MaxU returns the unsigned maximum of b and other.
func (b BitString) MaxU(other BitString) BitString {
	if b.LtU(other) {
		return other
	}
	return b
}

// IsZero returns true if every bit is zero.
func (b BitString) IsZero() bool {
	for _, word := range b.words {
		if word != 0 {
			return false
		}
	}
	return true
}

// IsAllOnes returns true if every bit is one.
func (b BitString) IsAllOnes() bool {
	return b.Popcount() == b.width
}

// IsUint returns true if the value of b equals value.
func (b BitString) IsUint(value uint64) bool {
	if b.width < wordWidth && value >= uint64(1)<<uint(b.width) {
		return false
	}
	if len(b.words) == 0 {
		return value == 0
	}
	if b.words[0] != value {
		return false
	}
	for _, word := range b.words[1:] {
		if word != 0 {
			return false
		}
	}
	return true
}

// Popcount returns the number of one bits.
func (b BitString) Popcount() int {
	count := 0
	for _, word := range b.words {
		count += bits.OnesCount64(word)
	}
	return count
}

// IsOneHot returns true if exactly one bit is set.
func (b BitString) IsOneHot() bool {
	return b.Popcount() == 1
}

// FloorLog2 returns the index of the highest set bit, or -1 if zero.
func (b BitString) FloorLog2() int {
	return b.RfindBit(true)
}

// CeilLog2 returns the smallest n with value <= 2^n. Zero yields 0.
func (b BitString) CeilLog2() int {
	high := b.FloorLog2()
	if high <= 0 {
		return 0
	}
	if b.IsOneHot() {
		return high
	}
	return high + 1
}

// FindBit returns the lowest index holding value, or the width if no
// bit does.
func (b BitString) FindBit(value bool) int {
	for i := 0; i < b.width; i++ {
		if b.At(i) == value {
			return i
		}
	}
	return b.width
}

// RfindBit returns the highest index holding value, or -1 if no bit
// does.
func (b BitString) RfindBit(value bool) int {
	for i := b.width - 1; i >= 0; i-- {
		if b.At(i) == value {
			return i
		}
	}
	return -1
}

// Uint64 returns the low 64 bits of b, zero-extended.
func (b BitString) Uint64() uint64 {
	if len(b.words) == 0 {
		return 0
	}
	return b.words[0]
}

// Bool returns the value of a width-1 bit string.
func (b BitString) Bool() bool {
	assert(b.width == 1, "bool requires width 1, got %d", b.width)
	return b.words[0] != 0
}

// ReverseWords returns b with the order of its k-bit groups reversed.
// The width must be a multiple of k.
func (b BitString) ReverseWords(k int) BitString {
	assert(k > 0 && b.width%k == 0, "width %d is not a multiple of %d", b.width, k)
	result := NewBitString(b.width)
	groups := b.width / k
	for g := 0; g < groups; g++ {
		for i := 0; i < k; i++ {
			if b.At(g*k + i) {
				result.Set((groups-g-1)*k+i, true)
			}
		}
	}
	return result
}

// Select returns then if the width-1 condition b is one, otherwise els.
func (b BitString) Select(then, els BitString) BitString {
	if b.Bool() {
		return then
	}
	return els
}

// Hash returns a hash of b consistent with Equal.
func (b BitString) Hash() uint64 {
	// FNV-1a over the significant words plus the width.
	hash := uint64(14695981039346656037)
	mix := func(v uint64) {
		for i := 0; i < 8; i++ {
			hash ^= (v >> uint(i*8)) & 0xff
			hash *= 1099511628211
		}
	}
	mix(uint64(b.width))
	for _, word := range b.words {
		mix(word)
	}
	return hash
}

// String renders b as a sized binary literal, e.g. "4'b0110".
func (b BitString) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(b.width))
	sb.WriteString("'b")
	for i := b.width - 1; i >= 0; i-- {
		if b.At(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
