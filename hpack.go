package http2

import (
	"sync"
)

// HPACK implements RFC 7541 header compression: a static table of 61
// predefined fields, a per-connection dynamic table, and the integer/string
// literal codecs layered on top of them.
//
// A connection owns two HPACK instances, one per direction (encoding
// outbound header blocks, decoding inbound ones) since RFC 7541's dynamic
// table is tracked independently per direction.
type HPACK struct {
	dynamic     []*HeaderField // index 0 is the most recently inserted entry
	dynamicSize int            // sum of Size() over dynamic, per RFC 7541 §4.1

	maxSize     int // the ceiling this side has announced via SETTINGS_HEADER_TABLE_SIZE
	pendingSize bool

	blockStarted bool // true once Next has decoded the block's first representation
}

var hpackPool = sync.Pool{
	New: func() interface{} {
		return &HPACK{maxSize: int(defaultHeaderTableSize)}
	},
}

// AcquireHPACK returns an HPACK from the pool with an empty dynamic table.
func AcquireHPACK() *HPACK {
	hp := hpackPool.Get().(*HPACK)
	return hp
}

// ReleaseHPACK resets hp and returns it to the pool.
func ReleaseHPACK(hp *HPACK) {
	hp.Reset()
	hpackPool.Put(hp)
}

// Reset empties the dynamic table and restores the default table size.
func (hp *HPACK) Reset() {
	for _, hf := range hp.dynamic {
		ReleaseHeaderField(hf)
	}
	hp.dynamic = hp.dynamic[:0]
	hp.dynamicSize = 0
	hp.maxSize = int(defaultHeaderTableSize)
	hp.pendingSize = false
	hp.blockStarted = false
}

// MaxTableSize returns the currently effective dynamic table size ceiling.
func (hp *HPACK) MaxTableSize() int {
	return hp.maxSize
}

// SetMaxTableSize changes the ceiling this side allows for its dynamic
// table, evicting entries if the new ceiling is smaller. Used on the
// decoding HPACK instance when the local SETTINGS_HEADER_TABLE_SIZE changes,
// and on the encoding instance when an update needs to be signaled to the
// peer via a dynamic table size update entry.
func (hp *HPACK) SetMaxTableSize(n int) {
	hp.maxSize = n
	hp.pendingSize = true
	hp.evictTo(n)
}

func (hp *HPACK) evictTo(size int) {
	for hp.dynamicSize > size && len(hp.dynamic) > 0 {
		last := hp.dynamic[len(hp.dynamic)-1]
		hp.dynamicSize -= last.Size()
		hp.dynamic = hp.dynamic[:len(hp.dynamic)-1]
		ReleaseHeaderField(last)
	}
}

func (hp *HPACK) insert(hf *HeaderField) {
	entry := AcquireHeaderField()
	hf.CopyTo(entry)

	hp.dynamic = append(hp.dynamic, nil)
	copy(hp.dynamic[1:], hp.dynamic)
	hp.dynamic[0] = entry
	hp.dynamicSize += entry.Size()

	hp.evictTo(hp.maxSize)
}

// dynamicLookup returns the dynamic-table entry at the given RFC 7541
// index, where index 1 is the most recently inserted field. idx must
// already be adjusted to be relative to the dynamic table (i.e. with
// len(staticTable) subtracted).
func (hp *HPACK) dynamicLookup(idx int) (*HeaderField, bool) {
	if idx < 1 || idx > len(hp.dynamic) {
		return nil, false
	}
	return hp.dynamic[idx-1], true
}

func lookup(hp *HPACK, index uint64) (*HeaderField, bool) {
	if index == 0 {
		return nil, false
	}
	if int(index) <= len(staticTable) {
		return &staticTable[index-1], true
	}
	return hp.dynamicLookup(int(index) - len(staticTable))
}

// representation prefixes, RFC 7541 §6.
const (
	reprIndexed          = 0x80 // 1xxxxxxx
	reprLiteralIncIndex  = 0x40 // 01xxxxxx
	reprLiteralNoIndex   = 0x00 // 0000xxxx
	reprLiteralNeverIdx  = 0x10 // 0001xxxx
	reprDynamicSizeUpdate = 0x20 // 001xxxxx
)

// AppendHeader encodes hf as a single HPACK representation and appends it
// to dst. When store is true (and hf isn't marked sensible) the field is
// encoded as "literal with incremental indexing" and added to the dynamic
// table; otherwise it's encoded as a literal that leaves the table alone.
// A field whose name and value already sit in the static table, or (unless
// sensible) in the dynamic table, is encoded as a pure indexed reference.
// Sensitive fields (hf.IsSensible()) always use the never-indexed
// representation regardless of store, per RFC 7541 §7.1.
func (hp *HPACK) AppendHeader(dst []byte, hf *HeaderField, store bool) []byte {
	if hp.pendingSize {
		dst = appendInt(dst, 5, uint64(hp.maxSize), reprDynamicSizeUpdate)
		hp.pendingSize = false
	}

	idx, full := findIndexed(hf)
	if full {
		return appendInt(dst, 7, uint64(idx), reprIndexed)
	}
	if !hf.IsSensible() {
		for i, e := range hp.dynamic {
			if e.Key() == hf.Key() && e.Value() == hf.Value() {
				return appendInt(dst, 7, uint64(len(staticTable)+i+1), reprIndexed)
			}
		}
	}

	return hp.appendLiteral(dst, hf, idx, store)
}

// findIndexed looks for hf (name, and optionally value) in the static
// table, returning the 1-based index and whether the value matched too
// (a "full" match allows the pure-indexed representation).
func findIndexed(hf *HeaderField) (idx int, full bool) {
	for i := range staticTable {
		if staticTable[i].Key() != hf.Key() {
			continue
		}
		if idx == 0 {
			idx = i + 1 // remember the first name-only match
		}
		if staticTable[i].Value() == hf.Value() {
			return i + 1, true
		}
	}
	return idx, false
}

func (hp *HPACK) appendLiteral(dst []byte, hf *HeaderField, nameIdx int, store bool) []byte {
	switch {
	case hf.IsSensible():
		dst = appendLiteralPrefix(dst, nameIdx, reprLiteralNeverIdx, 4)
	case store:
		dst = appendLiteralPrefix(dst, nameIdx, reprLiteralIncIndex, 6)
		hp.insert(hf)
	default:
		dst = appendLiteralPrefix(dst, nameIdx, reprLiteralNoIndex, 4)
	}

	if nameIdx == 0 {
		dst = appendString(dst, hf.KeyBytes())
	}
	dst = appendString(dst, hf.ValueBytes())
	return dst
}

func appendLiteralPrefix(dst []byte, nameIdx int, repr byte, prefixBits uint) []byte {
	if nameIdx > 0 {
		return appendInt(dst, prefixBits, uint64(nameIdx), repr)
	}
	return append(dst, repr)
}

// ResetBlock must be called before decoding the first fragment of a new
// header block (a HEADERS or PUSH_PROMISE frame, before any CONTINUATION).
// It re-arms the "dynamic table size update must come first" check Next
// enforces across the block's fragments.
func (hp *HPACK) ResetBlock() {
	hp.blockStarted = false
}

// Next decodes a single HPACK representation from the front of b and
// returns the unconsumed remainder. Since a header block's fragments
// (HEADERS plus any CONTINUATION frames) are handed to Next one frame's
// payload at a time, call ResetBlock before the first fragment of each
// block so the dynamic-table-size-update placement rule is enforced across
// the whole block rather than per fragment.
func (hp *HPACK) Next(hf *HeaderField, b []byte) ([]byte, error) {
	if len(b) == 0 {
		return b, ErrMissingBytes
	}

	c := b[0]

	for c&0xe0 == reprDynamicSizeUpdate && c&reprIndexed != reprIndexed {
		if hp.blockStarted {
			return b, NewError(CompressionError, "dynamic table size update not first in block")
		}
		rest, size, err := readInt(5, b)
		if err != nil {
			return b, err
		}
		hp.evictTo(int(size))
		hp.maxSize = int(size)
		b = rest
		if len(b) == 0 {
			return b, ErrMissingBytes
		}
		c = b[0]
	}
	hp.blockStarted = true

	switch {
	case c&reprIndexed == reprIndexed:
		rest, index, err := readInt(7, b)
		if err != nil {
			return b, err
		}
		entry, ok := lookup(hp, index)
		if !ok {
			return b, NewError(CompressionError, "indexed field not found")
		}
		hf.SetKey(entry.Key())
		hf.SetValue(entry.Value())
		return rest, nil

	case c&0xc0 == reprLiteralIncIndex:
		rest, decoded, err := hp.decodeLiteral(b, 6)
		if err != nil {
			return b, err
		}
		decoded.CopyTo(hf)
		hp.insert(decoded)
		ReleaseHeaderField(decoded)
		return rest, nil

	case c&0xf0 == reprLiteralNeverIdx:
		rest, decoded, err := hp.decodeLiteral(b, 4)
		if err != nil {
			return b, err
		}
		decoded.CopyTo(hf)
		hf.sensible = true
		ReleaseHeaderField(decoded)
		return rest, nil

	default: // literal without indexing, 0000xxxx
		rest, decoded, err := hp.decodeLiteral(b, 4)
		if err != nil {
			return b, err
		}
		decoded.CopyTo(hf)
		ReleaseHeaderField(decoded)
		return rest, nil
	}
}

// Decode parses a complete header block (the concatenation of a HEADERS
// frame's fragment with every following CONTINUATION fragment up to
// END_HEADERS) and appends the decoded fields to dst. It is a convenience
// built on Next for callers that already have the whole block assembled
// (used by the HPACK interop test).
func (hp *HPACK) Decode(dst []*HeaderField, src []byte) ([]*HeaderField, error) {
	hp.ResetBlock()

	for len(src) > 0 {
		hf := AcquireHeaderField()
		rest, err := hp.Next(hf, src)
		if err != nil {
			ReleaseHeaderField(hf)
			return dst, err
		}
		dst = append(dst, hf)
		src = rest
	}

	return dst, nil
}

func (hp *HPACK) decodeLiteral(src []byte, prefixBits uint) ([]byte, *HeaderField, error) {
	b, nameIdx, err := readInt(prefixBits, src)
	if err != nil {
		return nil, nil, err
	}

	hf := AcquireHeaderField()

	if nameIdx == 0 {
		b, err = readString(b, hf)
		if err != nil {
			ReleaseHeaderField(hf)
			return nil, nil, err
		}
	} else {
		entry, ok := lookup(hp, nameIdx)
		if !ok {
			ReleaseHeaderField(hf)
			return nil, nil, NewError(CompressionError, "indexed name not found")
		}
		hf.SetKey(entry.Key())
	}

	var value HeaderField
	b, err = readString(b, &value)
	if err != nil {
		ReleaseHeaderField(hf)
		return nil, nil, err
	}
	hf.SetValueBytes(value.key)

	return b, hf, nil
}

// appendInt encodes i using RFC 7541 §5.1's N-bit prefix integer
// representation, OR-ing the leading byte with repr (the representation's
// high bits, already shifted into place).
func appendInt(dst []byte, n uint, i uint64, repr byte) []byte {
	max := uint64(1<<n) - 1

	if i < max {
		return append(dst, repr|byte(i))
	}

	dst = append(dst, repr|byte(max))
	i -= max
	for i >= 128 {
		dst = append(dst, byte(0x80|(i&0x7f)))
		i >>= 7
	}
	return append(dst, byte(i))
}

// readInt decodes an RFC 7541 §5.1 N-bit prefix integer from the start of
// b, returning the remaining bytes and the decoded value.
func readInt(n uint, b []byte) ([]byte, uint64, error) {
	if len(b) == 0 {
		return b, 0, ErrMissingBytes
	}

	max := uint64(1<<n) - 1
	value := uint64(b[0]) & max
	if value < max {
		return b[1:], value, nil
	}

	pos := 1
	var m uint
	for pos < len(b) {
		c := b[pos]
		pos++
		value += uint64(c&0x7f) << m
		if c&0x80 == 0 {
			return b[pos:], value, nil
		}
		m += 7
		if m >= 63 {
			return b[pos:], 0, ErrBitOverflow
		}
	}

	return b[pos:], 0, ErrUnexpectedSize
}

// readString decodes an RFC 7541 §5.2 string literal from the start of b,
// writing the decoded bytes into hf's key field (a scratch area; callers
// move it where it belongs) and returning the remaining bytes.
func readString(b []byte, hf *HeaderField) ([]byte, error) {
	if len(b) == 0 {
		return b, ErrMissingBytes
	}

	huffman := b[0]&0x80 == 0x80
	b, length, err := readInt(7, b)
	if err != nil {
		return b, err
	}
	if uint64(len(b)) < length {
		return b, ErrUnexpectedSize
	}

	raw := b[:length]
	b = b[length:]

	if huffman {
		hf.key, err = huffmanDecode(hf.key[:0], raw)
		return b, err
	}

	hf.key = append(hf.key[:0], raw...)
	return b, nil
}

// appendString encodes src as an RFC 7541 §5.2 string literal, always
// Huffman-coded (this engine's encoder never emits raw string literals,
// matching the teacher's original behavior).
func appendString(dst, src []byte) []byte {
	encLen := huffmanEncodedLen(src)
	dst = appendInt(dst, 7, uint64(encLen), 0x80)
	dst = appendHuffman(dst, src)
	return dst
}
