// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hpack implements HPACK, a compression format for
// efficiently representing HTTP header fields in the context of
// HTTP/2 (RFC 7541).
//
// A Decoder and the Encoder that feeds it share compression state:
// every header block either side processes mutates its dynamic table.
// Any decoding error therefore leaves the connection's compression
// context unrecoverable; callers must treat it as a connection error
// and tear the connection down.
package hpack

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// A DecodingError is something RFC 7541 defines as a decoding error.
type DecodingError struct {
	Err error
}

func (de DecodingError) Error() string {
	return fmt.Sprintf("decoding error: %v", de.Err)
}

// An InvalidIndexError is returned when an encoder references a table
// entry before the static table or after the last entry of the
// dynamic table.
type InvalidIndexError int

func (e InvalidIndexError) Error() string {
	return fmt.Sprintf("invalid indexed representation index %d", int(e))
}

var (
	// ErrInvalidHuffman is returned when a Huffman-encoded string
	// literal contains the EOS symbol or a code that resolves to no
	// symbol.
	ErrInvalidHuffman = errors.New("hpack: invalid Huffman-encoded data")

	// ErrInvalidUTF8 is returned when a decoded string literal is not
	// valid UTF-8. Header fields are text; binary-unsafe values are
	// rejected rather than passed through.
	ErrInvalidUTF8 = errors.New("hpack: string literal is not valid UTF-8")

	errVarintOverflow = DecodingError{errors.New("integer overflow")}
	errUnexpectedEnd  = DecodingError{errors.New("truncated header block")}
	errTableSizeBound = DecodingError{errors.New("dynamic table size update exceeds limit")}
)

// A HeaderField is a name-value pair. Both the name and value are
// UTF-8 strings; the decoder rejects anything else.
type HeaderField struct {
	Name, Value string

	// Sensitive means that this header field should never be
	// indexed by this or any downstream encoder (it arrived in, or
	// should leave in, the never-indexed literal representation).
	// The codec records the flag; enforcing any policy beyond that
	// is up to the application.
	Sensitive bool
}

// IsPseudo reports whether the header field is an HTTP/2 pseudo
// header field, like ":method" or ":path".
func (hf HeaderField) IsPseudo() bool {
	return len(hf.Name) != 0 && hf.Name[0] == ':'
}

func (hf HeaderField) String() string {
	var suffix string
	if hf.Sensitive {
		suffix = " (sensitive)"
	}
	return fmt.Sprintf("header field %q = %q%s", hf.Name, hf.Value, suffix)
}

// Size returns the size of an entry per RFC 7541 section 4.1: the
// octet lengths of the name and the value, plus 32 octets of assumed
// bookkeeping overhead.
func (hf HeaderField) Size() uint32 {
	return uint32(len(hf.Name) + len(hf.Value) + 32)
}

// A Decoder is the decoding context for incremental processing of
// header blocks. One Decoder serves one connection for the
// connection's whole life, and is not safe for concurrent use.
type Decoder struct {
	dynTab dynamicTable
	emit   func(f HeaderField)

	// maxAllowed is the ceiling a dynamic table size update may set,
	// negotiated by the protocol above (SETTINGS_HEADER_TABLE_SIZE
	// in HTTP/2). Updates above it are decoding errors.
	maxAllowed uint32
}

// NewDecoder returns a new decoder with the provided maximum dynamic
// table size. If emitFunc is non-nil it is called for each header
// field decoded, in wire order, in addition to the fields being
// returned from DecodeFull.
func NewDecoder(maxDynamicTableSize uint32, emitFunc func(f HeaderField)) *Decoder {
	d := &Decoder{
		emit:       emitFunc,
		maxAllowed: maxDynamicTableSize,
	}
	d.dynTab.setMaxSize(maxDynamicTableSize)
	return d
}

// SetMaxDynamicTableSize changes the limit on the dynamic table size
// the peer encoder may use, typically after the protocol renegotiates
// it. If the table is currently larger, it shrinks immediately.
func (d *Decoder) SetMaxDynamicTableSize(v uint32) {
	d.maxAllowed = v
	if d.dynTab.maxSize > v {
		d.dynTab.setMaxSize(v)
	}
}

type dynamicTable struct {
	// ents holds the entries in insertion order: ents[len(ents)-1] is
	// the most recent, which HPACK addresses as dynamic index 1.
	ents    []HeaderField
	size    uint32
	maxSize uint32
}

func (dt *dynamicTable) setMaxSize(v uint32) {
	dt.maxSize = v
	dt.evict()
}

func (dt *dynamicTable) add(f HeaderField) {
	dt.ents = append(dt.ents, f)
	dt.size += f.Size()
	// If f alone exceeds maxSize this evicts f itself, leaving the
	// table empty. RFC 7541 section 4.4 wants exactly that.
	dt.evict()
}

// evict drops entries, oldest first, until size fits within maxSize.
func (dt *dynamicTable) evict() {
	base := dt.ents
	n := 0
	for dt.size > dt.maxSize {
		dt.size -= base[n].Size()
		n++
	}
	if n > 0 {
		copy(base, base[n:])
		dt.ents = base[:len(base)-n]
	}
}

// maxHeaderFieldInt is the largest integer the codec represents.
// Integer encodings exceeding it must be treated as decoding errors
// (RFC 7541 section 5.1), not wrapped or saturated silently.
const maxHeaderFieldInt = 1<<32 - 1

// at returns the header field at the given index in the combined
// address space: 1 through len(staticTable) is the static table, and
// higher indices address the dynamic table newest-first. ok reports
// whether i was in range; 0 is never in range.
func (d *Decoder) at(i uint64) (hf HeaderField, ok bool) {
	if i == 0 {
		return
	}
	if i <= uint64(len(staticTable)) {
		return staticTable[i-1], true
	}
	ents := d.dynTab.ents
	// Compare in uint64 before narrowing: i is attacker-controlled
	// and may exceed the platform's int range.
	if i > uint64(len(staticTable)+len(ents)) {
		return
	}
	dyn := int(i) - len(staticTable)
	return ents[len(ents)-dyn], true
}

// DecodeFull decodes one complete header block and returns the header
// fields in wire order. The caller's framing delimits the block;
// running out of input mid-representation is a decoding error, not
// end of message.
//
// Any error poisons the decoder's table state: the connection it
// serves can no longer be used.
func (d *Decoder) DecodeFull(p []byte) ([]HeaderField, error) {
	hfs := []HeaderField{}
	for len(p) > 0 {
		rest, hf, emitted, err := d.parseHeaderFieldRepr(p)
		if err != nil {
			return nil, err
		}
		if emitted {
			hfs = append(hfs, hf)
			if d.emit != nil {
				d.emit(hf)
			}
		}
		p = rest
	}
	return hfs, nil
}

// A headerFieldRepr is one of the five representation forms of RFC
// 7541 section 6.
type headerFieldRepr int

const (
	reprIndexed headerFieldRepr = iota
	reprLiteralWithIndexing
	reprSizeUpdate
	reprLiteralNoIndexing
	reprLiteralNeverIndexed
)

// headerFieldReprOf classifies the first octet of a representation.
// The patterns overlap, so the checks run longest-pattern-last:
// 1xxxxxxx, 01xxxxxx, 001xxxxx, 0001xxxx, 0000xxxx.
func headerFieldReprOf(b byte) headerFieldRepr {
	switch {
	case b&0x80 != 0:
		return reprIndexed
	case b&0xc0 == 0x40:
		return reprLiteralWithIndexing
	case b&0xe0 == 0x20:
		return reprSizeUpdate
	case b&0xf0 == 0x10:
		return reprLiteralNeverIndexed
	default:
		return reprLiteralNoIndexing
	}
}

func (d *Decoder) parseHeaderFieldRepr(p []byte) (remain []byte, hf HeaderField, emitted bool, err error) {
	switch headerFieldReprOf(p[0]) {
	case reprIndexed:
		remain, hf, err = d.parseFieldIndexed(p)
		emitted = err == nil
	case reprLiteralWithIndexing:
		remain, hf, err = d.parseFieldLiteral(p, 6, true, false)
		emitted = err == nil
	case reprSizeUpdate:
		remain, err = d.parseDynamicTableSizeUpdate(p)
	case reprLiteralNoIndexing:
		remain, hf, err = d.parseFieldLiteral(p, 4, false, false)
		emitted = err == nil
	case reprLiteralNeverIndexed:
		remain, hf, err = d.parseFieldLiteral(p, 4, false, true)
		emitted = err == nil
	}
	return
}

func (d *Decoder) parseFieldIndexed(p []byte) (remain []byte, hf HeaderField, err error) {
	idx, p, err := readVarInt(7, p)
	if err != nil {
		return p, hf, err
	}
	// Index 0 is not used; finding it in an indexed representation is
	// a decoding error, as is anything past the dynamic table.
	hf, ok := d.at(idx)
	if !ok {
		return p, hf, DecodingError{InvalidIndexError(idx)}
	}
	return p, HeaderField{Name: hf.Name, Value: hf.Value}, nil
}

// parseFieldLiteral handles the three literal representations. prefix
// is the bit width of the name-index integer; willIndex adds the
// decoded field to the dynamic table.
func (d *Decoder) parseFieldLiteral(p []byte, prefix byte, willIndex, sensitive bool) (remain []byte, hf HeaderField, err error) {
	nameIdx, p, err := readVarInt(prefix, p)
	if err != nil {
		return p, hf, err
	}
	if nameIdx > 0 {
		ihf, ok := d.at(nameIdx)
		if !ok {
			return p, hf, DecodingError{InvalidIndexError(nameIdx)}
		}
		hf.Name = ihf.Name
	} else {
		hf.Name, p, err = readString(p)
		if err != nil {
			return p, hf, err
		}
	}
	hf.Value, p, err = readString(p)
	if err != nil {
		return p, hf, err
	}
	hf.Sensitive = sensitive
	if willIndex {
		d.dynTab.add(HeaderField{Name: hf.Name, Value: hf.Value})
	}
	return p, hf, nil
}

func (d *Decoder) parseDynamicTableSizeUpdate(p []byte) (remain []byte, err error) {
	size, p, err := readVarInt(5, p)
	if err != nil {
		return p, err
	}
	// The new maximum must stay within the limit the protocol using
	// HPACK negotiated (RFC 7541 section 6.3).
	if size > uint64(d.maxAllowed) {
		return p, errTableSizeBound
	}
	d.dynTab.setMaxSize(uint32(size))
	return p, nil
}

// readVarInt reads an unsigned variable length integer with an n-bit
// prefix (1 <= n <= 8) off the start of p and returns the remainder
// of p past the integer.
func readVarInt(n byte, p []byte) (i uint64, remain []byte, err error) {
	if n < 1 || n > 8 {
		panic("bad n")
	}
	if len(p) == 0 {
		return 0, p, errUnexpectedEnd
	}
	i = uint64(p[0])
	if n < 8 {
		i &= (1 << uint64(n)) - 1
	}
	if i < (1<<uint64(n))-1 {
		return i, p[1:], nil
	}
	// Continuation octets contribute their low seven bits,
	// little-endian.
	origP := p
	p = p[1:]
	var m uint64
	for len(p) > 0 {
		b := p[0]
		p = p[1:]
		i += uint64(b&127) << m
		m += 7
		if i > maxHeaderFieldInt || m > 63 {
			return 0, origP, errVarintOverflow
		}
		if b&128 == 0 {
			return i, p, nil
		}
	}
	return 0, origP, errUnexpectedEnd
}

// readString reads an HPACK string literal (RFC 7541 section 5.2) off
// the start of p: a Huffman flag bit, a 7-bit prefixed octet length,
// and that many octets of payload.
func readString(p []byte) (s string, remain []byte, err error) {
	if len(p) == 0 {
		return "", p, errUnexpectedEnd
	}
	huffman := p[0]&128 != 0
	strLen, p, err := readVarInt(7, p)
	if err != nil {
		return "", p, err
	}
	if strLen > uint64(len(p)) {
		return "", p, errUnexpectedEnd
	}
	raw := p[:strLen]
	p = p[strLen:]
	if huffman {
		s, err = huffmanDecodeString(raw)
		if err != nil {
			return "", p, err
		}
	} else {
		s = string(raw)
	}
	if !utf8.ValidString(s) {
		return "", p, ErrInvalidUTF8
	}
	return s, p, nil
}
