// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hpack

import "io"

const initialHeaderTableSize = 4096

// An Encoder performs HPACK encoding of header fields to an
// io.Writer. Like the Decoder, one Encoder serves one connection for
// its whole life and is not safe for concurrent use: its dynamic
// table must mutate in exactly the order fields go out on the wire,
// or the peer decoder's table silently diverges.
type Encoder struct {
	dynTab dynamicTable
	w      io.Writer
	buf    []byte

	// tableSizeUpdate is set by SetMaxDynamicTableSize; the size
	// change is announced to the peer at the start of the next
	// encoded field. minSize tracks the smallest budget seen since
	// the last announcement, which RFC 7541 section 4.2 requires to
	// be signalled as well if the budget dipped and came back up.
	tableSizeUpdate bool
	minSize         uint32
}

// NewEncoder returns a new Encoder which performs HPACK encoding. An
// encoded data is written to w.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{
		w:       w,
		minSize: maxHeaderFieldInt,
	}
	e.dynTab.setMaxSize(initialHeaderTableSize)
	return e
}

// SetMaxDynamicTableSize changes the encoder's dynamic table size
// budget, evicting entries as needed. The peer decoder learns of the
// change through a dynamic table size update emitted before the next
// field; v must not exceed what the peer's settings allow.
func (e *Encoder) SetMaxDynamicTableSize(v uint32) {
	if v < e.minSize {
		e.minSize = v
	}
	e.tableSizeUpdate = true
	e.dynTab.setMaxSize(v)
}

// MaxDynamicTableSize returns the current dynamic table size budget.
func (e *Encoder) MaxDynamicTableSize() uint32 {
	return e.dynTab.maxSize
}

// WriteField encodes f into a single Write to e's underlying Writer.
// This function may also produce bytes for the pending dynamic table
// size update, and mirrors in e's dynamic table every insertion the
// remote decoder will perform, keeping the two in lockstep.
func (e *Encoder) WriteField(f HeaderField) error {
	e.buf = e.buf[:0]

	if e.tableSizeUpdate {
		e.tableSizeUpdate = false
		if e.minSize < e.dynTab.maxSize {
			e.buf = appendTableSizeUpdate(e.buf, e.minSize)
		}
		e.minSize = maxHeaderFieldInt
		e.buf = appendTableSizeUpdate(e.buf, e.dynTab.maxSize)
	}

	idx, nameValueMatch := e.searchTable(f)
	switch {
	case nameValueMatch:
		e.buf = appendIndexed(e.buf, idx)
	case f.Sensitive:
		// Never indexed: no table mutation on either side, and
		// intermediaries must not index it downstream either.
		e.buf = appendLiteral(e.buf, 4, 0x10, idx, f)
	default:
		e.dynTab.add(HeaderField{Name: f.Name, Value: f.Value})
		e.buf = appendLiteral(e.buf, 6, 0x40, idx, f)
	}

	n, err := e.w.Write(e.buf)
	if err == nil && n != len(e.buf) {
		err = io.ErrShortWrite
	}
	return err
}

// searchTable looks f up in the combined address space. i is 0, or
// the lowest index whose entry has f's name; nameValueMatch reports
// whether the entry at i has f's value too. Sensitive fields only
// match names, and only in the static table, so that nothing about
// their values leaks through index choices.
func (e *Encoder) searchTable(f HeaderField) (i uint64, nameValueMatch bool) {
	for k := range staticTable {
		if staticTable[k].Name != f.Name {
			continue
		}
		if i == 0 {
			i = uint64(k + 1)
		}
		if !f.Sensitive && staticTable[k].Value == f.Value {
			return uint64(k + 1), true
		}
	}
	if f.Sensitive {
		return i, false
	}
	ents := e.dynTab.ents
	for j := len(ents) - 1; j >= 0; j-- { // newest first
		if ents[j].Name != f.Name {
			continue
		}
		dynIdx := uint64(len(staticTable) + len(ents) - j)
		if i == 0 {
			i = dynIdx
		}
		if ents[j].Value == f.Value {
			return dynIdx, true
		}
	}
	return i, false
}

// appendVarInt appends i, as encoded in an n-bit prefix, to dst. The
// caller is responsible for OR-ing the representation's pattern bits
// into the first octet.
func appendVarInt(dst []byte, n byte, i uint64) []byte {
	k := uint64((1 << n) - 1)
	if i < k {
		return append(dst, byte(i))
	}
	dst = append(dst, byte(k))
	i -= k
	for ; i >= 128; i >>= 7 {
		dst = append(dst, byte(0x80|(i&0x7f)))
	}
	return append(dst, byte(i))
}

// appendIndexed appends an indexed header field representation
// (pattern 1xxxxxxx) referencing the entry at index i.
func appendIndexed(dst []byte, i uint64) []byte {
	first := len(dst)
	dst = appendVarInt(dst, 7, i)
	dst[first] |= 0x80
	return dst
}

// appendLiteral appends one of the literal representations: pattern
// over a prefix-bit name index (0 meaning a literal name follows),
// then the value string.
func appendLiteral(dst []byte, prefix byte, pattern byte, nameIdx uint64, f HeaderField) []byte {
	first := len(dst)
	dst = appendVarInt(dst, prefix, nameIdx)
	dst[first] |= pattern
	if nameIdx == 0 {
		dst = appendHpackString(dst, f.Name)
	}
	return appendHpackString(dst, f.Value)
}

// appendTableSizeUpdate appends a dynamic table size update (pattern
// 001xxxxx) carrying v.
func appendTableSizeUpdate(dst []byte, v uint32) []byte {
	first := len(dst)
	dst = appendVarInt(dst, 5, uint64(v))
	dst[first] |= 0x20
	return dst
}

// appendHpackString appends s, as an HPACK string literal, to dst.
// Huffman coding is used when it makes the string shorter; the choice
// affects size only, never meaning.
func appendHpackString(dst []byte, s string) []byte {
	huffmanLength := HuffmanEncodeLength(s)
	if huffmanLength < uint64(len(s)) {
		first := len(dst)
		dst = appendVarInt(dst, 7, huffmanLength)
		dst = AppendHuffmanString(dst, s)
		dst[first] |= 0x80
	} else {
		dst = appendVarInt(dst, 7, uint64(len(s)))
		dst = append(dst, s...)
	}
	return dst
}
