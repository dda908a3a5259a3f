// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hpack

import (
	"bytes"
	"io"
	"sync"
)

var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

func huffmanDecodeString(v []byte) (string, error) {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)
	if err := huffmanDecode(buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HuffmanDecode decodes the string in v and writes the expanded
// result to w, returning the number of bytes written to w and the
// Write call's return value. At most one Write call is made.
func HuffmanDecode(w io.Writer, v []byte) (int, error) {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)
	if err := huffmanDecode(buf, v); err != nil {
		return 0, err
	}
	return w.Write(buf.Bytes())
}

// huffmanDecode decodes v, which must hold a whole Huffman-coded
// string, into buf. The walk consumes eight bits of input at a time;
// codes are at most 30 bits, so a code resolves within four steps.
//
// An incomplete code in the trailing bits is padding and is
// discarded. A code that resolves to no symbol, or to the EOS symbol,
// is a decoding error wherever it appears.
func huffmanDecode(buf *bytes.Buffer, v []byte) error {
	n := rootHuffmanNode
	cur, nbits := uint(0), uint8(0)
	for _, b := range v {
		cur = cur<<8 | uint(b)
		nbits += 8
		for nbits >= 8 {
			idx := byte(cur >> (nbits - 8))
			n = n.children[idx]
			if n == nil {
				return ErrInvalidHuffman
			}
			if n.children == nil {
				if n.sym == huffmanEOS {
					return ErrInvalidHuffman
				}
				buf.WriteByte(byte(n.sym))
				nbits -= n.codeLen
				n = rootHuffmanNode
			} else {
				nbits -= 8
			}
		}
	}
	for nbits > 0 {
		next := n.children[byte(cur<<(8-nbits))]
		if next == nil || next.children != nil || next.codeLen > nbits {
			// Incomplete trailing code: padding.
			break
		}
		if next.sym == huffmanEOS {
			return ErrInvalidHuffman
		}
		buf.WriteByte(byte(next.sym))
		nbits -= next.codeLen
		n = rootHuffmanNode
	}
	return nil
}

// huffmanEOS is the end-of-string symbol, one past the byte values.
// It only ever appears implicitly, as the source of padding bits; a
// complete EOS code in the input is corruption.
const huffmanEOS = 256

type node struct {
	// children is non-nil for internal nodes.
	children *[256]*node

	// The following are only valid if children is nil:
	codeLen uint8  // number of bits that led to the output of sym
	sym     uint16 // output symbol; huffmanEOS is not emittable
}

func newInternalNode() *node {
	return &node{children: new([256]*node)}
}

var rootHuffmanNode *node

func init() {
	rootHuffmanNode = newInternalNode()
	// Include the EOS entry so the decoder can tell a decoded EOS
	// apart from a code that matches nothing.
	for sym, code := range huffmanCodes {
		addDecoderNode(uint16(sym), code, huffmanCodeLen[sym])
	}
}

func addDecoderNode(sym uint16, code uint32, codeLen uint8) {
	cur := rootHuffmanNode
	for codeLen > 8 {
		codeLen -= 8
		i := uint8(code >> codeLen)
		if cur.children[i] == nil {
			cur.children[i] = newInternalNode()
		}
		cur = cur.children[i]
	}
	shift := 8 - codeLen
	start, end := int(uint8(code<<shift)), int(1<<shift)
	for i := start; i < start+end; i++ {
		cur.children[i] = &node{sym: sym, codeLen: codeLen}
	}
}

// AppendHuffmanString appends s, as encoded in Huffman codes, to dst
// and returns the extended buffer.
func AppendHuffmanString(dst []byte, s string) []byte {
	// The accumulator never holds more than 7 leftover bits plus one
	// 30-bit code.
	var acc uint64
	var nbits uint
	for i := 0; i < len(s); i++ {
		b := s[i]
		acc = acc<<uint64(huffmanCodeLen[b]) | uint64(huffmanCodes[b])
		nbits += uint(huffmanCodeLen[b])
		for nbits >= 8 {
			nbits -= 8
			dst = append(dst, byte(acc>>nbits))
		}
	}
	if nbits > 0 {
		// Pad the final octet with the high bits of the EOS code,
		// which are all ones.
		dst = append(dst, byte(acc<<(8-nbits))|byte(1<<(8-nbits)-1))
	}
	return dst
}

// HuffmanEncodeLength returns the number of bytes required to encode
// s in Huffman codes.
func HuffmanEncodeLength(s string) uint64 {
	n := uint64(0)
	for i := 0; i < len(s); i++ {
		n += uint64(huffmanCodeLen[s[i]])
	}
	return (n + 7) / 8
}
