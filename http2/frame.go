// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package http2

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/krkk/serenity/hpack"
)

const frameHeaderLen = 9

var padZeros = make([]byte, 255) // zeros for padding

// ErrFrameTooLarge is returned from Framer.ReadFrame when the peer
// sends a frame that is larger than declared with
// SetMaxReadFrameSize.
var ErrFrameTooLarge = errors.New("http2: frame too large")

// A FrameHeader is the 9 byte header of all HTTP/2 frames.
//
// See https://httpwg.org/specs/rfc9113.html#FrameHeader
type FrameHeader struct {
	valid bool // caller can access []byte fields in the Frame

	// Type is the 1 byte frame type. There are ten standard frame
	// types; extension frame types are returned by ReadFrame as
	// UnknownFrame.
	Type FrameType

	// Flags are the 1 byte of 8 potential bit flags per frame.
	// They are specific to the frame type.
	Flags Flags

	// Length is the length of the frame, not including the 9 byte header.
	// The maximum size is one byte less than 16MB (uint24), but only
	// frames up to the peer's advertised maximum frame size are legal.
	Length uint32

	// StreamID is which stream this frame is for. Certain frames
	// are not stream-specific, in which case this field is 0.
	// The high bit of the wire encoding is reserved and masked off.
	StreamID uint32
}

// Header returns h. It exists so FrameHeaders can be embedded in
// specific frame types and implement the Frame interface.
func (h FrameHeader) Header() FrameHeader { return h }

func (h FrameHeader) String() string {
	return fmt.Sprintf("[FrameHeader type=%v flags=%#x stream=%d len=%d]",
		h.Type, uint8(h.Flags), h.StreamID, h.Length)
}

func (h *FrameHeader) checkValid() {
	if !h.valid {
		panic("Frame accessor called on non-owned Frame")
	}
}

func (h *FrameHeader) invalidate() { h.valid = false }

func readFrameHeader(buf []byte, r io.Reader) (FrameHeader, error) {
	_, err := io.ReadFull(r, buf[:frameHeaderLen])
	if err != nil {
		return FrameHeader{}, err
	}
	return FrameHeader{
		Length:   uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2]),
		Type:     FrameType(buf[3]),
		Flags:    Flags(buf[4]),
		StreamID: binary.BigEndian.Uint32(buf[5:]) & (1<<31 - 1),
		valid:    true,
	}, nil
}

// A Frame is the base interface implemented by all frame types.
// Callers will generally type-assert the specific frame type:
// *HeadersFrame, *SettingsFrame, *WindowUpdateFrame, etc.
//
// Frames are only valid until the next call to Framer.ReadFrame.
type Frame interface {
	Header() FrameHeader

	// invalidate is called by Framer.ReadFrame to mark this
	// frame's buffers as invalid, since the subsequent frame will
	// reuse them.
	invalidate()
}

// A Framer reads and writes Frames. It is not safe for concurrent
// use by multiple goroutines, but reading and writing may proceed
// concurrently with each other.
type Framer struct {
	r         io.Reader
	lastFrame Frame

	maxReadSize uint32
	headerBuf   [frameHeaderLen]byte
	readBuf     []byte

	w    io.Writer
	wbuf []byte

	// ReadMetaHeaders, if non-nil, causes ReadFrame to merge
	// HEADERS and CONTINUATION frames together and return a
	// MetaHeadersFrame with the decoded hpack values, instead of
	// returning the frames individually.
	ReadMetaHeaders *hpack.Decoder
}

// NewFramer returns a Framer that writes frames to w and reads them
// from r.
func NewFramer(w io.Writer, r io.Reader) *Framer {
	return &Framer{
		w:           w,
		r:           r,
		maxReadSize: initialMaxFrameSize,
	}
}

// SetMaxReadFrameSize sets the maximum size of a frame that will be
// read by a subsequent call to ReadFrame. It is the caller's
// responsibility to advertise this limit with a SETTINGS frame.
func (fr *Framer) SetMaxReadFrameSize(v uint32) {
	if v > 1<<24-1 {
		v = 1<<24 - 1
	}
	fr.maxReadSize = v
}

func (fr *Framer) startWrite(ftype FrameType, flags Flags, streamID uint32) {
	// The length bytes are patched in endWrite, once known.
	fr.wbuf = append(fr.wbuf[:0],
		0, 0, 0,
		byte(ftype),
		byte(flags),
		byte(streamID>>24),
		byte(streamID>>16),
		byte(streamID>>8),
		byte(streamID))
}

func (fr *Framer) endWrite() error {
	length := len(fr.wbuf) - frameHeaderLen
	if length >= 1<<24 {
		return errors.New("http2: frame payload exceeds 2^24-1 bytes")
	}
	fr.wbuf[0] = byte(length >> 16)
	fr.wbuf[1] = byte(length >> 8)
	fr.wbuf[2] = byte(length)
	n, err := fr.w.Write(fr.wbuf)
	if err == nil && n != len(fr.wbuf) {
		err = io.ErrShortWrite
	}
	return err
}

func (fr *Framer) writeByte(v byte)     { fr.wbuf = append(fr.wbuf, v) }
func (fr *Framer) writeBytes(v []byte)  { fr.wbuf = append(fr.wbuf, v...) }
func (fr *Framer) writeUint16(v uint16) { fr.wbuf = append(fr.wbuf, byte(v>>8), byte(v)) }
func (fr *Framer) writeUint32(v uint32) {
	fr.wbuf = append(fr.wbuf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// ReadFrame reads a single frame. The returned Frame is only valid
// until the next call to ReadFrame.
//
// If ReadMetaHeaders is set, HEADERS frames come back as
// MetaHeadersFrame with their CONTINUATION frames already merged and
// the header block decoded.
func (fr *Framer) ReadFrame() (Frame, error) {
	if fr.lastFrame != nil {
		fr.lastFrame.invalidate()
		fr.lastFrame = nil
	}
	fh, err := readFrameHeader(fr.headerBuf[:], fr.r)
	if err != nil {
		return nil, err
	}
	if fh.Length > fr.maxReadSize {
		return nil, ErrFrameTooLarge
	}
	payload := fr.getReadBuf(fh.Length)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		return nil, err
	}
	f, err := parseFrame(fh, payload)
	if err != nil {
		return nil, err
	}
	fr.lastFrame = f
	if fh.Type == FrameHeaders && fr.ReadMetaHeaders != nil {
		return fr.readMetaFrame(f.(*HeadersFrame))
	}
	return f, nil
}

func (fr *Framer) getReadBuf(size uint32) []byte {
	if cap(fr.readBuf) >= int(size) {
		return fr.readBuf[:size]
	}
	fr.readBuf = make([]byte, size)
	return fr.readBuf
}

func parseFrame(fh FrameHeader, payload []byte) (Frame, error) {
	switch fh.Type {
	case FrameData:
		return parseDataFrame(fh, payload)
	case FrameHeaders:
		return parseHeadersFrame(fh, payload)
	case FramePriority:
		return parsePriorityFrame(fh, payload)
	case FrameRSTStream:
		return parseRSTStreamFrame(fh, payload)
	case FrameSettings:
		return parseSettingsFrame(fh, payload)
	case FramePushPromise:
		return parsePushPromiseFrame(fh, payload)
	case FramePing:
		return parsePingFrame(fh, payload)
	case FrameGoAway:
		return parseGoAwayFrame(fh, payload)
	case FrameWindowUpdate:
		return parseWindowUpdateFrame(fh, payload)
	case FrameContinuation:
		return parseContinuationFrame(fh, payload)
	}
	return &UnknownFrame{fh, payload}, nil
}

// A DataFrame conveys arbitrary, variable-length sequences of octets
// associated with a stream.
// See https://httpwg.org/specs/rfc9113.html#DATA
type DataFrame struct {
	FrameHeader
	data []byte
}

func (f *DataFrame) StreamEnded() bool {
	return f.FrameHeader.Flags.Has(FlagDataEndStream)
}

// Data returns the frame's data octets, not including any padding
// size byte or padding suffix bytes.
func (f *DataFrame) Data() []byte {
	f.checkValid()
	return f.data
}

func parseDataFrame(fh FrameHeader, payload []byte) (Frame, error) {
	if fh.StreamID == 0 {
		// DATA frames MUST be associated with a stream.
		return nil, ConnectionError(ErrCodeProtocol)
	}
	f := &DataFrame{FrameHeader: fh}
	var padSize byte
	if fh.Flags.Has(FlagDataPadded) {
		var err error
		payload, padSize, err = readByte(payload)
		if err != nil {
			return nil, err
		}
	}
	if int(padSize) > len(payload) {
		// If the length of the padding is greater than the
		// length of the frame payload, the recipient MUST
		// treat this as a connection error.
		return nil, ConnectionError(ErrCodeProtocol)
	}
	f.data = payload[:len(payload)-int(padSize)]
	return f, nil
}

// WriteData writes a DATA frame.
func (fr *Framer) WriteData(streamID uint32, endStream bool, data []byte) error {
	if !validStreamID(streamID) {
		return errStreamID
	}
	var flags Flags
	if endStream {
		flags |= FlagDataEndStream
	}
	fr.startWrite(FrameData, flags, streamID)
	fr.writeBytes(data)
	return fr.endWrite()
}

// A SettingsFrame conveys configuration parameters that affect how
// endpoints communicate, such as preferences and constraints on peer
// behavior.
// See https://httpwg.org/specs/rfc9113.html#SETTINGS
type SettingsFrame struct {
	FrameHeader
	p []byte
}

func parseSettingsFrame(fh FrameHeader, p []byte) (Frame, error) {
	if fh.Flags.Has(FlagSettingsAck) && fh.Length > 0 {
		return nil, ConnectionError(ErrCodeFrameSize)
	}
	if fh.StreamID != 0 {
		return nil, ConnectionError(ErrCodeProtocol)
	}
	if len(p)%6 != 0 {
		return nil, ConnectionError(ErrCodeFrameSize)
	}
	return &SettingsFrame{fh, p}, nil
}

func (f *SettingsFrame) IsAck() bool {
	return f.FrameHeader.Flags.Has(FlagSettingsAck)
}

// Value returns the setting's value and whether s was present in the
// frame.
func (f *SettingsFrame) Value(s SettingID) (v uint32, ok bool) {
	f.checkValid()
	for i := 0; i < f.NumSettings(); i++ {
		if st := f.Setting(i); st.ID == s {
			return st.Val, true
		}
	}
	return 0, false
}

// Setting returns the setting from the frame at the given 0-based index.
// The index must be less than f.NumSettings().
func (f *SettingsFrame) Setting(i int) Setting {
	buf := f.p
	return Setting{
		ID:  SettingID(binary.BigEndian.Uint16(buf[i*6 : i*6+2])),
		Val: binary.BigEndian.Uint32(buf[i*6+2 : i*6+6]),
	}
}

func (f *SettingsFrame) NumSettings() int { return len(f.p) / 6 }

// ForeachSetting runs fn for each setting. It stops and returns the
// first error.
func (f *SettingsFrame) ForeachSetting(fn func(Setting) error) error {
	f.checkValid()
	for i := 0; i < f.NumSettings(); i++ {
		if err := fn(f.Setting(i)); err != nil {
			return err
		}
	}
	return nil
}

// WriteSettings writes a SETTINGS frame with zero or more settings
// specified and the ACK bit not set.
func (fr *Framer) WriteSettings(settings ...Setting) error {
	fr.startWrite(FrameSettings, 0, 0)
	for _, s := range settings {
		fr.writeUint16(uint16(s.ID))
		fr.writeUint32(s.Val)
	}
	return fr.endWrite()
}

// WriteSettingsAck writes an empty SETTINGS frame with the ACK bit
// set.
func (fr *Framer) WriteSettingsAck() error {
	fr.startWrite(FrameSettings, FlagSettingsAck, 0)
	return fr.endWrite()
}

// A PingFrame is a mechanism for measuring a minimal round trip
// time from the sender, as well as determining whether an idle
// connection is still functional.
// See https://httpwg.org/specs/rfc9113.html#PING
type PingFrame struct {
	FrameHeader
	Data [8]byte
}

func (f *PingFrame) IsAck() bool { return f.Flags.Has(FlagPingAck) }

func parsePingFrame(fh FrameHeader, payload []byte) (Frame, error) {
	if len(payload) != 8 {
		return nil, ConnectionError(ErrCodeFrameSize)
	}
	if fh.StreamID != 0 {
		return nil, ConnectionError(ErrCodeProtocol)
	}
	f := &PingFrame{FrameHeader: fh}
	copy(f.Data[:], payload)
	return f, nil
}

func (fr *Framer) WritePing(ack bool, data [8]byte) error {
	var flags Flags
	if ack {
		flags = FlagPingAck
	}
	fr.startWrite(FramePing, flags, 0)
	fr.writeBytes(data[:])
	return fr.endWrite()
}

// A GoAwayFrame informs the remote peer to stop creating streams on
// this connection.
// See https://httpwg.org/specs/rfc9113.html#GOAWAY
type GoAwayFrame struct {
	FrameHeader
	LastStreamID uint32
	ErrCode      ErrCode
	debugData    []byte
}

// DebugData returns any debug data in the GOAWAY frame. Its contents
// are not defined.
func (f *GoAwayFrame) DebugData() []byte {
	f.checkValid()
	return f.debugData
}

func parseGoAwayFrame(fh FrameHeader, p []byte) (Frame, error) {
	if fh.StreamID != 0 {
		return nil, ConnectionError(ErrCodeProtocol)
	}
	if len(p) < 8 {
		return nil, ConnectionError(ErrCodeFrameSize)
	}
	return &GoAwayFrame{
		FrameHeader:  fh,
		LastStreamID: binary.BigEndian.Uint32(p[:4]) & (1<<31 - 1),
		ErrCode:      ErrCode(binary.BigEndian.Uint32(p[4:8])),
		debugData:    p[8:],
	}, nil
}

func (fr *Framer) WriteGoAway(maxStreamID uint32, code ErrCode, debugData []byte) error {
	fr.startWrite(FrameGoAway, 0, 0)
	fr.writeUint32(maxStreamID & (1<<31 - 1))
	fr.writeUint32(uint32(code))
	fr.writeBytes(debugData)
	return fr.endWrite()
}

// An UnknownFrame is the frame type returned when the frame type is
// unknown or no specific frame type parser exists.
type UnknownFrame struct {
	FrameHeader
	p []byte
}

// Payload returns the frame's payload (after the header). It is not
// valid to call this method after a subsequent call to
// Framer.ReadFrame.
func (f *UnknownFrame) Payload() []byte {
	f.checkValid()
	return f.p
}

// A WindowUpdateFrame is used to implement flow control.
// See https://httpwg.org/specs/rfc9113.html#WINDOW_UPDATE
type WindowUpdateFrame struct {
	FrameHeader
	Increment uint32 // never read with high bit set
}

func parseWindowUpdateFrame(fh FrameHeader, p []byte) (Frame, error) {
	if len(p) != 4 {
		return nil, ConnectionError(ErrCodeFrameSize)
	}
	return &WindowUpdateFrame{
		FrameHeader: fh,
		Increment:   binary.BigEndian.Uint32(p[:4]) & (1<<31 - 1),
	}, nil
}

// WriteWindowUpdate writes a WINDOW_UPDATE frame. The increment
// value must be between 1 and 2,147,483,647, inclusive. If the
// Stream ID is zero, the window update applies to the connection as
// a whole.
func (fr *Framer) WriteWindowUpdate(streamID, incr uint32) error {
	if incr < 1 || incr > 2147483647 {
		return errors.New("http2: illegal window increment value")
	}
	fr.startWrite(FrameWindowUpdate, 0, streamID)
	fr.writeUint32(incr)
	return fr.endWrite()
}

// A HeadersFrame is used to open a stream and additionally carries a
// header block fragment.
type HeadersFrame struct {
	FrameHeader

	// Priority is set if FlagHeadersPriority is set in the FrameHeader.
	Priority PriorityParam

	headerFragment []byte
}

func (f *HeadersFrame) HeaderBlockFragment() []byte {
	f.checkValid()
	return f.headerFragment
}

func (f *HeadersFrame) HeadersEnded() bool {
	return f.FrameHeader.Flags.Has(FlagHeadersEndHeaders)
}

func (f *HeadersFrame) StreamEnded() bool {
	return f.FrameHeader.Flags.Has(FlagHeadersEndStream)
}

func (f *HeadersFrame) HasPriority() bool {
	return f.FrameHeader.Flags.Has(FlagHeadersPriority)
}

func parseHeadersFrame(fh FrameHeader, p []byte) (Frame, error) {
	hf := &HeadersFrame{FrameHeader: fh}
	if fh.StreamID == 0 {
		// HEADERS frames MUST be associated with a stream.
		return nil, ConnectionError(ErrCodeProtocol)
	}
	var padLength uint8
	if fh.Flags.Has(FlagHeadersPadded) {
		var err error
		if p, padLength, err = readByte(p); err != nil {
			return nil, err
		}
	}
	if fh.Flags.Has(FlagHeadersPriority) {
		var v uint32
		var err error
		if p, v, err = readUint32(p); err != nil {
			return nil, err
		}
		hf.Priority.StreamDep = v & 0x7fffffff
		hf.Priority.Exclusive = (v != hf.Priority.StreamDep) // high bit was set
		p, hf.Priority.Weight, err = readByte(p)
		if err != nil {
			return nil, err
		}
	}
	if len(p)-int(padLength) < 0 {
		return nil, StreamError{fh.StreamID, ErrCodeProtocol}
	}
	hf.headerFragment = p[:len(p)-int(padLength)]
	return hf, nil
}

// HeadersFrameParam are the parameters for writing a HEADERS frame.
type HeadersFrameParam struct {
	// StreamID is the required Stream ID to initiate.
	StreamID uint32
	// BlockFragment is part (or all) of a Header Block.
	BlockFragment []byte

	// EndStream indicates that the header block is the last that
	// the endpoint will send for the identified stream.
	EndStream bool

	// EndHeaders indicates that this frame contains an entire
	// header block and is not followed by any
	// CONTINUATION frames.
	EndHeaders bool

	// PadLength is the optional number of bytes of zeros to add
	// to this frame.
	PadLength uint8

	// Priority, if non-zero, includes stream priority information
	// in the HEADER frame.
	Priority PriorityParam
}

// WriteHeaders writes a single HEADERS frame.
//
// This is a low-level header writing method. Encoding the header
// block is the caller's responsibility (see package hpack and
// EncodeRequestHeaders).
func (fr *Framer) WriteHeaders(p HeadersFrameParam) error {
	if !validStreamID(p.StreamID) {
		return errStreamID
	}
	var flags Flags
	if p.PadLength != 0 {
		flags |= FlagHeadersPadded
	}
	if p.EndStream {
		flags |= FlagHeadersEndStream
	}
	if p.EndHeaders {
		flags |= FlagHeadersEndHeaders
	}
	if !p.Priority.IsZero() {
		flags |= FlagHeadersPriority
	}
	fr.startWrite(FrameHeaders, flags, p.StreamID)
	if p.PadLength != 0 {
		fr.writeByte(p.PadLength)
	}
	if !p.Priority.IsZero() {
		v := p.Priority.StreamDep
		if !validStreamIDOrZero(v) {
			return errDepStreamID
		}
		if p.Priority.Exclusive {
			v |= 1 << 31
		}
		fr.writeUint32(v)
		fr.writeByte(p.Priority.Weight)
	}
	fr.writeBytes(p.BlockFragment)
	fr.writeBytes(padZeros[:p.PadLength])
	return fr.endWrite()
}

// PriorityParam are the stream prioritzation parameters.
type PriorityParam struct {
	// StreamDep is a 31-bit stream identifier for the
	// stream that this stream depends on. Zero means no
	// dependency.
	StreamDep uint32

	// Exclusive is whether the dependency is exclusive.
	Exclusive bool

	// Weight is the stream's zero-indexed weight. It should be
	// set together with StreamDep, or neither should be set. Per
	// the spec, "Add one to the value to obtain a weight between
	// 1 and 256."
	Weight uint8
}

func (p PriorityParam) IsZero() bool {
	return p == PriorityParam{}
}

// A PriorityFrame specifies the sender-advised priority of a stream.
// See https://httpwg.org/specs/rfc9113.html#PriorityFrames
type PriorityFrame struct {
	FrameHeader
	PriorityParam
}

func parsePriorityFrame(fh FrameHeader, payload []byte) (Frame, error) {
	if fh.StreamID == 0 {
		return nil, ConnectionError(ErrCodeProtocol)
	}
	if len(payload) != 5 {
		return nil, ConnectionError(ErrCodeFrameSize)
	}
	v := binary.BigEndian.Uint32(payload[:4])
	streamID := v & 0x7fffffff
	return &PriorityFrame{
		FrameHeader: fh,
		PriorityParam: PriorityParam{
			Weight:    payload[4],
			StreamDep: streamID,
			Exclusive: streamID != v, // was high bit set?
		},
	}, nil
}

// WritePriority writes a PRIORITY frame.
func (fr *Framer) WritePriority(streamID uint32, p PriorityParam) error {
	if !validStreamID(streamID) {
		return errStreamID
	}
	fr.startWrite(FramePriority, 0, streamID)
	v := p.StreamDep
	if p.Exclusive {
		v |= 1 << 31
	}
	fr.writeUint32(v)
	fr.writeByte(p.Weight)
	return fr.endWrite()
}

// A RSTStreamFrame allows for abnormal termination of a stream.
// See https://httpwg.org/specs/rfc9113.html#RST_STREAM
type RSTStreamFrame struct {
	FrameHeader
	ErrCode ErrCode
}

func parseRSTStreamFrame(fh FrameHeader, p []byte) (Frame, error) {
	if len(p) != 4 {
		return nil, ConnectionError(ErrCodeFrameSize)
	}
	if fh.StreamID == 0 {
		return nil, ConnectionError(ErrCodeProtocol)
	}
	return &RSTStreamFrame{fh, ErrCode(binary.BigEndian.Uint32(p[:4]))}, nil
}

// WriteRSTStream writes a RST_STREAM frame.
func (fr *Framer) WriteRSTStream(streamID uint32, code ErrCode) error {
	if !validStreamID(streamID) {
		return errStreamID
	}
	fr.startWrite(FrameRSTStream, 0, streamID)
	fr.writeUint32(uint32(code))
	return fr.endWrite()
}

// A ContinuationFrame is used to continue a sequence of header block
// fragments.
// See https://httpwg.org/specs/rfc9113.html#CONTINUATION
type ContinuationFrame struct {
	FrameHeader
	headerFragment []byte
}

func parseContinuationFrame(fh FrameHeader, p []byte) (Frame, error) {
	if fh.StreamID == 0 {
		return nil, ConnectionError(ErrCodeProtocol)
	}
	return &ContinuationFrame{fh, p}, nil
}

func (f *ContinuationFrame) HeaderBlockFragment() []byte {
	f.checkValid()
	return f.headerFragment
}

func (f *ContinuationFrame) HeadersEnded() bool {
	return f.FrameHeader.Flags.Has(FlagContinuationEndHeaders)
}

// WriteContinuation writes a CONTINUATION frame.
func (fr *Framer) WriteContinuation(streamID uint32, endHeaders bool, headerBlockFragment []byte) error {
	if !validStreamID(streamID) {
		return errStreamID
	}
	var flags Flags
	if endHeaders {
		flags |= FlagContinuationEndHeaders
	}
	fr.startWrite(FrameContinuation, flags, streamID)
	fr.writeBytes(headerBlockFragment)
	return fr.endWrite()
}

// A PushPromiseFrame is used to initiate a server stream.
// See https://httpwg.org/specs/rfc9113.html#PUSH_PROMISE
type PushPromiseFrame struct {
	FrameHeader
	PromiseID      uint32
	headerFragment []byte
}

func (f *PushPromiseFrame) HeaderBlockFragment() []byte {
	f.checkValid()
	return f.headerFragment
}

func (f *PushPromiseFrame) HeadersEnded() bool {
	return f.FrameHeader.Flags.Has(FlagPushPromiseEndHeaders)
}

func parsePushPromiseFrame(fh FrameHeader, p []byte) (Frame, error) {
	pp := &PushPromiseFrame{FrameHeader: fh}
	if pp.StreamID == 0 {
		return nil, ConnectionError(ErrCodeProtocol)
	}
	var padLength uint8
	if fh.Flags.Has(FlagPushPromisePadded) {
		var err error
		if p, padLength, err = readByte(p); err != nil {
			return nil, err
		}
	}
	var v uint32
	var err error
	if p, v, err = readUint32(p); err != nil {
		return nil, err
	}
	pp.PromiseID = v & (1<<31 - 1)
	if int(padLength) > len(p) {
		return nil, ConnectionError(ErrCodeProtocol)
	}
	pp.headerFragment = p[:len(p)-int(padLength)]
	return pp, nil
}

// A MetaHeadersFrame is the representation of one HEADERS frame and
// zero or more contiguous CONTINUATION frames and the decoding of
// their HPACK-encoded contents.
//
// This type of frame does not appear on the wire and is only returned
// by the Framer when Framer.ReadMetaHeaders is set.
type MetaHeadersFrame struct {
	*HeadersFrame

	// Fields are the fields contained in the HEADERS and
	// CONTINUATION frames, in the order they appear in the block.
	Fields []hpack.HeaderField
}

// PseudoValue returns the given pseudo header field's value. The
// provided pseudo field should not contain the leading colon.
func (mh *MetaHeadersFrame) PseudoValue(pseudo string) string {
	for _, hf := range mh.Fields {
		if !hf.IsPseudo() {
			return ""
		}
		if hf.Name[1:] == pseudo {
			return hf.Value
		}
	}
	return ""
}

// readMetaFrame returns 0 or more CONTINUATION frames from fr and
// merges them into the provided hf and returns a MetaHeadersFrame
// with the decoded hpack values.
func (fr *Framer) readMetaFrame(hf *HeadersFrame) (*MetaHeadersFrame, error) {
	mh := &MetaHeadersFrame{HeadersFrame: hf}

	var block []byte
	frag := hf.HeaderBlockFragment()
	if hf.HeadersEnded() {
		block = frag
	} else {
		block = append(block, frag...)
		for {
			f, err := fr.ReadFrame()
			if err != nil {
				return nil, err
			}
			cf, ok := f.(*ContinuationFrame)
			if !ok || cf.StreamID != hf.StreamID {
				// Any frame other than CONTINUATION on
				// the same stream ends the block early.
				return nil, ConnectionError(ErrCodeProtocol)
			}
			block = append(block, cf.HeaderBlockFragment()...)
			if cf.HeadersEnded() {
				break
			}
		}
	}

	fields, err := fr.ReadMetaHeaders.DecodeFull(block)
	if err != nil {
		// The header block poisoned the connection's hpack
		// state; nothing past it can be decoded.
		return nil, ConnectionError(ErrCodeCompression)
	}
	mh.Fields = fields
	mh.HeadersFrame.headerFragment = nil
	mh.HeadersFrame.invalidate()
	return mh, nil
}

func readByte(p []byte) (remain []byte, b byte, err error) {
	if len(p) == 0 {
		return nil, 0, io.ErrUnexpectedEOF
	}
	return p[1:], p[0], nil
}

func readUint32(p []byte) (remain []byte, v uint32, err error) {
	if len(p) < 4 {
		return nil, 0, io.ErrUnexpectedEOF
	}
	return p[4:], binary.BigEndian.Uint32(p[:4]), nil
}

var (
	errStreamID    = errors.New("http2: invalid stream ID")
	errDepStreamID = errors.New("http2: invalid dependent stream ID")
)

func validStreamIDOrZero(streamID uint32) bool {
	return streamID&(1<<31) == 0
}

func validStreamID(streamID uint32) bool {
	return streamID != 0 && streamID&(1<<31) == 0
}
