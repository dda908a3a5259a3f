// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package http2

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/krkk/serenity/hpack"
)

func testFramer() (*Framer, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	return NewFramer(buf, buf), buf
}

func TestWriteData(t *testing.T) {
	fr, buf := testFramer()
	var streamID uint32 = 1<<24 + 2<<16 + 3<<8 + 4
	data := []byte("ABC")
	fr.WriteData(streamID, true, data)
	const wantEnc = "\x00\x00\x03\x00\x01\x01\x02\x03\x04ABC"
	if buf.String() != wantEnc {
		t.Errorf("encoded as %q; want %q", buf.Bytes(), wantEnc)
	}
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	df, ok := f.(*DataFrame)
	if !ok {
		t.Fatalf("got %T; want *DataFrame", f)
	}
	if !bytes.Equal(df.Data(), data) {
		t.Errorf("got %q; want %q", df.Data(), data)
	}
	if f.Header().Flags&1 == 0 {
		t.Errorf("didn't see END_STREAM flag")
	}
}

func TestWriteDataPadded(t *testing.T) {
	// PADDED flag set by hand; WriteData never pads but reads must
	// strip the padding.
	fr, buf := testFramer()
	buf.Write([]byte{
		0x00, 0x00, 0x07, // length 7
		0x00,                   // DATA
		0x08,                   // PADDED
		0x00, 0x00, 0x00, 0x01, // stream 1
		0x03,          // pad length
		'f', 'o', 'o', // data
		0, 0, 0, // padding
	})
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	df := f.(*DataFrame)
	if got := string(df.Data()); got != "foo" {
		t.Errorf("data = %q; want %q", got, "foo")
	}
}

func TestWriteHeaders(t *testing.T) {
	tests := []struct {
		name      string
		p         HeadersFrameParam
		wantEnc   string
		wantFrame *HeadersFrame
	}{
		{
			"basic",
			HeadersFrameParam{
				StreamID:      42,
				BlockFragment: []byte("abc"),
			},
			"\x00\x00\x03\x01\x00\x00\x00\x00*abc",
			&HeadersFrame{
				FrameHeader: FrameHeader{
					valid:    true,
					StreamID: 42,
					Type:     FrameHeaders,
					Length:   3,
				},
				headerFragment: []byte("abc"),
			},
		},
		{
			"basic + end flags",
			HeadersFrameParam{
				StreamID:      42,
				BlockFragment: []byte("abc"),
				EndStream:     true,
				EndHeaders:    true,
			},
			"\x00\x00\x03\x01\x05\x00\x00\x00*abc",
			&HeadersFrame{
				FrameHeader: FrameHeader{
					valid:    true,
					StreamID: 42,
					Type:     FrameHeaders,
					Flags:    FlagHeadersEndStream | FlagHeadersEndHeaders,
					Length:   3,
				},
				headerFragment: []byte("abc"),
			},
		},
		{
			"with padding",
			HeadersFrameParam{
				StreamID:      42,
				BlockFragment: []byte("abc"),
				EndStream:     true,
				EndHeaders:    true,
				PadLength:     2,
			},
			"\x00\x00\x06\x01\x0d\x00\x00\x00*\x02abc\x00\x00",
			&HeadersFrame{
				FrameHeader: FrameHeader{
					valid:    true,
					StreamID: 42,
					Type:     FrameHeaders,
					Flags:    FlagHeadersEndStream | FlagHeadersEndHeaders | FlagHeadersPadded,
					Length:   6,
				},
				headerFragment: []byte("abc"),
			},
		},
		{
			"with priority",
			HeadersFrameParam{
				StreamID:      42,
				BlockFragment: []byte("abc"),
				EndHeaders:    true,
				Priority: PriorityParam{
					StreamDep: 15,
					Exclusive: true,
					Weight:    127,
				},
			},
			"\x00\x00\x08\x01\x24\x00\x00\x00*\x80\x00\x00\x0f\x7fabc",
			&HeadersFrame{
				FrameHeader: FrameHeader{
					valid:    true,
					StreamID: 42,
					Type:     FrameHeaders,
					Flags:    FlagHeadersEndHeaders | FlagHeadersPriority,
					Length:   8,
				},
				Priority: PriorityParam{
					StreamDep: 15,
					Exclusive: true,
					Weight:    127,
				},
				headerFragment: []byte("abc"),
			},
		},
	}
	for _, tt := range tests {
		fr, buf := testFramer()
		if err := fr.WriteHeaders(tt.p); err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if buf.String() != tt.wantEnc {
			t.Errorf("%s: encoded %q; want %q", tt.name, buf.Bytes(), tt.wantEnc)
		}
		f, err := fr.ReadFrame()
		if err != nil {
			t.Errorf("%s: failed to parse frame: %v", tt.name, err)
			continue
		}
		if !reflect.DeepEqual(f, tt.wantFrame) {
			t.Errorf("%s: parsed back:\n%+v\nwant:\n%+v", tt.name, f, tt.wantFrame)
		}
	}
}

func TestWriteSettings(t *testing.T) {
	fr, buf := testFramer()
	settings := []Setting{{1, 2}, {3, 4}}
	fr.WriteSettings(settings...)
	const wantEnc = "\x00\x00\f\x04\x00\x00\x00\x00\x00\x00\x01\x00\x00\x00\x02\x00\x03\x00\x00\x00\x04"
	if buf.String() != wantEnc {
		t.Errorf("encoded as %q; want %q", buf.Bytes(), wantEnc)
	}
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	sf, ok := f.(*SettingsFrame)
	if !ok {
		t.Fatalf("got %T; want *SettingsFrame", f)
	}
	var got []Setting
	sf.ForeachSetting(func(s Setting) error {
		got = append(got, s)
		valBack, ok := sf.Value(s.ID)
		if !ok || valBack != s.Val {
			t.Errorf("Value(%d) = %v, %v; want %v, true", s.ID, valBack, ok, s.Val)
		}
		return nil
	})
	if !reflect.DeepEqual(settings, got) {
		t.Errorf("settings = %#v; want %#v", got, settings)
	}
}

func TestWriteSettingsAck(t *testing.T) {
	fr, buf := testFramer()
	fr.WriteSettingsAck()
	const wantEnc = "\x00\x00\x00\x04\x01\x00\x00\x00\x00"
	if buf.String() != wantEnc {
		t.Errorf("encoded as %q; want %q", buf.Bytes(), wantEnc)
	}
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if sf, ok := f.(*SettingsFrame); !ok || !sf.IsAck() {
		t.Errorf("got %+v; want SETTINGS ack", f)
	}
}

func TestWritePing(t *testing.T) {
	fr, buf := testFramer()
	data := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	fr.WritePing(true, data)
	const wantEnc = "\x00\x00\x08\x06\x01\x00\x00\x00\x00\x01\x02\x03\x04\x05\x06\x07\x08"
	if buf.String() != wantEnc {
		t.Errorf("encoded as %q; want %q", buf.Bytes(), wantEnc)
	}
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	pf, ok := f.(*PingFrame)
	if !ok || !pf.IsAck() || pf.Data != data {
		t.Errorf("got %+v; want PING ack with %v", f, data)
	}
}

func TestWriteGoAway(t *testing.T) {
	const debug = "foo"
	fr, buf := testFramer()
	if err := fr.WriteGoAway(0x01020304, 0x05060708, []byte(debug)); err != nil {
		t.Fatal(err)
	}
	const wantEnc = "\x00\x00\v\a\x00\x00\x00\x00\x00\x01\x02\x03\x04\x05\x06\x07\x08foo"
	if buf.String() != wantEnc {
		t.Errorf("encoded as %q; want %q", buf.Bytes(), wantEnc)
	}
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	gf, ok := f.(*GoAwayFrame)
	if !ok {
		t.Fatalf("got %T; want *GoAwayFrame", f)
	}
	if gf.LastStreamID != 0x01020304 || gf.ErrCode != 0x05060708 || string(gf.DebugData()) != debug {
		t.Errorf("parsed back %+v (debug %q)", gf, gf.DebugData())
	}
}

func TestWriteWindowUpdate(t *testing.T) {
	fr, buf := testFramer()
	const streamID = 1<<24 + 2<<16 + 3<<8 + 4
	const incr = 7<<24 + 6<<16 + 5<<8 + 4
	if err := fr.WriteWindowUpdate(streamID, incr); err != nil {
		t.Fatal(err)
	}
	const wantEnc = "\x00\x00\x04\x08\x00\x01\x02\x03\x04\x07\x06\x05\x04"
	if buf.String() != wantEnc {
		t.Errorf("encoded as %q; want %q", buf.Bytes(), wantEnc)
	}
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	wu, ok := f.(*WindowUpdateFrame)
	if !ok || wu.StreamID != streamID || wu.Increment != incr {
		t.Errorf("parsed back %+v", f)
	}
	if err := fr.WriteWindowUpdate(streamID, 0); err == nil {
		t.Errorf("want error on zero increment")
	}
}

func TestWriteRSTStream(t *testing.T) {
	fr, _ := testFramer()
	if err := fr.WriteRSTStream(1, ErrCodeCancel); err != nil {
		t.Fatal(err)
	}
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	rst, ok := f.(*RSTStreamFrame)
	if !ok || rst.StreamID != 1 || rst.ErrCode != ErrCodeCancel {
		t.Errorf("parsed back %+v", f)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	fr, _ := testFramer()
	fr.SetMaxReadFrameSize(64)
	fr.WriteData(1, false, make([]byte, 65))
	if _, err := fr.ReadFrame(); err != ErrFrameTooLarge {
		t.Errorf("ReadFrame error = %v; want ErrFrameTooLarge", err)
	}
}

func TestReadFrameHeaderReservedBitMasked(t *testing.T) {
	var hbuf [frameHeaderLen]byte
	fh, err := readFrameHeader(hbuf[:], bytes.NewReader([]byte{
		0, 0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff, // stream ID with the reserved bit set
	}))
	if err != nil {
		t.Fatal(err)
	}
	if fh.StreamID != 1<<31-1 {
		t.Errorf("StreamID = %#x; want reserved bit masked off", fh.StreamID)
	}
}

func TestReadUnknownFrame(t *testing.T) {
	fr, _ := testFramer()
	payload := []byte("extension data")
	fr.startWrite(0xf0, 0, 1)
	fr.writeBytes(payload)
	if err := fr.endWrite(); err != nil {
		t.Fatal(err)
	}
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	uf, ok := f.(*UnknownFrame)
	if !ok || !bytes.Equal(uf.Payload(), payload) {
		t.Errorf("parsed back %+v", f)
	}
}

func encodeHeaderBlock(t *testing.T, fields []hpack.HeaderField) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := hpack.NewEncoder(&buf)
	for _, f := range fields {
		if err := enc.WriteField(f); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func TestMetaHeaders(t *testing.T) {
	fields := []hpack.HeaderField{
		{Name: ":status", Value: "200"},
		{Name: "content-type", Value: "text/html"},
		{Name: "server", Value: "serenity"},
	}
	block := encodeHeaderBlock(t, fields)

	// Split the block across HEADERS plus two CONTINUATIONs.
	fr, _ := testFramer()
	fr.ReadMetaHeaders = hpack.NewDecoder(4096, nil)
	third := len(block) / 3
	if err := fr.WriteHeaders(HeadersFrameParam{
		StreamID:      1,
		BlockFragment: block[:third],
	}); err != nil {
		t.Fatal(err)
	}
	if err := fr.WriteContinuation(1, false, block[third:2*third]); err != nil {
		t.Fatal(err)
	}
	if err := fr.WriteContinuation(1, true, block[2*third:]); err != nil {
		t.Fatal(err)
	}

	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	mh, ok := f.(*MetaHeadersFrame)
	if !ok {
		t.Fatalf("got %T; want *MetaHeadersFrame", f)
	}
	if !reflect.DeepEqual(mh.Fields, fields) {
		t.Errorf("fields = %+v; want %+v", mh.Fields, fields)
	}
	if got := mh.PseudoValue("status"); got != "200" {
		t.Errorf(`PseudoValue("status") = %q; want "200"`, got)
	}
}

func TestMetaHeadersInterleavedFrame(t *testing.T) {
	fr, _ := testFramer()
	fr.ReadMetaHeaders = hpack.NewDecoder(4096, nil)
	block := encodeHeaderBlock(t, []hpack.HeaderField{{Name: ":status", Value: "200"}})
	if err := fr.WriteHeaders(HeadersFrameParam{
		StreamID:      1,
		BlockFragment: block,
		// no EndHeaders: a CONTINUATION must follow
	}); err != nil {
		t.Fatal(err)
	}
	if err := fr.WritePing(false, [8]byte{}); err != nil {
		t.Fatal(err)
	}
	if _, err := fr.ReadFrame(); err != ConnectionError(ErrCodeProtocol) {
		t.Errorf("ReadFrame error = %v; want connection PROTOCOL_ERROR", err)
	}
}

func TestMetaHeadersBadBlock(t *testing.T) {
	fr, _ := testFramer()
	fr.ReadMetaHeaders = hpack.NewDecoder(4096, nil)
	if err := fr.WriteHeaders(HeadersFrameParam{
		StreamID:      1,
		BlockFragment: []byte{0x80}, // indexed field with index 0
		EndHeaders:    true,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := fr.ReadFrame(); err != ConnectionError(ErrCodeCompression) {
		t.Errorf("ReadFrame error = %v; want connection COMPRESSION_ERROR", err)
	}
}

func TestSettingsFrameValidity(t *testing.T) {
	// ACK with a payload is a FRAME_SIZE_ERROR.
	fr, buf := testFramer()
	buf.Write([]byte{
		0x00, 0x00, 0x06,
		0x04, 0x01, // SETTINGS, ACK
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x01, 0x00, 0x00, 0x10, 0x00,
	})
	if _, err := fr.ReadFrame(); err != ConnectionError(ErrCodeFrameSize) {
		t.Errorf("SETTINGS ack with payload: err = %v; want FRAME_SIZE_ERROR", err)
	}

	// Payload not a multiple of 6.
	fr, buf = testFramer()
	buf.Write([]byte{
		0x00, 0x00, 0x05,
		0x04, 0x00,
		0x00, 0x00, 0x00, 0x00,
		1, 2, 3, 4, 5,
	})
	if _, err := fr.ReadFrame(); err != ConnectionError(ErrCodeFrameSize) {
		t.Errorf("misaligned SETTINGS: err = %v; want FRAME_SIZE_ERROR", err)
	}
}

func TestSettingValid(t *testing.T) {
	tests := []struct {
		s       Setting
		wantErr bool
	}{
		{Setting{SettingEnablePush, 0}, false},
		{Setting{SettingEnablePush, 1}, false},
		{Setting{SettingEnablePush, 2}, true},
		{Setting{SettingInitialWindowSize, 1 << 31}, true},
		{Setting{SettingInitialWindowSize, 1<<31 - 1}, false},
		{Setting{SettingMaxFrameSize, 16383}, true},
		{Setting{SettingMaxFrameSize, 16384}, false},
		{Setting{SettingMaxFrameSize, 1 << 24}, true},
		{Setting{SettingHeaderTableSize, 0}, false},
	}
	for _, tt := range tests {
		if err := tt.s.Valid(); (err != nil) != tt.wantErr {
			t.Errorf("%v.Valid() = %v; wantErr=%v", tt.s, err, tt.wantErr)
		}
	}
}
