// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package http2

import (
	"bytes"
	"net/url"
	"reflect"
	"testing"

	"github.com/krkk/serenity/hpack"
)

func mustParseURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func encodeAndDecodeRequest(t *testing.T, param RequestParam) []hpack.HeaderField {
	t.Helper()
	var buf bytes.Buffer
	enc := hpack.NewEncoder(&buf)
	if err := EncodeRequestHeaders(enc, param); err != nil {
		t.Fatal(err)
	}
	fields, err := hpack.NewDecoder(4096, nil).DecodeFull(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	return fields
}

func TestEncodeRequestHeaders(t *testing.T) {
	got := encodeAndDecodeRequest(t, RequestParam{
		Method: "POST",
		URL:    mustParseURL(t, "https://www.example.com/submit?q=1"),
		Header: map[string][]string{
			"User-Agent": {"serenity/1.0"},
			"Accept":     {"text/html", "application/xhtml+xml"},
			"Cookie":     {"session=1234"},
		},
	})
	want := []hpack.HeaderField{
		{Name: ":method", Value: "POST"},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: "www.example.com"},
		{Name: ":path", Value: "/submit?q=1"},
		{Name: "accept", Value: "text/html"},
		{Name: "accept", Value: "application/xhtml+xml"},
		{Name: "cookie", Value: "session=1234", Sensitive: true},
		{Name: "user-agent", Value: "serenity/1.0"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("decoded:\n%+v\nwant:\n%+v", got, want)
	}
}

func TestEncodeRequestHeadersDefaults(t *testing.T) {
	got := encodeAndDecodeRequest(t, RequestParam{
		URL: mustParseURL(t, "https://example.com"),
	})
	want := []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: "example.com"},
		{Name: ":path", Value: "/"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("decoded:\n%+v\nwant:\n%+v", got, want)
	}
}

func TestEncodeRequestHeadersIDNAuthority(t *testing.T) {
	got := encodeAndDecodeRequest(t, RequestParam{
		URL: mustParseURL(t, "https://bücher.example:8443/katalog"),
	})
	var authority string
	for _, f := range got {
		if f.Name == ":authority" {
			authority = f.Value
		}
	}
	if want := "xn--bcher-kva.example:8443"; authority != want {
		t.Errorf(":authority = %q; want %q", authority, want)
	}
}

func TestEncodeRequestHeadersRejectsConnHeaders(t *testing.T) {
	for _, h := range []string{"Connection", "Keep-Alive", "Proxy-Connection", "Transfer-Encoding", "Upgrade"} {
		var buf bytes.Buffer
		err := EncodeRequestHeaders(hpack.NewEncoder(&buf), RequestParam{
			URL:    mustParseURL(t, "https://example.com/"),
			Header: map[string][]string{h: {"x"}},
		})
		if err == nil {
			t.Errorf("header %q was not rejected", h)
		}
		if buf.Len() != 0 {
			t.Errorf("header %q: bytes were written before the error", h)
		}
	}
}

func TestAuthorityAddr(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"example.com", "example.com"},
		{"example.com:443", "example.com:443"},
		{"bücher.example", "xn--bcher-kva.example"},
		{"[::1]:8080", "[::1]:8080"},
	}
	for _, tt := range tests {
		got, err := authorityAddr(tt.in)
		if err != nil {
			t.Errorf("authorityAddr(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("authorityAddr(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
