// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package http2

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/idna"

	"github.com/krkk/serenity/hpack"
)

// connection-specific headers that RFC 9113 section 8.2.2 forbids in
// HTTP/2 field blocks. Keys are lower-case.
var connHeaders = map[string]bool{
	"connection":        true,
	"keep-alive":        true,
	"proxy-connection":  true,
	"transfer-encoding": true,
	"upgrade":           true,
}

// A RequestParam describes an HTTP/2 request to be encoded into a
// header block.
type RequestParam struct {
	// Method is the HTTP method ("GET", "POST", ...).
	Method string

	// URL supplies the :scheme, :authority and :path pseudo
	// header fields. Its Host may be an internationalized domain
	// name; it is converted to Punycode on the wire.
	URL *url.URL

	// Header holds the regular (non-pseudo) header fields. Names
	// are lower-cased on the wire. Nil values are allowed.
	Header map[string][]string
}

// EncodeRequestHeaders writes the request's header block to enc: the
// pseudo header fields first, in the fixed order :method, :scheme,
// :authority, :path, then the regular fields with lower-cased names.
//
// It returns an error, and writes nothing, if the request carries a
// connection-specific header field.
func EncodeRequestHeaders(enc *hpack.Encoder, param RequestParam) error {
	u := param.URL
	host := u.Host
	if host == "" {
		return fmt.Errorf("http2: request URL %q has no host", u)
	}
	authority, err := authorityAddr(host)
	if err != nil {
		return err
	}
	path := u.RequestURI()
	if path == "" {
		path = "/"
	}

	// Sorted for a deterministic block; HTTP/2 attaches no meaning
	// to the order of regular fields.
	names := make([]string, 0, len(param.Header))
	for k := range param.Header {
		if connHeaders[strings.ToLower(k)] {
			return fmt.Errorf("http2: invalid connection-specific header %q", k)
		}
		names = append(names, k)
	}
	sort.Strings(names)

	method := param.Method
	if method == "" {
		method = "GET"
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}

	fields := []hpack.HeaderField{
		{Name: ":method", Value: method},
		{Name: ":scheme", Value: scheme},
		{Name: ":authority", Value: authority},
		{Name: ":path", Value: path},
	}
	for _, k := range names {
		name := strings.ToLower(k)
		sensitive := name == "authorization" || name == "cookie" || name == "proxy-authorization"
		for _, v := range param.Header[k] {
			fields = append(fields, hpack.HeaderField{Name: name, Value: v, Sensitive: sensitive})
		}
	}
	for _, f := range fields {
		if err := enc.WriteField(f); err != nil {
			return err
		}
	}
	return nil
}

// authorityAddr converts a URL host to its wire form for the
// :authority pseudo header: the Punycode of an internationalized
// name, with any default port stripped by the caller beforehand.
func authorityAddr(host string) (string, error) {
	// Literal IPv6 addresses and already-ASCII names pass through
	// idna unchanged.
	if strings.HasPrefix(host, "[") {
		return host, nil
	}
	name := host
	port := ""
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		name, port = host[:i], host[i:]
	}
	a, err := idna.ToASCII(name)
	if err != nil {
		return "", fmt.Errorf("http2: invalid authority %q: %v", host, err)
	}
	return a + port, nil
}
