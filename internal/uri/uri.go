// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

// Package uri splits resource locators into their RFC 3986 components.
//
// Components are returned verbatim: no percent-decoding, no case folding,
// no dot-segment removal. Access decisions are made against exactly the text
// the client sent.
package uri

import (
	"regexp"
	"strings"

	"github.com/samber/oops"
)

// CodeMalformed is the error code for locators that cannot be decomposed.
const CodeMalformed = "MALFORMED_URI"

// URI is a decomposed resource locator. Any component may be empty.
type URI struct {
	Scheme    string
	Authority string
	Path      string
	Query     string
	Fragment  string

	hasAuthority bool
	hasQuery     bool
	hasFragment  bool
}

// RFC 3986 appendix B.
var splitter = regexp.MustCompile(`^(([^:/?#]+):)?(//([^/?#]*))?([^?#]*)(\?([^#]*))?(#(.*))?$`)

var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*$`)

// Parse decomposes s. It fails with MALFORMED_URI when s is empty, contains
// whitespace or control characters, or carries an invalid scheme.
func Parse(s string) (URI, error) {
	if s == "" {
		return URI{}, malformed(s, "empty locator")
	}
	for i := 0; i < len(s); i++ {
		if c := s[i]; c <= ' ' || c == 0x7f {
			return URI{}, malformed(s, "contains whitespace or control character")
		}
	}

	m := splitter.FindStringSubmatch(s)
	if m == nil {
		return URI{}, malformed(s, "does not match scheme://authority/path?query#fragment")
	}

	u := URI{
		Scheme:       m[2],
		Authority:    m[4],
		Path:         m[5],
		Query:        m[7],
		Fragment:     m[9],
		hasAuthority: m[3] != "",
		hasQuery:     m[6] != "",
		hasFragment:  m[8] != "",
	}

	if m[1] != "" && !schemePattern.MatchString(u.Scheme) {
		return URI{}, malformed(s, "invalid scheme")
	}

	return u, nil
}

// MustParse is Parse for literals in tests and defaults; it panics on error.
func MustParse(s string) URI {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// HasAuthority reports whether the locator carried a "//" authority marker,
// which distinguishes "file:///x" (empty authority) from "file:/x" (none).
func (u URI) HasAuthority() bool { return u.hasAuthority }

// String recomposes the locator. For any u returned by Parse, u.String()
// equals the parsed input.
func (u URI) String() string {
	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteByte(':')
	}
	if u.hasAuthority || u.Authority != "" {
		b.WriteString("//")
		b.WriteString(u.Authority)
	}
	b.WriteString(u.Path)
	if u.hasQuery || u.Query != "" {
		b.WriteByte('?')
		b.WriteString(u.Query)
	}
	if u.hasFragment || u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.Fragment)
	}
	return b.String()
}

// IsStreaming reports whether the scheme names network streaming content.
func (u URI) IsStreaming() bool {
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "rtsp":
		return true
	default:
		return false
	}
}

func malformed(s, reason string) error {
	return oops.In("uri").
		Code(CodeMalformed).
		With("uri", s).
		Errorf("malformed uri %q: %s", s, reason)
}
