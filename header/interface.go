/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package header implements the ordered, case-insensitive, duplicate-preserving
// header list used by both the request and response sides of the stack.
//
// net/http.Header is a map and loses the wire order of fields; this package keeps
// fields as an ordered list so that duplicates and relative order stay observable,
// which both the HPACK codec and the cache Vary handling rely on.
package header

import (
	liberr "github.com/nabbar/golib/errors"
	libgut "golang.org/x/net/http/httpguts"
)

// FuncWalk is the callback used by Header.Walk.
// Returning false stops the iteration.
type FuncWalk func(name, value string) bool

// Header is an ordered list of header fields.
// Name comparison is case-insensitive, stored case is preserved for the wire.
// New returns an empty list. A Header is not safe for concurrent mutation.
type Header interface {
	// Add appends a field at the end of the list.
	Add(name, value string)

	// Set removes every field matching name then appends name/value.
	Set(name, value string)

	// Del removes every field matching name.
	Del(name string)

	// Get returns the value of the first field matching name, or empty string.
	Get(name string) string

	// Has returns true if at least one field matches name.
	Has(name string) bool

	// Values returns all values for name, in list order.
	Values(name string) []string

	// Names returns the distinct field names in first-seen order.
	Names() []string

	// Len returns the number of fields (duplicates counted).
	Len() int

	// Walk calls fct for each field in list order.
	Walk(fct FuncWalk)

	// Clone returns an independent deep copy.
	Clone() Header
}

// New returns an empty Header.
func New() Header {
	return &hdr{
		f: make([]field, 0, 8),
	}
}

// Valid checks name against the token grammar of RFC 7230 and value against the
// field-value octet rules (CR/LF excluded, obs-fold rejected).
func Valid(name, value string) liberr.Error {
	if !libgut.ValidHeaderFieldName(name) {
		return ErrorInvalidName.Errorf(name)
	}

	if !libgut.ValidHeaderFieldValue(value) {
		return ErrorInvalidValue.Errorf(name)
	}

	return nil
}
