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

// Package request defines the user-level request and response model of the stack.
//
// A Request is immutable once built. The Builder applies the method/body rules
// of the call surface: GET and HEAD refuse a body, POST/PUT/PATCH require one,
// DELETE defaults to a zero-length body when none is given.
package request

import (
	"net/url"

	liberr "github.com/nabbar/golib/errors"
	libhdr "github.com/nabbar/httpcall/header"
)

// Request is one immutable user-level request.
type Request interface {
	// Method returns the HTTP method, uppercase.
	Method() string

	// Url returns the absolute request URL. The caller must not mutate it.
	Url() *url.URL

	// Header returns a copy of the request header list.
	Header() libhdr.Header

	// Body returns the request body producer, or nil.
	Body() Body

	// Tag returns the value registered for key, or nil.
	Tag(key string) interface{}

	// CacheControl returns the caller-supplied cache directive, or empty string.
	CacheControl() string

	// Builder returns a new Builder pre-filled with this request.
	Builder() Builder
}

// Builder assembles a Request.
// All setters record their input; invalid input surfaces on Build.
type Builder interface {
	// SetMethod sets the HTTP method and its body.
	// Pass a nil body for body-less methods.
	SetMethod(mtd string, body Body)

	// SetEndpoint parses and sets an absolute http(s) URL.
	// ws and wss schemes are accepted and mapped to http and https.
	SetEndpoint(uri string)

	// SetUrl sets an already parsed absolute URL.
	SetUrl(u *url.URL)

	// SetHeader replaces all values of name with the given value.
	SetHeader(name, value string)

	// AddHeader appends a name/value field.
	AddHeader(name, value string)

	// DelHeader removes all values of name.
	DelHeader(name string)

	// SetCacheControl sets the Cache-Control request directive.
	SetCacheControl(directive string)

	// SetTag attaches an opaque value retrievable from the built request.
	SetTag(key string, val interface{})

	// Build validates the accumulated state and returns the immutable request.
	Build() (Request, liberr.Error)
}

// New returns an empty request Builder.
func New() Builder {
	return &builder{
		m: "GET",
		h: libhdr.New(),
		t: make(map[string]interface{}),
	}
}
