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

package request

import (
	"bytes"
	"io"

	liberr "github.com/nabbar/golib/errors"
)

// Body produces the payload of an outbound request.
//
// A Body with a negative ContentLength is streamed with chunked transfer
// encoding on HTTP/1.1. A one-shot Body can only be read once and makes the
// request non-replayable: follow-ups and retries that would need to resend it
// are refused.
type Body interface {
	// ContentType returns the media type sent as Content-Type, or empty string.
	ContentType() string

	// ContentLength returns the exact payload size, or -1 when unknown.
	ContentLength() int64

	// OneShot returns true when Reader can only be called once.
	OneShot() bool

	// Reader returns a fresh reader over the payload.
	Reader() (io.ReadCloser, liberr.Error)
}

// NewBody wraps a reader factory as a request Body.
// The body is replayable: fct is called again for each attempt.
func NewBody(contentType string, size int64, fct func() (io.ReadCloser, error)) Body {
	return &bdy{
		c: contentType,
		s: size,
		f: fct,
	}
}

// NewBodyOneShot wraps a single-use stream as a request Body.
func NewBodyOneShot(contentType string, size int64, r io.ReadCloser) Body {
	return &bdyOne{
		c: contentType,
		s: size,
		r: r,
	}
}

// NewBodyBytes returns a replayable Body over the given buffer.
func NewBodyBytes(contentType string, p []byte) Body {
	return NewBody(contentType, int64(len(p)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(p)), nil
	})
}

// NewBodyString returns a replayable Body over the given string.
func NewBodyString(contentType string, s string) Body {
	return NewBodyBytes(contentType, []byte(s))
}

type bdy struct {
	c string
	s int64
	f func() (io.ReadCloser, error)
}

func (o *bdy) ContentType() string {
	return o.c
}

func (o *bdy) ContentLength() int64 {
	return o.s
}

func (o *bdy) OneShot() bool {
	return false
}

func (o *bdy) Reader() (io.ReadCloser, liberr.Error) {
	if o.f == nil {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	if r, err := o.f(); err != nil {
		return nil, ErrorBodyRead.Error(err)
	} else {
		return r, nil
	}
}

type bdyOne struct {
	c string
	s int64
	r io.ReadCloser
}

func (o *bdyOne) ContentType() string {
	return o.c
}

func (o *bdyOne) ContentLength() int64 {
	return o.s
}

func (o *bdyOne) OneShot() bool {
	return true
}

func (o *bdyOne) Reader() (io.ReadCloser, liberr.Error) {
	if o.r == nil {
		return nil, ErrorBodyConsumed.Error(nil)
	}

	r := o.r
	o.r = nil

	return r, nil
}
