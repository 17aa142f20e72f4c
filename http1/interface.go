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

// Package http1 implements the serialized HTTP/1.1 exchange codec.
//
// One codec owns one socket and carries one exchange at a time, never
// pipelined. Request bodies are framed with exactly one of Content-Length or
// chunked transfer encoding; response bodies end by length, by final chunk or
// by connection close. Header fields are validated against RFC 7230 and
// obs-fold is rejected.
package http1

import (
	"bufio"
	"io"
	"net"
	"time"

	liberr "github.com/nabbar/golib/errors"
	libhdr "github.com/nabbar/httpcall/header"
	librqs "github.com/nabbar/httpcall/request"
)

const (
	// maxLineSize bounds the status line and each header line.
	maxLineSize = 64 * 1024
	// maxHeaderSize bounds the cumulated size of a header block.
	maxHeaderSize = 256 * 1024
)

// Codec reads and writes HTTP/1.1 exchanges over one socket.
// It is not safe for concurrent use: the connection serializes exchanges.
type Codec interface {
	// WriteRequest emits the request line, the given wire header list and the
	// request body. target is the request-target (origin-form, or absolute-form
	// when traversing a cleartext proxy). It returns the body bytes written.
	WriteRequest(target string, req librqs.Request, hdr libhdr.Header) (int64, liberr.Error)

	// WriteHead emits a body-less request (CONNECT tunnel establishment).
	WriteHead(method, target string, hdr libhdr.Header) liberr.Error

	// ReadResponse parses the status line and header block. Informational
	// responses (1xx) other than 101 are skipped; a 101 is returned to the
	// caller with a nil Body. The returned body reader yields exactly the
	// payload bytes; fct is invoked once the body is fully consumed or closed.
	ReadResponse(method string, fct FuncBodyDone) (*librqs.Response, liberr.Error)

	// Reusable returns false once the exchange left the connection in a state
	// that forbids a further exchange (close token, truncated read, error).
	Reusable() bool

	// Healthy performs a non-blocking peek to detect a remote close.
	Healthy() bool
}

// FuncBodyDone observes the end of a response body. complete is true when the
// payload was fully consumed, which leaves the connection reusable.
type FuncBodyDone func(complete bool, bytes int64)

// New returns a Codec over c. Non-zero read/write timeouts apply per I/O
// operation as inter-byte bounds.
func New(c net.Conn, readTimeout, writeTimeout time.Duration) Codec {
	return &cdc{
		c:  c,
		r:  bufio.NewReaderSize(&timeoutReader{c: c, d: readTimeout}, 4096),
		w:  bufio.NewWriterSize(&timeoutWriter{c: c, d: writeTimeout}, 4096),
		ok: true,
	}
}

// timeoutReader arms the read deadline before each read.
type timeoutReader struct {
	c net.Conn
	d time.Duration
}

func (o *timeoutReader) Read(p []byte) (int, error) {
	if o.d > 0 {
		if err := o.c.SetReadDeadline(time.Now().Add(o.d)); err != nil {
			return 0, err
		}
	}

	return o.c.Read(p)
}

// timeoutWriter arms the write deadline before each write.
type timeoutWriter struct {
	c net.Conn
	d time.Duration
}

func (o *timeoutWriter) Write(p []byte) (int, error) {
	if o.d > 0 {
		if err := o.c.SetWriteDeadline(time.Now().Add(o.d)); err != nil {
			return 0, err
		}
	}

	return o.c.Write(p)
}

var _ io.Reader = &timeoutReader{}
