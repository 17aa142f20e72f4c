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

package http1

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

type emptyBody struct{}

func (o *emptyBody) Read(p []byte) (int, error) {
	return 0, io.EOF
}

func (o *emptyBody) Close() error {
	return nil
}

// bodyReader adapts a framing reader into the response body stream, tracking
// completion so the codec knows whether the connection stays reusable.
type bodyReader struct {
	o *cdc
	r io.Reader
	f FuncBodyDone
	n int64
	d bool // done callback fired
	c bool // closed
}

func (o *bodyReader) Read(p []byte) (int, error) {
	if o.c {
		return 0, io.ErrClosedPipe
	}

	n, err := o.r.Read(p)
	o.n += int64(n)

	if err == io.EOF {
		o.done(true)
	} else if err != nil {
		o.o.ok = false
		o.done(false)
	}

	return n, err
}

func (o *bodyReader) Close() error {
	if o.c {
		return nil
	}

	o.c = true

	if !o.d {
		// closing before EOF discards unread payload: the connection
		// cannot carry a further exchange
		o.o.ok = false
		o.done(false)
	}

	return nil
}

func (o *bodyReader) done(complete bool) {
	if o.d {
		return
	}

	o.d = true

	if o.f != nil {
		o.f(complete, o.n)
	}
}

// lengthReader yields exactly n bytes then EOF.
type lengthReader struct {
	r *bufio.Reader
	n int64
}

func (o *lengthReader) Read(p []byte) (int, error) {
	if o.n <= 0 {
		return 0, io.EOF
	}

	if int64(len(p)) > o.n {
		p = p[:o.n]
	}

	n, err := o.r.Read(p)
	o.n -= int64(n)

	if err == nil && o.n == 0 {
		err = io.EOF
	}

	if err == io.EOF && o.n > 0 {
		err = io.ErrUnexpectedEOF
	}

	return n, err
}

// closeReader yields bytes until the server closes the connection.
type closeReader struct {
	r *bufio.Reader
}

func (o *closeReader) Read(p []byte) (int, error) {
	return o.r.Read(p)
}

// chunkReader decodes the chunked transfer coding. The trailer section is
// read and discarded.
type chunkReader struct {
	r    *bufio.Reader
	n    int64 // bytes remaining in the current chunk
	done bool
	err  error
}

func (o *chunkReader) Read(p []byte) (int, error) {
	if o.err != nil {
		return 0, o.err
	}

	if o.done {
		return 0, io.EOF
	}

	if o.n == 0 {
		if err := o.next(); err != nil {
			o.err = err
			return 0, err
		}

		if o.done {
			return 0, io.EOF
		}
	}

	if int64(len(p)) > o.n {
		p = p[:o.n]
	}

	n, err := o.r.Read(p)
	o.n -= int64(n)

	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}

	if err != nil {
		o.err = err
	}

	if o.n == 0 && o.err == nil {
		if err = o.crlf(); err != nil {
			o.err = err
			return n, err
		}
	}

	return n, nil
}

// next reads a chunk-size line, and on the final chunk consumes the trailer.
func (o *chunkReader) next() error {
	line, err := o.line()
	if err != nil {
		return err
	}

	// chunk extensions are tolerated and ignored
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		line = line[:idx]
	}

	size, err2 := strconv.ParseInt(strings.TrimSpace(line), 16, 64)

	if err2 != nil || size < 0 {
		return ErrorChunkEncoding.Error(err2)
	}

	if size == 0 {
		// trailer section: lines until the empty one
		for {
			l, e := o.line()
			if e != nil {
				return e
			}

			if l == "" {
				break
			}
		}

		o.done = true
		return nil
	}

	o.n = size
	return nil
}

func (o *chunkReader) crlf() error {
	var p [2]byte

	if _, err := io.ReadFull(o.r, p[:]); err != nil {
		return err
	}

	if p[0] != '\r' || p[1] != '\n' {
		return ErrorChunkEncoding.Error(nil)
	}

	return nil
}

func (o *chunkReader) line() (string, error) {
	l, err := o.r.ReadString('\n')
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")

	return strings.TrimSuffix(l, "\r"), nil
}
