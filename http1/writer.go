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
	"net"
	"strconv"

	liberr "github.com/nabbar/golib/errors"
	libhdr "github.com/nabbar/httpcall/header"
	librqs "github.com/nabbar/httpcall/request"
)

type cdc struct {
	c  net.Conn
	r  *bufio.Reader
	w  *bufio.Writer
	ok bool // connection may carry a further exchange
}

func (o *cdc) Reusable() bool {
	return o.ok
}

func (o *cdc) WriteHead(method, target string, hdr libhdr.Header) liberr.Error {
	if _, err := o.w.WriteString(method + " " + target + " HTTP/1.1\r\n"); err != nil {
		o.ok = false
		return ErrorRequestWrite.Error(err)
	}

	var werr error

	hdr.Walk(func(name, value string) bool {
		if _, werr = o.w.WriteString(name + ": " + value + "\r\n"); werr != nil {
			return false
		}

		return true
	})

	if werr == nil {
		_, werr = o.w.WriteString("\r\n")
	}

	if werr == nil {
		werr = o.w.Flush()
	}

	if werr != nil {
		o.ok = false
		return ErrorRequestWrite.Error(werr)
	}

	return nil
}

func (o *cdc) WriteRequest(target string, req librqs.Request, hdr libhdr.Header) (int64, liberr.Error) {
	if target == "" {
		target = "/"
	}

	if _, err := o.w.WriteString(req.Method() + " " + target + " HTTP/1.1\r\n"); err != nil {
		o.ok = false
		return 0, ErrorRequestWrite.Error(err)
	}

	var werr error

	hdr.Walk(func(name, value string) bool {
		if _, werr = o.w.WriteString(name + ": " + value + "\r\n"); werr != nil {
			return false
		}

		return true
	})

	if werr == nil {
		_, werr = o.w.WriteString("\r\n")
	}

	if werr != nil {
		o.ok = false

		if timeoutError(werr) {
			return 0, ErrorWriteTimeout.Error(werr)
		}

		return 0, ErrorRequestWrite.Error(werr)
	}

	var (
		n int64
		e liberr.Error
	)

	if b := req.Body(); b != nil {
		if b.ContentLength() >= 0 {
			n, e = o.writeBodyLength(b)
		} else {
			n, e = o.writeBodyChunked(b)
		}

		if e != nil {
			o.ok = false
			return n, e
		}
	}

	if err := o.w.Flush(); err != nil {
		o.ok = false
		return n, ErrorRequestWrite.Error(err)
	}

	return n, nil
}

func (o *cdc) writeBodyLength(b librqs.Body) (int64, liberr.Error) {
	r, e := b.Reader()
	if e != nil {
		return 0, e
	}

	defer func() {
		_ = r.Close()
	}()

	n, err := io.Copy(o.w, io.LimitReader(r, b.ContentLength()))

	if err != nil {
		return n, ErrorRequestWrite.Error(err)
	}

	if n != b.ContentLength() {
		return n, ErrorBodyShort.Errorf(b.ContentLength(), n)
	}

	return n, nil
}

func (o *cdc) writeBodyChunked(b librqs.Body) (int64, liberr.Error) {
	r, e := b.Reader()
	if e != nil {
		return 0, e
	}

	defer func() {
		_ = r.Close()
	}()

	var (
		n   int64
		buf = make([]byte, 8192)
	)

	for {
		c, err := r.Read(buf)

		if c > 0 {
			if _, werr := o.w.WriteString(strconv.FormatInt(int64(c), 16) + "\r\n"); werr != nil {
				return n, ErrorRequestWrite.Error(werr)
			}

			if _, werr := o.w.Write(buf[:c]); werr != nil {
				return n, ErrorRequestWrite.Error(werr)
			}

			if _, werr := o.w.WriteString("\r\n"); werr != nil {
				return n, ErrorRequestWrite.Error(werr)
			}

			n += int64(c)
		}

		if err == io.EOF {
			break
		}

		if err != nil {
			return n, ErrorRequestWrite.Error(err)
		}
	}

	if _, werr := o.w.WriteString("0\r\n\r\n"); werr != nil {
		return n, ErrorRequestWrite.Error(werr)
	}

	return n, nil
}
