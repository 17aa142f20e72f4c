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
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	liberr "github.com/nabbar/golib/errors"
	libhdr "github.com/nabbar/httpcall/header"
	librqs "github.com/nabbar/httpcall/request"
	libgut "golang.org/x/net/http/httpguts"
)

func (o *cdc) ReadResponse(method string, fct FuncBodyDone) (*librqs.Response, liberr.Error) {
	for {
		rsp, err := o.readOne(method, fct)

		if err != nil {
			o.ok = false
			return nil, err
		}

		// informational responses never carry a body; keep reading,
		// except 101 which hands the connection over to the upgrader
		if rsp.Status >= 100 && rsp.Status < 200 && rsp.Status != 101 {
			continue
		}

		return rsp, nil
	}
}

func (o *cdc) readOne(method string, fct FuncBodyDone) (*librqs.Response, liberr.Error) {
	line, err := o.readLine()
	if err != nil {
		return nil, err
	}

	proto, status, reason, err := parseStatusLine(line)
	if err != nil {
		return nil, err
	}

	hdr, err := o.readHeader()
	if err != nil {
		return nil, err
	}

	var rsp = &librqs.Response{
		Status:     status,
		Reason:     reason,
		Proto:      proto,
		Header:     hdr,
		ReceivedAt: time.Now(),
	}

	if strings.EqualFold(hdr.Get("Connection"), "close") || proto == librqs.ProtocolHTTP10 {
		o.ok = false
	}

	if status >= 100 && status < 200 {
		return rsp, nil
	}

	body, err := o.body(method, status, hdr, fct)
	if err != nil {
		return nil, err
	}

	rsp.Body = body

	return rsp, nil
}

// body selects the framing of the response payload: none, chunked, fixed
// length, then read-until-close as last resort.
func (o *cdc) body(method string, status int, hdr libhdr.Header, fct FuncBodyDone) (io.ReadCloser, liberr.Error) {
	if method == "HEAD" || method == "CONNECT" || status == 204 || status == 304 {
		if fct != nil {
			fct(true, 0)
		}

		return &emptyBody{}, nil
	}

	if chunked(hdr) {
		return &bodyReader{o: o, r: &chunkReader{r: o.r}, f: fct}, nil
	}

	if v := hdr.Get("Content-Length"); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)

		if err != nil || n < 0 {
			return nil, ErrorContentLength.Errorf(v)
		}

		if n == 0 {
			if fct != nil {
				fct(true, 0)
			}

			return &emptyBody{}, nil
		}

		return &bodyReader{o: o, r: &lengthReader{r: o.r, n: n}, f: fct}, nil
	}

	// unknown length: the server signals the end by closing
	o.ok = false

	return &bodyReader{o: o, r: &closeReader{r: o.r}, f: fct}, nil
}

func chunked(hdr libhdr.Header) bool {
	for _, v := range hdr.Values("Transfer-Encoding") {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), "chunked") {
				return true
			}
		}
	}

	return false
}

// readLine reads one CRLF terminated line, excluding the terminator.
func (o *cdc) readLine() (string, liberr.Error) {
	var res []byte

	for {
		p, err := o.r.ReadSlice('\n')

		if len(p) > 0 {
			res = append(res, p...)
		}

		if err == nil {
			break
		}

		// line longer than the buffer: keep accumulating
		if errors.Is(err, bufio.ErrBufferFull) && len(res) < maxLineSize {
			continue
		}

		if timeoutError(err) {
			return "", ErrorReadTimeout.Error(err)
		}

		return "", ErrorResponseRead.Error(err)
	}

	if len(res) > maxLineSize {
		return "", ErrorHeaderTooLarge.Error(nil)
	}

	s := strings.TrimSuffix(string(res), "\n")

	return strings.TrimSuffix(s, "\r"), nil
}

func (o *cdc) readHeader() (libhdr.Header, liberr.Error) {
	var (
		hdr  = libhdr.New()
		size int
	)

	for {
		line, err := o.readLine()
		if err != nil {
			return nil, err
		}

		if line == "" {
			return hdr, nil
		}

		if line[0] == ' ' || line[0] == '\t' {
			// obs-fold is rejected, per the wire-level guarantees
			return nil, ErrorObsFold.Error(nil)
		}

		size += len(line)

		if size > maxHeaderSize {
			return nil, ErrorHeaderTooLarge.Error(nil)
		}

		idx := strings.IndexByte(line, ':')

		if idx <= 0 {
			return nil, ErrorHeaderParse.Errorf(line)
		}

		name := line[:idx]
		value := strings.Trim(line[idx+1:], " \t")

		if !libgut.ValidHeaderFieldName(name) {
			return nil, ErrorHeaderParse.Errorf(name)
		}

		if !libgut.ValidHeaderFieldValue(value) {
			return nil, ErrorHeaderParse.Errorf(name)
		}

		hdr.Add(name, value)
	}
}

func parseStatusLine(line string) (librqs.Protocol, int, string, liberr.Error) {
	var proto librqs.Protocol

	switch {
	case strings.HasPrefix(line, "HTTP/1.1 "):
		proto = librqs.ProtocolHTTP11
	case strings.HasPrefix(line, "HTTP/1.0 "):
		proto = librqs.ProtocolHTTP10
	default:
		return 0, 0, "", ErrorStatusLine.Errorf(line)
	}

	rest := line[len("HTTP/1.x "):]

	if len(rest) < 3 {
		return 0, 0, "", ErrorStatusLine.Errorf(line)
	}

	status, err := strconv.Atoi(rest[:3])

	if err != nil || status < 100 {
		return 0, 0, "", ErrorStatusLine.Errorf(line)
	}

	var reason string

	if len(rest) > 4 {
		reason = rest[4:]
	}

	return proto, status, reason, nil
}

// timeoutError reports whether err carries an I/O deadline expiry.
func timeoutError(err error) bool {
	var ne interface{ Timeout() bool }

	return errors.As(err, &ne) && ne.Timeout()
}

// Healthy reports whether the idle socket still looks open. It performs a
// 1ms deadline read on the raw socket so a pending remote close is observed;
// any readable byte on an idle connection is itself a violation.
func (o *cdc) Healthy() bool {
	if !o.ok {
		return false
	}

	if o.r.Buffered() > 0 {
		return false
	}

	if err := o.c.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return false
	}

	defer func() {
		_ = o.c.SetReadDeadline(time.Time{})
	}()

	var p [1]byte

	if _, err := o.c.Read(p[:]); err == nil {
		return false
	} else if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		return true
	}

	return false
}
