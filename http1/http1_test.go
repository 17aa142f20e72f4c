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

package http1_test

import (
	"io"
	"net"
	"strings"
	"testing"

	liberr "github.com/nabbar/golib/errors"
	libhdr "github.com/nabbar/httpcall/header"
	libht1 "github.com/nabbar/httpcall/http1"
	librqs "github.com/nabbar/httpcall/request"
)

// serve writes raw as the server side of the pipe, then reads and discards
// whatever the client sends, keeping the pipe unblocked.
func serve(t *testing.T, raw string) (libht1.Codec, func()) {
	t.Helper()

	cli, srv := net.Pipe()

	go func() {
		_, _ = io.Copy(io.Discard, srv)
	}()

	go func() {
		_, _ = srv.Write([]byte(raw))
	}()

	return libht1.New(cli, 0, 0), func() {
		_ = cli.Close()
		_ = srv.Close()
	}
}

func mkReq(t *testing.T, mtd, uri string, body librqs.Body) librqs.Request {
	t.Helper()

	b := librqs.New()
	b.SetEndpoint(uri)
	b.SetMethod(mtd, body)

	req, err := b.Build()

	if err != nil {
		t.Fatalf("building request: %v", err)
	}

	return req
}

func TestContentLengthBody(t *testing.T) {
	cdc, cnl := serve(t, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nX-One: a\r\n\r\nhello")
	defer cnl()

	rsp, err := cdc.ReadResponse("GET", nil)

	if err != nil {
		t.Fatalf("reading response: %v", err)
	}

	if rsp.Status != 200 || rsp.Reason != "OK" || rsp.Proto != librqs.ProtocolHTTP11 {
		t.Fatalf("status line mismatch: %+v", rsp)
	}

	p, rerr := io.ReadAll(rsp.Body)

	if rerr != nil || string(p) != "hello" {
		t.Fatalf("body mismatch: %q %v", p, rerr)
	}

	if !cdc.Reusable() {
		t.Fatal("fully consumed exchange must stay reusable")
	}
}

func TestChunkedBody(t *testing.T) {
	cdc, cnl := serve(t, "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n"+
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n")
	defer cnl()

	rsp, err := cdc.ReadResponse("GET", nil)

	if err != nil {
		t.Fatalf("reading response: %v", err)
	}

	p, rerr := io.ReadAll(rsp.Body)

	if rerr != nil || string(p) != "hello world" {
		t.Fatalf("chunked body mismatch: %q %v", p, rerr)
	}

	if !cdc.Reusable() {
		t.Fatal("chunked exchange must stay reusable")
	}
}

func TestChunkedTrailerDiscarded(t *testing.T) {
	cdc, cnl := serve(t, "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n"+
		"3\r\nabc\r\n0\r\nExpires: never\r\n\r\n")
	defer cnl()

	rsp, err := cdc.ReadResponse("GET", nil)

	if err != nil {
		t.Fatalf("reading response: %v", err)
	}

	p, rerr := io.ReadAll(rsp.Body)

	if rerr != nil || string(p) != "abc" {
		t.Fatalf("body mismatch: %q %v", p, rerr)
	}
}

func TestHeadHasNoBody(t *testing.T) {
	cdc, cnl := serve(t, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\n")
	defer cnl()

	rsp, err := cdc.ReadResponse("HEAD", nil)

	if err != nil {
		t.Fatalf("reading response: %v", err)
	}

	p, rerr := io.ReadAll(rsp.Body)

	if rerr != nil || len(p) != 0 {
		t.Fatalf("head response must have no payload: %q", p)
	}
}

func TestObsFoldRejected(t *testing.T) {
	cdc, cnl := serve(t, "HTTP/1.1 200 OK\r\nX-One: a\r\n b\r\n\r\n")
	defer cnl()

	_, err := cdc.ReadResponse("GET", nil)

	if err == nil {
		t.Fatal("obs-fold must be rejected")
	}

	if !liberr.Has(err, libht1.ErrorObsFold) {
		t.Fatalf("expected obs-fold error, got %v", err)
	}
}

func TestInvalidStatusLine(t *testing.T) {
	cdc, cnl := serve(t, "HTP/9.9 banana\r\n\r\n")
	defer cnl()

	if _, err := cdc.ReadResponse("GET", nil); err == nil {
		t.Fatal("malformed status line must be rejected")
	}
}

func TestConnectionCloseMarksNotReusable(t *testing.T) {
	cdc, cnl := serve(t, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\nConnection: close\r\n\r\nok")
	defer cnl()

	rsp, err := cdc.ReadResponse("GET", nil)

	if err != nil {
		t.Fatalf("reading response: %v", err)
	}

	_, _ = io.ReadAll(rsp.Body)

	if cdc.Reusable() {
		t.Fatal("connection: close must forbid reuse")
	}
}

func TestEarlyBodyCloseMarksNotReusable(t *testing.T) {
	cdc, cnl := serve(t, "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\n0123456789")
	defer cnl()

	rsp, err := cdc.ReadResponse("GET", nil)

	if err != nil {
		t.Fatalf("reading response: %v", err)
	}

	_ = rsp.Body.Close()

	if cdc.Reusable() {
		t.Fatal("discarded payload must forbid reuse")
	}
}

func TestInformationalSkipped(t *testing.T) {
	cdc, cnl := serve(t, "HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 204 No Content\r\n\r\n")
	defer cnl()

	rsp, err := cdc.ReadResponse("GET", nil)

	if err != nil {
		t.Fatalf("reading response: %v", err)
	}

	if rsp.Status != 204 {
		t.Fatalf("1xx must be skipped, got %d", rsp.Status)
	}
}

func TestWriteRequestContentLength(t *testing.T) {
	cli, srv := net.Pipe()

	defer func() {
		_ = cli.Close()
		_ = srv.Close()
	}()

	var (
		got  = make(chan string, 1)
		cdc  = libht1.New(cli, 0, 0)
		body = librqs.NewBodyString("text/plain", "hi!")
	)

	go func() {
		buf := make([]byte, 4096)
		n, _ := srv.Read(buf)

		for !strings.Contains(string(buf[:n]), "hi!") {
			m, err := srv.Read(buf[n:])

			if err != nil || m == 0 {
				break
			}

			n += m
		}

		got <- string(buf[:n])
	}()

	req := mkReq(t, "POST", "http://a.test/echo", body)

	hdr := libhdr.New()
	hdr.Set("Host", "a.test")
	hdr.Set("Content-Length", "3")

	n, err := cdc.WriteRequest("/echo", req, hdr)

	if err != nil {
		t.Fatalf("writing request: %v", err)
	}

	if n != 3 {
		t.Fatalf("expected 3 body bytes written, got %d", n)
	}

	raw := <-got

	if !strings.HasPrefix(raw, "POST /echo HTTP/1.1\r\n") {
		t.Fatalf("bad request line: %q", raw)
	}

	if !strings.Contains(raw, "Host: a.test\r\n") || !strings.HasSuffix(raw, "\r\n\r\nhi!") {
		t.Fatalf("bad request framing: %q", raw)
	}
}

func TestWriteRequestChunked(t *testing.T) {
	cli, srv := net.Pipe()

	defer func() {
		_ = cli.Close()
		_ = srv.Close()
	}()

	var (
		got = make(chan string, 1)
		cdc = libht1.New(cli, 0, 0)
	)

	go func() {
		buf := make([]byte, 4096)
		var n int

		for !strings.Contains(string(buf[:n]), "0\r\n\r\n") {
			m, err := srv.Read(buf[n:])

			if err != nil || m == 0 {
				break
			}

			n += m
		}

		got <- string(buf[:n])
	}()

	body := librqs.NewBody("application/octet-stream", -1, func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("stream")), nil
	})

	req := mkReq(t, "POST", "http://a.test/up", body)

	hdr := libhdr.New()
	hdr.Set("Host", "a.test")
	hdr.Set("Transfer-Encoding", "chunked")

	if _, err := cdc.WriteRequest("/up", req, hdr); err != nil {
		t.Fatalf("writing request: %v", err)
	}

	raw := <-got

	if !strings.Contains(raw, "6\r\nstream\r\n0\r\n\r\n") {
		t.Fatalf("bad chunked framing: %q", raw)
	}
}
