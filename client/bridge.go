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

package client

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	liberr "github.com/nabbar/golib/errors"
	librqs "github.com/nabbar/httpcall/request"
)

// bridgeInterceptor maps the user-level request to its wire form: host,
// keep-alive, accept-encoding, content framing and cookies in; transparent
// gzip decoding and cookie saving out.
type bridgeInterceptor struct {
	e *eng
}

func (o *bridgeInterceptor) Intercept(c Chain) (*librqs.Response, liberr.Error) {
	var (
		req = c.Request()
		u   = req.Url()
		hdr = req.Header()
		b   = req.Builder()
	)

	if !hdr.Has("Host") {
		b.SetHeader("Host", hostHeader(u))
	}

	if !hdr.Has("Connection") {
		b.SetHeader("Connection", "Keep-Alive")
	}

	if !hdr.Has("User-Agent") {
		b.SetHeader("User-Agent", o.e.f.userAgent())
	}

	var transparent bool

	if !o.e.f.DisableCompression && !hdr.Has("Accept-Encoding") && !hdr.Has("Range") {
		transparent = true
		b.SetHeader("Accept-Encoding", "gzip")
	}

	if body := req.Body(); body != nil {
		if ct := body.ContentType(); ct != "" && !hdr.Has("Content-Type") {
			b.SetHeader("Content-Type", ct)
		}

		if n := body.ContentLength(); n >= 0 {
			b.SetHeader("Content-Length", strconv.FormatInt(n, 10))
			b.DelHeader("Transfer-Encoding")
		} else {
			b.SetHeader("Transfer-Encoding", "chunked")
			b.DelHeader("Content-Length")
		}
	}

	o.e.m.Lock()
	jar := o.e.jar
	o.e.m.Unlock()

	if cookies := jar.LoadForRequest(u); len(cookies) > 0 {
		var s = make([]string, 0, len(cookies))

		for _, ck := range cookies {
			s = append(s, ck.Name+"="+ck.Value)
		}

		b.SetHeader("Cookie", strings.Join(s, "; "))
	}

	wire, err := b.Build()

	if err != nil {
		return nil, err
	}

	rsp, err := c.Proceed(wire)

	if err != nil {
		return nil, err
	}

	if sc := rsp.Header.Values("Set-Cookie"); len(sc) > 0 {
		h := make(http.Header, 1)

		for _, v := range sc {
			h.Add("Set-Cookie", v)
		}

		jar.SaveFromResponse(u, (&http.Response{Header: h}).Cookies())
	}

	rsp.Request = req

	if transparent && strings.EqualFold(rsp.Header.Get("Content-Encoding"), "gzip") && rsp.Body != nil {
		rsp.Header.Del("Content-Encoding")
		rsp.Header.Del("Content-Length")
		rsp.Body = &gunzipBody{r: rsp.Body}
	}

	return rsp, nil
}

func hostHeader(u *url.URL) string {
	var (
		host = u.Hostname()
		port = u.Port()
	)

	if port == "" {
		return host
	}

	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		return host
	}

	return host + ":" + port
}

// gunzipBody inflates the payload lazily: the gzip header is only read on
// the first Read, so reading the response headers never blocks on the body.
type gunzipBody struct {
	r io.ReadCloser
	z *gzip.Reader
	e error
}

func (o *gunzipBody) Read(p []byte) (int, error) {
	if o.e != nil {
		return 0, o.e
	}

	if o.z == nil {
		z, err := gzip.NewReader(o.r)

		if err != nil {
			o.e = err
			return 0, err
		}

		o.z = z
	}

	return o.z.Read(p)
}

func (o *gunzipBody) Close() error {
	if o.z != nil {
		_ = o.z.Close()
	}

	return o.r.Close()
}
