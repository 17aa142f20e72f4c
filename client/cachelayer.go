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
	"bytes"
	"io"
	"time"

	liberr "github.com/nabbar/golib/errors"
	libcch "github.com/nabbar/httpcall/cache"
	librqs "github.com/nabbar/httpcall/request"
)

// cacheInterceptor serves fresh entries without the network, revalidates
// stale ones conditionally, merges 304 answers with the stored body, and
// feeds cacheable responses back into the storage.
type cacheInterceptor struct {
	e *eng
	s libcch.Storage
}

func (o *cacheInterceptor) Intercept(c Chain) (*librqs.Response, liberr.Error) {
	var req = c.Request()

	if o.s == nil {
		return c.Proceed(req)
	}

	var (
		cached = o.s.Get(req)
		st     = libcch.Evaluate(time.Now(), req, cached)
	)

	if st.NetworkRequest == nil && st.CacheResponse == nil {
		// only-if-cached missed: answer without the network
		if cached != nil {
			_ = cached.Close()
		}

		return &librqs.Response{
			Status:     504,
			Reason:     "Unsatisfiable Request (only-if-cached)",
			Proto:      librqs.ProtocolHTTP11,
			Header:     req.Header(),
			Request:    req,
			ReceivedAt: time.Now(),
		}, nil
	}

	if st.NetworkRequest == nil {
		rsp := st.CacheResponse
		rsp.Cached = rsp.Strip()
		return rsp, nil
	}

	rsp, err := c.Proceed(st.NetworkRequest)

	if err != nil {
		if st.CacheResponse != nil {
			_ = st.CacheResponse.Close()
		}

		return nil, err
	}

	if st.CacheResponse != nil && rsp.Status == 304 {
		merged := &librqs.Response{
			Status:     st.CacheResponse.Status,
			Reason:     st.CacheResponse.Reason,
			Proto:      rsp.Proto,
			Header:     libcch.Combine(st.CacheResponse, rsp),
			Body:       st.CacheResponse.Body,
			TLS:        rsp.TLS,
			Request:    req,
			Network:    rsp.Strip(),
			Cached:     st.CacheResponse.Strip(),
			SentAt:     rsp.SentAt,
			ReceivedAt: rsp.ReceivedAt,
		}

		_ = rsp.Close()

		o.s.Update(st.CacheResponse, rsp)

		return merged, nil
	}

	if st.CacheResponse != nil {
		_ = st.CacheResponse.Close()
		rsp.Cached = st.CacheResponse.Strip()
	}

	switch req.Method() {
	case "POST", "PUT", "PATCH", "DELETE":
		// a non-error write response invalidates the stored entry
		if rsp.Status < 500 {
			o.s.Remove(req)
		}

		return rsp, nil
	}

	if libcch.Cacheable(req, rsp) && rsp.Body != nil {
		// snapshot now: upper layers mutate the live header list before the
		// body reaches EOF
		snap := *rsp
		snap.Header = rsp.Header.Clone()
		snap.Network = nil
		snap.Cached = nil
		snap.Prior = nil

		rsp.Body = &cacheTee{
			s: o.s,
			r: rsp.Body,
			t: &snap,
		}
	}

	return rsp, nil
}

// cacheTee mirrors the body bytes while the consumer reads them, and stores
// the complete response once the stream reaches EOF.
type cacheTee struct {
	s libcch.Storage
	r io.ReadCloser
	t *librqs.Response
	b bytes.Buffer
	d bool
}

func (o *cacheTee) Read(p []byte) (int, error) {
	n, err := o.r.Read(p)

	if n > 0 {
		o.b.Write(p[:n])
	}

	if err == io.EOF && !o.d {
		o.d = true

		cp := *o.t
		cp.Body = io.NopCloser(bytes.NewReader(o.b.Bytes()))

		o.s.Put(&cp)
	}

	return n, err
}

func (o *cacheTee) Close() error {
	return o.r.Close()
}
