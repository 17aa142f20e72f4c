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
	"net/url"
	"strings"

	liberr "github.com/nabbar/golib/errors"
	libcon "github.com/nabbar/httpcall/conn"
	libht1 "github.com/nabbar/httpcall/http1"
	libht2 "github.com/nabbar/httpcall/http2"
	librqs "github.com/nabbar/httpcall/request"
)

// retryInterceptor recovers from transport failures and follows the
// responses that demand a new request: redirects, auth challenges, 408, 421
// and immediate 503. The loop is bounded by maxFollowUp.
type retryInterceptor struct {
	e *eng
}

func (o *retryInterceptor) Intercept(c Chain) (*librqs.Response, liberr.Error) {
	var (
		req   = c.Request()
		count int
		prior *librqs.Response
	)

	for {
		if c.Call().IsCanceled() {
			return nil, ErrorCanceled.Error(nil)
		}

		rsp, err := c.Proceed(req)

		if err != nil {
			if !o.recoverable(err, req) {
				return nil, err
			}

			count++

			if count > maxFollowUp {
				return nil, ErrorTooManyFollowUp.Errorf(maxFollowUp)
			}

			continue
		}

		if prior != nil {
			rsp.Prior = prior.Strip()
		}

		nxt, err := o.followUp(c, req, rsp)

		if err != nil {
			_ = rsp.Close()
			return nil, err
		}

		if nxt == nil {
			return rsp, nil
		}

		if b := nxt.Body(); b != nil && b.OneShot() {
			// the body stream cannot be replayed on a new attempt
			return rsp, nil
		}

		count++

		if count > maxFollowUp {
			_ = rsp.Close()
			return nil, ErrorTooManyFollowUp.Errorf(maxFollowUp)
		}

		_ = rsp.Close()
		prior = rsp
		req = nxt
	}
}

// recoverable decides whether a transport failure may be retried on a new
// connection or route.
func (o *retryInterceptor) recoverable(err liberr.Error, req librqs.Request) bool {
	if b := req.Body(); b != nil && b.OneShot() {
		return false
	}

	// the connection refused the exchange before running it
	if liberr.Has(err, libcon.ErrorConnShutdown) || liberr.Has(err, libht2.ErrorConnShutdown) {
		return true
	}

	// REFUSED_STREAM guarantees no side effects on the peer
	if liberr.Has(err, libht2.ErrorStreamResetRefused) {
		return true
	}

	// a remote CANCEL is replayed only for idempotent requests
	if liberr.Has(err, libht2.ErrorStreamResetCancel) {
		return idempotent(req.Method())
	}

	// a stale pooled connection dies on first use; replay on a fresh one
	if liberr.Has(err, libht1.ErrorRequestWrite) || liberr.Has(err, libht1.ErrorResponseRead) {
		return idempotent(req.Method())
	}

	return false
}

// followUp builds the next request demanded by rsp, or nil to surface rsp.
func (o *retryInterceptor) followUp(c Chain, req librqs.Request, rsp *librqs.Response) (librqs.Request, liberr.Error) {
	switch rsp.Status {
	case 401:
		return o.authenticate(c, nil, rsp)

	case 407:
		return o.authenticate(c, c.Call().(*cll), rsp)

	case 408:
		if rsp.Prior != nil && rsp.Prior.Status == 408 {
			// two timeouts in a row: give up
			return nil, nil
		}

		if retryAfter(rsp) > 0 {
			return nil, nil
		}

		return req, nil

	case 421:
		// misdirected on a coalesced connection: force a fresh one
		if cn := c.Connection(); cn != nil {
			cn.NoNewExchanges()
		}

		if rsp.Prior != nil && rsp.Prior.Status == 421 {
			return nil, nil
		}

		if b := req.Body(); b != nil && b.OneShot() {
			return nil, nil
		}

		return req, nil

	case 503:
		if rsp.Prior != nil && rsp.Prior.Status == 503 {
			return nil, nil
		}

		if retryAfter(rsp) == 0 && rsp.Header.Has("Retry-After") {
			return req, nil
		}

		return nil, nil
	}

	if rsp.IsRedirect() {
		return o.redirect(req, rsp)
	}

	return nil, nil
}

func (o *retryInterceptor) authenticate(c Chain, call *cll, rsp *librqs.Response) (librqs.Request, liberr.Error) {
	adr := o.e.address(rsp.Request.Url())

	if call != nil {
		return adr.Authenticator().Authenticate(call.proxy(), rsp)
	}

	return adr.Authenticator().Authenticate(nil, rsp)
}

// redirect applies the 3xx follow rules: scheme policy, method and body
// preservation on 307/308, credential stripping across origins.
func (o *retryInterceptor) redirect(req librqs.Request, rsp *librqs.Response) (librqs.Request, liberr.Error) {
	if o.e.f.DisableRedirects {
		return nil, nil
	}

	loc := rsp.Header.Get("Location")

	if loc == "" {
		return nil, nil
	}

	u, err := req.Url().Parse(loc)

	if err != nil {
		return nil, nil
	}

	switch strings.ToLower(u.Scheme) {
	case "http":
		// downgrading a secure call is refused
		if req.Url().Scheme == "https" {
			return nil, nil
		}
	case "https":
	default:
		return nil, nil
	}

	var (
		mtd  = req.Method()
		body = req.Body()
	)

	switch rsp.Status {
	case 307, 308:
		// method and body preserved; a consumed one-shot body cannot follow
		if body != nil && body.OneShot() {
			return nil, nil
		}
	default:
		// historical redirects degrade to GET, dropping the body
		if mtd != "GET" && mtd != "HEAD" {
			mtd = "GET"
			body = nil
		}
	}

	b := req.Builder()
	b.SetUrl(u)
	b.SetMethod(mtd, body)

	if body == nil {
		b.DelHeader("Content-Length")
		b.DelHeader("Content-Type")
		b.DelHeader("Transfer-Encoding")
	}

	// the new origin must not see the previous one's credentials
	if !sameOrigin(req.Url(), u) {
		b.DelHeader("Authorization")
		b.DelHeader("Cookie")
	}

	b.DelHeader("Host")

	return b.Build()
}

func sameOrigin(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && a.Host == b.Host
}

func idempotent(method string) bool {
	switch method {
	case "GET", "HEAD", "PUT", "DELETE", "OPTIONS", "TRACE":
		return true
	}

	return false
}

// retryAfter returns the announced delay in seconds, -1 when absent or not
// numeric.
func retryAfter(rsp *librqs.Response) int {
	v := rsp.Header.Get("Retry-After")

	if v == "" {
		return -1
	}

	var n int

	for _, r := range v {
		if r < '0' || r > '9' {
			return -1
		}

		n = n*10 + int(r-'0')

		if n > 1<<30 {
			return n
		}
	}

	return n
}
