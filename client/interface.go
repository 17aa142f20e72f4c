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

// Package client implements the call engine: the layered interceptor chain
// (application, retry and follow-up, bridge, cache, connect, network), the
// dispatcher running asynchronous calls under global and per-host caps, and
// the call cancellation and timeout contract.
package client

import (
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	libadr "github.com/nabbar/httpcall/address"
	libaut "github.com/nabbar/httpcall/auth"
	libcch "github.com/nabbar/httpcall/cache"
	libcon "github.com/nabbar/httpcall/conn"
	libckj "github.com/nabbar/httpcall/cookie"
	libevt "github.com/nabbar/httpcall/event"
	librqs "github.com/nabbar/httpcall/request"
	libdns "github.com/nabbar/httpcall/resolver"
)

// Chain is the handle given to an interceptor: the current request, the
// bound connection if any, and Proceed to hand the request to the next layer.
type Chain interface {
	// Request returns the request at this point of the chain.
	Request() librqs.Request

	// Connection returns the connection bound by the connect layer, nil
	// before it.
	Connection() libcon.Connection

	// Call returns the running call.
	Call() Call

	// Proceed runs the remaining interceptors on req. Once an exchange is
	// bound, an interceptor invocation may call Proceed at most once.
	Proceed(req librqs.Request) (*librqs.Response, liberr.Error)
}

// Interceptor observes, rewrites, short-circuits or retries calls.
type Interceptor interface {
	Intercept(chain Chain) (*librqs.Response, liberr.Error)
}

// FuncIntercept adapts a function to the Interceptor interface.
type FuncIntercept func(chain Chain) (*librqs.Response, liberr.Error)

func (f FuncIntercept) Intercept(chain Chain) (*librqs.Response, liberr.Error) {
	return f(chain)
}

// FuncCallback receives the result of an asynchronous call.
type FuncCallback func(call Call, rsp *librqs.Response, err liberr.Error)

// Call is one logical request/response, retries and follow-ups included.
type Call interface {
	// Request returns the originating request.
	Request() librqs.Request

	// Execute runs the call on the caller goroutine.
	Execute() (*librqs.Response, liberr.Error)

	// Enqueue schedules the call on the dispatcher. fct runs on the worker
	// goroutine once the call completes or fails.
	Enqueue(fct FuncCallback)

	// Cancel aborts the call. Monotonic: once set it stays set, every
	// suspension point observes it, pending I/O is torn down.
	Cancel()

	// IsCanceled reports whether Cancel was invoked.
	IsCanceled() bool
}

// HttpCall is one engine instance: its pool, dispatcher, task runner and
// collaborator set. Collaborators are configured before the first call.
type HttpCall interface {
	// NewCall prepares a call for req.
	NewCall(req librqs.Request) Call

	// Do is shorthand for NewCall(req).Execute().
	Do(req librqs.Request) (*librqs.Response, liberr.Error)

	// SetDns replaces the DNS collaborator.
	SetDns(d libdns.DNS)

	// SetCookieJar replaces the cookie jar collaborator.
	SetCookieJar(j libckj.Jar)

	// SetAuthenticator replaces the authenticator collaborator.
	SetAuthenticator(a libaut.Authenticator)

	// SetCacheStorage installs the response cache. Nil disables the layer.
	SetCacheStorage(s libcch.Storage)

	// SetProxySelector replaces the proxy selector collaborator.
	SetProxySelector(p libadr.ProxySelector)

	// SetListener installs the per-call event listener factory.
	SetListener(f libevt.FuncListener)

	// Use appends an application interceptor, run once per logical call.
	Use(i Interceptor)

	// UseNetwork appends a network interceptor, observing each physical
	// round-trip.
	UseNetwork(i Interceptor)

	// Close evicts pooled connections and stops background work. Running
	// calls fail.
	Close() error
}

// New assembles an engine from cfg. The zero Config is usable.
func New(cfg Config, log liblog.FuncLog) (HttpCall, liberr.Error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return newEngine(cfg, log)
}
