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
	"context"
	"net/url"
	"strconv"
	"sync"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	libadr "github.com/nabbar/httpcall/address"
	libaut "github.com/nabbar/httpcall/auth"
	libcch "github.com/nabbar/httpcall/cache"
	libcon "github.com/nabbar/httpcall/conn"
	libckj "github.com/nabbar/httpcall/cookie"
	libevt "github.com/nabbar/httpcall/event"
	libpol "github.com/nabbar/httpcall/pool"
	librqs "github.com/nabbar/httpcall/request"
	libdns "github.com/nabbar/httpcall/resolver"
	libtsk "github.com/nabbar/httpcall/task"

	libtls "github.com/nabbar/golib/certificates"
)

type eng struct {
	f Config
	l liblog.FuncLog

	t libtsk.Runner
	p libpol.Pool
	c libcon.Coordinator
	d *dsp

	x  context.Context
	xc context.CancelFunc

	m   sync.Mutex
	tls libtls.TLSConfig
	dns libdns.DNS
	jar libckj.Jar
	aut libaut.Authenticator
	sto libcch.Storage
	prx libadr.ProxySelector
	evt libevt.FuncListener
	app []Interceptor
	net []Interceptor
}

func newEngine(cfg Config, log liblog.FuncLog) (*eng, liberr.Error) {
	var (
		run = libtsk.New()
		pol = libpol.New(cfg.Pool, run, log)
	)

	o := &eng{
		f:   cfg,
		l:   log,
		t:   run,
		p:   pol,
		c:   libcon.New(cfg.Conn, pol, libadr.NewFailedRoutes(), run, log),
		dns: libdns.System(),
		jar: libckj.Nop(),
		aut: libaut.Nop(),
		prx: libadr.Direct(),
	}

	o.x, o.xc = context.WithCancel(context.Background())
	o.d = newDispatcher(o.x, cfg.maxRequests(), cfg.maxPerHost())

	if cfg.TLSConfig != nil {
		o.tls = cfg.TLSConfig.New()
	} else {
		o.tls = libtls.New()
	}

	return o, nil
}

// SetDns replaces the DNS collaborator. Configure before the first call.
func (o *eng) SetDns(d libdns.DNS) {
	if d == nil {
		return
	}

	o.m.Lock()
	defer o.m.Unlock()

	o.dns = d
}

// SetCookieJar replaces the cookie jar collaborator.
func (o *eng) SetCookieJar(j libckj.Jar) {
	if j == nil {
		return
	}

	o.m.Lock()
	defer o.m.Unlock()

	o.jar = j
}

// SetAuthenticator replaces the authenticator collaborator.
func (o *eng) SetAuthenticator(a libaut.Authenticator) {
	if a == nil {
		return
	}

	o.m.Lock()
	defer o.m.Unlock()

	o.aut = a
}

// SetCacheStorage installs the response cache. Nil disables the cache layer.
func (o *eng) SetCacheStorage(s libcch.Storage) {
	o.m.Lock()
	defer o.m.Unlock()

	o.sto = s
}

// SetProxySelector replaces the proxy selector collaborator.
func (o *eng) SetProxySelector(p libadr.ProxySelector) {
	if p == nil {
		return
	}

	o.m.Lock()
	defer o.m.Unlock()

	o.prx = p
}

// SetListener installs the per-call event listener factory.
func (o *eng) SetListener(f libevt.FuncListener) {
	o.m.Lock()
	defer o.m.Unlock()

	o.evt = f
}

// Use appends an application interceptor: it runs once per logical call.
func (o *eng) Use(i Interceptor) {
	if i == nil {
		return
	}

	o.m.Lock()
	defer o.m.Unlock()

	o.app = append(o.app, i)
}

// UseNetwork appends a network interceptor: it observes each physical
// round-trip and may not re-proceed.
func (o *eng) UseNetwork(i Interceptor) {
	if i == nil {
		return
	}

	o.m.Lock()
	defer o.m.Unlock()

	o.net = append(o.net, i)
}

func (o *eng) listener() libevt.Listener {
	o.m.Lock()
	f := o.evt
	o.m.Unlock()

	if f != nil {
		if l := f(); l != nil {
			return l
		}
	}

	return libevt.Nop()
}

// address derives the connection-equivalence key of a request URL: engine
// collaborators are shared instances so equal origins yield equal addresses.
func (o *eng) address(u *url.URL) *libadr.Address {
	o.m.Lock()
	defer o.m.Unlock()

	var (
		port int
		tls  libtls.TLSConfig
	)

	if p := u.Port(); p != "" {
		port, _ = strconv.Atoi(p)
	} else if u.Scheme == "https" {
		port = 443
	} else {
		port = 80
	}

	if u.Scheme == "https" {
		tls = o.tls
	}

	return libadr.New(u.Hostname(), port, o.dns, tls, nil, o.prx, o.aut)
}

func (o *eng) NewCall(req librqs.Request) Call {
	return &cll{
		e: o,
		q: req,
	}
}

func (o *eng) Do(req librqs.Request) (*librqs.Response, liberr.Error) {
	return o.NewCall(req).Execute()
}

func (o *eng) Close() error {
	o.xc()
	_ = o.c.Close()

	return o.t.Close()
}
