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

package address

import (
	"context"
	"net"
	"net/url"
	"strconv"

	liberr "github.com/nabbar/golib/errors"
)

// FuncDnsEvent observes one DNS resolution done while planning routes.
type FuncDnsEvent func(host string, ips []net.IP, err error)

// Selector yields the candidate routes of one address, proxy-major then
// IP-minor. Routes marked failed in the shared db are postponed after all
// fresh candidates; routes in skip are never yielded (already failed within
// the current call).
type Selector interface {
	// HasNext returns true while at least one candidate remains.
	HasNext() bool

	// Next resolves and returns the next candidate route.
	Next(ctx context.Context) (Route, liberr.Error)
}

// NewSelector plans the routes of adr. The evt callback may be nil.
func NewSelector(adr *Address, db FailedRoutes, skip []Route, evt FuncDnsEvent) Selector {
	var (
		prx []*url.URL
		skp = make(map[string]bool, len(skip))
		u   = &url.URL{Scheme: "http", Host: adr.HostPort()}
	)

	if adr.Secure() {
		u.Scheme = "https"
	}

	prx = adr.Proxies().Select(u)

	if len(prx) < 1 {
		prx = []*url.URL{nil}
	}

	for _, r := range skip {
		skp[r.key()] = true
	}

	return &sel{
		a: adr,
		p: prx,
		d: db,
		s: skp,
		e: evt,
	}
}

type sel struct {
	a *Address
	p []*url.URL // proxies still to resolve
	d FailedRoutes
	s map[string]bool
	e FuncDnsEvent

	r []Route // fresh routes of the current proxy batch
	z []Route // postponed routes, tried after everything else
}

func (o *sel) HasNext() bool {
	return len(o.r) > 0 || len(o.p) > 0 || len(o.z) > 0
}

func (o *sel) Next(ctx context.Context) (Route, liberr.Error) {
	for {
		if len(o.r) > 0 {
			r := o.r[0]
			o.r = o.r[1:]
			return r, nil
		}

		if len(o.p) > 0 {
			p := o.p[0]
			o.p = o.p[1:]

			if err := o.resolve(ctx, p); err != nil {
				return Route{}, err
			}

			continue
		}

		if len(o.z) > 0 {
			r := o.z[0]
			o.z = o.z[1:]
			return r, nil
		}

		return Route{}, ErrorExhausted.Errorf(o.a.HostPort())
	}
}

// resolve produces the route batch of one proxy. Direct routes resolve the
// origin host; proxied routes resolve the proxy host and keep the origin name
// for the proxy to resolve.
func (o *sel) resolve(ctx context.Context, proxy *url.URL) liberr.Error {
	var (
		host = o.a.Host()
		port = o.a.Port()
	)

	if proxy != nil {
		host = proxy.Hostname()

		if p := proxy.Port(); p != "" {
			if i, err := strconv.Atoi(p); err == nil {
				port = i
			}
		} else {
			port = 80
		}
	}

	if o.e != nil {
		o.e(host, nil, nil)
	}

	ips, err := o.a.Dns().Lookup(ctx, host)

	if o.e != nil {
		o.e(host, ips, err)
	}

	if err != nil {
		return err
	}

	for _, ip := range ips {
		r := Route{
			Addr:  o.a,
			Proxy: proxy,
			IP:    ip,
			Port:  port,
		}

		if o.s[r.key()] {
			continue
		}

		if o.d != nil && o.d.ShouldPostpone(r) {
			o.z = append(o.z, r)
		} else {
			o.r = append(o.r, r)
		}
	}

	return nil
}
