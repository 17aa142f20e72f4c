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

// Package address models the connection-equivalence key of the stack and the
// concrete routes realizing it.
//
// Two requests with an equal Address may share a pooled connection. A Route is
// one (proxy, peer IP, TLS) realization of an Address; the route selector
// produces candidate routes proxy-major then IP-minor, postponing routes that
// recently failed so healthy candidates are attempted first.
package address

import (
	"net/url"
	"sync"

	libtls "github.com/nabbar/golib/certificates"
	libaut "github.com/nabbar/httpcall/auth"
	librqs "github.com/nabbar/httpcall/request"
	libdns "github.com/nabbar/httpcall/resolver"
)

// ProxySelector returns the proxies to attempt for a URL, in preference order.
// A nil entry means a direct connection. Implementations must be safe for
// concurrent use.
type ProxySelector interface {
	Select(u *url.URL) []*url.URL
}

// Direct returns a ProxySelector that always connects directly.
func Direct() ProxySelector {
	return &prxDirect{}
}

// SingleProxy returns a ProxySelector that always returns the given proxy.
// Only http proxies are supported; https targets are tunneled with CONNECT.
func SingleProxy(u *url.URL) ProxySelector {
	return &prxSingle{
		u: u,
	}
}

// FailedRoutes remembers routes whose connect attempt failed, so the selector
// can try them last. Entries are shared between calls of one engine instance.
type FailedRoutes interface {
	// Failed records a connect failure for the route.
	Failed(r Route)

	// Connected clears the failure mark after a successful connect.
	Connected(r Route)

	// ShouldPostpone returns true when the route failed recently.
	ShouldPostpone(r Route) bool
}

// NewFailedRoutes returns an empty, monitor-protected failed route set.
func NewFailedRoutes() FailedRoutes {
	return &failed{
		m: sync.Mutex{},
		d: make(map[string]bool),
	}
}

// New assembles an Address.
// tls must be nil for cleartext targets. A nil dns falls back to the system
// resolver, a nil proxies to Direct, a nil authenticator to the nop one.
func New(host string, port int, dns libdns.DNS, tls libtls.TLSConfig, protos []librqs.Protocol, proxies ProxySelector, authent libaut.Authenticator) *Address {
	if dns == nil {
		dns = libdns.System()
	}

	if proxies == nil {
		proxies = Direct()
	}

	if authent == nil {
		authent = libaut.Nop()
	}

	if len(protos) < 1 {
		if tls != nil {
			protos = []librqs.Protocol{librqs.ProtocolH2, librqs.ProtocolHTTP11}
		} else {
			protos = []librqs.Protocol{librqs.ProtocolHTTP11}
		}
	}

	return &Address{
		host:    host,
		port:    port,
		dns:     dns,
		tls:     tls,
		protos:  append(make([]librqs.Protocol, 0, len(protos)), protos...),
		proxies: proxies,
		authent: authent,
	}
}
