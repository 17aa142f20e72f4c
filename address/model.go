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
	"net"
	"net/url"
	"strconv"
	"sync"

	libtls "github.com/nabbar/golib/certificates"
	libaut "github.com/nabbar/httpcall/auth"
	librqs "github.com/nabbar/httpcall/request"
	libdns "github.com/nabbar/httpcall/resolver"
)

// Address is the connection-equivalence key: every field participates in
// equality, and only requests with an equal Address may share a connection.
type Address struct {
	host    string
	port    int
	dns     libdns.DNS
	tls     libtls.TLSConfig
	protos  []librqs.Protocol
	proxies ProxySelector
	authent libaut.Authenticator
}

func (o *Address) Host() string {
	return o.host
}

func (o *Address) Port() int {
	return o.port
}

// Secure returns true when the address targets a TLS endpoint.
func (o *Address) Secure() bool {
	return o.tls != nil
}

func (o *Address) Dns() libdns.DNS {
	return o.dns
}

func (o *Address) Tls() libtls.TLSConfig {
	return o.tls
}

func (o *Address) Protocols() []librqs.Protocol {
	return append(make([]librqs.Protocol, 0, len(o.protos)), o.protos...)
}

func (o *Address) Proxies() ProxySelector {
	return o.proxies
}

func (o *Address) Authenticator() libaut.Authenticator {
	return o.authent
}

// HostPort returns the canonical "host:port" of the origin.
func (o *Address) HostPort() string {
	return net.JoinHostPort(o.host, strconv.Itoa(o.port))
}

// Equal compares every field of the address. Collaborators compare by
// identity: two addresses built with distinct resolver or TLS instances are
// distinct pool keys even when targeting the same origin.
func (o *Address) Equal(other *Address) bool {
	if o == nil || other == nil {
		return o == other
	}

	if o.host != other.host || o.port != other.port {
		return false
	}

	if o.dns != other.dns || o.tls != other.tls {
		return false
	}

	if o.proxies != other.proxies || o.authent != other.authent {
		return false
	}

	if len(o.protos) != len(other.protos) {
		return false
	}

	for i := range o.protos {
		if o.protos[i] != other.protos[i] {
			return false
		}
	}

	return true
}

// Route is one concrete realization of an Address.
type Route struct {
	// Addr is the address this route realizes.
	Addr *Address

	// Proxy is the http proxy to traverse, nil for a direct connection.
	Proxy *url.URL

	// IP is the resolved peer address: the origin's for a direct route, the
	// proxy's otherwise.
	IP net.IP

	// Port is the TCP port matching IP.
	Port int
}

// SocketAddr returns the "ip:port" endpoint the socket must dial.
func (o Route) SocketAddr() string {
	return net.JoinHostPort(o.IP.String(), strconv.Itoa(o.Port))
}

// RequiresTunnel returns true when the route traverses a proxy towards a TLS
// origin, which requires a CONNECT tunnel before the handshake.
func (o Route) RequiresTunnel() bool {
	return o.Proxy != nil && o.Addr != nil && o.Addr.Secure()
}

func (o Route) key() string {
	var p string

	if o.Proxy != nil {
		p = o.Proxy.Host
	}

	return p + "|" + o.SocketAddr()
}

type prxDirect struct{}

func (o *prxDirect) Select(u *url.URL) []*url.URL {
	return []*url.URL{nil}
}

type prxSingle struct {
	u *url.URL
}

func (o *prxSingle) Select(u *url.URL) []*url.URL {
	return []*url.URL{o.u}
}

type failed struct {
	m sync.Mutex
	d map[string]bool
}

func (o *failed) Failed(r Route) {
	o.m.Lock()
	defer o.m.Unlock()

	o.d[r.key()] = true
}

func (o *failed) Connected(r Route) {
	o.m.Lock()
	defer o.m.Unlock()

	delete(o.d, r.key())
}

func (o *failed) ShouldPostpone(r Route) bool {
	o.m.Lock()
	defer o.m.Unlock()

	return o.d[r.key()]
}
