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

package conn

import (
	"net"
	"net/url"
	"testing"

	libadr "github.com/nabbar/httpcall/address"
	librqs "github.com/nabbar/httpcall/request"
)

func TestProxyEqual(t *testing.T) {
	a, _ := url.Parse("http://proxy.test:3128")
	b, _ := url.Parse("http://proxy.test:3128/ignored")
	c, _ := url.Parse("http://other.test:3128")

	if !proxyEqual(nil, nil) {
		t.Fatal("two direct routes are equal")
	}

	if proxyEqual(a, nil) || proxyEqual(nil, a) {
		t.Fatal("direct and proxied routes differ")
	}

	if !proxyEqual(a, b) {
		t.Fatal("same proxy endpoint must match")
	}

	if proxyEqual(a, c) {
		t.Fatal("different proxy hosts must differ")
	}
}

func TestTryAcquireSerialLimit(t *testing.T) {
	var (
		adr = libadr.New("a.test", 80, nil, nil, nil, nil, nil)
		rt  = libadr.Route{Addr: adr, IP: net.IPv4(127, 0, 0, 1), Port: 80}
		c   = newConn(rt, nil, nil, librqs.ProtocolHTTP11, nil, nil, nil)
	)

	if !c.TryAcquire(adr, nil) {
		t.Fatal("fresh connection must accept its first exchange")
	}

	if c.TryAcquire(adr, nil) {
		t.Fatal("a serialized connection holds at most one exchange")
	}

	c.release(false)

	if !c.TryAcquire(adr, nil) {
		t.Fatal("released connection must accept a new exchange")
	}
}

func TestTryAcquireRespectsNoNewExchanges(t *testing.T) {
	var (
		adr = libadr.New("a.test", 80, nil, nil, nil, nil, nil)
		rt  = libadr.Route{Addr: adr, IP: net.IPv4(127, 0, 0, 1), Port: 80}
		c   = newConn(rt, nil, nil, librqs.ProtocolHTTP11, nil, nil, nil)
	)

	c.NoNewExchanges()

	if c.TryAcquire(adr, nil) {
		t.Fatal("noNewExchanges must refuse further exchanges")
	}
}

func TestTryAcquireAddressMismatch(t *testing.T) {
	var (
		adr   = libadr.New("a.test", 80, nil, nil, nil, nil, nil)
		other = libadr.New("b.test", 80, nil, nil, nil, nil, nil)
		rt    = libadr.Route{Addr: adr, IP: net.IPv4(127, 0, 0, 1), Port: 80}
		c     = newConn(rt, nil, nil, librqs.ProtocolHTTP11, nil, nil, nil)
	)

	if c.TryAcquire(other, nil) {
		t.Fatal("a cleartext serialized connection never coalesces")
	}
}

func TestTryAcquireRouteMatch(t *testing.T) {
	var (
		adr = libadr.New("a.test", 80, nil, nil, nil, nil, nil)
		rt  = libadr.Route{Addr: adr, IP: net.IPv4(127, 0, 0, 1), Port: 80}
		c   = newConn(rt, nil, nil, librqs.ProtocolHTTP11, nil, nil, nil)
	)

	bad := libadr.Route{Addr: adr, IP: net.IPv4(127, 0, 0, 2), Port: 80}

	if c.TryAcquire(adr, &bad) {
		t.Fatal("route-constrained acquire must match the peer ip")
	}

	good := libadr.Route{Addr: adr, IP: net.IPv4(127, 0, 0, 1), Port: 80}

	if !c.TryAcquire(adr, &good) {
		t.Fatal("matching route must be accepted")
	}
}

func TestCloseIdempotent(t *testing.T) {
	var (
		adr = libadr.New("a.test", 80, nil, nil, nil, nil, nil)
		rt  = libadr.Route{Addr: adr, IP: net.IPv4(127, 0, 0, 1), Port: 80}
		c   = newConn(rt, nil, nil, librqs.ProtocolHTTP11, nil, nil, nil)
	)

	if err := c.Close(); err != nil {
		t.Fatalf("closing without socket: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("second close must be a no-op: %v", err)
	}

	if c.TryAcquire(adr, nil) {
		t.Fatal("closed connection must refuse exchanges")
	}
}
