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
	"crypto/tls"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	libadr "github.com/nabbar/httpcall/address"
	libht1 "github.com/nabbar/httpcall/http1"
	libht2 "github.com/nabbar/httpcall/http2"
	libpol "github.com/nabbar/httpcall/pool"
	librqs "github.com/nabbar/httpcall/request"
)

var connId uint64

func proxyEqual(a, b *url.URL) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return a.Host == b.Host
}

type cnx struct {
	i uint64
	m sync.Mutex

	rt libadr.Route
	sk net.Conn
	ts *tls.ConnectionState
	pr librqs.Protocol

	h1 libht1.Codec
	h2 libht2.Conn

	alc int       // attached exchanges
	gen uint64    // allocation generation counter
	idl time.Time // instant the connection last became idle
	brn time.Time // creation instant
	nne bool      // no new exchanges
	cls bool

	pl libpol.Pool
}

func newConn(rt libadr.Route, sk net.Conn, ts *tls.ConnectionState, pr librqs.Protocol, h1 libht1.Codec, h2 libht2.Conn, pl libpol.Pool) *cnx {
	o := &cnx{
		i:   atomic.AddUint64(&connId, 1),
		rt:  rt,
		sk:  sk,
		ts:  ts,
		pr:  pr,
		h1:  h1,
		h2:  h2,
		brn: time.Now(),
		idl: time.Now(),
		pl:  pl,
	}

	if h2 != nil {
		h2.OnShutdown(o.NoNewExchanges)
	}

	return o
}

func (o *cnx) Id() uint64 {
	return o.i
}

func (o *cnx) Address() *libadr.Address {
	return o.rt.Addr
}

func (o *cnx) Route() libadr.Route {
	return o.rt
}

func (o *cnx) Protocol() librqs.Protocol {
	return o.pr
}

func (o *cnx) TryAcquire(a *libadr.Address, route *libadr.Route) bool {
	o.m.Lock()
	defer o.m.Unlock()

	if o.nne || o.cls {
		return false
	}

	if o.alc >= o.maxExchanges() {
		return false
	}

	if !o.rt.Addr.Equal(a) {
		if !o.coalesce(a) {
			return false
		}
	}

	if route != nil {
		if !proxyEqual(o.rt.Proxy, route.Proxy) || !o.rt.IP.Equal(route.IP) || o.rt.Port != route.Port {
			return false
		}
	}

	o.alc++
	o.gen++

	return true
}

// coalesce allows a multiplexed connection to carry another hostname when the
// peer certificate covers it: same port, direct routes only.
func (o *cnx) coalesce(a *libadr.Address) bool {
	if !o.pr.Multiplexed() || !a.Secure() {
		return false
	}

	if o.rt.Proxy != nil || o.rt.Addr.Port() != a.Port() {
		return false
	}

	if o.ts == nil || len(o.ts.PeerCertificates) < 1 {
		return false
	}

	return o.ts.PeerCertificates[0].VerifyHostname(a.Host()) == nil
}

func (o *cnx) maxExchanges() int {
	if o.h2 != nil {
		return int(o.h2.MaxConcurrentStreams())
	}

	return 1
}

func (o *cnx) AllocationCount() int {
	o.m.Lock()
	defer o.m.Unlock()

	return o.alc
}

func (o *cnx) IdleSince() time.Time {
	o.m.Lock()
	defer o.m.Unlock()

	return o.idl
}

func (o *cnx) Healthy() bool {
	o.m.Lock()

	if o.cls || o.nne {
		o.m.Unlock()
		return false
	}

	o.m.Unlock()

	if o.h2 != nil {
		return o.h2.Healthy()
	}

	if o.h1 != nil {
		// peek only while idle: a busy exchange owns the socket
		o.m.Lock()
		busy := o.alc > 0
		o.m.Unlock()

		if busy {
			return o.h1.Reusable()
		}

		return o.h1.Healthy()
	}

	return false
}

func (o *cnx) NoNewExchanges() {
	o.m.Lock()
	defer o.m.Unlock()

	o.nne = true
}

func (o *cnx) noNew() bool {
	o.m.Lock()
	defer o.m.Unlock()

	return o.nne || o.cls
}

func (o *cnx) TLSState() *tls.ConnectionState {
	return o.ts
}

// release detaches one exchange. damaged forbids reuse; once idle, the pool
// decides whether the connection stays pooled.
func (o *cnx) release(damaged bool) {
	o.m.Lock()

	if damaged {
		o.nne = true
	}

	if o.alc > 0 {
		o.alc--
	}

	idle := o.alc == 0
	dead := o.nne && idle

	if idle {
		o.idl = time.Now()
	}

	o.m.Unlock()

	if dead {
		if o.pl != nil {
			o.pl.Remove(o)
		}

		_ = o.Close()
		return
	}

	if idle && o.pl != nil {
		if o.pl.Release(o) {
			_ = o.Close()
		}
	}
}

// Close releases the socket and TLS session resources. Idempotent.
func (o *cnx) Close() error {
	o.m.Lock()

	if o.cls {
		o.m.Unlock()
		return nil
	}

	o.cls = true
	o.nne = true

	o.m.Unlock()

	if o.h2 != nil {
		return o.h2.Close()
	}

	if o.sk != nil {
		return o.sk.Close()
	}

	return nil
}
