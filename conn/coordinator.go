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
	"context"
	"crypto/tls"
	"net"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	libadr "github.com/nabbar/httpcall/address"
	libevt "github.com/nabbar/httpcall/event"
	libhdr "github.com/nabbar/httpcall/header"
	libht1 "github.com/nabbar/httpcall/http1"
	libht2 "github.com/nabbar/httpcall/http2"
	libpol "github.com/nabbar/httpcall/pool"
	librqs "github.com/nabbar/httpcall/request"
	libtsk "github.com/nabbar/httpcall/task"
)

type crd struct {
	f Config
	p libpol.Pool
	d libadr.FailedRoutes
	r libtsk.Runner
	l liblog.FuncLog
}

func (o *crd) NewFinder(adr *libadr.Address) Finder {
	return &fnd{
		c: o,
		a: adr,
	}
}

func (o *crd) Close() error {
	o.p.EvictAll()
	return nil
}

// fnd runs the acquisition steps of one logical call. A finder is used from
// one call goroutine at a time and keeps the routes already tried so a
// follow-up attempt skips them.
type fnd struct {
	c *crd
	a *libadr.Address

	sel libadr.Selector
	trd []libadr.Route
	lst *cnx
}

func (o *fnd) Find(ctx context.Context, evt libevt.Listener) (Exchange, liberr.Error) {
	if evt == nil {
		evt = libevt.Nop()
	}

	// step 1: the connection of a prior attempt of this call
	if c := o.lst; c != nil && c.Healthy() && c.TryAcquire(o.a, nil) {
		return o.exchange(c, evt), nil
	}

	// step 2: any pooled connection matching the address
	if x := o.fromPool(nil); x != nil {
		return o.exchange(x, evt), nil
	}

	// step 3: plan candidate routes
	if o.sel == nil {
		o.sel = libadr.NewSelector(o.a, o.c.d, o.trd, func(host string, ips []net.IP, err error) {
			if ips == nil && err == nil {
				evt.DnsStart(host)
			} else {
				evt.DnsEnd(host, ips, err)
			}
		})
	}

	var errs liberr.Error

	for o.sel.HasNext() {
		if err := ctx.Err(); err != nil {
			return nil, ErrorAcquireCanceled.Error(err)
		}

		rt, err := o.sel.Next(ctx)

		if err != nil {
			errs = aggregate(errs, err)
			continue
		}

		// step 4: the pool again, now with the concrete route
		if x := o.fromPool(&rt); x != nil {
			return o.exchange(x, evt), nil
		}

		// step 5: open the route
		c, cerr := o.c.connect(ctx, rt, evt)

		if cerr != nil {
			o.c.d.Failed(rt)
			o.trd = append(o.trd, rt)
			errs = aggregate(errs, cerr)
			continue
		}

		o.c.d.Connected(rt)

		// step 6: a coalescable connection may have appeared during the
		// handshake; prefer it and drop the one just opened
		if c.Protocol().Multiplexed() {
			if x := o.fromPool(&rt); x != nil {
				_ = c.Close()
				return o.exchange(x, evt), nil
			}
		}

		// step 7: reserve the first exchange slot before exposure
		if !c.TryAcquire(o.a, &rt) {
			_ = c.Close()
			return nil, ErrorConnShutdown.Error(nil)
		}

		o.c.p.Put(c)

		return o.exchange(c, evt), nil
	}

	if errs == nil {
		errs = ErrorNoRoute.Errorf(o.a.HostPort())
	}

	return nil, errs
}

// fromPool acquires and health-checks a pooled connection, evicting the
// unhealthy ones it drains on the way.
func (o *fnd) fromPool(rt *libadr.Route) *cnx {
	for {
		p := o.c.p.Acquire(o.a, rt)

		if p == nil {
			return nil
		}

		x, ok := p.(*cnx)

		if !ok {
			return nil
		}

		if x.Healthy() {
			return x
		}

		x.NoNewExchanges()
		x.release(true)
	}
}

func (o *fnd) exchange(c *cnx, evt libevt.Listener) Exchange {
	o.lst = c

	evt.ConnectionAcquired(c.Id())

	return &exg{
		c: c,
		e: evt,
	}
}

func aggregate(errs, err liberr.Error) liberr.Error {
	if errs == nil {
		errs = ErrorNoRoute.Error(nil)
	}

	errs.Add(err)

	return errs
}

// connect opens one route: TCP, then the CONNECT tunnel when proxying to a
// TLS origin, then the TLS handshake with SNI and ALPN.
func (o *crd) connect(ctx context.Context, rt libadr.Route, evt libevt.Listener) (*cnx, liberr.Error) {
	evt.ConnectStart(rt.SocketAddr())

	d := net.Dialer{
		Timeout: o.f.ConnectTimeout.Time(),
	}

	sock, err := d.DialContext(ctx, "tcp", rt.SocketAddr())

	if err != nil {
		evt.ConnectEnd(rt.SocketAddr(), librqs.ProtocolUnknown, err)

		e := ErrorConnect.Errorf(rt.SocketAddr())
		e.Add(err)

		return nil, e
	}

	if rt.RequiresTunnel() {
		if e := o.tunnel(sock, rt); e != nil {
			_ = sock.Close()
			evt.ConnectEnd(rt.SocketAddr(), librqs.ProtocolUnknown, e)
			return nil, e
		}
	}

	var (
		ts *tls.ConnectionState
		pr = o.cleartextProtocol(rt)
	)

	if rt.Addr.Secure() {
		evt.SecureConnectStart()

		tc, st, e := o.secure(ctx, sock, rt)

		evt.SecureConnectEnd(e)

		if e != nil {
			_ = sock.Close()
			evt.ConnectEnd(rt.SocketAddr(), librqs.ProtocolUnknown, e)
			return nil, e
		}

		sock = tc
		ts = st

		if st.NegotiatedProtocol == "h2" {
			pr = librqs.ProtocolH2
		} else {
			pr = librqs.ProtocolHTTP11
		}
	}

	var (
		h1 libht1.Codec
		h2 libht2.Conn
	)

	if pr.Multiplexed() {
		var e liberr.Error

		if h2, e = libht2.New(sock, o.f.Http2, o.r, o.l); e != nil {
			_ = sock.Close()
			evt.ConnectEnd(rt.SocketAddr(), pr, e)
			return nil, e
		}
	} else {
		h1 = libht1.New(sock, o.f.ReadTimeout.Time(), o.f.WriteTimeout.Time())
	}

	evt.ConnectEnd(rt.SocketAddr(), pr, nil)

	return newConn(rt, sock, ts, pr, h1, h2, o.p), nil
}

// cleartextProtocol picks the protocol of a non-TLS connection: h2c only by
// prior knowledge, when the address prefers it exclusively.
func (o *crd) cleartextProtocol(rt libadr.Route) librqs.Protocol {
	p := rt.Addr.Protocols()

	if len(p) == 1 && p[0] == librqs.ProtocolH2C {
		return librqs.ProtocolH2C
	}

	return librqs.ProtocolHTTP11
}

func (o *crd) secure(ctx context.Context, sock net.Conn, rt libadr.Route) (net.Conn, *tls.ConnectionState, liberr.Error) {
	var cfg *tls.Config

	if t := rt.Addr.Tls(); t != nil {
		cfg = t.TLS(rt.Addr.Host())
	}

	if cfg == nil {
		cfg = &tls.Config{}
	} else {
		cfg = cfg.Clone()
	}

	if cfg.ServerName == "" {
		cfg.ServerName = rt.Addr.Host()
	}

	if len(cfg.NextProtos) == 0 {
		for _, p := range rt.Addr.Protocols() {
			if a := p.Alpn(); a != "" {
				cfg.NextProtos = append(cfg.NextProtos, a)
			}
		}
	}

	hctx := ctx

	if d := o.f.TlsHandshakeTimeout.Time(); d > 0 {
		var cnl context.CancelFunc
		hctx, cnl = context.WithTimeout(ctx, d)
		defer cnl()
	}

	tc := tls.Client(sock, cfg)

	if err := tc.HandshakeContext(hctx); err != nil {
		return nil, nil, ErrorTlsHandshake.Error(err)
	}

	st := tc.ConnectionState()

	return tc, &st, nil
}

// tunnel issues CONNECT through the proxy, reacting at most twice to a 407
// challenge through the address authenticator.
func (o *crd) tunnel(sock net.Conn, rt libadr.Route) liberr.Error {
	var (
		cdc  = libht1.New(sock, o.f.ReadTimeout.Time(), o.f.WriteTimeout.Time())
		dest = rt.Addr.HostPort()
		hdr  = libhdr.New()
	)

	hdr.Set("Host", dest)
	hdr.Set("Proxy-Connection", "Keep-Alive")

	for attempt := 0; attempt < 3; attempt++ {
		if err := cdc.WriteHead("CONNECT", dest, hdr); err != nil {
			return ErrorProxyConnect.Error(err)
		}

		rsp, err := cdc.ReadResponse("CONNECT", nil)

		if err != nil {
			return ErrorProxyConnect.Error(err)
		}

		switch {
		case rsp.IsSuccess():
			return nil

		case rsp.Status == 407:
			cred, e := o.proxyCredentials(rt, rsp)

			if e != nil {
				return e
			}

			if cred == "" {
				return ErrorProxyAuth.Error(nil)
			}

			if !cdc.Reusable() {
				return ErrorProxyAuth.Error(nil)
			}

			hdr.Set("Proxy-Authorization", cred)

		default:
			return ErrorProxyConnect.Errorf(rsp.Status)
		}
	}

	return ErrorProxyAuth.Error(nil)
}

// proxyCredentials asks the address authenticator for the tunnel credentials.
func (o *crd) proxyCredentials(rt libadr.Route, rsp *librqs.Response) (string, liberr.Error) {
	b := librqs.New()
	b.SetEndpoint("https://" + rt.Addr.HostPort())

	req, err := b.Build()

	if err != nil {
		return "", err
	}

	rsp.Request = req

	nxt, err := rt.Addr.Authenticator().Authenticate(rt.Proxy, rsp)

	if err != nil {
		return "", err
	}

	if nxt == nil {
		return "", nil
	}

	return nxt.Header().Get("Proxy-Authorization"), nil
}
