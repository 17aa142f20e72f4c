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
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	liberr "github.com/nabbar/golib/errors"
	libevt "github.com/nabbar/httpcall/event"
	libhdr "github.com/nabbar/httpcall/header"
	libht2 "github.com/nabbar/httpcall/http2"
	librqs "github.com/nabbar/httpcall/request"
	"golang.org/x/net/http2/hpack"
)

// hop-by-hop fields never forwarded on a framed connection
var h2Strip = map[string]bool{
	"host":              true,
	"connection":        true,
	"keep-alive":        true,
	"proxy-connection":  true,
	"transfer-encoding": true,
	"upgrade":           true,
	"te":                true,
}

type exg struct {
	m sync.Mutex

	c *cnx
	s libht2.Stream
	e libevt.Listener

	mtd string
	snt time.Time

	can bool // cancelled
	rel bool // released
}

func (o *exg) Connection() Connection {
	return o.c
}

func (o *exg) listener() libevt.Listener {
	if o.e != nil {
		return o.e
	}

	return libevt.Nop()
}

func (o *exg) SendRequest(ctx context.Context, req librqs.Request, hdr libhdr.Header) liberr.Error {
	o.m.Lock()

	if o.can {
		o.m.Unlock()
		return ErrorExchangeCanceled.Error(nil)
	}

	o.mtd = req.Method()
	o.snt = time.Now()
	o.m.Unlock()

	o.listener().RequestHeaders(req)

	if o.c.h2 != nil {
		return o.sendH2(ctx, req, hdr)
	}

	return o.sendH1(req, hdr)
}

func (o *exg) sendH1(req librqs.Request, hdr libhdr.Header) liberr.Error {
	var target string

	if u := req.Url(); u != nil {
		target = u.RequestURI()

		// cleartext traversal of a proxy uses the absolute form
		if o.c.rt.Proxy != nil && !o.c.rt.Addr.Secure() {
			target = u.String()
		}
	}

	n, err := o.c.h1.WriteRequest(target, req, hdr)

	if err != nil {
		o.c.NoNewExchanges()
		return err
	}

	if req.Body() != nil {
		o.listener().RequestBody(n)
	}

	return nil
}

func (o *exg) sendH2(ctx context.Context, req librqs.Request, hdr libhdr.Header) liberr.Error {
	var (
		u      = req.Url()
		scheme = "http"
	)

	if o.c.rt.Addr.Secure() {
		scheme = "https"
	}

	authority := u.Host

	fields := []hpack.HeaderField{
		{Name: ":method", Value: req.Method()},
		{Name: ":scheme", Value: scheme},
		{Name: ":authority", Value: authority},
		{Name: ":path", Value: u.RequestURI()},
	}

	hdr.Walk(func(name, value string) bool {
		if h2Strip[strings.ToLower(name)] {
			return true
		}

		fields = append(fields, hpack.HeaderField{
			Name:  strings.ToLower(name),
			Value: value,
		})

		return true
	})

	body := req.Body()

	s, err := o.c.h2.NewStream(ctx, fields, body == nil)

	if err != nil {
		return err
	}

	o.m.Lock()
	o.s = s
	cancelled := o.can
	o.m.Unlock()

	if cancelled {
		s.Cancel()
		return ErrorExchangeCanceled.Error(nil)
	}

	if body == nil {
		return nil
	}

	r, e := body.Reader()
	if e != nil {
		s.Cancel()
		return e
	}

	defer func() {
		_ = r.Close()
	}()

	var (
		n   int64
		buf = make([]byte, 16384)
	)

	for {
		c, rerr := r.Read(buf)

		if c > 0 {
			n += int64(c)

			if err = s.WriteData(ctx, buf[:c], false); err != nil {
				return err
			}
		}

		if rerr == io.EOF {
			break
		}

		if rerr != nil {
			s.Cancel()
			return ErrorBodyStream.Error(rerr)
		}
	}

	if err = s.WriteData(ctx, nil, true); err != nil {
		return err
	}

	o.listener().RequestBody(n)

	return nil
}

func (o *exg) ReadResponse(ctx context.Context) (*librqs.Response, liberr.Error) {
	var (
		rsp *librqs.Response
		err liberr.Error
	)

	if o.c.h2 != nil {
		rsp, err = o.readH2(ctx)
	} else {
		rsp, err = o.readH1()
	}

	if err != nil {
		o.Release(true)
		return nil, err
	}

	rsp.SentAt = o.snt
	rsp.TLS = o.c.ts

	o.listener().ResponseHeaders(rsp)

	return rsp, nil
}

func (o *exg) readH1() (*librqs.Response, liberr.Error) {
	rsp, err := o.c.h1.ReadResponse(o.mtd, func(complete bool, bytes int64) {
		o.listener().ResponseBody(bytes)
		o.release(!complete || !o.c.h1.Reusable())
	})

	if err != nil {
		return nil, err
	}

	rsp.Proto = o.c.pr

	if rsp.Proto == librqs.ProtocolH2 || rsp.Proto == librqs.ProtocolH2C {
		rsp.Proto = librqs.ProtocolHTTP11
	}

	return rsp, nil
}

func (o *exg) readH2(ctx context.Context) (*librqs.Response, liberr.Error) {
	fields, err := o.s.ReadHeaders(ctx)

	if err != nil {
		return nil, err
	}

	var (
		status int
		hdr    = libhdr.New()
	)

	for _, f := range fields {
		if strings.HasPrefix(f.Name, ":") {
			if f.Name == ":status" {
				if v, e := strconv.Atoi(f.Value); e == nil {
					status = v
				}
			}

			continue
		}

		hdr.Add(f.Name, f.Value)
	}

	if status == 0 {
		o.s.Close(io.ErrUnexpectedEOF)
		return nil, libht2.ErrorProtocol.Errorf("missing :status pseudo header")
	}

	return &librqs.Response{
		Status:     status,
		Proto:      o.c.pr,
		Header:     hdr,
		Body:       &h2Body{x: o, s: o.s},
		ReceivedAt: time.Now(),
	}, nil
}

func (o *exg) Cancel() {
	o.m.Lock()

	if o.can {
		o.m.Unlock()
		return
	}

	o.can = true
	s := o.s

	o.m.Unlock()

	if s != nil {
		s.Cancel()
		return
	}

	if o.c.h2 == nil {
		// aborting a serialized exchange kills the whole connection
		o.c.NoNewExchanges()
		_ = o.c.Close()
	}
}

func (o *exg) Release(damaged bool) {
	o.release(damaged)
}

func (o *exg) release(damaged bool) {
	o.m.Lock()

	if o.rel {
		o.m.Unlock()
		return
	}

	o.rel = true
	s := o.s

	o.m.Unlock()

	if s != nil && damaged {
		s.Close(io.ErrClosedPipe)
	} else if s != nil {
		s.Close(nil)
	}

	// a damaged HTTP/2 stream does not damage its connection
	if o.c.h2 != nil {
		damaged = false
	}

	o.c.release(damaged)
	o.listener().ConnectionReleased(o.c.Id())
}

// h2Body adapts a stream to the response body contract: EOF or close releases
// the exchange exactly once.
type h2Body struct {
	m sync.Mutex
	x *exg
	s libht2.Stream
	n int64
	d bool
	c bool
}

func (o *h2Body) Read(p []byte) (int, error) {
	o.m.Lock()

	if o.c {
		o.m.Unlock()
		return 0, io.ErrClosedPipe
	}

	o.m.Unlock()

	n, err := o.s.Read(p)

	o.m.Lock()
	o.n += int64(n)
	o.m.Unlock()

	if err == io.EOF {
		o.done(true)
	} else if err != nil {
		o.done(false)
	}

	return n, err
}

func (o *h2Body) Close() error {
	o.m.Lock()

	if o.c {
		o.m.Unlock()
		return nil
	}

	o.c = true
	done := o.d

	o.m.Unlock()

	if !done {
		o.done(false)
	}

	return nil
}

func (o *h2Body) done(complete bool) {
	o.m.Lock()

	if o.d {
		o.m.Unlock()
		return
	}

	o.d = true
	n := o.n

	o.m.Unlock()

	o.x.listener().ResponseBody(n)
	o.x.release(!complete)
}
