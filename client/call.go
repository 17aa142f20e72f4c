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
	"errors"
	"net/url"
	"sync"

	liberr "github.com/nabbar/golib/errors"
	libcon "github.com/nabbar/httpcall/conn"
	libevt "github.com/nabbar/httpcall/event"
	libht1 "github.com/nabbar/httpcall/http1"
	librqs "github.com/nabbar/httpcall/request"
)

type cll struct {
	e *eng
	q librqs.Request

	m   sync.Mutex
	ctx context.Context
	cnl context.CancelFunc
	can bool
	ran bool
	fnd libcon.Finder
	exg libcon.Exchange
	evt libevt.Listener
	prx *url.URL
}

func (o *cll) setProxy(u *url.URL) {
	o.m.Lock()
	defer o.m.Unlock()

	o.prx = u
}

func (o *cll) proxy() *url.URL {
	o.m.Lock()
	defer o.m.Unlock()

	return o.prx
}

func (o *cll) Request() librqs.Request {
	return o.q
}

func (o *cll) IsCanceled() bool {
	o.m.Lock()
	defer o.m.Unlock()

	return o.can
}

func (o *cll) Cancel() {
	o.m.Lock()

	if o.can {
		o.m.Unlock()
		return
	}

	o.can = true

	var (
		cnl = o.cnl
		exg = o.exg
	)

	o.m.Unlock()

	if cnl != nil {
		cnl()
	}

	if exg != nil {
		exg.Cancel()
	}
}

func (o *cll) context() context.Context {
	o.m.Lock()
	defer o.m.Unlock()

	return o.ctx
}

func (o *cll) bind(x libcon.Exchange) {
	o.m.Lock()
	cancelled := o.can
	o.exg = x
	o.m.Unlock()

	if cancelled && x != nil {
		x.Cancel()
	}
}

func (o *cll) finder() libcon.Finder {
	o.m.Lock()
	defer o.m.Unlock()

	if o.fnd == nil {
		o.fnd = o.e.c.NewFinder(o.e.address(o.q.Url()))
	}

	return o.fnd
}

func (o *cll) listener() libevt.Listener {
	o.m.Lock()
	defer o.m.Unlock()

	if o.evt == nil {
		o.evt = o.e.listener()
	}

	return o.evt
}

func (o *cll) Execute() (*librqs.Response, liberr.Error) {
	o.m.Lock()

	if o.ran {
		o.m.Unlock()
		return nil, ErrorCallExecuted.Error(nil)
	}

	o.ran = true

	ctx := o.e.x

	if d := o.e.f.CallTimeout.Time(); d > 0 {
		o.ctx, o.cnl = context.WithTimeout(ctx, d)
	} else {
		o.ctx, o.cnl = context.WithCancel(ctx)
	}

	if o.can {
		// cancelled before execution
		o.cnl()
	}

	o.m.Unlock()

	defer o.cnl()

	evt := o.listener()
	evt.CallStart(o.q)

	rsp, err := o.run()

	if err != nil {
		err = o.classify(err)
		evt.CallFailed(err)
		return nil, err
	}

	evt.CallEnd()

	return rsp, nil
}

func (o *cll) Enqueue(fct FuncCallback) {
	o.e.d.enqueue(o, fct)
}

// run assembles the interceptor stack and starts the chain.
func (o *cll) run() (*librqs.Response, liberr.Error) {
	o.e.m.Lock()

	var stack = make([]Interceptor, 0, len(o.e.app)+len(o.e.net)+5)

	stack = append(stack, o.e.app...)
	stack = append(stack, &retryInterceptor{e: o.e})
	stack = append(stack, &bridgeInterceptor{e: o.e})
	stack = append(stack, &cacheInterceptor{e: o.e, s: o.e.sto})
	stack = append(stack, &connectInterceptor{e: o.e})
	stack = append(stack, o.e.net...)
	stack = append(stack, &networkInterceptor{})

	o.e.m.Unlock()

	c := &chn{
		c: o,
		i: stack,
	}

	return c.Proceed(o.q)
}

// classify maps a terminal failure to the caller-facing kind: cancellation
// and call timeout dominate whatever error surfaced underneath.
func (o *cll) classify(err liberr.Error) liberr.Error {
	if o.IsCanceled() {
		return ErrorCanceled.Error(err)
	}

	if ctx := o.context(); ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrorTimeout.Error(err)
	}

	if liberr.Has(err, libht1.ErrorReadTimeout) || liberr.Has(err, libht1.ErrorWriteTimeout) {
		return ErrorTimeout.Error(err)
	}

	return err
}
