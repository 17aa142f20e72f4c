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
	"sync"

	liberr "github.com/nabbar/golib/errors"
	libsem "github.com/nabbar/golib/semaphore"
	semtps "github.com/nabbar/golib/semaphore/types"
	librqs "github.com/nabbar/httpcall/request"
)

// dsp runs asynchronous calls under two caps: total in-flight (the shared
// semaphore) and per-host in-flight (the counter map with its condition).
// Calls exceeding either wait their turn. Closing the engine wakes every
// waiter. A cancelled call gives up only when its per-host wait is next
// woken (a slot release or the engine closing); the wait on the total cap
// does not observe call cancellation.
type dsp struct {
	x context.Context
	s semtps.SemPgb

	m sync.Mutex
	c *sync.Cond
	h map[string]int
	k int
}

func newDispatcher(ctx context.Context, max, perHost int) *dsp {
	o := &dsp{
		x: ctx,
		s: libsem.New(ctx, int64(max), false),
		h: make(map[string]int),
		k: perHost,
	}

	o.c = sync.NewCond(&o.m)

	return o
}

func (o *dsp) enqueue(call *cll, fct FuncCallback) {
	go o.run(call, fct)
}

func (o *dsp) run(call *cll, fct FuncCallback) {
	var host = call.q.Url().Hostname()

	if err := o.s.NewWorker(); err != nil {
		o.done(call, fct, nil, ErrorDispatcher.Error(err))
		return
	}

	defer o.s.DeferWorker()

	if !o.acquireHost(call, host) {
		o.done(call, fct, nil, ErrorCanceled.Error(nil))
		return
	}

	defer o.releaseHost(host)

	rsp, err := call.Execute()

	o.done(call, fct, rsp, err)
}

func (o *dsp) done(call *cll, fct FuncCallback, rsp *librqs.Response, err liberr.Error) {
	if fct != nil {
		fct(call, rsp, err)
	}
}

// acquireHost waits for a per-host slot. It gives up when the engine closes,
// or when it is woken and finds the call cancelled; Cancel itself does not
// wake it.
func (o *dsp) acquireHost(call *cll, host string) bool {
	var stop = context.AfterFunc(o.x, func() {
		o.m.Lock()
		o.c.Broadcast()
		o.m.Unlock()
	})

	defer stop()

	o.m.Lock()
	defer o.m.Unlock()

	for o.h[host] >= o.k {
		if call.IsCanceled() || o.x.Err() != nil {
			return false
		}

		o.c.Wait()
	}

	o.h[host]++

	return true
}

func (o *dsp) releaseHost(host string) {
	o.m.Lock()
	defer o.m.Unlock()

	if o.h[host] > 1 {
		o.h[host]--
	} else {
		delete(o.h, host)
	}

	o.c.Broadcast()
}
