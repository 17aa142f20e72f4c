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
	liberr "github.com/nabbar/golib/errors"
	libcon "github.com/nabbar/httpcall/conn"
	librqs "github.com/nabbar/httpcall/request"
)

// chn is one position in the interceptor stack. Proceed invokes the
// interceptor at the current index with a handle positioned at the next one.
type chn struct {
	c *cll
	i []Interceptor

	idx int
	req librqs.Request
	x   libcon.Exchange

	calls int
}

func (o *chn) Request() librqs.Request {
	if o.req != nil {
		return o.req
	}

	return o.c.q
}

func (o *chn) Call() Call {
	return o.c
}

func (o *chn) Connection() libcon.Connection {
	if o.x != nil {
		return o.x.Connection()
	}

	return nil
}

func (o *chn) exchange() libcon.Exchange {
	return o.x
}

func (o *chn) Proceed(req librqs.Request) (*librqs.Response, liberr.Error) {
	if req == nil {
		return nil, ErrorChainMisuse.Errorf("nil request")
	}

	if o.c.IsCanceled() {
		return nil, ErrorCanceled.Error(nil)
	}

	o.calls++

	// once an exchange is bound the chain carries one wire request: a second
	// proceed from the same invocation is a programming error
	if o.x != nil && o.calls > 1 {
		return nil, ErrorChainMisuse.Errorf("proceed called twice on a bound chain")
	}

	if o.idx >= len(o.i) {
		return nil, ErrorChainMisuse.Errorf("chain exhausted")
	}

	next := &chn{
		c:   o.c,
		i:   o.i,
		idx: o.idx + 1,
		req: req,
		x:   o.x,
	}

	return o.i[o.idx].Intercept(next)
}
