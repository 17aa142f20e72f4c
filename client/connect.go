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
	librqs "github.com/nabbar/httpcall/request"
)

// connectInterceptor binds an exchange on a healthy connection through the
// coordinator, then hands over to the network layers.
type connectInterceptor struct {
	e *eng
}

func (o *connectInterceptor) Intercept(c Chain) (*librqs.Response, liberr.Error) {
	ch, ok := c.(*chn)

	if !ok {
		return nil, ErrorChainMisuse.Errorf("foreign chain implementation")
	}

	x, err := ch.c.finder().Find(ch.c.context(), ch.c.listener())

	if err != nil {
		return nil, err
	}

	ch.c.bind(x)
	ch.c.setProxy(x.Connection().Route().Proxy)
	ch.x = x

	rsp, err := ch.Proceed(ch.Request())

	if err != nil {
		// release is idempotent: layers below released on their own failures
		x.Release(true)
		return nil, err
	}

	return rsp, nil
}

// networkInterceptor is the terminal layer: it writes the wire request on
// the exchange and reads the response headers, leaving the body lazy.
type networkInterceptor struct{}

func (o *networkInterceptor) Intercept(c Chain) (*librqs.Response, liberr.Error) {
	ch, ok := c.(*chn)

	if !ok {
		return nil, ErrorChainMisuse.Errorf("foreign chain implementation")
	}

	var (
		x   = ch.exchange()
		req = ch.Request()
		ctx = ch.c.context()
	)

	if x == nil {
		return nil, ErrorChainMisuse.Errorf("no exchange bound before network layer")
	}

	if err := x.SendRequest(ctx, req, req.Header()); err != nil {
		return nil, err
	}

	rsp, err := x.ReadResponse(ctx)

	if err != nil {
		return nil, err
	}

	rsp.Request = req

	return rsp, nil
}
