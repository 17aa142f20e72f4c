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

package request

import (
	"net"
	"net/url"
	"strings"

	liberr "github.com/nabbar/golib/errors"
	libhdr "github.com/nabbar/httpcall/header"
	"golang.org/x/net/idna"
)

type req struct {
	m string
	u *url.URL
	h libhdr.Header
	b Body
	t map[string]interface{}
}

func (o *req) Method() string {
	return o.m
}

func (o *req) Url() *url.URL {
	return o.u
}

func (o *req) Header() libhdr.Header {
	return o.h.Clone()
}

func (o *req) Body() Body {
	return o.b
}

func (o *req) Tag(key string) interface{} {
	return o.t[key]
}

func (o *req) CacheControl() string {
	return o.h.Get("Cache-Control")
}

func (o *req) Builder() Builder {
	var t = make(map[string]interface{}, len(o.t))

	for k, v := range o.t {
		t[k] = v
	}

	return &builder{
		m: o.m,
		u: cloneUrl(o.u),
		h: o.h.Clone(),
		b: o.b,
		t: t,
	}
}

type builder struct {
	m string
	u *url.URL
	h libhdr.Header
	b Body
	t map[string]interface{}
	e liberr.Error
}

func (o *builder) addErr(e liberr.Error) {
	if e == nil {
		return
	}

	if o.e == nil {
		o.e = e
	} else {
		o.e.Add(e)
	}
}

func (o *builder) SetMethod(mtd string, body Body) {
	mtd = strings.ToUpper(strings.TrimSpace(mtd))

	if mtd == "" {
		o.addErr(ErrorMethodInvalid.Errorf("empty"))
		return
	}

	switch mtd {
	case "GET", "HEAD":
		if body != nil {
			o.addErr(ErrorBodyNotAllowed.Errorf(mtd))
			return
		}
	case "POST", "PUT", "PATCH":
		if body == nil {
			o.addErr(ErrorBodyRequired.Errorf(mtd))
			return
		}
	case "DELETE":
		if body == nil {
			body = NewBodyBytes("", nil)
		}
	}

	o.m = mtd
	o.b = body
}

func (o *builder) SetEndpoint(uri string) {
	if u, err := url.Parse(uri); err != nil {
		o.addErr(ErrorURLParse.Error(err))
	} else {
		o.SetUrl(u)
	}
}

func (o *builder) SetUrl(u *url.URL) {
	if u == nil {
		o.addErr(ErrorURLParse.Errorf("nil url"))
		return
	}

	u = cloneUrl(u)

	// websocket schemes are carried over http for the handshake
	switch strings.ToLower(u.Scheme) {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
		u.Scheme = strings.ToLower(u.Scheme)
	default:
		o.addErr(ErrorURLScheme.Errorf(u.Scheme))
		return
	}

	if !u.IsAbs() || u.Host == "" {
		o.addErr(ErrorURLNotAbsolute.Error(nil))
		return
	}

	if h, err := idna.Lookup.ToASCII(u.Hostname()); err != nil {
		o.addErr(ErrorURLHost.Error(err))
		return
	} else if p := u.Port(); p != "" {
		u.Host = net.JoinHostPort(h, p)
	} else {
		u.Host = h
	}

	o.u = u
}

func (o *builder) SetHeader(name, value string) {
	if e := libhdr.Valid(name, value); e != nil {
		o.addErr(e)
		return
	}

	o.h.Set(name, value)
}

func (o *builder) AddHeader(name, value string) {
	if e := libhdr.Valid(name, value); e != nil {
		o.addErr(e)
		return
	}

	o.h.Add(name, value)
}

func (o *builder) DelHeader(name string) {
	o.h.Del(name)
}

func (o *builder) SetCacheControl(directive string) {
	if directive == "" {
		o.h.Del("Cache-Control")
	} else {
		o.SetHeader("Cache-Control", directive)
	}
}

func (o *builder) SetTag(key string, val interface{}) {
	if val == nil {
		delete(o.t, key)
	} else {
		o.t[key] = val
	}
}

func (o *builder) Build() (Request, liberr.Error) {
	if o.e != nil {
		return nil, o.e
	}

	if o.u == nil {
		return nil, ErrorURLMissing.Error(nil)
	}

	var t = make(map[string]interface{}, len(o.t))

	for k, v := range o.t {
		t[k] = v
	}

	return &req{
		m: o.m,
		u: cloneUrl(o.u),
		h: o.h.Clone(),
		b: o.b,
		t: t,
	}, nil
}

func cloneUrl(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}

	var res = *u

	if u.User != nil {
		usr := *u.User
		res.User = &usr
	}

	return &res
}
