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

// Package event defines the observability callbacks fired by the call engine
// at the well-defined moments of a call's life.
//
// Listener methods are invoked synchronously on the calling goroutine and must
// return quickly. One Listener instance observes one call.
package event

import (
	"net"

	librqs "github.com/nabbar/httpcall/request"
)

// FuncListener returns the Listener observing one new call.
type FuncListener func() Listener

// Listener receives the lifecycle callbacks of a single call.
type Listener interface {
	CallStart(req librqs.Request)
	CallEnd()
	CallFailed(err error)

	DnsStart(host string)
	DnsEnd(host string, ips []net.IP, err error)

	ConnectStart(addr string)
	ConnectEnd(addr string, proto librqs.Protocol, err error)

	SecureConnectStart()
	SecureConnectEnd(err error)

	ConnectionAcquired(id uint64)
	ConnectionReleased(id uint64)

	RequestHeaders(req librqs.Request)
	RequestBody(bytes int64)

	ResponseHeaders(rsp *librqs.Response)
	ResponseBody(bytes int64)
}

// Nop returns a Listener ignoring every callback.
func Nop() Listener {
	return &NopListener{}
}

// NopListener ignores every callback. Embed it to implement a partial Listener.
type NopListener struct{}

func (o *NopListener) CallStart(req librqs.Request)                               {}
func (o *NopListener) CallEnd()                                                   {}
func (o *NopListener) CallFailed(err error)                                       {}
func (o *NopListener) DnsStart(host string)                                       {}
func (o *NopListener) DnsEnd(host string, ips []net.IP, err error)                {}
func (o *NopListener) ConnectStart(addr string)                                   {}
func (o *NopListener) ConnectEnd(addr string, proto librqs.Protocol, err error)   {}
func (o *NopListener) SecureConnectStart()                                        {}
func (o *NopListener) SecureConnectEnd(err error)                                 {}
func (o *NopListener) ConnectionAcquired(id uint64)                               {}
func (o *NopListener) ConnectionReleased(id uint64)                               {}
func (o *NopListener) RequestHeaders(req librqs.Request)                          {}
func (o *NopListener) RequestBody(bytes int64)                                    {}
func (o *NopListener) ResponseHeaders(rsp *librqs.Response)                       {}
func (o *NopListener) ResponseBody(bytes int64)                                   {}
