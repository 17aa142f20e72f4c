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

package metrics

import (
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	libevt "github.com/nabbar/httpcall/event"
	librqs "github.com/nabbar/httpcall/request"
)

type col struct {
	calls     *prometheus.CounterVec
	duration  prometheus.Histogram
	connects  *prometheus.CounterVec
	connect   prometheus.Histogram
	handshake prometheus.Histogram
	dns       *prometheus.CounterVec
}

func (o *col) Describe(ch chan<- *prometheus.Desc) {
	o.calls.Describe(ch)
	o.duration.Describe(ch)
	o.connects.Describe(ch)
	o.connect.Describe(ch)
	o.handshake.Describe(ch)
	o.dns.Describe(ch)
}

func (o *col) Collect(ch chan<- prometheus.Metric) {
	o.calls.Collect(ch)
	o.duration.Collect(ch)
	o.connects.Collect(ch)
	o.connect.Collect(ch)
	o.handshake.Collect(ch)
	o.dns.Collect(ch)
}

func (o *col) Listener() libevt.FuncListener {
	return func() libevt.Listener {
		return &lst{c: o}
	}
}

// lst observes one call.
type lst struct {
	libevt.NopListener

	c *col

	start time.Time
	cstr  time.Time
	sstr  time.Time
}

func (o *lst) CallStart(req librqs.Request) {
	o.start = time.Now()
}

func (o *lst) CallEnd() {
	o.c.calls.WithLabelValues("success").Inc()

	if !o.start.IsZero() {
		o.c.duration.Observe(time.Since(o.start).Seconds())
	}
}

func (o *lst) CallFailed(err error) {
	o.c.calls.WithLabelValues("failure").Inc()

	if !o.start.IsZero() {
		o.c.duration.Observe(time.Since(o.start).Seconds())
	}
}

func (o *lst) DnsStart(host string) {}

func (o *lst) DnsEnd(host string, ips []net.IP, err error) {
	if err != nil {
		o.c.dns.WithLabelValues("failure").Inc()
	} else if ips != nil {
		o.c.dns.WithLabelValues("success").Inc()
	}
}

func (o *lst) ConnectStart(addr string) {
	o.cstr = time.Now()
}

func (o *lst) ConnectEnd(addr string, proto librqs.Protocol, err error) {
	if err != nil {
		o.c.connects.WithLabelValues("failure").Inc()
		return
	}

	o.c.connects.WithLabelValues("success").Inc()

	if !o.cstr.IsZero() {
		o.c.connect.Observe(time.Since(o.cstr).Seconds())
	}
}

func (o *lst) SecureConnectStart() {
	o.sstr = time.Now()
}

func (o *lst) SecureConnectEnd(err error) {
	if err == nil && !o.sstr.IsZero() {
		o.handshakeObserve()
	}
}

func (o *lst) handshakeObserve() {
	o.c.handshake.Observe(time.Since(o.sstr).Seconds())
}
