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

// Package metrics exports the engine's event callbacks as prometheus series:
// call volume and latency, connection and handshake counters, dns lookups.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	libevt "github.com/nabbar/httpcall/event"
)

// Collector owns the prometheus series of one engine and produces the
// per-call listeners feeding them.
type Collector interface {
	prometheus.Collector

	// Listener returns the factory to install on the engine.
	Listener() libevt.FuncListener
}

// New returns a Collector under the given metric namespace.
func New(namespace string) Collector {
	o := &col{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "httpcall",
			Name:      "calls_total",
			Help:      "Calls started, by outcome.",
		}, []string{"outcome"}),

		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "httpcall",
			Name:      "call_duration_seconds",
			Help:      "Wall-clock duration of completed calls.",
			Buckets:   prometheus.DefBuckets,
		}),

		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "httpcall",
			Name:      "connections_opened_total",
			Help:      "Connection attempts, by result.",
		}, []string{"result"}),

		connect: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "httpcall",
			Name:      "connect_duration_seconds",
			Help:      "Duration of socket establishment.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),

		handshake: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "httpcall",
			Name:      "tls_handshake_duration_seconds",
			Help:      "Duration of the TLS handshake.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),

		dns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "httpcall",
			Name:      "dns_lookups_total",
			Help:      "DNS lookups, by result.",
		}, []string{"result"}),
	}

	return o
}
