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

// Package conn owns the physical connections of the stack: opening them
// (socket, CONNECT tunnel, TLS handshake with SNI and ALPN), binding
// exchanges to them, and coordinating reuse through the pool.
//
// The pool owns connections; an exchange holds a non-owning handle back to
// its connection and releases it explicitly on close, which is what breaks
// the connection/exchange/pool reference cycle.
package conn

import (
	"context"
	"fmt"

	libval "github.com/go-playground/validator/v10"
	libdur "github.com/nabbar/golib/duration"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	libadr "github.com/nabbar/httpcall/address"
	libevt "github.com/nabbar/httpcall/event"
	libhdr "github.com/nabbar/httpcall/header"
	libht2 "github.com/nabbar/httpcall/http2"
	libpol "github.com/nabbar/httpcall/pool"
	librqs "github.com/nabbar/httpcall/request"
	libtsk "github.com/nabbar/httpcall/task"
)

// Config tunes connection establishment and per-exchange I/O.
type Config struct {
	// ConnectTimeout bounds the TCP connect of one route attempt.
	ConnectTimeout libdur.Duration `json:"connect-timeout,omitempty" yaml:"connect-timeout,omitempty" toml:"connect-timeout,omitempty" mapstructure:"connect-timeout,omitempty"`

	// ReadTimeout is the inter-byte bound applied to reads.
	ReadTimeout libdur.Duration `json:"read-timeout,omitempty" yaml:"read-timeout,omitempty" toml:"read-timeout,omitempty" mapstructure:"read-timeout,omitempty"`

	// WriteTimeout is the inter-byte bound applied to writes.
	WriteTimeout libdur.Duration `json:"write-timeout,omitempty" yaml:"write-timeout,omitempty" toml:"write-timeout,omitempty" mapstructure:"write-timeout,omitempty"`

	// TlsHandshakeTimeout bounds the TLS handshake of one route attempt.
	TlsHandshakeTimeout libdur.Duration `json:"tls-handshake-timeout,omitempty" yaml:"tls-handshake-timeout,omitempty" toml:"tls-handshake-timeout,omitempty" mapstructure:"tls-handshake-timeout,omitempty"`

	// Http2 tunes the framed connections opened by this coordinator.
	Http2 libht2.Config `json:"http2,omitempty" yaml:"http2,omitempty" toml:"http2,omitempty" mapstructure:"http2,omitempty"`
}

// Validate checks the Config against its constraints.
func (o Config) Validate() liberr.Error {
	var e = ErrorValidatorError.Error(nil)

	if err := libval.New().Struct(o); err != nil {
		if er, ok := err.(*libval.InvalidValidationError); ok {
			e.Add(er)
		}

		for _, er := range err.(libval.ValidationErrors) {
			//nolint #goerr113
			e.Add(fmt.Errorf("config field '%s' is not validated by constraint '%s'", er.Namespace(), er.ActualTag()))
		}
	}

	if er := o.Http2.Validate(); er != nil {
		e.Add(er)
	}

	if !e.HasParent() {
		e = nil
	}

	return e
}

// Connection is one pooled physical connection.
type Connection interface {
	libpol.Pooled

	// Protocol returns the negotiated wire protocol.
	Protocol() librqs.Protocol

	// Route returns the route the connection was opened on.
	Route() libadr.Route

	// Healthy reports whether the connection can carry a new exchange right
	// now: not remotely closed for HTTP/1.1, recent ping and no goaway for
	// HTTP/2.
	Healthy() bool

	// NoNewExchanges forbids further exchanges while letting the running
	// ones complete.
	NoNewExchanges()
}

// Exchange is one request/response cycle bound to one connection.
type Exchange interface {
	// Connection returns the carrying connection.
	Connection() Connection

	// SendRequest writes the request line or header block and the body.
	// hdr is the wire-level header list prepared by the bridge.
	SendRequest(ctx context.Context, req librqs.Request, hdr libhdr.Header) liberr.Error

	// ReadResponse blocks for the response headers and returns a response
	// whose body is a lazy stream over the exchange. Closing the body (or
	// draining it) releases the exchange.
	ReadResponse(ctx context.Context) (*librqs.Response, liberr.Error)

	// Cancel aborts pending I/O: the HTTP/2 stream is reset with CANCEL,
	// an HTTP/1.1 connection is closed. Idempotent.
	Cancel()

	// Release detaches a never-sent or header-failed exchange from its
	// connection. damaged forbids connection reuse.
	Release(damaged bool)
}

// Finder runs the route/pool acquisition algorithm for the calls of one
// logical call: reuse, pool, route planning, connect, coalescing dedup.
type Finder interface {
	// Find returns an exchange bound to a healthy connection.
	Find(ctx context.Context, evt libevt.Listener) (Exchange, liberr.Error)
}

// Coordinator creates finders over one pool instance.
type Coordinator interface {
	// NewFinder returns the finder of one logical call for adr.
	NewFinder(adr *libadr.Address) Finder

	// Close evicts every pooled connection.
	Close() error
}

// New returns a Coordinator over the given pool. The runner hosts the HTTP/2
// keepalives; db postpones recently failed routes; log may be nil.
func New(cfg Config, pol libpol.Pool, db libadr.FailedRoutes, run libtsk.Runner, log liblog.FuncLog) Coordinator {
	if db == nil {
		db = libadr.NewFailedRoutes()
	}

	return &crd{
		f: cfg,
		p: pol,
		d: db,
		r: run,
		l: log,
	}
}
