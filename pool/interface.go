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

// Package pool tracks idle and in-use connections by address.
//
// A connection is either in the pool's idle set or held by at least one
// exchange, never both. The pool enforces the idle cap and the keep-alive
// bound through a cleanup task on the shared task runner, scheduled whenever
// a connection becomes idle and re-armed at the earliest known deadline.
// All pool state lives under one monitor; connections are never closed while
// the monitor is held.
package pool

import (
	"sync"
	"time"

	liblog "github.com/nabbar/golib/logger"
	libadr "github.com/nabbar/httpcall/address"
	libtsk "github.com/nabbar/httpcall/task"
)

// Pooled is the view the pool has of a connection.
type Pooled interface {
	// Id returns the unique id of the connection.
	Id() uint64

	// Address returns the address the connection was opened for.
	Address() *libadr.Address

	// TryAcquire atomically reserves one exchange slot when the connection is
	// eligible for the given address (equality, or certificate coalescing for
	// a multiplexed connection) and, when route is non nil, for that route.
	// It fails once noNewExchanges is set or the stream cap is reached.
	TryAcquire(a *libadr.Address, route *libadr.Route) bool

	// AllocationCount returns the number of exchanges currently attached.
	AllocationCount() int

	// IdleSince returns the instant the connection last became idle.
	IdleSince() time.Time

	// Close releases the socket and TLS resources. Idempotent.
	Close() error
}

// Pool is the connection pool of one engine instance.
type Pool interface {
	// Put registers a freshly connected connection.
	Put(c Pooled)

	// Acquire reserves an exchange slot on a matching pooled connection,
	// or returns nil. A non-nil route also requires a route match.
	Acquire(a *libadr.Address, route *libadr.Route) Pooled

	// Release notifies that c dropped to zero exchanges and is now idle.
	// It returns true when the connection must be closed by the caller
	// instead of staying pooled.
	Release(c Pooled) bool

	// Remove drops c from the pool without closing it (the caller does).
	Remove(c Pooled)

	// EvictAll closes every connection; used at shutdown.
	EvictAll()

	// Len returns the number of tracked connections.
	Len() int

	// IdleLen returns the number of idle tracked connections.
	IdleLen() int
}

// New returns an empty pool running its cleanup on run.
func New(cfg Config, run libtsk.Runner, log liblog.FuncLog) Pool {
	c := cfg.Clone()

	return &pol{
		m: sync.Mutex{},
		c: make([]Pooled, 0),
		f: c,
		r: run,
		l: log,
	}
}
