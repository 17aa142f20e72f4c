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

// Package http2 implements the client side of the framed HTTP/2 connection:
// stream multiplexing, flow control, settings, ping and goaway bookkeeping.
//
// The byte-level frame codec and the HPACK coder come from golang.org/x/net;
// this package owns everything above them. One reader goroutine dispatches
// inbound frames to per-stream buffers or to connection handlers; all frame
// writes serialize on a single writer mutex. No other goroutine touches the
// socket.
package http2

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"

	libval "github.com/go-playground/validator/v10"
	libdur "github.com/nabbar/golib/duration"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	libtsk "github.com/nabbar/httpcall/task"
	libfrm "golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

const (
	defInitialWindow = 65535
	defHeaderTable   = 4096
	defMaxFrameSize  = 16384
	defMaxHeaderList = 10 << 20
	defMaxConcurrent = 100
)

// Config tunes one framed connection.
type Config struct {
	// HeaderTableSize is the HPACK dynamic table capacity offered to the peer.
	HeaderTableSize uint32 `json:"header-table-size" yaml:"header-table-size" toml:"header-table-size" mapstructure:"header-table-size"`

	// MaxHeaderListSize caps the decoded size of one inbound header list.
	MaxHeaderListSize uint32 `json:"max-header-list-size" yaml:"max-header-list-size" toml:"max-header-list-size" mapstructure:"max-header-list-size"`

	// InitialWindowSize is the per-stream receive window announced in SETTINGS.
	InitialWindowSize uint32 `json:"initial-window-size" yaml:"initial-window-size" toml:"initial-window-size" mapstructure:"initial-window-size" validate:"omitempty,gte=65535,lte=2147483647"`

	// PingInterval is the keepalive ping period; zero disables the keepalive.
	// A ping left without ack for one full interval degrades the connection.
	PingInterval libdur.Duration `json:"ping-interval,omitempty" yaml:"ping-interval,omitempty" toml:"ping-interval,omitempty" mapstructure:"ping-interval,omitempty"`
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

	if !e.HasParent() {
		e = nil
	}

	return e
}

func (o Config) withDefaults() Config {
	if o.HeaderTableSize == 0 {
		o.HeaderTableSize = defHeaderTable
	}

	if o.MaxHeaderListSize == 0 {
		o.MaxHeaderListSize = defMaxHeaderList
	}

	if o.InitialWindowSize == 0 {
		o.InitialWindowSize = defInitialWindow
	}

	return o
}

// Conn is one framed client connection.
type Conn interface {
	// NewStream allocates the next odd stream id, sends the request header
	// block and returns the stream. endStream marks a request without body.
	NewStream(ctx context.Context, fields []hpack.HeaderField, endStream bool) (Stream, liberr.Error)

	// MaxConcurrentStreams returns the cap last declared by the peer.
	MaxConcurrentStreams() uint32

	// ActiveStreams returns the number of live streams.
	ActiveStreams() int

	// NoNewStreams returns true once goaway was seen or the connection failed.
	NoNewStreams() bool

	// OnShutdown registers the callback fired once when the connection stops
	// accepting new streams (goaway, error, close).
	OnShutdown(fct func())

	// Healthy reports whether the connection can still carry a new exchange;
	// with the keepalive enabled this includes a recent ping round-trip.
	Healthy() bool

	// Shutdown sends goaway, lets live streams finish, and prevents new ones.
	Shutdown()

	// Close sends goaway then tears the connection down. Idempotent.
	Close() error
}

// Stream is one request/response exchange multiplexed on a Conn.
type Stream interface {
	// Id returns the client-initiated stream id.
	Id() uint32

	// WriteData sends one body segment, splitting to the peer frame size and
	// blocking while the stream or connection send window is exhausted.
	WriteData(ctx context.Context, p []byte, endStream bool) liberr.Error

	// ReadHeaders blocks until the final (non 1xx) response header block.
	ReadHeaders(ctx context.Context) ([]hpack.HeaderField, liberr.Error)

	// Read yields response body bytes; io.EOF after the peer end-of-stream.
	Read(p []byte) (int, error)

	// Cancel resets the stream with the CANCEL code. At most one RST_STREAM
	// is emitted whatever the number of calls.
	Cancel()

	// Close releases the stream; a non-nil err resets it with CANCEL first.
	Close(err error)
}

// New performs the connection preface and SETTINGS exchange over c and starts
// the reader. The runner hosts the keepalive ping task; log may be nil.
func New(c net.Conn, cfg Config, run libtsk.Runner, log liblog.FuncLog) (Conn, liberr.Error) {
	cfg = cfg.withDefaults()

	o := &con{
		c:   c,
		f:   cfg,
		l:   log,
		r:   run,
		s:   make(map[uint32]*stm),
		nid: 1,
		pmx: defMaxConcurrent,
		pfs: defMaxFrameSize,
		pwd: defInitialWindow,
		swd: int64(defInitialWindow),
		hbf: bytes.NewBuffer(make([]byte, 0, 1024)),
	}

	o.wc = sync.NewCond(&o.m)

	o.he = hpack.NewEncoder(o.hbf)
	o.he.SetMaxDynamicTableSize(defHeaderTable)

	o.fr = libfrm.NewFramer(c, c)
	o.fr.ReadMetaHeaders = hpack.NewDecoder(cfg.HeaderTableSize, nil)
	o.fr.MaxHeaderListSize = cfg.MaxHeaderListSize
	o.fr.SetMaxReadFrameSize(defMaxFrameSize)

	if err := o.handshake(); err != nil {
		_ = c.Close()
		return nil, err
	}

	go o.readLoop()

	if d := cfg.PingInterval.Time(); d > 0 && run != nil {
		o.pms = true
		run.Schedule(o.pingTask(), d, o.ping)
	}

	return o, nil
}
