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

// Package websocket implements RFC 6455 framing over an established
// connection: reader with mask/fragmentation/control policy, prioritized
// masked writer, ping keepalive, the close handshake, and the RFC 7692
// permessage-deflate extension without context takeover.
package websocket

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	libval "github.com/go-playground/validator/v10"
	libdur "github.com/nabbar/golib/duration"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	libtsk "github.com/nabbar/httpcall/task"
)

// MessageType tags an application message.
type MessageType uint8

const (
	// MessageText is an UTF-8 text message.
	MessageText MessageType = 1
	// MessageBinary is a binary message.
	MessageBinary MessageType = 2
)

// Close codes of RFC 6455 used by this package.
const (
	CloseNormal           = 1000
	CloseGoingAway        = 1001
	CloseProtocolError    = 1002
	CloseUnsupported      = 1003
	CloseNoStatus         = 1005
	CloseAbnormal         = 1006
	CloseInvalidPayload   = 1007
	ClosePolicyViolation  = 1008
	CloseMessageTooBig    = 1009
	CloseInternalError    = 1011
)

// Config tunes one websocket connection.
type Config struct {
	// Client selects the client framing policy: outbound frames are masked,
	// inbound frames must not be.
	Client bool `json:"client" yaml:"client" toml:"client" mapstructure:"client"`

	// MaxFrameSize caps the payload of one outbound frame; larger messages
	// are fragmented. Zero falls back to 16 KiB.
	MaxFrameSize int64 `json:"max-frame-size" yaml:"max-frame-size" toml:"max-frame-size" mapstructure:"max-frame-size" validate:"gte=0"`

	// MaxMessageSize caps one assembled inbound message. Zero means 16 MiB.
	MaxMessageSize int64 `json:"max-message-size" yaml:"max-message-size" toml:"max-message-size" mapstructure:"max-message-size" validate:"gte=0"`

	// PingInterval is the keepalive period; a missing pong within one full
	// interval fails the connection. Zero disables the keepalive.
	PingInterval libdur.Duration `json:"ping-interval,omitempty" yaml:"ping-interval,omitempty" toml:"ping-interval,omitempty" mapstructure:"ping-interval,omitempty"`

	// CloseGrace is the period granted to the peer to answer our close
	// before the connection is reported as closed abnormally. Zero means 10s.
	CloseGrace libdur.Duration `json:"close-grace,omitempty" yaml:"close-grace,omitempty" toml:"close-grace,omitempty" mapstructure:"close-grace,omitempty"`

	// Deflate enables the negotiated permessage-deflate extension.
	Deflate bool `json:"deflate" yaml:"deflate" toml:"deflate" mapstructure:"deflate"`
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
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = 16 * 1024
	}

	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 16 << 20
	}

	if o.CloseGrace <= 0 {
		o.CloseGrace = libdur.ParseDuration(10 * time.Second)
	}

	return o
}

// Conn is one framed websocket connection.
// ReadMessage is driven from one goroutine; writes are safe concurrently.
type Conn interface {
	// ReadMessage blocks for the next complete application message,
	// transparently handling control frames and fragmentation.
	ReadMessage() (MessageType, []byte, liberr.Error)

	// WriteMessage queues one application message, fragmenting it at the
	// configured frame size.
	WriteMessage(t MessageType, p []byte) liberr.Error

	// Ping sends a ping control frame; control frames jump the queue.
	Ping(payload []byte) liberr.Error

	// Close initiates (or completes) the close handshake.
	Close(code int, reason string) liberr.Error

	// CloseCode returns the close code received from the peer, or zero.
	CloseCode() int
}

// New wraps an upgraded connection rw. The runner hosts the keepalive task
// and the close-grace watchdog; log may be nil. deflate reports whether the
// permessage-deflate extension was effectively negotiated.
func New(rw io.ReadWriteCloser, cfg Config, deflate bool, run libtsk.Runner, log liblog.FuncLog) Conn {
	cfg = cfg.withDefaults()

	o := &wsc{
		c: rw,
		f: cfg,
		r: bufio.NewReaderSize(rw, 4096),
		t: run,
		l: log,
		z: deflate && cfg.Deflate,
	}

	o.wm = sync.Mutex{}

	if d := cfg.PingInterval.Time(); d > 0 && run != nil {
		run.Schedule(o.pingTask(), d, o.keepalive)
	}

	return o
}
