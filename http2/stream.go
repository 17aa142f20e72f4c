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

package http2

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"

	liberr "github.com/nabbar/golib/errors"
	libfrm "golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// stm is one live stream. The buffer and delivery state are guarded by the
// stream's own lock and condition, so the connection reader never holds the
// connection state lock while delivering bytes.
type stm struct {
	o  *con
	id uint32

	mu sync.Mutex
	cd *sync.Cond

	buf bytes.Buffer
	hdr []hpack.HeaderField
	hok bool // final response headers delivered
	fin bool // remote end of stream seen
	wnd bool // local side still intends to send data
	rst bool // one RST_STREAM was emitted
	err liberr.Error

	crd int64 // consumed bytes not yet acked to the peer

	// send and receive windows, guarded by the connection state lock
	svw int64
	rwd int64
}

func (o *stm) Id() uint32 {
	return o.id
}

// started reports whether the peer ever answered on this stream; streams that
// never started may be retried on a fresh connection after a failure.
func (o *stm) started() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.hok
}

func (o *stm) terminal() liberr.Error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.err
}

func (o *stm) WriteData(ctx context.Context, p []byte, endStream bool) liberr.Error {
	var sentEnd bool

	for len(p) > 0 {
		n, err := o.o.takeSendWindow(ctx, o, len(p))

		if err != nil {
			o.Cancel()
			return err
		}

		end := endStream && n == len(p)

		if err = o.o.writeData(o.id, end, p[:n]); err != nil {
			o.o.fail(err)
			return err
		}

		sentEnd = sentEnd || end
		p = p[n:]
	}

	if endStream {
		o.mu.Lock()
		o.wnd = false
		o.mu.Unlock()

		if !sentEnd {
			return o.o.writeData(o.id, true, nil)
		}
	}

	return nil
}

func (o *stm) ReadHeaders(ctx context.Context) ([]hpack.HeaderField, liberr.Error) {
	var stop = context.AfterFunc(ctx, func() {
		o.mu.Lock()
		o.cd.Broadcast()
		o.mu.Unlock()
	})

	defer stop()

	o.mu.Lock()
	defer o.mu.Unlock()

	for !o.hok {
		if o.err != nil {
			return nil, o.err
		}

		if o.fin {
			return nil, ErrorProtocol.Errorf("stream ended without response headers")
		}

		if err := ctx.Err(); err != nil {
			o.mu.Unlock()
			o.Cancel()
			o.mu.Lock()
			return nil, ErrorStreamCanceled.Error(err)
		}

		o.cd.Wait()
	}

	return o.hdr, nil
}

func (o *stm) Read(p []byte) (int, error) {
	o.mu.Lock()

	for o.buf.Len() == 0 {
		if o.err != nil {
			e := o.err
			o.mu.Unlock()
			return 0, e
		}

		if o.fin {
			o.mu.Unlock()
			return 0, io.EOF
		}

		o.cd.Wait()
	}

	n, _ := o.buf.Read(p)
	o.crd += int64(n)

	var ack int64

	// ack once more than half the initial window was consumed
	if o.crd > int64(o.o.f.InitialWindowSize)/2 {
		ack = o.crd
		o.crd = 0
	}

	o.mu.Unlock()

	if ack > 0 {
		o.o.m.Lock()
		o.rwd += ack
		o.o.m.Unlock()

		o.o.writeWindowUpdate(o.id, uint32(ack))
	}

	return n, nil
}

// deliverHeaders records a response header block. Interim (1xx) responses are
// discarded and the stream keeps waiting for the final block.
func (o *stm) deliverHeaders(fields []hpack.HeaderField, endStream bool) {
	var cp = append(make([]hpack.HeaderField, 0, len(fields)), fields...)

	o.mu.Lock()

	interim := false

	for _, f := range cp {
		if f.Name == ":status" {
			if s, err := strconv.Atoi(f.Value); err == nil && s >= 100 && s < 200 {
				interim = true
			}

			break
		}
	}

	if !interim {
		if o.hok {
			// a second block after the final one carries trailers; they are
			// read and discarded
		} else {
			o.hdr = cp
			o.hok = true
		}
	}

	if endStream {
		o.fin = true
	}

	o.cd.Broadcast()
	o.mu.Unlock()
}

// deliverData appends one DATA payload to the stream buffer after checking
// the receive window.
func (o *stm) deliverData(p []byte, size int64, endStream bool) liberr.Error {
	o.o.m.Lock()

	if size > o.rwd {
		o.o.m.Unlock()
		return ErrorFlowControl.Errorf(o.id)
	}

	o.rwd -= size
	o.o.m.Unlock()

	o.mu.Lock()

	if o.err == nil {
		o.buf.Write(p)
	}

	if endStream {
		o.fin = true
	}

	o.cd.Broadcast()
	o.mu.Unlock()

	return nil
}

// fail terminates every wait on the stream with err.
func (o *stm) fail(err liberr.Error) {
	o.mu.Lock()

	if o.err == nil {
		o.err = err
	}

	o.cd.Broadcast()
	o.mu.Unlock()
}

// resetOnce emits at most one RST_STREAM for this stream.
func (o *stm) resetOnce(code libfrm.ErrCode, err liberr.Error) {
	o.mu.Lock()

	if o.rst {
		o.mu.Unlock()
		return
	}

	o.rst = true

	if o.err == nil {
		o.err = err
	}

	o.cd.Broadcast()
	o.mu.Unlock()

	o.o.writeReset(o.id, code)
	o.o.removeStream(o)
}

func (o *stm) Cancel() {
	o.resetOnce(libfrm.ErrCodeCancel, ErrorStreamCanceled.Error(nil))
}

func (o *stm) Close(err error) {
	if err != nil {
		o.resetOnce(libfrm.ErrCodeCancel, ErrorStreamCanceled.Error(err))
		return
	}

	o.mu.Lock()
	done := o.fin && !o.wnd
	o.mu.Unlock()

	if !done {
		// a stream abandoned before completion is reset so the peer stops
		o.resetOnce(libfrm.ErrCodeCancel, ErrorStreamClosed.Error(nil))
		return
	}

	o.o.removeStream(o)
}
