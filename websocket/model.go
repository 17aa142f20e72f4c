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

package websocket

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	libtsk "github.com/nabbar/httpcall/task"
)

type wsc struct {
	c io.ReadWriteCloser
	f Config
	r *bufio.Reader
	t libtsk.Runner
	l liblog.FuncLog
	z bool // permessage-deflate active

	wm sync.Mutex // write mutex: one frame at a time, controls slip between fragments
	sm sync.Mutex // close and keepalive state

	snt bool // close frame sent
	rcv bool // close frame received
	cod int  // peer close code
	ded bool // socket torn down
	err liberr.Error

	pip bool   // ping awaiting pong
	pct uint64 // ping payload counter
}

func (o *wsc) log() liblog.Logger {
	if o.l != nil {
		if l := o.l(); l != nil {
			return l
		}
	}

	return nil
}

func (o *wsc) pingTask() string {
	return fmt.Sprintf("ws-ping-%p", o)
}

func (o *wsc) graceTask() string {
	return fmt.Sprintf("ws-grace-%p", o)
}

func (o *wsc) CloseCode() int {
	o.sm.Lock()
	defer o.sm.Unlock()

	return o.cod
}

// fail tears the connection down with err and best-effort sends a close
// frame carrying code, unless code is one that must not appear on the wire.
func (o *wsc) fail(code int, err liberr.Error) liberr.Error {
	o.sm.Lock()

	if o.ded {
		e := o.err
		o.sm.Unlock()
		return e
	}

	o.ded = true
	o.err = err
	sent := o.snt
	o.snt = true

	o.sm.Unlock()

	if !sent && validCloseCode(code) {
		_ = o.writeControl(opClose, closePayload(code, ""))
	}

	o.teardown()

	return err
}

func (o *wsc) teardown() {
	if o.t != nil {
		o.t.Cancel(o.pingTask())
		o.t.Cancel(o.graceTask())
	}

	_ = o.c.Close()
}

func (o *wsc) terminal() liberr.Error {
	o.sm.Lock()
	defer o.sm.Unlock()

	return o.err
}

// keepalive is the ping task body.
func (o *wsc) keepalive(now time.Time) time.Duration {
	o.sm.Lock()

	if o.ded || o.snt {
		o.sm.Unlock()
		return -1
	}

	if o.pip {
		o.sm.Unlock()
		_ = o.fail(CloseAbnormal, ErrorPingTimeout.Error(nil))
		return -1
	}

	o.pct++
	o.pip = true

	var p [8]byte
	binary.BigEndian.PutUint64(p[:], o.pct)

	o.sm.Unlock()

	if err := o.writeControl(opPing, p[:]); err != nil {
		_ = o.fail(0, err)
		return -1
	}

	return o.f.PingInterval.Time()
}

// grace is the close watchdog body: the peer must complete the handshake
// within the grace period.
func (o *wsc) grace(now time.Time) time.Duration {
	o.sm.Lock()
	done := o.rcv || o.ded
	o.sm.Unlock()

	if !done {
		_ = o.fail(0, ErrorClosedAbnormally.Errorf(CloseAbnormal))
	}

	return -1
}

func (o *wsc) Ping(payload []byte) liberr.Error {
	if len(payload) > maxControlPayload {
		return ErrorControlTooLong.Error(nil)
	}

	return o.writeControl(opPing, payload)
}

func (o *wsc) Close(code int, reason string) liberr.Error {
	if code != 0 && !validCloseCode(code) {
		return ErrorCloseCode.Errorf(code)
	}

	o.sm.Lock()

	if o.snt || o.ded {
		o.sm.Unlock()
		return nil
	}

	o.snt = true
	recv := o.rcv

	o.sm.Unlock()

	err := o.writeControl(opClose, closePayload(code, reason))

	if recv {
		// the peer already closed: the handshake is complete
		o.sm.Lock()
		o.ded = true
		o.sm.Unlock()
		o.teardown()
		return err
	}

	if o.t != nil {
		o.t.Schedule(o.graceTask(), o.f.CloseGrace.Time(), o.grace)
	}

	return err
}

// writeControl emits one control frame ahead of any queued fragments.
func (o *wsc) writeControl(op byte, payload []byte) liberr.Error {
	if len(payload) > maxControlPayload {
		return ErrorControlTooLong.Error(nil)
	}

	return o.writeFrame(true, false, op, payload)
}

func (o *wsc) WriteMessage(t MessageType, p []byte) liberr.Error {
	if e := o.terminal(); e != nil {
		return e
	}

	o.sm.Lock()

	if o.snt {
		o.sm.Unlock()
		return ErrorClosedLocal.Error(nil)
	}

	o.sm.Unlock()

	var (
		op   byte
		rsv1 bool
		err  liberr.Error
	)

	switch t {
	case MessageText:
		op = opText
	case MessageBinary:
		op = opBinary
	default:
		return ErrorMessageType.Errorf(int(t))
	}

	if o.z {
		if p, err = deflateMessage(p); err != nil {
			return err
		}

		rsv1 = true
	}

	// fragment to the configured frame size; control frames may slip in
	// between fragments since the mutex is taken per frame
	var first = true

	for first || len(p) > 0 {
		n := int64(len(p))

		if n > o.f.MaxFrameSize {
			n = o.f.MaxFrameSize
		}

		var (
			frag = p[:n]
			fin  = int64(len(p)) == n
		)

		if err = o.writeFrame(fin, rsv1 && first, opOrCont(op, first), frag); err != nil {
			return err
		}

		p = p[n:]
		first = false
	}

	return nil
}

func opOrCont(op byte, first bool) byte {
	if first {
		return op
	}

	return opContinuation
}

func (o *wsc) writeFrame(fin bool, rsv1 bool, op byte, payload []byte) liberr.Error {
	var (
		key [4]byte
		hdr = make([]byte, 0, 14)
	)

	if o.f.Client {
		if _, err := rand.Read(key[:]); err != nil {
			return ErrorFrameWrite.Error(err)
		}
	}

	hdr = writeFrameHeader(hdr, fin, rsv1, op, o.f.Client, key, int64(len(payload)))

	o.wm.Lock()
	defer o.wm.Unlock()

	if _, err := o.c.Write(hdr); err != nil {
		return ErrorFrameWrite.Error(err)
	}

	if len(payload) == 0 {
		return nil
	}

	if o.f.Client {
		// the shared payload must not be mutated: mask a copy
		cp := append(make([]byte, 0, len(payload)), payload...)
		maskBytes(key, 0, cp)
		payload = cp
	}

	if _, err := o.c.Write(payload); err != nil {
		return ErrorFrameWrite.Error(err)
	}

	return nil
}

func closePayload(code int, reason string) []byte {
	if code == 0 {
		return nil
	}

	var p = make([]byte, 2, 2+len(reason))

	binary.BigEndian.PutUint16(p, uint16(code))

	return append(p, reason...)
}

func (o *wsc) ReadMessage() (MessageType, []byte, liberr.Error) {
	var (
		msg  []byte
		op   byte
		comp bool
	)

	for {
		if e := o.terminal(); e != nil {
			return 0, nil, e
		}

		h, err := readFrameHeader(o.r)

		if err != nil {
			o.sm.Lock()
			abnormal := o.snt && !o.rcv
			o.sm.Unlock()

			if abnormal {
				// the peer vanished instead of answering our close
				return 0, nil, o.fail(0, ErrorClosedAbnormally.Errorf(CloseAbnormal))
			}

			return 0, nil, o.fail(0, err)
		}

		if err = o.checkHeader(h, op != 0); err != nil {
			return 0, nil, o.fail(CloseProtocolError, err)
		}

		payload, err := o.readPayload(h)

		if err != nil {
			return 0, nil, o.fail(0, err)
		}

		if isControl(h.opcode) {
			var done bool

			if done, err = o.control(h.opcode, payload); err != nil {
				return 0, nil, err
			} else if done {
				return 0, nil, o.terminal()
			}

			continue
		}

		// data frames
		if op == 0 {
			op = h.opcode
			comp = h.rsv1
		}

		msg = append(msg, payload...)

		if int64(len(msg)) > o.f.MaxMessageSize {
			return 0, nil, o.fail(CloseMessageTooBig, ErrorMessageTooBig.Error(nil))
		}

		if !h.fin {
			continue
		}

		if comp {
			if msg, err = inflateMessage(msg, o.f.MaxMessageSize); err != nil {
				return 0, nil, o.fail(CloseProtocolError, err)
			}
		}

		if op == opText && !utf8.Valid(msg) {
			return 0, nil, o.fail(CloseInvalidPayload, ErrorInvalidUtf8.Error(nil))
		}

		return MessageType(op), msg, nil
	}
}

// checkHeader applies the reader policy of one frame header.
func (o *wsc) checkHeader(h frameHeader, assembling bool) liberr.Error {
	if h.rsv2 || h.rsv3 {
		return ErrorProtocol.Errorf("reserved bits set")
	}

	if h.rsv1 {
		if !o.z {
			return ErrorProtocol.Errorf("rsv1 without negotiated compression")
		}

		if assembling || h.opcode == opContinuation || isControl(h.opcode) {
			return ErrorProtocol.Errorf("rsv1 on continuation or control frame")
		}
	}

	// a client reads unmasked frames, a server reads masked ones
	if o.f.Client == h.masked {
		return ErrorMaskPolicy.Error(nil)
	}

	if isControl(h.opcode) {
		if !h.fin {
			return ErrorProtocol.Errorf("fragmented control frame")
		}

		if h.length > maxControlPayload {
			return ErrorProtocol.Errorf("oversized control frame")
		}

		return nil
	}

	switch h.opcode {
	case opContinuation:
		if !assembling {
			return ErrorProtocol.Errorf("continuation without message")
		}
	case opText, opBinary:
		if assembling {
			return ErrorProtocol.Errorf("interleaved data frame inside message")
		}
	default:
		return ErrorProtocol.Errorf("unknown opcode")
	}

	return nil
}

func (o *wsc) readPayload(h frameHeader) ([]byte, liberr.Error) {
	if h.length == 0 {
		return nil, nil
	}

	var p = make([]byte, h.length)

	if _, err := io.ReadFull(o.r, p); err != nil {
		return nil, ErrorFrameRead.Error(err)
	}

	if h.masked {
		maskBytes(h.key, 0, p)
	}

	return p, nil
}

// control handles one control frame. done reports that the close handshake
// completed and ReadMessage must return.
func (o *wsc) control(op byte, payload []byte) (bool, liberr.Error) {
	switch op {
	case opPing:
		// a pong echoing the ping payload jumps the queue
		if err := o.writeControl(opPong, payload); err != nil {
			return true, err
		}

		return false, nil

	case opPong:
		o.sm.Lock()
		o.pip = false
		o.sm.Unlock()

		return false, nil

	case opClose:
		code, reason, err := parseClose(payload)

		if err != nil {
			return true, o.fail(CloseProtocolError, err)
		}

		_ = reason

		o.sm.Lock()
		o.rcv = true
		o.cod = code
		sent := o.snt
		o.snt = true
		o.sm.Unlock()

		if !sent {
			_ = o.writeControl(opClose, closePayload(code, ""))
		}

		o.sm.Lock()
		o.ded = true

		if o.err == nil {
			o.err = ErrorClosedByPeer.Errorf(code)
		}

		o.sm.Unlock()

		o.teardown()

		return true, nil
	}

	return false, nil
}

// parseClose decodes a CLOSE payload: empty, or a big-endian code followed
// by an UTF-8 reason.
func parseClose(payload []byte) (int, string, liberr.Error) {
	if len(payload) == 0 {
		return CloseNoStatus, "", nil
	}

	if len(payload) == 1 {
		return 0, "", ErrorProtocol.Errorf("one-byte close payload")
	}

	code := int(binary.BigEndian.Uint16(payload[:2]))

	if !validCloseCode(code) {
		return 0, "", ErrorCloseCode.Errorf(code)
	}

	reason := payload[2:]

	if !utf8.Valid(reason) {
		return 0, "", ErrorInvalidUtf8.Error(nil)
	}

	return code, string(reason), nil
}
