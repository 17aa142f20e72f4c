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
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	libtsk "github.com/nabbar/httpcall/task"
	libfrm "golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

type con struct {
	c net.Conn
	f Config
	l liblog.FuncLog
	r libtsk.Runner

	fr  *libfrm.Framer
	he  *hpack.Encoder
	hbf *bytes.Buffer

	m  sync.Mutex // inbound state lock: stream map, settings, windows
	wm sync.Mutex // writer mutex: sole gate to frame emission
	wc *sync.Cond // signals window growth and shutdown, bound to m

	s    map[uint32]*stm
	nid  uint32 // next client stream id, odd, strictly increasing
	hrid uint32 // highest peer-initiated id seen, echoed in goaway
	gaw  bool   // no new streams: goaway seen or sent, or failure
	cls  bool   // torn down
	err  liberr.Error

	pmx uint32 // peer max concurrent streams
	pfs uint32 // peer max frame size
	pwd uint32 // peer initial window size for new streams
	swd int64  // connection-level send window
	crw int64  // connection-level received bytes not yet acked

	pct uint64    // ping payload counter
	png [8]byte   // payload of the ping in flight
	pip bool      // ping awaiting ack
	psn time.Time // instant the in-flight ping was sent
	pok time.Time // instant of the last ping ack
	pms bool      // keepalive enabled

	osd func()
	osf bool
}

func (o *con) log() liblog.Logger {
	if o.l != nil {
		if l := o.l(); l != nil {
			return l
		}
	}

	return nil
}

func (o *con) pingTask() string {
	return fmt.Sprintf("h2-ping-%p", o)
}

// handshake writes the client preface and our SETTINGS. The peer SETTINGS is
// applied asynchronously by the reader.
func (o *con) handshake() liberr.Error {
	o.wm.Lock()
	defer o.wm.Unlock()

	if _, err := o.c.Write([]byte(libfrm.ClientPreface)); err != nil {
		return ErrorPreface.Error(err)
	}

	err := o.fr.WriteSettings(
		libfrm.Setting{ID: libfrm.SettingEnablePush, Val: 0},
		libfrm.Setting{ID: libfrm.SettingHeaderTableSize, Val: o.f.HeaderTableSize},
		libfrm.Setting{ID: libfrm.SettingInitialWindowSize, Val: o.f.InitialWindowSize},
		libfrm.Setting{ID: libfrm.SettingMaxHeaderListSize, Val: o.f.MaxHeaderListSize},
	)

	if err != nil {
		return ErrorPreface.Error(err)
	}

	return nil
}

func (o *con) MaxConcurrentStreams() uint32 {
	o.m.Lock()
	defer o.m.Unlock()

	return o.pmx
}

func (o *con) ActiveStreams() int {
	o.m.Lock()
	defer o.m.Unlock()

	return len(o.s)
}

func (o *con) NoNewStreams() bool {
	o.m.Lock()
	defer o.m.Unlock()

	return o.gaw || o.cls
}

func (o *con) OnShutdown(fct func()) {
	o.m.Lock()
	defer o.m.Unlock()

	o.osd = fct
}

func (o *con) Healthy() bool {
	o.m.Lock()
	defer o.m.Unlock()

	if o.cls || o.gaw {
		return false
	}

	if o.pms && o.pip {
		if d := o.f.PingInterval.Time(); d > 0 && time.Since(o.psn) > d {
			return false
		}
	}

	return true
}

func (o *con) NewStream(ctx context.Context, fields []hpack.HeaderField, endStream bool) (Stream, liberr.Error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrorStreamCanceled.Error(err)
	}

	// the writer mutex also orders id allocation, so header blocks reach the
	// peer in strictly increasing stream id order
	o.wm.Lock()

	o.m.Lock()

	if o.cls {
		o.m.Unlock()
		o.wm.Unlock()
		return nil, ErrorConnShutdown.Error(o.err)
	}

	if o.gaw {
		o.m.Unlock()
		o.wm.Unlock()
		return nil, ErrorConnShutdown.Error(nil)
	}

	if uint32(len(o.s)) >= o.pmx {
		o.m.Unlock()
		o.wm.Unlock()
		return nil, ErrorTooManyStreams.Errorf(o.pmx)
	}

	s := &stm{
		o:   o,
		id:  o.nid,
		svw: int64(o.pwd),
		rwd: int64(o.f.InitialWindowSize),
		wnd: !endStream,
	}

	s.cd = sync.NewCond(&s.mu)
	o.nid += 2
	o.s[s.id] = s
	o.m.Unlock()

	if err := o.writeHeadersLocked(s.id, fields, endStream); err != nil {
		o.wm.Unlock()
		o.removeStream(s)
		o.fail(err)
		return nil, err
	}

	o.wm.Unlock()

	return s, nil
}

// writeHeadersLocked encodes fields and emits HEADERS plus CONTINUATION as
// needed. The caller holds the writer mutex.
func (o *con) writeHeadersLocked(id uint32, fields []hpack.HeaderField, endStream bool) liberr.Error {
	o.hbf.Reset()

	for _, f := range fields {
		f.Name = strings.ToLower(f.Name)

		if err := o.he.WriteField(f); err != nil {
			return ErrorHeaderEncode.Error(err)
		}
	}

	var (
		blk   = o.hbf.Bytes()
		max   = int(o.peerFrameSize())
		first = true
	)

	for first || len(blk) > 0 {
		frag := blk

		if len(frag) > max {
			frag = frag[:max]
		}

		blk = blk[len(frag):]
		end := len(blk) == 0

		var err error

		if first {
			first = false
			err = o.fr.WriteHeaders(libfrm.HeadersFrameParam{
				StreamID:      id,
				BlockFragment: frag,
				EndStream:     endStream,
				EndHeaders:    end,
			})
		} else {
			err = o.fr.WriteContinuation(id, end, frag)
		}

		if err != nil {
			return ErrorFrameWrite.Error(err)
		}
	}

	return nil
}

func (o *con) peerFrameSize() uint32 {
	o.m.Lock()
	defer o.m.Unlock()

	return o.pfs
}

func (o *con) writeReset(id uint32, code libfrm.ErrCode) {
	o.wm.Lock()
	defer o.wm.Unlock()

	if err := o.fr.WriteRSTStream(id, code); err != nil {
		if l := o.log(); l != nil {
			l.Debug("writing rst_stream", err)
		}
	}
}

func (o *con) writeWindowUpdate(id uint32, incr uint32) {
	if incr == 0 {
		return
	}

	o.wm.Lock()
	defer o.wm.Unlock()

	if err := o.fr.WriteWindowUpdate(id, incr); err != nil {
		if l := o.log(); l != nil {
			l.Debug("writing window_update", err)
		}
	}
}

// takeSendWindow reserves up to want octets from the connection and stream
// send windows, blocking while either is exhausted.
func (o *con) takeSendWindow(ctx context.Context, s *stm, want int) (int, liberr.Error) {
	var stop = context.AfterFunc(ctx, func() {
		o.m.Lock()
		o.wc.Broadcast()
		o.m.Unlock()
	})

	defer stop()

	o.m.Lock()
	defer o.m.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return 0, ErrorStreamCanceled.Error(err)
		}

		if o.cls {
			return 0, ErrorConnShutdown.Error(o.err)
		}

		if e := s.terminal(); e != nil {
			return 0, e
		}

		n := int64(want)

		if n > o.swd {
			n = o.swd
		}

		if n > s.svw {
			n = s.svw
		}

		if m := int64(o.pfs); n > m {
			n = m
		}

		if n > 0 {
			o.swd -= n
			s.svw -= n
			return int(n), nil
		}

		o.wc.Wait()
	}
}

func (o *con) writeData(id uint32, endStream bool, p []byte) liberr.Error {
	o.wm.Lock()
	defer o.wm.Unlock()

	if err := o.fr.WriteData(id, endStream, p); err != nil {
		return ErrorFrameWrite.Error(err)
	}

	return nil
}

func (o *con) removeStream(s *stm) {
	o.m.Lock()

	delete(o.s, s.id)
	empty := len(o.s) == 0
	closing := o.gaw && !o.cls

	o.m.Unlock()

	if empty && closing {
		// drained after shutdown: release the socket
		_ = o.Close()
	}
}

func (o *con) readLoop() {
	for {
		f, err := o.fr.ReadFrame()

		if err != nil {
			if se, ok := err.(libfrm.StreamError); ok {
				// per-stream decode error: reset that stream, keep the connection
				o.writeReset(se.StreamID, se.Code)

				if s := o.stream(se.StreamID); s != nil {
					s.fail(ErrorProtocol.Errorf(se.Code.String()))
					o.removeStream(s)
				}

				continue
			}

			if _, ok := err.(libfrm.ConnectionError); ok {
				o.fail(ErrorProtocol.Error(err))
			} else {
				o.fail(ErrorConnBroken.Error(err))
			}

			return
		}

		switch f := f.(type) {
		case *libfrm.MetaHeadersFrame:
			o.onHeaders(f)
		case *libfrm.DataFrame:
			o.onData(f)
		case *libfrm.RSTStreamFrame:
			o.onReset(f)
		case *libfrm.SettingsFrame:
			o.onSettings(f)
		case *libfrm.PingFrame:
			o.onPing(f)
		case *libfrm.GoAwayFrame:
			o.onGoAway(f)
		case *libfrm.WindowUpdateFrame:
			o.onWindowUpdate(f)
		case *libfrm.PushPromiseFrame:
			o.onPush(f)
		case *libfrm.PriorityFrame:
			// parsed but ignored
		}
	}
}

func (o *con) stream(id uint32) *stm {
	o.m.Lock()
	defer o.m.Unlock()

	return o.s[id]
}

func (o *con) onHeaders(f *libfrm.MetaHeadersFrame) {
	s := o.stream(f.Header().StreamID)

	if s == nil {
		return
	}

	s.deliverHeaders(f.Fields, f.StreamEnded())
}

func (o *con) onData(f *libfrm.DataFrame) {
	var (
		id   = f.Header().StreamID
		size = int64(f.Header().Length)
	)

	// connection-level window is acked on receipt
	o.m.Lock()
	o.crw += size

	if o.crw > defInitialWindow/2 {
		ack := o.crw
		o.crw = 0
		o.m.Unlock()
		o.writeWindowUpdate(0, uint32(ack))
	} else {
		o.m.Unlock()
	}

	s := o.stream(id)

	if s == nil {
		// late frames on a reset stream are expected; discarding keeps the
		// connection window honest, which the ack above already did
		return
	}

	if e := s.deliverData(f.Data(), size, f.StreamEnded()); e != nil {
		o.writeReset(id, libfrm.ErrCodeFlowControl)
		s.fail(e)
		o.removeStream(s)
	}
}

func (o *con) onReset(f *libfrm.RSTStreamFrame) {
	s := o.stream(f.Header().StreamID)

	if s == nil {
		return
	}

	switch f.ErrCode {
	case libfrm.ErrCodeRefusedStream:
		s.fail(ErrorStreamResetRefused.Error(nil))
	case libfrm.ErrCodeCancel:
		s.fail(ErrorStreamResetCancel.Error(nil))
	default:
		s.fail(ErrorStreamReset.Errorf(f.ErrCode.String()))
	}

	o.removeStream(s)
}

func (o *con) onSettings(f *libfrm.SettingsFrame) {
	if f.IsAck() {
		return
	}

	o.m.Lock()

	_ = f.ForeachSetting(func(s libfrm.Setting) error {
		switch s.ID {
		case libfrm.SettingInitialWindowSize:
			// the delta applies to the send window of every live stream
			delta := int64(s.Val) - int64(o.pwd)
			o.pwd = s.Val

			for _, st := range o.s {
				st.svw += delta
			}
		case libfrm.SettingMaxConcurrentStreams:
			o.pmx = s.Val
		case libfrm.SettingMaxFrameSize:
			o.pfs = s.Val
		case libfrm.SettingHeaderTableSize:
			o.he.SetMaxDynamicTableSize(s.Val)
		}

		return nil
	})

	o.wc.Broadcast()
	o.m.Unlock()

	o.wm.Lock()

	if err := o.fr.WriteSettingsAck(); err != nil {
		if l := o.log(); l != nil {
			l.Debug("writing settings ack", err)
		}
	}

	o.wm.Unlock()
}

func (o *con) onPing(f *libfrm.PingFrame) {
	if !f.IsAck() {
		o.wm.Lock()

		if err := o.fr.WritePing(true, f.Data); err != nil {
			if l := o.log(); l != nil {
				l.Debug("writing ping ack", err)
			}
		}

		o.wm.Unlock()
		return
	}

	o.m.Lock()
	defer o.m.Unlock()

	// an ack with an unknown payload is ignored
	if o.pip && f.Data == o.png {
		o.pip = false
		o.pok = time.Now()
	}
}

func (o *con) onGoAway(f *libfrm.GoAwayFrame) {
	o.m.Lock()

	o.gaw = true

	var late []*stm

	for id, s := range o.s {
		if id > f.LastStreamID {
			late = append(late, s)
			delete(o.s, id)
		}
	}

	o.wc.Broadcast()
	o.m.Unlock()

	// streams above the last accepted id never ran on the peer: they may be
	// retried on a fresh connection
	for _, s := range late {
		s.fail(ErrorConnShutdown.Error(nil))
	}

	o.notifyShutdown()
}

func (o *con) onWindowUpdate(f *libfrm.WindowUpdateFrame) {
	o.m.Lock()
	defer o.m.Unlock()

	if id := f.Header().StreamID; id == 0 {
		o.swd += int64(f.Increment)
	} else if s, ok := o.s[id]; ok {
		s.svw += int64(f.Increment)
	}

	o.wc.Broadcast()
}

func (o *con) onPush(f *libfrm.PushPromiseFrame) {
	o.m.Lock()

	if f.PromiseID > o.hrid {
		o.hrid = f.PromiseID
	}

	o.m.Unlock()

	// server push is declined
	o.writeReset(f.PromiseID, libfrm.ErrCodeRefusedStream)
}

// ping is the keepalive task body.
func (o *con) ping(now time.Time) time.Duration {
	o.m.Lock()

	if o.cls {
		o.m.Unlock()
		return -1
	}

	if o.pip {
		o.m.Unlock()
		o.fail(ErrorPingTimeout.Error(nil))
		return -1
	}

	o.pct++
	binary.BigEndian.PutUint64(o.png[:], o.pct)
	o.pip = true
	o.psn = now

	payload := o.png

	o.m.Unlock()

	o.wm.Lock()

	if err := o.fr.WritePing(false, payload); err != nil {
		o.wm.Unlock()
		o.fail(ErrorConnBroken.Error(err))
		return -1
	}

	o.wm.Unlock()

	return o.f.PingInterval.Time()
}

func (o *con) notifyShutdown() {
	o.m.Lock()

	fct := o.osd
	fired := o.osf
	o.osf = true

	o.m.Unlock()

	if fct != nil && !fired {
		fct()
	}
}

// fail tears the connection down with err: every stream fails, the socket
// closes, no new stream may attach.
func (o *con) fail(err liberr.Error) {
	o.m.Lock()

	if o.cls {
		o.m.Unlock()
		return
	}

	o.cls = true
	o.gaw = true
	o.err = err

	var all []*stm

	for id, s := range o.s {
		all = append(all, s)
		delete(o.s, id)
	}

	o.wc.Broadcast()
	o.m.Unlock()

	for _, s := range all {
		if s.started() {
			s.fail(ErrorConnBroken.Error(err))
		} else {
			s.fail(ErrorConnShutdown.Error(err))
		}
	}

	if o.r != nil {
		o.r.Cancel(o.pingTask())
	}

	_ = o.c.Close()

	o.notifyShutdown()
}

func (o *con) Shutdown() {
	o.m.Lock()

	if o.cls || o.gaw {
		o.m.Unlock()
		return
	}

	o.gaw = true
	last := o.hrid
	empty := len(o.s) == 0

	o.m.Unlock()

	o.wm.Lock()

	if err := o.fr.WriteGoAway(last, libfrm.ErrCodeNo, nil); err != nil {
		if l := o.log(); l != nil {
			l.Debug("writing goaway", err)
		}
	}

	o.wm.Unlock()

	o.notifyShutdown()

	if empty {
		_ = o.Close()
	}
}

func (o *con) Close() error {
	o.m.Lock()

	if o.cls {
		o.m.Unlock()
		return nil
	}

	closing := !o.gaw
	last := o.hrid

	o.m.Unlock()

	if closing {
		o.wm.Lock()
		_ = o.fr.WriteGoAway(last, libfrm.ErrCodeNo, nil)
		o.wm.Unlock()
	}

	o.fail(ErrorConnClosed.Error(nil))

	return nil
}
