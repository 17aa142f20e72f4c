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

package http2_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	liberr "github.com/nabbar/golib/errors"
	libht2 "github.com/nabbar/httpcall/http2"
	libtsk "github.com/nabbar/httpcall/task"
	frame "golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// fakePeer is a scripted server side of one framed connection.
type fakePeer struct {
	c   net.Conn
	fr  *frame.Framer
	enc *hpack.Encoder
	buf *bytes.Buffer
}

// start listens on loopback, dials the client connection and runs script on
// the accepted server side after the preface and SETTINGS exchange.
func start(t *testing.T, script func(p *fakePeer)) (net.Conn, func()) {
	t.Helper()

	lst, err := net.Listen("tcp", "127.0.0.1:0")

	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	go func() {
		srv, aerr := lst.Accept()

		if aerr != nil {
			return
		}

		var (
			buf = bytes.NewBuffer(nil)
			fr  = frame.NewFramer(srv, srv)
		)

		fr.ReadMetaHeaders = hpack.NewDecoder(4096, nil)

		p := &fakePeer{
			c:   srv,
			fr:  fr,
			enc: hpack.NewEncoder(buf),
			buf: buf,
		}

		// client preface
		pre := make([]byte, len(frame.ClientPreface))

		if _, rerr := io.ReadFull(srv, pre); rerr != nil {
			return
		}

		// client SETTINGS
		if _, rerr := fr.ReadFrame(); rerr != nil {
			return
		}

		_ = fr.WriteSettings()
		_ = fr.WriteSettingsAck()

		script(p)
	}()

	cli, err := net.Dial("tcp", lst.Addr().String())

	if err != nil {
		t.Fatalf("dialing: %v", err)
	}

	return cli, func() {
		_ = cli.Close()
		_ = lst.Close()
	}
}

// waitHeaders reads frames until the request header block of one stream.
func (p *fakePeer) waitHeaders() *frame.MetaHeadersFrame {
	for {
		f, err := p.fr.ReadFrame()

		if err != nil {
			return nil
		}

		if mh, ok := f.(*frame.MetaHeadersFrame); ok {
			return mh
		}
	}
}

func (p *fakePeer) respond(streamID uint32, status string, body string) {
	p.buf.Reset()
	_ = p.enc.WriteField(hpack.HeaderField{Name: ":status", Value: status})
	_ = p.enc.WriteField(hpack.HeaderField{Name: "content-type", Value: "text/plain"})

	_ = p.fr.WriteHeaders(frame.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: p.buf.Bytes(),
		EndHeaders:    true,
		EndStream:     body == "",
	})

	if body != "" {
		_ = p.fr.WriteData(streamID, true, []byte(body))
	}
}

func reqFields() []hpack.HeaderField {
	return []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "http"},
		{Name: ":authority", Value: "peer.test"},
		{Name: ":path", Value: "/"},
	}
}

func TestRoundTrip(t *testing.T) {
	cli, cnl := start(t, func(p *fakePeer) {
		mh := p.waitHeaders()

		if mh == nil {
			return
		}

		p.respond(mh.Header().StreamID, "200", "hello")
	})

	defer cnl()

	run := libtsk.New()

	defer func() {
		_ = run.Close()
	}()

	c, err := libht2.New(cli, libht2.Config{}, run, nil)

	if err != nil {
		t.Fatalf("handshake: %v", err)
	}

	defer func() {
		_ = c.Close()
	}()

	s, err := c.NewStream(context.Background(), reqFields(), true)

	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}

	if s.Id() != 1 {
		t.Fatalf("first client stream must be 1, got %d", s.Id())
	}

	fields, err := s.ReadHeaders(context.Background())

	if err != nil {
		t.Fatalf("reading response headers: %v", err)
	}

	var status string

	for _, f := range fields {
		if f.Name == ":status" {
			status = f.Value
		}
	}

	if status != "200" {
		t.Fatalf("expected :status 200, got %q", status)
	}

	p, rerr := io.ReadAll(readerOf(s))

	if rerr != nil || string(p) != "hello" {
		t.Fatalf("body mismatch: %q %v", p, rerr)
	}

	s.Close(nil)
}

func TestStreamIdsIncrease(t *testing.T) {
	cli, cnl := start(t, func(p *fakePeer) {
		for {
			mh := p.waitHeaders()

			if mh == nil {
				return
			}

			p.respond(mh.Header().StreamID, "204", "")
		}
	})

	defer cnl()

	c, err := libht2.New(cli, libht2.Config{}, nil, nil)

	if err != nil {
		t.Fatalf("handshake: %v", err)
	}

	defer func() {
		_ = c.Close()
	}()

	s1, err := c.NewStream(context.Background(), reqFields(), true)

	if err != nil {
		t.Fatalf("first stream: %v", err)
	}

	s2, err := c.NewStream(context.Background(), reqFields(), true)

	if err != nil {
		t.Fatalf("second stream: %v", err)
	}

	if s1.Id() != 1 || s2.Id() != 3 {
		t.Fatalf("client ids must be odd and increasing: %d %d", s1.Id(), s2.Id())
	}

	s1.Close(nil)
	s2.Close(nil)
}

func TestGoAwayFailsLateStreams(t *testing.T) {
	cli, cnl := start(t, func(p *fakePeer) {
		mh := p.waitHeaders()

		if mh == nil {
			return
		}

		// the stream was never accepted: last good id is zero
		_ = p.fr.WriteGoAway(0, frame.ErrCodeNo, nil)
	})

	defer cnl()

	c, err := libht2.New(cli, libht2.Config{}, nil, nil)

	if err != nil {
		t.Fatalf("handshake: %v", err)
	}

	defer func() {
		_ = c.Close()
	}()

	s, err := c.NewStream(context.Background(), reqFields(), true)

	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}

	_, err = s.ReadHeaders(context.Background())

	if err == nil {
		t.Fatal("stream above the goaway id must fail")
	}

	if !liberr.Has(err, libht2.ErrorConnShutdown) {
		t.Fatalf("expected connection-shutdown, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)

	for !c.NoNewStreams() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if !c.NoNewStreams() {
		t.Fatal("goaway must forbid new streams")
	}

	if _, err = c.NewStream(context.Background(), reqFields(), true); err == nil {
		t.Fatal("new stream after goaway must fail")
	}
}

func TestRefusedStream(t *testing.T) {
	cli, cnl := start(t, func(p *fakePeer) {
		mh := p.waitHeaders()

		if mh == nil {
			return
		}

		_ = p.fr.WriteRSTStream(mh.Header().StreamID, frame.ErrCodeRefusedStream)
	})

	defer cnl()

	c, err := libht2.New(cli, libht2.Config{}, nil, nil)

	if err != nil {
		t.Fatalf("handshake: %v", err)
	}

	defer func() {
		_ = c.Close()
	}()

	s, err := c.NewStream(context.Background(), reqFields(), true)

	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}

	_, err = s.ReadHeaders(context.Background())

	if err == nil || !liberr.Has(err, libht2.ErrorStreamResetRefused) {
		t.Fatalf("expected refused-stream, got %v", err)
	}
}

func TestPeerSettingsApplied(t *testing.T) {
	cli, cnl := start(t, func(p *fakePeer) {
		_ = p.fr.WriteSettings(frame.Setting{
			ID:  frame.SettingMaxConcurrentStreams,
			Val: 7,
		})

		// hold the connection open until the client closes
		for {
			if _, err := p.fr.ReadFrame(); err != nil {
				return
			}
		}
	})

	defer cnl()

	c, err := libht2.New(cli, libht2.Config{}, nil, nil)

	if err != nil {
		t.Fatalf("handshake: %v", err)
	}

	defer func() {
		_ = c.Close()
	}()

	deadline := time.Now().Add(2 * time.Second)

	for c.MaxConcurrentStreams() != 7 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if got := c.MaxConcurrentStreams(); got != 7 {
		t.Fatalf("peer setting not applied: %d", got)
	}
}

func TestCancelResetsOnce(t *testing.T) {
	var resets = make(chan frame.ErrCode, 4)

	cli, cnl := start(t, func(p *fakePeer) {
		for {
			f, err := p.fr.ReadFrame()

			if err != nil {
				return
			}

			if rst, ok := f.(*frame.RSTStreamFrame); ok {
				resets <- rst.ErrCode
			}
		}
	})

	defer cnl()

	c, err := libht2.New(cli, libht2.Config{}, nil, nil)

	if err != nil {
		t.Fatalf("handshake: %v", err)
	}

	defer func() {
		_ = c.Close()
	}()

	s, err := c.NewStream(context.Background(), reqFields(), true)

	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}

	s.Cancel()
	s.Cancel()
	s.Close(io.ErrClosedPipe)

	select {
	case code := <-resets:
		if code != frame.ErrCodeCancel {
			t.Fatalf("expected CANCEL, got %v", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no rst_stream observed")
	}

	select {
	case <-resets:
		t.Fatal("rst_stream must be emitted exactly once")
	case <-time.After(200 * time.Millisecond):
	}
}

// readerOf adapts a stream to io.Reader for ReadAll.
func readerOf(s libht2.Stream) io.Reader {
	return readerFunc(func(p []byte) (int, error) {
		return s.Read(p)
	})
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) {
	return f(p)
}
