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
	"context"
	"crypto/rand"
	"crypto/sha1"
	"crypto/tls"
	"encoding/base64"
	"net"
	"strings"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	libadr "github.com/nabbar/httpcall/address"
	libhdr "github.com/nabbar/httpcall/header"
	libht1 "github.com/nabbar/httpcall/http1"
	librqs "github.com/nabbar/httpcall/request"
	libtsk "github.com/nabbar/httpcall/task"
)

// acceptGUID is the fixed GUID of the Sec-WebSocket-Accept computation.
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0D21E85D"

// Dial opens a websocket connection to path on adr: DNS, TCP, TLS when the
// address is secure, then the RFC 6455 upgrade handshake. The upgraded
// connection is never pooled. The returned response is the 101 handshake
// answer; its Body is nil.
func Dial(ctx context.Context, cfg Config, adr *libadr.Address, path string, hdr libhdr.Header, run libtsk.Runner, log liblog.FuncLog) (Conn, *librqs.Response, liberr.Error) {
	cfg.Client = true

	sock, err := dialAddress(ctx, adr)

	if err != nil {
		return nil, nil, err
	}

	key, err := nonce()

	if err != nil {
		_ = sock.Close()
		return nil, nil, err
	}

	if hdr == nil {
		hdr = libhdr.New()
	} else {
		hdr = hdr.Clone()
	}

	hdr.Set("Host", adr.HostPort())
	hdr.Set("Upgrade", "websocket")
	hdr.Set("Connection", "Upgrade")
	hdr.Set("Sec-WebSocket-Key", key)
	hdr.Set("Sec-WebSocket-Version", "13")

	if cfg.Deflate {
		hdr.Set("Sec-WebSocket-Extensions", ExtensionOffer)
	}

	if path == "" {
		path = "/"
	}

	cdc := libht1.New(sock, 0, 0)

	if e := cdc.WriteHead("GET", path, hdr); e != nil {
		_ = sock.Close()
		return nil, nil, e
	}

	rsp, e := cdc.ReadResponse("GET", nil)

	if e != nil {
		_ = sock.Close()
		return nil, nil, e
	}

	if e = checkUpgrade(rsp, key); e != nil {
		_ = sock.Close()
		return nil, nil, e
	}

	deflate := cfg.Deflate && AcceptExtension(rsp.Header.Get("Sec-WebSocket-Extensions"))

	return New(sock, cfg, deflate, run, log), rsp, nil
}

func dialAddress(ctx context.Context, adr *libadr.Address) (net.Conn, liberr.Error) {
	ips, err := adr.Dns().Lookup(ctx, adr.Host())

	if err != nil {
		return nil, err
	}

	var (
		d    net.Dialer
		last error
	)

	for _, ip := range ips {
		rt := libadr.Route{Addr: adr, IP: ip, Port: adr.Port()}

		sock, derr := d.DialContext(ctx, "tcp", rt.SocketAddr())

		if derr != nil {
			last = derr
			continue
		}

		if !adr.Secure() {
			return sock, nil
		}

		var cfg *tls.Config

		if t := adr.Tls(); t != nil {
			cfg = t.TLS(adr.Host())
		}

		if cfg == nil {
			cfg = &tls.Config{}
		} else {
			cfg = cfg.Clone()
		}

		if cfg.ServerName == "" {
			cfg.ServerName = adr.Host()
		}

		// the upgrade runs over http/1.1 only
		cfg.NextProtos = []string{"http/1.1"}

		tc := tls.Client(sock, cfg)

		if herr := tc.HandshakeContext(ctx); herr != nil {
			_ = sock.Close()
			last = herr
			continue
		}

		return tc, nil
	}

	e := ErrorUpgrade.Errorf("no reachable address")
	e.Add(last)

	return nil, e
}

func nonce() (string, liberr.Error) {
	var p [16]byte

	if _, err := rand.Read(p[:]); err != nil {
		return "", ErrorUpgrade.Errorf("nonce generation")
	}

	return base64.StdEncoding.EncodeToString(p[:]), nil
}

func checkUpgrade(rsp *librqs.Response, key string) liberr.Error {
	if rsp.Status != 101 {
		return ErrorUpgrade.Errorf("unexpected status " + rsp.Reason)
	}

	if !strings.EqualFold(rsp.Header.Get("Upgrade"), "websocket") {
		return ErrorUpgrade.Errorf("missing upgrade token")
	}

	if !strings.EqualFold(rsp.Header.Get("Connection"), "upgrade") {
		return ErrorUpgrade.Errorf("missing connection token")
	}

	h := sha1.Sum([]byte(key + acceptGUID))

	if rsp.Header.Get("Sec-WebSocket-Accept") != base64.StdEncoding.EncodeToString(h[:]) {
		return ErrorUpgrade.Errorf("accept key mismatch")
	}

	return nil
}
