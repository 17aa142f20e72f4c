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
	"bytes"
	"compress/flate"
	"io"
	"strings"

	liberr "github.com/nabbar/golib/errors"
)

// ExtensionOffer is the permessage-deflate offer sent in the upgrade request.
// Context takeover is refused on both sides: the coder state resets between
// messages, which is what the inflater implementation requires.
const ExtensionOffer = "permessage-deflate; client_no_context_takeover; server_no_context_takeover"

// deflateTail restores the flush marker the sender stripped, then terminates
// the stream with an empty stored block so the inflater observes EOF.
var deflateTail = []byte{0x00, 0x00, 0xff, 0xff, 0x01, 0x00, 0x00, 0xff, 0xff}

// AcceptExtension parses the Sec-WebSocket-Extensions response value and
// reports whether permessage-deflate is usable: the answer may carry the
// no-context-takeover flags and window-bits hints, or no parameter at all;
// any other parameter makes it unusable.
func AcceptExtension(value string) bool {
	if value == "" {
		return false
	}

	for _, ext := range strings.Split(value, ",") {
		parts := strings.Split(ext, ";")

		if strings.TrimSpace(parts[0]) != "permessage-deflate" {
			continue
		}

		usable := true

		for _, p := range parts[1:] {
			p = strings.TrimSpace(p)

			switch {
			case p == "client_no_context_takeover", p == "server_no_context_takeover":
			case strings.HasPrefix(p, "server_max_window_bits"), strings.HasPrefix(p, "client_max_window_bits"):
				// window hints are accepted: a smaller window inflates fine
			default:
				usable = false
			}
		}

		return usable
	}

	return false
}

// deflateMessage compresses one message payload and strips the trailing
// flush marker, per RFC 7692.
func deflateMessage(p []byte) ([]byte, liberr.Error) {
	var buf bytes.Buffer

	w, err := flate.NewWriter(&buf, flate.DefaultCompression)

	if err != nil {
		return nil, ErrorDeflate.Error(err)
	}

	if _, err = w.Write(p); err != nil {
		return nil, ErrorDeflate.Error(err)
	}

	if err = w.Flush(); err != nil {
		return nil, ErrorDeflate.Error(err)
	}

	out := buf.Bytes()

	if len(out) >= 4 {
		out = out[:len(out)-4]
	}

	if len(out) == 0 {
		out = []byte{0x00}
	}

	return out, nil
}

// inflateMessage decompresses one assembled message payload.
func inflateMessage(p []byte, max int64) ([]byte, liberr.Error) {
	r := flate.NewReader(io.MultiReader(bytes.NewReader(p), bytes.NewReader(deflateTail)))

	defer func() {
		_ = r.Close()
	}()

	out, err := io.ReadAll(io.LimitReader(r, max+1))

	if err != nil {
		return nil, ErrorInflate.Error(err)
	}

	if int64(len(out)) > max {
		return nil, ErrorMessageTooBig.Error(nil)
	}

	return out, nil
}
