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

package request

import (
	"crypto/tls"
	"io"
	"strings"
	"time"

	libhdr "github.com/nabbar/httpcall/header"
)

// Response is the result of one exchange or of the cache layer.
//
// Body is a single-pass stream and must be closed by the consumer. Network and
// Cached reference the sub-responses this response was assembled from; their
// bodies are always stripped.
type Response struct {
	Status int
	Reason string
	Proto  Protocol
	Header libhdr.Header
	Body   io.ReadCloser

	// TLS holds the handshake metadata when the exchange ran over TLS.
	TLS *tls.ConnectionState

	Request Request
	Network *Response
	Cached  *Response

	// Prior is the stripped response of the previous attempt of the same
	// call, when a follow-up produced this one.
	Prior *Response

	// SentAt is the instant the request headers left the client,
	// ReceivedAt the instant the response headers were fully read.
	// Both feed the cache age computation.
	SentAt     time.Time
	ReceivedAt time.Time
}

// Challenge is one authentication challenge carried by a 401 or 407 response.
type Challenge struct {
	Scheme string
	Realm  string
}

func (o *Response) IsSuccess() bool {
	return o.Status >= 200 && o.Status < 300
}

func (o *Response) IsRedirect() bool {
	switch o.Status {
	case 300, 301, 302, 303, 307, 308:
		return true
	}

	return false
}

// Close drains nothing and closes the body stream if any.
// Closing is idempotent.
func (o *Response) Close() error {
	if o.Body == nil {
		return nil
	}

	b := o.Body
	o.Body = nil

	return b.Close()
}

// Strip returns a copy without body and without sub-responses, suitable for
// keeping as Network / Cached back reference.
func (o *Response) Strip() *Response {
	if o == nil {
		return nil
	}

	var res = *o
	res.Body = nil
	res.Network = nil
	res.Cached = nil
	res.Prior = nil

	return &res
}

// Challenges parses the WWW-Authenticate (401) or Proxy-Authenticate (407)
// fields of the response. Other statuses return an empty list.
func (o *Response) Challenges() []Challenge {
	var name string

	switch o.Status {
	case 401:
		name = "WWW-Authenticate"
	case 407:
		name = "Proxy-Authenticate"
	default:
		return nil
	}

	var res = make([]Challenge, 0)

	for _, v := range o.Header.Values(name) {
		res = append(res, parseChallenge(v)...)
	}

	return res
}

func parseChallenge(v string) []Challenge {
	var res = make([]Challenge, 0)

	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)

		if part == "" {
			continue
		}

		if idx := strings.IndexByte(part, ' '); idx < 0 {
			if !strings.Contains(part, "=") {
				res = append(res, Challenge{Scheme: part})
			} else if len(res) > 0 {
				res[len(res)-1].Realm = challengeRealm(part)
			}
		} else {
			c := Challenge{Scheme: part[:idx]}
			c.Realm = challengeRealm(strings.TrimSpace(part[idx+1:]))
			res = append(res, c)
		}
	}

	return res
}

func challengeRealm(p string) string {
	if !strings.HasPrefix(strings.ToLower(p), "realm=") {
		return ""
	}

	return strings.Trim(p[len("realm="):], `"`)
}
