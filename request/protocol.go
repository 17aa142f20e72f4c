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

import "strings"

// Protocol is the wire protocol tag negotiated for an exchange.
type Protocol uint8

const (
	ProtocolUnknown Protocol = iota
	// ProtocolHTTP10 is a plaintext or TLS HTTP/1.0 exchange.
	ProtocolHTTP10
	// ProtocolHTTP11 is a plaintext or TLS HTTP/1.1 exchange.
	ProtocolHTTP11
	// ProtocolH2 is HTTP/2 over TLS, negotiated with ALPN.
	ProtocolH2
	// ProtocolH2C is HTTP/2 over cleartext TCP with prior knowledge.
	ProtocolH2C
)

// ParseProtocol returns the Protocol matching the given token, or ProtocolUnknown.
func ParseProtocol(s string) Protocol {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "http/1.0":
		return ProtocolHTTP10
	case "http/1.1":
		return ProtocolHTTP11
	case "h2":
		return ProtocolH2
	case "h2c", "h2 prior knowledge":
		return ProtocolH2C
	}

	return ProtocolUnknown
}

func (p Protocol) String() string {
	switch p {
	case ProtocolHTTP10:
		return "http/1.0"
	case ProtocolHTTP11:
		return "http/1.1"
	case ProtocolH2:
		return "h2"
	case ProtocolH2C:
		return "h2c"
	}

	return ""
}

// Alpn returns the ALPN protocol identifier to offer during the TLS handshake.
// ProtocolH2C and ProtocolHTTP10 have no ALPN identifier and return an empty string.
func (p Protocol) Alpn() string {
	switch p {
	case ProtocolHTTP11:
		return "http/1.1"
	case ProtocolH2:
		return "h2"
	}

	return ""
}

// Multiplexed returns true when the protocol carries concurrent exchanges
// over a single connection.
func (p Protocol) Multiplexed() bool {
	return p == ProtocolH2 || p == ProtocolH2C
}
