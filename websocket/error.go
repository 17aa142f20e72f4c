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

import "github.com/nabbar/golib/errors"

const (
	ErrorValidatorError errors.CodeError = iota + errors.MinAvailable + 500
	ErrorProtocol
	ErrorFrameRead
	ErrorFrameWrite
	ErrorMaskPolicy
	ErrorControlTooLong
	ErrorMessageType
	ErrorMessageTooBig
	ErrorInvalidUtf8
	ErrorCloseCode
	ErrorClosedByPeer
	ErrorClosedLocal
	ErrorClosedAbnormally
	ErrorPingTimeout
	ErrorDeflate
	ErrorInflate
	ErrorUpgrade
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorValidatorError)
	errors.RegisterIdFctMessage(ErrorValidatorError, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case ErrorValidatorError:
		return "websocket: invalid config"
	case ErrorProtocol:
		return "websocket framing violation: %s"
	case ErrorFrameRead:
		return "cannot read websocket frame"
	case ErrorFrameWrite:
		return "cannot write websocket frame"
	case ErrorMaskPolicy:
		return "frame mask bit violates side policy"
	case ErrorControlTooLong:
		return "control frame payload exceeds 125 octets"
	case ErrorMessageType:
		return "unsupported message type %d"
	case ErrorMessageTooBig:
		return "assembled message exceeds size limit"
	case ErrorInvalidUtf8:
		return "text payload is not valid utf-8"
	case ErrorCloseCode:
		return "close code %d must not appear on the wire"
	case ErrorClosedByPeer:
		return "connection closed by peer with code %d"
	case ErrorClosedLocal:
		return "connection closing: no further message may be sent"
	case ErrorClosedAbnormally:
		return "peer did not complete the close handshake (code %d)"
	case ErrorPingTimeout:
		return "pong not received within ping interval"
	case ErrorDeflate:
		return "cannot compress outbound message"
	case ErrorInflate:
		return "cannot decompress inbound message"
	case ErrorUpgrade:
		return "websocket upgrade handshake failed: %s"
	}

	return ""
}
