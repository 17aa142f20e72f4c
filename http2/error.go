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

import "github.com/nabbar/golib/errors"

const (
	ErrorValidatorError errors.CodeError = iota + errors.MinAvailable + 400
	ErrorPreface
	ErrorProtocol
	ErrorHeaderEncode
	ErrorFrameWrite
	ErrorFlowControl
	ErrorConnShutdown
	ErrorConnBroken
	ErrorConnClosed
	ErrorTooManyStreams
	ErrorStreamReset
	ErrorStreamResetRefused
	ErrorStreamResetCancel
	ErrorStreamCanceled
	ErrorStreamClosed
	ErrorPingTimeout
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
		return "http2: invalid config"
	case ErrorPreface:
		return "cannot send connection preface"
	case ErrorProtocol:
		return "http2 protocol violation: %s"
	case ErrorHeaderEncode:
		return "cannot encode header block"
	case ErrorFrameWrite:
		return "cannot write frame on connection"
	case ErrorFlowControl:
		return "flow control window exceeded on stream %d"
	case ErrorConnShutdown:
		return "connection stopped accepting new streams"
	case ErrorConnBroken:
		return "connection failed while streams were running"
	case ErrorConnClosed:
		return "connection closed"
	case ErrorTooManyStreams:
		return "peer concurrent stream limit %d reached"
	case ErrorStreamReset:
		return "stream reset by peer with code %s"
	case ErrorStreamResetRefused:
		return "stream refused by peer before processing"
	case ErrorStreamResetCancel:
		return "stream canceled by peer"
	case ErrorStreamCanceled:
		return "stream canceled"
	case ErrorStreamClosed:
		return "stream closed before completion"
	case ErrorPingTimeout:
		return "keepalive ping not acknowledged within interval"
	}

	return ""
}
