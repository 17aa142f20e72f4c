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

package http1

import "github.com/nabbar/golib/errors"

const (
	ErrorRequestWrite errors.CodeError = iota + errors.MinAvailable + 300
	ErrorBodyShort
	ErrorResponseRead
	ErrorStatusLine
	ErrorHeaderParse
	ErrorHeaderTooLarge
	ErrorObsFold
	ErrorContentLength
	ErrorChunkEncoding
	ErrorReadTimeout
	ErrorWriteTimeout
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorRequestWrite)
	errors.RegisterIdFctMessage(ErrorRequestWrite, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case ErrorRequestWrite:
		return "cannot write request on connection"
	case ErrorBodyShort:
		return "request body ended early: announced %d bytes, wrote %d"
	case ErrorResponseRead:
		return "cannot read response from connection"
	case ErrorStatusLine:
		return "malformed status line '%s'"
	case ErrorHeaderParse:
		return "malformed header field '%s'"
	case ErrorHeaderTooLarge:
		return "response header block exceeds limit"
	case ErrorObsFold:
		return "obsolete line folding in response header"
	case ErrorContentLength:
		return "invalid content-length '%s'"
	case ErrorChunkEncoding:
		return "invalid chunked encoding"
	case ErrorReadTimeout:
		return "read exceeded its inter-byte bound"
	case ErrorWriteTimeout:
		return "write exceeded its inter-byte bound"
	}

	return ""
}
