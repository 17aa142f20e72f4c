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

import "github.com/nabbar/golib/errors"

const (
	ErrorMethodInvalid errors.CodeError = iota + errors.MinAvailable
	ErrorBodyNotAllowed
	ErrorBodyRequired
	ErrorBodyRead
	ErrorBodyConsumed
	ErrorURLParse
	ErrorURLScheme
	ErrorURLNotAbsolute
	ErrorURLHost
	ErrorURLMissing
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorMethodInvalid)
	errors.RegisterIdFctMessage(ErrorMethodInvalid, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case ErrorMethodInvalid:
		return "invalid http method '%s'"
	case ErrorBodyNotAllowed:
		return "method '%s' does not allow a request body"
	case ErrorBodyRequired:
		return "method '%s' requires a request body"
	case ErrorBodyRead:
		return "cannot open request body stream"
	case ErrorBodyConsumed:
		return "one-shot request body already consumed"
	case ErrorURLParse:
		return "uri/url parse error"
	case ErrorURLScheme:
		return "unsupported url scheme '%s'"
	case ErrorURLNotAbsolute:
		return "request url must be absolute"
	case ErrorURLHost:
		return "invalid request url host"
	case ErrorURLMissing:
		return "request url is not defined"
	}

	return ""
}
