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

// Package cookie defines the cookie jar collaborator of the call engine.
//
// The engine only defines the interface: persistence and retention policy
// belong to the implementation. Implementations must return quickly and be
// safe for concurrent use.
package cookie

import (
	"net/http"
	"net/url"
)

// Jar loads cookies into outbound requests and saves cookies from responses.
type Jar interface {
	// LoadForRequest returns the cookies to attach to a request for url.
	LoadForRequest(u *url.URL) []*http.Cookie

	// SaveFromResponse persists the Set-Cookie values received for url.
	SaveFromResponse(u *url.URL, cookies []*http.Cookie)
}

// Nop returns a Jar that never loads nor saves anything.
func Nop() Jar {
	return nopJar{}
}

type nopJar struct{}

func (nopJar) LoadForRequest(u *url.URL) []*http.Cookie {
	return nil
}

func (nopJar) SaveFromResponse(u *url.URL, cookies []*http.Cookie) {
}
