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

// Package auth defines the authenticator collaborator called on 401 and 407
// challenges, and a basic-credentials implementation.
package auth

import (
	"encoding/base64"
	"net/url"

	liberr "github.com/nabbar/golib/errors"
	librqs "github.com/nabbar/httpcall/request"
)

// Authenticator reacts to an authentication challenge.
//
// proxy is the proxy in use when the challenge is a 407, nil for a 401.
// The returned request carries the credentials for the next attempt; a nil
// request with a nil error gives up and surfaces the challenging response.
//
// Implementations are called from concurrent calls and must detect their own
// prior failed attempt to avoid reacting forever to the same challenge.
type Authenticator interface {
	Authenticate(proxy *url.URL, rsp *librqs.Response) (librqs.Request, liberr.Error)
}

// Nop returns an Authenticator that always gives up.
func Nop() Authenticator {
	return &nop{}
}

// Basic returns an Authenticator answering Basic challenges with the given
// credentials. It gives up when the request that drew the challenge already
// carried the credentials it would send.
func Basic(user, pass string) Authenticator {
	return &basic{
		c: "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass)),
	}
}

type nop struct{}

func (o *nop) Authenticate(proxy *url.URL, rsp *librqs.Response) (librqs.Request, liberr.Error) {
	return nil, nil
}

type basic struct {
	c string
}

func (o *basic) Authenticate(proxy *url.URL, rsp *librqs.Response) (librqs.Request, liberr.Error) {
	var name = "Authorization"

	if rsp.Status == 407 {
		name = "Proxy-Authorization"
	}

	var found bool

	for _, c := range rsp.Challenges() {
		if c.Scheme == "Basic" || c.Scheme == "basic" {
			found = true
			break
		}
	}

	if !found {
		return nil, nil
	}

	if rsp.Request == nil {
		return nil, nil
	}

	// prior attempt already failed with these credentials
	if rsp.Request.Header().Get(name) == o.c {
		return nil, nil
	}

	b := rsp.Request.Builder()
	b.SetHeader(name, o.c)

	return b.Build()
}
