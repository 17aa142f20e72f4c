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

package auth_test

import (
	"testing"

	libaut "github.com/nabbar/httpcall/auth"
	libhdr "github.com/nabbar/httpcall/header"
	librqs "github.com/nabbar/httpcall/request"
)

func challenged(t *testing.T, status int, hdr map[string]string, reqHeader map[string]string) *librqs.Response {
	t.Helper()

	b := librqs.New()
	b.SetEndpoint("http://a.test/priv")

	for k, v := range reqHeader {
		b.SetHeader(k, v)
	}

	req, err := b.Build()

	if err != nil {
		t.Fatalf("building request: %v", err)
	}

	h := libhdr.New()

	for k, v := range hdr {
		h.Set(k, v)
	}

	return &librqs.Response{
		Status:  status,
		Header:  h,
		Request: req,
	}
}

func TestBasicAnswersChallenge(t *testing.T) {
	a := libaut.Basic("user", "pass")

	rsp := challenged(t, 401, map[string]string{"WWW-Authenticate": `Basic realm="api"`}, nil)

	nxt, err := a.Authenticate(nil, rsp)

	if err != nil {
		t.Fatalf("authenticating: %v", err)
	}

	if nxt == nil {
		t.Fatal("basic must answer a basic challenge")
	}

	if v := nxt.Header().Get("Authorization"); v != "Basic dXNlcjpwYXNz" {
		t.Fatalf("unexpected credentials: %q", v)
	}
}

func TestBasicStopsOnOwnFailure(t *testing.T) {
	a := libaut.Basic("user", "pass")

	rsp := challenged(t, 401,
		map[string]string{"WWW-Authenticate": `Basic realm="api"`},
		map[string]string{"Authorization": "Basic dXNlcjpwYXNz"},
	)

	nxt, err := a.Authenticate(nil, rsp)

	if err != nil {
		t.Fatalf("authenticating: %v", err)
	}

	if nxt != nil {
		t.Fatal("repeating the same failed credentials loops forever")
	}
}

func TestBasicIgnoresForeignScheme(t *testing.T) {
	a := libaut.Basic("user", "pass")

	rsp := challenged(t, 401, map[string]string{"WWW-Authenticate": `Bearer realm="api"`}, nil)

	nxt, err := a.Authenticate(nil, rsp)

	if err != nil || nxt != nil {
		t.Fatalf("basic must give up on non-basic challenges: %v %v", nxt, err)
	}
}

func TestBasicProxyChallenge(t *testing.T) {
	a := libaut.Basic("user", "pass")

	rsp := challenged(t, 407, map[string]string{"Proxy-Authenticate": `Basic realm="proxy"`}, nil)

	nxt, err := a.Authenticate(nil, rsp)

	if err != nil {
		t.Fatalf("authenticating: %v", err)
	}

	if nxt == nil || nxt.Header().Get("Proxy-Authorization") == "" {
		t.Fatal("407 must be answered on the proxy header")
	}
}

func TestNopGivesUp(t *testing.T) {
	rsp := challenged(t, 401, map[string]string{"WWW-Authenticate": `Basic realm="api"`}, nil)

	nxt, err := libaut.Nop().Authenticate(nil, rsp)

	if err != nil || nxt != nil {
		t.Fatal("nop must always give up")
	}
}
