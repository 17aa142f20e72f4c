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

package cache_test

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	libcch "github.com/nabbar/httpcall/cache"
	libhdr "github.com/nabbar/httpcall/header"
	librqs "github.com/nabbar/httpcall/request"
)

func mkRequest(t *testing.T, uri string, hdr map[string]string) librqs.Request {
	t.Helper()

	b := librqs.New()
	b.SetEndpoint(uri)

	for k, v := range hdr {
		b.SetHeader(k, v)
	}

	req, err := b.Build()

	if err != nil {
		t.Fatalf("building request: %v", err)
	}

	return req
}

func mkResponse(req librqs.Request, hdr map[string]string, body string, age time.Duration) *librqs.Response {
	h := libhdr.New()

	for k, v := range hdr {
		h.Set(k, v)
	}

	now := time.Now().Add(-age)

	if !h.Has("Date") {
		h.Set("Date", now.UTC().Format(http.TimeFormat))
	}

	return &librqs.Response{
		Status:     200,
		Proto:      librqs.ProtocolHTTP11,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
		SentAt:     now,
		ReceivedAt: now,
	}
}

func TestDirectives(t *testing.T) {
	h := libhdr.New()
	h.Set("Cache-Control", "no-cache, max-age=60, max-stale")

	d := libcch.ParseDirectives(h)

	if !d.NoCache {
		t.Fatal("no-cache lost")
	}

	if d.MaxAge != 60*time.Second {
		t.Fatalf("max-age parsed as %v", d.MaxAge)
	}

	if !d.MaxStaleSet || d.MaxStale != -1 {
		t.Fatal("valueless max-stale must set the flag with no bound")
	}
}

func TestPragmaNoCache(t *testing.T) {
	h := libhdr.New()
	h.Set("Pragma", "no-cache")

	if !libcch.ParseDirectives(h).NoCache {
		t.Fatal("pragma must imply no-cache")
	}
}

func TestEvaluateFresh(t *testing.T) {
	req := mkRequest(t, "http://a.test/x", nil)
	rsp := mkResponse(req, map[string]string{"Cache-Control": "max-age=120"}, "hello", 10*time.Second)

	st := libcch.Evaluate(time.Now(), req, rsp)

	if st.CacheResponse == nil || st.NetworkRequest != nil {
		t.Fatal("a fresh entry must be served without the network")
	}
}

func TestEvaluateStaleConditional(t *testing.T) {
	req := mkRequest(t, "http://a.test/x", nil)
	rsp := mkResponse(req, map[string]string{
		"Cache-Control": "max-age=5",
		"ETag":          `"v1"`,
	}, "hello", time.Minute)

	st := libcch.Evaluate(time.Now(), req, rsp)

	if st.NetworkRequest == nil || st.CacheResponse == nil {
		t.Fatal("a stale entry with a validator must revalidate")
	}

	if st.NetworkRequest.Header().Get("If-None-Match") != `"v1"` {
		t.Fatal("conditional field missing")
	}
}

func TestEvaluateStaleNoValidator(t *testing.T) {
	req := mkRequest(t, "http://a.test/x", nil)

	h := libhdr.New()
	h.Set("Cache-Control", "max-age=5")

	rsp := &librqs.Response{
		Status:     200,
		Header:     h,
		Request:    req,
		SentAt:     time.Now().Add(-time.Minute),
		ReceivedAt: time.Now().Add(-time.Minute),
	}

	st := libcch.Evaluate(time.Now(), req, rsp)

	if st.NetworkRequest == nil || st.CacheResponse != nil {
		t.Fatal("a stale entry without validator goes to the network")
	}
}

func TestEvaluateOnlyIfCachedMiss(t *testing.T) {
	req := mkRequest(t, "http://a.test/x", map[string]string{"Cache-Control": "only-if-cached"})

	st := libcch.Evaluate(time.Now(), req, nil)

	if st.NetworkRequest != nil || st.CacheResponse != nil {
		t.Fatal("only-if-cached with no entry must forbid the network")
	}
}

func TestCacheable(t *testing.T) {
	req := mkRequest(t, "http://a.test/x", nil)

	ok := mkResponse(req, map[string]string{"Cache-Control": "max-age=60"}, "x", 0)

	if !libcch.Cacheable(req, ok) {
		t.Fatal("plain 200 must be cacheable")
	}

	vary := mkResponse(req, map[string]string{"Vary": "*"}, "x", 0)

	if libcch.Cacheable(req, vary) {
		t.Fatal("vary * must not be cacheable")
	}

	noStore := mkResponse(req, map[string]string{"Cache-Control": "no-store"}, "x", 0)

	if libcch.Cacheable(req, noStore) {
		t.Fatal("no-store must not be cacheable")
	}
}

func TestCombineKeepsEntityFields(t *testing.T) {
	req := mkRequest(t, "http://a.test/x", nil)
	cached := mkResponse(req, map[string]string{
		"Content-Type": "text/plain",
		"ETag":         `"v1"`,
	}, "x", 0)

	network := mkResponse(req, map[string]string{
		"Content-Type": "application/octet-stream",
		"ETag":         `"v2"`,
	}, "", 0)

	h := libcch.Combine(cached, network)

	if h.Get("Content-Type") != "text/plain" {
		t.Fatal("entity fields must come from the cache")
	}

	if h.Get("ETag") != `"v2"` {
		t.Fatal("validators must come from the revalidation")
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	var (
		sto = libcch.Memory(10)
		req = mkRequest(t, "http://a.test/x", nil)
		rsp = mkResponse(req, map[string]string{"Cache-Control": "max-age=60"}, "payload", 0)
	)

	sto.Put(rsp)

	got := sto.Get(req)

	if got == nil {
		t.Fatal("stored entry not found")
	}

	p, err := io.ReadAll(got.Body)

	if err != nil || string(p) != "payload" {
		t.Fatalf("stored body mismatch: %q %v", p, err)
	}

	// a second read must get a fresh stream
	got2 := sto.Get(req)
	p2, _ := io.ReadAll(got2.Body)

	if string(p2) != "payload" {
		t.Fatal("body stream must be replayable per Get")
	}

	sto.Remove(req)

	if sto.Get(req) != nil {
		t.Fatal("removed entry still served")
	}
}

func TestMemoryVary(t *testing.T) {
	var (
		sto = libcch.Memory(10)
		req = mkRequest(t, "http://a.test/x", map[string]string{"Accept-Encoding": "gzip"})
		rsp = mkResponse(req, map[string]string{
			"Cache-Control": "max-age=60",
			"Vary":          "Accept-Encoding",
		}, "zip", 0)
	)

	sto.Put(rsp)

	if sto.Get(req) == nil {
		t.Fatal("same vary values must match")
	}

	other := mkRequest(t, "http://a.test/x", map[string]string{"Accept-Encoding": "br"})

	if sto.Get(other) != nil {
		t.Fatal("different vary values must miss")
	}
}
