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

package cache

import (
	"net/http"
	"time"

	libhdr "github.com/nabbar/httpcall/header"
	librqs "github.com/nabbar/httpcall/request"
)

// Strategy is the decision of the cache layer for one request: use the
// network, use the cached response, or revalidate (both set). Neither set
// means the request required the cache (only-if-cached) and missed.
type Strategy struct {
	// NetworkRequest goes to the network; it carries the conditional fields
	// during a revalidation. Nil to serve from cache only.
	NetworkRequest librqs.Request

	// CacheResponse is served or revalidated. Nil on a plain network call.
	CacheResponse *librqs.Response
}

// Evaluate decides how to satisfy req from cached, per RFC 7234.
func Evaluate(now time.Time, req librqs.Request, cached *librqs.Response) Strategy {
	s := evaluate(now, req, cached)

	if s.NetworkRequest != nil && ParseDirectives(req.Header()).OnlyIfCached {
		// the caller forbade the network
		return Strategy{}
	}

	return s
}

func evaluate(now time.Time, req librqs.Request, cached *librqs.Response) Strategy {
	if cached == nil {
		return Strategy{NetworkRequest: req}
	}

	var (
		rqd = ParseDirectives(req.Header())
		rsd = ParseDirectives(cached.Header)
	)

	if rqd.NoStore || rqd.NoCache {
		return Strategy{NetworkRequest: req}
	}

	if rsd.NoStore {
		return Strategy{NetworkRequest: req}
	}

	// requests with conditions of their own bypass the cache
	if req.Header().Has("If-None-Match") || req.Header().Has("If-Modified-Since") {
		return Strategy{NetworkRequest: req}
	}

	var (
		age      = cachedAge(now, cached)
		lifetime = freshnessLifetime(cached, rsd)
	)

	if rqd.MaxAge >= 0 && lifetime > rqd.MaxAge {
		lifetime = rqd.MaxAge
	}

	var slack time.Duration

	if !rsd.MustRevalid && rqd.MaxStaleSet {
		if rqd.MaxStale >= 0 {
			slack = rqd.MaxStale
		} else {
			// max-stale without value tolerates any staleness
			slack = 1<<62 - 1
		}
	}

	var shrink time.Duration

	if rqd.MinFresh >= 0 {
		shrink = rqd.MinFresh
	}

	if !rsd.NoCache && age+shrink < lifetime+slack {
		return Strategy{CacheResponse: cached}
	}

	// stale entry: build the conditional request when possible
	var (
		name  string
		value string
	)

	if v := cached.Header.Get("ETag"); v != "" {
		name, value = "If-None-Match", v
	} else if v = cached.Header.Get("Last-Modified"); v != "" {
		name, value = "If-Modified-Since", v
	} else if v = cached.Header.Get("Date"); v != "" {
		name, value = "If-Modified-Since", v
	}

	if name == "" {
		return Strategy{NetworkRequest: req}
	}

	b := req.Builder()
	b.SetHeader(name, value)

	cnd, err := b.Build()

	if err != nil {
		return Strategy{NetworkRequest: req}
	}

	return Strategy{
		NetworkRequest: cnd,
		CacheResponse:  cached,
	}
}

// cachedAge computes the current age of a stored response: apparent age
// corrected by the Age header, plus resident time.
func cachedAge(now time.Time, rsp *librqs.Response) time.Duration {
	var (
		served = rsp.ReceivedAt
		date   = headerTime(rsp.Header, "Date")
		age    time.Duration
	)

	if !date.IsZero() && served.After(date) {
		age = served.Sub(date)
	}

	if v := rsp.Header.Get("Age"); v != "" {
		if d := parseSeconds(v); d > age {
			age = d
		}
	}

	if !rsp.SentAt.IsZero() && !served.IsZero() {
		age += served.Sub(rsp.SentAt)
	}

	if now.After(served) {
		age += now.Sub(served)
	}

	return age
}

// freshnessLifetime derives how long the response stays fresh: max-age,
// then Expires, then the Last-Modified heuristic for plain documents.
func freshnessLifetime(rsp *librqs.Response, rsd Directives) time.Duration {
	if rsd.MaxAge >= 0 {
		return rsd.MaxAge
	}

	var date = headerTime(rsp.Header, "Date")

	if date.IsZero() {
		date = rsp.ReceivedAt
	}

	if exp := headerTime(rsp.Header, "Expires"); !exp.IsZero() {
		if exp.After(date) {
			return exp.Sub(date)
		}

		return 0
	}

	if lm := headerTime(rsp.Header, "Last-Modified"); !lm.IsZero() && date.After(lm) {
		// heuristic freshness: a tenth of the document age
		return date.Sub(lm) / 10
	}

	return 0
}

// Cacheable reports whether a response may be stored at all.
func Cacheable(req librqs.Request, rsp *librqs.Response) bool {
	if req.Method() != "GET" {
		return false
	}

	switch rsp.Status {
	case 200, 203, 204, 300, 301, 308, 404, 405, 410, 414, 501:
	case 302, 307:
		if rsp.Header.Get("Expires") == "" && ParseDirectives(rsp.Header).MaxAge < 0 {
			return false
		}
	default:
		return false
	}

	if v := rsp.Header.Get("Vary"); v == "*" {
		return false
	}

	if ParseDirectives(rsp.Header).NoStore || ParseDirectives(req.Header()).NoStore {
		return false
	}

	return true
}

// Combine merges a 304 with its cached entry: the cached body stays, the
// network headers win except the entity description fields.
func Combine(cached, network *librqs.Response) libhdr.Header {
	var res = libhdr.New()

	// entity fields describe the stored body and always come from the cache;
	// for everything else the revalidation wins when it carries the field
	cached.Header.Walk(func(name, value string) bool {
		if entityField(name) || !network.Header.Has(name) {
			res.Add(name, value)
		}

		return true
	})

	network.Header.Walk(func(name, value string) bool {
		if !entityField(name) {
			res.Add(name, value)
		}

		return true
	})

	return res
}

// entityField names headers describing the stored body, which a 304 must not
// override.
func entityField(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Content-Length", "Content-Encoding", "Content-Type":
		return true
	}

	return false
}

func headerTime(h libhdr.Header, name string) time.Time {
	if v := h.Get(name); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			return t
		}
	}

	return time.Time{}
}
