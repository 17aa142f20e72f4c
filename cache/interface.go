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

// Package cache defines the response cache collaborator and the freshness
// logic of the cache layer: age computation, conditional revalidation and
// 304 merging follow RFC 7234 for a private cache.
//
// The storage format is the collaborator's concern; the engine only consumes
// the Storage interface. Entries are keyed by method and canonical URL and
// constrained by the stored Vary header set.
package cache

import (
	librqs "github.com/nabbar/httpcall/request"
)

// Storage persists responses for reuse. Implementations must be safe for
// concurrent use and must return quickly.
//
// Responses handed to Put carry a fully buffered, replayable body; responses
// returned by Get must carry a fresh body stream on every call.
type Storage interface {
	// Get returns the stored response usable for req, or nil.
	Get(req librqs.Request) *librqs.Response

	// Put stores a cacheable response.
	Put(rsp *librqs.Response)

	// Remove invalidates the entry of req.
	Remove(req librqs.Request)

	// Update refreshes the headers of a stored entry after a revalidation.
	Update(cached, network *librqs.Response)
}

// Key returns the storage key of a request: its method and canonical URL.
func Key(req librqs.Request) string {
	return req.Method() + " " + req.Url().String()
}
