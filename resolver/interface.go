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

// Package resolver defines the DNS collaborator consumed by the connection
// coordinator, with a system implementation and a static mapping implementation.
//
// The static mapper follows the hostname override semantics of custom DNS
// mapping: exact entry first, then wildcard entry (*.domain), then the optional
// next resolver.
package resolver

import (
	"context"
	"net"
	"sync"

	liberr "github.com/nabbar/golib/errors"
)

// DNS resolves a hostname into an ordered list of candidate IP addresses.
// An empty result is reported as an unknown-host error, never as (nil, nil).
// Implementations must be safe for concurrent use.
type DNS interface {
	Lookup(ctx context.Context, host string) ([]net.IP, liberr.Error)
}

// System returns a DNS backed by the platform resolver.
func System() DNS {
	return &sys{
		r: net.DefaultResolver,
	}
}

// Static returns a DNS resolving from the given host to addresses map before
// falling through to next. Keys may be exact hostnames or "*.domain" wildcards.
// A nil next makes unmapped hosts fail with unknown-host.
func Static(mapping map[string][]net.IP, next DNS) DNS {
	var m = make(map[string][]net.IP, len(mapping))

	for k, v := range mapping {
		m[k] = append(make([]net.IP, 0, len(v)), v...)
	}

	return &stc{
		m: sync.RWMutex{},
		d: m,
		n: next,
	}
}
