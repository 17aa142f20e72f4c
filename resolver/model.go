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

package resolver

import (
	"context"
	"net"
	"strings"
	"sync"

	liberr "github.com/nabbar/golib/errors"
)

type sys struct {
	r *net.Resolver
}

func (o *sys) Lookup(ctx context.Context, host string) ([]net.IP, liberr.Error) {
	if host == "" {
		return nil, ErrorHostEmpty.Error(nil)
	}

	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}

	adr, err := o.r.LookupIPAddr(ctx, host)

	if err != nil {
		e := ErrorUnknownHost.Errorf(host)
		e.Add(err)
		return nil, e
	}

	var res = make([]net.IP, 0, len(adr))

	for _, a := range adr {
		res = append(res, a.IP)
	}

	if len(res) < 1 {
		return nil, ErrorUnknownHost.Errorf(host)
	}

	return res, nil
}

type stc struct {
	m sync.RWMutex
	d map[string][]net.IP
	n DNS
}

func (o *stc) find(host string) []net.IP {
	o.m.RLock()
	defer o.m.RUnlock()

	if r, ok := o.d[host]; ok {
		return r
	}

	if idx := strings.IndexByte(host, '.'); idx > 0 {
		if r, ok := o.d["*"+host[idx:]]; ok {
			return r
		}
	}

	return nil
}

func (o *stc) Lookup(ctx context.Context, host string) ([]net.IP, liberr.Error) {
	if host == "" {
		return nil, ErrorHostEmpty.Error(nil)
	}

	if r := o.find(host); len(r) > 0 {
		return append(make([]net.IP, 0, len(r)), r...), nil
	}

	if o.n != nil {
		return o.n.Lookup(ctx, host)
	}

	return nil, ErrorUnknownHost.Errorf(host)
}
