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
	"bytes"
	"io"
	"strings"
	"sync"
	"time"

	libhdr "github.com/nabbar/httpcall/header"
	librqs "github.com/nabbar/httpcall/request"
)

// Memory returns an in-memory Storage keeping at most max entries; the
// oldest entry is dropped on overflow. max < 1 means unbounded.
func Memory(max int) Storage {
	return &mem{
		x: max,
		d: make(map[string]*entry),
	}
}

type entry struct {
	status   int
	reason   string
	proto    librqs.Protocol
	header   libhdr.Header
	body     []byte
	vary     libhdr.Header // request fields the entry varies on
	sentAt   time.Time
	recvAt   time.Time
	storedAt time.Time
}

type mem struct {
	m sync.Mutex
	x int
	d map[string]*entry
}

func (o *mem) Get(req librqs.Request) *librqs.Response {
	o.m.Lock()
	e, ok := o.d[Key(req)]
	o.m.Unlock()

	if !ok {
		return nil
	}

	// the stored Vary set must match the new request
	match := true

	e.vary.Walk(func(name, value string) bool {
		if strings.Join(req.Header().Values(name), ", ") != value {
			match = false
			return false
		}

		return true
	})

	if !match {
		return nil
	}

	return &librqs.Response{
		Status:     e.status,
		Reason:     e.reason,
		Proto:      e.proto,
		Header:     e.header.Clone(),
		Body:       io.NopCloser(bytes.NewReader(e.body)),
		Request:    req,
		SentAt:     e.sentAt,
		ReceivedAt: e.recvAt,
	}
}

func (o *mem) Put(rsp *librqs.Response) {
	if rsp == nil || rsp.Request == nil || rsp.Body == nil {
		return
	}

	body, err := io.ReadAll(rsp.Body)

	if err != nil {
		return
	}

	e := &entry{
		status:   rsp.Status,
		reason:   rsp.Reason,
		proto:    rsp.Proto,
		header:   rsp.Header.Clone(),
		body:     body,
		vary:     varySet(rsp),
		sentAt:   rsp.SentAt,
		recvAt:   rsp.ReceivedAt,
		storedAt: time.Now(),
	}

	o.m.Lock()
	defer o.m.Unlock()

	o.d[Key(rsp.Request)] = e

	if o.x > 0 && len(o.d) > o.x {
		var (
			old string
			ts  time.Time
		)

		for k, v := range o.d {
			if old == "" || v.storedAt.Before(ts) {
				old, ts = k, v.storedAt
			}
		}

		delete(o.d, old)
	}
}

func (o *mem) Remove(req librqs.Request) {
	o.m.Lock()
	defer o.m.Unlock()

	delete(o.d, Key(req))
}

func (o *mem) Update(cached, network *librqs.Response) {
	if cached == nil || cached.Request == nil {
		return
	}

	o.m.Lock()
	defer o.m.Unlock()

	if e, ok := o.d[Key(cached.Request)]; ok {
		e.header = Combine(cached, network)
		e.sentAt = network.SentAt
		e.recvAt = network.ReceivedAt
	}
}

// varySet snapshots the request field values named by the response Vary.
func varySet(rsp *librqs.Response) libhdr.Header {
	var res = libhdr.New()

	if rsp.Request == nil {
		return res
	}

	for _, v := range rsp.Header.Values("Vary") {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)

			if name == "" || name == "*" {
				continue
			}

			res.Set(name, strings.Join(rsp.Request.Header().Values(name), ", "))
		}
	}

	return res
}
