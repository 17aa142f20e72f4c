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

package header

import (
	"strings"
)

type field struct {
	k string // field name, stored case preserved
	v string // field value
}

type hdr struct {
	f []field
}

func (o *hdr) Add(name, value string) {
	o.f = append(o.f, field{
		k: name,
		v: value,
	})
}

func (o *hdr) Set(name, value string) {
	o.Del(name)
	o.Add(name, value)
}

func (o *hdr) Del(name string) {
	var res = o.f[:0]

	for _, f := range o.f {
		if !strings.EqualFold(f.k, name) {
			res = append(res, f)
		}
	}

	o.f = res
}

func (o *hdr) Get(name string) string {
	for _, f := range o.f {
		if strings.EqualFold(f.k, name) {
			return f.v
		}
	}

	return ""
}

func (o *hdr) Has(name string) bool {
	for _, f := range o.f {
		if strings.EqualFold(f.k, name) {
			return true
		}
	}

	return false
}

func (o *hdr) Values(name string) []string {
	var res = make([]string, 0)

	for _, f := range o.f {
		if strings.EqualFold(f.k, name) {
			res = append(res, f.v)
		}
	}

	return res
}

func (o *hdr) Names() []string {
	var (
		res  = make([]string, 0)
		seen = make(map[string]bool)
	)

	for _, f := range o.f {
		k := strings.ToLower(f.k)

		if !seen[k] {
			seen[k] = true
			res = append(res, f.k)
		}
	}

	return res
}

func (o *hdr) Len() int {
	return len(o.f)
}

func (o *hdr) Walk(fct FuncWalk) {
	if fct == nil {
		return
	}

	for _, f := range o.f {
		if !fct(f.k, f.v) {
			return
		}
	}
}

func (o *hdr) Clone() Header {
	var res = &hdr{
		f: make([]field, len(o.f)),
	}

	copy(res.f, o.f)

	return res
}
