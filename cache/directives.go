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
	"strconv"
	"strings"
	"time"

	libhdr "github.com/nabbar/httpcall/header"
)

// Directives is the parsed view of the Cache-Control fields of one message.
// Absent duration directives are -1.
type Directives struct {
	NoCache      bool
	NoStore      bool
	OnlyIfCached bool
	Immutable    bool
	MustRevalid  bool
	Public       bool
	Private      bool

	MaxAge   time.Duration
	MaxStale time.Duration
	MinFresh time.Duration

	// MaxStaleSet distinguishes "max-stale" without value (any staleness)
	// from an absent directive.
	MaxStaleSet bool
}

// ParseDirectives collects every Cache-Control field of h.
// Pragma: no-cache is honored for backward compatibility.
func ParseDirectives(h libhdr.Header) Directives {
	var d = Directives{
		MaxAge:   -1,
		MaxStale: -1,
		MinFresh: -1,
	}

	for _, v := range h.Values("Cache-Control") {
		for _, tok := range strings.Split(v, ",") {
			var (
				name, arg string
			)

			tok = strings.TrimSpace(tok)

			if idx := strings.IndexByte(tok, '='); idx >= 0 {
				name = strings.ToLower(tok[:idx])
				arg = strings.Trim(tok[idx+1:], `" `)
			} else {
				name = strings.ToLower(tok)
			}

			switch name {
			case "no-cache":
				d.NoCache = true
			case "no-store":
				d.NoStore = true
			case "only-if-cached":
				d.OnlyIfCached = true
			case "immutable":
				d.Immutable = true
			case "must-revalidate":
				d.MustRevalid = true
			case "public":
				d.Public = true
			case "private":
				d.Private = true
			case "max-age":
				d.MaxAge = parseSeconds(arg)
			case "max-stale":
				d.MaxStaleSet = true
				d.MaxStale = parseSeconds(arg)
			case "min-fresh":
				d.MinFresh = parseSeconds(arg)
			}
		}
	}

	if !h.Has("Cache-Control") && strings.EqualFold(h.Get("Pragma"), "no-cache") {
		d.NoCache = true
	}

	return d
}

func parseSeconds(arg string) time.Duration {
	if arg == "" {
		return -1
	}

	if s, err := strconv.ParseInt(arg, 10, 64); err == nil && s >= 0 {
		return time.Duration(s) * time.Second
	}

	return -1
}
