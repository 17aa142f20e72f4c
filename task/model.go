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

package task

import (
	"sync"
	"time"
)

type entry struct {
	w time.Time // next deadline
	f Func
	r bool // currently running
}

type run struct {
	m sync.Mutex
	t map[string]*entry
	k chan struct{}
	g bool // worker alive
	c bool // closed
}

func (o *run) Schedule(name string, delay time.Duration, fct Func) {
	if fct == nil {
		return
	}

	o.m.Lock()
	defer o.m.Unlock()

	if o.c {
		return
	}

	o.t[name] = &entry{
		w: time.Now().Add(delay),
		f: fct,
	}

	if !o.g {
		o.g = true
		go o.worker()
	} else {
		o.kick()
	}
}

func (o *run) Kick(name string) {
	o.m.Lock()
	defer o.m.Unlock()

	if e, ok := o.t[name]; ok {
		e.w = time.Now()
		o.kick()
	}
}

func (o *run) Cancel(name string) {
	o.m.Lock()
	defer o.m.Unlock()

	delete(o.t, name)
	o.kick()
}

func (o *run) Close() error {
	o.m.Lock()
	defer o.m.Unlock()

	o.c = true
	o.t = make(map[string]*entry)
	o.kick()

	return nil
}

// kick wakes the worker; callers hold the monitor.
func (o *run) kick() {
	select {
	case o.k <- struct{}{}:
	default:
	}
}

func (o *run) worker() {
	for {
		o.m.Lock()

		if o.c || len(o.t) == 0 {
			o.g = false
			o.m.Unlock()
			return
		}

		var (
			name string
			next *entry
		)

		for n, e := range o.t {
			if e.r {
				continue
			}

			if next == nil || e.w.Before(next.w) {
				name, next = n, e
			}
		}

		if next == nil {
			// every task is running; wait for one to come back
			o.m.Unlock()

			select {
			case <-o.k:
			case <-time.After(time.Second):
			}

			continue
		}

		if d := time.Until(next.w); d > 0 {
			o.m.Unlock()

			t := time.NewTimer(d)

			select {
			case <-t.C:
			case <-o.k:
				t.Stop()
			}

			continue
		}

		next.r = true
		o.m.Unlock()

		now := time.Now()
		delay := next.f(now)

		o.m.Lock()
		next.r = false

		if cur, ok := o.t[name]; ok && cur == next {
			if delay < 0 {
				delete(o.t, name)
			} else {
				next.w = now.Add(delay)
			}
		}

		o.m.Unlock()
	}
}
