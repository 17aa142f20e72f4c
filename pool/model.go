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

package pool

import (
	"sync"
	"time"

	liblog "github.com/nabbar/golib/logger"
	libadr "github.com/nabbar/httpcall/address"
	libtsk "github.com/nabbar/httpcall/task"
)

const taskCleanup = "pool-cleanup"

type pol struct {
	m sync.Mutex
	c []Pooled
	f Config
	r libtsk.Runner
	l liblog.FuncLog
}

func (o *pol) log() liblog.Logger {
	if o.l != nil {
		if l := o.l(); l != nil {
			return l
		}
	}

	return nil
}

func (o *pol) Put(c Pooled) {
	o.m.Lock()
	o.c = append(o.c, c)
	o.m.Unlock()

	o.schedule(0)
}

func (o *pol) Acquire(a *libadr.Address, route *libadr.Route) Pooled {
	o.m.Lock()
	defer o.m.Unlock()

	for _, c := range o.c {
		if c.TryAcquire(a, route) {
			return c
		}
	}

	return nil
}

func (o *pol) Release(c Pooled) bool {
	o.m.Lock()

	var found bool

	for _, e := range o.c {
		if e.Id() == c.Id() {
			found = true
			break
		}
	}

	o.m.Unlock()

	if !found {
		// already evicted while in use: caller must close
		return true
	}

	o.schedule(0)

	return false
}

func (o *pol) Remove(c Pooled) {
	o.m.Lock()
	defer o.m.Unlock()

	for i, e := range o.c {
		if e.Id() == c.Id() {
			o.c = append(o.c[:i], o.c[i+1:]...)
			return
		}
	}
}

func (o *pol) EvictAll() {
	o.m.Lock()

	var evict = o.c
	o.c = make([]Pooled, 0)

	o.m.Unlock()

	for _, c := range evict {
		if err := c.Close(); err != nil {
			if l := o.log(); l != nil {
				l.Warning("closing pooled connection", err)
			}
		}
	}

	if o.r != nil {
		o.r.Cancel(taskCleanup)
	}
}

func (o *pol) Len() int {
	o.m.Lock()
	defer o.m.Unlock()

	return len(o.c)
}

func (o *pol) IdleLen() int {
	o.m.Lock()
	defer o.m.Unlock()

	var res int

	for _, c := range o.c {
		if c.AllocationCount() == 0 {
			res++
		}
	}

	return res
}

func (o *pol) schedule(delay time.Duration) {
	if o.r != nil {
		o.r.Schedule(taskCleanup, delay, o.cleanup)
	}
}

// cleanup applies the idle policy and returns the delay until the next known
// deadline. It closes at most one connection per run and re-arms immediately
// so each eviction is a separate, monitor-bounded step.
func (o *pol) cleanup(now time.Time) time.Duration {
	var (
		idle    int
		inUse   int
		oldest  Pooled
		oldIdle time.Duration = -1
	)

	o.m.Lock()

	for _, c := range o.c {
		if c.AllocationCount() > 0 {
			inUse++
			continue
		}

		idle++

		if d := now.Sub(c.IdleSince()); d > oldIdle {
			oldIdle = d
			oldest = c
		}
	}

	keep := o.f.keepAlive()

	if oldest != nil && (oldIdle >= keep || idle > o.f.MaxIdle) {
		for i, e := range o.c {
			if e.Id() == oldest.Id() {
				o.c = append(o.c[:i], o.c[i+1:]...)
				break
			}
		}

		o.m.Unlock()

		_ = oldest.Close()

		// immediately look for the next eviction candidate
		return 0
	}

	o.m.Unlock()

	if idle > 0 {
		return keep - oldIdle
	}

	if inUse > 0 {
		return keep
	}

	return -1
}
