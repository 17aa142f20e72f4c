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

package pool_test

import (
	"sync"
	"testing"
	"time"

	libdur "github.com/nabbar/golib/duration"
	libadr "github.com/nabbar/httpcall/address"
	libpol "github.com/nabbar/httpcall/pool"
	libtsk "github.com/nabbar/httpcall/task"
)

// fakeConn is a minimal Pooled implementation: one exchange slot, standard
// address equality.
type fakeConn struct {
	m sync.Mutex

	id  uint64
	adr *libadr.Address
	alc int
	idl time.Time
	nne bool
	cls bool
}

func (o *fakeConn) Id() uint64 {
	return o.id
}

func (o *fakeConn) Address() *libadr.Address {
	return o.adr
}

func (o *fakeConn) TryAcquire(a *libadr.Address, route *libadr.Route) bool {
	o.m.Lock()
	defer o.m.Unlock()

	if o.nne || o.cls || o.alc > 0 {
		return false
	}

	if !o.adr.Equal(a) {
		return false
	}

	o.alc++

	return true
}

func (o *fakeConn) AllocationCount() int {
	o.m.Lock()
	defer o.m.Unlock()

	return o.alc
}

func (o *fakeConn) IdleSince() time.Time {
	o.m.Lock()
	defer o.m.Unlock()

	return o.idl
}

func (o *fakeConn) Close() error {
	o.m.Lock()
	defer o.m.Unlock()

	o.cls = true

	return nil
}

func (o *fakeConn) closed() bool {
	o.m.Lock()
	defer o.m.Unlock()

	return o.cls
}

func (o *fakeConn) release() {
	o.m.Lock()
	o.alc = 0
	o.idl = time.Now()
	o.m.Unlock()
}

func newFake(id uint64, adr *libadr.Address) *fakeConn {
	return &fakeConn{
		id:  id,
		adr: adr,
		idl: time.Now(),
	}
}

func mkAddr(host string) *libadr.Address {
	return libadr.New(host, 80, nil, nil, nil, nil, nil)
}

func TestAcquireMatchesAddress(t *testing.T) {
	var (
		run = libtsk.New()
		pol = libpol.New(libpol.Config{}, run, nil)
		adr = mkAddr("a.test")
		c   = newFake(1, adr)
	)

	defer func() {
		_ = run.Close()
	}()

	c.alc = 1 // connections enter the pool with their first exchange reserved
	pol.Put(c)
	c.release()

	if got := pol.Acquire(adr, nil); got == nil || got.Id() != 1 {
		t.Fatal("idle matching connection must be acquired")
	}

	if pol.Acquire(adr, nil) != nil {
		t.Fatal("single exchange slot must not be double-acquired")
	}

	other := mkAddr("b.test")

	c.release()

	if pol.Acquire(other, nil) != nil {
		t.Fatal("different address must not match")
	}
}

func TestReleaseUnknownConnection(t *testing.T) {
	var (
		run = libtsk.New()
		pol = libpol.New(libpol.Config{}, run, nil)
		c   = newFake(7, mkAddr("a.test"))
	)

	defer func() {
		_ = run.Close()
	}()

	if !pol.Release(c) {
		t.Fatal("a connection evicted while in use must be closed by its caller")
	}
}

func TestEvictAll(t *testing.T) {
	var (
		run = libtsk.New()
		pol = libpol.New(libpol.Config{}, run, nil)
		a   = newFake(1, mkAddr("a.test"))
		b   = newFake(2, mkAddr("b.test"))
	)

	defer func() {
		_ = run.Close()
	}()

	pol.Put(a)
	pol.Put(b)

	pol.EvictAll()

	if !a.closed() || !b.closed() {
		t.Fatal("evict all must close every connection")
	}

	if pol.Len() != 0 {
		t.Fatal("evict all must empty the pool")
	}
}

func TestIdleEvictionAfterKeepAlive(t *testing.T) {
	var (
		run = libtsk.New()
		cfg = libpol.Config{MaxIdle: 5, KeepAlive: libdur.ParseDuration(50 * time.Millisecond)}
		pol = libpol.New(cfg, run, nil)
		adr = mkAddr("a.test")
		c   = newFake(1, adr)
	)

	defer func() {
		_ = run.Close()
	}()

	pol.Put(c)
	_ = pol.Release(c)

	deadline := time.Now().Add(2 * time.Second)

	for !c.closed() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if !c.closed() {
		t.Fatal("idle connection must be evicted after keep-alive")
	}

	if pol.Len() != 0 {
		t.Fatal("evicted connection must leave the pool")
	}
}

func TestIdleCapEvictsLongestIdle(t *testing.T) {
	var (
		run = libtsk.New()
		cfg = libpol.Config{MaxIdle: 1, KeepAlive: libdur.ParseDuration(time.Hour)}
		pol = libpol.New(cfg, run, nil)
		old = newFake(1, mkAddr("a.test"))
		fre = newFake(2, mkAddr("b.test"))
	)

	defer func() {
		_ = run.Close()
	}()

	old.m.Lock()
	old.idl = time.Now().Add(-time.Minute)
	old.m.Unlock()

	pol.Put(old)
	pol.Put(fre)

	_ = pol.Release(fre)

	deadline := time.Now().Add(2 * time.Second)

	for !old.closed() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if !old.closed() {
		t.Fatal("longest idle connection must be evicted beyond the cap")
	}

	if fre.closed() {
		t.Fatal("fresh connection must survive")
	}
}
