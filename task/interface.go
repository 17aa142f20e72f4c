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

// Package task implements the shared background task runner of the engine.
//
// One runner owns one worker goroutine and a deadline-ordered set of named
// timed tasks (pool cleanup, protocol keepalives, cache trim). The worker
// sleeps until the earliest deadline, runs the due task without holding the
// runner monitor, then reschedules it from the task's returned delay. The
// worker exits while no task remains and is restarted on the next Schedule.
package task

import (
	"sync"
	"time"
)

// Func is the body of a timed task. It receives the firing instant and
// returns the delay until its next run; a negative delay unregisters the task.
type Func func(now time.Time) time.Duration

// Runner schedules named timed tasks on a single background worker.
// All methods are safe for concurrent use.
type Runner interface {
	// Schedule registers or replaces the task name to run after delay.
	Schedule(name string, delay time.Duration, fct Func)

	// Kick moves the task name deadline to now, if registered.
	Kick(name string)

	// Cancel unregisters the task name.
	Cancel(name string)

	// Close cancels every task and stops the worker. The runner cannot be
	// reused afterwards.
	Close() error
}

// New returns an idle Runner.
func New() Runner {
	return &run{
		m: sync.Mutex{},
		t: make(map[string]*entry),
		k: make(chan struct{}, 1),
	}
}
