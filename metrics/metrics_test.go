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

package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	libmet "github.com/nabbar/httpcall/metrics"
	librqs "github.com/nabbar/httpcall/request"
)

func TestCollectorRegisters(t *testing.T) {
	var (
		col = libmet.New("test")
		reg = prometheus.NewPedanticRegistry()
	)

	if err := reg.Register(col); err != nil {
		t.Fatalf("registering collector: %v", err)
	}

	l := col.Listener()()

	l.CallStart(nil)
	l.ConnectStart("127.0.0.1:80")
	l.ConnectEnd("127.0.0.1:80", librqs.ProtocolHTTP11, nil)
	l.CallEnd()

	fam, err := reg.Gather()

	if err != nil {
		t.Fatalf("gathering: %v", err)
	}

	var found bool

	for _, f := range fam {
		if f.GetName() == "test_httpcall_calls_total" {
			found = true

			if len(f.GetMetric()) != 1 || f.GetMetric()[0].GetCounter().GetValue() != 1 {
				t.Fatalf("unexpected calls counter: %v", f)
			}
		}
	}

	if !found {
		t.Fatal("calls counter not exported")
	}
}

func TestFailurePath(t *testing.T) {
	col := libmet.New("t2")

	l := col.Listener()()

	l.CallStart(nil)
	l.CallFailed(nil)

	reg := prometheus.NewPedanticRegistry()

	if err := reg.Register(col); err != nil {
		t.Fatalf("registering collector: %v", err)
	}

	fam, err := reg.Gather()

	if err != nil {
		t.Fatalf("gathering: %v", err)
	}

	for _, f := range fam {
		if f.GetName() == "t2_httpcall_calls_total" {
			m := f.GetMetric()

			if len(m) != 1 {
				t.Fatalf("expected one labelled series, got %d", len(m))
			}

			for _, lp := range m[0].GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() != "failure" {
					t.Fatalf("expected failure outcome, got %s", lp.GetValue())
				}
			}
		}
	}
}
