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

package resolver_test

import (
	"context"
	"net"
	"testing"

	liberr "github.com/nabbar/golib/errors"
	libdns "github.com/nabbar/httpcall/resolver"
)

func TestSystemLiteral(t *testing.T) {
	ips, err := libdns.System().Lookup(context.Background(), "127.0.0.1")

	if err != nil {
		t.Fatalf("ip literal must not fail: %v", err)
	}

	if len(ips) != 1 || !ips[0].Equal(net.IPv4(127, 0, 0, 1)) {
		t.Fatalf("unexpected result: %v", ips)
	}
}

func TestSystemEmptyHost(t *testing.T) {
	if _, err := libdns.System().Lookup(context.Background(), ""); err == nil {
		t.Fatal("empty hostname must fail")
	}
}

func TestStaticExact(t *testing.T) {
	d := libdns.Static(map[string][]net.IP{
		"api.example.test": {net.IPv4(10, 0, 0, 1)},
	}, nil)

	ips, err := d.Lookup(context.Background(), "api.example.test")

	if err != nil {
		t.Fatalf("mapped host must resolve: %v", err)
	}

	if len(ips) != 1 || !ips[0].Equal(net.IPv4(10, 0, 0, 1)) {
		t.Fatalf("unexpected result: %v", ips)
	}
}

func TestStaticWildcard(t *testing.T) {
	d := libdns.Static(map[string][]net.IP{
		"*.example.test": {net.IPv4(10, 0, 0, 2)},
	}, nil)

	ips, err := d.Lookup(context.Background(), "deep.example.test")

	if err != nil {
		t.Fatalf("wildcard host must resolve: %v", err)
	}

	if len(ips) != 1 || !ips[0].Equal(net.IPv4(10, 0, 0, 2)) {
		t.Fatalf("unexpected result: %v", ips)
	}
}

func TestStaticUnknown(t *testing.T) {
	d := libdns.Static(nil, nil)

	_, err := d.Lookup(context.Background(), "missing.example.test")

	if err == nil {
		t.Fatal("unmapped host without fallthrough must fail")
	}

	if !liberr.Has(err, libdns.ErrorUnknownHost) {
		t.Fatalf("expected unknown-host, got %v", err)
	}
}

func TestStaticFallthrough(t *testing.T) {
	d := libdns.Static(nil, libdns.Static(map[string][]net.IP{
		"next.example.test": {net.IPv4(10, 0, 0, 3)},
	}, nil))

	ips, err := d.Lookup(context.Background(), "next.example.test")

	if err != nil {
		t.Fatalf("fallthrough must be consulted: %v", err)
	}

	if len(ips) != 1 || !ips[0].Equal(net.IPv4(10, 0, 0, 3)) {
		t.Fatalf("unexpected result: %v", ips)
	}
}
