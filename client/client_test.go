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

package client_test

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	liberr "github.com/nabbar/golib/errors"
	libcch "github.com/nabbar/httpcall/cache"
	libcli "github.com/nabbar/httpcall/client"
	libevt "github.com/nabbar/httpcall/event"
	librqs "github.com/nabbar/httpcall/request"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func mkGet(uri string) librqs.Request {
	b := librqs.New()
	b.SetEndpoint(uri)

	req, err := b.Build()
	Expect(err).ToNot(HaveOccurred())

	return req
}

func drain(rsp *librqs.Response) string {
	defer func() {
		_ = rsp.Close()
	}()

	p, err := io.ReadAll(rsp.Body)
	Expect(err).ToNot(HaveOccurred())

	return string(p)
}

var _ = Describe("Call Engine", func() {
	var (
		eng libcli.HttpCall
		srv *httptest.Server
	)

	AfterEach(func() {
		if eng != nil {
			_ = eng.Close()
			eng = nil
		}

		if srv != nil {
			srv.Close()
			srv = nil
		}
	})

	newEngine := func(cfg libcli.Config) libcli.HttpCall {
		e, err := libcli.New(cfg, nil)
		Expect(err).ToNot(HaveOccurred())
		return e
	}

	Describe("plain exchanges", func() {
		It("should perform a GET over http/1.1", func() {
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Probe", r.URL.Path)
				_, _ = fmt.Fprint(w, "hello")
			}))

			eng = newEngine(libcli.Config{})

			rsp, err := eng.Do(mkGet(srv.URL + "/a"))
			Expect(err).ToNot(HaveOccurred())
			Expect(rsp.Status).To(Equal(200))
			Expect(rsp.Proto).To(Equal(librqs.ProtocolHTTP11))
			Expect(rsp.Header.Get("X-Probe")).To(Equal("/a"))
			Expect(drain(rsp)).To(Equal("hello"))
		})

		It("should send a POST body with its content length", func() {
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				p, _ := io.ReadAll(r.Body)
				w.Header().Set("echo", string(p))
			}))

			eng = newEngine(libcli.Config{})

			b := librqs.New()
			b.SetEndpoint(srv.URL + "/echo")
			b.SetMethod("POST", librqs.NewBodyString("text/plain", "hi!"))

			req, err := b.Build()
			Expect(err).ToNot(HaveOccurred())

			rsp, cerr := eng.Do(req)
			Expect(cerr).ToNot(HaveOccurred())
			Expect(rsp.Status).To(Equal(200))
			Expect(rsp.Header.Get("echo")).To(Equal("hi!"))

			_ = drain(rsp)
		})

		It("should decode gzip transparently", func() {
			var acceptEnc = make(chan string, 1)

			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				acceptEnc <- r.Header.Get("Accept-Encoding")

				w.Header().Set("Content-Encoding", "gzip")

				z := gzip.NewWriter(w)
				_, _ = z.Write([]byte("compressed payload"))
				_ = z.Close()
			}))

			eng = newEngine(libcli.Config{})

			rsp, err := eng.Do(mkGet(srv.URL + "/z"))
			Expect(err).ToNot(HaveOccurred())
			Expect(rsp.Header.Has("Content-Encoding")).To(BeFalse())
			Expect(drain(rsp)).To(Equal("compressed payload"))
			Eventually(acceptEnc).Should(Receive(ContainSubstring("gzip")))
		})

		It("should set the ambient wire headers", func() {
			var seen http.Header

			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.Header.Clone()
				seen.Set("Host", r.Host)
			}))

			eng = newEngine(libcli.Config{UserAgent: "probe/1"})

			rsp, err := eng.Do(mkGet(srv.URL + "/h"))
			Expect(err).ToNot(HaveOccurred())

			_ = drain(rsp)

			Expect(seen.Get("User-Agent")).To(Equal("probe/1"))
			Expect(seen.Get("Host")).ToNot(BeEmpty())
		})
	})

	Describe("connection reuse", func() {
		It("should carry sequential calls on one connection", func() {
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = fmt.Fprint(w, "ok")
			}))

			var rec = &recListener{}

			eng = newEngine(libcli.Config{})
			eng.SetListener(func() libevt.Listener { return rec })

			for i := 0; i < 3; i++ {
				rsp, err := eng.Do(mkGet(srv.URL + "/r"))
				Expect(err).ToNot(HaveOccurred())
				Expect(drain(rsp)).To(Equal("ok"))
			}

			ids := rec.Acquired()
			Expect(ids).To(HaveLen(3))
			Expect(ids[1]).To(Equal(ids[0]))
			Expect(ids[2]).To(Equal(ids[0]))
		})
	})

	Describe("redirects", func() {
		It("should follow a redirect and strip nothing on same origin", func() {
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/from" {
					http.Redirect(w, r, "/to", http.StatusFound)
					return
				}

				_, _ = fmt.Fprint(w, "landed "+r.URL.Path)
			}))

			eng = newEngine(libcli.Config{})

			rsp, err := eng.Do(mkGet(srv.URL + "/from"))
			Expect(err).ToNot(HaveOccurred())
			Expect(rsp.Status).To(Equal(200))
			Expect(drain(rsp)).To(Equal("landed /to"))
			Expect(rsp.Prior).ToNot(BeNil())
			Expect(rsp.Prior.Status).To(Equal(302))
		})

		It("should surface redirects when disabled", func() {
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/to", http.StatusFound)
			}))

			eng = newEngine(libcli.Config{DisableRedirects: true})

			rsp, err := eng.Do(mkGet(srv.URL + "/from"))
			Expect(err).ToNot(HaveOccurred())
			Expect(rsp.Status).To(Equal(302))

			_ = drain(rsp)
		})

		It("should abort an endless redirect chain after the follow-up cap", func() {
			var hits int32

			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				http.Redirect(w, r, "/loop", http.StatusFound)
			}))

			eng = newEngine(libcli.Config{})

			_, err := eng.Do(mkGet(srv.URL + "/loop"))
			Expect(err).To(HaveOccurred())
			Expect(liberr.Has(err, libcli.ErrorTooManyFollowUp)).To(BeTrue())
			Expect(atomic.LoadInt32(&hits)).To(Equal(int32(21)))
		})
	})

	Describe("cache layer", func() {
		It("should serve a fresh entry without the network", func() {
			var hits int32

			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.Header().Set("Cache-Control", "max-age=120")
				_, _ = fmt.Fprint(w, "cached body")
			}))

			eng = newEngine(libcli.Config{})
			eng.SetCacheStorage(libcch.Memory(16))

			first, err := eng.Do(mkGet(srv.URL + "/c"))
			Expect(err).ToNot(HaveOccurred())
			Expect(drain(first)).To(Equal("cached body"))

			second, err := eng.Do(mkGet(srv.URL + "/c"))
			Expect(err).ToNot(HaveOccurred())
			Expect(drain(second)).To(Equal("cached body"))
			Expect(second.Cached).ToNot(BeNil())

			Expect(atomic.LoadInt32(&hits)).To(Equal(int32(1)))
		})

		It("should answer 504 on an only-if-cached miss", func() {
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = fmt.Fprint(w, "never")
			}))

			eng = newEngine(libcli.Config{})
			eng.SetCacheStorage(libcch.Memory(16))

			b := librqs.New()
			b.SetEndpoint(srv.URL + "/miss")
			b.SetCacheControl("only-if-cached")

			req, err := b.Build()
			Expect(err).ToNot(HaveOccurred())

			rsp, cerr := eng.Do(req)
			Expect(cerr).ToNot(HaveOccurred())
			Expect(rsp.Status).To(Equal(504))
		})
	})

	Describe("cancellation", func() {
		It("should fail a cancelled call quickly with the canceled kind", func() {
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(5 * time.Second):
				}
			}))

			eng = newEngine(libcli.Config{})

			var (
				call = eng.NewCall(mkGet(srv.URL + "/slow"))
				done = make(chan error, 1)
			)

			go func() {
				_, err := call.Execute()
				done <- err
			}()

			time.Sleep(100 * time.Millisecond)
			call.Cancel()

			select {
			case err := <-done:
				Expect(err).To(HaveOccurred())
				Expect(liberr.Has(err, libcli.ErrorCanceled)).To(BeTrue())
			case <-time.After(2 * time.Second):
				Fail("cancelled call did not complete in time")
			}

			Expect(call.IsCanceled()).To(BeTrue())
		})

		It("should refuse a second execution", func() {
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = fmt.Fprint(w, "once")
			}))

			eng = newEngine(libcli.Config{})

			call := eng.NewCall(mkGet(srv.URL + "/once"))

			rsp, err := call.Execute()
			Expect(err).ToNot(HaveOccurred())
			_ = drain(rsp)

			_, err = call.Execute()
			Expect(err).To(HaveOccurred())
			Expect(liberr.Has(err, libcli.ErrorCallExecuted)).To(BeTrue())
		})
	})

	Describe("dispatcher", func() {
		It("should run an enqueued call and deliver the callback", func() {
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = fmt.Fprint(w, "async")
			}))

			eng = newEngine(libcli.Config{})

			var done = make(chan string, 1)

			eng.NewCall(mkGet(srv.URL+"/async")).Enqueue(func(call libcli.Call, rsp *librqs.Response, err liberr.Error) {
				if err != nil {
					done <- err.Error()
					return
				}

				p, _ := io.ReadAll(rsp.Body)
				_ = rsp.Close()

				done <- string(p)
			})

			Eventually(done, 5*time.Second).Should(Receive(Equal("async")))
		})
	})

	Describe("interceptors", func() {
		It("should run application interceptors once per logical call", func() {
			var calls int32

			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/from" {
					http.Redirect(w, r, "/to", http.StatusFound)
					return
				}

				_, _ = fmt.Fprint(w, "done")
			}))

			eng = newEngine(libcli.Config{})

			eng.Use(libcli.FuncIntercept(func(c libcli.Chain) (*librqs.Response, liberr.Error) {
				atomic.AddInt32(&calls, 1)
				return c.Proceed(c.Request())
			}))

			rsp, err := eng.Do(mkGet(srv.URL + "/from"))
			Expect(err).ToNot(HaveOccurred())
			Expect(drain(rsp)).To(Equal("done"))

			// the redirect was followed inside, the application layer ran once
			Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
		})

		It("should let an interceptor short-circuit the chain", func() {
			eng = newEngine(libcli.Config{})

			eng.Use(libcli.FuncIntercept(func(c libcli.Chain) (*librqs.Response, liberr.Error) {
				return &librqs.Response{
					Status:  418,
					Proto:   librqs.ProtocolHTTP11,
					Header:  c.Request().Header(),
					Request: c.Request(),
				}, nil
			}))

			rsp, err := eng.Do(mkGet("http://unreachable.invalid/x"))
			Expect(err).ToNot(HaveOccurred())
			Expect(rsp.Status).To(Equal(418))
		})
	})
})
