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

package request_test

import (
	liberr "github.com/nabbar/golib/errors"
	libhdr "github.com/nabbar/httpcall/header"
	librqs "github.com/nabbar/httpcall/request"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Request Builder", func() {
	Describe("method and body rules", func() {
		It("should refuse a body on GET", func() {
			b := librqs.New()
			b.SetEndpoint("http://example.test/")
			b.SetMethod("GET", librqs.NewBodyString("text/plain", "x"))

			_, err := b.Build()
			Expect(err).To(HaveOccurred())
			Expect(liberr.Has(err, librqs.ErrorBodyNotAllowed)).To(BeTrue())
		})

		It("should require a body on POST", func() {
			b := librqs.New()
			b.SetEndpoint("http://example.test/")
			b.SetMethod("POST", nil)

			_, err := b.Build()
			Expect(err).To(HaveOccurred())
			Expect(liberr.Has(err, librqs.ErrorBodyRequired)).To(BeTrue())
		})

		It("should default DELETE to a zero-length body", func() {
			b := librqs.New()
			b.SetEndpoint("http://example.test/")
			b.SetMethod("DELETE", nil)

			req, err := b.Build()
			Expect(err).ToNot(HaveOccurred())
			Expect(req.Body()).ToNot(BeNil())
			Expect(req.Body().ContentLength()).To(Equal(int64(0)))
		})

		It("should uppercase the method", func() {
			b := librqs.New()
			b.SetEndpoint("http://example.test/")
			b.SetMethod("head", nil)

			req, err := b.Build()
			Expect(err).ToNot(HaveOccurred())
			Expect(req.Method()).To(Equal("HEAD"))
		})
	})

	Describe("url handling", func() {
		It("should refuse a relative url", func() {
			b := librqs.New()
			b.SetEndpoint("/just/a/path")

			_, err := b.Build()
			Expect(err).To(HaveOccurred())
		})

		It("should refuse an unsupported scheme", func() {
			b := librqs.New()
			b.SetEndpoint("ftp://example.test/")

			_, err := b.Build()
			Expect(err).To(HaveOccurred())
			Expect(liberr.Has(err, librqs.ErrorURLScheme)).To(BeTrue())
		})

		It("should map websocket schemes on http", func() {
			b := librqs.New()
			b.SetEndpoint("wss://example.test/chat")

			req, err := b.Build()
			Expect(err).ToNot(HaveOccurred())
			Expect(req.Url().Scheme).To(Equal("https"))
		})

		It("should fail on a missing url", func() {
			b := librqs.New()
			b.SetMethod("GET", nil)

			_, err := b.Build()
			Expect(err).To(HaveOccurred())
			Expect(liberr.Has(err, librqs.ErrorURLMissing)).To(BeTrue())
		})
	})

	Describe("headers and tags", func() {
		It("should keep duplicates added with AddHeader", func() {
			b := librqs.New()
			b.SetEndpoint("http://example.test/")
			b.AddHeader("Accept", "text/html")
			b.AddHeader("Accept", "application/json")

			req, err := b.Build()
			Expect(err).ToNot(HaveOccurred())
			Expect(req.Header().Values("Accept")).To(HaveLen(2))
		})

		It("should replace with SetHeader", func() {
			b := librqs.New()
			b.SetEndpoint("http://example.test/")
			b.AddHeader("Accept", "text/html")
			b.SetHeader("Accept", "application/json")

			req, err := b.Build()
			Expect(err).ToNot(HaveOccurred())
			Expect(req.Header().Values("Accept")).To(Equal([]string{"application/json"}))
		})

		It("should reject invalid header names", func() {
			b := librqs.New()
			b.SetEndpoint("http://example.test/")
			b.SetHeader("bad name", "v")

			_, err := b.Build()
			Expect(err).To(HaveOccurred())
		})

		It("should expose cache control through the dedicated setter", func() {
			b := librqs.New()
			b.SetEndpoint("http://example.test/")
			b.SetCacheControl("no-cache")

			req, err := b.Build()
			Expect(err).ToNot(HaveOccurred())
			Expect(req.CacheControl()).To(Equal("no-cache"))
		})

		It("should carry tags to the built request", func() {
			b := librqs.New()
			b.SetEndpoint("http://example.test/")
			b.SetTag("trace-id", "abc")

			req, err := b.Build()
			Expect(err).ToNot(HaveOccurred())
			Expect(req.Tag("trace-id")).To(Equal("abc"))
			Expect(req.Tag("missing")).To(BeNil())
		})
	})

	Describe("immutability", func() {
		It("should isolate the built request from later builder changes", func() {
			b := librqs.New()
			b.SetEndpoint("http://example.test/")
			b.SetHeader("A", "1")

			req, err := b.Build()
			Expect(err).ToNot(HaveOccurred())

			b.SetHeader("A", "2")

			Expect(req.Header().Get("A")).To(Equal("1"))
		})

		It("should rebuild through Builder()", func() {
			b := librqs.New()
			b.SetEndpoint("http://example.test/a")

			req, err := b.Build()
			Expect(err).ToNot(HaveOccurred())

			nb := req.Builder()
			nb.SetHeader("X", "y")

			nxt, err := nb.Build()
			Expect(err).ToNot(HaveOccurred())
			Expect(nxt.Header().Get("X")).To(Equal("y"))
			Expect(req.Header().Has("X")).To(BeFalse())
			Expect(nxt.Url().String()).To(Equal(req.Url().String()))
		})
	})
})

var _ = Describe("Protocol", func() {
	It("should round trip the protocol tokens", func() {
		for _, p := range []librqs.Protocol{
			librqs.ProtocolHTTP10,
			librqs.ProtocolHTTP11,
			librqs.ProtocolH2,
			librqs.ProtocolH2C,
		} {
			Expect(librqs.ParseProtocol(p.String())).To(Equal(p))
		}
	})

	It("should flag multiplexed protocols", func() {
		Expect(librqs.ProtocolH2.Multiplexed()).To(BeTrue())
		Expect(librqs.ProtocolH2C.Multiplexed()).To(BeTrue())
		Expect(librqs.ProtocolHTTP11.Multiplexed()).To(BeFalse())
	})
})

var _ = Describe("Response", func() {
	It("should parse basic challenges", func() {
		h := libhdr.New()
		h.Add("WWW-Authenticate", `Basic realm="api"`)

		rsp := &librqs.Response{Status: 401, Header: h}

		ch := rsp.Challenges()
		Expect(ch).To(HaveLen(1))
		Expect(ch[0].Scheme).To(Equal("Basic"))
		Expect(ch[0].Realm).To(Equal("api"))
	})

	It("should return no challenge outside 401/407", func() {
		rsp := &librqs.Response{Status: 200, Header: libhdr.New()}
		Expect(rsp.Challenges()).To(BeEmpty())
	})

	It("should flag redirects", func() {
		for _, s := range []int{300, 301, 302, 303, 307, 308} {
			rsp := &librqs.Response{Status: s, Header: libhdr.New()}
			Expect(rsp.IsRedirect()).To(BeTrue())
		}

		rsp := &librqs.Response{Status: 304, Header: libhdr.New()}
		Expect(rsp.IsRedirect()).To(BeFalse())
	})
})
