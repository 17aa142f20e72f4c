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

package client

import (
	"bytes"
	"encoding/json"
	"fmt"

	libval "github.com/go-playground/validator/v10"
	libtls "github.com/nabbar/golib/certificates"
	libdur "github.com/nabbar/golib/duration"
	liberr "github.com/nabbar/golib/errors"
	libcon "github.com/nabbar/httpcall/conn"
	libpol "github.com/nabbar/httpcall/pool"
)

// maxFollowUp is the hard bound on retries and follow-ups of one call.
const maxFollowUp = 20

// defUserAgent is sent when the caller did not set one.
const defUserAgent = "httpcall/1.0"

// Config assembles one engine.
type Config struct {
	// CallTimeout is the wall-clock bound of one entire call, follow-ups
	// included. Zero means unbounded.
	CallTimeout libdur.Duration `json:"call-timeout,omitempty" yaml:"call-timeout,omitempty" toml:"call-timeout,omitempty" mapstructure:"call-timeout,omitempty"`

	// Conn tunes connection establishment and per-exchange I/O bounds.
	Conn libcon.Config `json:"conn,omitempty" yaml:"conn,omitempty" toml:"conn,omitempty" mapstructure:"conn,omitempty"`

	// Pool tunes the idle connection policy.
	Pool libpol.Config `json:"pool,omitempty" yaml:"pool,omitempty" toml:"pool,omitempty" mapstructure:"pool,omitempty"`

	// TLSConfig configures the delegated TLS collaborator for https targets.
	TLSConfig *libtls.Config `json:"tls-config,omitempty" yaml:"tls-config,omitempty" toml:"tls-config,omitempty" mapstructure:"tls-config,omitempty"`

	// MaxRequests caps the in-flight asynchronous calls. Zero means 64.
	MaxRequests int `json:"max-requests" yaml:"max-requests" toml:"max-requests" mapstructure:"max-requests" validate:"gte=0"`

	// MaxRequestsPerHost caps the in-flight asynchronous calls per host.
	// Zero means 5.
	MaxRequestsPerHost int `json:"max-requests-per-host" yaml:"max-requests-per-host" toml:"max-requests-per-host" mapstructure:"max-requests-per-host" validate:"gte=0"`

	// DisableRedirects returns 3xx responses to the caller instead of
	// following them.
	DisableRedirects bool `json:"disable-redirects" yaml:"disable-redirects" toml:"disable-redirects" mapstructure:"disable-redirects"`

	// DisableCompression stops the bridge from asking for and transparently
	// decoding gzip bodies.
	DisableCompression bool `json:"disable-compression" yaml:"disable-compression" toml:"disable-compression" mapstructure:"disable-compression"`

	// UserAgent overrides the default User-Agent field.
	UserAgent string `json:"user-agent,omitempty" yaml:"user-agent,omitempty" toml:"user-agent,omitempty" mapstructure:"user-agent,omitempty"`
}

// DefaultConfig returns the JSON of a default engine configuration.
func DefaultConfig(indent string) []byte {
	var (
		res = bytes.NewBuffer(make([]byte, 0))
		def = []byte(`{
  "call-timeout": "0s",
  "conn": {
    "connect-timeout": "10s",
    "read-timeout": "30s",
    "write-timeout": "30s",
    "tls-handshake-timeout": "10s",
    "http2": {}
  },
  "pool": ` + string(libpol.DefaultConfig("  ")) + `,
  "max-requests": 64,
  "max-requests-per-host": 5,
  "disable-redirects": false,
  "disable-compression": false
}`)
	)

	if err := json.Indent(res, def, indent, "  "); err != nil {
		return def
	} else {
		return res.Bytes()
	}
}

// Validate checks the Config against its constraints.
func (o Config) Validate() liberr.Error {
	var e = ErrorValidatorError.Error(nil)

	if err := libval.New().Struct(o); err != nil {
		if er, ok := err.(*libval.InvalidValidationError); ok {
			e.Add(er)
		}

		for _, er := range err.(libval.ValidationErrors) {
			//nolint #goerr113
			e.Add(fmt.Errorf("config field '%s' is not validated by constraint '%s'", er.Namespace(), er.ActualTag()))
		}
	}

	if er := o.Conn.Validate(); er != nil {
		e.Add(er)
	}

	if er := o.Pool.Validate(); er != nil {
		e.Add(er)
	}

	if !e.HasParent() {
		e = nil
	}

	return e
}

func (o Config) maxRequests() int {
	if o.MaxRequests < 1 {
		return 64
	}

	return o.MaxRequests
}

func (o Config) maxPerHost() int {
	if o.MaxRequestsPerHost < 1 {
		return 5
	}

	return o.MaxRequestsPerHost
}

func (o Config) userAgent() string {
	if o.UserAgent == "" {
		return defUserAgent
	}

	return o.UserAgent
}
