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
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	libval "github.com/go-playground/validator/v10"
	libdur "github.com/nabbar/golib/duration"
	liberr "github.com/nabbar/golib/errors"
)

// Config drives the idle policy of the connection pool.
type Config struct {
	// MaxIdle is the maximum number of idle connections kept, all addresses
	// included. Zero falls back to 5.
	MaxIdle int `json:"max-idle" yaml:"max-idle" toml:"max-idle" mapstructure:"max-idle" validate:"gte=0"`

	// KeepAlive is the duration an idle connection stays pooled before
	// eviction. Zero falls back to 5 minutes.
	KeepAlive libdur.Duration `json:"keep-alive,omitempty" yaml:"keep-alive,omitempty" toml:"keep-alive,omitempty" mapstructure:"keep-alive,omitempty"`
}

// DefaultConfig returns the JSON of a default pool configuration.
func DefaultConfig(indent string) []byte {
	var (
		res = bytes.NewBuffer(make([]byte, 0))
		def = []byte(`{
  "max-idle": 5,
  "keep-alive": "5m"
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

	if !e.HasParent() {
		e = nil
	}

	return e
}

// Clone returns the config with defaults applied.
func (o Config) Clone() Config {
	if o.MaxIdle < 1 {
		o.MaxIdle = 5
	}

	if o.KeepAlive <= 0 {
		o.KeepAlive = libdur.ParseDuration(5 * time.Minute)
	}

	return o
}

func (o Config) keepAlive() time.Duration {
	return o.KeepAlive.Time()
}
