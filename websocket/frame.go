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

package websocket

import (
	"encoding/binary"
	"io"

	liberr "github.com/nabbar/golib/errors"
)

const (
	opContinuation byte = 0x0
	opText         byte = 0x1
	opBinary       byte = 0x2
	opClose        byte = 0x8
	opPing         byte = 0x9
	opPong         byte = 0xA

	finBit  byte = 0x80
	rsv1Bit byte = 0x40
	rsv2Bit byte = 0x20
	rsv3Bit byte = 0x10
	maskBit byte = 0x80

	maxControlPayload = 125
)

func isControl(op byte) bool {
	return op >= 0x8
}

func isData(op byte) bool {
	return op == opText || op == opBinary
}

// frameHeader is the decoded fixed part of one frame.
type frameHeader struct {
	fin    bool
	rsv1   bool
	rsv2   bool
	rsv3   bool
	opcode byte
	masked bool
	length int64
	key    [4]byte
}

// readFrameHeader decodes the header octets of one frame from r.
func readFrameHeader(r io.Reader) (frameHeader, liberr.Error) {
	var (
		h frameHeader
		b [8]byte
	)

	if _, err := io.ReadFull(r, b[:2]); err != nil {
		return h, ErrorFrameRead.Error(err)
	}

	h.fin = b[0]&finBit != 0
	h.rsv1 = b[0]&rsv1Bit != 0
	h.rsv2 = b[0]&rsv2Bit != 0
	h.rsv3 = b[0]&rsv3Bit != 0
	h.opcode = b[0] & 0x0F
	h.masked = b[1]&maskBit != 0

	switch n := int64(b[1] & 0x7F); n {
	case 126:
		if _, err := io.ReadFull(r, b[:2]); err != nil {
			return h, ErrorFrameRead.Error(err)
		}

		h.length = int64(binary.BigEndian.Uint16(b[:2]))
	case 127:
		if _, err := io.ReadFull(r, b[:8]); err != nil {
			return h, ErrorFrameRead.Error(err)
		}

		v := binary.BigEndian.Uint64(b[:8])

		if v > 1<<62 {
			return h, ErrorProtocol.Errorf("frame length overflow")
		}

		h.length = int64(v)
	default:
		h.length = n
	}

	if h.masked {
		if _, err := io.ReadFull(r, h.key[:]); err != nil {
			return h, ErrorFrameRead.Error(err)
		}
	}

	return h, nil
}

// writeFrameHeader encodes h into buf and returns the used prefix.
func writeFrameHeader(buf []byte, fin bool, rsv1 bool, opcode byte, masked bool, key [4]byte, length int64) []byte {
	var b0 byte

	if fin {
		b0 |= finBit
	}

	if rsv1 {
		b0 |= rsv1Bit
	}

	b0 |= opcode

	buf = append(buf[:0], b0)

	var b1 byte

	if masked {
		b1 = maskBit
	}

	switch {
	case length <= 125:
		buf = append(buf, b1|byte(length))
	case length <= 0xFFFF:
		buf = append(buf, b1|126, byte(length>>8), byte(length))
	default:
		buf = append(buf, b1|127)
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(length))
		buf = append(buf, ext[:]...)
	}

	if masked {
		buf = append(buf, key[:]...)
	}

	return buf
}

// maskBytes applies the rolling XOR mask starting at offset pos.
func maskBytes(key [4]byte, pos int, p []byte) int {
	for i := range p {
		p[i] ^= key[pos&3]
		pos++
	}

	return pos
}

// validCloseCode rejects the reserved and unassigned close codes that must
// not appear on the wire.
func validCloseCode(code int) bool {
	switch {
	case code >= 1000 && code <= 1003:
		return true
	case code >= 1007 && code <= 1011:
		return true
	case code >= 3000 && code <= 4999:
		return true
	}

	return false
}
