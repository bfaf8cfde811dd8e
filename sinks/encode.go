// {{{ Copyright (c) Paul R. Tagliamonte <paul@k3xec.com>, 2020
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE. }}}

package sinks

import (
	"hz.tools/sdrcap"
	"hz.tools/sdrcap/container"
)

// encoder pulls native complex64 bytes out of the ring and converts them
// into a session's stored encoding. The ring carries whole complex64
// frames, so reads land on 8 byte boundaries by construction.
type encoder struct {
	encoding container.Encoding
	c64      sdr.SamplesC64
	i16      sdr.SamplesI16
}

func newEncoder(encoding container.Encoding, frames int) *encoder {
	enc := &encoder{
		encoding: encoding,
		c64:      make(sdr.SamplesC64, frames),
	}
	if encoding == container.EncodingS16 {
		enc.i16 = make(sdr.SamplesI16, frames)
	}
	return enc
}

// readBuf is the byte view ring reads land in: the raw storage of the
// complex64 scratch buffer.
func (enc *encoder) readBuf() []byte {
	return sdr.MustUnsafeSamplesAsBytes(enc.c64)
}

// encode converts the first n bytes of readBuf into the target encoding,
// returning the encoded bytes. For float sessions this is a straight
// passthrough of the native representation.
func (enc *encoder) encode(n int) ([]byte, error) {
	frames := n / sdr.SampleFormatC64.Size()

	if enc.encoding == container.EncodingF32 {
		return enc.readBuf()[:n], nil
	}

	if _, err := sdr.ConvertBuffer(enc.i16.Slice(0, frames), enc.c64.Slice(0, frames)); err != nil {
		return nil, err
	}
	return sdr.MustUnsafeSamplesAsBytes(enc.i16)[:frames*sdr.SampleFormatI16.Size()], nil
}

// vim: foldmethod=marker
