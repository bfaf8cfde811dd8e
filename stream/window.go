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

package stream

import (
	"math"
)

const tau = math.Pi * 2

// Hann will generate coefficients for the Hann windowing function. The
// coefficients are multiplied against the real and imaginary parts of
// each sample in a window before handing the buffer off to an FFT.
func Hann(size int) []float32 {
	buf := make([]float32, size)
	for i := range buf {
		buf[i] = float32(0.5 * (1 - math.Cos((tau*float64(i))/float64(size-1))))
	}
	return buf
}

// Blackman will generate coefficients for the Blackman windowing function.
func Blackman(size int) []float32 {
	var (
		buf         = make([]float32, size)
		a0  float64 = 0.42
		a1  float64 = 0.5
		a2  float64 = 0.08
	)

	for i := range buf {
		buf[i] = float32(a0 -
			(a1 * math.Cos((tau*float64(i))/float64(size))) +
			(a2 * math.Cos((tau*2*float64(i))/float64(size))))
	}

	return buf
}

// vim: foldmethod=marker
