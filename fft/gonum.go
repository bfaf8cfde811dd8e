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

package fft

import (
	"gonum.org/v1/gonum/dsp/fourier"

	"hz.tools/sdrcap"
)

type gonumPlan struct {
	fft       *fourier.CmplxFFT
	iq        sdr.SamplesC64
	frequency []complex64
	direction Direction

	in  []complex128
	out []complex128
}

// Transform implements the fft.Plan interface.
func (p *gonumPlan) Transform() error {
	switch p.direction {
	case Forward:
		for i, sample := range p.iq {
			p.in[i] = complex128(sample)
		}
		p.fft.Coefficients(p.out, p.in)
		for i, coeff := range p.out {
			p.frequency[i] = complex64(coeff)
		}
	case Backward:
		for i, coeff := range p.frequency {
			p.in[i] = complex128(coeff)
		}
		p.fft.Sequence(p.out, p.in)
		scale := complex(1/float64(len(p.out)), 0)
		for i, sample := range p.out {
			p.iq[i] = complex64(sample * scale)
		}
	}
	return nil
}

// Close implements the fft.Plan interface.
func (p *gonumPlan) Close() error {
	return nil
}

// Gonum is an fft.Planner backed by gonum's pure-Go complex FFT. Bins in
// the frequency slice come out ZeroFirst; use Shift for a NegativeFirst
// view.
func Gonum(iq sdr.SamplesC64, frequency []complex64, direction Direction) (Plan, error) {
	switch direction {
	case Forward:
		if len(frequency) < iq.Length() {
			return nil, sdr.ErrDstTooSmall
		}
	case Backward:
		if iq.Length() < len(frequency) {
			return nil, sdr.ErrDstTooSmall
		}
	}

	n := iq.Length()
	if len(frequency) < n {
		n = len(frequency)
	}
	return &gonumPlan{
		fft:       fourier.NewCmplxFFT(n),
		iq:        iq,
		frequency: frequency,
		direction: direction,
		in:        make([]complex128, n),
		out:       make([]complex128, n),
	}, nil
}

// vim: foldmethod=marker
