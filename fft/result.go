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
	"fmt"

	"hz.tools/rf"
)

// Order specifies what order the fft slice is in.
type Order bool

var (
	// ZeroFirst indicates that the fft data starts with 0, then increases
	// through frequencies to the positive nyquest frequency, then starts
	// at the negative nyquest frequency, back to 0.
	ZeroFirst Order = false

	// NegativeFirst represents what humans understand as an fft, where it
	// starts at the negative nyquest frequency through to the positive
	// nyquest frequency, with 0hz in the center.
	NegativeFirst Order = true
)

// FrequencySlice is the common struct we can use to make sense of the common
// data we need to pass around.
type FrequencySlice struct {
	// Frequency is a slice of frequency space.
	Frequency []complex64

	// SampleRate is the number of readings per second in the time domain
	// used to generate the data input into the FFT.
	SampleRate uint

	// Order is what order bins are in memory -- either ZeroFirst or
	// NegativeFirst. More orders may be added in future, so a switch ought
	// to be used, and default to returning an error case, even if this
	// is not possible given the current type.
	Order Order
}

// NewFrequencySlice will create a new fft.FrequencySlice - which is a struct that represents
// the results of a forward FFT in the frequency domain, *not* any time-domain
// samples. Those should be of type sdr.SamplesC64.
func NewFrequencySlice(frequency []complex64, sampleRate uint, order Order) FrequencySlice {
	return FrequencySlice{
		Frequency:  frequency,
		SampleRate: sampleRate,
		Order:      order,
	}
}

// BinBandwidth is the amount frequency each bin represents in a fft slice.
func (r FrequencySlice) BinBandwidth() rf.Hz {
	return BinBandwidth(len(r.Frequency), r.SampleRate)
}

// Shift will go from ZeroFirst to negativeFirst or vice versa.
func (r FrequencySlice) Shift() (FrequencySlice, error) {
	switch r.Order {
	case ZeroFirst, NegativeFirst:
	default:
		return r, fmt.Errorf("fft.FrequencySlice.Shift: Unknown fft layout")
	}

	zero := len(r.Frequency) / 2
	for i := 0; i < zero; i++ {
		r.Frequency[i], r.Frequency[i+zero] = r.Frequency[i+zero], r.Frequency[i]
	}
	r.Order = !r.Order
	return r, nil
}

// Nyquest is half the sampling rate.
func (r FrequencySlice) Nyquest() rf.Hz {
	return Nyquest(r.SampleRate)
}

// BinBandwidth will return the bandwidth represented by a provided bin.
func BinBandwidth(frequencyLen int, sampleRate uint) rf.Hz {
	return rf.Hz(float32(sampleRate) / float32(frequencyLen))
}

func Nyquest(sampleRate uint) rf.Hz {
	return rf.Hz(sampleRate) / 2
}

// vim: foldmethod=marker
