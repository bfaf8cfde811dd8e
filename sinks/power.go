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
	"context"
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"strings"
	"time"

	"hz.tools/sdrcap"
	"hz.tools/sdrcap/capture"
	"hz.tools/sdrcap/fft"
	"hz.tools/sdrcap/stream"
)

// PowerConfig tunes the periodogram.
type PowerConfig struct {
	// Bins is the FFT size. Defaults to 1024. If RBW is set instead,
	// Bins is derived as rate / RBW, rounded up to a power of two.
	Bins int

	// RBW is the desired resolution bandwidth in Hz. Zero means use
	// Bins as given.
	RBW float64

	// Integration is how long |FFT|^2 results are averaged before a
	// line is emitted. Defaults to one second.
	Integration time.Duration

	// Average, if nonzero, emits after this many FFTs instead of after
	// Integration elapses.
	Average int

	// Planner computes the FFTs. Defaults to fft.Gonum.
	Planner fft.Planner
}

// PowerMeter computes a Hann-windowed averaged periodogram over the
// capture stream and emits it as rtl_power format text lines:
//
//	YYYY-MM-DD, HH:MM:SS, f_lo, f_hi, bin_hz, n, db_0, ..., db_{N-1}
//
// Bins run from f_lo to f_hi: the FFT output is shifted so bin 0 is the
// lowest frequency.
type PowerMeter struct {
	engine *capture.Engine
	cfg    PowerConfig

	broadcast *broadcaster
}

// NewPowerMeter creates a PowerMeter over the engine's ring.
func NewPowerMeter(engine *capture.Engine, cfg PowerConfig) *PowerMeter {
	if cfg.RBW > 0 {
		rate := engine.Snapshot().SampleRate
		bins := 1
		for float64(rate)/float64(bins) > cfg.RBW {
			bins <<= 1
		}
		cfg.Bins = bins
	}
	if cfg.Bins <= 0 {
		cfg.Bins = 1024
	}
	if cfg.Integration <= 0 {
		cfg.Integration = time.Second
	}
	if cfg.Planner == nil {
		cfg.Planner = fft.Gonum
	}

	return &PowerMeter{
		engine:    engine,
		cfg:       cfg,
		broadcast: newBroadcaster(),
	}
}

// Bins returns the FFT size in use, after any RBW derivation.
func (pm *PowerMeter) Bins() int {
	return pm.cfg.Bins
}

// Subscribe attaches a line consumer (the /power endpoint, a waterfall).
func (pm *PowerMeter) Subscribe() (<-chan string, func()) {
	return pm.broadcast.Subscribe()
}

// Run consumes the ring until the context is canceled or the ring
// closes.
func (pm *PowerMeter) Run(ctx context.Context) {
	buf := pm.engine.Ring()
	consumer := buf.Subscribe()
	defer buf.Unsubscribe(consumer)

	go func() {
		<-ctx.Done()
		buf.Unsubscribe(consumer)
	}()

	var (
		bins    = pm.cfg.Bins
		window  = stream.Hann(bins)
		samples = make(sdr.SamplesC64, bins)
		raw     = sdr.MustUnsafeSamplesAsBytes(samples)
		freq    = make([]complex64, bins)
		acc     = make([]float64, bins)
		nFFT    = 0
		started = time.Now()
	)

	plan, err := pm.cfg.Planner(samples, freq, fft.Forward)
	if err != nil {
		log.Printf("sinks: power meter FFT plan: %s", err)
		return
	}
	defer plan.Close()

	for {
		// One full window of samples per FFT; a slip just means the
		// window is taken a little later in the stream.
		filled := 0
		for filled < len(raw) {
			n, _, err := consumer.Read(raw[filled:])
			if err != nil {
				return
			}
			filled += n
		}

		for i := range samples {
			samples[i] = complex(
				real(samples[i])*window[i],
				imag(samples[i])*window[i],
			)
		}

		if err := plan.Transform(); err != nil {
			log.Printf("sinks: power meter transform: %s", err)
			return
		}
		// Center the spectrum: bin 0 becomes the lowest frequency.
		slice, err := fft.NewFrequencySlice(
			freq, pm.engine.Snapshot().SampleRate, fft.ZeroFirst,
		).Shift()
		if err != nil {
			log.Printf("sinks: power meter shift: %s", err)
			return
		}

		for i, coeff := range slice.Frequency {
			mag := cmplx.Abs(complex128(coeff)) / float64(bins)
			acc[i] += mag * mag
		}
		nFFT++

		emit := false
		switch {
		case pm.cfg.Average > 0:
			emit = nFFT >= pm.cfg.Average
		default:
			emit = time.Since(started) >= pm.cfg.Integration
		}
		if !emit {
			continue
		}

		pm.broadcast.publish(pm.line(time.Now(), acc, nFFT))
		for i := range acc {
			acc[i] = 0
		}
		nFFT = 0
		started = time.Now()
	}
}

func (pm *PowerMeter) line(now time.Time, acc []float64, nFFT int) string {
	var (
		state   = pm.engine.Snapshot()
		bins    = len(acc)
		nyquest = fft.Nyquest(state.SampleRate)
		binHz   = fft.BinBandwidth(bins, state.SampleRate)
	)

	ret := strings.Builder{}
	fmt.Fprintf(
		&ret, "%s, %s, %.0f, %.0f, %.2f, %d",
		now.Format("2006-01-02"), now.Format("15:04:05"),
		float64(state.CenterFrequency-nyquest),
		float64(state.CenterFrequency+nyquest),
		float64(binHz), nFFT*bins,
	)
	for _, power := range acc {
		fmt.Fprintf(&ret, ", %.2f", 10*math.Log10(power/float64(nFFT)+1e-20))
	}
	return ret.String()
}

// vim: foldmethod=marker
