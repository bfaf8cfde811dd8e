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

package device

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"hz.tools/rf"
	"hz.tools/sdrcap"
	"hz.tools/sdrcap/stream"
)

// SimulatedConfig holds the initial state of a Simulated device.
type SimulatedConfig struct {
	// CenterFrequency is the initial tuning, in Hz.
	CenterFrequency rf.Hz

	// SampleRate is the initial sample rate. Defaults to 1.8 MSps.
	SampleRate uint

	// SampleFormat is the format the device hands back. Defaults to
	// complex64; set SampleFormatI16 to exercise the int16 read path.
	SampleFormat sdr.SampleFormat

	// ToneOffset is where the synthesized carrier sits relative to the
	// center frequency. Defaults to an eighth of the sample rate.
	ToneOffset rf.Hz

	// Amplitude of the carrier, 0 to 1. Defaults to 0.5.
	Amplitude float32

	// NoiseFloor is the amplitude of the uniform noise mixed in under the
	// carrier. Defaults to 0.001.
	NoiseFloor float32

	// Seed for the noise source, so captures are reproducible. A zero
	// Seed is used as-is.
	Seed int64

	// RealTime paces reads to the sample rate, like hardware would. When
	// false, Read returns as fast as the caller can drain it.
	RealTime bool
}

type simGainStage struct{}

func (simGainStage) Range() [2]float32      { return [2]float32{0, 49.6} }
func (simGainStage) Type() sdr.GainStageType { return sdr.GainStageTypeRecieve }
func (simGainStage) String() string          { return "RF" }

// simSdr is a fully synthetic sdr.Receiver: a carrier at a configurable
// offset plus a low noise floor, optionally paced to real time. It backs
// the whole pipeline when no hardware is attached.
type simSdr struct {
	mu        sync.Mutex
	config    SimulatedConfig
	gainState map[string]float32
	settings  map[string]string
}

// Simulated creates a synthetic sdr.Receiver from the provided config.
func Simulated(cfg SimulatedConfig) sdr.Receiver {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.8e6
	}
	if cfg.SampleFormat == sdr.SampleFormat(0) {
		cfg.SampleFormat = sdr.SampleFormatC64
	}
	if cfg.ToneOffset == 0 {
		cfg.ToneOffset = rf.Hz(cfg.SampleRate / 8)
	}
	if cfg.Amplitude == 0 {
		cfg.Amplitude = 0.5
	}
	if cfg.NoiseFloor == 0 {
		cfg.NoiseFloor = 0.001
	}

	return &simSdr{
		config:    cfg,
		gainState: map[string]float32{},
		settings: map[string]string{
			"biastee":     "false",
			"iq_swap":     "false",
			"digital_agc": "false",
			"offset_tune": "false",
			"direct_samp": "0",
		},
	}
}

func (s *simSdr) HardwareInfo() sdr.HardwareInfo {
	return sdr.HardwareInfo{
		Manufacturer: "hz.tools",
		Product:      "simulated",
		Serial:       "00000001",
	}
}

// Close implements the sdr.Sdr interface.
func (s *simSdr) Close() error {
	return nil
}

// SetCenterFrequency implements the sdr.Sdr interface.
func (s *simSdr) SetCenterFrequency(freq rf.Hz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.CenterFrequency = freq
	return nil
}

// GetCenterFrequency implements the sdr.Sdr interface.
func (s *simSdr) GetCenterFrequency() (rf.Hz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.CenterFrequency, nil
}

// SetAutomaticGain implements the sdr.Sdr interface.
func (s *simSdr) SetAutomaticGain(bool) error {
	return nil
}

// GetGainStages implements the sdr.Sdr interface.
func (s *simSdr) GetGainStages() (sdr.GainStages, error) {
	return sdr.GainStages{simGainStage{}}, nil
}

// GetGain implements the sdr.Sdr interface.
func (s *simSdr) GetGain(gs sdr.GainStage) (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gainState[gs.String()], nil
}

// SetGain implements the sdr.Sdr interface.
func (s *simSdr) SetGain(gs sdr.GainStage, gain float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gainState[gs.String()] = gain
	return nil
}

// SetSampleRate implements the sdr.Sdr interface.
func (s *simSdr) SetSampleRate(sps uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.SampleRate = sps
	return nil
}

// GetSampleRate implements the sdr.Sdr interface.
func (s *simSdr) GetSampleRate() (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.SampleRate, nil
}

// SampleFormat implements the sdr.Sdr interface.
func (s *simSdr) SampleFormat() sdr.SampleFormat {
	return s.config.SampleFormat
}

// SetPPM implements the sdr.Sdr interface.
func (s *simSdr) SetPPM(int) error {
	return nil
}

// Settings implements the device.Settings interface.
func (s *simSdr) Settings() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := map[string]string{}
	for k, v := range s.settings {
		ret[k] = v
	}
	return ret, nil
}

// GetSetting implements the device.Settings interface.
func (s *simSdr) GetSetting(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.settings[name]
	if !ok {
		return "", fmt.Errorf("device: no such setting: %s", name)
	}
	return value, nil
}

// SetSetting implements the device.Settings interface.
func (s *simSdr) SetSetting(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[name] = value
	return nil
}

// Overflows implements the device.OverflowCounter interface. The
// simulation never drops buffers.
func (s *simSdr) Overflows() uint64 {
	return 0
}

// StartRx implements the sdr.Receiver interface.
func (s *simSdr) StartRx() (sdr.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reader := &simReader{
		sdr:        s,
		sampleRate: s.config.SampleRate,
		noise:      rand.New(rand.NewSource(s.config.Seed)),
	}

	if s.config.SampleFormat != sdr.SampleFormatC64 {
		scratch, err := sdr.MakeSamples(sdr.SampleFormatC64, 32*1024)
		if err != nil {
			return nil, err
		}
		reader.scratch = scratch.(sdr.SamplesC64)
	}

	if !s.config.RealTime {
		return reader, nil
	}

	// Pace the stream like hardware would: run the synthesis through a
	// throttle that plays it back at the configured rate.
	throttled, err := stream.Throttle(reader)
	if err != nil {
		return nil, err
	}
	return sdr.ReaderWithCloser(throttled, func() error {
		reader.Close()
		if pipe, ok := throttled.(sdr.PipeReader); ok {
			return pipe.Close()
		}
		return nil
	}), nil
}

type simReader struct {
	sdr        *simSdr
	sampleRate uint

	noise   *rand.Rand
	scratch sdr.SamplesC64

	phase float64

	closedMu sync.Mutex
	closed   bool
}

func (r *simReader) SampleFormat() sdr.SampleFormat {
	return r.sdr.config.SampleFormat
}

func (r *simReader) SampleRate() uint {
	return r.sampleRate
}

func (r *simReader) Close() error {
	r.closedMu.Lock()
	defer r.closedMu.Unlock()
	r.closed = true
	return nil
}

func (r *simReader) isClosed() bool {
	r.closedMu.Lock()
	defer r.closedMu.Unlock()
	return r.closed
}

const tau = math.Pi * 2

func (r *simReader) fill(buf sdr.SamplesC64) {
	r.sdr.mu.Lock()
	var (
		offset    = float64(r.sdr.config.ToneOffset)
		amplitude = float64(r.sdr.config.Amplitude)
		noise     = float64(r.sdr.config.NoiseFloor)
	)
	r.sdr.mu.Unlock()

	step := tau * offset / float64(r.sampleRate)
	for i := range buf {
		buf[i] = complex64(complex(
			amplitude*math.Cos(r.phase)+noise*(r.noise.Float64()*2-1),
			amplitude*math.Sin(r.phase)+noise*(r.noise.Float64()*2-1),
		))
		r.phase += step
		if r.phase > tau {
			r.phase -= tau
		}
	}
}

// Read implements the sdr.Reader interface.
func (r *simReader) Read(s sdr.Samples) (int, error) {
	if r.isClosed() {
		return 0, sdr.ErrPipeClosed
	}
	if s.Format() != r.SampleFormat() {
		return 0, sdr.ErrSampleFormatMismatch
	}

	n := s.Length()

	switch buf := s.(type) {
	case sdr.SamplesC64:
		r.fill(buf)
	default:
		scratch := r.scratch
		if n > scratch.Length() {
			n = scratch.Length()
		}
		scratch = scratch[:n]
		r.fill(scratch)
		if _, err := sdr.ConvertBuffer(s.Slice(0, n), scratch); err != nil {
			return 0, err
		}
	}

	return n, nil
}

// vim: foldmethod=marker
