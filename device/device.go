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

// Package device adapts an sdr.Receiver into the shape the capture loop
// wants: control calls serialized, samples normalized to complex64, and
// driver overflow indications folded into a single monotonic counter.
package device

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"hz.tools/rf"
	"hz.tools/sdrcap"
	"hz.tools/sdrcap/stream"
)

type rxBox struct {
	rc sdr.ReadCloser
}

var (
	// ErrUnknownDevice will be returned by Open when the device spec does
	// not name a known backend.
	ErrUnknownDevice error = fmt.Errorf("device: unknown device spec")

	// ErrStreaming will be returned when an operation requires the stream
	// to be stopped, such as a sample rate change.
	ErrStreaming error = fmt.Errorf("device: operation requires the stream to be stopped")

	// ErrNotStreaming will be returned by Read before StartStream.
	ErrNotStreaming error = fmt.Errorf("device: stream is not started")
)

// Settings is the opaque named key/value surface some drivers expose over
// and above the common control methods. Values are read back from the
// driver, never cached.
type Settings interface {
	// Settings enumerates the live settings of the device.
	Settings() (map[string]string, error)

	// GetSetting reads a single named setting from the device.
	GetSetting(name string) (string, error)

	// SetSetting writes a single named setting on the device.
	SetSetting(name, value string) error
}

// OverflowCounter is implemented by drivers that report dropped or
// overflowed sample buffers.
type OverflowCounter interface {
	// Overflows returns the total count of overflow events observed over
	// the life of the device.
	Overflows() uint64
}

// Facade wraps an sdr.Receiver, serializing control calls and converting
// read samples to complex64 regardless of the driver's native format.
//
// Read is intentionally not serialized against the setters that drivers
// document as streamable (frequency, gain, AGC, named settings); rate
// changes must be bracketed by StopStream and StartStream.
type Facade struct {
	mu  sync.Mutex
	dev sdr.Receiver

	// rx is set while streaming. Loaded without the control mutex on the
	// read path, so the producer is never serialized behind a setter.
	rx atomic.Value // rxBox

	overflows uint64

	scratch sdr.Samples
	agc     bool
	gain    float32
}

// Open creates a Facade from a device spec string. The only backend built
// in is the simulated device ("sim", optionally "sim:<tone offset hz>");
// hardware-backed sdr.Receiver implementations can be attached with Wrap.
func Open(spec string) (*Facade, error) {
	switch {
	case spec == "sim":
		return Wrap(Simulated(SimulatedConfig{})), nil
	case strings.HasPrefix(spec, "sim:"):
		var offset float64
		if _, err := fmt.Sscanf(spec, "sim:%g", &offset); err != nil {
			return nil, fmt.Errorf("device: malformed sim spec %q", spec)
		}
		return Wrap(Simulated(SimulatedConfig{ToneOffset: rf.Hz(offset)})), nil
	default:
		return nil, ErrUnknownDevice
	}
}

// Wrap adapts any sdr.Receiver into a Facade.
func Wrap(dev sdr.Receiver) *Facade {
	return &Facade{dev: dev}
}

// Close stops any running stream and closes the underlying device.
func (f *Facade) Close() error {
	f.StopStream()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dev.Close()
}

// HardwareInfo returns the underlying device's hardware information.
func (f *Facade) HardwareInfo() sdr.HardwareInfo {
	return f.dev.HardwareInfo()
}

// SetCenterFrequency tunes the device. Streamable; samples read after the
// call are at the new tuning.
func (f *Facade) SetCenterFrequency(freq rf.Hz) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dev.SetCenterFrequency(freq)
}

// GetCenterFrequency returns the device tuning.
func (f *Facade) GetCenterFrequency() (rf.Hz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dev.GetCenterFrequency()
}

// SetGain applies the provided gain to every receive gain stage the device
// exposes. Streamable.
func (f *Facade) SetGain(gain float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stages, err := f.dev.GetGainStages()
	if err != nil {
		return err
	}

	settings := map[string]float32{}
	for _, stage := range stages.Filter(sdr.GainStageTypeRecieve) {
		settings[stage.String()] = gain
	}
	if err := sdr.SetGainStages(f.dev, settings); err != nil {
		return err
	}
	f.gain = gain
	return nil
}

// GetGain returns the most recently applied gain.
func (f *Facade) GetGain() float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gain
}

// SetAutomaticGain enables or disables the device's AGC. Streamable.
func (f *Facade) SetAutomaticGain(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.dev.SetAutomaticGain(enabled); err != nil {
		return err
	}
	f.agc = enabled
	return nil
}

// AutomaticGain returns whether AGC was last enabled.
func (f *Facade) AutomaticGain() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.agc
}

// SetSampleRate reprograms the device rate. The stream must be stopped.
func (f *Facade) SetSampleRate(rate uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadRx() != nil {
		return ErrStreaming
	}
	return f.dev.SetSampleRate(rate)
}

// GetSampleRate returns the device's configured sample rate.
func (f *Facade) GetSampleRate() (uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dev.GetSampleRate()
}

// Settings enumerates the device's named settings, if the driver has any.
func (f *Facade) Settings() (map[string]string, error) {
	settings, ok := f.dev.(Settings)
	if !ok {
		return nil, sdr.ErrNotSupported
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return settings.Settings()
}

// GetSetting reads a named setting from the driver. Values come straight
// from the driver, never from a cache.
func (f *Facade) GetSetting(name string) (string, error) {
	settings, ok := f.dev.(Settings)
	if !ok {
		return "", sdr.ErrNotSupported
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return settings.GetSetting(name)
}

// SetSetting writes a named setting on the driver. Streamable.
func (f *Facade) SetSetting(name, value string) error {
	settings, ok := f.dev.(Settings)
	if !ok {
		return sdr.ErrNotSupported
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return settings.SetSetting(name, value)
}

// StartStream begins streaming samples from the device. Read becomes
// usable after StartStream returns.
//
// The stream is a stream.StandbyReader over the Receiver, so the driver's
// StartRx happens lazily on the first Read, and StopStream leaves the
// Facade reusable for the next StartStream at whatever rate the device is
// programmed to by then.
func (f *Facade) StartStream() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loadRx() != nil {
		return ErrStreaming
	}

	rx, err := stream.StandbyReader(f.dev)
	if err != nil {
		return err
	}

	if rx.SampleFormat() != sdr.SampleFormatC64 {
		scratch, err := sdr.MakeSamples(rx.SampleFormat(), 32*1024)
		if err != nil {
			rx.Close()
			return err
		}
		f.scratch = scratch
	} else {
		f.scratch = nil
	}

	f.rx.Store(rxBox{rc: rx})
	return nil
}

// StopStream stops a running stream. Stopping a stream that was never
// started is not an error.
func (f *Facade) StopStream() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rx := f.loadRx()
	if rx == nil {
		return nil
	}
	err := rx.Close()
	f.rx.Store(rxBox{})
	return err
}

// Read fills buf with complex64 samples. When the driver's native format
// is not complex64 (int16, notably), samples are converted on the way
// through: int16 components map to x / 32768.0.
func (f *Facade) Read(buf sdr.SamplesC64) (int, error) {
	rx := f.loadRx()
	if rx == nil {
		return 0, ErrNotStreaming
	}

	if counter, ok := f.dev.(OverflowCounter); ok {
		atomic.StoreUint64(&f.overflows, counter.Overflows())
	}

	if rx.SampleFormat() == sdr.SampleFormatC64 {
		return rx.Read(buf)
	}

	scratch := f.scratch
	if scratch.Length() > buf.Length() {
		scratch = scratch.Slice(0, buf.Length())
	}
	n, err := rx.Read(scratch)
	if err != nil {
		return 0, err
	}
	if _, cerr := sdr.ConvertBuffer(buf.Slice(0, n), scratch.Slice(0, n)); cerr != nil {
		return 0, cerr
	}
	return n, nil
}

func (f *Facade) loadRx() sdr.ReadCloser {
	box, _ := f.rx.Load().(rxBox)
	return box.rc
}

// Overflows returns the total count of driver overflow events, if the
// driver reports them, else zero.
func (f *Facade) Overflows() uint64 {
	return atomic.LoadUint64(&f.overflows)
}

// vim: foldmethod=marker
