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

// Package capture owns the device and the ring: a single producer loop
// reads IQ frames from the device, publishes them into the ring, and
// applies control-plane commands from a mailbox polled between frames.
//
// A frame in flight is always committed before a reconfigure command is
// applied, so consumers observe samples and parameter changes in the
// order they happened at the radio.
package capture

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"hz.tools/rf"
	"hz.tools/sdrcap"
	"hz.tools/sdrcap/device"
	"hz.tools/sdrcap/ring"
)

var (
	// ErrNotRunning will be returned when posting a command before Run,
	// or after the engine shut down.
	ErrNotRunning error = fmt.Errorf("capture: engine is not running")

	// ErrRecording will be returned for operations that require no open
	// recording session, notably a sample rate change.
	ErrRecording error = fmt.Errorf("capture: recording session is open")
)

// State is an immutable snapshot of the radio parameter record. Reads
// are lock-free; the engine swaps a fresh copy in on every mutation.
type State struct {
	// CenterFrequency the device is tuned to.
	CenterFrequency rf.Hz

	// SampleRate in IQ samples per second.
	SampleRate uint

	// Gain in dB, as last applied.
	Gain float32

	// AutomaticGain reports whether AGC was last enabled.
	AutomaticGain bool

	// Recording reports whether a recording session is open.
	Recording bool

	// Overflows is the device's total overflow count.
	Overflows uint64
}

// Recorder is the recording half of the file writer sink, driven from
// the engine so that session lifecycle is ordered with the sample
// stream.
type Recorder interface {
	// Open starts a new recording session for the given radio state.
	Open(State) error

	// Close finalizes the current session. Closing with no session open
	// is not an error.
	Close() error

	// Active reports whether a session is open.
	Active() bool
}

// Config tunes the capture loop.
type Config struct {
	// PacketSize is the device transfer size in bytes. Defaults to 1024.
	PacketSize int

	// MaxReadErrors is how many consecutive device read failures are
	// tolerated before the engine gives up. Defaults to 10.
	MaxReadErrors int
}

type commandKind int

const (
	cmdFrequency commandKind = iota
	cmdGain
	cmdAGC
	cmdSetting
	cmdRate
	cmdRecord
	cmdQuit
)

type command struct {
	kind commandKind

	frequency rf.Hz
	gain      float32
	enabled   bool
	name      string
	value     string
	rate      uint
	record    bool

	reply chan error
}

// Engine runs the producer loop. Create one with New, start it with Run,
// and drive it with the Set* methods from any goroutine.
type Engine struct {
	dev  *device.Facade
	ring *ring.Buffer
	rec  Recorder
	cfg  Config

	mailbox chan command
	state   atomic.Value // State
	running uint32
	done    chan struct{}
}

// New creates an Engine over an opened device and ring. The initial
// parameter state is read back from the device.
func New(dev *device.Facade, buf *ring.Buffer, rec Recorder, cfg Config) (*Engine, error) {
	if cfg.PacketSize <= 0 {
		cfg.PacketSize = 1024
	}
	if cfg.MaxReadErrors <= 0 {
		cfg.MaxReadErrors = 10
	}

	e := &Engine{
		dev:     dev,
		ring:    buf,
		rec:     rec,
		cfg:     cfg,
		mailbox: make(chan command, 16),
		done:    make(chan struct{}),
	}

	freq, err := dev.GetCenterFrequency()
	if err != nil {
		return nil, err
	}
	rate, err := dev.GetSampleRate()
	if err != nil {
		return nil, err
	}

	e.state.Store(State{
		CenterFrequency: freq,
		SampleRate:      rate,
		Gain:            dev.GetGain(),
		AutomaticGain:   dev.AutomaticGain(),
	})
	return e, nil
}

// Snapshot returns the current radio parameter state. Safe to call from
// any goroutine; never blocks the producer.
func (e *Engine) Snapshot() State {
	state := e.state.Load().(State)
	state.Overflows = e.dev.Overflows()
	state.Recording = e.rec.Active()
	return state
}

// Running reports whether the producer loop is alive.
func (e *Engine) Running() bool {
	return atomic.LoadUint32(&e.running) == 1
}

// Ring returns the ring the engine publishes into.
func (e *Engine) Ring() *ring.Buffer {
	return e.ring
}

// Settings enumerates the device's live named settings. Reads go to the
// driver, not a cache, and are safe concurrent with the producer.
func (e *Engine) Settings() (map[string]string, error) {
	return e.dev.Settings()
}

// GetSetting reads one live named setting from the device.
func (e *Engine) GetSetting(name string) (string, error) {
	return e.dev.GetSetting(name)
}

func (e *Engine) post(cmd command) error {
	if !e.Running() {
		return ErrNotRunning
	}
	cmd.reply = make(chan error, 1)
	select {
	case e.mailbox <- cmd:
	case <-e.done:
		return ErrNotRunning
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-e.done:
		return ErrNotRunning
	}
}

// SetFrequency retunes the device. Samples committed after this call
// returns are at the new tuning.
func (e *Engine) SetFrequency(freq rf.Hz) error {
	return e.post(command{kind: cmdFrequency, frequency: freq})
}

// SetGain applies a new gain.
func (e *Engine) SetGain(gain float32) error {
	return e.post(command{kind: cmdGain, gain: gain})
}

// SetAutomaticGain enables or disables AGC.
func (e *Engine) SetAutomaticGain(enabled bool) error {
	return e.post(command{kind: cmdAGC, enabled: enabled})
}

// SetSetting writes a named driver setting.
func (e *Engine) SetSetting(name, value string) error {
	return e.post(command{kind: cmdSetting, name: name, value: value})
}

// SetSampleRate reprograms the device rate, restarting the stream. It is
// rejected with ErrRecording while a recording session is open.
func (e *Engine) SetSampleRate(rate uint) error {
	return e.post(command{kind: cmdRate, rate: rate})
}

// SetRecording opens (true) or closes (false) a recording session.
func (e *Engine) SetRecording(record bool) error {
	return e.post(command{kind: cmdRecord, record: record})
}

// Quit asks the producer loop to shut down. Run returns once the device
// is stopped and the ring is closed.
func (e *Engine) Quit() error {
	return e.post(command{kind: cmdQuit})
}

func (e *Engine) mutateState(fn func(*State)) {
	state := e.state.Load().(State)
	fn(&state)
	e.state.Store(state)
}

func (e *Engine) apply(cmd command) (quit bool) {
	var err error

	switch cmd.kind {
	case cmdFrequency:
		if err = e.dev.SetCenterFrequency(cmd.frequency); err == nil {
			e.mutateState(func(s *State) { s.CenterFrequency = cmd.frequency })
		}
	case cmdGain:
		if err = e.dev.SetGain(cmd.gain); err == nil {
			e.mutateState(func(s *State) { s.Gain = cmd.gain })
		}
	case cmdAGC:
		if err = e.dev.SetAutomaticGain(cmd.enabled); err == nil {
			e.mutateState(func(s *State) { s.AutomaticGain = cmd.enabled })
		}
	case cmdSetting:
		err = e.dev.SetSetting(cmd.name, cmd.value)
	case cmdRate:
		err = e.setRate(cmd.rate)
	case cmdRecord:
		err = e.setRecording(cmd.record)
	case cmdQuit:
		cmd.reply <- nil
		return true
	}

	cmd.reply <- err
	return false
}

func (e *Engine) setRate(rate uint) error {
	if e.rec.Active() {
		return ErrRecording
	}

	// The stream has to come down for a rate change; bring it back up
	// before replying so the producer keeps rolling.
	if err := e.dev.StopStream(); err != nil {
		return err
	}
	if err := e.dev.SetSampleRate(rate); err != nil {
		e.dev.StartStream()
		return err
	}
	if err := e.dev.StartStream(); err != nil {
		return err
	}

	e.mutateState(func(s *State) { s.SampleRate = rate })
	return nil
}

func (e *Engine) setRecording(record bool) error {
	if record {
		if e.rec.Active() {
			return nil
		}
		return e.rec.Open(e.Snapshot())
	}
	return e.rec.Close()
}

// Run is the producer loop. It owns the device stream for its whole
// lifetime: frames are read, published into the ring, and the command
// mailbox is polled in between. Run returns after Quit, context
// cancellation, or sustained device failure; on the way out it closes
// any open recording, stops the device, and closes the ring so every
// sink drains and exits.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.dev.StartStream(); err != nil {
		return err
	}

	atomic.StoreUint32(&e.running, 1)
	defer func() {
		atomic.StoreUint32(&e.running, 0)
		close(e.done)
		if err := e.rec.Close(); err != nil {
			log.Printf("capture: closing recording on shutdown: %s", err)
		}
		e.dev.StopStream()
		e.ring.Close(nil)
	}()

	var (
		samples  = e.cfg.PacketSize / sdr.SampleFormatC64.Size()
		readErrs = 0
	)
	if samples < 1 {
		samples = 1
	}
	scratch := make(sdr.SamplesC64, samples)

	for {
		// Commands are drained between frames; any frame read before
		// the command was posted has already been committed.
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-e.mailbox:
			if e.apply(cmd) {
				return nil
			}
			continue
		default:
		}

		n, err := e.dev.Read(scratch)
		if err != nil {
			readErrs++
			log.Printf("capture: device read: %s", err)
			if readErrs >= e.cfg.MaxReadErrors {
				return fmt.Errorf("capture: %d consecutive device read failures: %w", readErrs, err)
			}
			// Skip the frame; don't spin flat out against a sick device.
			time.Sleep(time.Millisecond)
			continue
		}
		readErrs = 0
		if n == 0 {
			continue
		}

		if err := e.publish(sdr.MustUnsafeSamplesAsBytes(scratch[:n])); err != nil {
			return err
		}
	}
}

func (e *Engine) publish(b []byte) error {
	total := 0
	for total < len(b) {
		region, err := e.ring.Reserve(len(b) - total)
		if err != nil {
			return err
		}
		copy(region, b[total:])
		total += len(region)
	}
	return e.ring.Commit(len(b))
}

// vim: foldmethod=marker
