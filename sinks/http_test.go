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

package sinks_test

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hz.tools/rf"
	"hz.tools/sdrcap/capture"
	"hz.tools/sdrcap/container"
	"hz.tools/sdrcap/device"
	"hz.tools/sdrcap/ring"
	"hz.tools/sdrcap/sinks"
)

type stubRecorder struct{ active bool }

func (r *stubRecorder) Open(capture.State) error { r.active = true; return nil }
func (r *stubRecorder) Close() error             { r.active = false; return nil }
func (r *stubRecorder) Active() bool             { return r.active }

func startTestEngine(t *testing.T) (*capture.Engine, func()) {
	dev := device.Wrap(device.Simulated(device.SimulatedConfig{
		CenterFrequency: rf.MHz * 100,
		SampleRate:      1 << 16,
		ToneOffset:      rf.Hz(1 << 13),
		RealTime:        true,
	}))

	buf, err := ring.New(1<<20, 1024)
	assert.NoError(t, err)

	engine, err := capture.New(dev, buf, &stubRecorder{}, capture.Config{})
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- engine.Run(ctx)
	}()
	for !engine.Running() {
		time.Sleep(time.Millisecond)
	}

	return engine, func() {
		cancel()
		assert.NoError(t, <-done)
	}
}

func TestStreamHandlerWAV(t *testing.T) {
	engine, stop := startTestEngine(t)
	defer stop()

	server := httptest.NewServer(sinks.StreamHandler(engine, sinks.StreamConfig{
		Kind:     container.KindWAV,
		Encoding: container.EncodingF32,
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "inline; filename=")

	// The stream leads with a valid WAV prefix sized as "streaming".
	hdr := make([]byte, 12)
	_, err = io.ReadFull(resp.Body, hdr)
	assert.NoError(t, err)
	assert.Equal(t, "RIFF", string(hdr[:4]))
	assert.Equal(t, uint32(0xFFFFFFFF), binary.LittleEndian.Uint32(hdr[4:8]))
	assert.Equal(t, "WAVE", string(hdr[8:12]))

	// And keeps delivering sample payload.
	payload := make([]byte, 16384)
	_, err = io.ReadFull(resp.Body, payload)
	assert.NoError(t, err)
}

func TestStreamHandlerCF32(t *testing.T) {
	engine, stop := startTestEngine(t)
	defer stop()

	server := httptest.NewServer(sinks.StreamHandler(engine, sinks.StreamConfig{
		Kind:     container.KindCF32,
		Encoding: container.EncodingF32,
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "audio/cf32", resp.Header.Get("Content-Type"))

	// Headerless: the first bytes are already interleaved float32 IQ in
	// [-1, 1].
	b := make([]byte, 8)
	_, err = io.ReadFull(resp.Body, b)
	assert.NoError(t, err)
	for off := 0; off < 8; off += 4 {
		f := math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
		assert.True(t, f >= -1 && f <= 1)
	}
}

func TestStreamHandlerTwoClients(t *testing.T) {
	engine, stop := startTestEngine(t)
	defer stop()

	server := httptest.NewServer(sinks.StreamHandler(engine, sinks.StreamConfig{
		Kind:     container.KindWAV,
		Encoding: container.EncodingF32,
	}))
	defer server.Close()

	read := func() int {
		resp, err := http.Get(server.URL)
		assert.NoError(t, err)
		defer resp.Body.Close()
		b := make([]byte, 32768)
		n, err := io.ReadFull(resp.Body, b)
		assert.NoError(t, err)
		return n
	}

	// Two concurrent clients each get a full stream copy.
	first := make(chan int, 1)
	go func() { first <- read() }()
	second := read()
	assert.Equal(t, 32768, <-first)
	assert.Equal(t, 32768, second)
}

func TestStreamHandlerNotRunning(t *testing.T) {
	dev := device.Wrap(device.Simulated(device.SimulatedConfig{}))
	buf, err := ring.New(1<<16, 1024)
	assert.NoError(t, err)
	engine, err := capture.New(dev, buf, &stubRecorder{}, capture.Config{})
	assert.NoError(t, err)

	server := httptest.NewServer(sinks.StreamHandler(engine, sinks.StreamConfig{
		Kind:     container.KindWAV,
		Encoding: container.EncodingF32,
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStreamHandlerMethod(t *testing.T) {
	engine, stop := startTestEngine(t)
	defer stop()

	server := httptest.NewServer(sinks.StreamHandler(engine, sinks.StreamConfig{
		Kind:     container.KindWAV,
		Encoding: container.EncodingF32,
	}))
	defer server.Close()

	resp, err := http.Post(server.URL, "text/plain", nil)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

// vim: foldmethod=marker
