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

package control_test

import (
	"bufio"
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hz.tools/rf"
	"hz.tools/sdrcap/capture"
	"hz.tools/sdrcap/container"
	"hz.tools/sdrcap/control"
	"hz.tools/sdrcap/device"
	"hz.tools/sdrcap/ring"
	"hz.tools/sdrcap/sinks"
)

type harness struct {
	engine *capture.Engine
	writer *sinks.FileWriter
	server *httptest.Server

	shutdownMu     sync.Mutex
	shutdownCalled bool

	stop func()
}

func newHarness(t *testing.T) *harness {
	dev := device.Wrap(device.Simulated(device.SimulatedConfig{
		CenterFrequency: rf.Hz(100100000),
		SampleRate:      1 << 16,
		RealTime:        true,
	}))

	buf, err := ring.New(1<<20, 1024)
	assert.NoError(t, err)

	writer := sinks.NewFileWriter(buf, sinks.FileConfig{
		Output:   filepath.Join(t.TempDir(), "out"),
		Kind:     container.KindWAV,
		Encoding: container.EncodingF32,
	})

	engine, err := capture.New(dev, buf, writer, capture.Config{})
	assert.NoError(t, err)

	h := &harness{engine: engine, writer: writer}

	peak := sinks.NewPeakMeter(engine, 50*time.Millisecond)
	power := sinks.NewPowerMeter(engine, sinks.PowerConfig{Bins: 64, Average: 4})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()
	for !engine.Running() {
		time.Sleep(time.Millisecond)
	}
	go peak.Run(ctx)
	go power.Run(ctx)

	server := &control.Server{
		Engine: engine,
		Peak:   peak,
		Power:  power,
		Shutdown: func() {
			h.shutdownMu.Lock()
			h.shutdownCalled = true
			h.shutdownMu.Unlock()
		},
	}

	h.server = httptest.NewServer(server.Handler())
	h.stop = func() {
		h.server.Close()
		cancel()
		assert.NoError(t, <-done)
	}
	return h
}

func (h *harness) put(t *testing.T, path, body string) (int, string) {
	req, err := http.NewRequest(http.MethodPut, h.server.URL+path, strings.NewReader(body))
	assert.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()
	b, err := ioutil.ReadAll(resp.Body)
	assert.NoError(t, err)
	return resp.StatusCode, string(b)
}

func (h *harness) get(t *testing.T, path string) (int, string) {
	resp, err := http.Get(h.server.URL + path)
	assert.NoError(t, err)
	defer resp.Body.Close()
	b, err := ioutil.ReadAll(resp.Body)
	assert.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestServerScalars(t *testing.T) {
	h := newHarness(t)
	defer h.stop()

	code, body := h.get(t, "/frequency")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "100100000\n", body)

	code, body = h.put(t, "/frequency", "101e6")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK\n", body)
	_, body = h.get(t, "/frequency")
	assert.Equal(t, "101000000\n", body)

	code, _ = h.put(t, "/gain", "42")
	assert.Equal(t, http.StatusOK, code)
	_, body = h.get(t, "/gain")
	assert.Equal(t, "42\n", body)

	_, body = h.get(t, "/rate")
	assert.Equal(t, "65536\n", body)

	code, _ = h.put(t, "/agc", "YES")
	assert.Equal(t, http.StatusOK, code)
	_, body = h.get(t, "/agc")
	assert.Equal(t, "yes\n", body)

	code, _ = h.put(t, "/agc", "whatever")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.put(t, "/frequency", "not-a-number")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServerPauseAndRate(t *testing.T) {
	h := newHarness(t)
	defer h.stop()

	_, body := h.get(t, "/pause")
	assert.Equal(t, "yes\n", body)

	// Unpause opens a recording session.
	code, _ := h.put(t, "/pause", "n")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.writer.Active())
	_, body = h.get(t, "/pause")
	assert.Equal(t, "no\n", body)

	// Rate changes are refused while recording.
	code, body = h.put(t, "/rate", "2e6")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "recording")
	_, body = h.get(t, "/rate")
	assert.Equal(t, "65536\n", body)

	// Pause, retune, unpause: a new session at the new rate.
	code, _ = h.put(t, "/pause", "y")
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, h.writer.Active())

	code, _ = h.put(t, "/rate", "131072")
	assert.Equal(t, http.StatusOK, code)
	_, body = h.get(t, "/rate")
	assert.Equal(t, "131072\n", body)

	code, _ = h.put(t, "/pause", "n")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.writer.Active())
}

func TestServerSettings(t *testing.T) {
	h := newHarness(t)
	defer h.stop()

	code, body := h.get(t, "/setting")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "biastee: false")

	code, _ = h.put(t, "/setting/biastee", "true")
	assert.Equal(t, http.StatusOK, code)

	code, body = h.get(t, "/setting/biastee")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "biastee: true\n", body)

	code, _ = h.get(t, "/setting/nonesuch")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServerErrors(t *testing.T) {
	h := newHarness(t)
	defer h.stop()

	code, _ := h.get(t, "/nonesuch")
	assert.Equal(t, http.StatusNotFound, code)

	resp, err := http.Post(h.server.URL+"/rate", "text/plain", strings.NewReader("1e6"))
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(h.server.URL + "/quit")
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServerQuit(t *testing.T) {
	h := newHarness(t)
	defer h.stop()

	code, body := h.put(t, "/quit", "false")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK\n", body)
	h.shutdownMu.Lock()
	assert.False(t, h.shutdownCalled)
	h.shutdownMu.Unlock()

	code, body = h.put(t, "/quit", "y")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK\n", body)

	deadline := time.Now().Add(5 * time.Second)
	for {
		h.shutdownMu.Lock()
		called := h.shutdownCalled
		h.shutdownMu.Unlock()
		if called {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("shutdown hook never ran")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestServerPeakStream(t *testing.T) {
	h := newHarness(t)
	defer h.stop()

	resp, err := http.Get(h.server.URL + "/peak")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	assert.NoError(t, err)
	assert.Contains(t, line, "dBFS")
}

func TestServerPowerStream(t *testing.T) {
	h := newHarness(t)
	defer h.stop()

	resp, err := http.Get(h.server.URL + "/power")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	assert.NoError(t, err)
	assert.Equal(t, 6+64, len(strings.Split(strings.TrimSpace(line), ", ")))
}

// vim: foldmethod=marker
