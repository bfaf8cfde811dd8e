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

// Package control is the REST surface over the capture engine: radio
// parameters and recording state are mutated over HTTP without touching
// the sample pipeline, and the live stream endpoints hang off the same
// listener.
package control

import (
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"hz.tools/rf"
	"hz.tools/sdrcap/capture"
	"hz.tools/sdrcap/container"
	"hz.tools/sdrcap/sinks"
)

// Server wires the REST endpoint table to a running capture engine.
type Server struct {
	// Addr is the TCP address ListenAndServe binds, hostname:port.
	Addr string

	// Engine is the capture engine commands are posted to.
	Engine *capture.Engine

	// Peak feeds the /peak line stream.
	Peak *sinks.PeakMeter

	// Power feeds the /power line stream.
	Power *sinks.PowerMeter

	// Shutdown is called (on its own goroutine) when PUT /quit asks for
	// one; process teardown happens outside this package.
	Shutdown func()

	httpServer *http.Server
}

// ListenAndServe binds Addr and serves until Close.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve runs the control plane on the provided listener.
func (s *Server) Serve(l net.Listener) error {
	s.httpServer = &http.Server{Handler: s.Handler()}
	err := s.httpServer.Serve(l)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close stops the listener and closes every open connection, in-flight
// stream responses included.
func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

// Handler returns the control plane's http.Handler; exposed separately
// from Serve for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/quit", s.handleQuit)
	mux.HandleFunc("/rate", s.scalar(
		func() string { return strconv.FormatUint(uint64(s.Engine.Snapshot().SampleRate), 10) },
		func(body string) error {
			rate, err := strconv.ParseFloat(strings.TrimSpace(body), 64)
			if err != nil {
				return errBadRequest
			}
			return s.Engine.SetSampleRate(uint(rate))
		},
	))
	mux.HandleFunc("/frequency", s.scalar(
		func() string {
			return strconv.FormatFloat(float64(s.Engine.Snapshot().CenterFrequency), 'f', -1, 64)
		},
		func(body string) error {
			freq, err := strconv.ParseFloat(strings.TrimSpace(body), 64)
			if err != nil {
				return errBadRequest
			}
			return s.Engine.SetFrequency(rf.Hz(freq))
		},
	))
	mux.HandleFunc("/gain", s.scalar(
		func() string {
			return strconv.FormatFloat(float64(s.Engine.Snapshot().Gain), 'f', -1, 32)
		},
		func(body string) error {
			gain, err := strconv.ParseFloat(strings.TrimSpace(body), 32)
			if err != nil {
				return errBadRequest
			}
			return s.Engine.SetGain(float32(gain))
		},
	))
	mux.HandleFunc("/agc", s.scalar(
		func() string { return FormatBool(s.Engine.Snapshot().AutomaticGain) },
		func(body string) error {
			enabled, err := ParseBool(body)
			if err != nil {
				return err
			}
			return s.Engine.SetAutomaticGain(enabled)
		},
	))
	mux.HandleFunc("/pause", s.scalar(
		func() string { return FormatBool(!s.Engine.Snapshot().Recording) },
		func(body string) error {
			paused, err := ParseBool(body)
			if err != nil {
				return err
			}
			// Pausing closes the session; unpausing opens a new one.
			return s.Engine.SetRecording(!paused)
		},
	))
	mux.HandleFunc("/setting", s.handleSettings)
	mux.HandleFunc("/setting/", s.handleSetting)

	mux.HandleFunc("/peak", s.lineStream(func() (<-chan string, func()) {
		return s.Peak.Subscribe()
	}))
	mux.HandleFunc("/power", s.lineStream(func() (<-chan string, func()) {
		return s.Power.Subscribe()
	}))

	wavS16 := sinks.StreamHandler(s.Engine, sinks.StreamConfig{
		Kind:     container.KindWAV,
		Encoding: container.EncodingS16,
	})
	wavF32 := sinks.StreamHandler(s.Engine, sinks.StreamConfig{
		Kind:     container.KindWAV,
		Encoding: container.EncodingF32,
	})
	mux.Handle("/pcm", wavS16)
	mux.Handle("/s16", wavS16)
	mux.Handle("/float", wavF32)
	mux.Handle("/f32", wavF32)
	mux.Handle("/cf32", sinks.StreamHandler(s.Engine, sinks.StreamConfig{
		Kind:     container.KindCF32,
		Encoding: container.EncodingF32,
	}))

	return mux
}

var errBadRequest error = fmt.Errorf("control: malformed request body")

// reply maps pipeline errors onto the REST error taxonomy.
func reply(w http.ResponseWriter, err error) {
	switch err {
	case nil:
		fmt.Fprintln(w, "OK")
	case capture.ErrRecording:
		// The 409-equivalent: a plain 400 with a message.
		http.Error(w, "recording session is open", http.StatusBadRequest)
	case capture.ErrNotRunning:
		http.Error(w, "no capture stream is active", http.StatusServiceUnavailable)
	case ErrBadBool, errBadRequest:
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func readBody(r *http.Request) (string, error) {
	body, err := ioutil.ReadAll(io.LimitReader(r.Body, 1024))
	if err != nil {
		return "", errBadRequest
	}
	return string(body), nil
}

// scalar builds the GET/PUT handler shared by every parameter endpoint.
func (s *Server) scalar(get func() string, put func(string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprintln(w, get())
		case http.MethodPut:
			body, err := readBody(r)
			if err != nil {
				reply(w, err)
				return
			}
			reply(w, put(body))
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := readBody(r)
	if err != nil {
		reply(w, err)
		return
	}
	quit, err := ParseBool(body)
	if err != nil {
		reply(w, err)
		return
	}

	// Reply first; teardown races the response otherwise.
	fmt.Fprintln(w, "OK")
	if quit && s.Shutdown != nil {
		go s.Shutdown()
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	settings, err := s.Engine.Settings()
	if err != nil {
		reply(w, err)
		return
	}

	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s: %s\n", name, settings[name])
	}
}

func (s *Server) handleSetting(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/setting/")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		// Live from the driver, never cached.
		value, err := s.Engine.GetSetting(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "%s: %s\n", name, value)
	case http.MethodPut:
		body, err := readBody(r)
		if err != nil {
			reply(w, err)
			return
		}
		reply(w, s.Engine.SetSetting(name, strings.TrimSpace(body)))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// lineStream serves a chunked text stream of telemetry lines (/peak,
// /power) until the client goes away or the meter shuts down.
func (s *Server) lineStream(subscribe func() (<-chan string, func())) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !s.Engine.Running() {
			http.Error(w, "no capture stream is active", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		flusher, _ := w.(http.Flusher)

		lines, cancel := subscribe()
		defer cancel()

		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return
				}
				if _, err := fmt.Fprintln(w, line); err != nil {
					return
				}
				if flusher != nil {
					flusher.Flush()
				}
			case <-r.Context().Done():
				return
			}
		}
	}
}

// vim: foldmethod=marker
