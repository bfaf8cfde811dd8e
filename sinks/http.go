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
	"fmt"
	"net/http"
	"time"

	"hz.tools/sdrcap/capture"
	"hz.tools/sdrcap/container"
)

// StreamConfig selects the framing of one HTTP stream endpoint.
type StreamConfig struct {
	// Kind is KindWAV for the /float and /pcm family, KindCF32 for the
	// raw endpoint.
	Kind container.Kind

	// Encoding is how samples are quantized onto the wire.
	Encoding container.Encoding
}

func (cfg StreamConfig) contentType() string {
	if cfg.Kind == container.KindCF32 {
		return "audio/cf32"
	}
	return "audio/wav"
}

// StreamHandler returns an http.Handler serving a live copy of the
// capture stream. Every connection subscribes its own ring consumer: a
// slow client slips alone, and a slip terminates that response so the
// client never sees a silent gap in the middle of a WAV stream.
func StreamHandler(engine *capture.Engine, cfg StreamConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !engine.Running() {
			http.Error(w, "no capture stream is active", http.StatusServiceUnavailable)
			return
		}

		state := engine.Snapshot()
		now := time.Now()

		w.Header().Set("Content-Type", cfg.contentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf(
			"inline; filename=\"%d_%d_%s.%s\"",
			uint64(state.CenterFrequency), state.SampleRate,
			now.Format("20060102150405"), cfg.Kind.Ext(),
		))

		if hdr := container.StreamHeader(container.Config{
			Kind:            cfg.Kind,
			Encoding:        cfg.Encoding,
			SampleRate:      state.SampleRate,
			CenterFrequency: state.CenterFrequency,
			StartTime:       now,
		}); len(hdr) > 0 {
			if _, err := w.Write(hdr); err != nil {
				return
			}
		}

		flusher, _ := w.(http.Flusher)

		buf := engine.Ring()
		consumer := buf.Subscribe()
		defer buf.Unsubscribe(consumer)

		// A consumer blocked in Read has no way to see the client hang
		// up; unsubscribing on context cancel pops it out.
		go func() {
			<-r.Context().Done()
			buf.Unsubscribe(consumer)
		}()

		enc := newEncoder(cfg.Encoding, 8192)
		raw := enc.readBuf()

		for {
			n, slipped, err := consumer.Read(raw)
			if err != nil {
				return
			}
			if slipped {
				// The client fell behind the ring; terminating the
				// response is the gap signal.
				return
			}

			encoded, err := enc.encode(n)
			if err != nil {
				return
			}
			if _, err := w.Write(encoded); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	})
}

// vim: foldmethod=marker
