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

// Package sinks contains the independent consumers of the capture ring:
// the recording file writer, per-connection HTTP stream sinks, and the
// peak and power telemetry meters. Each sink runs on its own goroutine
// and pulls from its own ring cursor; the capture loop never pushes, and
// a failing sink never reaches back into the producer.
package sinks

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"hz.tools/sdrcap/capture"
	"hz.tools/sdrcap/container"
	"hz.tools/sdrcap/ring"
)

// FileConfig describes where and how recording sessions are written.
type FileConfig struct {
	// Output is the base output path, without extension.
	Output string

	// Kind is the container framing for new sessions.
	Kind container.Kind

	// Encoding is the stored sample encoding for new sessions.
	Encoding container.Encoding

	// Timestamp appends the `_<freq>_<rate>_<YYYYMMDDhhmmss>` suffix to
	// the output name. When false the bare output path is reused and
	// truncated on each new session.
	Timestamp bool

	// FlushInterval is how often the container size fields are rewritten
	// in place, bounding how much of a crashed capture is unplayable.
	// Defaults to one second.
	FlushInterval time.Duration
}

// FileWriter owns recording sessions. It implements capture.Recorder, so
// session lifecycle (open on unpause, close on pause, rate change or
// shutdown) is sequenced by the capture engine, while the bytes
// themselves move on the FileWriter's own goroutine.
type FileWriter struct {
	ring *ring.Buffer
	cfg  FileConfig

	mu      sync.Mutex
	session *fileSession
}

type fileSession struct {
	fw *FileWriter

	fd       *os.File
	w        *container.Writer
	consumer *ring.Consumer
	enc      *encoder

	slipLog *os.File

	// expect is where the consumer cursor should be if no slip happened;
	// the delta past it on a slipped read is the gap size in bytes.
	expect uint64

	done chan struct{}
}

// NewFileWriter creates a FileWriter over the capture ring. No file is
// opened until a session starts.
func NewFileWriter(buf *ring.Buffer, cfg FileConfig) *FileWriter {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	return &FileWriter{ring: buf, cfg: cfg}
}

// Active implements the capture.Recorder interface.
func (fw *FileWriter) Active() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.session != nil
}

// Path returns the file path a session for the provided state would be
// (or was) written to.
func (fw *FileWriter) Path(state capture.State, ts time.Time) string {
	return container.Filename(
		fw.cfg.Output, state.CenterFrequency, state.SampleRate,
		ts, fw.cfg.Kind, fw.cfg.Timestamp,
	)
}

// Open implements the capture.Recorder interface: it opens the session
// file, writes the container header with an auxi snapshot of the radio
// state, and starts the drain goroutine.
func (fw *FileWriter) Open(state capture.State) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.session != nil {
		return fmt.Errorf("sinks: recording session already open")
	}

	now := time.Now()
	path := fw.Path(state, now)

	fd, err := os.Create(path)
	if err != nil {
		return err
	}

	w, err := container.NewWriter(fd, container.Config{
		Kind:            fw.cfg.Kind,
		Encoding:        fw.cfg.Encoding,
		SampleRate:      state.SampleRate,
		CenterFrequency: state.CenterFrequency,
		StartTime:       now,
	})
	if err != nil {
		fd.Close()
		return err
	}

	consumer := fw.ring.Subscribe()
	session := &fileSession{
		fw:       fw,
		fd:       fd,
		w:        w,
		consumer: consumer,
		enc:      newEncoder(fw.cfg.Encoding, 8192),
		expect:   consumer.Cursor(),
		done:     make(chan struct{}),
	}
	fw.session = session

	log.Printf("sinks: recording to %s", path)
	go session.run()
	return nil
}

// Close implements the capture.Recorder interface. It stops the drain
// goroutine, finalizes the container trailer, and closes the file.
// Closing with no session open is not an error.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	session := fw.session
	fw.session = nil
	fw.mu.Unlock()

	if session == nil {
		return nil
	}

	// Unsubscribing pops the drain goroutine out of its blocking read;
	// finalization happens there.
	fw.ring.Unsubscribe(session.consumer)
	<-session.done
	return nil
}

func (s *fileSession) run() {
	defer close(s.done)
	defer s.finalize()

	// A session that dies on its own (encode or I/O failure) must leave
	// the writer inactive, so the next unpause opens a fresh session and
	// rate changes aren't blocked by a corpse.
	defer func() {
		s.fw.ring.Unsubscribe(s.consumer)
		s.fw.mu.Lock()
		if s.fw.session == s {
			s.fw.session = nil
		}
		s.fw.mu.Unlock()
	}()

	var (
		buf       = s.enc.readBuf()
		lastFlush = time.Now()
	)

	for {
		n, slipped, err := s.consumer.Read(buf)
		if err != nil {
			// ring.ErrClosed on session close, io.EOF on shutdown:
			// either way, drain is over.
			return
		}
		if slipped {
			s.recordSlip(s.consumer.Cursor() - uint64(n) - s.expect)
		}
		s.expect = s.consumer.Cursor()

		encoded, err := s.enc.encode(n)
		if err != nil {
			log.Printf("sinks: encoding recording samples: %s", err)
			return
		}
		if _, err := s.w.Write(encoded); err != nil {
			// Write failures end the session but never the capture.
			log.Printf("sinks: recording write failed, closing session: %s", err)
			return
		}

		if time.Since(lastFlush) >= s.fw.cfg.FlushInterval {
			if err := s.w.Flush(); err != nil {
				log.Printf("sinks: recording flush failed, closing session: %s", err)
				return
			}
			lastFlush = time.Now()
		}
	}
}

func (s *fileSession) finalize() {
	if err := s.w.Close(time.Now()); err != nil {
		log.Printf("sinks: finalizing recording: %s", err)
	}
	if err := s.fd.Close(); err != nil {
		log.Printf("sinks: closing recording file: %s", err)
	}
	if s.slipLog != nil {
		s.slipLog.Close()
	}
}

// recordSlip surfaces recording data loss: a marker goes to the log and
// to a sidecar file next to the recording. Samples lost to a slip are
// not back-filled.
func (s *fileSession) recordSlip(gap uint64) {
	log.Printf("sinks: recording slipped: %d bytes lost", gap)

	if s.slipLog == nil {
		fd, err := os.OpenFile(
			s.fd.Name()+".slips",
			os.O_CREATE|os.O_APPEND|os.O_WRONLY,
			0644,
		)
		if err != nil {
			log.Printf("sinks: opening slip log: %s", err)
			return
		}
		s.slipLog = fd
	}
	fmt.Fprintf(
		s.slipLog, "%s slip=%d bytes=%d\n",
		time.Now().Format(time.RFC3339), s.consumer.Slips(), gap,
	)
}

// vim: foldmethod=marker
