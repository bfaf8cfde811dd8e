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
	"math"
	"sync"
	"time"

	"hz.tools/sdrcap"
	"hz.tools/sdrcap/capture"
)

// PeakSnapshot is one refresh interval's worth of peak detection.
type PeakSnapshot struct {
	// Time the snapshot was taken.
	Time time.Time

	// DBFS is the rolling maximum of |I| and |Q| over the interval, in
	// dB relative to full scale. Silence reads as -Inf.
	DBFS float64

	// Count of IQ samples the maximum was taken over.
	Count uint64
}

// Line renders the snapshot in the /peak text format.
func (ps PeakSnapshot) Line() string {
	return fmt.Sprintf("%s %.2f dBFS n=%d", ps.Time.Format(time.RFC3339), ps.DBFS, ps.Count)
}

// PeakMeter watches the capture stream and reports the peak sample level
// at a bounded cadence, for the console meter and the /peak endpoint.
type PeakMeter struct {
	engine  *capture.Engine
	refresh time.Duration

	mu    sync.Mutex
	peak  float64
	count uint64
	last  PeakSnapshot

	broadcast *broadcaster
}

// NewPeakMeter creates a PeakMeter refreshing at the provided cadence
// (default one second).
func NewPeakMeter(engine *capture.Engine, refresh time.Duration) *PeakMeter {
	if refresh <= 0 {
		refresh = time.Second
	}
	return &PeakMeter{
		engine:    engine,
		refresh:   refresh,
		broadcast: newBroadcaster(),
	}
}

// Subscribe attaches a line consumer (the /peak endpoint, the console).
func (pm *PeakMeter) Subscribe() (<-chan string, func()) {
	return pm.broadcast.Subscribe()
}

// Last returns the most recently emitted snapshot.
func (pm *PeakMeter) Last() PeakSnapshot {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.last
}

// Run consumes the ring until the context is canceled or the ring
// closes. It's a sink like any other: its own cursor, its own pace, and
// a slip costs nothing but a few samples of peak history.
func (pm *PeakMeter) Run(ctx context.Context) {
	buf := pm.engine.Ring()
	consumer := buf.Subscribe()
	defer buf.Unsubscribe(consumer)

	go func() {
		<-ctx.Done()
		buf.Unsubscribe(consumer)
	}()

	tickerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go pm.tick(tickerCtx)

	samples := make(sdr.SamplesC64, 4096)
	raw := sdr.MustUnsafeSamplesAsBytes(samples)

	for {
		n, _, err := consumer.Read(raw)
		if err != nil {
			return
		}

		frames := n / sdr.SampleFormatC64.Size()
		peak := 0.0
		for _, sample := range samples[:frames] {
			if v := math.Abs(float64(real(sample))); v > peak {
				peak = v
			}
			if v := math.Abs(float64(imag(sample))); v > peak {
				peak = v
			}
		}

		pm.mu.Lock()
		if peak > pm.peak {
			pm.peak = peak
		}
		pm.count += uint64(frames)
		pm.mu.Unlock()
	}
}

func (pm *PeakMeter) tick(ctx context.Context) {
	ticker := time.NewTicker(pm.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			pm.emit(now)
		}
	}
}

func (pm *PeakMeter) emit(now time.Time) {
	pm.mu.Lock()
	snapshot := PeakSnapshot{
		Time:  now,
		DBFS:  20 * math.Log10(pm.peak),
		Count: pm.count,
	}
	pm.peak = 0
	pm.count = 0
	pm.last = snapshot
	pm.mu.Unlock()

	pm.broadcast.publish(snapshot.Line())

	// Overflow is non-fatal but worth an eyeball: surface it on the
	// same feed as an auxiliary line.
	if overflows := pm.engine.Snapshot().Overflows; overflows > 0 {
		pm.broadcast.publish(fmt.Sprintf("overflows: %d", overflows))
	}
}

// vim: foldmethod=marker
