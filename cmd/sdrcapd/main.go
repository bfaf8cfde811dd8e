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

// sdrcapd captures IQ samples from an SDR, records them to WAV / RF64 /
// raw cf32 files, serves live copies over HTTP, and exposes a REST
// control surface for retuning and pause/unpause without interrupting
// capture.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"hz.tools/rf"
	"hz.tools/sdrcap/capture"
	"hz.tools/sdrcap/container"
	"hz.tools/sdrcap/control"
	"hz.tools/sdrcap/device"
	"hz.tools/sdrcap/ring"
	"hz.tools/sdrcap/sinks"
)

func main() {
	if err := run(); err != nil {
		log.Printf("sdrcapd: %s", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		// Device flags.
		deviceSpec = pflag.StringP("device", "d", "sim", "SDR device to open")
		frequency  = pflag.Float64P("frequency", "f", 100e6, "center frequency in Hz")
		rate       = pflag.Float64P("rate", "r", 1.8e6, "sample rate in samples per second")
		gain       = pflag.Float32P("gain", "g", 0, "gain in dB")
		agc        = pflag.Bool("agc", false, "enable automatic gain control")
		iqSwap     = pflag.Bool("iq-swap", false, "swap the I and Q channels")
		biastee    = pflag.Bool("biastee", false, "enable the bias tee")
		digitalAGC = pflag.Bool("digital-agc", false, "enable the digital AGC")
		offsetTune = pflag.Bool("offset-tune", false, "enable offset tuning")
		directSamp = pflag.Uint("direct-samp", 0, "direct sampling mode (0=off, 1=I, 2=Q)")

		// Output flags.
		output      = pflag.StringP("output", "o", "iq", "output file base path")
		pause       = pflag.Bool("pause", false, "start with recording paused")
		pcm16       = pflag.Bool("pcm16", false, "record 16 bit PCM instead of 32 bit float")
		cf32        = pflag.Bool("cf32", false, "record headerless raw cf32")
		rf64        = pflag.Bool("rf64", false, "record RF64 framing for captures over 4 GiB")
		notimestamp = pflag.Bool("notimestamp", false, "don't add a timestamp suffix to the output name")

		// Stream flags.
		packetSize = pflag.Int("packet-size", 1024, "device transfer size in bytes")
		bufferSize = pflag.Int("buffer-size", 256, "ring buffer size in MiB")

		// Power flags.
		bins        = pflag.Int("bins", 1024, "periodogram FFT size")
		rbw         = pflag.Float64("rbw", 0, "periodogram resolution bandwidth in Hz (overrides --bins)")
		integration = pflag.Float64("integration", 1, "periodogram integration time in seconds")
		average     = pflag.Int("average", 0, "emit after this many FFTs instead of a fixed integration time")

		// Server flags.
		hostname = pflag.String("hostname", "localhost", "control server hostname")
		port     = pflag.UintP("port", "p", 8080, "control server port")

		// Console flags.
		meter     = pflag.Bool("meter", false, "print the peak meter to the console")
		waterfall = pflag.Bool("waterfall", false, "print the periodogram to the console")
		refresh   = pflag.Float64("refresh", 1, "console and peak meter refresh interval in seconds")
	)
	pflag.Parse()

	dev, err := device.Open(*deviceSpec)
	if err != nil {
		return err
	}
	defer dev.Close()

	// Program the initial radio state before the stream starts.
	if err := dev.SetCenterFrequency(rf.Hz(*frequency)); err != nil {
		return err
	}
	if err := dev.SetSampleRate(uint(*rate)); err != nil {
		return err
	}
	if pflag.CommandLine.Changed("gain") {
		if err := dev.SetGain(*gain); err != nil {
			return err
		}
	}
	if err := dev.SetAutomaticGain(*agc); err != nil {
		return err
	}
	for name, value := range map[string]string{
		"iq_swap":     strconv.FormatBool(*iqSwap),
		"biastee":     strconv.FormatBool(*biastee),
		"digital_agc": strconv.FormatBool(*digitalAGC),
		"offset_tune": strconv.FormatBool(*offsetTune),
		"direct_samp": strconv.FormatUint(uint64(*directSamp), 10),
	} {
		if err := dev.SetSetting(name, value); err != nil {
			log.Printf("sdrcapd: setting %s: %s", name, err)
		}
	}

	// The slip margin stays aligned to whole complex64 frames so a reset
	// cursor never lands mid-sample.
	margin := (*packetSize + 7) &^ 7
	buf, err := ring.New(*bufferSize<<20, margin)
	if err != nil {
		return err
	}

	kind := container.KindWAV
	switch {
	case *cf32:
		kind = container.KindCF32
	case *rf64:
		kind = container.KindRF64
	}
	encoding := container.EncodingF32
	if *pcm16 {
		encoding = container.EncodingS16
	}

	writer := sinks.NewFileWriter(buf, sinks.FileConfig{
		Output:    *output,
		Kind:      kind,
		Encoding:  encoding,
		Timestamp: !*notimestamp,
	})

	engine, err := capture.New(dev, buf, writer, capture.Config{
		PacketSize: *packetSize,
	})
	if err != nil {
		return err
	}

	peak := sinks.NewPeakMeter(engine, time.Duration(*refresh*float64(time.Second)))
	power := sinks.NewPowerMeter(engine, sinks.PowerConfig{
		Bins:        *bins,
		RBW:         *rbw,
		Integration: time.Duration(*integration * float64(time.Second)),
		Average:     *average,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- engine.Run(ctx)
	}()
	for !engine.Running() {
		select {
		case err := <-engineDone:
			return err
		default:
			time.Sleep(time.Millisecond)
		}
	}

	go peak.Run(ctx)
	go power.Run(ctx)

	if *meter {
		go printLines(ctx, peak.Subscribe)
	}
	if *waterfall {
		go printLines(ctx, power.Subscribe)
	}

	if !*pause {
		if err := engine.SetRecording(true); err != nil {
			return err
		}
	}

	server := &control.Server{
		Addr:     fmt.Sprintf("%s:%d", *hostname, *port),
		Engine:   engine,
		Peak:     peak,
		Power:    power,
		Shutdown: func() { engine.Quit() },
	}
	defer server.Close()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.ListenAndServe()
	}()
	log.Printf("sdrcapd: control plane on %s", server.Addr)

	select {
	case err := <-engineDone:
		// Engine quit on its own: /quit (exit 0) or sustained device
		// failure (exit nonzero).
		return err
	case err := <-serverDone:
		return fmt.Errorf("sdrcapd: control server: %w", err)
	case sig := <-signals:
		log.Printf("sdrcapd: %s, shutting down", sig)
	}

	// Bounded teardown: ask the engine to wind down (closing any open
	// recording and the ring), and abort stragglers after the watchdog.
	go engine.Quit()
	select {
	case err := <-engineDone:
		return err
	case <-time.After(5 * time.Second):
		cancel()
		return fmt.Errorf("sdrcapd: shutdown watchdog expired")
	}
}

func printLines(ctx context.Context, subscribe func() (<-chan string, func())) {
	lines, cancel := subscribe()
	defer cancel()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			fmt.Println(line)
		case <-ctx.Done():
			return
		}
	}
}

// vim: foldmethod=marker
