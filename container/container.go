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

// Package container writes IQ capture files and streams in RIFF/WAVE,
// RF64 and raw complex float32 framing, including the SDR-specific auxi
// metadata chunk understood by SpectraVue and HDSDR.
//
// All multi-byte fields are little-endian.
package container

import (
	"fmt"
	"time"

	"hz.tools/rf"
	"hz.tools/sdrcap"
)

// Kind selects the on-disk (or on-wire) container framing.
type Kind uint8

const (
	// KindWAV is a RIFF/WAVE file. Size fields are 32 bit, which caps the
	// file a hair under 4 GiB; files that outgrow that are promoted to
	// RF64 when closed.
	KindWAV Kind = iota

	// KindRF64 is an EBU RF64 file: WAVE framing with 64 bit sizes
	// carried in a ds64 chunk. Pick this up front for long captures.
	KindRF64

	// KindCF32 is headerless interleaved complex float32.
	KindCF32
)

// Ext returns the conventional file extension for the Kind.
func (k Kind) Ext() string {
	switch k {
	case KindWAV, KindRF64:
		return "wav"
	default:
		return "cf32"
	}
}

func (k Kind) String() string {
	switch k {
	case KindWAV:
		return "wav"
	case KindRF64:
		return "rf64"
	case KindCF32:
		return "cf32"
	default:
		return "unknown"
	}
}

// Encoding selects how samples are quantized into the container.
type Encoding uint8

const (
	// EncodingF32 stores samples as IEEE 754 32 bit floats (WAVE format
	// tag 3), a bit-exact copy of the capture pipeline's representation.
	EncodingF32 Encoding = iota

	// EncodingS16 stores samples as 16 bit signed PCM (WAVE format
	// tag 1), quantized from float by x*32768, clamped at the rails.
	EncodingS16
)

// SampleFormat returns the sdr.SampleFormat samples must be converted to
// before being handed to a Writer of this Encoding.
func (e Encoding) SampleFormat() sdr.SampleFormat {
	switch e {
	case EncodingS16:
		return sdr.SampleFormatI16
	default:
		return sdr.SampleFormatC64
	}
}

// BlockAlign returns the container frame size of one IQ sample: both
// channels of one sample point.
func (e Encoding) BlockAlign() int {
	switch e {
	case EncodingS16:
		return 4
	default:
		return 8
	}
}

func (e Encoding) formatTag() uint16 {
	switch e {
	case EncodingS16:
		return 1
	default:
		return 3
	}
}

func (e Encoding) bitsPerSample() uint16 {
	switch e {
	case EncodingS16:
		return 16
	default:
		return 32
	}
}

func (e Encoding) maxVal() int32 {
	switch e {
	case EncodingS16:
		return 32767
	default:
		return 1
	}
}

// Config describes one recording session or stream.
type Config struct {
	// Kind is the container framing.
	Kind Kind

	// Encoding is the stored sample encoding.
	Encoding Encoding

	// SampleRate in IQ samples per second.
	SampleRate uint

	// CenterFrequency the capture is tuned to.
	CenterFrequency rf.Hz

	// StartTime is the wall-clock open time, recorded in the auxi chunk.
	StartTime time.Time
}

// SystemTime is the Windows SYSTEMTIME layout the auxi chunk carries
// timestamps in: eight unsigned 16 bit fields.
type SystemTime struct {
	Year         uint16
	Month        uint16
	DayOfWeek    uint16
	Day          uint16
	Hour         uint16
	Minute       uint16
	Second       uint16
	Milliseconds uint16
}

// NewSystemTime converts a time.Time into the SYSTEMTIME layout. The
// zero time converts to an all-zero SystemTime, which is how the auxi
// stop_time reads until the recording is closed.
func NewSystemTime(t time.Time) SystemTime {
	if t.IsZero() {
		return SystemTime{}
	}
	return SystemTime{
		Year:         uint16(t.Year()),
		Month:        uint16(t.Month()),
		DayOfWeek:    uint16(t.Weekday()),
		Day:          uint16(t.Day()),
		Hour:         uint16(t.Hour()),
		Minute:       uint16(t.Minute()),
		Second:       uint16(t.Second()),
		Milliseconds: uint16(t.Nanosecond() / 1e6),
	}
}

// Time converts the SystemTime back into a time.Time in the provided
// location.
func (st SystemTime) Time(loc *time.Location) time.Time {
	if st == (SystemTime{}) {
		return time.Time{}
	}
	return time.Date(
		int(st.Year), time.Month(st.Month), int(st.Day),
		int(st.Hour), int(st.Minute), int(st.Second),
		int(st.Milliseconds)*1e6, loc,
	)
}

// Auxi is the 64 byte SDR metadata chunk payload, in the SpectraVue /
// HDSDR convention.
type Auxi struct {
	StartTime       SystemTime
	StopTime        SystemTime
	CenterFrequency uint32
	ADFrequency     uint32
	IFFrequency     int32
	Bandwidth       uint32
	IQOffset        int32
	DBOffset        int32
	MaxVal          int32
	Unused          [4]byte
}

func newAuxi(cfg Config) Auxi {
	return Auxi{
		StartTime:       NewSystemTime(cfg.StartTime),
		CenterFrequency: uint32(cfg.CenterFrequency),
		ADFrequency:     uint32(cfg.SampleRate),
		Bandwidth:       uint32(cfg.SampleRate),
		MaxVal:          cfg.Encoding.maxVal(),
	}
}

// Filename builds the session file name: the output base, optionally a
// `_<freq>_<rate>_<YYYYMMDDhhmmss>` suffix, and the Kind's extension.
func Filename(output string, freq rf.Hz, rate uint, ts time.Time, kind Kind, timestamped bool) string {
	if !timestamped {
		return fmt.Sprintf("%s.%s", output, kind.Ext())
	}
	return fmt.Sprintf(
		"%s_%d_%d_%s.%s",
		output, uint64(freq), rate, ts.Format("20060102150405"), kind.Ext(),
	)
}

// vim: foldmethod=marker
