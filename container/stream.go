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

package container

import (
	"bytes"
	"encoding/binary"
	"math"
)

// streamHeader is the WAVE header written at the top of a live HTTP
// stream. There's no final size to record, so both size fields are
// pinned at 0xFFFFFFFF, the conventional "unbounded" marker players
// accept on a stream they can't seek.
type streamHeader struct {
	RiffID   [4]byte
	RiffSize uint32
	WaveID   [4]byte

	FmtID         [4]byte
	FmtSize       uint32
	FormatTag     uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16

	AuxiID   [4]byte
	AuxiSize uint32
	Auxi     Auxi

	DataID   [4]byte
	DataSize uint32
}

// StreamHeader renders the streaming container header for cfg. For
// KindCF32 the stream is headerless and the returned slice is empty.
func StreamHeader(cfg Config) []byte {
	if cfg.Kind == KindCF32 {
		return nil
	}

	hdr := streamHeader{
		RiffID:   [4]byte{'R', 'I', 'F', 'F'},
		RiffSize: math.MaxUint32,
		WaveID:   [4]byte{'W', 'A', 'V', 'E'},

		FmtID:         [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		FormatTag:     cfg.Encoding.formatTag(),
		Channels:      2,
		SampleRate:    uint32(cfg.SampleRate),
		ByteRate:      uint32(cfg.SampleRate) * uint32(cfg.Encoding.BlockAlign()),
		BlockAlign:    uint16(cfg.Encoding.BlockAlign()),
		BitsPerSample: cfg.Encoding.bitsPerSample(),

		AuxiID:   [4]byte{'a', 'u', 'x', 'i'},
		AuxiSize: 64,
		Auxi:     newAuxi(cfg),

		DataID:   [4]byte{'d', 'a', 't', 'a'},
		DataSize: math.MaxUint32,
	}

	buf := &bytes.Buffer{}
	// Writing a fixed-layout struct into a bytes.Buffer cannot fail.
	binary.Write(buf, binary.LittleEndian, &hdr)
	return buf.Bytes()
}

// vim: foldmethod=marker
