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
	"encoding/binary"
	"io"
	"math"
	"time"
)

// fileHeader is the on-disk header, rewritten in place on every Flush so
// a crashed capture stays playable up to the last flush.
//
// The second chunk is "ds64" for RF64 files and a same-size "JUNK"
// placeholder for WAV files, so promoting an overgrown WAV to RF64 on
// close only touches the header, never the payload.
type fileHeader struct {
	RiffID   [4]byte
	RiffSize uint32
	WaveID   [4]byte

	DS64ID      [4]byte
	DS64Size    uint32
	RiffSize64  uint64
	DataSize64  uint64
	SampleCount uint64
	TableLength uint32

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

// headerLen is the byte length of fileHeader on disk.
const headerLen = 152

// maxRIFFPayload is the largest 32 bit RIFF chunk size a closing WAV may
// carry before being promoted to RF64. The headroom keeps tools that do
// their own size arithmetic away from the very edge of the field.
var maxRIFFPayload uint64 = math.MaxUint32 - (1 << 20)

func newFileHeader(cfg Config) fileHeader {
	hdr := fileHeader{
		WaveID: [4]byte{'W', 'A', 'V', 'E'},

		DS64Size:    28,
		TableLength: 0,

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

		DataID: [4]byte{'d', 'a', 't', 'a'},
	}

	switch cfg.Kind {
	case KindRF64:
		hdr.RiffID = [4]byte{'R', 'F', '6', '4'}
		hdr.RiffSize = math.MaxUint32
		hdr.DS64ID = [4]byte{'d', 's', '6', '4'}
		hdr.DataSize = math.MaxUint32
	default:
		hdr.RiffID = [4]byte{'R', 'I', 'F', 'F'}
		hdr.DS64ID = [4]byte{'J', 'U', 'N', 'K'}
	}

	return hdr
}

// update refreshes every size-dependent field for the provided payload
// byte count.
func (hdr *fileHeader) update(dataBytes uint64) {
	riffSize := uint64(headerLen) - 8 + dataBytes

	hdr.RiffSize64 = riffSize
	hdr.DataSize64 = dataBytes
	hdr.SampleCount = dataBytes / uint64(hdr.BlockAlign)

	if hdr.RiffID == [4]byte{'R', 'F', '6', '4'} {
		// The 32 bit fields stay pinned at 0xFFFFFFFF.
		return
	}
	hdr.RiffSize = uint32(riffSize)
	hdr.DataSize = uint32(dataBytes)
}

// promote rewrites a WAV header as RF64, converting the JUNK placeholder
// into the ds64 chunk.
func (hdr *fileHeader) promote() {
	hdr.RiffID = [4]byte{'R', 'F', '6', '4'}
	hdr.RiffSize = math.MaxUint32
	hdr.DS64ID = [4]byte{'d', 's', '6', '4'}
	hdr.DataSize = math.MaxUint32
}

// Writer emits one recording session to a file. It is not safe for
// concurrent use; the file writer sink owns it exclusively.
type Writer struct {
	w   io.WriteSeeker
	cfg Config

	hdr       fileHeader
	headless  bool
	dataBytes uint64
}

// NewWriter writes the container header for cfg to w and returns a
// Writer for the payload. For KindCF32 no header is written.
func NewWriter(w io.WriteSeeker, cfg Config) (*Writer, error) {
	cw := &Writer{
		w:        w,
		cfg:      cfg,
		headless: cfg.Kind == KindCF32,
	}

	if cw.headless {
		return cw, nil
	}

	cw.hdr = newFileHeader(cfg)
	cw.hdr.update(0)
	if err := binary.Write(w, binary.LittleEndian, &cw.hdr); err != nil {
		return nil, err
	}
	return cw, nil
}

// Write appends payload bytes. The caller is responsible for handing in
// whole sample frames in the session's encoding.
func (cw *Writer) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.dataBytes += uint64(n)
	return n, err
}

// DataBytes returns the number of payload bytes written so far.
func (cw *Writer) DataBytes() uint64 {
	return cw.dataBytes
}

// Flush rewrites the header's size fields in place, then reseeks to the
// end of the payload. Call it periodically so a crash leaves a playable
// file.
func (cw *Writer) Flush() error {
	if cw.headless {
		return nil
	}

	cw.hdr.update(cw.dataBytes)
	if err := cw.rewriteHeader(); err != nil {
		return err
	}
	_, err := cw.w.Seek(0, io.SeekEnd)
	return err
}

// Close finalizes the session: records the stop time in the auxi chunk,
// writes final sizes, and promotes WAV to RF64 if the payload outgrew
// the 32 bit size fields.
func (cw *Writer) Close(stop time.Time) error {
	if cw.headless {
		return nil
	}

	cw.hdr.Auxi.StopTime = NewSystemTime(stop)
	cw.hdr.update(cw.dataBytes)

	if cw.cfg.Kind == KindWAV && uint64(headerLen)-8+cw.dataBytes > maxRIFFPayload {
		cw.hdr.promote()
	}

	return cw.rewriteHeader()
}

func (cw *Writer) rewriteHeader() error {
	if _, err := cw.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return binary.Write(cw.w, binary.LittleEndian, &cw.hdr)
}

// vim: foldmethod=marker
