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

package stream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hz.tools/sdrcap/stream"
)

func TestHannWindow(t *testing.T) {
	window := stream.Hann(1024)
	assert.Equal(t, 1024, len(window))

	// Hann is zero at the edges, unity in the middle.
	assert.InDelta(t, 0, window[0], 0.0001)
	assert.InDelta(t, 0, window[1023], 0.0001)
	assert.InDelta(t, 1, window[512], 0.0001)

	for _, v := range window {
		assert.True(t, v >= 0 && v <= 1)
	}
}

func TestBlackmanWindow(t *testing.T) {
	window := stream.Blackman(1024)
	assert.Equal(t, 1024, len(window))

	// Blackman tapers to (near) zero at the edges and peaks at unity in
	// the middle.
	assert.InDelta(t, 0, window[0], 0.0001)
	assert.InDelta(t, 1, window[512], 0.0001)

	for _, v := range window {
		assert.True(t, float64(v) >= -0.0001 && v <= 1)
	}
}

// vim: foldmethod=marker
