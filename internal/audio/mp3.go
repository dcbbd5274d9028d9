package audio

import (
	"bytes"
	"io"
	"math"
	"time"
)

const (
	// SampleRate of the generated frames.
	SampleRate = 44100
	// SamplesPerFrame is fixed for MPEG-1 Layer III.
	SamplesPerFrame = 1152
	// FrameSize is 144 * 128000 / 44100 with no padding.
	FrameSize = 417
)

// silentFrameHeader: sync, MPEG-1, Layer III, no CRC, 128 kbps, 44.1 kHz,
// no padding, mono.
var silentFrameHeader = [4]byte{0xFF, 0xFB, 0x90, 0xC0}

var silentFrame = func() []byte {
	frame := make([]byte, FrameSize)
	copy(frame, silentFrameHeader[:])
	return frame
}()

// SilentFrameCount returns the number of frames needed to cover d.
func SilentFrameCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	samples := d.Seconds() * SampleRate
	return int(math.Ceil(samples / SamplesPerFrame))
}

// FrameDuration is the playback length of one frame.
func FrameDuration() time.Duration {
	return time.Duration(SamplesPerFrame) * time.Second / SampleRate
}

// WriteSilence writes enough silent frames to w to cover d and returns the
// number of bytes written.
func WriteSilence(w io.Writer, d time.Duration) (int64, error) {
	frames := SilentFrameCount(d)
	var written int64
	for i := 0; i < frames; i++ {
		n, err := w.Write(silentFrame)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// IsFrameSync reports whether data starts with an MPEG audio frame sync or an
// ID3 tag, which is how synthesized MP3 responses are sanity-checked.
func IsFrameSync(data []byte) bool {
	if len(data) >= 3 && bytes.Equal(data[:3], []byte("ID3")) {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}
