package audio

import (
	"encoding/binary"
	"math"
)

const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
	BytesPerSecond = SampleRate * Channels * BytesPerSample
	bitsPerSample  = BytesPerSample * 8
)

// PCM is a buffer of signed 16-bit little-endian samples.
type PCM struct {
	Samples    []byte
	SampleRate int
	Channels   int
}

// NewPCM wraps raw s16le mono samples at the package sample rate.
func NewPCM(samples []byte) PCM {
	return PCM{Samples: samples, SampleRate: SampleRate, Channels: Channels}
}

func (p PCM) frameBytes() int {
	ch := p.Channels
	if ch <= 0 {
		ch = 1
	}
	return ch * BytesPerSample
}

// Seconds returns the playback length of the buffer.
func (p PCM) Seconds() float64 {
	rate := p.SampleRate
	if rate <= 0 {
		rate = SampleRate
	}
	return float64(len(p.Samples)/p.frameBytes()) / float64(rate)
}

// Empty reports whether the buffer holds no complete frame.
func (p PCM) Empty() bool { return len(p.Samples) < p.frameBytes() }

// Float32 converts the samples to mono float32 in [-1, 1], averaging channels.
// A trailing partial frame is ignored.
func (p PCM) Float32() []float32 {
	ch := p.Channels
	if ch <= 0 {
		ch = 1
	}
	frames := len(p.Samples) / (ch * BytesPerSample)
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range ch {
			idx := (i*ch + c) * BytesPerSample
			sum += float32(int16(binary.LittleEndian.Uint16(p.Samples[idx:idx+2]))) / 32768.0
		}
		out[i] = sum / float32(ch)
	}
	return out
}

// WAV wraps the samples in a canonical 44-byte RIFF header.
func (p PCM) WAV() []byte {
	rate := p.SampleRate
	if rate <= 0 {
		rate = SampleRate
	}
	ch := p.Channels
	if ch <= 0 {
		ch = 1
	}
	dataSize := len(p.Samples)
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(ch))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(rate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(rate*ch*BytesPerSample))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(ch*BytesPerSample))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], p.Samples)
	return buf
}

// ByteOffset maps a media time to a frame-aligned offset in the mono stream.
func ByteOffset(t float64) int64 {
	if t <= 0 || math.IsNaN(t) {
		return 0
	}
	frames := int64(math.Round(t * SampleRate))
	return frames * Channels * BytesPerSample
}

// Silence returns seconds of zeroed samples.
func Silence(seconds float64) PCM {
	return NewPCM(make([]byte, ByteOffset(seconds)))
}
