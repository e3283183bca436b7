// Package audio merges buffered capture chunks and normalizes the result to
// the canonical encoding expected by speech-to-text collaborators.
package audio

import (
	"encoding/binary"
	"fmt"
)

// Canonical output encoding: 16 kHz, mono, 16-bit signed little-endian PCM.
const (
	CanonicalSampleRate = 16000
	CanonicalChannels   = 1
	CanonicalSampleBits = 16
)

// MergeChunks concatenates chunks in arrival order. Concatenation order is
// the sole guarantee: no deduplication, no gap detection.
func MergeChunks(chunks [][]byte) []byte {
	if len(chunks) == 0 {
		return nil
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// Normalize decodes a WAV payload and re-encodes it at the canonical sample
// rate, channel count, and sample width. A payload that does not decode is a
// hard failure for this transcription attempt.
func Normalize(payload []byte) ([]byte, error) {
	samples, rate, err := decodeWAV(payload)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	samples = resample(samples, rate, CanonicalSampleRate)
	return encodeWAV(samples, CanonicalSampleRate), nil
}

type wavFormat struct {
	audioFormat   uint16
	channels      int
	sampleRate    int
	bitsPerSample int
}

// decodeWAV parses a RIFF/WAVE payload and returns mono 16-bit samples plus
// the source sample rate. Multi-channel input is downmixed by averaging.
func decodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE payload")
	}

	var format *wavFormat
	var pcm []byte

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			// Tolerate a truncated final data chunk from an interrupted
			// capture; anything else is corrupt.
			if id == "data" && body < len(data) {
				size = len(data) - body
			} else {
				return nil, 0, fmt.Errorf("wav chunk %q overruns payload", id)
			}
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("wav fmt chunk too short")
			}
			format = &wavFormat{
				audioFormat:   binary.LittleEndian.Uint16(data[body : body+2]),
				channels:      int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				sampleRate:    int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				bitsPerSample: int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}
		case "data":
			pcm = data[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size + (size & 1)
		if pcm != nil && format != nil {
			break
		}
	}

	if format == nil {
		return nil, 0, fmt.Errorf("wav fmt chunk missing")
	}
	if pcm == nil {
		return nil, 0, fmt.Errorf("wav data chunk missing")
	}
	if format.audioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported wav audio format %d (PCM only)", format.audioFormat)
	}
	if format.channels <= 0 || format.sampleRate <= 0 {
		return nil, 0, fmt.Errorf("invalid wav format: channels=%d rate=%d", format.channels, format.sampleRate)
	}

	bytesPerSample := format.bitsPerSample / 8
	switch format.bitsPerSample {
	case 8, 16, 24, 32:
	default:
		return nil, 0, fmt.Errorf("unsupported wav sample width %d bits", format.bitsPerSample)
	}

	frameBytes := bytesPerSample * format.channels
	frames := len(pcm) / frameBytes
	mono := make([]int16, frames)
	for f := 0; f < frames; f++ {
		var sum int64
		for ch := 0; ch < format.channels; ch++ {
			pos := f*frameBytes + ch*bytesPerSample
			sum += int64(readSample(pcm[pos:pos+bytesPerSample], format.bitsPerSample))
		}
		mono[f] = int16(sum / int64(format.channels))
	}
	return mono, format.sampleRate, nil
}

// readSample converts one PCM sample of the given width to a 16-bit value.
func readSample(b []byte, bits int) int16 {
	switch bits {
	case 8:
		// 8-bit WAV is unsigned.
		return int16(int(b[0])-128) << 8
	case 16:
		return int16(binary.LittleEndian.Uint16(b))
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^int32(0xFFFFFF)
		}
		return int16(v >> 8)
	case 32:
		return int16(int32(binary.LittleEndian.Uint32(b)) >> 16)
	}
	return 0
}

// resample converts samples from one rate to another by linear
// interpolation. Good enough for speech sent to a transcription service.
func resample(in []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(in) == 0 {
		return in
	}
	outLen := int(int64(len(in)) * int64(toRate) / int64(fromRate))
	if outLen == 0 {
		return nil
	}
	out := make([]int16, outLen)
	for i := range out {
		pos := float64(i) * float64(fromRate) / float64(toRate)
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(in[idx])
		b := float64(in[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}

// encodeWAV wraps mono 16-bit samples in a minimal WAV container.
func encodeWAV(samples []int16, rate int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], CanonicalChannels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(rate))
	byteRate := rate * CanonicalChannels * CanonicalSampleBits / 8
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], CanonicalChannels*CanonicalSampleBits/8)
	binary.LittleEndian.PutUint16(buf[34:36], CanonicalSampleBits)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:46+i*2], uint16(s))
	}
	return buf
}
