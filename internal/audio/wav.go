package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// WAV container support for 16-bit PCM, the format every track in the
// pipeline is stored in. Multi-channel input is downmixed to mono by
// averaging; output is always mono.

var (
	// ErrNotWAV is returned for data without a RIFF/WAVE header.
	ErrNotWAV = errors.New("not a RIFF/WAVE file")

	// ErrUnsupportedFormat is returned for non-PCM-16 encodings.
	ErrUnsupportedFormat = errors.New("unsupported WAV encoding (want 16-bit PCM)")
)

const (
	wavFormatPCM      = 1
	wavHeaderSize     = 44
	wavBitsPerSample  = 16
	wavBytesPerSample = 2
)

// DecodeWAV parses a 16-bit PCM WAV file into a mono clip.
func DecodeWAV(data []byte) (*Clip, error) {
	if len(data) < wavHeaderSize ||
		string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		sampleRate int
		channels   int
		pcm        []byte
	)

	// Walk the chunk list; only fmt and data matter.
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			format := int(binary.LittleEndian.Uint16(data[body : body+2]))
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			if format != wavFormatPCM || bits != wavBitsPerSample {
				return nil, ErrUnsupportedFormat
			}
		case "data":
			pcm = data[body : body+chunkSize]
		}

		// Chunks are word-aligned.
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if sampleRate == 0 || channels == 0 {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrNotWAV)
	}
	if pcm == nil {
		return nil, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
	}

	frameBytes := channels * wavBytesPerSample
	frames := len(pcm) / frameBytes
	samples := make([]float64, frames)

	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			raw := int16(binary.LittleEndian.Uint16(pcm[i*frameBytes+ch*wavBytesPerSample:]))
			sum += float64(raw) / 32768.0
		}
		samples[i] = sum / float64(channels)
	}

	return &Clip{Samples: samples, SampleRate: sampleRate}, nil
}

// EncodeWAV serializes the clip as a mono 16-bit PCM WAV file.
func EncodeWAV(c *Clip) []byte {
	dataSize := len(c.Samples) * wavBytesPerSample
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))

	byteRate := c.SampleRate * wavBytesPerSample

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(c.SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(wavBytesPerSample)) // block align
	binary.Write(buf, binary.LittleEndian, uint16(wavBitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))

	for _, s := range c.Samples {
		v := int16(math.Round(clampSample(s) * 32767))
		binary.Write(buf, binary.LittleEndian, v)
	}

	return buf.Bytes()
}
