package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
	wavHeaderSize  = 44
)

var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// PCM is decoded audio as per-channel float32 samples in [-1, 1].
type PCM struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the per-channel sample count.
func (p PCM) Frames() int {
	if len(p.Channels) == 0 {
		return 0
	}
	return len(p.Channels[0])
}

// EncodeWAV prefixes little-endian 16-bit PCM with a minimal WAV header.
func EncodeWAV(pcm []byte, sampleRate int, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	out := make([]byte, wavHeaderSize, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	return append(out, pcm...)
}

// DecodeWAV parses 16-bit integer or 32-bit float WAV data.
func DecodeWAV(data []byte) (PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, ErrNotWAV
	}

	var (
		format     uint16
		channels   int
		sampleRate int
		bits       int
		haveFormat bool
		payload    []byte
	)

	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + size
		if size < 0 || end > len(data) {
			// Streams written before their length was known carry a bogus size.
			end = len(data)
		}
		switch id {
		case "fmt ":
			if end-body < 16 {
				return PCM{}, fmt.Errorf("wav fmt chunk too short: %d bytes", end-body)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFormat = true
		case "data":
			payload = data[body:end]
		}
		offset = end + (size & 1)
		if payload != nil && haveFormat {
			break
		}
	}

	if !haveFormat {
		return PCM{}, errors.New("wav missing fmt chunk")
	}
	if payload == nil {
		return PCM{}, errors.New("wav missing data chunk")
	}
	if channels <= 0 || sampleRate <= 0 {
		return PCM{}, fmt.Errorf("wav invalid layout: %d channels at %d Hz", channels, sampleRate)
	}

	switch {
	case format == wavFormatPCM && bits == 16:
		return decodeInt16(payload, channels, sampleRate), nil
	case format == wavFormatFloat && bits == 32:
		return decodeFloat32(payload, channels, sampleRate), nil
	default:
		return PCM{}, fmt.Errorf("wav unsupported sample format %d/%d-bit", format, bits)
	}
}

func decodeInt16(payload []byte, channels int, sampleRate int) PCM {
	frames := len(payload) / (2 * channels)
	out := PCM{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for c := range out.Channels {
		out.Channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			at := (i*channels + c) * 2
			v := int16(binary.LittleEndian.Uint16(payload[at : at+2]))
			out.Channels[c][i] = float32(v) / 32768
		}
	}
	return out
}

func decodeFloat32(payload []byte, channels int, sampleRate int) PCM {
	frames := len(payload) / (4 * channels)
	out := PCM{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for c := range out.Channels {
		out.Channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			at := (i*channels + c) * 4
			out.Channels[c][i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[at : at+4]))
		}
	}
	return out
}

// DecodeFloat32LE splits interleaved little-endian float32 samples into channels.
func DecodeFloat32LE(raw []byte, channels int, sampleRate int) PCM {
	if channels <= 0 {
		channels = 1
	}
	return decodeFloat32(raw, channels, sampleRate)
}
