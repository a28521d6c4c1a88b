package stt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// pcmFormatCode is the WAVE format tag for uncompressed integer PCM.
const pcmFormatCode = 1

// ErrUnsupportedWAV is returned by DecodeWAV for files that are valid RIFF
// containers but use an encoding other than 16-bit integer PCM.
var ErrUnsupportedWAV = errors.New("stt: unsupported wav encoding")

// DecodeWAV reads a RIFF/WAVE stream containing 16-bit signed little-endian
// PCM and returns it as normalised mono float32 [Audio]. Multi-channel input
// is downmixed by averaging. The function reads the whole stream into memory,
// which is fine for call recordings but not for unbounded input.
func DecodeWAV(r io.Reader) (Audio, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Audio{}, fmt.Errorf("stt: read riff header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Audio{}, errors.New("stt: not a riff/wave stream")
	}

	var (
		sampleRate int
		channels   int
		data       []byte
		haveFmt    bool
	)

	// Walk the chunk list. Chunks after "data" are ignored.
	for data == nil {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return Audio{}, fmt.Errorf("stt: read chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkLen := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			body := make([]byte, chunkLen)
			if _, err := io.ReadFull(r, body); err != nil {
				return Audio{}, fmt.Errorf("stt: read fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return Audio{}, errors.New("stt: fmt chunk too short")
			}
			format := int(binary.LittleEndian.Uint16(body[0:2]))
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits := int(binary.LittleEndian.Uint16(body[14:16]))
			if format != pcmFormatCode || bits != 16 {
				return Audio{}, fmt.Errorf("%w: format=%d bits=%d", ErrUnsupportedWAV, format, bits)
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return Audio{}, errors.New("stt: data chunk before fmt chunk")
			}
			data = make([]byte, chunkLen)
			if _, err := io.ReadFull(r, data); err != nil {
				return Audio{}, fmt.Errorf("stt: read data chunk: %w", err)
			}

		default:
			// Skip unknown chunks (LIST, fact, ...). Chunks are word-aligned:
			// an odd-sized body is followed by a pad byte.
			if _, err := io.CopyN(io.Discard, r, int64(chunkLen)+int64(chunkLen%2)); err != nil {
				return Audio{}, fmt.Errorf("stt: skip %q chunk: %w", chunkID, err)
			}
		}
	}

	if !haveFmt || data == nil {
		return Audio{}, errors.New("stt: missing fmt or data chunk")
	}
	if channels < 1 {
		return Audio{}, errors.New("stt: zero channel count")
	}

	return Audio{
		Samples:    pcm16ToFloat32Mono(data, channels),
		SampleRate: sampleRate,
	}, nil
}

// pcm16ToFloat32Mono converts interleaved 16-bit little-endian PCM to
// normalised mono float32 samples, downmixing channels by averaging.
func pcm16ToFloat32Mono(pcm []byte, channels int) []float32 {
	frameBytes := 2 * channels
	frames := len(pcm) / frameBytes
	samples := make([]float32, 0, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		for c := 0; c < channels; c++ {
			off := f*frameBytes + c*2
			v := int16(binary.LittleEndian.Uint16(pcm[off : off+2]))
			sum += float32(v) / 32768.0
		}
		samples = append(samples, sum/float32(channels))
	}
	return samples
}

// float32ToPCM16 converts normalised mono float32 samples back to 16-bit
// little-endian PCM, clamping out-of-range values.
func float32ToPCM16(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s*32767)))
	}
	return out
}

// EncodeWAV renders mono audio as a minimal 16-bit PCM RIFF/WAVE file.
// Used by HTTP transcribers that upload audio to a server-side engine.
func EncodeWAV(audio Audio) []byte {
	pcm := float32ToPCM16(audio.Samples)

	const headerLen = 44
	buf := make([]byte, headerLen+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], pcmFormatCode)
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(audio.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(audio.SampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                          // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                         // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}
