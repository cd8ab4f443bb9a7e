package analysis

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE

	// wavMaxFmtSize bounds the fmt chunk. WAVE_FORMAT_EXTENSIBLE uses 40 bytes.
	wavMaxFmtSize = 64
)

var errInvalidWAV = errors.New("invalid WAV file")

// decodeWAVMono decodes an in-memory RIFF/WAVE file and averages all channels
// to mono. Integer PCM of 8, 16, 24 and 32 bits and 32-bit IEEE float are
// supported.
func decodeWAVMono(data []byte) ([]float32, int, error) {
	canonical, format, err := canonicalWAV(data)
	if err != nil {
		return nil, 0, err
	}

	decoder := wav.NewDecoder(bytes.NewReader(canonical))
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: unreadable fmt chunk", errInvalidWAV)
	}

	switch {
	case format == wavFormatPCM && decoder.BitDepth <= 32 && decoder.BitDepth%8 == 0:
	case format == wavFormatFloat && decoder.BitDepth == 32:
	default:
		return nil, 0, fmt.Errorf("%w: WAV format %d with %d bits", ErrUnsupportedFormat, format, decoder.BitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV data: %w", err)
	}
	return wavToMono(buf, format == wavFormatFloat), buf.Format.SampleRate, nil
}

// canonicalWAV reduces data to its RIFF header, fmt chunk and data chunk and
// returns the audio format tag, resolving WAVE_FORMAT_EXTENSIBLE. Metadata
// chunks are dropped and every declared size is checked against the input
// length before the decoder sees it.
func canonicalWAV(data []byte) ([]byte, uint16, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: missing RIFF/WAVE header", errInvalidWAV)
	}

	var fmtChunk []byte
	for pos := int64(12); pos+8 <= int64(len(data)); {
		id := string(data[pos : pos+4])
		size := int64(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		remaining := int64(len(data)) - body

		switch id {
		case "fmt ":
			if size < 16 || size > wavMaxFmtSize || size > remaining {
				return nil, 0, fmt.Errorf("%w: fmt chunk of %d bytes", errInvalidWAV, size)
			}
			fmtChunk = data[body : body+size]
		case "data":
			if fmtChunk == nil {
				return nil, 0, fmt.Errorf("%w: data chunk before fmt chunk", errInvalidWAV)
			}
			size = min(size, remaining)
			if blockAlign := int64(binary.LittleEndian.Uint16(fmtChunk[12:14])); blockAlign > 0 {
				size -= size % blockAlign
			}
			return buildWAV(fmtChunk, data[body:body+size]), wavFormatTag(fmtChunk), nil
		}
		pos = body + size + size%2
	}
	return nil, 0, fmt.Errorf("%w: no data chunk", errInvalidWAV)
}

func wavFormatTag(fmtChunk []byte) uint16 {
	tag := binary.LittleEndian.Uint16(fmtChunk[0:2])
	if tag == wavFormatExtensible && len(fmtChunk) >= 26 {
		tag = binary.LittleEndian.Uint16(fmtChunk[24:26])
	}
	return tag
}

func buildWAV(fmtChunk, pcm []byte) []byte {
	pad := len(fmtChunk) % 2
	riffSize := 4 + 8 + len(fmtChunk) + pad + 8 + len(pcm)

	out := make([]byte, 0, 8+riffSize)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(riffSize))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(fmtChunk)))
	out = append(out, fmtChunk...)
	if pad == 1 {
		out = append(out, 0)
	}
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(pcm)))
	return append(out, pcm...)
}

// wavToMono scales interleaved samples to [-1, 1) and averages each frame.
// Float data arrives from the decoder as raw 32-bit patterns.
func wavToMono(buf *audio.IntBuffer, float bool) []float32 {
	read := func(v int) float32 {
		return float32(v) / float32(int64(1)<<(buf.SourceBitDepth-1))
	}
	switch {
	case float:
		read = func(v int) float32 { return math.Float32frombits(uint32(int32(v))) }
	case buf.SourceBitDepth == 8:
		read = func(v int) float32 { return (float32(v) - 128) / 128 }
	}

	channels := buf.Format.NumChannels
	numFrames := len(buf.Data) / channels
	samples := make([]float32, numFrames)
	for i := range numFrames {
		var sum float32
		for _, v := range buf.Data[i*channels : (i+1)*channels] {
			sum += read(v)
		}
		samples[i] = sum / float32(channels)
	}
	return samples
}
