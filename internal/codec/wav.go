package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

const (
	wavHeaderSize    = 44
	wavBitsPerSample = 16
	wavFormatPCM     = 1
)

// wavHeader is the canonical 44-byte RIFF/WAVE header for 16-bit PCM.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // total size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// EncodeWAV renders b as a 16-bit PCM WAV file with interleaved samples.
func EncodeWAV(b *Buffer) ([]byte, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	channels := b.NumChannels()
	frames := b.NumFrames()
	blockAlign := channels * wavBitsPerSample / 8

	dataSize := uint64(frames) * uint64(blockAlign)
	if dataSize > math.MaxUint32-wavHeaderSize+8 {
		return nil, fmt.Errorf("%w: %d bytes of PCM does not fit a WAV container", ErrInvalidBuffer, dataSize)
	}

	hdr := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(wavHeaderSize - 8 + dataSize),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   wavFormatPCM,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(b.SampleRate),
		ByteRate:      uint32(b.SampleRate) * uint32(blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: wavBitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataSize),
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+int(dataSize)))
	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		return nil, fmt.Errorf("writing WAV header: %w", err)
	}

	pcm := make([]byte, dataSize)
	off := 0
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(pcm[off:], uint16(floatToInt16(b.Samples[ch][i])))
			off += 2
		}
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// floatToInt16 clamps s to [-1, 1] and scales asymmetrically so that -1 maps
// to -32768 and +1 to 32767.
func floatToInt16(s float32) int16 {
	switch {
	case s != s: // NaN
		return 0
	case s < -1:
		s = -1
	case s > 1:
		s = 1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}
