package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/zaf/g711"
)

// ChunkEncoder turns interleaved S16LE PCM into one chunk format. Encode may
// buffer; Flush returns the tail and must be called exactly once at the end of
// a capture.
type ChunkEncoder interface {
	Encode(pcm []byte) []byte
	Flush() []byte
}

// NewChunkEncoder returns the encoder for f.MIMEType.
func NewChunkEncoder(f Format) (ChunkEncoder, error) {
	if f.SampleRate <= 0 || f.Channels <= 0 || f.Channels > 8 {
		return nil, fmt.Errorf("%w: %d Hz, %d channels", ErrUnsupportedFormat, f.SampleRate, f.Channels)
	}
	switch BaseMIME(f.MIMEType) {
	case MIMEFLAC:
		return newFLACEncoder(f.SampleRate, f.Channels), nil
	case MIMEMuLaw:
		return &sampleEncoder{put: func(dst []byte, s int16) []byte {
			return append(dst, g711.EncodeUlawFrame(s))
		}}, nil
	case l16Base:
		return &sampleEncoder{put: func(dst []byte, s int16) []byte {
			return binary.BigEndian.AppendUint16(dst, uint16(s))
		}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f.MIMEType)
}

// sampleEncoder converts sample by sample; an odd trailing byte is carried
// into the next call.
type sampleEncoder struct {
	put   func(dst []byte, s int16) []byte
	carry []byte
}

func (e *sampleEncoder) Encode(pcm []byte) []byte {
	if len(e.carry) > 0 {
		pcm = append(e.carry, pcm...)
		e.carry = nil
	}
	n := len(pcm) / 2 * 2
	out := make([]byte, 0, n)
	for i := 0; i < n; i += 2 {
		out = e.put(out, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	if n < len(pcm) {
		e.carry = []byte{pcm[n]}
	}
	return out
}

func (e *sampleEncoder) Flush() []byte {
	e.carry = nil
	return nil
}
