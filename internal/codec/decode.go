package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/zaf/g711"
)

// Decode turns a concatenated chunk stream back into float samples. Any
// failure, including input that holds no samples at all, matches
// ErrDecodeFailure.
func Decode(f Format, data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty %s stream", ErrDecodeFailure, f.MIMEType)
	}

	var (
		buf *Buffer
		err error
	)
	switch BaseMIME(f.MIMEType) {
	case MIMEFLAC:
		buf, err = decodeFLAC(data)
	case MIMEMuLaw:
		buf, err = decodeSamples(f, data, 1, func(b []byte) int16 { return g711.DecodeUlawFrame(b[0]) })
	case l16Base:
		buf, err = decodeSamples(f, data, 2, func(b []byte) int16 { return int16(binary.BigEndian.Uint16(b)) })
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrDecodeFailure, f.MIMEType, err)
	}
	if buf.NumFrames() == 0 {
		return nil, fmt.Errorf("%w: %s stream holds no samples", ErrDecodeFailure, f.MIMEType)
	}
	return buf, nil
}

func decodeFLAC(data []byte) (*Buffer, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	info := stream.Info
	if info.NChannels == 0 || info.BitsPerSample == 0 || info.SampleRate == 0 {
		return nil, errors.New("incomplete STREAMINFO")
	}
	scale := float32(int64(1) << (info.BitsPerSample - 1))

	buf := &Buffer{
		SampleRate: int(info.SampleRate),
		Samples:    make([][]float32, info.NChannels),
	}
	for {
		fr, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(fr.Subframes) != len(buf.Samples) {
			return nil, fmt.Errorf("frame has %d channels, stream has %d", len(fr.Subframes), len(buf.Samples))
		}
		for ch, sub := range fr.Subframes {
			for _, s := range sub.Samples {
				buf.Samples[ch] = append(buf.Samples[ch], float32(s)/scale)
			}
		}
	}
	return buf, nil
}

// decodeSamples de-interleaves a headerless stream of fixed-width samples.
func decodeSamples(f Format, data []byte, width int, sample func([]byte) int16) (*Buffer, error) {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return nil, fmt.Errorf("headerless stream needs rate and channels, got %d Hz, %d channels", f.SampleRate, f.Channels)
	}
	frameWidth := width * f.Channels
	if len(data)%frameWidth != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of %d-byte frames", len(data), frameWidth)
	}
	frames := len(data) / frameWidth

	buf := &Buffer{SampleRate: f.SampleRate, Samples: make([][]float32, f.Channels)}
	for ch := range buf.Samples {
		buf.Samples[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < f.Channels; ch++ {
			off := i*frameWidth + ch*width
			buf.Samples[ch][i] = float32(sample(data[off:off+width])) / 32768
		}
	}
	return buf, nil
}
