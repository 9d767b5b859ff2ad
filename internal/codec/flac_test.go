package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// naiveCRC8 computes CRC-8 (poly 0x07) without using the package's table.
func naiveCRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// naiveCRC16 computes CRC-16 (poly 0x8005) without using the package's table.
func naiveCRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x8005
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// s16le packs samples as interleaved little-endian PCM.
func s16le(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

const flacStreamHeaderLen = 42 // "fLaC" + block header + STREAMINFO

func TestFlacUTF8Int(t *testing.T) {
	tests := []struct {
		name string
		v    uint64
		want []byte
	}{
		{"zero", 0x00, []byte{0x00}},
		{"ascii max", 0x7F, []byte{0x7F}},
		{"0x80", 0x80, []byte{0xC2, 0x80}},
		{"0x7FF", 0x7FF, []byte{0xDF, 0xBF}},
		{"0x800", 0x800, []byte{0xE0, 0xA0, 0x80}},
		{"0x10000", 0x10000, []byte{0xF0, 0x90, 0x80, 0x80}},
		{"0x200000", 0x200000, []byte{0xF8, 0x88, 0x80, 0x80, 0x80}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, flacUTF8Int(tc.v))
		})
	}
}

func TestFlacCRCTablesMatchBitwise(t *testing.T) {
	assert.Equal(t, byte(0), flacCRC8(nil))
	assert.Equal(t, uint16(0), flacCRC16(nil))
	inputs := [][]byte{
		{0x01},
		{0xFF, 0xF8, 0x75, 0x08, 0x00},
		{0x01, 0x02, 0x03, 0x04},
	}
	for _, in := range inputs {
		assert.Equal(t, naiveCRC8(in), flacCRC8(in), "crc8 %x", in)
		assert.Equal(t, naiveCRC16(in), flacCRC16(in), "crc16 %x", in)
	}
}

func TestFlacStreamInfo(t *testing.T) {
	si := flacStreamInfo(16000, 2, 1024)

	assert.Equal(t, uint16(flacBlockSize), binary.BigEndian.Uint16(si[0:2]))
	assert.Equal(t, uint16(flacBlockSize), binary.BigEndian.Uint16(si[2:4]))

	// sr = 16000 = 0x03E80 over 20 bits.
	assert.Equal(t, byte(0x03), si[10])
	assert.Equal(t, byte(0xE8), si[11])
	assert.Equal(t, byte(0x0), si[12]>>4)
	// channels-1 = 1 in bits 3..1 of si[12]; bps-1 = 15 split across si[12]/si[13].
	assert.Equal(t, byte(1), (si[12]>>1)&0x7)
	assert.Equal(t, byte(0x0F), si[13]>>4)
	assert.Equal(t, byte(0), si[13]&0x0F)
	assert.Equal(t, uint32(1024), binary.BigEndian.Uint32(si[14:18]))
}

func TestFlacEncoderHeaderOnlyUntilBlockFills(t *testing.T) {
	enc := newFLACEncoder(16000, 1)
	out := enc.Encode(s16le(1, 2, 3))
	require.Len(t, out, flacStreamHeaderLen)
	assert.Equal(t, "fLaC", string(out[:4]))

	// Later small writes produce nothing until a block is complete.
	assert.Empty(t, enc.Encode(s16le(4)))
}

func TestFlacEncoderFullBlockThenPartialFlush(t *testing.T) {
	enc := newFLACEncoder(16000, 1)
	var stream bytes.Buffer
	stream.Write(enc.Encode(make([]byte, flacBlockSize*2+100)))

	// One full frame: 6-byte header, 1 subframe byte, samples, CRC16.
	frame1 := flacBlockSize*2 + 9
	require.Equal(t, flacStreamHeaderLen+frame1, stream.Len())
	first := stream.Bytes()[flacStreamHeaderLen:]
	assert.Equal(t, []byte{0xFF, 0xF8, 0xC5, 0x08, 0x00}, first[:5])

	tail := enc.Flush()
	require.NotEmpty(t, tail)
	// Partial frame: block size code 7, 16 kHz code 5, frame number 1, 50 samples.
	assert.Equal(t, []byte{0xFF, 0xF8, 0x75, 0x08, 0x01, 0x00, 49}, tail[:7])
	assert.Equal(t, naiveCRC8(tail[:7]), tail[7])

	body := tail[:len(tail)-2]
	got := uint16(tail[len(tail)-2])<<8 | uint16(tail[len(tail)-1])
	assert.Equal(t, naiveCRC16(body), got)
}

func TestFlacEncoderSampleByteSwap(t *testing.T) {
	enc := newFLACEncoder(16000, 1)
	enc.Encode(s16le(0x1234))
	tail := enc.Flush()
	// VERBATIM subframe byte followed by the big-endian sample.
	assert.True(t, bytes.Contains(tail, []byte{0x02, 0x12, 0x34}), "tail %x", tail)
}

func TestFlacEncoderFlushWithoutAudio(t *testing.T) {
	enc := newFLACEncoder(16000, 1)
	out := enc.Flush()
	assert.Len(t, out, flacStreamHeaderLen)
	assert.Equal(t, "fLaC", string(out[:4]))
}

func TestFlacEncoderUncommonRateCarriesHz(t *testing.T) {
	code, tail := flacRateCode(11025)
	assert.Equal(t, byte(0xD), code)
	assert.Equal(t, []byte{0x2B, 0x11}, tail)

	code, tail = flacRateCode(48000)
	assert.Equal(t, byte(0xA), code)
	assert.Nil(t, tail)
}

func TestFlacEncoderRoundTripStereo(t *testing.T) {
	const frames = flacBlockSize + 904
	enc := newFLACEncoder(44100, 2)

	pcm := make([]int16, 0, 2*frames)
	for i := 0; i < frames; i++ {
		pcm = append(pcm, int16(i*7), int16(-i*3))
	}
	raw := s16le(pcm...)

	var stream bytes.Buffer
	// Split on odd boundaries to exercise buffering.
	for off := 0; off < len(raw); off += 1000 {
		end := off + 1000
		if end > len(raw) {
			end = len(raw)
		}
		stream.Write(enc.Encode(raw[off:end]))
	}
	stream.Write(enc.Flush())

	buf, err := Decode(Format{MIMEType: MIMEFLAC}, stream.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 44100, buf.SampleRate)
	require.Equal(t, 2, buf.NumChannels())
	require.Equal(t, frames, buf.NumFrames())
	for i := 0; i < frames; i++ {
		require.Equal(t, float32(pcm[2*i])/32768, buf.Samples[0][i], "left %d", i)
		require.Equal(t, float32(pcm[2*i+1])/32768, buf.Samples[1][i], "right %d", i)
	}
}
