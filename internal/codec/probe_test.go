package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeWAV(t *testing.T) {
	out, err := EncodeWAV(&Buffer{SampleRate: 16000, Samples: silence(1, 24000)})
	require.NoError(t, err)

	secs, err := Probe(out)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, secs, 1e-9)
}

func TestProbeStereoWAV(t *testing.T) {
	out, err := EncodeWAV(&Buffer{SampleRate: 8000, Samples: silence(2, 4000)})
	require.NoError(t, err)

	secs, err := Probe(out)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, secs, 1e-9)
}

func TestProbeStreamedFLACCountsFrames(t *testing.T) {
	enc := newFLACEncoder(16000, 1)
	var stream bytes.Buffer
	stream.Write(enc.Encode(make([]byte, 2*(flacBlockSize+4000))))
	stream.Write(enc.Flush())

	secs, err := Probe(stream.Bytes())
	require.NoError(t, err)
	assert.InDelta(t, float64(flacBlockSize+4000)/16000, secs, 1e-9)
}

func TestProbeUnreadable(t *testing.T) {
	tests := map[string][]byte{
		"empty":         nil,
		"text":          []byte("hello, this is not audio"),
		"riff not wave": append([]byte("RIFF\x04\x00\x00\x00AVI "), make([]byte, 40)...),
		"ogg":           append([]byte("OggS"), make([]byte, 60)...),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			secs, err := Probe(data)
			assert.ErrorIs(t, err, ErrMetadataUnreadable)
			assert.Zero(t, secs)
		})
	}
}

func TestProbeMalformedWAV(t *testing.T) {
	valid, err := EncodeWAV(&Buffer{SampleRate: 16000, Samples: silence(1, 1600)})
	require.NoError(t, err)

	tests := []struct {
		name    string
		corrupt func([]byte) []byte
	}{
		{"fmt size past end", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[16:], 0xF5000010)
			return b
		}},
		{"data size past end", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[40:], 0xFFFFFFF0)
			return b
		}},
		{"fmt too short", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[16:], 8)
			return b
		}},
		{"zero sample rate", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[24:], 0)
			return b
		}},
		{"data before fmt", func(b []byte) []byte {
			copy(b[12:16], "data")
			return b
		}},
		{"truncated in fmt", func(b []byte) []byte { return b[:30] }},
		{"no data chunk", func(b []byte) []byte { return b[:36] }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			secs, err := Probe(tc.corrupt(bytes.Clone(valid)))
			assert.ErrorIs(t, err, ErrMetadataUnreadable)
			assert.Zero(t, secs)
		})
	}
}

func TestProbeWAVSkipsUnknownChunks(t *testing.T) {
	valid, err := EncodeWAV(&Buffer{SampleRate: 16000, Samples: silence(1, 8000)})
	require.NoError(t, err)

	junk := []byte("JUNK\x04\x00\x00\x00abcd")
	data := append(bytes.Clone(valid[:36]), junk...)
	data = append(data, valid[36:]...)
	binary.LittleEndian.PutUint32(data[4:], uint32(len(data)-8))

	secs, err := Probe(data)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, secs, 1e-9)
}

// mp3Frames returns n silent MPEG-1 Layer III frames at 128 kbit/s, 48 kHz:
// 384 bytes and 1152 samples each.
func mp3Frames(n int) []byte {
	frame := make([]byte, 384)
	copy(frame, []byte{0xFF, 0xFB, 0x94, 0x00})
	return bytes.Repeat(frame, n)
}

func TestProbeMP3(t *testing.T) {
	secs, err := Probe(mp3Frames(50))
	require.NoError(t, err)
	assert.InDelta(t, 50*1152.0/48000, secs, 1e-6)
}

func TestProbeMP3WithID3Tag(t *testing.T) {
	tag := append([]byte("ID3\x04\x00\x00\x00\x00\x00\x14"), make([]byte, 20)...)
	secs, err := Probe(append(tag, mp3Frames(10)...))
	require.NoError(t, err)
	assert.InDelta(t, 10*1152.0/48000, secs, 1e-6)
}

func TestProbeMP3WithoutFrames(t *testing.T) {
	tag := append([]byte("ID3\x04\x00\x00\x00\x00\x00\x14"), make([]byte, 20)...)
	secs, err := Probe(tag)
	assert.ErrorIs(t, err, ErrMetadataUnreadable)
	assert.Zero(t, secs)
}

func TestSniff(t *testing.T) {
	wav, err := EncodeWAV(&Buffer{SampleRate: 16000, Samples: silence(1, 16)})
	require.NoError(t, err)
	enc := newFLACEncoder(16000, 1)
	flacData := append(enc.Encode(make([]byte, 64)), enc.Flush()...)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"wav", wav, MIMEWAV},
		{"flac with only STREAMINFO", flacData, MIMEFLAC},
		{"mp3", mp3Frames(2), "audio/mpeg"},
		{"empty", nil, "application/octet-stream"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sniff(tc.data))
		})
	}
}
