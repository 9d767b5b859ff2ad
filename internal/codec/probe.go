package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-audio/wav"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
	"github.com/tcolgate/mp3"
)

// Probe reads the duration, in seconds, embedded in a WAV, FLAC, Ogg Vorbis
// or MP3 file. Anything it cannot read matches ErrMetadataUnreadable.
func Probe(data []byte) (secs float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			secs, err = 0, fmt.Errorf("%w: parsing: %v", ErrMetadataUnreadable, r)
		}
	}()

	m := mimetype.Detect(data)
	switch {
	case is(m, MIMEWAV):
		secs, err = probeWAV(data)
	case is(m, MIMEFLAC):
		secs, err = probeFLAC(data)
	case is(m, "application/ogg"):
		secs, err = probeOgg(data)
	case is(m, "audio/mpeg"):
		secs, err = probeMP3(data)
	default:
		err = fmt.Errorf("no duration metadata in %s", m.String())
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMetadataUnreadable, err)
	}
	if secs < 0 || secs != secs {
		return 0, fmt.Errorf("%w: duration %v", ErrMetadataUnreadable, secs)
	}
	return secs, nil
}

// is reports whether m or one of its parents is mimeType.
func is(m *mimetype.MIME, mimeType string) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(mimeType) {
			return true
		}
	}
	return false
}

func probeWAV(data []byte) (float64, error) {
	if err := checkRIFF(data); err != nil {
		return 0, err
	}
	d := wav.NewDecoder(bytes.NewReader(data))
	if err := d.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("locating data chunk: %w", err)
	}
	if err := d.Err(); err != nil {
		return 0, fmt.Errorf("reading WAV header: %w", err)
	}
	byteRate := int64(d.SampleRate) * int64(d.NumChans) * int64(d.BitDepth) / 8
	if byteRate <= 0 {
		return 0, fmt.Errorf("invalid WAV format: %d Hz, %d channels, %d bits", d.SampleRate, d.NumChans, d.BitDepth)
	}
	return float64(d.PCMLen()) / float64(byteRate), nil
}

// checkRIFF walks the chunk headers up to the data chunk and rejects any
// size that runs past the end of data. The go-audio decoder allocates
// whatever a chunk header claims.
func checkRIFF(data []byte) error {
	if len(data) < 12 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return errors.New("not a RIFF/WAVE file")
	}
	haveFmt := false
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int64(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8
		if left := int64(len(data) - off); size > left {
			return fmt.Errorf("%q chunk claims %d bytes, %d left", id, size, left)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return fmt.Errorf("fmt chunk is %d bytes", size)
			}
			chans := binary.LittleEndian.Uint16(data[off+2:])
			rate := binary.LittleEndian.Uint32(data[off+4:])
			if chans == 0 || rate == 0 {
				return fmt.Errorf("fmt chunk has %d channels at %d Hz", chans, rate)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return errors.New("data chunk before fmt chunk")
			}
			return nil
		}
		off += int(size + size&1)
	}
	return errors.New("no data chunk")
}

func probeFLAC(data []byte) (float64, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	if stream.Info.SampleRate == 0 {
		return 0, fmt.Errorf("STREAMINFO sample rate is 0")
	}
	total := stream.Info.NSamples
	if total == 0 {
		// Streamed FLAC leaves the total unknown; count frames instead.
		for {
			fr, err := stream.ParseNext()
			if err == io.EOF {
				break
			}
			if err != nil {
				return 0, err
			}
			if len(fr.Subframes) > 0 {
				total += uint64(len(fr.Subframes[0].Samples))
			}
		}
	}
	return float64(total) / float64(stream.Info.SampleRate), nil
}

func probeOgg(data []byte) (float64, error) {
	n, f, err := oggvorbis.GetLength(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	if f.SampleRate <= 0 {
		return 0, fmt.Errorf("vorbis sample rate is %d", f.SampleRate)
	}
	return float64(n) / float64(f.SampleRate), nil
}

// probeMP3 sums frame durations, which also covers VBR files without a
// Xing header.
func probeMP3(data []byte) (float64, error) {
	d := mp3.NewDecoder(bytes.NewReader(skipID3v2(data)))
	var (
		f       mp3.Frame
		skipped int
		total   time.Duration
		frames  int
	)
	for {
		err := d.Decode(&f, &skipped)
		if err == io.EOF || (errors.Is(err, io.ErrUnexpectedEOF) && frames > 0) {
			break
		}
		if err != nil {
			return 0, err
		}
		total += f.Duration()
		frames++
	}
	if frames == 0 {
		return 0, errors.New("no MPEG audio frames")
	}
	return total.Seconds(), nil
}

func skipID3v2(data []byte) []byte {
	if len(data) < 10 || string(data[:3]) != "ID3" {
		return data
	}
	size := 10 + (int(data[6]&0x7F)<<21 | int(data[7]&0x7F)<<14 | int(data[8]&0x7F)<<7 | int(data[9]&0x7F))
	if data[5]&0x10 != 0 {
		size += 10 // footer
	}
	if size > len(data) {
		return nil
	}
	return data[size:]
}
