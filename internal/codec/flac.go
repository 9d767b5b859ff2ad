package codec

import (
	"bytes"
	"encoding/binary"
)

const (
	flacBPS       = 16
	flacBlockSize = 4096 // samples per channel per frame (last frame may be smaller)
)

// flacEncoder emits a verbatim FLAC stream incrementally. The first output
// carries the signature and STREAMINFO (total samples unknown); every
// following output holds only whole frames, so the concatenation of all
// outputs is one valid stream.
type flacEncoder struct {
	sampleRate int
	channels   int
	frameNum   int
	started    bool
	pending    []byte // interleaved S16LE not yet framed
}

func newFLACEncoder(sampleRate, channels int) *flacEncoder {
	return &flacEncoder{sampleRate: sampleRate, channels: channels}
}

func (e *flacEncoder) frameBytes() int { return e.channels * 2 }

func (e *flacEncoder) Encode(pcm []byte) []byte {
	var out bytes.Buffer
	e.writeHeader(&out)
	e.pending = append(e.pending, pcm...)

	blockBytes := flacBlockSize * e.frameBytes()
	off := 0
	for len(e.pending)-off >= blockBytes {
		out.Write(e.encodeFrame(e.pending[off : off+blockBytes]))
		off += blockBytes
	}
	e.pending = append(e.pending[:0], e.pending[off:]...)
	return out.Bytes()
}

// Flush frames whatever whole samples are pending as a short final frame.
func (e *flacEncoder) Flush() []byte {
	var out bytes.Buffer
	e.writeHeader(&out)
	whole := len(e.pending) / e.frameBytes() * e.frameBytes()
	if whole > 0 {
		out.Write(e.encodeFrame(e.pending[:whole]))
	}
	e.pending = e.pending[:0]
	return out.Bytes()
}

func (e *flacEncoder) writeHeader(out *bytes.Buffer) {
	if e.started {
		return
	}
	e.started = true
	out.Write(flacMagic)
	out.Write([]byte{0x80, 0x00, 0x00, 0x22}) // METADATA_BLOCK_HEADER: last-block=1, STREAMINFO, length=34
	si := flacStreamInfo(e.sampleRate, e.channels, 0)
	out.Write(si[:])
}

func flacStreamInfo(sampleRate, channels int, totalSamples int64) [34]byte {
	var si [34]byte
	binary.BigEndian.PutUint16(si[0:], flacBlockSize) // min blocksize
	binary.BigEndian.PutUint16(si[2:], flacBlockSize) // max blocksize
	// bytes 4-9: min/max framesize = 0 (unknown)

	// Bytes 10-17: sample_rate(20 bits) | channels-1(3) | bps-1(5) | total_samples(36)
	sr := uint32(sampleRate)
	chM1 := byte(channels-1) & 0x7
	bpsM1 := uint32(flacBPS - 1)
	ts := uint64(totalSamples)

	si[10] = byte(sr >> 12)
	si[11] = byte(sr >> 4)
	si[12] = byte((sr&0xF)<<4) | chM1<<1 | byte(bpsM1>>4)
	si[13] = byte(bpsM1&0xF)<<4 | byte(ts>>32)&0xF
	binary.BigEndian.PutUint32(si[14:], uint32(ts))
	// bytes 18-33: MD5 signature (zeros = not computed)
	return si
}

// flacRateCode maps a sample rate to the frame header code and any trailing
// bytes that code requires.
func flacRateCode(sampleRate int) (byte, []byte) {
	switch sampleRate {
	case 8000:
		return 0x4, nil
	case 16000:
		return 0x5, nil
	case 22050:
		return 0x6, nil
	case 24000:
		return 0x7, nil
	case 32000:
		return 0x8, nil
	case 44100:
		return 0x9, nil
	case 48000:
		return 0xA, nil
	case 96000:
		return 0xB, nil
	}
	if sampleRate > 0 && sampleRate <= 0xFFFF {
		return 0xD, []byte{byte(sampleRate >> 8), byte(sampleRate)} // 16-bit Hz
	}
	return 0x0, nil // from STREAMINFO
}

func (e *flacEncoder) encodeFrame(pcm []byte) []byte {
	fb := e.frameBytes()
	nSamples := len(pcm) / fb
	partial := nSamples != flacBlockSize

	var hdr bytes.Buffer
	hdr.Write([]byte{0xFF, 0xF8}) // sync code + blocking_strategy=fixed

	bsCode := byte(0x0C) // 4096 samples
	if partial {
		bsCode = 0x07 // 16-bit block size - 1 follows in header
	}
	rateCode, rateTail := flacRateCode(e.sampleRate)
	hdr.WriteByte(bsCode<<4 | rateCode)

	// channel assignment (independent) | sample size 100 = 16 bits | reserved
	hdr.WriteByte(byte(e.channels-1)<<4 | 0x4<<1)

	hdr.Write(flacUTF8Int(uint64(e.frameNum)))

	if partial {
		var buf [2]byte
		binary.BigEndian.PutUint16(buf[:], uint16(nSamples-1))
		hdr.Write(buf[:])
	}
	hdr.Write(rateTail)
	hdr.WriteByte(flacCRC8(hdr.Bytes()))

	frame := make([]byte, 0, hdr.Len()+e.channels*(1+nSamples*2)+2)
	frame = append(frame, hdr.Bytes()...)
	for ch := 0; ch < e.channels; ch++ {
		frame = append(frame, 0x02) // subframe type: VERBATIM, no wasted bits
		// PCM is S16LE; FLAC stores big-endian samples.
		for i := 0; i < nSamples; i++ {
			off := i*fb + ch*2
			frame = append(frame, pcm[off+1], pcm[off])
		}
	}

	e.frameNum++
	crc16 := flacCRC16(frame)
	return append(frame, byte(crc16>>8), byte(crc16))
}

func flacUTF8Int(v uint64) []byte {
	switch {
	case v < 0x80:
		return []byte{byte(v)}
	case v < 0x800:
		return []byte{0xC0 | byte(v>>6), 0x80 | byte(v&0x3F)}
	case v < 0x10000:
		return []byte{0xE0 | byte(v>>12), 0x80 | byte((v>>6)&0x3F), 0x80 | byte(v&0x3F)}
	case v < 0x200000:
		return []byte{0xF0 | byte(v>>18), 0x80 | byte((v>>12)&0x3F), 0x80 | byte((v>>6)&0x3F), 0x80 | byte(v&0x3F)}
	default:
		return []byte{
			0xF8 | byte(v>>24),
			0x80 | byte((v>>18)&0x3F),
			0x80 | byte((v>>12)&0x3F),
			0x80 | byte((v>>6)&0x3F),
			0x80 | byte(v&0x3F),
		}
	}
}

var (
	crc8Table  [256]byte
	crc16Table [256]uint16
)

func init() {
	for i := range crc8Table { // CRC-8: poly 0x07
		v := byte(i)
		for j := 0; j < 8; j++ {
			if v&0x80 != 0 {
				v = (v << 1) ^ 0x07
			} else {
				v <<= 1
			}
		}
		crc8Table[i] = v
	}
	for i := range crc16Table { // CRC-16: poly 0x8005
		v := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if v&0x8000 != 0 {
				v = (v << 1) ^ 0x8005
			} else {
				v <<= 1
			}
		}
		crc16Table[i] = v
	}
}

func flacCRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc
}

func flacCRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crc16Table[byte(crc>>8)^b] ^ (crc << 8)
	}
	return crc
}
