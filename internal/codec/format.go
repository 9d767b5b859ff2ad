// Package codec converts between captured PCM, the chunk formats a capture
// session can emit, and the canonical WAV container handed to analysis.
package codec

import (
	"errors"
	"mime"
	"strings"
)

const (
	MIMEFLAC  = "audio/flac"
	MIMEMuLaw = "audio/basic" // G.711 mu-law, 8 bits per sample
	MIMEL16   = "audio/L16"   // big-endian signed 16-bit PCM
	MIMEWAV   = "audio/wav"

	l16Base = "audio/l16" // MIMEL16 after BaseMIME lower-cases it
)

var (
	ErrDecodeFailure      = errors.New("audio could not be decoded")
	ErrMetadataUnreadable = errors.New("audio metadata unreadable")
	ErrInvalidBuffer      = errors.New("invalid audio buffer")
	ErrUnsupportedFormat  = errors.New("unsupported chunk format")
)

// Format describes the encoding of the chunks a capture session emits.
type Format struct {
	MIMEType   string
	SampleRate int
	Channels   int
}

// BaseMIME strips parameters (";codecs=...", ";rate=...") and normalises case
// for the type/subtype pair.
func BaseMIME(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	}
	return mt
}

// Supported reports whether a chunk encoder and decoder exist for mimeType.
func Supported(mimeType string) bool {
	switch BaseMIME(mimeType) {
	case MIMEFLAC, MIMEMuLaw, l16Base:
		return true
	}
	return false
}
