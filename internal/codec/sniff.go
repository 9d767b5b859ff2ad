package codec

import (
	"bytes"

	"github.com/gabriel-vasile/mimetype"
)

var flacMagic = []byte("fLaC")

func init() {
	// mimetype only recognises FLAC when STREAMINFO is followed by another
	// metadata block, which is never the case for the streams written here.
	mimetype.Lookup("application/octet-stream").Extend(func(raw []byte, _ uint32) bool {
		return bytes.HasPrefix(raw, flacMagic)
	}, MIMEFLAC, ".flac")
}

// Sniff returns the MIME type of data, detected from its content.
func Sniff(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	return mimetype.Detect(data).String()
}
