package audio

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format identifies a recognized container/codec family.
type Format string

const (
	FormatUnknown   Format = ""
	FormatWAV       Format = "wav"
	FormatMP3       Format = "mp3"
	FormatFLAC      Format = "flac"
	FormatOggVorbis Format = "ogg-vorbis"
	FormatOggOpus   Format = "ogg-opus"
	FormatMP4       Format = "mp4"
	FormatASF       Format = "asf"
	FormatWebM      Format = "webm"
)

// sniffLen is how many leading bytes DetectFormat needs to classify a file.
// Ogg codec identification looks past the 28-byte page header into the first
// packet, so a little headroom is required.
const sniffLen = 64

// asfGUID is the leading bytes of the ASF header object GUID (WMA container).
var asfGUID = []byte{0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11}

// DetectFormat classifies a file by its magic bytes, consulting the file
// extension only when the header alone is ambiguous.
func DetectFormat(header []byte, path string) Format {
	switch {
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return FormatWAV
	case len(header) >= 4 && bytes.Equal(header[0:4], []byte("fLaC")):
		return FormatFLAC
	case len(header) >= 4 && bytes.Equal(header[0:4], []byte("OggS")):
		return detectOggCodec(header, path)
	case len(header) >= 12 && bytes.Equal(header[4:8], []byte("ftyp")):
		return FormatMP4
	case len(header) >= 8 && bytes.Equal(header[0:8], asfGUID):
		return FormatASF
	case len(header) >= 4 && bytes.Equal(header[0:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return FormatWebM
	case len(header) >= 3 && bytes.Equal(header[0:3], []byte("ID3")):
		return FormatMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		// Bare MPEG audio frame sync. ADTS AAC shares the sync word; layer
		// bits distinguish them (00 means AAC).
		if header[1]&0x06 == 0 {
			return FormatMP4
		}
		return FormatMP3
	}

	return detectByExtension(path)
}

// detectOggCodec inspects the first packet of the first Ogg page to tell
// Vorbis streams apart from Opus streams.
func detectOggCodec(header []byte, path string) Format {
	if bytes.Contains(header, []byte("OpusHead")) {
		return FormatOggOpus
	}
	if bytes.Contains(header, []byte("\x01vorbis")) {
		return FormatOggVorbis
	}
	// FLAC-in-Ogg and Speex are not accepted; an undetermined codec falls
	// through to the extension hint.
	return detectByExtension(path)
}

// detectByExtension is the fallback hint when magic bytes are inconclusive.
func detectByExtension(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return FormatWAV
	case ".mp3":
		return FormatMP3
	case ".flac":
		return FormatFLAC
	case ".ogg", ".oga":
		return FormatOggVorbis
	case ".opus":
		return FormatOggOpus
	case ".m4a", ".aac", ".mp4":
		return FormatMP4
	case ".wma":
		return FormatASF
	case ".webm", ".mkv":
		return FormatWebM
	default:
		return FormatUnknown
	}
}
