// Package format holds the pieces shared by the CDF and CEL decoders:
// the error taxonomy, magic number detection, path resolution and
// transparent decompression of staged inputs.
package format

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
)

// Magic numbers found in the first four bytes of binary array files.
const (
	MagicCDF int32 = 67
	MagicCEL int32 = 64
	MagicCHP int32 = 65
)

// Kind identifies the logical file family of an input.
type Kind int

const (
	KindUnknown Kind = iota
	KindCDF
	KindCEL
	KindCHP
	KindBPMAP
	KindBAR
	KindCalvin
)

var kindNames = [...]string{"unknown", "cdf", "cel", "chp", "bpmap", "bar", "calvin"}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Encoding is the on-disk representation of a file.
type Encoding int

const (
	EncodingUnknown Encoding = iota
	EncodingXDA
	EncodingText
	EncodingCalvin
)

func (e Encoding) String() string {
	switch e {
	case EncodingXDA:
		return "xda"
	case EncodingText:
		return "text"
	case EncodingCalvin:
		return "calvin"
	default:
		return "unknown"
	}
}

const (
	bpmapMagic      = "PHT7\r\n\032\n"
	barMagic        = "barr\r\n\032\n"
	calvinMagicByte = 59
)

// IsBinaryFormat reports whether the first four bytes of path decode, as a
// little-endian int32, to magic. Any open or read failure yields false.
func IsBinaryFormat(path string, magic int32) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var buf [4]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return false
	}
	return int32(binary.LittleEndian.Uint32(buf[:])) == magic
}

// Sniff classifies a file from its leading bytes. It never returns an error;
// unreadable files are reported as KindUnknown.
func Sniff(path string) (Kind, Encoding) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, EncodingUnknown
	}
	defer f.Close()

	buf := make([]byte, 16)
	n, _ := io.ReadFull(f, buf)
	return SniffBytes(buf[:n])
}

// SniffBytes classifies a file from a prefix of its content.
func SniffBytes(b []byte) (Kind, Encoding) {
	if len(b) >= len(bpmapMagic) && string(b[:len(bpmapMagic)]) == bpmapMagic {
		return KindBPMAP, EncodingXDA
	}
	if len(b) >= len(barMagic) && string(b[:len(barMagic)]) == barMagic {
		return KindBAR, EncodingXDA
	}
	if len(b) >= 1 && b[0] == calvinMagicByte {
		return KindCalvin, EncodingCalvin
	}
	if len(b) >= 4 {
		switch int32(binary.LittleEndian.Uint32(b)) {
		case MagicCDF:
			return KindCDF, EncodingXDA
		case MagicCEL:
			return KindCEL, EncodingXDA
		case MagicCHP:
			return KindCHP, EncodingXDA
		}
	}
	switch {
	case bytes.HasPrefix(b, []byte("[CDF]")):
		return KindCDF, EncodingText
	case bytes.HasPrefix(b, []byte("[CEL]")), bytes.HasPrefix(b, []byte("COLS/ROWS=")):
		return KindCEL, EncodingText
	}
	return KindUnknown, EncodingUnknown
}
