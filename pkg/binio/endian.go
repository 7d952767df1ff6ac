// Package binio decodes the little-endian primitives used by the XDA array
// formats, both from streams and from byte slices at an offset.
package binio

import (
	"math"
	"unsafe"
)

var hostBigEndian = detectBigEndian()

func detectBigEndian() bool {
	var probe uint16 = 0x0102
	return (*[2]byte)(unsafe.Pointer(&probe))[0] == 0x01
}

// HostBigEndian reports whether the running machine stores integers
// most-significant byte first.
func HostBigEndian() bool {
	return hostBigEndian
}

// Swap16 reverses the byte order of v.
func Swap16(v uint16) uint16 {
	return v<<8 | v>>8
}

// Swap32 reverses the byte order of v.
func Swap32(v uint32) uint32 {
	return v<<24 | (v<<8)&0x00ff0000 | (v>>8)&0x0000ff00 | v>>24
}

// Word is any fixed-width value stored in the XDA formats.
type Word interface {
	~int16 | ~uint16 | ~int32 | ~uint32 | ~float32
}

// Normalize converts a value loaded in host order from little-endian storage
// into its logical value. On little-endian hosts it is the identity.
func Normalize[T Word](v T) T {
	return normalize(v, hostBigEndian)
}

func normalize[T Word](v T, bigEndian bool) T {
	if !bigEndian {
		return v
	}
	switch unsafe.Sizeof(v) {
	case 2:
		u := Swap16(*(*uint16)(unsafe.Pointer(&v)))
		return *(*T)(unsafe.Pointer(&u))
	case 4:
		u := Swap32(*(*uint32)(unsafe.Pointer(&v)))
		return *(*T)(unsafe.Pointer(&u))
	}
	return v
}

// The From/To pairs below decode and encode explicit little-endian bytes;
// they are host independent.

// FromLittleEndianU16 decodes b[0:2].
func FromLittleEndianU16(b []byte) uint16 {
	_ = b[1]
	return uint16(b[0]) | uint16(b[1])<<8
}

// FromLittleEndianI16 decodes b[0:2].
func FromLittleEndianI16(b []byte) int16 {
	return int16(FromLittleEndianU16(b))
}

// FromLittleEndianU32 decodes b[0:4].
func FromLittleEndianU32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// FromLittleEndianI32 decodes b[0:4].
func FromLittleEndianI32(b []byte) int32 {
	return int32(FromLittleEndianU32(b))
}

// FromLittleEndianF32 decodes an IEEE-754 float from b[0:4].
func FromLittleEndianF32(b []byte) float32 {
	return math.Float32frombits(FromLittleEndianU32(b))
}

// ToLittleEndianU16 encodes v into b[0:2].
func ToLittleEndianU16(b []byte, v uint16) {
	_ = b[1]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// ToLittleEndianI16 encodes v into b[0:2].
func ToLittleEndianI16(b []byte, v int16) {
	ToLittleEndianU16(b, uint16(v))
}

// ToLittleEndianU32 encodes v into b[0:4].
func ToLittleEndianU32(b []byte, v uint32) {
	_ = b[3]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// ToLittleEndianI32 encodes v into b[0:4].
func ToLittleEndianI32(b []byte, v int32) {
	ToLittleEndianU32(b, uint32(v))
}

// ToLittleEndianF32 encodes v into b[0:4].
func ToLittleEndianF32(b []byte, v float32) {
	ToLittleEndianU32(b, math.Float32bits(v))
}
