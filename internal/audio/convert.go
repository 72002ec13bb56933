package audio

import (
	"encoding/binary"
	"math"
)

// BytesToFloat32 decodes little-endian IEEE float32 PCM as delivered by the
// capture device. A trailing partial sample is ignored. dst is reused when
// large enough.
func BytesToFloat32(dst []float32, src []byte) []float32 {
	n := len(src) / bytesPerSample
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range n {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*bytesPerSample:]))
	}
	return dst
}

// Float32ToBytes is the inverse of BytesToFloat32
func Float32ToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*bytesPerSample:], math.Float32bits(s))
	}
	return out
}
