package audio

import (
	"encoding/binary"
	"math"
)

// ResamplePCM16 converts mono 16-bit samples between rates using linear
// interpolation. Adequate for speech; not a general purpose resampler.
func ResamplePCM16(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(toRate) / float64(fromRate)
	out := make([]int16, int(math.Ceil(float64(len(samples))*ratio)))
	for i := range out {
		pos := float64(i) / ratio
		idx := int(pos)
		frac := pos - float64(idx)
		switch {
		case idx+1 < len(samples):
			v := float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac
			out[i] = int16(v)
		case idx < len(samples):
			out[i] = samples[idx]
		}
	}
	return out
}

// BytesToPCM16 reads little-endian 16-bit samples. A trailing odd byte is
// dropped.
func BytesToPCM16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

func PCM16ToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}
