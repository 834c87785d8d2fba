package audio

import "encoding/binary"

// FloatToPCM16 converts float samples in [-1, 1] to 16-bit
// little-endian PCM bytes, the wire format speech engines expect.
// Out-of-range samples are clipped.
func FloatToPCM16(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(clipToInt16(sample)))
	}
	return data
}

// FloatToInt16 converts float samples in [-1, 1] to 16-bit values for
// integer PCM sinks such as WAV encoders.
func FloatToInt16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, sample := range samples {
		out[i] = int(clipToInt16(sample))
	}
	return out
}

// PCM16ToFloat converts 16-bit little-endian PCM bytes back to float
// samples. A trailing odd byte is ignored.
func PCM16ToFloat(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32767.0
	}
	return samples
}

func clipToInt16(sample float32) int16 {
	if sample > 1.0 {
		sample = 1.0
	} else if sample < -1.0 {
		sample = -1.0
	}
	return int16(sample * 32767)
}
