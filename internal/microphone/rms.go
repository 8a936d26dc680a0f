package microphone

import (
	"encoding/binary"
	"math"
)

// RMS returns the root mean square amplitude of signed 16-bit little endian
// PCM, normalised to [0,1]. An odd trailing byte is ignored.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sumSquares float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) / 32768.0
		sumSquares += sample * sample
	}
	return math.Min(1, math.Sqrt(sumSquares/float64(n)))
}
