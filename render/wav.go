package render

import "math"

// EncodeWAV builds a 16-bit PCM RIFF/WAVE file from interleaved samples.
func EncodeWAV(sampleRate, channels int, samples []int16) []byte {
	dataSize := len(samples) * 2
	data := make([]byte, 44+dataSize)
	writeWavHeader(data, sampleRate, channels, dataSize)

	// Sample data (little-endian)
	for i, s := range samples {
		data[44+i*2] = byte(s)
		data[44+i*2+1] = byte(s >> 8)
	}
	return data
}

// PCM16 converts a mixed sample in [-1, 1] to a 16-bit PCM value.
func PCM16(x float64) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return int16(math.Round(x * 32767))
}

// writeWavHeader writes a WAV file header to the buffer.
func writeWavHeader(data []byte, sampleRate, channels, dataSize int) {
	// RIFF header
	data[0] = 'R'
	data[1] = 'I'
	data[2] = 'F'
	data[3] = 'F'
	writeUint32LE(data, 4, uint32(dataSize+36))
	data[8] = 'W'
	data[9] = 'A'
	data[10] = 'V'
	data[11] = 'E'

	// fmt sub-chunk
	data[12] = 'f'
	data[13] = 'm'
	data[14] = 't'
	data[15] = ' '
	writeUint32LE(data, 16, 16)                            // Sub-chunk size
	writeUint16LE(data, 20, 1)                             // Audio format (PCM)
	writeUint16LE(data, 22, uint16(channels))              // Channels
	writeUint32LE(data, 24, uint32(sampleRate))            // Sample rate
	writeUint32LE(data, 28, uint32(sampleRate*channels*2)) // Byte rate
	writeUint16LE(data, 32, uint16(channels*2))            // Block align
	writeUint16LE(data, 34, 16)                            // Bits per sample

	// data sub-chunk
	data[36] = 'd'
	data[37] = 'a'
	data[38] = 't'
	data[39] = 'a'
	writeUint32LE(data, 40, uint32(dataSize))
}

func writeUint16LE(data []byte, offset int, value uint16) {
	data[offset] = byte(value)
	data[offset+1] = byte(value >> 8)
}

func writeUint32LE(data []byte, offset int, value uint32) {
	data[offset] = byte(value)
	data[offset+1] = byte(value >> 8)
	data[offset+2] = byte(value >> 16)
	data[offset+3] = byte(value >> 24)
}
