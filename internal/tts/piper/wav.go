package piper

import (
	"encoding/binary"
)

// wavHeaderLen is the size of a canonical PCM WAV header.
const wavHeaderLen = 44

// pcmToWAV wraps little-endian PCM samples in a WAV container.
func pcmToWAV(pcm []byte, sampleRate, channels, bytesPerSample int) []byte {
	out := make([]byte, wavHeaderLen+len(pcm))
	le := binary.LittleEndian

	copy(out[0:], "RIFF")
	le.PutUint32(out[4:], uint32(wavHeaderLen-8+len(pcm)))
	copy(out[8:], "WAVE")

	copy(out[12:], "fmt ")
	le.PutUint32(out[16:], 16)
	le.PutUint16(out[20:], 1) // PCM
	le.PutUint16(out[22:], uint16(channels))
	le.PutUint32(out[24:], uint32(sampleRate))
	le.PutUint32(out[28:], uint32(sampleRate*channels*bytesPerSample))
	le.PutUint16(out[32:], uint16(channels*bytesPerSample))
	le.PutUint16(out[34:], uint16(bytesPerSample*8))

	copy(out[36:], "data")
	le.PutUint32(out[40:], uint32(len(pcm)))
	copy(out[wavHeaderLen:], pcm)
	return out
}
