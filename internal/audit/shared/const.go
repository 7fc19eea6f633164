package shared

import (
	"encoding/binary"
	"math"

	"github.com/farcloser/cadence/internal/types"
)

const (
	MaxValue16 = 32768.0      // 2^15 — 16-bit signed PCM normalization divisor
	MaxValue24 = 8388608.0    // 2^23 — 24-bit signed PCM normalization divisor
	MaxValue32 = 2147483648.0 // 2^31 — 32-bit signed PCM normalization divisor

	// SilenceFloorDb stands in for log10(0).
	SilenceFloorDb = -120.0
)

// MaxValue returns the normalization divisor for a bit depth.
func MaxValue(depth types.BitDepth) float64 {
	switch depth {
	case types.Depth16:
		return MaxValue16
	case types.Depth24:
		return MaxValue24
	case types.Depth32:
		return MaxValue32
	default:
	}

	return MaxValue32
}

// ToDb converts a linear amplitude to dBFS.
func ToDb(linear float64) float64 {
	if linear <= 0 {
		return SilenceFloorDb
	}

	db := 20 * math.Log10(linear)
	if math.IsInf(db, -1) || db < SilenceFloorDb {
		return SilenceFloorDb
	}

	return db
}

// FromDb converts dB to a linear amplitude factor.
func FromDb(db float64) float64 {
	return math.Pow(10, db/20)
}

// DecodeMono decodes interleaved PCM into normalized mono samples, averaging channels.
// Trailing bytes that do not form a complete frame are ignored.
func DecodeMono(data []byte, format types.PCMFormat) []float64 {
	bytesPerSample := int(format.BitDepth / 8) //nolint:gosec // bit depth and channel count are small constants
	numChannels := max(int(format.Channels), 1) //nolint:gosec // bit depth and channel count are small constants
	frameSize := bytesPerSample * numChannels

	if frameSize == 0 {
		return nil
	}

	maxVal := MaxValue(format.BitDepth)
	frames := len(data) / frameSize
	out := make([]float64, frames)

	for frame := range frames {
		var sum float64

		base := frame * frameSize

		for ch := range numChannels {
			offset := base + ch*bytesPerSample

			switch format.BitDepth {
			case types.Depth16:
				sum += float64(int16(binary.LittleEndian.Uint16(data[offset:]))) / maxVal
			case types.Depth24:
				raw := int32(data[offset]) | int32(data[offset+1])<<8 | int32(data[offset+2])<<16
				if raw&0x800000 != 0 {
					raw |= ^0xFFFFFF
				}

				sum += float64(raw) / maxVal
			case types.Depth32:
				sum += float64(int32(binary.LittleEndian.Uint32(data[offset:]))) / maxVal
			default:
			}
		}

		out[frame] = sum / float64(numChannels)
	}

	return out
}

// EncodeFloat32 encodes samples as little-endian 32-bit float PCM (ffmpeg f32le).
func EncodeFloat32(samples []float64) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(s)))
	}

	return out
}

// DecodeFloat32 decodes little-endian 32-bit float PCM.
func DecodeFloat32(data []byte) []float64 {
	out := make([]float64, len(data)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}

	return out
}
