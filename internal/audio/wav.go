package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WrapPCM16 puts raw PCM16LE mono samples in a WAV container so they can be
// handed to transcription backends that refuse headerless audio.
func WrapPCM16(pcm []byte, sampleRate int) ([]byte, error) {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm length %d is not sample aligned", len(pcm))
	}

	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	var b bytes.Buffer
	b.Grow(44 + len(pcm))
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36)+dataSize)
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	_ = binary.Write(&b, binary.LittleEndian, uint32(16))
	_ = binary.Write(&b, binary.LittleEndian, uint16(audioFormat))
	_ = binary.Write(&b, binary.LittleEndian, uint16(numChannels))
	_ = binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&b, binary.LittleEndian, byteRate)
	_ = binary.Write(&b, binary.LittleEndian, blockAlign)
	_ = binary.Write(&b, binary.LittleEndian, uint16(bitsPerSample))
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, dataSize)
	b.Write(pcm)
	return b.Bytes(), nil
}

// UnwrapPCM16 extracts PCM16LE mono samples and the sample rate from a WAV
// payload. Stereo input is downmixed by averaging the channel pair.
func UnwrapPCM16(wav []byte) (pcm []byte, sampleRate int, err error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE payload")
	}

	var (
		channels uint16
		bits     uint16
		rate     uint32
		data     []byte
	)
	off := 12
	for off+8 <= len(wav) {
		id := string(wav[off : off+4])
		size := int(binary.LittleEndian.Uint32(wav[off+4 : off+8]))
		body := off + 8
		if body+size > len(wav) {
			return nil, 0, fmt.Errorf("chunk %q overruns payload", id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(wav[body : body+2])
			if format != 1 {
				return nil, 0, fmt.Errorf("unsupported audio format %d", format)
			}
			channels = binary.LittleEndian.Uint16(wav[body+2 : body+4])
			rate = binary.LittleEndian.Uint32(wav[body+4 : body+8])
			bits = binary.LittleEndian.Uint16(wav[body+14 : body+16])
		case "data":
			data = wav[body : body+size]
		}
		// Chunks are word aligned.
		off = body + size + size%2
	}

	if data == nil || rate == 0 {
		return nil, 0, fmt.Errorf("missing fmt or data chunk")
	}
	if bits != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d", bits)
	}

	switch channels {
	case 1:
		return data, int(rate), nil
	case 2:
		if len(data)%4 != 0 {
			return nil, 0, fmt.Errorf("stereo data length %d is not frame aligned", len(data))
		}
		mono := make([]byte, len(data)/2)
		for i := 0; i+4 <= len(data); i += 4 {
			l := int16(binary.LittleEndian.Uint16(data[i : i+2]))
			r := int16(binary.LittleEndian.Uint16(data[i+2 : i+4]))
			binary.LittleEndian.PutUint16(mono[i/2:i/2+2], uint16((int32(l)+int32(r))/2))
		}
		return mono, int(rate), nil
	default:
		return nil, 0, fmt.Errorf("unsupported channel count %d", channels)
	}
}
