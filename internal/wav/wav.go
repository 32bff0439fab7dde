// Package wav wraps and inspects PCM audio in the WAV container format.
package wav

import (
	"encoding/binary"
	"errors"
	"time"
)

// WAV format constants.
const (
	// HeaderSize is the size of a standard WAV file header in bytes.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed PCM.
	FormatPCM = 1
)

// Piper TTS output format.
const (
	// PiperSampleRate is the default sample rate output by Piper TTS (22050 Hz).
	PiperSampleRate = 22050

	// PiperChannels is the default number of channels output by Piper TTS (mono).
	PiperChannels = 1

	// PiperBitsPerSample is the default bit depth output by Piper TTS (16-bit).
	PiperBitsPerSample = 16
)

// ErrNotWAV is returned when data does not start with a valid PCM WAV header.
var ErrNotWAV = errors.New("not a valid WAV file")

// Info describes the audio stored in a WAV file.
type Info struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataSize      int
}

// Duration returns the playback length of the audio.
func (i Info) Duration() time.Duration {
	bytesPerSecond := i.SampleRate * i.Channels * i.BitsPerSample / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(i.DataSize) * time.Second / time.Duration(bytesPerSecond)
}

// WrapRawPCM adds a WAV header to raw PCM data, producing a complete file.
func WrapRawPCM(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, HeaderSize)
	le := binary.LittleEndian

	// RIFF chunk
	copy(header[0:4], "RIFF")
	le.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")

	// fmt subchunk
	copy(header[12:16], "fmt ")
	le.PutUint32(header[16:20], 16)
	le.PutUint16(header[20:22], FormatPCM)
	le.PutUint16(header[22:24], uint16(channels))
	le.PutUint32(header[24:28], uint32(sampleRate))
	le.PutUint32(header[28:32], uint32(byteRate))
	le.PutUint16(header[32:34], uint16(blockAlign))
	le.PutUint16(header[34:36], uint16(bitsPerSample))

	// data subchunk
	copy(header[36:40], "data")
	le.PutUint32(header[40:44], uint32(dataSize))

	return append(header, pcm...)
}

// Parse reads the header of a standard 44-byte PCM WAV file. It accepts only
// the layout WrapRawPCM produces, which is what the synthesis engines emit.
func Parse(data []byte) (Info, error) {
	if len(data) < HeaderSize {
		return Info{}, ErrNotWAV
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[12:16]) != "fmt " {
		return Info{}, ErrNotWAV
	}

	le := binary.LittleEndian
	if le.Uint16(data[20:22]) != FormatPCM {
		return Info{}, ErrNotWAV
	}

	info := Info{
		SampleRate:    int(le.Uint32(data[24:28])),
		Channels:      int(le.Uint16(data[22:24])),
		BitsPerSample: int(le.Uint16(data[34:36])),
		DataSize:      int(le.Uint32(data[40:44])),
	}

	if info.SampleRate == 0 || info.Channels == 0 || info.BitsPerSample == 0 {
		return Info{}, ErrNotWAV
	}

	// Trust the actual payload over a lying data-size field.
	if actual := len(data) - HeaderSize; info.DataSize > actual {
		info.DataSize = actual
	}

	return info, nil
}

// Duration reports the playback length of WAV data, or zero if the data is
// not a parseable WAV file.
func Duration(data []byte) time.Duration {
	info, err := Parse(data)
	if err != nil {
		return 0
	}
	return info.Duration()
}

// Silence produces a WAV file of silent samples in the given format.
func Silence(numSamples, sampleRate, channels, bitsPerSample int) []byte {
	pcm := make([]byte, numSamples*channels*bitsPerSample/8)
	return WrapRawPCM(pcm, sampleRate, channels, bitsPerSample)
}
