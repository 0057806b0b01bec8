package realtime

import (
	"gopkg.in/hraban/opus.v2"
)

const (
	// SampleRate is the opus clock rate used on both WebRTC tracks.
	SampleRate = 48000
	Channels   = 1
	// FrameDuration is the packetization interval in milliseconds.
	FrameDuration = 20
	FrameSize     = SampleRate * FrameDuration / 1000

	maxEncodedSize = 1024
)

// OpusCodec wraps one encoder/decoder pair. Not safe for concurrent use;
// each connection owns its own codec.
type OpusCodec struct {
	encoder *opus.Encoder
	decoder *opus.Decoder
	buf     []byte
}

func NewOpusCodec() (*OpusCodec, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, err
	}
	return &OpusCodec{
		encoder: enc,
		decoder: dec,
		buf:     make([]byte, maxEncodedSize),
	}, nil
}

// Encode compresses exactly one FrameSize-sample PCM frame.
func (c *OpusCodec) Encode(pcm []int16) ([]byte, error) {
	n, err := c.encoder.Encode(pcm, c.buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.buf[:n])
	return out, nil
}

// Decode expands one opus packet into 48 kHz mono PCM.
func (c *OpusCodec) Decode(data []byte) ([]int16, error) {
	pcm := make([]int16, FrameSize*Channels)
	n, err := c.decoder.Decode(data, pcm)
	if err != nil {
		return nil, err
	}
	return pcm[:n*Channels], nil
}
