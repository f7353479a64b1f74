package audioio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/hraban/opus.v2"
)

// opusRate is the rate libopus decodes at here.
const opusRate = 48000

// maxOpusFrame is 120ms at 48kHz, the longest Opus packet.
const maxOpusFrame = 5760

// OpusHead is the identification header of an Ogg Opus stream.
type OpusHead struct {
	Channels int
	PreSkip  int
	InputHz  int
}

// OpusSource decodes an Ogg Opus file with libopus. Chunks come out at
// 48kHz with the channel count from the file header.
type OpusSource struct {
	*streamSource
	path string
	head OpusHead
}

// NewOpusSource reads the header of the file at cfg.Device.
func NewOpusSource(cfg Config, logger *slog.Logger) (*OpusSource, error) {
	f, err := os.Open(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open opus file: %w", err)
	}
	defer f.Close()

	head, err := readOpusHead(newOggReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Device, err)
	}

	cfg.SampleRate = opusRate
	cfg.Channels = head.Channels
	s := &OpusSource{path: cfg.Device, head: head}
	s.streamSource = newStreamSource(cfg, "opus", false, logger, s.open)
	return s, nil
}

// Head returns the stream's identification header.
func (s *OpusSource) Head() OpusHead { return s.head }

func (s *OpusSource) open(context.Context) (frameReader, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open opus file: %w", err)
	}
	ogg := newOggReader(f)
	if _, err := readOpusHead(ogg); err != nil {
		f.Close()
		return nil, err
	}
	// OpusTags
	if _, err := ogg.Packet(); err != nil {
		f.Close()
		return nil, fmt.Errorf("opus tags: %w", err)
	}

	dec, err := opus.NewDecoder(opusRate, s.head.Channels)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opus decoder: %w", err)
	}
	return &opusReader{
		ogg:      ogg,
		file:     f,
		dec:      dec,
		channels: s.head.Channels,
		skip:     s.head.PreSkip,
		frame:    make([]int16, maxOpusFrame*s.head.Channels),
		logger:   s.logger,
	}, nil
}

type opusReader struct {
	ogg      *oggReader
	file     *os.File
	dec      *opus.Decoder
	channels int
	skip     int
	frame    []int16
	errors   int
	logger   *slog.Logger
}

func (o *opusReader) next() ([]int16, error) {
	for {
		packet, err := o.ogg.Packet()
		if err != nil {
			return nil, err
		}
		n, err := o.dec.Decode(packet, o.frame)
		if err != nil {
			o.errors++
			if o.errors <= 5 {
				o.logger.Warn("opus decode error", "error", err, "bytes", len(packet))
			}
			continue
		}
		if o.skip > 0 {
			drop := min(o.skip, n)
			o.skip -= drop
			if drop == n {
				continue
			}
			out := make([]int16, (n-drop)*o.channels)
			copy(out, o.frame[drop*o.channels:n*o.channels])
			return out, nil
		}
		out := make([]int16, n*o.channels)
		copy(out, o.frame[:n*o.channels])
		return out, nil
	}
}

func (o *opusReader) close() error { return o.file.Close() }

func readOpusHead(ogg *oggReader) (OpusHead, error) {
	p, err := ogg.Packet()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return OpusHead{}, errors.New("opus: empty stream")
		}
		return OpusHead{}, err
	}
	return parseOpusHead(p)
}

func parseOpusHead(p []byte) (OpusHead, error) {
	if len(p) < 19 || string(p[0:8]) != "OpusHead" {
		return OpusHead{}, errors.New("opus: missing OpusHead")
	}
	channels := int(p[9])
	if channels < 1 || channels > 2 {
		return OpusHead{}, fmt.Errorf("opus: %d channels not supported", channels)
	}
	return OpusHead{
		Channels: channels,
		PreSkip:  int(binary.LittleEndian.Uint16(p[10:12])),
		InputHz:  int(binary.LittleEndian.Uint32(p[12:16])),
	}, nil
}
