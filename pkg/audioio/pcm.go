package audioio

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ErrUnsupportedWAV is returned for WAV files that are not 16-bit PCM.
var ErrUnsupportedWAV = errors.New("only 16-bit PCM WAV is supported")

// ReaderSource streams raw PCM16 from a file or stdin. WAV files are
// recognised by their RIFF header, which then overrides the configured
// sample rate and channel count.
type ReaderSource struct {
	*streamSource
	path   string
	offset int64
}

// NewReaderSource opens cfg.Device ("-" for stdin).
func NewReaderSource(cfg Config, logger *slog.Logger) (*ReaderSource, error) {
	s := &ReaderSource{path: cfg.Device}
	if cfg.Device != "-" {
		f, err := os.Open(cfg.Device)
		if err != nil {
			return nil, fmt.Errorf("open audio file: %w", err)
		}
		hdr, err := readWAVHeader(f)
		f.Close()
		switch {
		case err == nil:
			cfg.SampleRate = hdr.SampleRate
			cfg.Channels = hdr.Channels
			s.offset = hdr.DataOffset
		case errors.Is(err, errNotWAV):
		default:
			return nil, fmt.Errorf("%s: %w", cfg.Device, err)
		}
	}
	s.streamSource = newStreamSource(cfg, "reader", false, logger, s.open)
	return s, nil
}

func (s *ReaderSource) open(context.Context) (frameReader, error) {
	if s.path == "-" {
		return &pcmReader{r: bufio.NewReader(os.Stdin), buf: make([]byte, s.cfg.BufferBytes())}, nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &pcmReader{r: bufio.NewReader(f), c: f, buf: make([]byte, s.cfg.BufferBytes())}, nil
}

type pcmReader struct {
	r   io.Reader
	c   io.Closer
	buf []byte
}

func (p *pcmReader) next() ([]int16, error) {
	n, err := io.ReadFull(p.r, p.buf)
	samples := DecodePCM16(p.buf[:n-n%2])
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return samples, err
}

func (p *pcmReader) close() error {
	if p.c == nil {
		return nil
	}
	return p.c.Close()
}

var errNotWAV = errors.New("not a wav file")

// WAVHeader describes the PCM payload of a WAV file.
type WAVHeader struct {
	SampleRate int
	Channels   int
	DataOffset int64
	DataSize   int64
}

// readWAVHeader walks the RIFF chunks up to "data".
func readWAVHeader(r io.Reader) (WAVHeader, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return WAVHeader{}, errNotWAV
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return WAVHeader{}, errNotWAV
	}

	var hdr WAVHeader
	offset := int64(12)
	sawFormat := false
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return WAVHeader{}, fmt.Errorf("wav: missing data chunk: %w", err)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))
		offset += 8

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return WAVHeader{}, fmt.Errorf("wav: short fmt chunk: %w", err)
			}
			if size < 16 {
				return WAVHeader{}, fmt.Errorf("wav: fmt chunk too small (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			bits := binary.LittleEndian.Uint16(body[14:16])
			if (format != 1 && format != 0xFFFE) || bits != 16 {
				return WAVHeader{}, ErrUnsupportedWAV
			}
			hdr.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			hdr.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			sawFormat = true
		case "data":
			if !sawFormat {
				return WAVHeader{}, errors.New("wav: data chunk before fmt")
			}
			hdr.DataOffset = offset
			hdr.DataSize = size
			return hdr, nil
		default:
			if _, err := io.CopyN(io.Discard, r, size); err != nil {
				return WAVHeader{}, fmt.Errorf("wav: skip %q: %w", id, err)
			}
		}
		offset += size
		if size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return WAVHeader{}, err
			}
			offset++
		}
	}
}
