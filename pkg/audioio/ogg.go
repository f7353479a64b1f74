package audioio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var errBadOggPage = errors.New("ogg: bad page header")

// oggReader splits the first logical stream of an Ogg file into packets.
// Page checksums are not verified.
type oggReader struct {
	r       *bufio.Reader
	serial  uint32
	locked  bool
	partial []byte
	pending [][]byte
}

func newOggReader(r io.Reader) *oggReader {
	return &oggReader{r: bufio.NewReader(r)}
}

// Packet returns the next complete packet or io.EOF.
func (o *oggReader) Packet() ([]byte, error) {
	for len(o.pending) == 0 {
		if err := o.readPage(); err != nil {
			return nil, err
		}
	}
	p := o.pending[0]
	o.pending = o.pending[1:]
	return p, nil
}

func (o *oggReader) readPage() error {
	var hdr [27]byte
	if _, err := io.ReadFull(o.r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated", errBadOggPage)
		}
		return err
	}
	if string(hdr[0:4]) != "OggS" || hdr[4] != 0 {
		return errBadOggPage
	}
	continued := hdr[5]&0x01 != 0
	serial := binary.LittleEndian.Uint32(hdr[14:18])

	lacing := make([]byte, hdr[26])
	if _, err := io.ReadFull(o.r, lacing); err != nil {
		return fmt.Errorf("%w: lacing: %v", errBadOggPage, err)
	}
	total := 0
	for _, l := range lacing {
		total += int(l)
	}
	body := make([]byte, total)
	if _, err := io.ReadFull(o.r, body); err != nil {
		return fmt.Errorf("%w: body: %v", errBadOggPage, err)
	}

	if !o.locked {
		o.serial, o.locked = serial, true
	}
	if serial != o.serial {
		return nil
	}
	if !continued {
		o.partial = nil
	}

	pos := 0
	for _, l := range lacing {
		o.partial = append(o.partial, body[pos:pos+int(l)]...)
		pos += int(l)
		if l < 255 {
			o.pending = append(o.pending, o.partial)
			o.partial = nil
		}
	}
	return nil
}
