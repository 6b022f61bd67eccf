package colour

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/image/riff"
)

// Microsoft RIFF palette layout:
//
//	"RIFF" size "PAL " { "data" size palVersion(0x0300) palNumEntries {R G B flags}... }

var (
	riffType = riff.FourCC{'R', 'I', 'F', 'F'}
	palType  = riff.FourCC{'P', 'A', 'L', ' '}
	dataType = riff.FourCC{'d', 'a', 't', 'a'}
)

const palVersion = 0x0300

// maxPALEntries is the most colours a single data chunk can describe.
const maxPALEntries = 0xffff

// WritePAL writes p as a RIFF PAL file with a single data chunk.
func WritePAL(w io.Writer, p *Palette) error {
	if p.Len() == 0 {
		return ErrEmptyPalette
	}
	if p.Len() > maxPALEntries {
		return fmt.Errorf("palette too large for PAL: %d colours (maximum: %d)", p.Len(), maxPALEntries)
	}

	chunkSize := 4 + 4*p.Len()
	var buf bytes.Buffer
	buf.Grow(20 + chunkSize)

	buf.Write(riffType[:])
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(4+8+chunkSize)))
	buf.Write(palType[:])

	buf.Write(dataType[:])
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(chunkSize)))
	buf.Write(binary.LittleEndian.AppendUint16(nil, palVersion))
	buf.Write(binary.LittleEndian.AppendUint16(nil, uint16(p.Len())))
	for _, c := range p.Colours {
		r, g, b := c.RGB8()
		buf.Write([]byte{r, g, b, 0x00})
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("could not write palette: %w", err)
	}
	return nil
}

// ReadPAL reads every data chunk of a RIFF PAL stream into one palette,
// dropping repeated colours.
func ReadPAL(r io.Reader) (*Palette, error) {
	formType, rd, err := riff.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not open RIFF stream: %w", err)
	}
	if formType != palType {
		return nil, fmt.Errorf("unsupported RIFF content type: %q", string(formType[:]))
	}

	var colours []Colour
	for i := 0; ; i++ {
		id, size, data, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not read chunk #%d: %w", i, err)
		}
		if id != dataType {
			continue
		}

		chunk, err := readPALChunk(data, size)
		if err != nil {
			return nil, fmt.Errorf("chunk #%d: %w", i, err)
		}
		colours = append(colours, chunk...)
	}

	if len(colours) == 0 {
		return nil, ErrEmptyPalette
	}
	return NewPalette(uniqueColours(colours)), nil
}

func readPALChunk(r io.Reader, size uint32) ([]Colour, error) {
	if size < 4 {
		return nil, fmt.Errorf("data chunk too short: %d bytes", size)
	}

	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("could not read palette header: %w", err)
	}
	if ver := binary.LittleEndian.Uint16(hdr[:2]); ver != palVersion {
		return nil, fmt.Errorf("unsupported palette version: %#04x", ver)
	}

	count := int(binary.LittleEndian.Uint16(hdr[2:]))
	if uint32(4+4*count) > size {
		return nil, fmt.Errorf("palette declares %d entries but chunk holds %d bytes", count, size)
	}

	entries := make([]byte, 4*count)
	if _, err := io.ReadFull(r, entries); err != nil {
		return nil, fmt.Errorf("could not read %d palette entries: %w", count, err)
	}

	colours := make([]Colour, count)
	for i := range count {
		colours[i] = NewColour(entries[4*i], entries[4*i+1], entries[4*i+2])
	}
	return colours, nil
}
