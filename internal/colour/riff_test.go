package colour

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestPALRoundTrip(t *testing.T) {
	p := NewPalette([]Colour{
		NewColour(255, 0, 0),
		NewColour(0, 128, 64),
		NewColour(1, 2, 3),
	})

	var buf bytes.Buffer
	if err := WritePAL(&buf, p); err != nil {
		t.Fatalf("WritePAL failed: %v", err)
	}

	data := buf.Bytes()
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "PAL " || string(data[12:16]) != "data" {
		t.Fatalf("unexpected PAL header: %q", data[:16])
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); int(got) != len(data)-8 {
		t.Errorf("RIFF size = %d, want %d", got, len(data)-8)
	}

	got, err := ReadPAL(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadPAL failed: %v", err)
	}
	if !got.Equal(p) {
		t.Errorf("ReadPAL() = %v, want %v", got.Colours, p.Colours)
	}
}

func TestWritePALEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePAL(&buf, NewPalette(nil)); !errors.Is(err, ErrEmptyPalette) {
		t.Errorf("WritePAL(empty) error = %v, want ErrEmptyPalette", err)
	}
}

// palFile builds a PAL stream by hand so malformed variants can be tested.
func palFile(version uint16, declared uint16, entries ...[3]byte) []byte {
	var chunk bytes.Buffer
	chunk.Write(binary.LittleEndian.AppendUint16(nil, version))
	chunk.Write(binary.LittleEndian.AppendUint16(nil, declared))
	for _, e := range entries {
		chunk.Write([]byte{e[0], e[1], e[2], 0})
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	out.Write(binary.LittleEndian.AppendUint32(nil, uint32(4+8+chunk.Len())))
	out.WriteString("PAL ")
	out.WriteString("data")
	out.Write(binary.LittleEndian.AppendUint32(nil, uint32(chunk.Len())))
	out.Write(chunk.Bytes())
	return out.Bytes()
}

func TestReadPAL(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    []string
		wantErr bool
	}{
		{
			name: "duplicates dropped",
			data: palFile(palVersion, 3, [3]byte{1, 1, 1}, [3]byte{2, 2, 2}, [3]byte{1, 1, 1}),
			want: []string{"#010101", "#020202"},
		},
		{
			name:    "wrong version",
			data:    palFile(0x0100, 1, [3]byte{1, 1, 1}),
			wantErr: true,
		},
		{
			name:    "too many declared entries",
			data:    palFile(palVersion, 5, [3]byte{1, 1, 1}),
			wantErr: true,
		},
		{
			name:    "no entries",
			data:    palFile(palVersion, 0),
			wantErr: true,
		},
		{
			name:    "not RIFF",
			data:    []byte("GIF89a not a palette"),
			wantErr: true,
		},
		{
			name:    "wrong form type",
			data:    append([]byte("RIFF\x04\x00\x00\x00"), []byte("WEBP")...),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadPAL(bytes.NewReader(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadPAL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			hexes := got.ToHex()
			if len(hexes) != len(tt.want) {
				t.Fatalf("ReadPAL() = %v, want %v", hexes, tt.want)
			}
			for i := range hexes {
				if hexes[i] != tt.want[i] {
					t.Errorf("colour %d = %s, want %s", i, hexes[i], tt.want[i])
				}
			}
		})
	}
}
