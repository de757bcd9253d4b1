// Package checkpoint persists the accumulated radiance of a render so a
// later run can continue refining it.
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
)

var (
	// ErrNotFound is returned when a store has no snapshot under a name
	ErrNotFound = errors.New("checkpoint not found")
	// ErrCorrupt is returned for snapshots that fail to decode
	ErrCorrupt = errors.New("corrupt checkpoint")
)

var magic = [4]byte{'W', 'F', 'P', 'T'}

const formatVersion uint16 = 1

// Snapshot holds the accumulated radiance sums of a render after Frame
// frames. Divide by Frame for the running mean.
type Snapshot struct {
	Scene  string
	Width  int
	Height int
	Frame  uint32
	HDR    []core.Vec3
}

// Validate checks that the buffer matches the dimensions
func (s *Snapshot) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrCorrupt, s.Width, s.Height)
	}
	if len(s.HDR) != s.Width*s.Height {
		return fmt.Errorf("%w: %d pixels for %dx%d", ErrCorrupt, len(s.HDR), s.Width, s.Height)
	}
	if len(s.Scene) > math.MaxUint16 {
		return fmt.Errorf("%w: scene name too long", ErrCorrupt)
	}
	if s.Frame == 0 {
		return fmt.Errorf("%w: frame 0", ErrCorrupt)
	}
	return nil
}

// Shared codecs; EncodeAll and DecodeAll may be called concurrently
var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// Marshal encodes the snapshot little-endian and compresses it
func (s *Snapshot) Marshal() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var raw bytes.Buffer
	raw.Grow(32 + len(s.Scene) + 24*len(s.HDR))
	raw.Write(magic[:])
	le := binary.LittleEndian
	binary.Write(&raw, le, formatVersion)
	binary.Write(&raw, le, uint32(s.Width))
	binary.Write(&raw, le, uint32(s.Height))
	binary.Write(&raw, le, s.Frame)
	binary.Write(&raw, le, uint16(len(s.Scene)))
	raw.WriteString(s.Scene)

	var px [24]byte
	for _, c := range s.HDR {
		le.PutUint64(px[0:], math.Float64bits(c.X))
		le.PutUint64(px[8:], math.Float64bits(c.Y))
		le.PutUint64(px[16:], math.Float64bits(c.Z))
		raw.Write(px[:])
	}

	return encoder.EncodeAll(raw.Bytes(), nil), nil
}

// Unmarshal decodes data produced by Marshal
func Unmarshal(data []byte) (*Snapshot, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	r := bytes.NewReader(raw)
	le := binary.LittleEndian

	var header struct {
		Magic   [4]byte
		Version uint16
		Width   uint32
		Height  uint32
		Frame   uint32
		NameLen uint16
	}
	if err := binary.Read(r, le, &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if header.Magic != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, header.Magic[:])
	}
	if header.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, header.Version)
	}

	name := make([]byte, header.NameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("%w: scene name: %v", ErrCorrupt, err)
	}

	pixels := int(header.Width) * int(header.Height)
	if r.Len() != pixels*24 {
		return nil, fmt.Errorf("%w: %d bytes of pixel data for %dx%d", ErrCorrupt, r.Len(), header.Width, header.Height)
	}
	rest := raw[len(raw)-r.Len():]

	s := &Snapshot{
		Scene:  string(name),
		Width:  int(header.Width),
		Height: int(header.Height),
		Frame:  header.Frame,
		HDR:    make([]core.Vec3, pixels),
	}
	for i := range s.HDR {
		px := rest[i*24:]
		s.HDR[i] = core.NewVec3(
			math.Float64frombits(le.Uint64(px[0:])),
			math.Float64frombits(le.Uint64(px[8:])),
			math.Float64frombits(le.Uint64(px[16:])),
		)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
