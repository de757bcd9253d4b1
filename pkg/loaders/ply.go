package loaders

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/geometry"
)

// plyProperty is one property line of a PLY element
type plyProperty struct {
	Name      string
	Type      string // Scalar type, or the item type of a list
	CountType string // Count type; empty for scalars
}

func (p plyProperty) isList() bool { return p.CountType != "" }

type plyElement struct {
	Name  string
	Count int
	Props []plyProperty
}

type plyHeader struct {
	Format   string // "binary_little_endian", "binary_big_endian", or "ascii"
	Elements []plyElement
}

// LoadPLY reads a PLY mesh. Positions and optional normals are used; faces
// are fan triangulated and take the fallback material.
func LoadPLY(filename string) (*Model, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open PLY file: %w", err)
	}
	defer file.Close()

	model, err := ReadPLY(file)
	if err != nil {
		return nil, fmt.Errorf("while loading %s: %w", filename, err)
	}
	model.Mesh.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return model, nil
}

// ReadPLY parses an ASCII or binary PLY stream
func ReadPLY(r io.Reader) (*Model, error) {
	br := bufio.NewReaderSize(r, 1024*1024)
	header, err := readPLYHeader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var values plyValueReader
	switch header.Format {
	case "ascii":
		sc := bufio.NewScanner(br)
		sc.Split(bufio.ScanWords)
		values = &plyASCII{scanner: sc}
	case "binary_little_endian":
		values = &plyBinary{r: br, order: binary.LittleEndian}
	case "binary_big_endian":
		values = &plyBinary{r: br, order: binary.BigEndian}
	default:
		return nil, fmt.Errorf("%w: unsupported PLY format %q", ErrMalformed, header.Format)
	}

	mesh := &geometry.Mesh{}
	hasNormals := false
	for _, el := range header.Elements {
		switch el.Name {
		case "vertex":
			hasNormals, err = readPLYVertices(values, el, mesh)
		case "face":
			err = readPLYFaces(values, el, mesh)
		default:
			err = skipPLYElement(values, el)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s element: %v", ErrMalformed, el.Name, err)
		}
	}
	if !hasNormals {
		mesh.Normals = nil
	}
	if mesh.NumTriangles() == 0 {
		return nil, fmt.Errorf("%w: no faces", ErrMalformed)
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	return &Model{Mesh: mesh}, nil
}

func readPLYHeader(br *bufio.Reader) (*plyHeader, error) {
	magic, err := br.ReadString('\n')
	if err != nil || strings.TrimSpace(magic) != "ply" {
		return nil, fmt.Errorf("missing ply magic")
	}

	header := &plyHeader{}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("error reading header: %v", err)
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "end_header":
			return header, nil
		case "format":
			if len(parts) < 2 {
				return nil, fmt.Errorf("invalid format line")
			}
			header.Format = parts[1]
		case "element":
			if len(parts) < 3 {
				return nil, fmt.Errorf("invalid element line")
			}
			count, err := strconv.Atoi(parts[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("invalid element count: %s", parts[2])
			}
			header.Elements = append(header.Elements, plyElement{Name: parts[1], Count: count})
		case "property":
			if len(header.Elements) == 0 {
				return nil, fmt.Errorf("property before any element")
			}
			el := &header.Elements[len(header.Elements)-1]
			switch {
			case len(parts) >= 5 && parts[1] == "list":
				el.Props = append(el.Props, plyProperty{Name: parts[4], Type: parts[3], CountType: parts[2]})
			case len(parts) >= 3 && parts[1] != "list":
				el.Props = append(el.Props, plyProperty{Name: parts[2], Type: parts[1]})
			default:
				return nil, fmt.Errorf("invalid property definition %q", strings.TrimSpace(line))
			}
		}
		// comment and obj_info lines are ignored
	}
}

// plyValueReader yields the next scalar of the given PLY type
type plyValueReader interface {
	next(typ string) (float64, error)
}

type plyASCII struct {
	scanner *bufio.Scanner
}

func (a *plyASCII) next(string) (float64, error) {
	if !a.scanner.Scan() {
		if err := a.scanner.Err(); err != nil {
			return 0, err
		}
		return 0, io.ErrUnexpectedEOF
	}
	return strconv.ParseFloat(a.scanner.Text(), 64)
}

type plyBinary struct {
	r     io.Reader
	order binary.ByteOrder
	buf   [8]byte
}

func (b *plyBinary) next(typ string) (float64, error) {
	size := plyTypeSize(typ)
	if size == 0 {
		return 0, fmt.Errorf("unsupported data type: %s", typ)
	}
	if _, err := io.ReadFull(b.r, b.buf[:size]); err != nil {
		return 0, err
	}
	data := b.buf[:size]

	switch typ {
	case "char", "int8":
		return float64(int8(data[0])), nil
	case "uchar", "uint8":
		return float64(data[0]), nil
	case "short", "int16":
		return float64(int16(b.order.Uint16(data))), nil
	case "ushort", "uint16":
		return float64(b.order.Uint16(data)), nil
	case "int", "int32":
		return float64(int32(b.order.Uint32(data))), nil
	case "uint", "uint32":
		return float64(b.order.Uint32(data)), nil
	case "float", "float32":
		return float64(math.Float32frombits(b.order.Uint32(data))), nil
	default:
		return math.Float64frombits(b.order.Uint64(data)), nil
	}
}

// plyTypeSize returns the size in bytes of a PLY data type, or 0 if unknown
func plyTypeSize(typ string) int {
	switch typ {
	case "char", "int8", "uchar", "uint8":
		return 1
	case "short", "int16", "ushort", "uint16":
		return 2
	case "int", "int32", "uint", "uint32", "float", "float32":
		return 4
	case "double", "float64":
		return 8
	default:
		return 0
	}
}

func readPLYVertices(values plyValueReader, el plyElement, mesh *geometry.Mesh) (bool, error) {
	slot := map[string]int{"x": -1, "y": -1, "z": -1, "nx": -1, "ny": -1, "nz": -1}
	for i, p := range el.Props {
		if _, ok := slot[p.Name]; ok && !p.isList() {
			slot[p.Name] = i
		}
	}
	if slot["x"] < 0 || slot["y"] < 0 || slot["z"] < 0 {
		return false, fmt.Errorf("vertex element lacks x, y and z")
	}
	hasNormals := slot["nx"] >= 0 && slot["ny"] >= 0 && slot["nz"] >= 0

	row := make([]float64, len(el.Props))
	mesh.Positions = make([]core.Vec3, 0, el.Count)
	mesh.Normals = make([]core.Vec3, 0, el.Count)
	for i := 0; i < el.Count; i++ {
		for j, p := range el.Props {
			if p.isList() {
				if err := skipPLYList(values, p); err != nil {
					return false, err
				}
				continue
			}
			v, err := values.next(p.Type)
			if err != nil {
				return false, fmt.Errorf("vertex %d: %v", i, err)
			}
			row[j] = v
		}
		mesh.Positions = append(mesh.Positions, core.NewVec3(row[slot["x"]], row[slot["y"]], row[slot["z"]]))
		if hasNormals {
			mesh.Normals = append(mesh.Normals, core.NewVec3(row[slot["nx"]], row[slot["ny"]], row[slot["nz"]]).Normalize())
		}
	}
	return hasNormals, nil
}

func readPLYFaces(values plyValueReader, el plyElement, mesh *geometry.Mesh) error {
	for i := 0; i < el.Count; i++ {
		for _, p := range el.Props {
			if !p.isList() {
				if _, err := values.next(p.Type); err != nil {
					return fmt.Errorf("face %d: %v", i, err)
				}
				continue
			}
			if p.Name != "vertex_indices" && p.Name != "vertex_index" {
				if err := skipPLYList(values, p); err != nil {
					return fmt.Errorf("face %d: %v", i, err)
				}
				continue
			}

			n, err := values.next(p.CountType)
			if err != nil {
				return fmt.Errorf("face %d: %v", i, err)
			}
			if n < 0 {
				return fmt.Errorf("face %d: negative vertex count", i)
			}
			corners := make([]int, int(n))
			for c := range corners {
				v, err := values.next(p.Type)
				if err != nil {
					return fmt.Errorf("face %d: %v", i, err)
				}
				corners[c] = int(v)
			}
			for c := 1; c+1 < len(corners); c++ {
				mesh.Indices = append(mesh.Indices, corners[0], corners[c], corners[c+1])
			}
		}
	}
	return nil
}

func skipPLYList(values plyValueReader, p plyProperty) error {
	n, err := values.next(p.CountType)
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		if _, err := values.next(p.Type); err != nil {
			return err
		}
	}
	return nil
}

func skipPLYElement(values plyValueReader, el plyElement) error {
	for i := 0; i < el.Count; i++ {
		for _, p := range el.Props {
			var err error
			if p.isList() {
				err = skipPLYList(values, p)
			} else {
				_, err = values.next(p.Type)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadModel picks the reader by file extension
func LoadModel(filename string) (*Model, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".obj":
		return LoadOBJ(filename)
	case ".ply":
		return LoadPLY(filename)
	default:
		return nil, fmt.Errorf("unsupported model format %q", filepath.Ext(filename))
	}
}
