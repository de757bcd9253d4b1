// Package loaders reads mesh and material files into render geometry.
package loaders

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/geometry"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// ErrMalformed is returned for files that cannot be interpreted
var ErrMalformed = errors.New("malformed model file")

// Model is a loaded mesh and the material table its faces index into.
// Faces without a known material have index -1.
type Model struct {
	Mesh          *geometry.Mesh
	Materials     []material.Material
	MaterialNames []string
}

// LoadOBJ reads an OBJ file and any material libraries it references,
// resolved relative to the OBJ file's directory
func LoadOBJ(filename string) (*Model, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open OBJ file: %w", err)
	}
	defer file.Close()

	model, err := ReadOBJ(file, os.DirFS(filepath.Dir(filename)))
	if err != nil {
		return nil, fmt.Errorf("while loading %s: %w", filename, err)
	}
	model.Mesh.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return model, nil
}

// vertexKey identifies a unique position/normal pair; -1 means no normal
type vertexKey struct {
	position, normal int
}

type objReader struct {
	positions []core.Vec3
	normals   []core.Vec3
	texcoords int

	mesh      *geometry.Mesh
	vertices  map[vertexKey]int
	anyNormal bool

	libraries map[string]*MTLMaterial
	slots     map[string]int
	names     []string
	materials []material.Material
	current   int
}

// ReadOBJ parses OBJ text. mtllib statements are opened from fsys, which
// may be nil when the model has no material libraries.
func ReadOBJ(r io.Reader, fsys fs.FS) (*Model, error) {
	rd := &objReader{
		mesh:      &geometry.Mesh{},
		vertices:  make(map[vertexKey]int),
		libraries: make(map[string]*MTLMaterial),
		slots:     make(map[string]int),
		current:   -1,
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(stripComment(scanner.Text()))
		if len(fields) == 0 {
			continue
		}
		if err := rd.statement(fields, fsys); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("while reading OBJ: %w", err)
	}

	return rd.finish()
}

func (rd *objReader) statement(fields []string, fsys fs.FS) error {
	switch fields[0] {
	case "v":
		p, err := parseVec3(fields[1:])
		if err != nil || len(fields) < 4 {
			return fmt.Errorf("bad vertex %q", strings.Join(fields, " "))
		}
		rd.positions = append(rd.positions, p)
	case "vn":
		n, err := parseVec3(fields[1:])
		if err != nil || len(fields) < 4 {
			return fmt.Errorf("bad normal %q", strings.Join(fields, " "))
		}
		rd.normals = append(rd.normals, n.Normalize())
	case "vt":
		rd.texcoords++ // Textures are not used, but indices must resolve
	case "f":
		return rd.face(fields[1:])
	case "usemtl":
		if len(fields) < 2 {
			return fmt.Errorf("usemtl without a name")
		}
		rd.use(strings.Join(fields[1:], " "))
	case "mtllib":
		for _, name := range fields[1:] {
			if err := rd.library(fsys, name); err != nil {
				return err
			}
		}
	}
	// o, g, s and other grouping statements do not change the geometry
	return nil
}

func (rd *objReader) face(refs []string) error {
	if len(refs) < 3 {
		return fmt.Errorf("face with %d vertices", len(refs))
	}

	corners := make([]int, len(refs))
	for i, ref := range refs {
		idx, err := rd.vertex(ref)
		if err != nil {
			return err
		}
		corners[i] = idx
	}

	// Fan triangulation around the first corner
	for i := 1; i+1 < len(corners); i++ {
		rd.mesh.Indices = append(rd.mesh.Indices, corners[0], corners[i], corners[i+1])
		rd.mesh.FaceMaterials = append(rd.mesh.FaceMaterials, rd.current)
	}
	return nil
}

// vertex resolves one v, v/t, v//n or v/t/n reference to a mesh vertex
func (rd *objReader) vertex(ref string) (int, error) {
	parts := strings.Split(ref, "/")
	if len(parts) > 3 {
		return 0, fmt.Errorf("bad face reference %q", ref)
	}

	pos, err := resolveIndex(parts[0], len(rd.positions))
	if err != nil {
		return 0, fmt.Errorf("position in %q: %v", ref, err)
	}
	if len(parts) > 1 && parts[1] != "" {
		if _, err := resolveIndex(parts[1], rd.texcoords); err != nil {
			return 0, fmt.Errorf("texcoord in %q: %v", ref, err)
		}
	}
	key := vertexKey{position: pos, normal: -1}
	if len(parts) > 2 && parts[2] != "" {
		if key.normal, err = resolveIndex(parts[2], len(rd.normals)); err != nil {
			return 0, fmt.Errorf("normal in %q: %v", ref, err)
		}
		rd.anyNormal = true
	}

	if idx, ok := rd.vertices[key]; ok {
		return idx, nil
	}
	idx := len(rd.mesh.Positions)
	rd.mesh.Positions = append(rd.mesh.Positions, rd.positions[pos])
	var n core.Vec3
	if key.normal >= 0 {
		n = rd.normals[key.normal]
	}
	rd.mesh.Normals = append(rd.mesh.Normals, n)
	rd.vertices[key] = idx
	return idx, nil
}

// resolveIndex converts a one-based or negative (relative) index
func resolveIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i += count
	} else {
		i--
	}
	if i < 0 || i >= count {
		return 0, fmt.Errorf("index %s out of range (%d defined)", s, count)
	}
	return i, nil
}

func (rd *objReader) library(fsys fs.FS, name string) error {
	if fsys == nil {
		return fmt.Errorf("mtllib %s: no filesystem to resolve it", name)
	}
	f, err := fsys.Open(path.Clean(filepath.ToSlash(name)))
	if err != nil {
		return fmt.Errorf("mtllib %s: %v", name, err)
	}
	defer f.Close()

	mats, err := ReadMTL(f)
	if err != nil {
		return fmt.Errorf("mtllib %s: %v", name, err)
	}
	for _, m := range mats {
		rd.libraries[m.Name] = m
	}
	return nil
}

// use selects the material for following faces. Names missing from every
// loaded library select the fallback slot.
func (rd *objReader) use(name string) {
	if slot, ok := rd.slots[name]; ok {
		rd.current = slot
		return
	}
	m, ok := rd.libraries[name]
	if !ok {
		rd.current = -1
		return
	}
	rd.current = len(rd.materials)
	rd.slots[name] = rd.current
	rd.names = append(rd.names, name)
	rd.materials = append(rd.materials, m.Material())
}

func (rd *objReader) finish() (*Model, error) {
	if rd.mesh.NumTriangles() == 0 {
		return nil, fmt.Errorf("%w: no faces", ErrMalformed)
	}

	if !rd.anyNormal {
		rd.mesh.Normals = nil
	} else {
		// Corners referenced without a normal take the normal of their own
		// triangle. A position shared by several triangles is split.
		owner := make([]int, len(rd.mesh.Positions))
		for i := range owner {
			owner[i] = -1
		}
		for i := 0; i < rd.mesh.NumTriangles(); i++ {
			fn := rd.mesh.Triangle(i).Normal()
			for c := 0; c < 3; c++ {
				idx := rd.mesh.Indices[i*3+c]
				switch {
				case owner[idx] == i:
				case owner[idx] < 0 && !rd.mesh.Normals[idx].IsZero():
				case owner[idx] < 0:
					owner[idx] = i
					rd.mesh.Normals[idx] = fn
				default:
					rd.mesh.Indices[i*3+c] = len(rd.mesh.Positions)
					rd.mesh.Positions = append(rd.mesh.Positions, rd.mesh.Positions[idx])
					rd.mesh.Normals = append(rd.mesh.Normals, fn)
				}
			}
		}
	}

	if err := rd.mesh.Validate(); err != nil {
		return nil, err
	}
	return &Model{Mesh: rd.mesh, Materials: rd.materials, MaterialNames: rd.names}, nil
}
