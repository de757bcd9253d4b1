package loaders

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
)

// binaryPLY builds a square of two triangles, optionally with normals and a
// per-vertex color that the reader skips
func binaryPLY(t *testing.T, order binary.ByteOrder, includeNormals bool) []byte {
	t.Helper()
	var buf bytes.Buffer

	format := "binary_little_endian"
	if order == binary.BigEndian {
		format = "binary_big_endian"
	}
	buf.WriteString("ply\n")
	buf.WriteString("format " + format + " 1.0\n")
	buf.WriteString("comment square\n")
	buf.WriteString("element vertex 4\n")
	buf.WriteString("property float x\n")
	buf.WriteString("property float y\n")
	buf.WriteString("property float z\n")
	if includeNormals {
		buf.WriteString("property float nx\n")
		buf.WriteString("property float ny\n")
		buf.WriteString("property float nz\n")
	}
	buf.WriteString("property uchar red\n")
	buf.WriteString("element face 2\n")
	buf.WriteString("property list uchar int vertex_indices\n")
	buf.WriteString("end_header\n")

	vertices := [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}
	for _, v := range vertices {
		if err := binary.Write(&buf, order, v); err != nil {
			t.Fatal(err)
		}
		if includeNormals {
			binary.Write(&buf, order, [3]float32{0, 0, 2})
		}
		buf.WriteByte(255)
	}
	for _, f := range [][3]int32{{0, 1, 2}, {0, 2, 3}} {
		buf.WriteByte(3)
		binary.Write(&buf, order, f)
	}
	return buf.Bytes()
}

func TestReadPLYBinary(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		for _, normals := range []bool{false, true} {
			model, err := ReadPLY(bytes.NewReader(binaryPLY(t, order, normals)))
			if err != nil {
				t.Fatalf("%v normals=%v: %v", order, normals, err)
			}
			mesh := model.Mesh
			if diff := cmp.Diff(mesh.Indices, []int{0, 1, 2, 0, 2, 3}); diff != "" {
				t.Errorf("%v indices mismatch (-got +want)\n%s", order, diff)
			}
			if mesh.Positions[2] != core.NewVec3(1, 1, 0) {
				t.Errorf("%v vertex 2 = %v", order, mesh.Positions[2])
			}
			if normals {
				if len(mesh.Normals) != 4 || mesh.Normals[0] != core.NewVec3(0, 0, 1) {
					t.Errorf("normals = %v, want normalized +Z", mesh.Normals)
				}
			} else if mesh.Normals != nil {
				t.Errorf("unexpected normals %v", mesh.Normals)
			}
		}
	}
}

func TestReadPLYASCII(t *testing.T) {
	src := `ply
format ascii 1.0
element vertex 5
property float x
property float y
property float z
element face 1
property uchar intensity
property list uchar int vertex_indices
end_header
0 0 0
1 0 0
1 1 0
0.5 1.5 0
0 1 0
7 5 0 1 2 3 4
`
	model, err := ReadPLY(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if got := model.Mesh.NumTriangles(); got != 3 {
		t.Errorf("triangles = %d, want 3 from a fan of five corners", got)
	}
}

func TestReadPLYErrors(t *testing.T) {
	const triangleHeader = "ply\nformat ascii 1.0\nelement vertex 3\nproperty float x\nproperty float y\nproperty float z\n" +
		"element face 1\nproperty list uchar int vertex_indices\nend_header\n"

	tests := map[string]string{
		"not a ply":      "obj\n",
		"unknown format": "ply\nformat utf16 1.0\nend_header\n",
		"truncated":      triangleHeader + "0 0 0\n1 0 0\n",
		"bad index":      triangleHeader + "0 0 0\n1 0 0\n0 1 0\n3 0 1 9\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadPLY(strings.NewReader(src)); err == nil {
				t.Error("expected an error")
			}
		})
	}

	_, err := ReadPLY(strings.NewReader("ply\nformat ascii 1.0\nend_header\n"))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("empty mesh: err = %v, want ErrMalformed", err)
	}
}

func TestLoadModelByExtension(t *testing.T) {
	dir := t.TempDir()
	plyPath := filepath.Join(dir, "square.PLY")
	if err := os.WriteFile(plyPath, binaryPLY(t, binary.LittleEndian, false), 0o644); err != nil {
		t.Fatal(err)
	}

	model, err := LoadModel(plyPath)
	if err != nil {
		t.Fatal(err)
	}
	if model.Mesh.Name != "square" || model.Mesh.NumTriangles() != 2 {
		t.Errorf("loaded %q with %d triangles", model.Mesh.Name, model.Mesh.NumTriangles())
	}

	if _, err := LoadModel(filepath.Join(dir, "scene.fbx")); err == nil {
		t.Error("expected an error for an unsupported extension")
	}
}
