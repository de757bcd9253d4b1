package main

import (
	"bytes"
	"context"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mrjoshuak/go-openexr/exr"

	"github.com/df07/go-wavefront-pathtracer/pkg/checkpoint"
)

const trianglePBRT = `LookAt 0 0 5  0 0 0  0 1 0
Camera "perspective" "float fov" 45
WorldBegin
LightSource "point" "point3 from" [0 2 2] "rgb I" [5 5 5]
Material "diffuse"
Shape "trianglemesh" "point3 P" [-1 -1 0 1 -1 0 0 1 0] "integer indices" [0 1 2]
`

func TestCreateScene(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "tri.obj")
	if err := os.WriteFile(objPath, []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	pbrtPath := filepath.Join(dir, "tri.pbrt")
	if err := os.WriteFile(pbrtPath, []byte(trianglePBRT), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		sceneType   string
		expectError bool
	}{
		// Built-in scenes
		{"cornell scene", "cornell", false},
		{"floor scene", "floor", false},

		// Model files
		{"obj model", objPath, false},
		{"missing obj", filepath.Join(dir, "nonexistent.obj"), true},
		{"pbrt scene", pbrtPath, false},
		{"missing pbrt", filepath.Join(dir, "nonexistent.pbrt"), true},

		// Invalid scenes
		{"unknown scene", "nonexistent", true},
		{"unsupported extension", "scenes/teapot.stl", true},
		{"empty scene name", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := createScene(tt.sceneType)
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error for scene type '%s', but got none", tt.sceneType)
				}
				if s != nil {
					t.Errorf("Expected nil scene for invalid scene type '%s'", tt.sceneType)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error for scene type '%s': %v", tt.sceneType, err)
			}
			if s.MainCamera() == nil {
				t.Errorf("Scene %q has no camera", s.Name)
			}
			if len(s.Geometries()) == 0 {
				t.Errorf("Scene %q has no geometry", s.Name)
			}
		})
	}
}

func testOptions(dir string) options {
	return options{
		Scene:             "floor",
		Width:             8,
		Height:            6,
		TileSize:          4,
		Frames:            3,
		Bounces:           2,
		Workers:           2,
		Device:            "cpu",
		Out:               filepath.Join(dir, "out", "floor.png"),
		EXR:               filepath.Join(dir, "out", "floor.exr"),
		CheckpointDir:     filepath.Join(dir, "ckpt"),
		CheckpointBackend: "file",
		CheckpointEvery:   2,
	}
}

func TestRunWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	if err := run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(opts.Out)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 6 {
		t.Errorf("png size = %v", b)
	}

	hdr, err := exr.DecodeFile(opts.EXR)
	if err != nil {
		t.Fatal(err)
	}
	if b := hdr.Bounds(); b.Dx() != 8 || b.Dy() != 6 {
		t.Errorf("exr size = %v", b)
	}

	store, err := checkpoint.NewFileStore(opts.CheckpointDir)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := store.Load(context.Background(), "floor")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Frame != 3 {
		t.Errorf("checkpoint frame = %d, want 3", snap.Frame)
	}

	// The checkpoint keeps sums and the EXR their mean
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			r, _, _, _ := hdr.RGBA(x, y)
			want := snap.HDR[y*8+x].X / 3
			if math.Abs(float64(r)-want) > 1e-3*(1+want) {
				t.Errorf("pixel (%d,%d) exr = %v, checkpoint sum/3 = %v", x, y, r, want)
			}
		}
	}
}

func TestRunResumes(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.EXR = ""
	opts.CheckpointBackend = "badger"
	if err := run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	opts.Resume = true
	opts.Frames = 2
	if err := run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	store, err := checkpoint.Open("badger", opts.CheckpointDir)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := store.Load(context.Background(), "floor")
	store.Close()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Frame != 5 {
		t.Errorf("checkpoint frame = %d, want 5 after resuming", snap.Frame)
	}

	opts.Width = 16
	if err := run(context.Background(), opts); err == nil {
		t.Error("expected an error resuming with a different image size")
	}
}

func TestRunRejectsBadOptions(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.Device = "gpu"
	if err := run(context.Background(), opts); err == nil {
		t.Error("expected an error for an unavailable device")
	}

	opts = testOptions(t.TempDir())
	opts.Frames = 0
	if err := run(context.Background(), opts); err == nil {
		t.Error("expected an error for zero frames")
	}
}

func TestRunAutoDeviceFallsBackToCPU(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.Device = "auto"
	opts.CheckpointDir = ""
	if err := run(context.Background(), opts); err != nil {
		t.Fatalf("auto device: %v", err)
	}
}

func TestRunRendersPBRTScene(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tri.pbrt")
	if err := os.WriteFile(path, []byte(trianglePBRT), 0o644); err != nil {
		t.Fatal(err)
	}
	opts := testOptions(dir)
	opts.Scene = path
	opts.CheckpointDir = ""
	if err := run(context.Background(), opts); err != nil {
		t.Fatalf("render %s: %v", path, err)
	}
	if _, err := os.Stat(opts.Out); err != nil {
		t.Errorf("no PNG written: %v", err)
	}
}
