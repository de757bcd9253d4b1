package output

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Sink stores named output files
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
}

// FileSink writes into a local directory. An empty Dir resolves names
// against the working directory.
type FileSink struct {
	Dir string
}

// NewFileSink creates dir if needed
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("while creating output directory: %w", err)
	}
	return &FileSink{Dir: dir}, nil
}

// Put writes to a temporary file and renames it over name, so readers never
// see a partial image
func (f *FileSink) Put(ctx context.Context, name string, data []byte) error {
	dst := filepath.Join(f.Dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("while creating directory for %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("while creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("while writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("while closing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("while renaming %s: %w", name, err)
	}
	return nil
}

// GCSSink uploads objects to a Google Cloud Storage bucket
type GCSSink struct {
	gcs    *storage.Client
	bucket string
	prefix string
}

// NewGCSSink stores objects as prefix/name in bucket
func NewGCSSink(gcs *storage.Client, bucket, prefix string) *GCSSink {
	return &GCSSink{gcs: gcs, bucket: bucket, prefix: prefix}
}

func (g *GCSSink) objectName(name string) string {
	if g.prefix == "" {
		return name
	}
	return path.Join(g.prefix, name)
}

func (g *GCSSink) Put(ctx context.Context, name string, data []byte) (err error) {
	tracer := otel.Tracer("go-wavefront-pathtracer/output")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "GCSSink.Put", trace.WithAttributes(
		attribute.String("bucket", g.bucket),
		attribute.String("object", g.objectName(name)),
		attribute.Int("bytes", len(data)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	w := g.gcs.Bucket(g.bucket).Object(g.objectName(name)).NewWriter(ctx)
	w.ContentType = contentType(name)

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("while writing %s to object writer: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("while closing object writer: %w", err)
	}
	return nil
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".png":
		return "image/png"
	case ".exr":
		return "image/x-exr"
	default:
		return "application/octet-stream"
	}
}

// MemorySink keeps outputs in memory
type MemorySink struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

func (m *MemorySink) Put(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), data...)
	return nil
}

// Get returns a stored file
func (m *MemorySink) Get(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	return data, ok
}

// Names lists stored files in sorted order
func (m *MemorySink) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
