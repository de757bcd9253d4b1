package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger"
	"github.com/golang/glog"
)

// Store saves and restores snapshots by name
type Store interface {
	Save(ctx context.Context, name string, s *Snapshot) error
	Load(ctx context.Context, name string) (*Snapshot, error)
	Close() error
}

// Open returns the store for a backend name: "file" or "badger"
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "file", "":
		return NewFileStore(dir)
	case "badger":
		return NewBadgerStore(dir)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", backend)
	}
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid checkpoint name %q", name)
	}
	return nil
}

// FileStore keeps one file per snapshot in a directory
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("while creating checkpoint dir %q: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, name+".ckpt")
}

func (f *FileStore) Save(ctx context.Context, name string, s *Snapshot) error {
	if err := validName(name); err != nil {
		return err
	}
	data, err := s.Marshal()
	if err != nil {
		return err
	}

	tmp := f.path(name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("while writing checkpoint: %w", err)
	}
	if err := os.Rename(tmp, f.path(name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("while renaming checkpoint: %w", err)
	}
	return nil
}

func (f *FileStore) Load(ctx context.Context, name string) (*Snapshot, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("while reading checkpoint: %w", err)
	}
	return Unmarshal(data)
}

func (f *FileStore) Close() error { return nil }

// BadgerStore keeps snapshots in a badger key-value database
type BadgerStore struct {
	db *badger.DB
}

// Snapshots live under their own prefix in the key-value store
const snapshotKeyPrefix = "snapshot/"

func snapshotKey(name string) []byte {
	return []byte(snapshotKeyPrefix + name)
}

// NewBadgerStore opens (creating if needed) the database in dir
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(glogAdapter{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("while opening badger kv dir: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Save(ctx context.Context, name string, s *Snapshot) error {
	if err := validName(name); err != nil {
		return err
	}
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(name), data)
	})
	if err != nil {
		return fmt.Errorf("while storing checkpoint %s: %w", name, err)
	}
	return nil
}

func (b *BadgerStore) Load(ctx context.Context, name string) (*Snapshot, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("while loading checkpoint %s: %w", name, err)
	}
	return Unmarshal(data)
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

// glogAdapter routes badger's logging to glog
type glogAdapter struct{}

func (glogAdapter) Errorf(format string, args ...interface{})   { glog.Errorf(format, args...) }
func (glogAdapter) Warningf(format string, args ...interface{}) { glog.Warningf(format, args...) }
func (glogAdapter) Infof(format string, args ...interface{})    { glog.V(1).Infof(format, args...) }
func (glogAdapter) Debugf(format string, args ...interface{})   { glog.V(2).Infof(format, args...) }
