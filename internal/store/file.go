package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dgallion1/bookfix/internal/config"
)

// FileStore keeps segments as UTF-8 text files: <root>/<book>/part_001.txt.
// The default book lives directly in root.
type FileStore struct {
	root   string
	naming Naming
}

// NewFileStore creates root if needed and checks that it is writable. Failures
// wrap config.ErrInvalidConfig.
func NewFileStore(root string, naming Naming) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: output dir %s: %v", config.ErrInvalidConfig, root, err)
	}
	probe, err := os.CreateTemp(root, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("%w: output dir %s is not writable: %v", config.ErrInvalidConfig, root, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	return &FileStore{root: root, naming: naming}, nil
}

// Root returns the directory holding the default book.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) dir(book string) (string, error) {
	if err := ValidBook(book); err != nil {
		return "", err
	}
	return filepath.Join(s.root, book), nil
}

func (s *FileStore) write(book, name, text string) error {
	dir, err := s.dir(book)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create book dir: %w", err)
	}
	path := filepath.Join(dir, name+".txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) read(book, name string) (string, error) {
	dir, err := s.dir(book)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+".txt")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func (s *FileStore) PutSegment(_ context.Context, book string, index int, text string) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	return s.write(book, s.naming.SegmentName(index), text)
}

func (s *FileStore) GetSegment(_ context.Context, book string, index int) (string, error) {
	if err := checkIndex(index); err != nil {
		return "", err
	}
	return s.read(book, s.naming.SegmentName(index))
}

func (s *FileStore) PutCorrected(_ context.Context, book string, index int, text string) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	return s.write(book, s.naming.CorrectedName(index), text)
}

func (s *FileStore) GetCorrected(_ context.Context, book string, index int) (string, error) {
	if err := checkIndex(index); err != nil {
		return "", err
	}
	return s.read(book, s.naming.CorrectedName(index))
}

// ClearBook deletes the book's part files, creating its directory if needed
// and checking that it is writable. Other files, and other books nested under
// the default book's root, are left alone.
func (s *FileStore) ClearBook(_ context.Context, book string) error {
	dir, err := s.dir(book)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create book dir: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("book dir %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(e.Name(), ".txt")
		if !ok {
			continue
		}
		if _, ok := s.naming.ParseName(name); !ok {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (s *FileStore) ListSegments(_ context.Context, book string) ([]int, error) {
	dir, err := s.dir(book)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("book %q: %w", book, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var indices []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(e.Name(), ".txt")
		if !ok {
			continue
		}
		if i, ok := s.naming.ParseSegmentName(name); ok {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("book %q: %w", book, ErrNotFound)
	}
	slices.Sort(indices)
	return indices, nil
}
