package storage

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for paths that resolve outside the storage root.
var ErrOutsideRoot = errors.New("storage: path outside root")

// LocalStore keeps generated statements under a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore constructs a store rooted at root.
func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("local store: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &LocalStore{root: abs}, nil
}

// Root returns the absolute storage root.
func (s *LocalStore) Root() string {
	return s.root
}

// Save writes data at relPath and returns the stored path.
func (s *LocalStore) Save(ctx context.Context, relPath string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := s.resolve(relPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return target, nil
}

// Archive zips stored files into relPath. Entry names are relative to the root.
func (s *LocalStore) Archive(ctx context.Context, relPath string, files []string) (string, error) {
	archivePath, err := s.resolve(relPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return "", err
	}
	file, err := os.Create(archivePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	zipWriter := zip.NewWriter(file)
	for _, stored := range files {
		if err := ctx.Err(); err != nil {
			_ = zipWriter.Close()
			return "", err
		}
		if err := s.addToArchive(zipWriter, stored); err != nil {
			_ = zipWriter.Close()
			return "", err
		}
	}
	if err := zipWriter.Close(); err != nil {
		return "", err
	}
	return archivePath, nil
}

func (s *LocalStore) addToArchive(zipWriter *zip.Writer, stored string) error {
	path := stored
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	name, err := filepath.Rel(s.root, filepath.Clean(path))
	if err != nil || !isLocal(name) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, stored)
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	fw, err := zipWriter.Create(filepath.ToSlash(name))
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, src)
	return err
}

func (s *LocalStore) resolve(relPath string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(relPath))
	if relPath == "" || filepath.IsAbs(cleaned) || !isLocal(cleaned) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, relPath)
	}
	return filepath.Join(s.root, cleaned), nil
}

func isLocal(rel string) bool {
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
