package artifact

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// FileInfo is the metadata subset the manager needs.
type FileInfo struct {
	Size     int64
	Modified time.Time
}

// Directory is the flat file-store collaborator the manager writes artifacts
// and backups into.
type Directory interface {
	List() ([]string, error)
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
	Rename(oldName, newName string) error
	Delete(name string) error
	Stat(name string) (FileInfo, error)
}

// LocalDirectory implements Directory on a single local filesystem folder.
type LocalDirectory struct {
	path string
}

// NewLocalDirectory creates the folder if needed.
func NewLocalDirectory(path string) (*LocalDirectory, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create artifact directory %s", path)
	}
	return &LocalDirectory{path: path}, nil
}

func (d *LocalDirectory) List() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list artifact directory")
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (d *LocalDirectory) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.path, name))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read artifact %s", name)
	}
	return data, nil
}

func (d *LocalDirectory) Write(name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(d.path, name), data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write artifact %s", name)
	}
	return nil
}

func (d *LocalDirectory) Rename(oldName, newName string) error {
	if err := os.Rename(filepath.Join(d.path, oldName), filepath.Join(d.path, newName)); err != nil {
		return errors.Wrapf(err, "failed to rename artifact %s", oldName)
	}
	return nil
}

func (d *LocalDirectory) Delete(name string) error {
	if err := os.Remove(filepath.Join(d.path, name)); err != nil {
		return errors.Wrapf(err, "failed to delete artifact %s", name)
	}
	return nil
}

func (d *LocalDirectory) Stat(name string) (FileInfo, error) {
	info, err := os.Stat(filepath.Join(d.path, name))
	if err != nil {
		return FileInfo{}, errors.Wrapf(err, "failed to stat artifact %s", name)
	}
	return FileInfo{Size: info.Size(), Modified: info.ModTime()}, nil
}
