package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path"

	"github.com/go-git/go-billy/v5"
)

// FileSystemStorage implements the Storage interface on a billy filesystem.
// Blobs are laid out as aa/bb/<address>.
type FileSystemStorage struct {
	fs billy.Filesystem
}

// Assert that FileSystemStorage implements the Storage interface
var _ Storage = (*FileSystemStorage)(nil)

func NewFileSystemStorage(fs billy.Filesystem) *FileSystemStorage {
	return &FileSystemStorage{
		fs: fs,
	}
}

func (s *FileSystemStorage) addressToPath(address string) string {
	if len(address) < 4 {
		return address
	}
	return path.Join(address[0:2], address[2:4], address)
}

func (s *FileSystemStorage) Has(address string) bool {
	_, err := s.fs.Stat(s.addressToPath(address))
	return err == nil
}

func (s *FileSystemStorage) Open(address string) (io.ReadSeekCloser, bool) {
	file, err := s.fs.Open(s.addressToPath(address))
	if err != nil {
		return nil, false
	}
	return file, true
}

func (s *FileSystemStorage) Store(r io.Reader) (string, error) {
	tmpName, address, err := s.spool(r)
	if err != nil {
		return "", err
	}
	if err := s.commit(tmpName, address); err != nil {
		return "", err
	}
	return address, nil
}

func (s *FileSystemStorage) StoreAt(address string, r io.Reader) (bool, error) {
	tmpName, calculated, err := s.spool(r)
	if err != nil {
		return false, err
	}
	if address != calculated {
		s.fs.Remove(tmpName)
		return false, nil
	}
	if err := s.commit(tmpName, address); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileSystemStorage) Size(address string) (int64, bool) {
	stat, err := s.fs.Stat(s.addressToPath(address))
	if err != nil {
		return 0, false
	}
	return stat.Size(), true
}

// spool copies r into a temporary file while hashing it.
func (s *FileSystemStorage) spool(r io.Reader) (string, string, error) {
	tmpFile, err := s.fs.TempFile("", "upload-")
	if err != nil {
		return "", "", err
	}

	hasher := sha256.New()
	if _, err := io.Copy(tmpFile, io.TeeReader(r, hasher)); err != nil {
		tmpFile.Close()
		s.fs.Remove(tmpFile.Name())
		return "", "", err
	}
	if err := tmpFile.Close(); err != nil {
		s.fs.Remove(tmpFile.Name())
		return "", "", err
	}

	return tmpFile.Name(), hex.EncodeToString(hasher.Sum(nil)), nil
}

// commit moves a spooled file to its address.
func (s *FileSystemStorage) commit(tmpName, address string) error {
	if s.Has(address) {
		return s.fs.Remove(tmpName)
	}

	finalPath := s.addressToPath(address)
	if err := s.fs.MkdirAll(path.Dir(finalPath), 0755); err != nil {
		s.fs.Remove(tmpName)
		return err
	}
	if err := s.fs.Rename(tmpName, finalPath); err != nil {
		s.fs.Remove(tmpName)
		return err
	}
	return nil
}
