package spider

import (
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/hirochachacha/go-smb2"
)

// SMBFS walks a mounted share. Paths are slash separated and relative to
// the share root.
type SMBFS struct {
	Share *smb2.Share
}

func (s *SMBFS) Open(name string) (fs.File, error) {
	return s.Share.Open(name)
}

// WalkDir visits root first, then its entries depth first, following the
// fs.WalkDir contract for fs.SkipDir and errors.
func (s *SMBFS) WalkDir(root string, fn fs.WalkDirFunc) error {
	if root == "" {
		root = "."
	}
	info, err := s.Share.Stat(root)
	if err != nil {
		err = fn(root, nil, err)
	} else {
		err = s.walk(root, fs.FileInfoToDirEntry(info), fn)
	}
	if err == fs.SkipDir || err == fs.SkipAll {
		return nil
	}
	return err
}

func (s *SMBFS) walk(p string, d fs.DirEntry, fn fs.WalkDirFunc) error {
	if err := fn(p, d, nil); err != nil || !d.IsDir() {
		if err == fs.SkipDir && d.IsDir() {
			err = nil
		}
		return err
	}

	infos, err := s.Share.ReadDir(p)
	if err != nil {
		if err = fn(p, d, err); err != nil {
			if err == fs.SkipDir {
				err = nil
			}
			return err
		}
		return nil
	}

	for _, info := range infos {
		name := info.Name()
		if name == "." || name == ".." {
			continue
		}
		// Do not follow symlinks/reparse points (Junctions)
		if info.IsDir() && info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		child := strings.ReplaceAll(path.Join(p, name), "\\", "/")
		if err := s.walk(child, fs.FileInfoToDirEntry(info), fn); err != nil {
			if err == fs.SkipDir {
				return nil
			}
			return err
		}
	}
	return nil
}
