package document

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

type File struct {
	path string
	meta map[string]string
}

var _ Reader = (*File)(nil)

func NewFile(fname string) (*File, error) {
	fileInfo, err := os.Stat(fname)
	if err != nil {
		return nil, err
	}
	if fileInfo.IsDir() {
		return nil, errors.New("FileDocument could not be a directory")
	}
	return &File{
		path: fname,
		meta: map[string]string{
			"filename": fileInfo.Name(),
			"path":     fname,
			"modtime":  strconv.FormatInt(fileInfo.ModTime().Unix(), 10),
		},
	}, nil
}

func (d *File) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(d.path)
}

func (d *File) Meta() map[string]string {
	return d.meta
}

// WalkDir returns every regular file under root, filtered by extension when exts is not empty
func WalkDir(root string, exts ...string) ([]*File, error) {
	for idx, ext := range exts {
		exts[idx] = strings.ToLower(ext)
	}
	var ret []*File
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if len(exts) > 0 && !slices.Contains(exts, strings.ToLower(filepath.Ext(p))) {
			return nil
		}
		f, err := NewFile(p)
		if err != nil {
			return err
		}
		ret = append(ret, f)
		return nil
	})
	return ret, err
}
