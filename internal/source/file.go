package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

type FileFetcher struct {
	path string
}

func NewFileFetcher(path string) *FileFetcher {
	return &FileFetcher{path: path}
}

func (f *FileFetcher) Location() string {
	return f.path
}

func (f *FileFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, f.path)
		}
		return nil, err
	}
	defer file.Close()

	data, err := readLimited(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return data, nil
}
