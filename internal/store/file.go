package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var _ Store = &File{}

// File is a Store backed by a YAML file. Every Set rewrites the file, so a value is on disk as soon as Set returns.
type File struct {
	path   string
	values map[string]string
	lock   sync.Mutex
}

// NewFile opens the YAML store at path. A missing file is treated as an empty store.
func NewFile(path string) (*File, error) {
	f := File{path: path, values: make(map[string]string)}
	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &f, nil
		}
		return nil, fmt.Errorf("read store: %w", err)
	}
	if err = yaml.Unmarshal(body, &f.values); err != nil {
		return nil, fmt.Errorf("parse store %s: %w", path, err)
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	return &f, nil
}

func (f *File) Get(_ context.Context, key string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	value, ok := f.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (f *File) Set(_ context.Context, key string, value string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if current, ok := f.values[key]; ok && current == value {
		return nil
	}
	f.values[key] = value
	return f.save()
}

func (f *File) save() error {
	body, err := yaml.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err = tmp.Write(body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write store: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}
