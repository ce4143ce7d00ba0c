package store

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// YamlFile persists verified entries to a yaml file.
// The whole file is rewritten on every change, which is fine
// for the bounded entry count of the verified store.
type YamlFile struct {
	mu   sync.Mutex
	path string
}

var _ Persistence = (*YamlFile)(nil)

func NewYamlFile(path string) *YamlFile {
	return &YamlFile{path: path}
}

type yamlDoc struct {
	Verified []Entry `yaml:"verified"`
}

func (f *YamlFile) Load() ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	return doc.Verified, nil
}

func (f *YamlFile) Append(e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	doc.Verified = append(doc.Verified, e)
	return f.write(doc)
}

func (f *YamlFile) Remove(ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	kept := doc.Verified[:0]
	for _, e := range doc.Verified {
		if e.IP != ip {
			kept = append(kept, e)
		}
	}
	doc.Verified = kept
	return f.write(doc)
}

func (f *YamlFile) read() (*yamlDoc, error) {
	doc := new(yamlDoc)
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("error reading %s: %w", f.path, err)
	}
	if err = yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *YamlFile) write(doc *yamlDoc) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0600)
}
