// Package loader reads a corpus directory into documents.
//
// Every .txt and .md file below the root becomes one document whose ID is the
// file name without extension. Files under a directory named FR are tagged
// with country FR; every other file is tagged UNKNOWN.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/enstso/JuriRH-Assistant/pkg/types"
)

// Metadata keys set on every loaded document
const (
	MetaCountry    = "country"
	MetaSourcePath = "source_path"
	MetaFilename   = "filename"

	CountryFR      = "FR"
	CountryUnknown = "UNKNOWN"
)

// ErrDuplicateDocID is returned when two files share the same stem
var ErrDuplicateDocID = errors.New("duplicate document ID")

var supportedExtensions = []string{".txt", ".md"}

// LoadDirectory walks root and returns one document per supported file, in
// lexical path order. Invalid UTF-8 sequences are dropped from the text.
func LoadDirectory(root string) ([]types.Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("corpus directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus path %s is not a directory", root)
	}

	paths := make([]string, 0)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !supported(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}
	slices.Sort(paths)

	logger := slog.Default().With("component", "loader")
	docs := make([]types.Document, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		doc, err := LoadFile(root, path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[doc.DocID]; dup {
			return nil, fmt.Errorf("%w: %q from %s and %s", ErrDuplicateDocID, doc.DocID, prev, path)
		}
		seen[doc.DocID] = path
		docs = append(docs, doc)
	}

	logger.Info("corpus loaded", "root", root, "documents", len(docs))
	return docs, nil
}

// LoadFile reads one corpus file. root is used to decide the country tag
// from the path components below it.
func LoadFile(root, path string) (types.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("read %s: %w", path, err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return types.Document{
		DocID: stem,
		Path:  path,
		Text:  strings.ToValidUTF8(string(raw), ""),
		Metadata: types.Metadata{
			MetaCountry:    countryOf(root, path),
			MetaSourcePath: path,
			MetaFilename:   stem,
		},
	}, nil
}

func supported(path string) bool {
	return slices.Contains(supportedExtensions, strings.ToLower(filepath.Ext(path)))
}

func countryOf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if part == CountryFR {
			return CountryFR
		}
	}
	return CountryUnknown
}
