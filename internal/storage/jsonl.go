package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// writeJSONL writes one JSON document per line and syncs the file
func writeJSONL[T any](path string, items []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			_ = f.Close()
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// readJSONL parses every line of path as a T. A blank line, a line that is
// not exactly one JSON value of the expected shape, or a record rejected by
// validate fails the whole read with ErrCorruptIndex.
func readJSONL[T any](path string, validate func(*T) error) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	items := make([]T, 0)
	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		line, err := r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		atEOF := errors.Is(err, io.EOF)

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if atEOF {
				break
			}
			return nil, fmt.Errorf("%w: %s line %d is empty", ErrCorruptIndex, path, lineNo)
		}

		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorruptIndex, path, lineNo, err)
		}
		if validate != nil {
			if err := validate(&item); err != nil {
				return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorruptIndex, path, lineNo, err)
			}
		}
		items = append(items, item)

		if atEOF {
			break
		}
	}

	return items, nil
}
