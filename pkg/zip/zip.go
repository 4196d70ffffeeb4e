// Package zip builds in-memory archives for account data exports.
package zip

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Entry is one file of an archive.
type Entry struct {
	Name     string
	Data     []byte
	Modified time.Time
}

// JSONEntry encodes v as indented JSON under name.
func JSONEntry(name string, v any, modified time.Time) (Entry, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Entry{}, fmt.Errorf("encode %s: %w", name, err)
	}
	return Entry{Name: name, Data: append(data, '\n'), Modified: modified}, nil
}

// Write streams entries to w as a deflated zip archive.
func Write(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		header := &zip.FileHeader{
			Name:     entry.Name,
			Method:   zip.Deflate,
			Modified: entry.Modified,
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("create %s: %w", entry.Name, err)
		}
		if _, err := fw.Write(entry.Data); err != nil {
			return fmt.Errorf("write %s: %w", entry.Name, err)
		}
	}
	return zw.Close()
}

// Archive returns entries as zip bytes.
func Archive(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := Write(buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
