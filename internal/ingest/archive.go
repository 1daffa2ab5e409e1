// Package ingest reads and writes the zipped JSON-lines exports received from the listing feed.
package ingest

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vitebski/petsync/pkg/models"
)

const maxLineSize = 16 << 20

// ReadArchive returns every record of every entry of a zip archive. Each
// entry holds one JSON object per line; field order and number text are kept.
func ReadArchive(path string) ([]models.RawRecord, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer zr.Close()

	var records []models.RawRecord
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in %s: %w", f.Name, path, err)
		}
		entryRecords, err := readLines(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s in %s: %w", f.Name, path, err)
		}
		records = append(records, entryRecords...)
	}
	return records, nil
}

func readLines(r io.Reader) ([]models.RawRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var records []models.RawRecord
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		rec, err := DecodeRecord(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// DecodeRecord parses one JSON object into a record, keeping key order.
// Nested objects and arrays are kept as their JSON text.
func DecodeRecord(data []byte) (models.RawRecord, error) {
	rec := models.NewRawRecord()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return rec, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return rec, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return rec, err
		}
		key, ok := tok.(string)
		if !ok {
			return rec, fmt.Errorf("expected an object key, got %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return rec, fmt.Errorf("field %s: %w", key, err)
		}
		value, err := rawValue(raw)
		if err != nil {
			return rec, fmt.Errorf("field %s: %w", key, err)
		}
		rec.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return rec, err
	}
	return rec, nil
}

func rawValue(raw json.RawMessage) (interface{}, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	switch raw[0] {
	case 'n':
		return nil, nil
	case 't':
		return true, nil
	case 'f':
		return false, nil
	case '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case '{', '[':
		return string(raw), nil
	default:
		return json.Number(raw), nil
	}
}

// EncodeRecord renders a record as one JSON object in key order
func EncodeRecord(rec models.RawRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range rec.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')

		v, err := json.Marshal(rec.Fields[key])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WriteArchive writes records as a single JSON-lines entry of a new zip archive
func WriteArchive(path, entry string, records []models.RawRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", path, err)
	}

	zw := zip.NewWriter(f)
	w, err := zw.Create(entry)
	if err != nil {
		f.Close()
		return err
	}

	bw := bufio.NewWriter(w)
	for _, rec := range records {
		line, err := EncodeRecord(rec)
		if err != nil {
			f.Close()
			return err
		}
		bw.Write(line)
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
