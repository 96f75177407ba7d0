package source

import (
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
)

// scanner is the part of the paulmach decoders a Source drives
type scanner interface {
	Scan() bool
	Object() osm.Object
	Err() error
	Close() error
}

// Source reads elements from an OSM file in file order. PBF blocks are
// decoded in parallel but objects are still returned in their original order.
type Source struct {
	file    *os.File
	counter *countingReader
	scanner scanner
	size    int64
	format  string
}

// Open opens path and selects a decoder from its extension:
// .pbf for protobuf, .osm/.xml for XML and .osm.bz2 for compressed XML.
func Open(ctx context.Context, path string, procs int) (*Source, error) {
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	s := &Source{
		file:    f,
		counter: &countingReader{r: f},
		size:    info.Size(),
		format:  format,
	}

	switch format {
	case "pbf":
		if procs < 1 {
			procs = 1
		}
		s.scanner = osmpbf.New(ctx, s.counter, procs)
	case "xml":
		s.scanner = osmxml.New(ctx, s.counter)
	case "xml.bz2":
		s.scanner = osmxml.New(ctx, bzip2.NewReader(s.counter))
	}

	return s, nil
}

func detectFormat(path string) (string, error) {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".pbf"):
		return "pbf", nil
	case strings.HasSuffix(name, ".osm.bz2"):
		return "xml.bz2", nil
	case strings.HasSuffix(name, ".osm"), strings.HasSuffix(name, ".xml"):
		return "xml", nil
	default:
		return "", fmt.Errorf("unsupported input format %q (want .osm.pbf, .osm or .osm.bz2)", filepath.Base(path))
	}
}

func (s *Source) Scan() bool         { return s.scanner.Scan() }
func (s *Source) Object() osm.Object { return s.scanner.Object() }

// Err returns the first decode error. End of file is not an error.
func (s *Source) Err() error {
	if err := s.scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Close stops the decoder and closes the file
func (s *Source) Close() error {
	err := s.scanner.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Format returns "pbf", "xml" or "xml.bz2"
func (s *Source) Format() string { return s.format }

// Size returns the size of the input file in bytes
func (s *Source) Size() int64 { return s.size }

// BytesRead returns how many bytes the decoder consumed so far.
// Safe to call from other goroutines.
func (s *Source) BytesRead() int64 { return s.counter.n.Load() }

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// Objects returns a scanner over an in-memory element sequence
func Objects(objs ...osm.Object) *ObjectScanner {
	return &ObjectScanner{objs: objs, pos: -1}
}

// ObjectScanner iterates a fixed slice of objects
type ObjectScanner struct {
	objs []osm.Object
	pos  int
}

func (s *ObjectScanner) Scan() bool {
	if s.pos+1 >= len(s.objs) {
		s.pos = len(s.objs)
		return false
	}
	s.pos++
	return true
}

func (s *ObjectScanner) Object() osm.Object {
	if s.pos < 0 || s.pos >= len(s.objs) {
		return nil
	}
	return s.objs[s.pos]
}

func (s *ObjectScanner) Err() error   { return nil }
func (s *ObjectScanner) Close() error { return nil }
