// Package artifacts loads the trace and network log of one page load from
// a local directory or an S3 prefix.
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang/snappy"

	"github.com/dd0wney/cluso-perfsim/pkg/network"
	"github.com/dd0wney/cluso-perfsim/pkg/trace"
)

// Artifact object names. Either may carry a CompressedSuffix.
const (
	TraceName        = "trace.json"
	NetworkLogName   = "network.json"
	CompressedSuffix = ".sz"
)

// ErrNotFound is returned when an artifact exists in neither plain nor
// compressed form
var ErrNotFound = errors.New("artifact not found")

// Artifacts is the input of one audit
type Artifacts struct {
	Trace      *trace.Trace
	NetworkLog *network.Log
}

// Source loads artifacts from some location
type Source interface {
	Load(ctx context.Context) (*Artifacts, error)
	String() string
}

// fetcher reads one raw object; it returns ErrNotFound for a missing one
type fetcher interface {
	fetch(ctx context.Context, name string) ([]byte, error)
}

// load fetches both artifacts through f, preferring plain over compressed
func load(ctx context.Context, f fetcher) (*Artifacts, error) {
	traceData, err := fetchEither(ctx, f, TraceName)
	if err != nil {
		return nil, err
	}
	logData, err := fetchEither(ctx, f, NetworkLogName)
	if err != nil {
		return nil, err
	}

	tr, err := trace.Read(bytes.NewReader(traceData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", TraceName, err)
	}
	log, err := network.ReadLog(bytes.NewReader(logData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", NetworkLogName, err)
	}
	return &Artifacts{Trace: tr, NetworkLog: log}, nil
}

func fetchEither(ctx context.Context, f fetcher, name string) ([]byte, error) {
	data, err := f.fetch(ctx, name)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	compressed, err := f.fetch(ctx, name+CompressedSuffix)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	return Decompress(name+CompressedSuffix, compressed)
}

// Decompress snappy-decodes data when name carries CompressedSuffix and
// returns it unchanged otherwise
func Decompress(name string, data []byte) ([]byte, error) {
	if !strings.HasSuffix(name, CompressedSuffix) {
		return data, nil
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", name, err)
	}
	return out, nil
}

// Compress snappy-encodes data for storage under a CompressedSuffix name
func Compress(data []byte) []byte {
	return snappy.Encode(nil, data)
}

// Open returns the source for a location: s3://bucket/prefix or a directory
func Open(ctx context.Context, location string, opts S3Options) (Source, error) {
	if strings.HasPrefix(location, "s3://") {
		return NewS3Source(ctx, location, opts)
	}
	return NewFileSource(location), nil
}
