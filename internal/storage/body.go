package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Body is the content of a retrieved object. Backends disagree on how they
// hand content back, so Body is a closed set of shapes: Resident, Streamed
// and Flat. Only types in this package implement it.
type Body interface {
	isBody()
}

// Resident is content already fully in memory, owned by the backend.
type Resident struct {
	Data []byte
}

// Streamed is content delivered over time. Materialize drains and closes it.
type Streamed struct {
	Stream io.ReadCloser
}

// Flat is content the backend returned as a plain string value.
type Flat struct {
	Text string
}

func (Resident) isBody() {}
func (Streamed) isBody() {}
func (Flat) isBody()     {}

const chunkSize = 32 * 1024

// Materialize converts any Body into one contiguous byte slice. The returned
// slice never aliases backend memory.
//
// A Streamed body is read chunk by chunk in arrival order until EOF and is
// always closed. If the stream fails, the partial data is dropped and the
// error matches ErrStorageRead.
func Materialize(body Body) ([]byte, error) {
	switch b := body.(type) {
	case Resident:
		return bytes.Clone(nonNil(b.Data)), nil
	case Streamed:
		return drain(b.Stream)
	case Flat:
		return []byte(b.Text), nil
	case nil:
		return nil, fmt.Errorf("%w: empty body", ErrStorageRead)
	default:
		return nil, fmt.Errorf("%w: unsupported body %T", ErrStorageRead, body)
	}
}

func drain(stream io.ReadCloser) ([]byte, error) {
	if stream == nil {
		return nil, fmt.Errorf("%w: nil stream", ErrStorageRead)
	}
	defer stream.Close()

	var buf bytes.Buffer
	chunk := make([]byte, chunkSize)
	for {
		n, err := stream.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
		}
	}
	return nonNil(buf.Bytes()), nil
}

// nonNil keeps empty objects distinguishable from failures for callers that
// compare against nil.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
