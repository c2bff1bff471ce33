package gzip

import (
	"bytes"
	"compress/gzip"
	"io"
	"time"
)

// Header is the gzip header
type Header struct {
	Name    string
	Comment string
	Date    time.Time
}

// Encode payload to gzip result bytes
func Encode(payload []byte, header *Header) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if header != nil {
		zw.Name = header.Name
		zw.Comment = header.Comment
		zw.ModTime = header.Date
	}
	if _, err := zw.Write(payload); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode gzip to result bytes, header nil when the stream carries none
func Decode(data []byte) (result []byte, header *Header, err error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	defer zr.Close()
	if zr.Name != "" || zr.Comment != "" || !zr.ModTime.IsZero() {
		header = &Header{
			Name:    zr.Name,
			Comment: zr.Comment,
			Date:    zr.ModTime,
		}
	}
	result, err = io.ReadAll(zr)
	return
}
