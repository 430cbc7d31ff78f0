package storage

import (
	"errors"
	"strings"
	"testing"
)

func TestDetectContentType(t *testing.T) {
	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	tests := []struct {
		name    string
		data    []byte
		file    string
		want    string
		wantErr error
	}{
		{name: "pdf", data: pdf, file: "id.pdf", want: "application/pdf"},
		{name: "png", data: png, file: "photo.png", want: "image/png"},
		{name: "csv", data: []byte("a,b\n1,2\n"), file: "register.csv", want: "text/csv"},
		{name: "empty", data: nil, file: "x.pdf", wantErr: ErrEmptyFile},
		{name: "too large", data: make([]byte, MaxFileSize+1), file: "x.pdf", wantErr: ErrFileTooLarge},
		{name: "script", data: []byte("#!/bin/sh\necho hi\n"), file: "run.sh", wantErr: ErrFileType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectContentType(tt.data, tt.file)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("content type = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("sub-1/photo_id", "Scan.PDF")
	if !strings.HasPrefix(key, "sub-1/photo_id/") || !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("key = %q", key)
	}
	if other := ObjectKey("sub-1/photo_id", "Scan.PDF"); other == key {
		t.Fatal("object keys must be unique per upload")
	}
	if key := ObjectKey("../", "a.png"); !strings.HasPrefix(key, "misc/") {
		t.Fatalf("key = %q, want misc prefix", key)
	}
}
