package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestArchiveAssets(t *testing.T) {
	data, err := ArchiveAssets([]Asset{
		{Filename: "frames/start.png", MIME: "image/png", Data: []byte("start")},
		{Filename: "start.png", MIME: "image/png", Data: []byte("again")},
		{Filename: "", MIME: "video/mp4", Data: []byte("video")},
		{Filename: "notes.txt", MIME: "text/plain", Data: []byte("hello hello hello")},
	})
	if err != nil {
		t.Fatalf("ArchiveAssets: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	want := map[string]string{
		"start.png":   "start",
		"start-2.png": "again",
		"asset-3.bin": "video",
		"notes.txt":   "hello hello hello",
	}
	if len(zr.File) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(zr.File))
	}
	for _, f := range zr.File {
		content, ok := want[f.Name]
		if !ok {
			t.Fatalf("unexpected entry %q", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		got, _ := io.ReadAll(rc)
		rc.Close()
		if string(got) != content {
			t.Fatalf("%s = %q, want %q", f.Name, got, content)
		}
		if f.Name == "start.png" && f.Method != zip.Store {
			t.Fatalf("png should be stored, got method %d", f.Method)
		}
	}
}

func TestArchiveAssetsEmpty(t *testing.T) {
	if _, err := ArchiveAssets(nil); err == nil {
		t.Fatalf("expected error for empty bundle")
	}
}
