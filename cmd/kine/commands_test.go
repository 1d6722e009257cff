package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/compositor"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/jobs"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/studio"
)

type stubBackend struct {
	uploads []domain.File
}

func (b *stubBackend) Upload(_ context.Context, file domain.File) (string, error) {
	b.uploads = append(b.uploads, file)
	return "https://api.replicate.com/v1/files/" + file.Name, nil
}

func (b *stubBackend) Run(context.Context, jobs.Request) (jobs.Output, error) {
	return jobs.Output{}, nil
}

func (b *stubBackend) CheckToken(context.Context) error { return nil }

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(dir, "src.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadFrameSources(t *testing.T) {
	backend := &stubBackend{}
	st, err := studio.New(studio.Options{Backend: backend})
	if err != nil {
		t.Fatalf("studio.New: %v", err)
	}
	ctx := context.Background()

	if err := loadFrame(ctx, st, studio.SlotEnd, "https://replicate.delivery/end.png"); err != nil {
		t.Fatalf("loadFrame(url): %v", err)
	}
	if len(backend.uploads) != 0 {
		t.Fatalf("remote frames must not be uploaded")
	}
	end, _ := st.State().Frame(studio.SlotEnd)
	if end.RemoteURL != "https://replicate.delivery/end.png" {
		t.Fatalf("unexpected end frame: %+v", end)
	}

	path := writePNG(t, t.TempDir(), 400, 400)
	if err := loadFrame(ctx, st, studio.SlotStart, path); err != nil {
		t.Fatalf("loadFrame(file): %v", err)
	}
	if len(backend.uploads) != 1 || backend.uploads[0].MIME != "image/png" {
		t.Fatalf("expected one png upload, got %+v", backend.uploads)
	}
	start, _ := st.State().Frame(studio.SlotStart)
	if start.RemoteURL == "" || start.DisplayURL == start.RemoteURL {
		t.Fatalf("local frame should keep a file display url: %+v", start)
	}

	if err := loadFrame(ctx, st, studio.SlotStart, " "); err == nil {
		t.Fatalf("expected error for empty source")
	}
}

func TestRunComposeWritesCanvas(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, 300, 100)
	out := filepath.Join(dir, "out.png")

	err := runCompose(context.Background(), nil, []string{"-in", src, "-out", out, "-width", "200", "-height", "200", "-mode", "fill"})
	if err != nil {
		t.Fatalf("runCompose: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	img, _, err := compositor.Decode(data)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Fatalf("unexpected canvas size: %v", b)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a.png, ,https://x/b.png ,")
	if len(got) != 2 || got[0] != "a.png" || got[1] != "https://x/b.png" {
		t.Fatalf("splitList = %q", got)
	}
}
