package studio

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/compositor"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/jobs"
)

type fakeBackend struct {
	mu      sync.Mutex
	uploads []domain.File
	runs    []jobs.Request
	output  jobs.Output
	runErr  error
}

func (b *fakeBackend) Upload(_ context.Context, file domain.File) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads = append(b.uploads, file)
	return "https://api.replicate.com/v1/files/" + file.Name, nil
}

func (b *fakeBackend) Run(_ context.Context, req jobs.Request) (jobs.Output, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runs = append(b.runs, req)
	return b.output, b.runErr
}

func (b *fakeBackend) CheckToken(context.Context) error { return nil }

func newTestStudio(t *testing.T, backend Backend) *Studio {
	t.Helper()
	s, err := New(Options{Backend: backend})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

func TestRecordIsIdempotent(t *testing.T) {
	st := NewState()
	first, added := st.Record("blob:1", "https://r/1")
	if !added {
		t.Fatalf("first record should add")
	}
	again, added := st.Record("blob:1", "https://r/other")
	if added || again.ID != first.ID {
		t.Fatalf("second record should return the existing entry")
	}
	st.Record("blob:2", "https://r/2")
	entries := st.Entries()
	if len(entries) != 2 || entries[0].DisplayURL != "blob:1" || entries[1].DisplayURL != "blob:2" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].RemoteURL != "https://r/1" {
		t.Fatalf("existing entry must not be overwritten: %+v", entries[0])
	}
}

func TestRecordOnZeroState(t *testing.T) {
	var st State
	if _, added := st.Record("blob:1", "https://r/1"); !added {
		t.Fatalf("zero state should accept a first record")
	}
	if _, added := st.Record("blob:1", "https://r/1"); added {
		t.Fatalf("zero state should still deduplicate")
	}
	if n := len(st.Entries()); n != 1 {
		t.Fatalf("expected 1 entry, got %d", n)
	}
}

func TestAttachments(t *testing.T) {
	st := NewState()
	if _, ok := st.RemoveLastAttachment(); ok {
		t.Fatalf("empty list should have nothing to remove")
	}
	_ = st.AddAttachment("a")
	_ = st.AddAttachment("b")
	if err := st.AddAttachment(" "); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("blank attachment should be rejected, got %v", err)
	}
	last, ok := st.RemoveLastAttachment()
	if !ok || last != "b" {
		t.Fatalf("unexpected pop: %q %v", last, ok)
	}
	if got := st.Attachments(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("unexpected attachments: %v", got)
	}
}

func TestFrameInvariants(t *testing.T) {
	st := NewState()
	if err := st.SetFrame(SlotStart, "blob:1", ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("partial frame should be rejected, got %v", err)
	}
	if err := st.SetFrame(SlotStart, "blob:1", "https://r/1"); err != nil {
		t.Fatalf("SetFrame: %v", err)
	}
	if err := st.MoveFrame(SlotStart); err != nil {
		t.Fatalf("MoveFrame: %v", err)
	}
	start, _ := st.Frame(SlotStart)
	end, _ := st.Frame(SlotEnd)
	if !start.Empty() || end.RemoteURL != "https://r/1" {
		t.Fatalf("move should clear the source: start=%+v end=%+v", start, end)
	}
	if err := st.MoveFrame(SlotStart); !errors.Is(err, domain.ErrFrameEmpty) {
		t.Fatalf("moving an empty frame should fail, got %v", err)
	}
	if _, err := st.Frame(Slot("middle")); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("unknown slot should be rejected, got %v", err)
	}
}

func TestUseHistory(t *testing.T) {
	st := NewState()
	st.Record("blob:1", "https://r/1")
	if err := st.UseHistory(SlotEnd, 0); err != nil {
		t.Fatalf("UseHistory: %v", err)
	}
	if f, _ := st.Frame(SlotEnd); f.DisplayURL != "blob:1" {
		t.Fatalf("unexpected frame: %+v", f)
	}
	if err := st.UseHistory(SlotEnd, 3); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("out of range should be ErrNotFound, got %v", err)
	}
}

func TestStateLayoutFollowsOrientation(t *testing.T) {
	st := NewState()
	horizontal := st.Layout(4000, 1200, 0)
	st.SetVertical(true)
	vertical := st.Layout(4000, 1200, 0)
	if horizontal.Canvas.W <= horizontal.Canvas.H || vertical.Canvas.W >= vertical.Canvas.H {
		t.Fatalf("orientation not applied: %+v vs %+v", horizontal, vertical)
	}
	st.SetAspectRatio(compositor.Ratio{W: 1, H: 1})
	square := st.Layout(4000, 1200, 0)
	if square.Canvas.W != square.Canvas.H {
		t.Fatalf("square ratio should ignore orientation: %+v", square)
	}
}

func TestGenerateImageBuildsSeedreamInput(t *testing.T) {
	backend := &fakeBackend{output: jobs.Single("https://replicate.delivery/a.png")}
	s := newTestStudio(t, backend)
	seed := 42

	urls, err := s.GenerateImage(context.Background(), ImageParams{Prompt: " a cat in a hat ", AspectRatio: "1:1", Size: "big", Width: 512, Height: 512, Seed: &seed, Target: SlotStart})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if len(urls) != 1 {
		t.Fatalf("unexpected urls: %v", urls)
	}
	req := backend.runs[0]
	if req.Model != ModelSeedream || req.Input["prompt"] != "a cat in a hat" || req.Input["seed"] != 42 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if _, ok := req.Input["width"]; ok {
		t.Fatalf("width must only be sent for custom ratios")
	}
	if f, _ := s.State().Frame(SlotStart); f.RemoteURL != urls[0] {
		t.Fatalf("target frame not populated: %+v", f)
	}
	if len(s.State().Entries()) != 1 {
		t.Fatalf("output should be recorded once")
	}
}

func TestGenerateImageCustomRatio(t *testing.T) {
	backend := &fakeBackend{output: jobs.Many("https://x/1.png", "https://x/2.png")}
	s := newTestStudio(t, backend)
	if _, err := s.GenerateImage(context.Background(), ImageParams{Prompt: "x", AspectRatio: "custom"}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("custom ratio without size should fail, got %v", err)
	}
	urls, err := s.GenerateImage(context.Background(), ImageParams{Prompt: "x", AspectRatio: "custom", Width: 800, Height: 600})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if len(urls) != 2 || backend.runs[0].Input["width"] != 800 {
		t.Fatalf("unexpected result: %v %+v", urls, backend.runs[0].Input)
	}
	if len(s.State().Entries()) != 2 {
		t.Fatalf("every output should be recorded")
	}
}

func TestPromptRequired(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestStudio(t, backend)
	ctx := context.Background()
	if _, err := s.GenerateImage(ctx, ImageParams{Prompt: "  "}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("image: expected ErrInvalidRequest, got %v", err)
	}
	if _, err := s.EditImage(ctx, EditParams{}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("edit: expected ErrInvalidRequest, got %v", err)
	}
	if _, err := s.GenerateVideo(ctx, VideoParams{}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("video: expected ErrInvalidRequest, got %v", err)
	}
	if len(backend.runs) != 0 {
		t.Fatalf("no job should be submitted")
	}
}

func TestEditImageUsesAttachments(t *testing.T) {
	backend := &fakeBackend{output: jobs.Single("https://x/edit.png")}
	s := newTestStudio(t, backend)
	_ = s.State().SetFrame(SlotStart, "blob:s", "https://r/s")
	if err := s.AttachFrame(SlotStart); err != nil {
		t.Fatalf("AttachFrame: %v", err)
	}
	if err := s.AttachFrame(SlotEnd); !errors.Is(err, domain.ErrFrameEmpty) {
		t.Fatalf("attaching an empty frame should fail, got %v", err)
	}
	if _, err := s.EditImage(context.Background(), EditParams{Prompt: "make it night", Target: SlotEnd}); err != nil {
		t.Fatalf("EditImage: %v", err)
	}
	req := backend.runs[0]
	inputs, _ := req.Input["image_input"].([]string)
	if req.Model != ModelNanoBanana || len(inputs) != 1 || inputs[0] != "https://r/s" || req.Input["output_format"] != "png" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if f, _ := s.State().Frame(SlotEnd); f.RemoteURL != "https://x/edit.png" {
		t.Fatalf("edit output not placed: %+v", f)
	}
}

func TestEditImageWithoutAttachmentsSendsEmptyList(t *testing.T) {
	backend := &fakeBackend{output: jobs.Single("https://x/edit.png")}
	s := newTestStudio(t, backend)
	if _, err := s.EditImage(context.Background(), EditParams{Prompt: "draw a fox"}); err != nil {
		t.Fatalf("EditImage: %v", err)
	}
	raw, err := json.Marshal(backend.runs[0].Input["image_input"])
	if err != nil {
		t.Fatalf("marshal image_input: %v", err)
	}
	if string(raw) != "[]" {
		t.Fatalf("image_input = %s, want []", raw)
	}
}

func TestUploadAttachmentsReplacesList(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestStudio(t, backend)
	_ = s.State().AddAttachment("https://r/stale")
	got, err := s.UploadAttachments(context.Background(), []domain.File{
		{Name: "a.png", MIME: "image/png", Data: []byte("a")},
		{Name: "b.png", MIME: "image/png", Data: []byte("b")},
	})
	if err != nil {
		t.Fatalf("UploadAttachments: %v", err)
	}
	want := []string{"https://api.replicate.com/v1/files/a.png", "https://api.replicate.com/v1/files/b.png"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("attachments = %v, want %v", got, want)
	}
	if len(backend.uploads) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(backend.uploads))
	}

	cleared, err := s.UploadAttachments(context.Background(), nil)
	if err != nil || cleared == nil || len(cleared) != 0 {
		t.Fatalf("empty upload should clear to [], got %v, %v", cleared, err)
	}
}

func TestGenerateVideoRequiresBothFrames(t *testing.T) {
	backend := &fakeBackend{output: jobs.Single("https://x/v.mp4")}
	s := newTestStudio(t, backend)
	_ = s.State().SetFrame(SlotStart, "blob:s", "https://r/s")
	if _, err := s.GenerateVideo(context.Background(), VideoParams{Prompt: "walk"}); !errors.Is(err, domain.ErrFrameEmpty) {
		t.Fatalf("missing end frame should fail, got %v", err)
	}
	_ = s.State().SetFrame(SlotEnd, "blob:e", "https://r/e")
	urls, err := s.GenerateVideo(context.Background(), VideoParams{Prompt: "walk", CameraFixed: true})
	if err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}
	req := backend.runs[0]
	if urls[0] != "https://x/v.mp4" || req.Model != ModelSeedance {
		t.Fatalf("unexpected result: %v %+v", urls, req)
	}
	if req.Input["image"] != "https://r/s" || req.Input["last_frame_image"] != "https://r/e" || req.Input["aspect_ratio"] != "16:9" {
		t.Fatalf("unexpected input: %+v", req.Input)
	}
	if _, ok := req.Input["seed"]; ok {
		t.Fatalf("seed must be omitted when unset")
	}
}

func TestUpscaleReplacesFrame(t *testing.T) {
	backend := &fakeBackend{output: jobs.Single("https://x/big.png")}
	s := newTestStudio(t, backend)
	if _, err := s.Upscale(context.Background(), UpscaleParams{Slot: SlotStart}); !errors.Is(err, domain.ErrFrameEmpty) {
		t.Fatalf("upscaling an empty frame should fail, got %v", err)
	}
	_ = s.State().SetFrame(SlotStart, "blob:s", "https://r/s")
	url, err := s.Upscale(context.Background(), UpscaleParams{Slot: SlotStart})
	if err != nil {
		t.Fatalf("Upscale: %v", err)
	}
	if f, _ := s.State().Frame(SlotStart); f.RemoteURL != url {
		t.Fatalf("frame not replaced: %+v", f)
	}
	if backend.runs[0].Model != ModelUpscale || backend.runs[0].Input["scale"] != 2 {
		t.Fatalf("unexpected request: %+v", backend.runs[0])
	}
}

func TestLoadFrameCropsAndUploads(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 100))
	for x := 0; x < 400; x++ {
		for y := 0; y < 100; y++ {
			img.SetRGBA(x, y, color.RGBA{10, 20, 30, 255})
		}
	}
	data, err := compositor.EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	backend := &fakeBackend{}
	s := newTestStudio(t, backend)
	s.State().SetAspectRatio(compositor.Ratio{W: 1, H: 1})

	frame, err := s.LoadFrame(context.Background(), SlotEnd, "file:///tmp/in.png", data)
	if err != nil {
		t.Fatalf("LoadFrame: %v", err)
	}
	if frame.DisplayURL != "file:///tmp/in.png" || frame.RemoteURL == "" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	up := backend.uploads[0]
	if up.MIME != "image/png" || up.Name != "end.png" {
		t.Fatalf("unexpected upload: %s %s", up.Name, up.MIME)
	}
	decoded, _, err := compositor.Decode(up.Data)
	if err != nil {
		t.Fatalf("uploaded data should decode: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Fatalf("expected native 100x100 crop, got %v", b)
	}
	if len(s.State().Entries()) != 1 {
		t.Fatalf("loaded frame should be recorded")
	}

	if _, err := s.LoadFrame(context.Background(), SlotEnd, "", []byte("junk")); err == nil {
		t.Fatalf("junk data should fail to decode")
	} else {
		var decErr *domain.DecodeError
		if !errors.As(err, &decErr) {
			t.Fatalf("expected DecodeError, got %v", err)
		}
	}
}

func TestBackendErrorsPropagate(t *testing.T) {
	backend := &fakeBackend{runErr: &domain.TimeoutError{PredictionID: "p"}}
	s := newTestStudio(t, backend)
	_, err := s.GenerateImage(context.Background(), ImageParams{Prompt: "x"})
	var timeoutErr *domain.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}
