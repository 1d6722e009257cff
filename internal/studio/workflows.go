package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/compositor"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/infra"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/jobs"
)

const (
	ModelSeedream   = "bytedance/seedream-3"
	ModelNanoBanana = "google/nano-banana"
	ModelSeedance   = "bytedance/seedance-1-lite"
	ModelUpscale    = "nightmareai/real-esrgan"
)

// Options configures a Studio.
type Options struct {
	Backend Backend
	State   *State
	Logger  *infra.Logger
}

// Studio drives the frame workflows against a Backend.
type Studio struct {
	backend Backend
	state   *State
	logger  *infra.Logger
}

// New builds a Studio. A nil State starts from NewState.
func New(opts Options) (*Studio, error) {
	if opts.Backend == nil {
		return nil, errors.New("studio: backend is required")
	}
	state := opts.State
	if state == nil {
		state = NewState()
	}
	return &Studio{backend: opts.Backend, state: state, logger: infra.OrDiscard(opts.Logger)}, nil
}

// State exposes the application state.
func (s *Studio) State() *State { return s.state }

// LoadFrame crops a local image to the current aspect ratio at native
// resolution, uploads it as PNG and places it in slot. displayURL is how the
// caller refers to the local copy.
func (s *Studio) LoadFrame(ctx context.Context, slot Slot, displayURL string, data []byte) (Frame, error) {
	if _, err := slot.index(); err != nil {
		return Frame{}, err
	}
	img, _, err := compositor.Decode(data)
	if err != nil {
		return Frame{}, err
	}
	cropped := compositor.NativeCrop(img, s.state.OrientedRatio())
	png, err := compositor.EncodePNG(cropped)
	if err != nil {
		return Frame{}, err
	}
	remote, err := s.backend.Upload(ctx, domain.File{Name: string(slot) + ".png", MIME: "image/png", Data: png})
	if err != nil {
		return Frame{}, err
	}
	if strings.TrimSpace(displayURL) == "" {
		displayURL = remote
	}
	if err := s.place(slot, displayURL, remote); err != nil {
		return Frame{}, err
	}
	return s.state.Frame(slot)
}

// ImageParams are the seedream-3 generation parameters.
type ImageParams struct {
	Prompt        string
	AspectRatio   string
	Size          string
	Width         int
	Height        int
	GuidanceScale float64
	Seed          *int
	// Target, when set, receives the first output.
	Target Slot
}

// GenerateImage runs a text-to-image job and records every output.
func (s *Studio) GenerateImage(ctx context.Context, p ImageParams) ([]string, error) {
	prompt, err := requirePrompt(p.Prompt)
	if err != nil {
		return nil, err
	}
	ar := strings.TrimSpace(p.AspectRatio)
	if ar == "" {
		ar = s.state.OrientedRatio().String()
	}
	size := p.Size
	if size == "" {
		size = "regular"
	}
	guidance := p.GuidanceScale
	if guidance <= 0 {
		guidance = 2.5
	}
	input := map[string]any{
		"prompt":         prompt,
		"aspect_ratio":   ar,
		"size":           size,
		"guidance_scale": guidance,
	}
	if ar == "custom" {
		if p.Width <= 0 || p.Height <= 0 {
			return nil, fmt.Errorf("studio: custom aspect ratio needs width and height: %w", domain.ErrInvalidRequest)
		}
		input["width"] = p.Width
		input["height"] = p.Height
	}
	if p.Seed != nil {
		input["seed"] = *p.Seed
	}
	return s.runImage(ctx, ModelSeedream, input, p.Target)
}

// EditParams are the nano-banana edit parameters.
type EditParams struct {
	Prompt       string
	OutputFormat string
	Target       Slot
}

// EditImage runs an image edit conditioned on the current attachments.
func (s *Studio) EditImage(ctx context.Context, p EditParams) ([]string, error) {
	prompt, err := requirePrompt(p.Prompt)
	if err != nil {
		return nil, err
	}
	format := p.OutputFormat
	if format == "" {
		format = "png"
	}
	input := map[string]any{
		"prompt":        prompt,
		"image_input":   s.state.Attachments(),
		"output_format": format,
	}
	return s.runImage(ctx, ModelNanoBanana, input, p.Target)
}

// UpscaleParams configure an upscale of a populated frame.
type UpscaleParams struct {
	Slot        Slot
	Scale       int
	FaceEnhance bool
	// Version pins a model version instead of the model-scoped endpoint.
	Version string
}

// Upscale replaces the frame with its upscaled version.
func (s *Studio) Upscale(ctx context.Context, p UpscaleParams) (string, error) {
	frame, err := s.requireFrame(p.Slot)
	if err != nil {
		return "", err
	}
	scale := p.Scale
	if scale <= 0 {
		scale = 2
	}
	req := jobs.Request{Input: map[string]any{
		"image":        frame.RemoteURL,
		"scale":        scale,
		"face_enhance": p.FaceEnhance,
	}}
	if p.Version != "" {
		req.Version = p.Version
	} else {
		req.Model = ModelUpscale
	}
	out, err := s.backend.Run(ctx, req)
	if err != nil {
		return "", err
	}
	url, ok := out.First()
	if !ok {
		return "", errors.New("studio: upscale returned no image")
	}
	if err := s.place(p.Slot, url, url); err != nil {
		return "", err
	}
	return url, nil
}

// AttachFrame adds a populated frame to the edit attachments.
func (s *Studio) AttachFrame(slot Slot) error {
	frame, err := s.requireFrame(slot)
	if err != nil {
		return err
	}
	return s.state.AddAttachment(frame.RemoteURL)
}

// UploadAttachments replaces the attachments with freshly uploaded files.
// On an upload error the list keeps what was uploaded so far.
func (s *Studio) UploadAttachments(ctx context.Context, files []domain.File) ([]string, error) {
	s.state.ClearAttachments()
	for _, f := range files {
		remote, err := s.backend.Upload(ctx, f)
		if err != nil {
			return s.state.Attachments(), err
		}
		if err := s.state.AddAttachment(remote); err != nil {
			return s.state.Attachments(), err
		}
	}
	return s.state.Attachments(), nil
}

// VideoParams are the seedance-1-lite parameters.
type VideoParams struct {
	Prompt      string
	Duration    int
	Resolution  string
	AspectRatio string
	CameraFixed bool
	Seed        *int
}

// GenerateVideo interpolates between the start and end frames. Both frames
// must be populated.
func (s *Studio) GenerateVideo(ctx context.Context, p VideoParams) ([]string, error) {
	prompt, err := requirePrompt(p.Prompt)
	if err != nil {
		return nil, err
	}
	start, err := s.requireFrame(SlotStart)
	if err != nil {
		return nil, err
	}
	end, err := s.requireFrame(SlotEnd)
	if err != nil {
		return nil, err
	}
	duration := p.Duration
	if duration <= 0 {
		duration = 5
	}
	resolution := p.Resolution
	if resolution == "" {
		resolution = "720p"
	}
	ar := strings.TrimSpace(p.AspectRatio)
	if ar == "" {
		ar = s.state.OrientedRatio().String()
	}
	input := map[string]any{
		"prompt":           prompt,
		"duration":         duration,
		"resolution":       resolution,
		"aspect_ratio":     ar,
		"camera_fixed":     p.CameraFixed,
		"image":            start.RemoteURL,
		"last_frame_image": end.RemoteURL,
	}
	if p.Seed != nil {
		input["seed"] = *p.Seed
	}
	out, err := s.backend.Run(ctx, jobs.Request{Model: ModelSeedance, Input: input})
	if err != nil {
		return nil, err
	}
	urls := out.URLs()
	if len(urls) == 0 {
		return nil, errors.New("studio: video job returned no output")
	}
	s.logger.Info().Int("videos", len(urls)).Msg("studio: video generated")
	return urls, nil
}

func (s *Studio) runImage(ctx context.Context, model string, input map[string]any, target Slot) ([]string, error) {
	out, err := s.backend.Run(ctx, jobs.Request{Model: model, Input: input})
	if err != nil {
		return nil, err
	}
	urls := out.URLs()
	if len(urls) == 0 {
		return nil, fmt.Errorf("studio: %s returned no image", model)
	}
	for _, u := range urls {
		s.state.Record(u, u)
	}
	if target != "" {
		if err := s.place(target, urls[0], urls[0]); err != nil {
			return urls, err
		}
	}
	s.logger.Debug().Str("model", model).Int("images", len(urls)).Msg("studio: images generated")
	return urls, nil
}

// place populates slot and records the image.
func (s *Studio) place(slot Slot, displayURL, remoteURL string) error {
	if err := s.state.SetFrame(slot, displayURL, remoteURL); err != nil {
		return err
	}
	s.state.Record(displayURL, remoteURL)
	return nil
}

func (s *Studio) requireFrame(slot Slot) (Frame, error) {
	frame, err := s.state.Frame(slot)
	if err != nil {
		return Frame{}, err
	}
	if frame.Empty() {
		return Frame{}, fmt.Errorf("studio: %s frame: %w", slot, domain.ErrFrameEmpty)
	}
	return frame, nil
}

func requirePrompt(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("studio: prompt required: %w", domain.ErrInvalidRequest)
	}
	return p, nil
}
