package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/compositor"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/jobs"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/providers/relay"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/providers/replicate"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/storage"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/studio"
	"github.com/HMiranda00/kine-ai-anim-helper/pkg/zip"
)

// studioFlags are shared by every command that talks to a backend.
type studioFlags struct {
	relayURL string
	token    string
	ratio    string
	vertical bool
	outDir   string
}

func (f *studioFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.relayURL, "relay", "", "relay base URL; empty talks to Replicate directly")
	fs.StringVar(&f.token, "token", "", "Replicate token (fallbacks to REPLICATE_API_TOKEN)")
	fs.StringVar(&f.ratio, "ratio", "16:9", "frame aspect ratio W:H")
	fs.BoolVar(&f.vertical, "vertical", false, "swap the aspect ratio to portrait")
	fs.StringVar(&f.outDir, "out", "output", "directory for downloaded outputs")
}

func (f *studioFlags) flagToken() string {
	return strings.TrimSpace(f.token)
}

// open builds the studio against the relay or Replicate, with the aspect
// ratio applied.
func (f *studioFlags) open(env *cliEnv) (*studio.Studio, error) {
	ratio, err := compositor.ParseAspectRatio(f.ratio)
	if err != nil {
		return nil, err
	}
	state := studio.NewState()
	state.SetAspectRatio(ratio)
	state.SetVertical(f.vertical)

	backend, err := f.backend(env)
	if err != nil {
		return nil, err
	}
	return studio.New(studio.Options{Backend: backend, State: state, Logger: &env.logger})
}

func (f *studioFlags) backend(env *cliEnv) (studio.Backend, error) {
	if url := strings.TrimSpace(f.relayURL); url != "" {
		client, err := relay.NewClient(relay.Options{BaseURL: url, Token: f.flagToken(), Logger: &env.logger})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	token := f.flagToken()
	if token == "" {
		token = env.cfg.ReplicateToken
	}
	if token == "" {
		return nil, errors.New("REPLICATE_API_TOKEN, -token or -relay is required")
	}
	client := replicate.NewClient(replicate.Options{BaseURL: env.cfg.ReplicateBaseURL, Logger: &env.logger})
	runner, err := jobs.NewRunner(jobs.Options{
		Provider:     client,
		PollInterval: env.cfg.PollInterval,
		Timeout:      env.cfg.JobTimeout,
		Logger:       &env.logger,
	})
	if err != nil {
		return nil, err
	}
	direct, err := studio.NewDirectBackend(client, runner, token)
	if err != nil {
		return nil, err
	}
	return direct, nil
}

func runCheck(ctx context.Context, env *cliEnv, args []string) error {
	var sf studioFlags
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	sf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	backend, err := sf.backend(env)
	if err != nil {
		return err
	}
	if err := backend.CheckToken(ctx); err != nil {
		return err
	}
	fmt.Println("token ok")
	return nil
}

func runImage(ctx context.Context, env *cliEnv, args []string) error {
	var (
		sf       studioFlags
		prompt   string
		size     string
		width    int
		height   int
		guidance float64
		seed     int
	)
	fs := flag.NewFlagSet("image", flag.ExitOnError)
	sf.register(fs)
	fs.StringVar(&prompt, "prompt", "", "text prompt")
	fs.StringVar(&size, "size", "regular", "seedream size preset (small, regular, big)")
	fs.IntVar(&width, "width", 0, "width when -ratio is custom")
	fs.IntVar(&height, "height", 0, "height when -ratio is custom")
	fs.Float64Var(&guidance, "guidance", 2.5, "guidance scale")
	fs.IntVar(&seed, "seed", -1, "seed (negative for random)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params := studio.ImageParams{Prompt: prompt, Size: size, GuidanceScale: guidance}
	if sf.ratio == "custom" {
		params.AspectRatio, params.Width, params.Height = "custom", width, height
		sf.ratio = "16:9"
	}
	if seed >= 0 {
		params.Seed = &seed
	}
	st, err := sf.open(env)
	if err != nil {
		return err
	}
	urls, err := st.GenerateImage(ctx, params)
	if err != nil {
		return err
	}
	_, err = saveOutputs(ctx, env, sf.outDir, "image", urls)
	return err
}

func runEdit(ctx context.Context, env *cliEnv, args []string) error {
	var (
		sf     studioFlags
		prompt string
		attach string
		format string
	)
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	sf.register(fs)
	fs.StringVar(&prompt, "prompt", "", "edit instruction")
	fs.StringVar(&attach, "attach", "", "comma-separated image files or URLs to condition on")
	fs.StringVar(&format, "format", "png", "output format (png, jpg)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := sf.open(env)
	if err != nil {
		return err
	}
	var (
		files []domain.File
		urls  []string
	)
	for _, src := range splitList(attach) {
		if isRemote(src) {
			urls = append(urls, src)
			continue
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("read %s: %w", src, err)
		}
		files = append(files, domain.File{Name: filepath.Base(src), MIME: replicate.DetectMIME(data), Data: data})
	}
	if _, err := st.UploadAttachments(ctx, files); err != nil {
		return err
	}
	for _, u := range urls {
		if err := st.State().AddAttachment(u); err != nil {
			return err
		}
	}
	outputs, err := st.EditImage(ctx, studio.EditParams{Prompt: prompt, OutputFormat: format})
	if err != nil {
		return err
	}
	_, err = saveOutputs(ctx, env, sf.outDir, "edit", outputs)
	return err
}

func runUpscale(ctx context.Context, env *cliEnv, args []string) error {
	var (
		sf      studioFlags
		in      string
		scale   int
		face    bool
		version string
	)
	fs := flag.NewFlagSet("upscale", flag.ExitOnError)
	sf.register(fs)
	fs.StringVar(&in, "in", "", "image file or URL")
	fs.IntVar(&scale, "scale", 2, "upscale factor")
	fs.BoolVar(&face, "face-enhance", false, "enable face enhancement")
	fs.StringVar(&version, "version", "", "pin a model version id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := sf.open(env)
	if err != nil {
		return err
	}
	if err := loadFrame(ctx, st, studio.SlotStart, in); err != nil {
		return err
	}
	url, err := st.Upscale(ctx, studio.UpscaleParams{Slot: studio.SlotStart, Scale: scale, FaceEnhance: face, Version: version})
	if err != nil {
		return err
	}
	_, err = saveOutputs(ctx, env, sf.outDir, "upscale", []string{url})
	return err
}

func runVideo(ctx context.Context, env *cliEnv, args []string) error {
	var (
		sf         studioFlags
		prompt     string
		start      string
		end        string
		duration   int
		resolution string
		fixed      bool
		seed       int
		bundle     bool
	)
	fs := flag.NewFlagSet("video", flag.ExitOnError)
	sf.register(fs)
	fs.StringVar(&prompt, "prompt", "", "motion prompt")
	fs.StringVar(&start, "start", "", "start frame file or URL")
	fs.StringVar(&end, "end", "", "end frame file or URL")
	fs.IntVar(&duration, "duration", 5, "clip length in seconds")
	fs.StringVar(&resolution, "resolution", "720p", "output resolution (480p, 720p)")
	fs.BoolVar(&fixed, "camera-fixed", false, "keep the camera still")
	fs.IntVar(&seed, "seed", -1, "seed (negative for random)")
	fs.BoolVar(&bundle, "zip", false, "also bundle the frames and video into a zip")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := sf.open(env)
	if err != nil {
		return err
	}
	if err := loadFrame(ctx, st, studio.SlotStart, start); err != nil {
		return err
	}
	if err := loadFrame(ctx, st, studio.SlotEnd, end); err != nil {
		return err
	}
	params := studio.VideoParams{Prompt: prompt, Duration: duration, Resolution: resolution, CameraFixed: fixed}
	if seed >= 0 {
		params.Seed = &seed
	}
	urls, err := st.GenerateVideo(ctx, params)
	if err != nil {
		return err
	}
	saved, err := saveOutputs(ctx, env, sf.outDir, "video", urls)
	if err != nil || !bundle {
		return err
	}
	return writeBundle(ctx, env, st, sf.outDir, saved)
}

func runCompose(_ context.Context, _ *cliEnv, args []string) error {
	var (
		in      string
		out     string
		width   int
		height  int
		mode    string
		format  string
		quality float64
	)
	fs := flag.NewFlagSet("compose", flag.ExitOnError)
	fs.StringVar(&in, "in", "", "source image file")
	fs.StringVar(&out, "out", "", "destination file (default: <in>.<format>)")
	fs.IntVar(&width, "width", 1280, "canvas width")
	fs.IntVar(&height, "height", 720, "canvas height")
	fs.StringVar(&mode, "mode", "letterbox", "fit mode (letterbox, fill, native)")
	fs.StringVar(&format, "format", "png", "output format (png, webp)")
	fs.Float64Var(&quality, "quality", float64(compositor.DefaultWebPQuality), "webp quality")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(in) == "" {
		return errors.New("-in is required")
	}
	m, err := compositor.ParseMode(mode)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}
	img, err := compositor.Compose(data, compositor.Size{W: width, H: height}, m)
	if err != nil {
		return err
	}
	var encoded []byte
	switch format {
	case "png":
		encoded, err = compositor.EncodePNG(img)
	case "webp":
		encoded, err = compositor.EncodeWebP(img, float32(quality))
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return err
	}
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + "." + m.String() + "." + format
	}
	if err := os.WriteFile(out, encoded, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Println(out)
	return nil
}

func runLayout(_ context.Context, _ *cliEnv, args []string) error {
	var (
		ratio     string
		vertical  bool
		width     int
		height    int
		footer    int
		noPreview bool
	)
	fs := flag.NewFlagSet("layout", flag.ExitOnError)
	fs.StringVar(&ratio, "ratio", "16:9", "frame aspect ratio W:H")
	fs.BoolVar(&vertical, "vertical", false, "swap the aspect ratio to portrait")
	fs.IntVar(&width, "width", 1920, "viewport width")
	fs.IntVar(&height, "height", 1080, "viewport height")
	fs.IntVar(&footer, "footer", 0, "footer height")
	fs.BoolVar(&noPreview, "no-preview", false, "hide the preview panel")
	if err := fs.Parse(args); err != nil {
		return err
	}
	r, err := compositor.ParseAspectRatio(ratio)
	if err != nil {
		return err
	}
	layout := compositor.ComputeLayout(compositor.LayoutInput{
		Ratio:          r,
		Vertical:       vertical,
		ViewportW:      width,
		ViewportH:      height,
		FooterH:        footer,
		PreviewVisible: !noPreview,
	})
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(layout)
}

// loadFrame places src in slot. URLs are used as-is; local files are
// cropped and uploaded.
func loadFrame(ctx context.Context, st *studio.Studio, slot studio.Slot, src string) error {
	src = strings.TrimSpace(src)
	if src == "" {
		return fmt.Errorf("%s frame is required", slot)
	}
	if isRemote(src) {
		return st.State().SetFrame(slot, src, src)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		abs = src
	}
	_, err = st.LoadFrame(ctx, slot, "file://"+filepath.ToSlash(abs), data)
	return err
}

// saveOutputs downloads each output URL into <outDir>/<kind>/<run id>/.
func saveOutputs(ctx context.Context, env *cliEnv, outDir, kind string, urls []string) ([]zip.Asset, error) {
	store, err := storage.NewFileStore(outDir)
	if err != nil {
		return nil, err
	}
	runID := strings.ToLower(ulid.Make().String())
	assets := make([]zip.Asset, 0, len(urls))
	for i, u := range urls {
		data, mime, err := storage.Download(ctx, nil, u)
		if err != nil {
			return assets, err
		}
		name := storage.NameFor(fmt.Sprintf("%s-%d", kind, i+1), u, mime)
		key, err := store.Write(ctx, kind+"/"+runID+"/"+name, data)
		if err != nil {
			return assets, err
		}
		env.logger.Debug().Str("url", u).Str("key", key).Int("bytes", len(data)).Msg("output saved")
		fmt.Println(filepath.Join(store.BasePath(), filepath.FromSlash(key)))
		assets = append(assets, zip.Asset{Filename: name, MIME: mime, Data: data})
	}
	return assets, nil
}

// writeBundle zips the remote frames together with the saved outputs.
func writeBundle(ctx context.Context, env *cliEnv, st *studio.Studio, outDir string, outputs []zip.Asset) error {
	assets := make([]zip.Asset, 0, len(outputs)+2)
	for _, slot := range []studio.Slot{studio.SlotStart, studio.SlotEnd} {
		frame, err := st.State().Frame(slot)
		if err != nil || frame.Empty() {
			continue
		}
		data, mime, err := storage.Download(ctx, nil, frame.RemoteURL)
		if err != nil {
			env.logger.Warn().Err(err).Str("slot", string(slot)).Msg("frame not bundled")
			continue
		}
		assets = append(assets, zip.Asset{Filename: storage.NameFor(string(slot), frame.RemoteURL, mime), MIME: mime, Data: data})
	}
	assets = append(assets, outputs...)
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		return err
	}
	store, err := storage.NewFileStore(outDir)
	if err != nil {
		return err
	}
	key, err := store.Write(ctx, "video/"+strings.ToLower(ulid.Make().String())+".zip", archive)
	if err != nil {
		return err
	}
	fmt.Println(filepath.Join(store.BasePath(), filepath.FromSlash(key)))
	return nil
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "http://")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
