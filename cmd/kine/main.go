package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/infra"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, env *cliEnv, args []string) error
}

var commands = []command{
	{name: "check", usage: "validate the Replicate token", run: runCheck},
	{name: "image", usage: "generate frames from a prompt (seedream-3)", run: runImage},
	{name: "edit", usage: "edit images conditioned on attachments (nano-banana)", run: runEdit},
	{name: "upscale", usage: "upscale a frame (real-esrgan)", run: runUpscale},
	{name: "video", usage: "interpolate a video between two frames (seedance-1-lite)", run: runVideo},
	{name: "compose", usage: "fit a local image onto a canvas", run: runCompose},
	{name: "layout", usage: "print the responsive layout for a viewport", run: runLayout},
}

// cliEnv is what every subcommand shares.
type cliEnv struct {
	cfg    *infra.Config
	logger infra.Logger
}

func main() {
	_ = godotenv.Load(".env", ".env.local")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	name := strings.TrimSpace(os.Args[1])
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		if name != "help" && name != "-h" && name != "--help" {
			fmt.Fprintf(os.Stderr, "kine: unknown command %q\n", name)
		}
		usage()
		os.Exit(2)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).Output(os.Stderr).With().Str("cmd", cmd.name).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, &cliEnv{cfg: cfg, logger: logger}, os.Args[2:]); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "kine: interrupted")
			os.Exit(130)
		}
		exitWithError(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kine <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.usage)
	}
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "kine: %v\n", err)
	os.Exit(1)
}
