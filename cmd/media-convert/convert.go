package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"media-converter/internal/conversion"
	"media-converter/internal/engine"
	"media-converter/internal/mediatypes"
	"media-converter/internal/startup"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// runner converts files one at a time through a single orchestrator.
type runner struct {
	tc        toolchain
	cfg       *startup.Config
	mode      mediatypes.Mode
	outputDir string
	overwrite bool
	quiet     bool
	out       io.Writer
	errOut    io.Writer
}

func (r *runner) run(ctx context.Context, paths []string) error {
	stopImages := r.tc.startImages()
	defer stopImages()

	handle := engine.NewHandle(r.tc.loader(r.cfg), nil)
	defer func() {
		if err := handle.Unload(); err != nil {
			log.Warn("engine unload: %v", err)
		}
	}()

	orch, err := conversion.New(conversion.Options{
		Engine:   handle,
		Images:   r.tc.images,
		Language: r.cfg.Language,
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	var failed int
	for _, path := range paths {
		if err := r.convertFile(ctx, orch, path); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(r.errOut, "%s: %v\n", path, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(paths))
	}
	return nil
}

func (r *runner) convertFile(ctx context.Context, orch *conversion.Orchestrator, path string) error {
	mode := r.mode
	if mode == "" {
		detected, ok := mediatypes.ModeForName(path)
		if !ok {
			return errors.New("unsupported file type, expected .heic, .heif or .mov")
		}
		mode = detected
	}
	if err := orch.SetMode(mode); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)

	bar := r.progressBar(name)
	unsubscribe := orch.Subscribe(func(e conversion.Event) {
		if bar != nil && e.Progress != nil {
			_ = bar.Set(*e.Progress)
		}
	})
	job, err := orch.Convert(ctx, conversion.SourceFile{
		Name: name,
		Type: mediatypes.GetMimeType(name),
		Data: data,
	})
	unsubscribe()
	if bar != nil {
		_ = bar.Clear()
	}
	if err != nil {
		return err
	}

	if job.Status != conversion.StatusSucceeded || job.Artifact == nil {
		if job.Message == "" {
			return fmt.Errorf("conversion ended with status %s", job.Status)
		}
		return errors.New(job.Message)
	}

	target, err := r.writeOutput(path, job)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s -> %s (%s)\n", path, target, humanize.Bytes(uint64(job.Artifact.Size)))
	return nil
}

func (r *runner) writeOutput(source string, job conversion.Job) (string, error) {
	dir := r.outputDir
	if dir == "" {
		dir = filepath.Dir(source)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	target := filepath.Join(dir, job.Artifact.Name)
	if !r.overwrite {
		if _, err := os.Stat(target); err == nil {
			return "", fmt.Errorf("%s already exists (use --force to replace it)", target)
		}
	}

	data, err := job.Artifact.Bytes()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	return target, nil
}

// progressBar returns nil when progress should not be drawn.
func (r *runner) progressBar(description string) *progressbar.ProgressBar {
	if r.quiet {
		return nil
	}
	f, ok := r.errOut.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(f),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
