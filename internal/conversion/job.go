package conversion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"media-converter/internal/artifact"
	"media-converter/internal/engine"
	"media-converter/internal/mediatypes"
)

const (
	// ImageQuality is the JPEG quality ratio used for every image job.
	ImageQuality = 0.8

	// Reserved names in the engine's working storage.
	InputName  = "input.mov"
	OutputName = "output.mp4"
)

// SourceFile is a user-selected file. It is not modified after submission.
type SourceFile struct {
	Name string
	Type string
	Data []byte
}

// Job is a snapshot of one conversion.
type Job struct {
	ID         string             `json:"id,omitempty"`
	Mode       mediatypes.Mode    `json:"mode"`
	Status     Status             `json:"status"`
	SourceName string             `json:"sourceName,omitempty"`
	SourceType string             `json:"sourceType,omitempty"`
	SourceSize int64              `json:"sourceSize,omitempty"`
	Progress   int                `json:"progress"`
	Artifact   *artifact.Artifact `json:"artifact,omitempty"`
	ErrorKind  ErrorKind          `json:"errorKind,omitempty"`
	Message    string             `json:"message,omitempty"`
	StartedAt  time.Time          `json:"startedAt,omitzero"`
	FinishedAt time.Time          `json:"finishedAt,omitzero"`
}

// ImageConverter encodes a still image as JPEG. quality is a ratio in (0,1].
type ImageConverter interface {
	ToJPEG(ctx context.Context, data []byte, quality float64) ([]byte, error)
}

// EngineHandle provides the shared video engine.
type EngineHandle interface {
	EnsureLoaded(ctx context.Context) (engine.Engine, error)
	Warmup()
	State() engine.State
}

// videoPipeline owns the engine's reserved working names. A job abandoned
// by reset may still be inside the engine; the mutex keeps the next job
// from writing the same names until it has cleaned up.
type videoPipeline struct {
	mu sync.Mutex
}

// errAbandoned is returned by videoPipeline.run when begin reports that
// the job was reset while it waited for the working names.
var errAbandoned = errors.New("job abandoned before transcoding")

// run transcodes data through the reserved working names. begin is called
// once the names are free and before anything is written; returning false
// gives them back untouched.
func (p *videoPipeline) run(ctx context.Context, eng engine.Engine, data []byte, begin func() bool, progress engine.ProgressFunc) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if begin != nil && !begin() {
		return nil, errAbandoned
	}
	defer cleanupWorkingFiles(ctx, eng)

	if err := eng.WriteFile(ctx, InputName, data); err != nil {
		return nil, err
	}
	if err := eng.Exec(ctx, []string{"-i", InputName, OutputName}, progress); err != nil {
		return nil, err
	}
	out, err := eng.ReadFile(ctx, OutputName)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("engine produced an empty output")
	}
	return out, nil
}

func cleanupWorkingFiles(ctx context.Context, eng engine.Engine) {
	ctx = context.WithoutCancel(ctx)
	for _, name := range []string{InputName, OutputName} {
		if err := eng.DeleteFile(ctx, name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("failed to remove working file %s: %v", name, err)
		}
	}
}

// convertImage runs the single-shot image transform.
func convertImage(ctx context.Context, images ImageConverter, data []byte) ([]byte, error) {
	out, err := images.ToJPEG(ctx, data, ImageQuality)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("encoder produced an empty image")
	}
	return out, nil
}
