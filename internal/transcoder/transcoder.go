package transcoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-converter/internal/engine"
	"media-converter/internal/filesystem"
	"media-converter/internal/logging"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
)

var log = logging.Component("ffmpeg")

var (
	commandContext = exec.CommandContext
	lookPath       = exec.LookPath
)

// LockFileName is the flock file kept in the working directory while an
// engine is loaded. It is not a working storage entry.
const LockFileName = ".engine.lock"

const stderrTail = 20

var (
	// ErrInvalidName is returned for working storage names that are not a
	// plain file name.
	ErrInvalidName = errors.New("invalid working storage name")

	// ErrWorkspaceBusy is returned when another process holds the working
	// directory lock.
	ErrWorkspaceBusy = errors.New("working directory is locked by another process")
)

// Options configures the ffmpeg engine.
type Options struct {
	// Binary is the ffmpeg executable name or path.
	Binary string
	// WorkDir is the working storage namespace. It is locked for the
	// lifetime of the loaded engine.
	WorkDir string
	// ProbeTimeout bounds the version probe run during Load.
	ProbeTimeout time.Duration
}

// DefaultOptions returns options using ffmpeg from PATH.
func DefaultOptions(workDir string) Options {
	return Options{
		Binary:       "ffmpeg",
		WorkDir:      workDir,
		ProbeTimeout: 10 * time.Second,
	}
}

// Loader loads the ffmpeg engine. It implements engine.Loader.
type Loader struct {
	opts Options
}

// NewLoader creates a Loader.
func NewLoader(opts Options) *Loader {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 10 * time.Second
	}
	return &Loader{opts: opts}
}

// Load resolves the ffmpeg binary, checks that it runs and claims the
// working directory.
func (l *Loader) Load(ctx context.Context) (engine.Engine, error) {
	binary, err := lookPath(l.opts.Binary)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, l.opts.ProbeTimeout)
	defer cancel()

	version, err := probeVersion(probeCtx, binary)
	if err != nil {
		return nil, err
	}
	log.Info("using %s (%s)", binary, version)

	lock, err := openWorkspace(l.opts.WorkDir)
	if err != nil {
		return nil, err
	}

	return &Transcoder{
		binary:  binary,
		version: version,
		dir:     l.opts.WorkDir,
		lock:    lock,
	}, nil
}

// Version runs the version probe without claiming a working directory.
func Version(ctx context.Context, binary string) (string, error) {
	resolved, err := lookPath(binary)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w", err)
	}
	return probeVersion(ctx, resolved)
}

func probeVersion(ctx context.Context, binary string) (string, error) {
	cmd := commandContext(ctx, binary, "-hide_banner", "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get ffmpeg version: %w", err)
	}
	line, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(line), nil
}

// openWorkspace creates and locks the working directory and removes entries
// left behind by a previous process.
func openWorkspace(dir string) (*flock.Flock, error) {
	if dir == "" {
		return nil, fmt.Errorf("working directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire working directory lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceBusy, dir)
	}

	if freed, err := clearDir(dir); err != nil {
		log.Warn("failed to clear stale working files: %v", err)
	} else if freed > 0 {
		log.Info("removed stale working files (%s)", humanize.Bytes(uint64(freed)))
	}
	return lock, nil
}

// Transcoder is a loaded ffmpeg engine bound to a locked working directory.
type Transcoder struct {
	binary  string
	version string
	dir     string
	lock    *flock.Flock

	processMu sync.Mutex
	process   *exec.Cmd
}

// Version returns the first line of `ffmpeg -version`.
func (t *Transcoder) Version() string {
	return t.version
}

func (t *Transcoder) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || name == LockFileName || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(t.dir, name), nil
}

// WriteFile stores data under name in working storage.
func (t *Transcoder) WriteFile(ctx context.Context, name string, data []byte) error {
	p, err := t.path(name)
	if err != nil {
		return err
	}
	if err := filesystem.WriteFile(ctx, p, data, 0o600, filesystem.DefaultRetryConfig()); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// ReadFile returns the content stored under name.
func (t *Transcoder) ReadFile(ctx context.Context, name string) ([]byte, error) {
	p, err := t.path(name)
	if err != nil {
		return nil, err
	}
	data, err := filesystem.ReadFile(ctx, p, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// DeleteFile removes name from working storage. The returned error wraps
// fs.ErrNotExist when the entry is absent.
func (t *Transcoder) DeleteFile(ctx context.Context, name string) error {
	p, err := t.path(name)
	if err != nil {
		return err
	}
	if err := filesystem.Remove(ctx, p, filesystem.DefaultRetryConfig()); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Files lists working storage entries in name order.
func (t *Transcoder) Files(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, fmt.Errorf("list working directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name() == LockFileName {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Exec runs ffmpeg with args inside the working directory. Progress is
// derived from the input duration on stderr and out_time on the -progress
// stream, and reported as a ratio clamped to [0,1].
func (t *Transcoder) Exec(ctx context.Context, args []string, progress engine.ProgressFunc) error {
	full := append([]string{"-hide_banner", "-nostdin", "-y", "-nostats", "-progress", "pipe:1"}, args...)
	cmd := commandContext(ctx, t.binary, full...)
	cmd.Dir = t.dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	log.Debug("exec %s %s", t.binary, strings.Join(full, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	t.processMu.Lock()
	t.process = cmd
	t.processMu.Unlock()
	defer func() {
		t.processMu.Lock()
		t.process = nil
		t.processMu.Unlock()
	}()

	var totalMicros atomic.Int64
	tail := newLineTail(stderrTail)
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanLines(stderr, func(line string) {
			if d, ok := parseDurationLine(line); ok && totalMicros.Load() == 0 {
				totalMicros.Store(d)
			}
			tail.add(line)
			log.Debug("%s", line)
		})
	}()

	scanLines(stdout, func(line string) {
		if progress == nil {
			return
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// Both keys carry microseconds.
			us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			total := totalMicros.Load()
			if err != nil || total <= 0 {
				return
			}
			progress(clampRatio(float64(us) / float64(total)))
		case "progress":
			if strings.TrimSpace(value) == "end" {
				progress(1)
			}
		}
	})

	<-stderrDone
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("ffmpeg stderr: %s", tail.String())
		return fmt.Errorf("transcoding error: %w: %s", err, tail.last())
	}
	return nil
}

// Close kills a running ffmpeg process, clears working storage and releases
// the directory lock.
func (t *Transcoder) Close() error {
	t.processMu.Lock()
	if t.process != nil && t.process.Process != nil {
		log.Info("killing running ffmpeg process")
		if err := t.process.Process.Kill(); err != nil {
			log.Warn("failed to kill ffmpeg process: %v", err)
		}
	}
	t.processMu.Unlock()

	if _, err := clearDir(t.dir); err != nil {
		log.Warn("failed to clear working directory: %v", err)
	}
	if err := t.lock.Unlock(); err != nil {
		return fmt.Errorf("release working directory lock: %w", err)
	}
	return nil
}

// clearDir removes every entry of dir except the lock file and returns the
// number of bytes freed.
func clearDir(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var freed int64
	for _, entry := range entries {
		if entry.Name() == LockFileName {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if info, err := entry.Info(); err == nil && !info.IsDir() {
			freed += info.Size()
		}
		if err := os.RemoveAll(path); err != nil {
			log.Warn("failed to remove %s: %v", path, err)
		}
	}
	return freed, nil
}

func scanLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanCRLF)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			fn(line)
		}
	}
	// Drain so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// scanCRLF splits on \n and on bare \r, which ffmpeg uses for status lines.
func scanCRLF(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// parseDurationLine extracts the input duration in microseconds from a
// line such as "Duration: 00:01:02.50, start: 0.000000, bitrate: 1205 kb/s".
func parseDurationLine(line string) (int64, bool) {
	_, rest, ok := strings.Cut(line, "Duration:")
	if !ok {
		return 0, false
	}
	clock, _, _ := strings.Cut(strings.TrimSpace(rest), ",")
	return parseClock(clock)
}

// parseClock converts HH:MM:SS(.frac) into microseconds.
func parseClock(s string) (int64, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, false
	}
	total := float64(hours*3600+minutes*60)*1e6 + seconds*1e6
	if total <= 0 {
		return 0, false
	}
	return int64(total), true
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	default:
		return r
	}
}

// lineTail keeps the last n lines written by ffmpeg for error reporting.
type lineTail struct {
	mu    sync.Mutex
	n     int
	lines []string
}

func newLineTail(n int) *lineTail {
	return &lineTail{n: n}
}

func (l *lineTail) add(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
	if len(l.lines) > l.n {
		l.lines = l.lines[len(l.lines)-l.n:]
	}
}

func (l *lineTail) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return ""
	}
	return l.lines[len(l.lines)-1]
}

func (l *lineTail) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}
