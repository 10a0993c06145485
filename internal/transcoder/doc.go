// Package transcoder provides the ffmpeg-backed codec engine.
//
// Loading resolves the ffmpeg binary, checks that it runs (`ffmpeg -version`)
// and claims a working directory with a file lock, so two processes never
// share the reserved input/output names. The working directory is the
// engine's storage namespace: WriteFile, ReadFile, DeleteFile and Files
// operate on plain names inside it, and Exec runs ffmpeg with that directory
// as its current directory.
//
// Progress is computed from the "Duration:" line ffmpeg prints on stderr and
// the out_time values of `-progress pipe:1`, and reported as a ratio in
// [0,1].
//
// FFmpeg must be installed and available in PATH, or configured explicitly
// through Options.Binary.
package transcoder
