// Package engine owns the lifecycle of the heavyweight video codec engine.
//
// A Handle moves through Unloaded → Loading → Loaded. Loading happens at most
// once at a time: concurrent EnsureLoaded calls attach to the pending load
// instead of starting a second one, and a failed load returns the handle to
// Unloaded so the next request can try again.
//
// The Engine interface is the contract a loaded engine offers to the
// conversion core: a private working-storage namespace (WriteFile, ReadFile,
// DeleteFile, Files) and Exec with a progress callback. The ffmpeg-backed
// implementation lives in package transcoder.
package engine
