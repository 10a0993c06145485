// Package media converts still images to JPEG.
//
// HEIC/HEIF decoding goes through libvips (govips), which must be started
// once with InitVips. When libvips is not initialized, Converter falls back
// to the Go image decoders (JPEG, PNG, GIF, WebP) via imaging; that path
// cannot read HEIC and exists so the pipeline degrades with a clear error
// instead of crashing.
package media
