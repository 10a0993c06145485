// Package mediatypes defines the conversion modes and their input/output
// contracts.
//
// It is a dependency-free foundation imported by the engine, the conversion
// core, the HTTP bridge and the CLI.
//
// # Modes
//
//	mediatypes.ModeImage // .heic/.heif or image/heic → <stem>.jpg
//	mediatypes.ModeVideo // .mov → <stem>.mp4
//
// # Validation and naming
//
//	p, _ := mediatypes.ProfileFor(mediatypes.ModeImage)
//	if p.Accepts("photo.HEIC", "") {
//	    name := p.OutputName("photo.HEIC") // "photo.jpg"
//	}
package mediatypes
