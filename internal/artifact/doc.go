// Package artifact keeps converted outputs in memory behind revocable
// identities.
//
// A Store maps "blob:<uuid>" identities to payloads so the HTTP bridge can
// serve downloads. A Handle owns the single artifact of the current
// conversion: wrapping a new output revokes the previous one first, so
// repeated conversions never accumulate blobs.
package artifact
