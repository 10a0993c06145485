/*
Package conversion runs single-file HEIC to JPEG and MOV to MP4 conversions.

An Orchestrator owns one job at a time. Submitting a file, resetting or
switching modes discards whatever job is current, releases its artifact and
returns to idle. Each job moves through

	idle -> validating -> [preparing] -> running -> succeeded | failed

where preparing (video only) loads the shared engine and waits for an
abandoned video job to give back the engine's working names. Every step is
published on an EventBus in order; events of one job never interleave with
another's.

Reset does not interrupt work already handed to the engine. Background
completions carry their job ID and are dropped when that job is no longer
current, so a slow abandoned conversion cannot overwrite a newer one.
*/
package conversion
