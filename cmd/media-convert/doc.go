// Command media-convert converts files from the command line with the same
// pipelines the server uses.
//
//	media-convert IMG_0001.HEIC clip.mov
//	media-convert --mode video --output out/ *.MOV
//	media-convert check
//
// Files are converted one at a time. The mode is detected from the file
// extension unless --mode is set. A progress bar is drawn for video jobs
// when stderr is a terminal.
//
// Configuration is read like the server's (defaults, then the TOML file
// given by --config or CONFIG_FILE, then environment variables); only
// language, ffmpeg_path and work_dir matter here.
//
// The command exits non-zero when any file fails.
package main
