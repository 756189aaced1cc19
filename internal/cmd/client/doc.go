// Package client provides the `zmod` command-line client.
//
// The CLI talks to the zmod HTTP API to inspect and operate the log
// store from a terminal. It is primarily intended for developers and
// operators.
//
// Installation
//
//	go install github.com/Ovyl/zmod/cmd/zmod@latest
//
// Or build from this repo and use the embedded `zmod` binary.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. When using the standalone binary, it is
// read from the ZMOD_HTTP environment variable and defaults to
// http://127.0.0.1:8080.
//
// Usage
//
//	zmod logs status
//	zmod logs levels
//	zmod logs set-level dbg
//
//	# Stream stored records to stdout or a file
//	zmod logs export
//	zmod logs export -o capture.log
//	zmod logs export --zstd -o capture.log.zst
//
//	# Erase every stored record (requires --confirm)
//	zmod logs clear --confirm
//
//	zmod settings list
//	zmod settings reset
//	zmod settings reset --all
//
// Notes
//
//   - export prints the export session id on stderr so redirecting
//     stdout to a file keeps the capture clean.
//   - export --zstd without --output decompresses for the terminal;
//     with --output the file keeps the compressed bytes.
package client
