// Package log provides structured logging for Warden using zerolog.
//
// The root logger starts as a no-op and is built once via Init by the
// host process; subsystems derive their loggers with WithComponent and
// stamp them with a client identity via WithClient, which renders the
// id as its hex content hash rather than the caller-chosen path bytes.
// Secret-bearing values are never passed to these loggers directly;
// types that carry plaintext implement zerolog.LogObjectMarshaler to
// render a fixed "<redacted>" placeholder instead (see pkg/memory).
package log
