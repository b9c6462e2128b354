package logfields

import (
	"log/slog"
	"strings"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTask       = "task"
	KeyTarget     = "target"
	KeyRunID      = "run_id"
	KeyPath       = "path"
	KeyGlob       = "glob"
	KeyDest       = "dest"
	KeyFiles      = "files"
	KeyBytes      = "bytes"
	KeyCommand    = "command"
	KeyArgs       = "args"
	KeyExitCode   = "exit_code"
	KeyAddr       = "addr"
	KeyClients    = "clients"
	KeyOp         = "op"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Task(name string) slog.Attr       { return slog.String(KeyTask, name) }
func Target(name string) slog.Attr     { return slog.String(KeyTarget, name) }
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Glob(g string) slog.Attr          { return slog.String(KeyGlob, g) }
func Dest(d string) slog.Attr          { return slog.String(KeyDest, d) }
func Files(n int) slog.Attr            { return slog.Int(KeyFiles, n) }
func Bytes(n int) slog.Attr            { return slog.Int(KeyBytes, n) }
func Command(c string) slog.Attr       { return slog.String(KeyCommand, c) }
func Args(a []string) slog.Attr        { return slog.String(KeyArgs, strings.Join(a, " ")) }
func ExitCode(c int) slog.Attr         { return slog.Int(KeyExitCode, c) }
func Addr(a string) slog.Attr          { return slog.String(KeyAddr, a) }
func Clients(n int) slog.Attr          { return slog.Int(KeyClients, n) }
func Op(o string) slog.Attr            { return slog.String(KeyOp, o) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
