package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner executes the OCR engine. Tests swap in a stub.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

// maxLoggedStderr caps how much engine chatter ends up in one log line.
const maxLoggedStderr = 8 << 10

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	started := time.Now()
	err := cmd.Run()
	attrs := []any{
		"cmd", name,
		"args", strings.Join(args, " "),
		"duration_ms", time.Since(started).Milliseconds(),
	}

	switch {
	case err == nil:
		// tesseract prints resolution estimates and similar notes on stderr for good runs
		r.logger.Debug("engine run ok", append(attrs, "stdout_bytes", stdout.Len(), "stderr_bytes", stderr.Len())...)
	case engineMissing(err):
		r.logger.Error("engine binary not found", append(attrs, "error", err)...)
	case ctx.Err() != nil:
		r.logger.Warn("engine run cut short", append(attrs, "error", ctx.Err())...)
	default:
		r.logger.Error("engine run failed", append(attrs, "error", err, "stderr", truncate(stderr.String(), maxLoggedStderr))...)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
