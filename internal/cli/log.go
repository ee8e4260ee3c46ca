package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// slowAfter is how long an operation may take before its completion is
// logged at info level instead of debug.
const slowAfter = 5 * time.Second

// newLogger returns the CLI logger. Timestamps read like "14:32:01.45".
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress times one backend operation.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with keyvals and the elapsed time. Slow operations are
// logged at info so they show up without -v.
func (p *progress) done(msg string, keyvals ...any) {
	elapsed := time.Since(p.start)
	keyvals = append(keyvals, "elapsed", elapsed.Round(time.Millisecond))
	if elapsed >= slowAfter {
		p.logger.Info(msg, keyvals...)
		return
	}
	p.logger.Debug(msg, keyvals...)
}
