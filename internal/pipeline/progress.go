package pipeline

import "go.uber.org/zap"

// Observer receives download progress notifications. The pipeline invokes it
// every fifth completion and on the final one.
type Observer interface {
	Observe(completed, total int)
}

// LogObserver reports progress through the global zap logger.
type LogObserver struct{}

// Observe logs one progress line.
func (LogObserver) Observe(completed, total int) {
	pct := 0
	if total > 0 {
		pct = completed * 100 / total
	}
	zap.L().Info("download progress",
		zap.Int("completed", completed),
		zap.Int("total", total),
		zap.Int("pct", pct),
	)
}

// nopObserver is used when no observer is configured.
type nopObserver struct{}

func (nopObserver) Observe(int, int) {}
