package middleware

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

// Logger logs only slow or failed requests. Chat polling would otherwise
// drown the access log.
func Logger(slow time.Duration) fiber.Handler {
	return logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		Output: &filteredWriter{
			dest:             os.Stdout,
			slowThreshold:    slow,
			errorStatusFloor: 400,
		},
	})
}

// filteredWriter discards lines of the form
//
//	"15:04:05 | 200 | 1.23ms | GET /path\n"
//
// unless the status is an error or the latency reaches slowThreshold.
type filteredWriter struct {
	dest             io.Writer
	slowThreshold    time.Duration
	errorStatusFloor int
}

func (w *filteredWriter) Write(p []byte) (n int, err error) {
	parts := strings.Split(string(p), " | ")
	if len(parts) < 3 {
		return w.dest.Write(p)
	}

	status, _ := strconv.Atoi(strings.TrimSpace(parts[1]))
	if status >= w.errorStatusFloor {
		return w.dest.Write(p)
	}

	latency, perr := time.ParseDuration(strings.TrimSpace(parts[2]))
	if perr == nil && latency >= w.slowThreshold {
		return w.dest.Write(p)
	}
	return len(p), nil
}
