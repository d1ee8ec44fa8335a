package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// burstMultiplier controls the token bucket burst size relative to the
// per-second rate. A 2x burst lets a short-lived saving be spent on the
// next read/write without reducing sustained throughput below the
// configured limit.
const burstMultiplier = 2

// BandwidthLimiter rate-limits the aggregate bytes moved through every
// session sharing it: one limiter is installed per direction (upload,
// download) at the engine level and its Wrap* methods are applied to
// every session's socket reader/writer.
type BandwidthLimiter struct {
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewBandwidthLimiter creates a limiter from a human string like "5MB/s"
// or "100KiB/s". Returns nil, nil for "0" or "" (unlimited).
func NewBandwidthLimiter(limit string, logger *slog.Logger) (*BandwidthLimiter, error) {
	bytesPerSec, err := parseBandwidthRate(limit)
	if err != nil {
		return nil, fmt.Errorf("bandwidth: parse limit %q: %w", limit, err)
	}
	if bytesPerSec == 0 {
		return nil, nil //nolint:nilnil // nil limiter means unlimited; Wrap* are nil-safe
	}

	burst := int(bytesPerSec) * burstMultiplier
	limiter := rate.NewLimiter(rate.Limit(bytesPerSec), burst)
	logger.Info("bandwidth: limiter created", "bytes_per_sec", bytesPerSec, "burst", burst)

	return &BandwidthLimiter{limiter: limiter, logger: logger}, nil
}

func parseBandwidthRate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	normalized := s
	if strings.HasSuffix(strings.ToLower(normalized), "/s") {
		normalized = normalized[:len(normalized)-len("/s")]
	}
	return parseSize(normalized)
}

// parseSize converts a size string with an optional decimal (KB, MB, GB,
// TB) or binary (KiB, MiB, GiB, TiB) suffix into bytes. A bare number is
// raw bytes.
func parseSize(s string) (int64, error) {
	const (
		kilobyte = 1000
		megabyte = 1000 * kilobyte
		gigabyte = 1000 * megabyte
		terabyte = 1000 * gigabyte

		kibibyte = 1024
		mebibyte = 1024 * kibibyte
		gibibyte = 1024 * mebibyte
		tebibyte = 1024 * gibibyte
	)
	suffixes := []struct {
		suffix     string
		multiplier int64
	}{
		{"TIB", tebibyte}, {"GIB", gibibyte}, {"MIB", mebibyte}, {"KIB", kibibyte},
		{"TB", terabyte}, {"GB", gigabyte}, {"MB", megabyte}, {"KB", kilobyte},
		{"B", 1},
	}

	upper := strings.ToUpper(s)
	for _, sf := range suffixes {
		if strings.HasSuffix(upper, sf.suffix) {
			numStr := strings.TrimSpace(s[:len(s)-len(sf.suffix)])
			n, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size %q: %w", s, err)
			}
			if n < 0 {
				return 0, fmt.Errorf("invalid size %q: must be non-negative", s)
			}
			return int64(n * float64(sf.multiplier)), nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid size %q: must be non-negative", s)
	}
	return n, nil
}

// WrapReader returns a rate-limited io.Reader, or r unchanged if bl is nil.
func (bl *BandwidthLimiter) WrapReader(ctx context.Context, r io.Reader) io.Reader {
	if bl == nil {
		return r
	}
	return &rateLimitedReader{r: r, limiter: bl.limiter, ctx: ctx}
}

// WrapWriter returns a rate-limited io.Writer, or w unchanged if bl is nil.
func (bl *BandwidthLimiter) WrapWriter(ctx context.Context, w io.Writer) io.Writer {
	if bl == nil {
		return w
	}
	return &rateLimitedWriter{w: w, limiter: bl.limiter, ctx: ctx}
}

type rateLimitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

func (r *rateLimitedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if waitErr := waitN(r.limiter, r.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}

type rateLimitedWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

func (w *rateLimitedWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if n > 0 {
		if waitErr := waitN(w.limiter, w.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}

// waitN splits a request exceeding the burst size into burst-sized
// chunks, since rate.Limiter.WaitN rejects requests larger than burst.
func waitN(limiter *rate.Limiter, ctx context.Context, n int) error {
	burst := limiter.Burst()
	for n > 0 {
		take := n
		if take > burst {
			take = burst
		}
		if err := limiter.WaitN(ctx, take); err != nil {
			return err
		}
		n -= take
	}
	return nil
}
