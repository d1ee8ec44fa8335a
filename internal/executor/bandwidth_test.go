package executor

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseBandwidthRateValid(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"0", 0},
		{"", 0},
		{"5MB/s", 5_000_000},
		{"100KB/s", 100_000},
		{"1GB/s", 1_000_000_000},
		{"10MiB/s", 10_485_760},
		{"1024", 1024},
		{"5MB", 5_000_000},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := parseBandwidthRate(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseBandwidthRateInvalid(t *testing.T) {
	for _, input := range []string{"abc", "-1MB/s", "not-a-number/s"} {
		t.Run(input, func(t *testing.T) {
			_, err := parseBandwidthRate(input)
			assert.Error(t, err)
		})
	}
}

func TestNewBandwidthLimiterUnlimited(t *testing.T) {
	bl, err := NewBandwidthLimiter("0", testLogger(t))
	require.NoError(t, err)
	assert.Nil(t, bl)
}

func TestBandwidthLimiterWrapReaderUnlimitedPassesThrough(t *testing.T) {
	var bl *BandwidthLimiter
	r := bl.WrapReader(context.Background(), strings.NewReader("hello"))
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestBandwidthLimiterWrapWriterLimited(t *testing.T) {
	bl, err := NewBandwidthLimiter("1000000B/s", testLogger(t))
	require.NoError(t, err)
	require.NotNil(t, bl)

	var buf bytes.Buffer
	w := bl.WrapWriter(context.Background(), &buf)
	n, err := w.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, "hello world", buf.String())
}
