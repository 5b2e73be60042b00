package fetcher

import (
	"context"
	"log/slog"
	"strings"
)

// noisyMessages is cocrawler's aiohttp_errors allow-list (fetcher.py):
// transport-library noise that surfaces at Warn level deep inside the
// TLS/connection stack and then bubbles up a second time through the
// classified FetchError this package already returns. Logging it twice
// drowns out everything else.
var noisyMessages = []string{
	"SSL handshake failed",
	"SSL error errno:1 reason: CERTIFICATE_VERIFY_FAILED",
	"SSL handshake failed on verifying the certificate",
	"Fatal error on transport TCPTransport",
	"Fatal error on SSL transport",
	"SSL error errno:1 reason: UNKNOWN_PROTOCOL",
	"Future exception was never retrieved",
	"Unclosed connection",
	"SSL error errno:1 reason: TLSV1_UNRECOGNIZED_NAME",
	"SSL error errno:1 reason: SSLV3_ALERT_HANDSHAKE_FAILURE",
	"SSL error errno:1 reason: TLSV1_ALERT_INTERNAL_ERROR",
}

// noiseFilterHandler drops Warn-level records whose message contains
// one of noisyMessages, the slog equivalent of cocrawler's
// AsyncioSSLFilter/establish_filters. No library in the stack exposes
// a handler-chaining helper for this, so it is a direct slog.Handler
// wrapper rather than a port of an example dependency (see DESIGN.md).
type noiseFilterHandler struct {
	base slog.Handler
}

// InstallNoiseFilter wraps base so records matching the transport-noise
// allow-list above are dropped before reaching it.
func InstallNoiseFilter(base slog.Handler) slog.Handler {
	return &noiseFilterHandler{base: base}
}

func (h *noiseFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *noiseFilterHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level == slog.LevelWarn {
		msg := record.Message
		for _, noisy := range noisyMessages {
			if strings.Contains(msg, noisy) {
				return nil
			}
		}
	}
	return h.base.Handle(ctx, record)
}

func (h *noiseFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &noiseFilterHandler{base: h.base.WithAttrs(attrs)}
}

func (h *noiseFilterHandler) WithGroup(name string) slog.Handler {
	return &noiseFilterHandler{base: h.base.WithGroup(name)}
}
