package middleware

import (
	"net"
	"net/http"
	"time"

	"oaiserver/internal/platform/logger"
	pnet "oaiserver/internal/platform/net"
)

// AccessLogOptions configures the zerolog access log
type AccessLogOptions struct {
	// Slow marks requests taking >= Slow as warn level, 0 disables slow marking
	Slow time.Duration
	// Observe, when set, receives every finished request; used for metrics
	Observe func(r *http.Request, status int, elapsed time.Duration)
}

// captureWriter records status and bytes written
type captureWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	n, err := cw.ResponseWriter.Write(b)
	cw.bytes += n
	return n, err
}

// Harvester stores the caller address and request id on the context so
// request scoped loggers and the harvest log can pick them up
func Harvester() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			ctx := pnet.WithHarvester(r.Context(), host)
			ctx = logger.WithRequest(ctx, pnet.RequestID(ctx))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessLogZerolog logs method, path, verb, status, elapsed, and bytes written
func AccessLogZerolog(opt AccessLogOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(cw, r)

			elapsed := time.Since(start)
			log := logger.C(r.Context())
			evt := log.Info()
			if cw.status >= http.StatusInternalServerError {
				evt = log.Error()
			} else if opt.Slow > 0 && elapsed >= opt.Slow {
				evt = log.Warn()
			}
			evt.Int("status", cw.status).
				Dur("elapsed", elapsed).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("verb", r.URL.Query().Get("verb")).
				Str("harvester", pnet.Harvester(r.Context())).
				Int("bytes", cw.bytes).
				Msg("request done")
			if opt.Observe != nil {
				opt.Observe(r, cw.status, elapsed)
			}
		})
	}
}
