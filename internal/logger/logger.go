package logger

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "dex-client"

// New builds a logger for the given stage and level. The "prod" and
// "production" stages get JSON output with ISO8601 timestamps; every other
// stage gets the colored development console.
func New(stage, level string) (*zap.Logger, error) {
	var config zap.Config
	switch stage {
	case "prod", "production", "release":
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	config.InitialFields = map[string]any{
		"service": serviceName,
		"stage":   stage,
	}

	return config.Build()
}

// RequestLogger is a chi middleware that logs one line per request
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				}
				switch {
				case ww.Status() >= http.StatusInternalServerError:
					log.Error("request", fields...)
				case ww.Status() >= http.StatusBadRequest:
					log.Warn("request", fields...)
				default:
					log.Info("request", fields...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
