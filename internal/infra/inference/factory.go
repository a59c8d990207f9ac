package inference

import (
	"log/slog"

	"pablos-ai/internal/config"
)

// New returns the stub client when cfg.UseMock is set, otherwise a network
// client over cfg.Endpoints.
func New(cfg *config.InferenceConfig, opts ...Option) (Service, error) {
	if cfg != nil && cfg.UseMock {
		o := options{logger: slog.Default()}
		for _, opt := range opts {
			opt(&o)
		}
		o.logger.Warn("inference client running in mock mode")
		return NewStubClient(o.logger), nil
	}

	client, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}
