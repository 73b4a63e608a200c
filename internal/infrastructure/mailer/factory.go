package mailer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/config"
)

// New returns the mailer selected by cfg.Provider
func New(cfg config.MailerConfig, logger *zap.Logger) (commerce.OrderMailer, error) {
	switch cfg.Provider {
	case "", "log":
		return NewLogMailer(cfg.From, logger.Named("mailer")), nil
	case "http":
		m, err := NewHTTPMailer(cfg.Endpoint, cfg.APIKey, cfg.From, cfg.Timeout, logger.Named("mailer"))
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("mailer: unknown provider %q", cfg.Provider)
	}
}
