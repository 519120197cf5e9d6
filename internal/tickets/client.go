package tickets

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/history"
)

// Ticket is the reference returned by the external helpdesk.
type Ticket struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// CreateRequest carries everything the helpdesk needs to open a ticket.
type CreateRequest struct {
	UserID      string
	SessionID   string
	Description string
	History     []history.Turn
	Agent       string
}

// Creator opens tickets in the external helpdesk.
type Creator interface {
	Create(ctx context.Context, req CreateRequest) (Ticket, error)
}

// CreatorConfig selects the helpdesk implementation.
type CreatorConfig struct {
	URL      string
	Database string
	Username string
	Password string
}

// NewCreator returns the Odoo client when a URL is configured, a mock
// otherwise.
func NewCreator(cfg CreatorConfig, logger *logrus.Logger) Creator {
	if cfg.URL == "" {
		logger.Warn("no helpdesk URL configured, using mock ticket creator")
		return NewMockCreator()
	}
	return NewOdooCreator(cfg, logger)
}
