// Package notify delivers price-drop alerts. Transports are fire-and-forget
// from the orchestrator's point of view: a failed delivery is logged and
// swallowed, never failing the price observation that triggered it.
package notify

import (
	"context"

	"mkessler/pricewatch/logger"
	"mkessler/pricewatch/pkg/errors"
)

// Notifier delivers a single alert to one surface.
type Notifier interface {
	Send(ctx context.Context, title, message string) error
	// Channel names the transport for logging.
	Channel() string
}

// Dispatcher fans one alert out to all configured transports. Failures are
// logged with the item name and swallowed.
type Dispatcher struct {
	transports []Notifier
}

// NewDispatcher creates a dispatcher over the given transports.
func NewDispatcher(transports ...Notifier) *Dispatcher {
	return &Dispatcher{transports: transports}
}

// Dispatch sends the alert on every transport once.
func (d *Dispatcher) Dispatch(ctx context.Context, item, title, message string) {
	log := logger.ForNotifier()
	for _, t := range d.transports {
		if err := t.Send(ctx, title, message); err != nil {
			terr := errors.NewTransport(item, t.Channel(), err)
			log.Warn().Err(terr).Str("item", item).Str("channel", t.Channel()).Msg("notification delivery failed")
			continue
		}
		log.Info().Str("item", item).Str("channel", t.Channel()).Msg("notification sent")
	}
}
