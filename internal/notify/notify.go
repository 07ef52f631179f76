// Package notify delivers ticket alerts to configured sinks. Delivery is
// best-effort: failures are logged and never affect the watch session.
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/weberkan/raywatch/internal/config"
	"github.com/weberkan/raywatch/internal/model"
)

// Alert describes one availability transition worth telling a human about.
type Alert struct {
	From       string
	To         string
	Date       string
	Wagon      model.WagonType
	Price      string
	Passengers int
	At         time.Time
}

// Title renders the alert headline.
func (a Alert) Title() string {
	return fmt.Sprintf("🚂 %s BİLET AÇILDI!", a.Wagon)
}

// Body renders the alert detail text.
func (a Alert) Body() string {
	price := a.Price
	if price == "" {
		price = "belirtilmedi"
	}
	return fmt.Sprintf("%s → %s\nTarih: %s\nVagon: %s\nYolcu: %d\nFiyat: %s",
		a.From, a.To, a.Date, a.Wagon, a.Passengers, price)
}

// Route renders the route as a single line.
func (a Alert) Route() string {
	return fmt.Sprintf("%s → %s", a.From, a.To)
}

// Notifier is one delivery sink.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a Alert) error
}

// Dispatcher fans an alert out to every configured sink.
type Dispatcher struct {
	notifiers []Notifier
	out       io.Writer
}

// NewDispatcher builds a Dispatcher over the given sinks. out receives
// operator-facing delivery reports; nil discards them.
func NewDispatcher(out io.Writer, notifiers ...Notifier) *Dispatcher {
	if out == nil {
		out = io.Discard
	}
	return &Dispatcher{notifiers: notifiers, out: out}
}

// FromConfig builds a Dispatcher from the notify section of the config,
// skipping sinks with no credentials.
func FromConfig(cfg config.Notify, out io.Writer) *Dispatcher {
	var sinks []Notifier
	if cfg.Slack.Token != "" && cfg.Slack.Channel != "" {
		sinks = append(sinks, NewSlack(cfg.Slack.Token, cfg.Slack.Channel))
	}
	if cfg.Discord.Token != "" && cfg.Discord.ChannelID != "" {
		sinks = append(sinks, NewDiscord(cfg.Discord.Token, cfg.Discord.ChannelID))
	}
	if cfg.Command != "" {
		sinks = append(sinks, &Command{Template: cfg.Command})
	}
	return NewDispatcher(out, sinks...)
}

// Dispatch delivers the alert to every sink, returning how many succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, a Alert) int {
	delivered := 0
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, a); err != nil {
			log.Printf("notify: %s delivery failed: %v", n.Name(), err)
			continue
		}
		fmt.Fprintf(d.out, "Notification delivered via %s\n", n.Name())
		delivered++
	}
	return delivered
}

// Sinks reports how many sinks are configured.
func (d *Dispatcher) Sinks() int { return len(d.notifiers) }
