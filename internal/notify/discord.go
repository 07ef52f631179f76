package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the discordgo methods we use, enabling test mocks.
type discordSession interface {
	Open() error
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts ticket alerts to a Discord channel as an embed.
type Discord struct {
	mu        sync.Mutex
	sess      discordSession
	channelID string
	token     string
	opened    bool
}

// NewDiscord returns a Discord notifier using a bot token.
func NewDiscord(token, channelID string) *Discord {
	return &Discord{token: token, channelID: channelID}
}

// Name implements Notifier.
func (d *Discord) Name() string { return "discord" }

// Notify implements Notifier. The session is opened lazily on first use
// so that an unreachable Discord gateway never delays worker startup.
func (d *Discord) Notify(ctx context.Context, a Alert) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}
	embed := &discordgo.MessageEmbed{
		Title:       a.Title(),
		Description: a.Body(),
		Color:       0x36a64f,
	}
	if _, err := d.sess.ChannelMessageSendEmbed(d.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	return nil
}

func (d *Discord) ensureOpen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		return nil
	}
	if d.sess == nil {
		sess, err := discordgo.New("Bot " + d.token)
		if err != nil {
			return fmt.Errorf("notify: discord session: %w", err)
		}
		d.sess = sess
	}
	if err := d.sess.Open(); err != nil {
		return fmt.Errorf("notify: discord open: %w", err)
	}
	d.opened = true
	return nil
}
