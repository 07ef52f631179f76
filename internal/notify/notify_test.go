package notify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"

	"github.com/weberkan/raywatch/internal/config"
	"github.com/weberkan/raywatch/internal/model"
)

func testAlert() Alert {
	return Alert{
		From: "Ankara", To: "Konya", Date: "2026-01-20",
		Wagon: model.WagonBusiness, Price: "450TL", Passengers: 1,
		At: time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC),
	}
}

func TestAlertRendering(t *testing.T) {
	a := testAlert()
	if a.Title() != "🚂 BUSINESS BİLET AÇILDI!" {
		t.Errorf("Title = %q", a.Title())
	}
	if a.Route() != "Ankara → Konya" {
		t.Errorf("Route = %q", a.Route())
	}
	body := a.Body()
	for _, want := range []string{"Ankara → Konya", "Tarih: 2026-01-20", "Vagon: BUSINESS", "Yolcu: 1", "Fiyat: 450TL"} {
		if !strings.Contains(body, want) {
			t.Errorf("Body missing %q:\n%s", want, body)
		}
	}

	a.Price = ""
	if !strings.Contains(a.Body(), "Fiyat: belirtilmedi") {
		t.Errorf("empty price should render as belirtilmedi:\n%s", a.Body())
	}
}

type recordingNotifier struct {
	name   string
	err    error
	alerts []Alert
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Notify(ctx context.Context, a Alert) error {
	if r.err != nil {
		return r.err
	}
	r.alerts = append(r.alerts, a)
	return nil
}

func TestDispatchIsBestEffort(t *testing.T) {
	good := &recordingNotifier{name: "good"}
	bad := &recordingNotifier{name: "bad", err: errors.New("gateway down")}
	good2 := &recordingNotifier{name: "good2"}

	out := &bytes.Buffer{}
	d := NewDispatcher(out, good, bad, good2)

	delivered := d.Dispatch(context.Background(), testAlert())
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
	if len(good.alerts) != 1 || len(good2.alerts) != 1 {
		t.Error("a failing sink must not stop the others")
	}
	report := out.String()
	if !strings.Contains(report, "delivered via good") || strings.Contains(report, "delivered via bad") {
		t.Errorf("delivery report = %q", report)
	}
}

func TestFromConfig(t *testing.T) {
	d := FromConfig(config.Notify{}, nil)
	if d.Sinks() != 0 {
		t.Errorf("empty config should yield no sinks, got %d", d.Sinks())
	}

	d = FromConfig(config.Notify{
		Slack:   config.SlackNotify{Token: "xoxb-test", Channel: "#trains"},
		Discord: config.DiscordNotify{Token: "bot-token", ChannelID: "123"},
		Command: "true",
	}, nil)
	if d.Sinks() != 3 {
		t.Errorf("got %d sinks, want 3", d.Sinks())
	}

	// Half-configured sinks are skipped rather than failing at send time.
	d = FromConfig(config.Notify{Slack: config.SlackNotify{Token: "xoxb-test"}}, nil)
	if d.Sinks() != 0 {
		t.Errorf("slack without a channel should be skipped, got %d sinks", d.Sinks())
	}
}

func TestCommandNotifier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert.txt")
	c := &Command{Template: "printf '%s|%s' '{{.Wagon}}' '{{.Price}}' > " + path}

	if err := c.Notify(context.Background(), testAlert()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "BUSINESS|450TL" {
		t.Errorf("command output = %q", data)
	}
}

func TestCommandNotifierFailure(t *testing.T) {
	c := &Command{Template: "exit 3"}
	if err := c.Notify(context.Background(), testAlert()); err == nil {
		t.Error("expected error from failing command")
	}
}

type fakeSlack struct {
	channel string
	options int
	err     error
}

func (f *fakeSlack) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	f.channel = channelID
	f.options = len(options)
	return "", "", f.err
}

func TestSlackNotifier(t *testing.T) {
	fake := &fakeSlack{}
	s := &Slack{client: fake, channel: "#trains"}

	if err := s.Notify(context.Background(), testAlert()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if fake.channel != "#trains" {
		t.Errorf("channel = %q", fake.channel)
	}
	if fake.options != 2 {
		t.Errorf("got %d message options, want text and attachment", fake.options)
	}

	fake.err = errors.New("rate limited")
	if err := s.Notify(context.Background(), testAlert()); err == nil {
		t.Error("expected error")
	}
}

type fakeDiscord struct {
	opens   int
	openErr error
	channel string
	embed   *discordgo.MessageEmbed
	sendErr error
}

func (f *fakeDiscord) Open() error {
	f.opens++
	return f.openErr
}

func (f *fakeDiscord) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channel = channelID
	f.embed = embed
	return nil, f.sendErr
}

func TestDiscordNotifierOpensOnce(t *testing.T) {
	fake := &fakeDiscord{}
	d := &Discord{sess: fake, channelID: "123"}

	for i := 0; i < 2; i++ {
		if err := d.Notify(context.Background(), testAlert()); err != nil {
			t.Fatalf("Notify #%d: %v", i+1, err)
		}
	}
	if fake.opens != 1 {
		t.Errorf("session opened %d times, want 1", fake.opens)
	}
	if fake.channel != "123" {
		t.Errorf("channel = %q", fake.channel)
	}
	if fake.embed == nil || !strings.Contains(fake.embed.Title, "BİLET AÇILDI") {
		t.Errorf("embed = %+v", fake.embed)
	}
}

func TestDiscordNotifierOpenFailure(t *testing.T) {
	fake := &fakeDiscord{openErr: errors.New("gateway unreachable")}
	d := &Discord{sess: fake, channelID: "123"}

	if err := d.Notify(context.Background(), testAlert()); err == nil {
		t.Error("expected open error")
	}
	// A failed open must be retried on the next alert.
	fake.openErr = nil
	if err := d.Notify(context.Background(), testAlert()); err != nil {
		t.Errorf("Notify after recovery: %v", err)
	}
}
