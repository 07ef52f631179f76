package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Command runs a shell command template for each alert. Placeholders
// {{.Title}}, {{.Body}}, {{.Route}}, {{.Date}}, {{.Wagon}}, and
// {{.Price}} are replaced with alert values.
type Command struct {
	Template string
}

// Name implements Notifier.
func (c *Command) Name() string { return "command" }

// Notify implements Notifier.
func (c *Command) Notify(ctx context.Context, a Alert) error {
	if c.Template == "" {
		return nil
	}
	cmdStr := templateAlert(c.Template, a)
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify: command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// templateAlert replaces placeholders in the command template with alert values.
func templateAlert(command string, a Alert) string {
	r := strings.NewReplacer(
		"{{.Title}}", a.Title(),
		"{{.Body}}", a.Body(),
		"{{.Route}}", a.Route(),
		"{{.Date}}", a.Date,
		"{{.Wagon}}", string(a.Wagon),
		"{{.Price}}", a.Price,
	)
	return r.Replace(command)
}
