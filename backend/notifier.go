package backend

import (
	"context"
	"fmt"
	"io"
	"strings"
)

type Notifier interface {
	// Notify is called once per run with every update the run found, possibly
	// none.
	Notify(ctx context.Context, updates []Update) error
}

const noUpdatesReport = "No updates\n"

// FormatReport renders one line per update.
func FormatReport(updates []Update) string {
	var sb strings.Builder
	for _, u := range updates {
		switch u.Kind {
		case FirstCheck:
			fmt.Fprintf(&sb, "FirstCheck for %s\n", u.Feed.URL)
		case Title:
			fmt.Fprintf(&sb, "Title updated for %s\n", u.Feed.URL)
		case NewArticle:
			fmt.Fprintf(&sb, "NewArticle at %s\n", u.Feed.URL)
		case LastArticle:
			fmt.Fprintf(&sb, "LastArticle updated at %s\n", u.Feed.URL)
		}
	}
	return sb.String()
}

type StdoutNotifier struct {
	Out         io.Writer
	NotifyEmpty bool
}

func (n *StdoutNotifier) Notify(ctx context.Context, updates []Update) error {
	report := FormatReport(updates)
	if report == "" {
		if !n.NotifyEmpty {
			return nil
		}
		report = noUpdatesReport
	}

	_, err := io.WriteString(n.Out, report)
	return err
}

type Mailer interface {
	SendReport(to, subject, body string) error
}

type MailNotifier struct {
	Mailer      Mailer
	To          string
	Subject     string
	NotifyEmpty bool
}

func (n *MailNotifier) Notify(ctx context.Context, updates []Update) error {
	report := FormatReport(updates)
	if report == "" {
		if !n.NotifyEmpty {
			return nil
		}
		report = noUpdatesReport
	}

	subject := n.Subject
	if subject == "" {
		subject = "New blog posts"
	}

	return n.Mailer.SendReport(n.To, subject, report)
}
