// internal/notifier/notifier.go
package notifier

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github-commit-relay/internal/apperr"
	"github-commit-relay/internal/model"
)

// ChatRegistry is the subset of the store the notifier reads recipients from.
type ChatRegistry interface {
	ListChats(ctx context.Context) ([]model.Chat, error)
	GetChatByName(ctx context.Context, name string) (model.Chat, error)
}

// Sender delivers one HTML-formatted message to a single recipient.
type Sender interface {
	SendHTML(chatID int64, text string) error
	SendHTMLByName(username string, text string) error
}

// Notifier fans a formatted message out to every eligible recipient.
// Delivery is best-effort: no retry, no ordering guarantee across
// recipients, and one failed recipient never blocks the others.
type Notifier struct {
	chats       ChatRegistry
	sender      Sender
	superAdmins []string
	logger      *slog.Logger
}

// New creates a Notifier. superAdmins are the configured Telegram
// usernames that receive every notification regardless of stored role.
func New(chats ChatRegistry, sender Sender, superAdmins []string, logger *slog.Logger) *Notifier {
	return &Notifier{
		chats:       chats,
		sender:      sender,
		superAdmins: superAdmins,
		logger:      logger,
	}
}

// Broadcast sends text to every chat with the notify or group role plus
// the configured superadmins. Recipients known only by name are
// addressed by @username until their chat identifier is learned.
func (n *Notifier) Broadcast(ctx context.Context, text string) {
	recipients := n.recipients(ctx)
	sent := 0
	for _, chat := range recipients {
		var err error
		if chat.ChatID != 0 {
			err = n.sender.SendHTML(chat.ChatID, text)
		} else {
			err = n.sender.SendHTMLByName(chat.Name, text)
		}
		if err != nil {
			n.logger.Error("Failed to deliver notification", "chat", chat.Name, "error", err)
			continue
		}
		sent++
	}
	n.logger.Debug("Notification fan-out finished", "sent", sent, "recipients", len(recipients))
}

// recipients resolves the current recipient set. A superadmin that is
// also registered with an eligible role is included once.
func (n *Notifier) recipients(ctx context.Context) []model.Chat {
	var out []model.Chat
	seen := make(map[string]bool)

	chats, err := n.chats.ListChats(ctx)
	if err != nil {
		n.logger.Error("Failed to load notification recipients", "error", err)
	}
	for _, chat := range chats {
		if !chat.NotifyEligible() {
			continue
		}
		out = append(out, chat)
		seen[chat.Name] = true
	}

	for _, name := range n.superAdmins {
		if seen[name] {
			continue
		}
		chat, err := n.chats.GetChatByName(ctx, name)
		if apperr.IsNotFound(err) {
			chat = model.Chat{Name: name}
		} else if err != nil {
			n.logger.Error("Failed to resolve superadmin chat", "name", name, "error", err)
			continue
		}
		out = append(out, chat)
		seen[name] = true
	}
	return out
}

// CommitPushed formats the per-commit notification message.
func CommitPushed(c model.Commit) string {
	msg := fmt.Sprintf(
		"*************************\n%s\n"+
			`<a href="https://github.com/%s/">%s</a> pushed to <a href="https://github.com/%s/%s/">%s/%s</a>`+
			"\n%s branch  <b>%s</b>    Click: <a href=%q>%s</a>",
		c.CommittedAt.Format("1/2/2006 Monday 03:04:05 PM"),
		c.Committer, c.Committer,
		c.Account, c.Repo, c.Account, c.Repo,
		c.Branch, html.EscapeString(c.Title()), c.URL, c.ShortSHA(),
	)
	if desc := c.Description(); desc != "" {
		msg += fmt.Sprintf("\n\n\"%s\"", html.EscapeString(desc))
	}
	msg += "\n*************************"
	return msg
}

// RepoInitialized formats the one-shot summary sent after a repository's
// first sync.
func RepoInitialized(account, repo string, inserted, branches int) string {
	return fmt.Sprintf(
		`Repository initialized:  <a href="https://github.com/%s/%s/">%s/%s</a>  (%d commits in %d branches)`,
		account, repo, account, repo, inserted, branches)
}
