// internal/telegram/dispatcher.go
package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github-commit-relay/internal/apperr"
	"github-commit-relay/internal/github"
	"github-commit-relay/internal/model"
)

// Registry is the subset of the store the dispatcher reads and writes.
// Commit rows are read-only here; only the syncer writes them.
type Registry interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
	GetAccountByName(ctx context.Context, name string) (model.Account, error)
	GetAccountByToken(ctx context.Context, token string) (model.Account, error)
	InsertAccount(ctx context.Context, a model.Account) error
	DeleteAccountByName(ctx context.Context, name string) (bool, error)

	ListRepositories(ctx context.Context) ([]model.Repository, error)
	InsertRepository(ctx context.Context, r model.Repository) error
	DeleteRepository(ctx context.Context, account, name string) (bool, error)

	GetChatByID(ctx context.Context, chatID int64) (model.Chat, error)
	GetChatByName(ctx context.Context, name string) (model.Chat, error)
	ListChatsByRole(ctx context.Context, role model.Role) ([]model.Chat, error)
	InsertChat(ctx context.Context, c model.Chat) error
	UpdateChatID(ctx context.Context, name string, chatID int64) error
	UpdateChatName(ctx context.Context, chatID int64, name string) error
	DeleteChatByID(ctx context.Context, chatID int64) (bool, error)
	DeleteChatByName(ctx context.Context, name string) (bool, error)

	ListCommits(ctx context.Context, offset, limit int) ([]model.Commit, error)
	ListCommitsByRepo(ctx context.Context, account, repo string, offset, limit int) ([]model.Commit, error)
}

// HostClient is the slice of the source-host API the dispatcher needs to
// validate tokens and repositories.
type HostClient interface {
	AuthenticatedLogin(ctx context.Context) (string, error)
	GetRepository(ctx context.Context, owner, name string) (github.Repository, error)
}

// ClientFactory builds a HostClient for one account token.
type ClientFactory func(token string) HostClient

// ChatSender is what the dispatcher needs from the Bot to reply.
type ChatSender interface {
	SendPlain(chatID int64, text string) error
	SendList(chatID int64, text string, moreCallback string) error
	AnswerCallback(callbackID string) error
}

// Dispatcher parses incoming chat updates, applies role gating, drives
// single-shot and multi-turn commands, and issues on-demand queries
// against stored commits. Updates may be handled concurrently; the
// session store is the only shared mutable state and synchronizes
// itself.
type Dispatcher struct {
	store       Registry
	newClient   ClientFactory
	sender      ChatSender
	sessions    *SessionStore
	superAdmins map[string]bool
	botName     string
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher. botName is the bot's own username,
// used to recognize group-addressed commands.
func NewDispatcher(store Registry, newClient ClientFactory, sender ChatSender, sessions *SessionStore, superAdmins []string, botName string, logger *slog.Logger) *Dispatcher {
	admins := make(map[string]bool, len(superAdmins))
	for _, name := range superAdmins {
		admins[name] = true
	}
	return &Dispatcher{
		store:       store,
		newClient:   newClient,
		sender:      sender,
		sessions:    sessions,
		superAdmins: admins,
		botName:     botName,
		logger:      logger,
	}
}

// Run consumes the update channel until it closes, handling each update
// on its own goroutine. The chat platform gives no single-threaded
// delivery guarantee, and neither do we.
func (d *Dispatcher) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		go d.HandleUpdate(ctx, update)
	}
}

// sender identity of one inbound update.
type requester struct {
	chatID   int64
	userID   int64
	username string
}

// HandleUpdate processes one inbound update. Nothing propagates past
// this boundary: unexpected panics are logged and the update is dropped.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Update handler panicked", "panic", r)
		}
	}()

	switch {
	case update.Message != nil && update.Message.Text != "":
		msg := update.Message
		from := requester{
			chatID:   msg.Chat.ID,
			userID:   msg.From.ID,
			username: msg.From.UserName,
		}
		d.logger.Debug("Message received", "text", msg.Text, "from", from.username, "chat_id", from.chatID)
		if msg.Chat.IsPrivate() {
			d.handleText(ctx, from, msg.Text)
		} else if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
			d.handleGroup(ctx, from, msg.Chat, msg.Text)
		}

	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		cb := update.CallbackQuery
		if err := d.sender.AnswerCallback(cb.ID); err != nil {
			d.logger.Error("Failed to answer callback", "error", err)
		}
		from := requester{
			chatID:   cb.Message.Chat.ID,
			userID:   cb.From.ID,
			username: cb.From.UserName,
		}
		d.logger.Debug("Callback received", "data", cb.Data, "from", from.username, "chat_id", from.chatID)
		// Callback data re-enters the same command grammar.
		d.handleText(ctx, from, cb.Data)
	}
}

// handleGroup processes a message in a group or supergroup. Only
// bot-addressed /start and /stop are honored there, and only from
// superadmins; everything else is group chatter.
func (d *Dispatcher) handleGroup(ctx context.Context, from requester, chat *tgbotapi.Chat, text string) {
	suffix := "@" + d.botName
	if !strings.HasPrefix(text, "/") || !strings.HasSuffix(text, suffix) {
		return
	}
	if !d.superAdmins[from.username] {
		return
	}
	chatName := chat.UserName
	if chatName == "" {
		chatName = chat.Title
	}
	switch command(strings.TrimSuffix(text, suffix)) {
	case cmdStart:
		existing, err := d.store.GetChatByID(ctx, from.chatID)
		switch {
		case apperr.IsNotFound(err):
			err := d.store.InsertChat(ctx, model.Chat{ChatID: from.chatID, Name: chatName, Role: model.RoleGroup})
			if err != nil && !apperr.IsDuplicate(err) {
				d.logger.Error("Failed to register group chat", "chat_id", from.chatID, "error", err)
				return
			}
		case err != nil:
			d.logger.Error("Failed to look group chat up", "chat_id", from.chatID, "error", err)
			return
		case existing.Name != chatName:
			if err := d.store.UpdateChatName(ctx, from.chatID, chatName); err != nil {
				d.logger.Error("Failed to rename group chat", "chat_id", from.chatID, "error", err)
				return
			}
		}
		d.reply(from.chatID, "Welcome!")
	case cmdStop:
		if _, err := d.store.DeleteChatByID(ctx, from.chatID); err != nil {
			d.logger.Error("Failed to unregister group chat", "chat_id", from.chatID, "error", err)
			return
		}
		d.reply(from.chatID, "Bye!")
	}
}

// handleText drives the per-user state machine for private messages and
// callback data: commands dispatch immediately (abandoning any pending
// flow), other text is the argument of the pending multi-turn command.
func (d *Dispatcher) handleText(ctx context.Context, from requester, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "/") {
		verb, args, known := parseCommand(text)
		if !known {
			d.sessions.Clear(from.userID)
			d.reply(from.chatID, "Unknown command: "+string(verb))
			return
		}
		d.dispatchCommand(ctx, from, verb, args)
		return
	}

	pending, ok := d.sessions.Pending(from.userID)
	if !ok {
		return
	}
	if text == "exit" {
		d.sessions.Clear(from.userID)
		return
	}
	d.dispatchArgument(ctx, from, pending, text)
}

// roleOf recomputes the requester's effective role. Never cached:
// superadmin status comes from configuration, everything else from the
// chat registry, per message.
func (d *Dispatcher) roleOf(ctx context.Context, from requester) (isSuperAdmin, isAuth bool) {
	isSuperAdmin = d.superAdmins[from.username]
	if isSuperAdmin {
		return true, true
	}
	chat, err := d.store.GetChatByName(ctx, from.username)
	if err != nil {
		if !apperr.IsNotFound(err) {
			d.logger.Error("Failed to look requester up", "username", from.username, "error", err)
		}
		return false, false
	}
	return false, chat.Role == model.RoleAuth
}

// denied replies "Permission denied." and clears any pending flow so no
// stale state survives the refusal.
func (d *Dispatcher) denied(from requester) {
	d.sessions.Clear(from.userID)
	d.reply(from.chatID, "Permission denied.")
}

// reply sends a plain-text reply, logging delivery failures.
func (d *Dispatcher) reply(chatID int64, text string) {
	if err := d.sender.SendPlain(chatID, text); err != nil {
		d.logger.Error("Failed to send reply", "chat_id", chatID, "error", err)
	}
}

// prompt sends the follow-up prompt of a multi-turn command and records
// the pending state.
func (d *Dispatcher) prompt(from requester, cmd command, text string) {
	d.sessions.Set(from.userID, cmd)
	d.reply(from.chatID, text)
}

// parseRepoRef splits an 'owner/name' reference.
func parseRepoRef(s string) (owner, name string, ok bool) {
	owner, name, ok = strings.Cut(s, "/")
	owner = strings.TrimSpace(owner)
	name = strings.TrimSpace(name)
	if !ok || owner == "" || name == "" {
		return "", "", false
	}
	return owner, name, true
}

// parsePage reads optional offset and limit arguments, keeping the
// defaults when an argument is absent or malformed.
func parsePage(args []string) (offset, limit int) {
	offset, limit = 0, defaultPageSize
	if len(args) >= 1 {
		if v, err := strconv.Atoi(args[0]); err == nil && v >= 0 {
			offset = v
		}
	}
	if len(args) >= 2 {
		if v, err := strconv.Atoi(args[1]); err == nil && v > 0 {
			limit = v
		}
	}
	return offset, limit
}
