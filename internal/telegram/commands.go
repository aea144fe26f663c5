// internal/telegram/commands.go
package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github-commit-relay/internal/apperr"
	"github-commit-relay/internal/github"
	"github-commit-relay/internal/model"
)

const defaultPageSize = 5

// dispatchCommand executes one parsed command. A command always
// supersedes whatever multi-turn flow was pending for the user.
func (d *Dispatcher) dispatchCommand(ctx context.Context, from requester, verb command, args []string) {
	isSuperAdmin, isAuth := d.roleOf(ctx, from)

	switch verb {
	case cmdExit:
		d.sessions.Clear(from.userID)

	case cmdStart:
		d.cmdStart(ctx, from, isSuperAdmin)

	case cmdStop:
		// Group-only verb; in a private chat it is not part of the grammar.
		d.sessions.Clear(from.userID)
		d.reply(from.chatID, "Unknown command: "+string(verb))

	case cmdListGithubAccount:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.sessions.Clear(from.userID)
		d.cmdListGithubAccounts(ctx, from)

	case cmdAddGithubAccount:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.prompt(from, verb, "Type github access token to add or type 'exit' to cancel.")

	case cmdRemoveGithubAccount:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.prompt(from, verb, "Type github name to remove or type 'exit' to cancel.")

	case cmdListAddedRepo:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.sessions.Clear(from.userID)
		d.cmdListAddedRepos(ctx, from)

	case cmdAddRepo:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.prompt(from, verb, "Type [Github Username]/[Repository Name] to add or type 'exit' to cancel.")

	case cmdRemoveRepo:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.prompt(from, verb, "Type [Github Username]/[Repository Name] to remove or type 'exit' to cancel.")

	case cmdListAuthUser:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.sessions.Clear(from.userID)
		d.cmdListUsers(ctx, from, model.RoleAuth)

	case cmdAddAuthUser:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.prompt(from, verb, "Type Telegram Username to add or type 'exit' to cancel.")

	case cmdRemoveAuthUser:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.prompt(from, verb, "Type Telegram Username to remove or type 'exit' to cancel.")

	case cmdListNotifyUser:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.sessions.Clear(from.userID)
		d.cmdListUsers(ctx, from, model.RoleNotify)

	case cmdAddNotifyUser:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.prompt(from, verb, "Type Telegram Username to add or type 'exit' to cancel.")

	case cmdRemoveNotifyUser:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.prompt(from, verb, "Type Telegram Username to remove or type 'exit' to cancel.")

	case cmdViewCommits:
		if !isAuth {
			d.denied(from)
			return
		}
		d.sessions.Clear(from.userID)
		offset, limit := parsePage(args)
		commits, err := d.store.ListCommits(ctx, offset, limit)
		if err != nil {
			d.logger.Error("Failed to list commits", "error", err)
			return
		}
		more := fmt.Sprintf("%s %d", cmdViewCommits, offset+limit)
		d.sendCommitPage(from, "Recent commits:\n", commits, true, offset, limit, more)

	case cmdViewCommitsByRepo:
		if !isAuth {
			d.denied(from)
			return
		}
		if len(args) == 0 {
			d.prompt(from, verb, "Type [Github Username]/[Repository Name] to list most commits or type 'exit' to cancel.")
			return
		}
		d.sessions.Clear(from.userID)
		owner, name, ok := parseRepoRef(args[0])
		if !ok {
			d.reply(from.chatID, "Invalid value. Try again or type 'exit' to cancel.")
			return
		}
		offset, limit := parsePage(args[1:])
		commits, err := d.store.ListCommitsByRepo(ctx, owner, name, offset, limit)
		if err != nil {
			d.logger.Error("Failed to list commits", "owner", owner, "repo", name, "error", err)
			return
		}
		header := fmt.Sprintf("Recent commits on %s/%s\n", owner, name)
		more := fmt.Sprintf("%s %s/%s %d", cmdViewCommitsByRepo, owner, name, offset+limit)
		d.sendCommitPage(from, header, commits, false, offset, limit, more)
	}
}

// cmdStart registers a superadmin's private chat or refreshes the chat
// identifier of an already known user. Anyone else is ignored.
func (d *Dispatcher) cmdStart(ctx context.Context, from requester, isSuperAdmin bool) {
	chat, err := d.store.GetChatByName(ctx, from.username)
	switch {
	case apperr.IsNotFound(err):
		if !isSuperAdmin {
			return
		}
		err := d.store.InsertChat(ctx, model.Chat{ChatID: from.chatID, Name: from.username, Role: model.RoleAdmin})
		if err != nil && !apperr.IsDuplicate(err) {
			d.logger.Error("Failed to register chat", "username", from.username, "error", err)
			return
		}
		d.reply(from.chatID, "Welcome!")
	case err != nil:
		d.logger.Error("Failed to look chat up", "username", from.username, "error", err)
	case chat.ChatID != from.chatID:
		if err := d.store.UpdateChatID(ctx, from.username, from.chatID); err != nil {
			d.logger.Error("Failed to update chat id", "username", from.username, "error", err)
			return
		}
		d.reply(from.chatID, "Welcome!")
	}
}

// cmdListGithubAccounts lists registered accounts and flags identity
// mismatches between the stored name and the login the token resolves to.
func (d *Dispatcher) cmdListGithubAccounts(ctx context.Context, from requester) {
	accounts, err := d.store.ListAccounts(ctx)
	if err != nil {
		d.logger.Error("Failed to list accounts", "error", err)
		return
	}
	if len(accounts) == 0 {
		d.reply(from.chatID, "No github account registered.")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d github accounts:\n", len(accounts))
	for _, account := range accounts {
		sb.WriteString("\n" + account.Name)
		login, err := d.newClient(account.Token).AuthenticatedLogin(ctx)
		if err != nil {
			d.logger.Error("Failed to resolve account identity", "account", account.Name, "error", err)
			continue
		}
		if login != account.Name {
			fmt.Fprintf(&sb, " (username does not match: %s)", login)
		}
	}
	d.reply(from.chatID, sb.String())
}

func (d *Dispatcher) cmdListAddedRepos(ctx context.Context, from requester) {
	repos, err := d.store.ListRepositories(ctx)
	if err != nil {
		d.logger.Error("Failed to list repositories", "error", err)
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d repositories added:\n", len(repos))
	for _, repo := range repos {
		sb.WriteString("\n" + repo.FullName())
	}
	d.reply(from.chatID, sb.String())
}

func (d *Dispatcher) cmdListUsers(ctx context.Context, from requester, role model.Role) {
	chats, err := d.store.ListChatsByRole(ctx, role)
	if err != nil {
		d.logger.Error("Failed to list users", "role", role, "error", err)
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d users:\n", len(chats))
	for _, chat := range chats {
		sb.WriteString("\n" + chat.Name)
	}
	d.reply(from.chatID, sb.String())
}

// dispatchArgument handles the free-text second phase of a multi-turn
// command. The role is re-checked here; privileges never carry over from
// the phase that created the session.
func (d *Dispatcher) dispatchArgument(ctx context.Context, from requester, pending command, text string) {
	isSuperAdmin, isAuth := d.roleOf(ctx, from)

	switch pending {
	case cmdAddGithubAccount:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.argAddGithubAccount(ctx, from, strings.TrimSpace(text))

	case cmdRemoveGithubAccount:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.sessions.Clear(from.userID)
		name := strings.TrimSpace(text)
		deleted, err := d.store.DeleteAccountByName(ctx, name)
		if err != nil {
			d.logger.Error("Failed to remove account", "account", name, "error", err)
			return
		}
		if !deleted {
			d.reply(from.chatID, fmt.Sprintf("Github account '%s' does not exist.", name))
			return
		}
		d.reply(from.chatID, "Successfully removed.")

	case cmdAddRepo:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.argAddRepo(ctx, from, text)

	case cmdRemoveRepo:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		owner, name, ok := parseRepoRef(text)
		if !ok {
			d.reply(from.chatID, "Invalid value. Try again or type 'exit' to cancel.")
			return
		}
		d.sessions.Clear(from.userID)
		deleted, err := d.store.DeleteRepository(ctx, owner, name)
		if err != nil {
			d.logger.Error("Failed to remove repository", "owner", owner, "repo", name, "error", err)
			return
		}
		if !deleted {
			d.reply(from.chatID, fmt.Sprintf("Repository '%s/%s' does not exist.", owner, name))
			return
		}
		d.reply(from.chatID, "Successfully removed.")

	case cmdAddAuthUser:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.argAddUser(ctx, from, strings.TrimSpace(text), model.RoleAuth)

	case cmdRemoveAuthUser:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.argRemoveUser(ctx, from, strings.TrimSpace(text), model.RoleAuth)

	case cmdAddNotifyUser:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.argAddUser(ctx, from, strings.TrimSpace(text), model.RoleNotify)

	case cmdRemoveNotifyUser:
		if !isSuperAdmin {
			d.denied(from)
			return
		}
		d.argRemoveUser(ctx, from, strings.TrimSpace(text), model.RoleNotify)

	case cmdViewCommitsByRepo:
		if !isAuth {
			d.denied(from)
			return
		}
		owner, name, ok := parseRepoRef(text)
		if !ok {
			d.reply(from.chatID, "Invalid value. Try again or type 'exit' to cancel.")
			return
		}
		d.sessions.Clear(from.userID)
		commits, err := d.store.ListCommitsByRepo(ctx, owner, name, 0, defaultPageSize)
		if err != nil {
			d.logger.Error("Failed to list commits", "owner", owner, "repo", name, "error", err)
			return
		}
		header := fmt.Sprintf("Recent commits on %s/%s\n", owner, name)
		more := fmt.Sprintf("%s %s/%s %d", cmdViewCommitsByRepo, owner, name, defaultPageSize)
		d.sendCommitPage(from, header, commits, false, 0, defaultPageSize, more)

	default:
		d.sessions.Clear(from.userID)
	}
}

// argAddGithubAccount validates a token, resolves the login it belongs
// to and registers the account under that login.
func (d *Dispatcher) argAddGithubAccount(ctx context.Context, from requester, token string) {
	_, err := d.store.GetAccountByToken(ctx, token)
	switch {
	case err == nil:
		d.sessions.Clear(from.userID)
		d.reply(from.chatID, "Already added.")
		return
	case !apperr.IsNotFound(err):
		d.logger.Error("Failed to look account up", "error", err)
		return
	}

	login, err := d.newClient(token).AuthenticatedLogin(ctx)
	if err != nil {
		d.sessions.Clear(from.userID)
		d.reply(from.chatID, "Failed to add github account: "+err.Error())
		return
	}
	err = d.store.InsertAccount(ctx, model.Account{Name: login, Token: token})
	switch {
	case apperr.IsDuplicate(err):
		d.sessions.Clear(from.userID)
		d.reply(from.chatID, "Already added.")
	case err != nil:
		d.sessions.Clear(from.userID)
		d.reply(from.chatID, "Failed to add github account: "+err.Error())
	default:
		d.sessions.Clear(from.userID)
		d.reply(from.chatID, fmt.Sprintf("Successfully added '%s'.", login))
	}
}

// argAddRepo verifies the owner has a registered account and the
// repository exists upstream before watching it. Recoverable mistakes
// keep the flow open for another try.
func (d *Dispatcher) argAddRepo(ctx context.Context, from requester, text string) {
	owner, name, ok := parseRepoRef(text)
	if !ok {
		d.reply(from.chatID, "Invalid value. Try again or type 'exit' to cancel.")
		return
	}

	account, err := d.store.GetAccountByName(ctx, owner)
	if apperr.IsNotFound(err) {
		d.reply(from.chatID, fmt.Sprintf("Github token for repository '%s/%s' does not registered. Try again or type 'exit' to cancel.", owner, name))
		return
	}
	if err != nil {
		d.logger.Error("Failed to look account up", "account", owner, "error", err)
		return
	}

	if _, err := d.newClient(account.Token).GetRepository(ctx, owner, name); err != nil {
		if github.IsNotFound(err) {
			d.logger.Warn("Repository not found upstream", "owner", owner, "repo", name)
			d.reply(from.chatID, fmt.Sprintf("Repository '%s/%s' does not exist. Try again or type 'exit' to cancel.", owner, name))
			return
		}
		d.logger.Error("Failed to get repository", "owner", owner, "repo", name, "error", err)
		d.sessions.Clear(from.userID)
		d.reply(from.chatID, fmt.Sprintf("Failed to add repository '%s/%s'\n%s", owner, name, err.Error()))
		return
	}

	err = d.store.InsertRepository(ctx, model.Repository{Account: owner, Name: name, AddedBy: from.username})
	switch {
	case apperr.IsDuplicate(err):
		d.sessions.Clear(from.userID)
		d.reply(from.chatID, fmt.Sprintf("Repository '%s/%s' already added.", owner, name))
	case err != nil:
		d.sessions.Clear(from.userID)
		d.reply(from.chatID, fmt.Sprintf("Failed to add repository '%s/%s'\n%s", owner, name, err.Error()))
	default:
		d.sessions.Clear(from.userID)
		d.reply(from.chatID, "Successfully added.")
	}
}

func (d *Dispatcher) argAddUser(ctx context.Context, from requester, name string, role model.Role) {
	d.sessions.Clear(from.userID)
	err := d.store.InsertChat(ctx, model.Chat{Name: name, Role: role})
	switch {
	case apperr.IsDuplicate(err):
		d.reply(from.chatID, fmt.Sprintf("Telegram User '%s' already added.", name))
	case err != nil:
		d.reply(from.chatID, fmt.Sprintf("Failed to add Telegram User '%s'\n%s", name, err.Error()))
	default:
		d.reply(from.chatID, "Successfully added.")
	}
}

func (d *Dispatcher) argRemoveUser(ctx context.Context, from requester, name string, role model.Role) {
	d.sessions.Clear(from.userID)
	chat, err := d.store.GetChatByName(ctx, name)
	if apperr.IsNotFound(err) {
		d.reply(from.chatID, fmt.Sprintf("Telegram User '%s' does not exist.", name))
		return
	}
	if err != nil {
		d.logger.Error("Failed to look user up", "name", name, "error", err)
		return
	}
	if chat.Role != role {
		d.reply(from.chatID, fmt.Sprintf("'%s' is not %s user.", name, role))
		return
	}
	deleted, err := d.store.DeleteChatByName(ctx, name)
	if err != nil {
		d.logger.Error("Failed to remove user", "name", name, "error", err)
		return
	}
	if !deleted {
		d.reply(from.chatID, fmt.Sprintf("Telegram User '%s' does not exist.", name))
		return
	}
	d.reply(from.chatID, "Successfully deleted.")
}

// sendCommitPage renders one page of commit history. A full page carries
// a "More..." button re-invoking the command at offset+limit, a short
// page is plain, an empty page is a plain "No commit." / "No more
// commit." reply.
func (d *Dispatcher) sendCommitPage(from requester, header string, commits []model.Commit, withRepo bool, offset, limit int, moreCallback string) {
	if len(commits) == 0 {
		if offset > 0 {
			d.reply(from.chatID, "No more commit.")
		} else {
			d.reply(from.chatID, "No commit.")
		}
		return
	}

	var sb strings.Builder
	if len(commits) >= limit {
		sb.WriteString(header)
	} else {
		moreCallback = ""
	}
	for _, c := range commits {
		sb.WriteString(formatCommitLine(c, withRepo))
	}
	if err := d.sender.SendList(from.chatID, sb.String(), moreCallback); err != nil {
		d.logger.Error("Failed to send commit page", "chat_id", from.chatID, "error", err)
	}
}

func formatCommitLine(c model.Commit, withRepo bool) string {
	var sb strings.Builder
	sb.WriteString("\n" + c.CommittedAt.Format("2006-01-02 15:04") + "    ")
	if withRepo {
		sb.WriteString(c.Account + "/" + c.Repo + "    ")
	}
	fmt.Fprintf(&sb, "%s    <a href=%q>%s</a>\n<pre>    %s</pre>",
		c.Committer, c.URL, c.ShortSHA(), html.EscapeString(c.Message))
	return sb.String()
}
