// internal/telegram/command.go
package telegram

import "strings"

// command is one verb of the closed conversational grammar. Commands are
// case-sensitive and always slash-prefixed.
type command string

const (
	cmdStart               command = "/start"
	cmdStop                command = "/stop"
	cmdExit                command = "/exit"
	cmdListGithubAccount   command = "/list_github_account"
	cmdAddGithubAccount    command = "/add_github_account"
	cmdRemoveGithubAccount command = "/remove_github_account"
	cmdListAddedRepo       command = "/list_added_repo"
	cmdAddRepo             command = "/add_repo"
	cmdRemoveRepo          command = "/remove_repo"
	cmdListAuthUser        command = "/list_auth_user"
	cmdAddAuthUser         command = "/add_auth_user"
	cmdRemoveAuthUser      command = "/remove_auth_user"
	cmdListNotifyUser      command = "/list_notify_user"
	cmdAddNotifyUser       command = "/add_notify_user"
	cmdRemoveNotifyUser    command = "/remove_notify_user"
	cmdViewCommits         command = "/view_commits"
	cmdViewCommitsByRepo   command = "/view_commits_by_repo"
)

var knownCommands = map[command]bool{
	cmdStart:               true,
	cmdStop:                true,
	cmdExit:                true,
	cmdListGithubAccount:   true,
	cmdAddGithubAccount:    true,
	cmdRemoveGithubAccount: true,
	cmdListAddedRepo:       true,
	cmdAddRepo:             true,
	cmdRemoveRepo:          true,
	cmdListAuthUser:        true,
	cmdAddAuthUser:         true,
	cmdRemoveAuthUser:      true,
	cmdListNotifyUser:      true,
	cmdAddNotifyUser:       true,
	cmdRemoveNotifyUser:    true,
	cmdViewCommits:         true,
	cmdViewCommitsByRepo:   true,
}

// parseCommand tokenizes text into a verb and its argument tail and
// matches the verb against the closed command set. known is false when
// the verb is not in the set; the argument tail is returned verbatim
// (trimmed) for the handler to parse.
func parseCommand(text string) (verb command, args []string, known bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}
	verb = command(fields[0])
	return verb, fields[1:], knownCommands[verb]
}
