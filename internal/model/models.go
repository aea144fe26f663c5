// internal/model/models.go
package model

import (
	"strings"
	"time"
)

// Account is a GitHub identity whose token is used to poll the
// repositories it owns. The name is the authenticated login resolved
// from the token at registration time.
type Account struct {
	Name      string
	Token     string
	CreatedAt time.Time
}

// Repository is one watched repository, always scoped to an Account.
type Repository struct {
	Account   string
	Name      string
	AddedBy   string
	CreatedAt time.Time
}

// FullName returns the repository in 'owner/name' form.
func (r Repository) FullName() string {
	return r.Account + "/" + r.Name
}

// Commit is one stored commit. (Account, Repo, SHA) is globally unique
// and is the sole de-duplication mechanism.
type Commit struct {
	ID          int64
	Account     string
	Repo        string
	SHA         string
	Committer   string
	Branch      string
	Message     string
	URL         string
	CommittedAt time.Time
	CreatedAt   time.Time
}

// ShortSHA returns the 6-character SHA prefix used in chat messages.
func (c Commit) ShortSHA() string {
	if len(c.SHA) < 6 {
		return c.SHA
	}
	return c.SHA[:6]
}

// Title is the part of the commit message before the first blank line.
func (c Commit) Title() string {
	title, _, _ := strings.Cut(c.Message, "\n\n")
	return title
}

// Description is the part of the commit message after the first blank
// line, or empty when the message has a title only.
func (c Commit) Description() string {
	_, desc, ok := strings.Cut(c.Message, "\n\n")
	if !ok {
		return ""
	}
	return desc
}

// Role classifies a chat record. It determines command permissions and
// notification eligibility.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleAuth   Role = "auth"
	RoleNotify Role = "notify"
	RoleGroup  Role = "group"
	RoleNone   Role = ""
)

// precedence orders roles from least to most privileged. Superadmin
// status comes from configuration, not from a stored role, and always
// outranks stored roles.
var precedence = map[Role]int{
	RoleNone:   0,
	RoleNotify: 1,
	RoleGroup:  1,
	RoleAuth:   2,
	RoleAdmin:  3,
}

// Outranks reports whether r grants at least the privileges of other.
func (r Role) Outranks(other Role) bool {
	return precedence[r] >= precedence[other]
}

// Chat is a Telegram chat or user known to the relay. ChatID 0 means
// the chat was registered by name only and has not messaged the bot yet.
type Chat struct {
	Name      string
	ChatID    int64
	Role      Role
	CreatedAt time.Time
}

// NotifyEligible reports whether the chat receives commit notifications.
func (c Chat) NotifyEligible() bool {
	return c.Role == RoleNotify || c.Role == RoleGroup
}
