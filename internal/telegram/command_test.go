// internal/telegram/command_test.go
package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantVerb  command
		wantArgs  []string
		wantKnown bool
	}{
		{
			name:      "bare known verb",
			text:      "/view_commits",
			wantVerb:  cmdViewCommits,
			wantKnown: true,
		},
		{
			name:      "verb with arguments",
			text:      "/view_commits_by_repo alice/demo 5",
			wantVerb:  cmdViewCommitsByRepo,
			wantArgs:  []string{"alice/demo", "5"},
			wantKnown: true,
		},
		{
			name:      "unknown verb",
			text:      "/frobnicate",
			wantVerb:  command("/frobnicate"),
			wantKnown: false,
		},
		{
			name:      "prefix of a known verb does not match",
			text:      "/view",
			wantVerb:  command("/view"),
			wantKnown: false,
		},
		{
			name:      "case sensitive",
			text:      "/View_Commits",
			wantVerb:  command("/View_Commits"),
			wantKnown: false,
		},
		{
			name:      "surrounding whitespace is tolerated",
			text:      "  /exit  ",
			wantVerb:  cmdExit,
			wantKnown: true,
		},
		{
			name: "blank input",
			text: "   ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verb, args, known := parseCommand(tt.text)
			assert.Equal(t, tt.wantVerb, verb)
			if len(tt.wantArgs) == 0 {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
			assert.Equal(t, tt.wantKnown, known)
		})
	}
}

func TestParseRepoRef(t *testing.T) {
	owner, name, ok := parseRepoRef("alice/demo")
	assert.True(t, ok)
	assert.Equal(t, "alice", owner)
	assert.Equal(t, "demo", name)

	owner, name, ok = parseRepoRef(" alice / demo ")
	assert.True(t, ok)
	assert.Equal(t, "alice", owner)
	assert.Equal(t, "demo", name)

	for _, bad := range []string{"alice", "alice/", "/demo", "/", ""} {
		_, _, ok := parseRepoRef(bad)
		assert.False(t, ok, "ref %q", bad)
	}
}

func TestParsePage(t *testing.T) {
	offset, limit := parsePage(nil)
	assert.Equal(t, 0, offset)
	assert.Equal(t, defaultPageSize, limit)

	offset, limit = parsePage([]string{"10"})
	assert.Equal(t, 10, offset)
	assert.Equal(t, defaultPageSize, limit)

	offset, limit = parsePage([]string{"10", "3"})
	assert.Equal(t, 10, offset)
	assert.Equal(t, 3, limit)

	offset, limit = parsePage([]string{"junk", "-1"})
	assert.Equal(t, 0, offset)
	assert.Equal(t, defaultPageSize, limit)
}
