// internal/config/config_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuperAdminList(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"single name", "root", []string{"root"}},
		{"comma separated", "root,alice", []string{"root", "alice"}},
		{"semicolon separated", "root;alice", []string{"root", "alice"}},
		{"mixed separators with spaces", " root , @alice ; bob ", []string{"root", "alice", "bob"}},
		{"at prefix stripped", "@root", []string{"root"}},
		{"empty entries dropped", "root,,;", []string{"root"}},
		{"empty value", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{SuperAdmins: tt.value}
			assert.Equal(t, tt.want, cfg.SuperAdminList())
		})
	}
}
