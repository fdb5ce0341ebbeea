package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		env, err := loadDotEnv(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if len(env) != 0 {
			t.Fatalf("env = %v", env)
		}
	})
	tests := []struct {
		name    string
		content string
		want    map[string]string
		wantErr string
	}{
		{
			name:    "plain",
			content: "# comment\nHTTP=:9000\n\nLOG_LEVEL = debug\nbroken\n",
			want:    map[string]string{"HTTP": ":9000", "LOG_LEVEL": "debug"},
		},
		{
			name:    "double quoted",
			content: `REQUIRE_AUTH="true"`,
			want:    map[string]string{"REQUIRE_AUTH": "true"},
		},
		{
			name:    "single quoted",
			content: "HTTP=':9000'",
			wantErr: "single quotes",
		},
		{
			name:    "unbalanced",
			content: "HTTP=:9000'",
			wantErr: "unbalanced",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			env, err := loadDotEnv(dir)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("loadDotEnv() = %v, want error containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(env) != len(tt.want) {
				t.Fatalf("env = %v, want %v", env, tt.want)
			}
			for k, v := range tt.want {
				if env[k] != v {
					t.Errorf("env[%q] = %q, want %q", k, env[k], v)
				}
			}
		})
	}
}
