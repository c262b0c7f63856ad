package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		expectedOutput string
		expectError    bool
	}{
		{
			name:           "help flag",
			args:           []string{"--help"},
			expectedOutput: "EventOps server",
		},
		{
			name:           "short help flag",
			args:           []string{"-h"},
			expectedOutput: "EventOps server",
		},
		{
			name:           "invalid flag",
			args:           []string{"--invalid-flag"},
			expectedOutput: "unknown flag: --invalid-flag",
			expectError:    true,
		},
		{
			name:           "serve flags on root",
			args:           []string{"--help"},
			expectedOutput: "--port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := execute(t, tt.args...)

			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !strings.Contains(output, tt.expectedOutput) {
				t.Errorf("expected output to contain %q, got:\n%s", tt.expectedOutput, output)
			}
		})
	}
}

func TestRootCommandPersistentFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, flag := range []string{"config", "log-level", "log-format"} {
		if f := cmd.PersistentFlags().Lookup(flag); f == nil {
			t.Errorf("expected persistent flag %q to be defined", flag)
		}
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	expected := []string{"serve", "version", "healthcheck", "migrate", "history", "access", "token"}
	for _, name := range expected {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected subcommand %q to be registered", name)
		}
	}
}

func TestNestedSubcommands(t *testing.T) {
	tests := []struct {
		path []string
	}{
		{path: []string{"migrate", "up"}},
		{path: []string{"migrate", "down"}},
		{path: []string{"migrate", "status"}},
		{path: []string{"history", "prune"}},
		{path: []string{"history", "list"}},
		{path: []string{"access", "presets"}},
		{path: []string{"access", "grant"}},
		{path: []string{"access", "apply-preset"}},
		{path: []string{"token", "issue"}},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(strings.Join(tt.path, " "), func(t *testing.T) {
			found, _, err := root.Find(tt.path)
			if err != nil {
				t.Fatalf("Find(%v): %v", tt.path, err)
			}
			if found.Name() != tt.path[len(tt.path)-1] {
				t.Errorf("Find(%v) = %q", tt.path, found.Name())
			}
		})
	}
}
