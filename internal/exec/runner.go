// Package exec provides a testable command execution abstraction.
// The sync executor depends on Runner instead of calling exec.Command
// directly, so runs can be mocked in tests.
package exec

import (
	"context"
	osexec "os/exec"
)

// Runner defines the interface for executing external commands.
type Runner interface {
	// Run executes a command and returns combined stdout/stderr.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunInDir executes a command in a specific directory.
	RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// OSRunner implements Runner using os/exec.
type OSRunner struct {
	// Env overrides environment variables (nil = inherit from parent)
	Env []string
}

// NewOSRunner creates a new OS-based command runner.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

// Run executes a command and returns combined output.
func (r *OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	if r.Env != nil {
		cmd.Env = r.Env
	}
	return cmd.CombinedOutput()
}

// RunInDir executes a command in a specific directory.
func (r *OSRunner) RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if r.Env != nil {
		cmd.Env = r.Env
	}
	return cmd.CombinedOutput()
}

// MockRunner implements Runner for testing.
type MockRunner struct {
	// Calls records all command invocations
	Calls []MockCall

	// Responses maps a full command string ("name arg1 arg2") to a
	// response. Unmatched commands succeed with empty output.
	Responses map[string]MockResponse
}

// MockCall records a single command invocation.
type MockCall struct {
	Name string
	Args []string
	Dir  string
}

// MockResponse defines the response for a mocked command.
type MockResponse struct {
	Output []byte
	Err    error
}

// NewMockRunner creates a new mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		Responses: make(map[string]MockResponse),
	}
}

// AddResponse sets the response for a command string.
func (m *MockRunner) AddResponse(command string, resp MockResponse) {
	m.Responses[command] = resp
}

func (m *MockRunner) respond(name string, args []string, dir string) ([]byte, error) {
	m.Calls = append(m.Calls, MockCall{Name: name, Args: args, Dir: dir})

	key := name
	for _, a := range args {
		key += " " + a
	}
	if resp, ok := m.Responses[key]; ok {
		return resp.Output, resp.Err
	}
	return nil, nil
}

func (m *MockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return m.respond(name, args, "")
}

func (m *MockRunner) RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	return m.respond(name, args, dir)
}
