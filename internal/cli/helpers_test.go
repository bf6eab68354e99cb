package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/nestwrite/internal/config"
)

var (
	schemaDir    = filepath.Join("..", "..", "testdata", "schema")
	scenariosDir = filepath.Join("..", "..", "testdata", "scenarios")
)

// execute runs the root command with args against an isolated environment.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)

	cmd := newRootCommand(&RootOptions{Config: cfg})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)

	err = cmd.Execute()
	return out.String(), err
}

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
