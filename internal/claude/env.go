package claude

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// fileloopTmpDir is a dedicated temp directory for Claude CLI invocations.
// A shared TMPDIR can contain editor socket files that crash the CLI in
// non-interactive mode.
var fileloopTmpDir string

func init() {
	fileloopTmpDir = filepath.Join(os.TempDir(), "fileloop-claude")
	os.MkdirAll(fileloopTmpDir, 0755)
}

// SetCleanEnv configures a command to run with an isolated TMPDIR.
func SetCleanEnv(cmd *exec.Cmd) {
	cmd.Env = os.Environ()

	for i, env := range cmd.Env {
		if strings.HasPrefix(env, "TMPDIR=") {
			cmd.Env[i] = "TMPDIR=" + fileloopTmpDir
			return
		}
	}
	cmd.Env = append(cmd.Env, "TMPDIR="+fileloopTmpDir)
}
