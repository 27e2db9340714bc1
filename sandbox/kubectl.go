package sandbox

import (
	"bytes"
	"context"
	"os/exec"
)

// kubectlRun invokes the cluster CLI. It forbids cwd entirely — cluster
// operations are never filesystem-scoped.
func (s *Sandbox) kubectlRun(ctx context.Context, args map[string]any) map[string]any {
	if _, hasCwd := args["cwd"]; hasCwd {
		return errResult("kubectl.run: cwd is not permitted")
	}

	cmd := exec.CommandContext(ctx, "kubectl", stringSliceArg(args, "args")...)
	cmd.Env = envFromMap(stringMapArg(args, "env"))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	code := 0
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if runErr != nil {
		return errResult("kubectl.run: %s", runErr)
	}

	return map[string]any{
		"ok":     code == 0,
		"stdout": stdout.String(),
		"stderr": stderr.String(),
		"code":   code,
	}
}
