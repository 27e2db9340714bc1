// Package sandbox is the Actor's capability-scoped tool executor: a fixed,
// allow-listed set of effectful operations (shell, HTTP, file-write,
// container-compose, cluster-CLI), each bounded to a configured root
// directory and command allow-list.
package sandbox

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/opsloop/sentinel/security"
)

// Sandbox dispatches Plan steps to the allow-listed tool implementations.
type Sandbox struct {
	root             string
	allowedCommands  map[string]bool
	defaultNamespace string
	httpClient       *http.Client
}

// Config carries the Actor's sandbox settings (mirrors config.SandboxConfig
// without importing it, so this package has no dependency on config/).
type Config struct {
	Root             string
	AllowedCommands  []string
	DefaultNamespace string
}

// New builds a Sandbox rooted at cfg.Root with cfg.AllowedCommands as the
// shell.run executable allow-list.
func New(cfg Config) *Sandbox {
	allowed := make(map[string]bool, len(cfg.AllowedCommands))
	for _, cmd := range cfg.AllowedCommands {
		allowed[cmd] = true
	}
	return &Sandbox{
		root:             cfg.Root,
		allowedCommands:  allowed,
		defaultNamespace: cfg.DefaultNamespace,
		httpClient: security.NewClient(security.ClientConfig{
			Timeout:         10 * time.Second,
			AllowPrivateIPs: true,
		}),
	}
}

// Dispatch runs one step and returns its result map, matching the
// tool-specific shapes documented in §4.6. A non-nil error is returned only
// for an unrecognized tool name — everything else (sandbox escapes, command
// failures, non-2xx responses) comes back as result["ok"]=false so the
// Actor can record it as a normal step output.
func (s *Sandbox) Dispatch(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "shell.run":
		return s.shellRun(ctx, args), nil
	case "http.request":
		return s.httpRequest(ctx, args), nil
	case "fs.write":
		return s.fsWrite(args), nil
	case "compose.run":
		return s.composeRun(ctx, args), nil
	case "kubectl.run":
		return s.kubectlRun(ctx, args), nil
	default:
		return nil, fmt.Errorf("sandbox: unknown tool %q", tool)
	}
}

func errResult(format string, args ...any) map[string]any {
	return map[string]any{"ok": false, "error": fmt.Sprintf(format, args...)}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringMapArg(args map[string]any, key string) map[string]string {
	raw, ok := args[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
