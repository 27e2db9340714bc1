package actor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/opsloop/sentinel/llm"
	"github.com/opsloop/sentinel/model"
	"github.com/opsloop/sentinel/plan"
)

// restartPattern and scalePattern are the Actor's deterministic
// instruction-compilation rules for the two most common remediation
// operations (§4.4 Instruction compilation, step 3a).
var (
	restartPattern = regexp.MustCompile(`(?i)restart\s+(?:the\s+)?(?:deployment\s+)?([a-zA-Z0-9-]+)(?:\s+deployment)?(?:\s+in\s+(?:the\s+)?(?:namespace\s+)?([a-zA-Z0-9-]+))?`)
	scalePattern   = regexp.MustCompile(`(?i)scale\s+(?:the\s+)?(?:deployment\s+)?([a-zA-Z0-9-]+)(?:\s+deployment)?\s+to\s+(\d+)(?:\s+replicas?)?(?:\s+in\s+(?:the\s+)?(?:namespace\s+)?([a-zA-Z0-9-]+))?`)
)

// ruleBasedCompile matches common restart/scale instructions and returns
// the action step plus its mandatory rollout-status verification step, both
// as kubectl invocations wrapped through the shell (§4.4 step 3a). ok is
// false when no rule matches.
func ruleBasedCompile(instructions, defaultNamespace string) (steps []plan.Step, ok bool) {
	if m := scalePattern.FindStringSubmatch(instructions); m != nil {
		namespace := m[3]
		if namespace == "" {
			namespace = defaultNamespace
		}
		deployment := "deployment/" + m[1]
		return []plan.Step{
			shellKubectl("scale", deployment, "--replicas="+m[2], "-n", namespace),
			shellKubectl("rollout", "status", deployment, "-n", namespace),
		}, true
	}

	if m := restartPattern.FindStringSubmatch(instructions); m != nil {
		namespace := m[2]
		if namespace == "" {
			namespace = defaultNamespace
		}
		deployment := "deployment/" + m[1]
		return []plan.Step{
			shellKubectl("rollout", "restart", deployment, "-n", namespace),
			shellKubectl("rollout", "status", deployment, "-n", namespace),
		}, true
	}

	return nil, false
}

// shellKubectl wraps a kubectl invocation as a shell.run step, per the
// literal end-to-end scenarios.
func shellKubectl(kubectlArgs ...string) plan.Step {
	return plan.Step{
		Tool: "shell.run",
		Args: map[string]any{
			"cmd":  "cmd",
			"args": append([]string{"/c", "kubectl"}, kubectlArgs...),
		},
	}
}

// llmCompileResponse is the strict-JSON shape the compiling-capability
// LLM pass must return.
type llmCompileResponse struct {
	Steps []plan.Step `json:"steps"`
}

// llmCompile asks the compiling-capability LLM to turn free-text
// instructions into allow-listed tool steps. Returned steps are not yet
// validated against the sandbox allow-list; the caller does that.
func llmCompile(ctx context.Context, client *llm.Client, instructions string) ([]plan.Step, error) {
	resp, err := client.Complete(ctx, llm.Request{
		Capability: string(model.CapabilityCompiling),
		Messages: []llm.Message{
			{Role: "system", Content: compileSystemPrompt()},
			{Role: "user", Content: instructions},
		},
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("compile completion: %w", err)
	}

	jsonContent := llm.ExtractJSON(resp.Content)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON object found in compile response")
	}

	var parsed llmCompileResponse
	if err := json.Unmarshal([]byte(jsonContent), &parsed); err != nil {
		return nil, fmt.Errorf("parse compile response: %w", err)
	}
	if len(parsed.Steps) == 0 {
		return nil, fmt.Errorf("compile response contains no steps")
	}
	return parsed.Steps, nil
}

func compileSystemPrompt() string {
	return "You compile free-text remediation instructions into a JSON plan. " +
		"Respond with ONLY a JSON object: {\"steps\": [{\"tool\": \"<tool>\", \"args\": {...}}]}. " +
		"Allowed tool values: shell.run, http.request, fs.write, compose.run, kubectl.run. " +
		"Use the fewest steps that accomplish the instructions."
}

// compile runs the two-stage instruction-compilation pipeline: rule-based
// patterns first, an LLM compile pass if no rule matches, falling back to
// rule-based again (which has already been tried) if the LLM output is
// invalid — so a non-matching instruction with an invalid LLM compile
// fails compilation entirely (§4.4 step 3).
func (s *Service) compile(ctx context.Context, instructions string) ([]plan.Step, error) {
	if steps, ok := ruleBasedCompile(instructions, s.DefaultNamespace); ok {
		return steps, nil
	}

	if s.LLM != nil {
		if steps, err := llmCompile(ctx, s.LLM, instructions); err == nil {
			if verr := plan.ValidateSteps(steps); verr == nil {
				return steps, nil
			}
		}
	}

	return nil, fmt.Errorf("unable to compile instructions into allow-listed steps")
}
