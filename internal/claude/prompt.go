package claude

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResultInstruction is appended to every prompt so the agent reports
// structured output on a parseable line.
const ResultInstruction = `
When you have finished the task, output your result data as JSON on a single line starting with "RESULT:"
Example: RESULT: {"coverage": 78.5}
If you have no structured data to report, output: RESULT: "done"`

// BuildPrompt assembles the full prompt for the initial step: base prompt,
// allowlist boundary, file path, metadata, and the result instruction.
func BuildPrompt(base, file string, metadata json.RawMessage, allowlist string) string {
	meta := "null"
	if len(metadata) > 0 {
		meta = string(metadata)
	}

	return fmt.Sprintf(`%s

IMPORTANT: You may ONLY read and modify files matching the pattern: %s
Do not edit any other files.

File: %s
Original data: %s
%s`, base, allowlist, file, meta, ResultInstruction)
}

// BuildFixupPrompt assembles the fixup prompt, embedding the failing
// verification output.
func BuildFixupPrompt(base, file, errorOutput, allowlist string) string {
	return fmt.Sprintf(`%s

IMPORTANT: You may ONLY read and modify files matching the pattern: %s
Do not edit any other files.

File: %s

Verification failed with the following error:
`+"```"+`
%s
`+"```"+`

Please fix the issues and try again.
%s`, base, allowlist, file, errorOutput, ResultInstruction)
}

// ParseResult scans agent output for the last "RESULT:" line. It returns the
// payload as JSON, raw=true when the payload was not valid JSON and is stored
// as a quoted string, and nil when no result line was found.
func ParseResult(stdout string) (result json.RawMessage, raw bool) {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		payload, ok := strings.CutPrefix(strings.TrimSpace(lines[i]), "RESULT:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}

		if json.Valid([]byte(payload)) {
			return json.RawMessage(payload), false
		}

		quoted, err := json.Marshal(payload)
		if err != nil {
			return nil, false
		}
		return quoted, true
	}
	return nil, false
}
