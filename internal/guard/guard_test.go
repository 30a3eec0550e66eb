package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAllAuthorized(t *testing.T) {
	res := Check(
		[]string{"teamsReducer*"},
		[]string{"src/teamsReducer.ts", "src/teamsReducer.test.ts"},
		nil,
	)

	assert.True(t, res.OK())
	assert.Len(t, res.Allowed, 2)
	assert.Empty(t, res.Unauthorized)
}

func TestCheckUnauthorized(t *testing.T) {
	res := Check(
		[]string{"teamsReducer*"},
		[]string{"src/teamsReducer.ts", "src/userReducer.ts"},
		nil,
	)

	assert.False(t, res.OK())
	assert.Equal(t, []string{"src/userReducer.ts"}, res.Unauthorized)
	assert.Contains(t, res.Violation(), "src/userReducer.ts")
}

func TestCheckBaselineExempt(t *testing.T) {
	// A file dirty before the run started is not this run's change.
	res := Check(
		[]string{"teamsReducer*"},
		[]string{"README.md", "src/teamsReducer.ts"},
		[]string{"README.md"},
	)

	assert.True(t, res.OK())
	assert.Len(t, res.Allowed, 2)
}

func TestCheckMultiplePatterns(t *testing.T) {
	// With parallel workers the allowlist is the union over all files in
	// flight, so a sibling worker's edit is authorized here.
	res := Check(
		[]string{"alpha*", "beta*"},
		[]string{"pkg/alpha.go", "pkg/beta_test.go"},
		nil,
	)

	assert.True(t, res.OK())
}

func TestCheckNothingModified(t *testing.T) {
	res := Check([]string{"alpha*"}, nil, nil)
	assert.True(t, res.OK())
	assert.Empty(t, res.Allowed)
}

func TestCheckNoAllowlist(t *testing.T) {
	res := Check(nil, []string{"pkg/alpha.go"}, nil)
	assert.False(t, res.OK())
}
