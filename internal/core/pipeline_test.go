package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want int
	}{
		{FailureAuthDenied, 2},
		{FailureResolution, 3},
		{FailureValidation, 4},
		{FailureApply, 5},
		{FailurePushConflict, 6},
		{FailureReport, 0},
		{FailureKind("unknown"), 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.ExitCode(), "kind %s", tt.kind)
	}
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, 0, ExitCodeFor(nil))
	assert.Equal(t, 1, ExitCodeFor(errors.New("plain error")))

	perr := NewPipelineError(FailureValidation, StageValidated, "stale", nil)
	assert.Equal(t, 4, ExitCodeFor(perr))

	wrapped := fmt.Errorf("job failed: %w", perr)
	assert.Equal(t, 4, ExitCodeFor(wrapped), "wrapped pipeline errors keep their code")
}

func TestPipelineErrorUnwrap(t *testing.T) {
	cause := errors.New("git apply exited 1")
	perr := NewPipelineError(FailureApply, StageApplied, "applying the diff failed", cause)

	assert.ErrorIs(t, perr, cause)
	assert.Contains(t, perr.Error(), "apply_failed")
	assert.Contains(t, perr.Error(), "applied")
	assert.Contains(t, perr.Error(), "git apply exited 1")

	extracted, ok := AsPipelineError(fmt.Errorf("outer: %w", perr))
	require.True(t, ok)
	assert.Equal(t, FailureApply, extracted.Kind)
}

func TestDiffBlobIsEmpty(t *testing.T) {
	var nilBlob *DiffBlob
	assert.True(t, nilBlob.IsEmpty())
	assert.True(t, (&DiffBlob{}).IsEmpty())
	assert.False(t, (&DiffBlob{Content: []byte("-a\n+b\n")}).IsEmpty())
}

func TestPullRequestRefFullName(t *testing.T) {
	ref := PullRequestRef{Owner: "llvm", Repo: "llvm-project"}
	assert.Equal(t, "llvm/llvm-project", ref.FullName())
}
