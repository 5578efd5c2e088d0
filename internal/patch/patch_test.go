package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/patch-warden/internal/core"
)

const sampleDiff = `--- a/clang/lib/Foo.cpp
+++ b/clang/lib/Foo.cpp
@@ -1,3 +1,3 @@
 void f() {
-  int  x;
+  int x;
 }
--- a/scripts/tool.py
+++ b/scripts/tool.py
@@ -10,2 +10,1 @@
-x = 1 ;
-y = 2 ;
+x = 1
`

func TestParseFiles(t *testing.T) {
	stats := ParseFiles(sampleDiff)
	require.Len(t, stats, 2)

	assert.Equal(t, "clang/lib/Foo.cpp", stats[0].Path)
	assert.Equal(t, 1, stats[0].Hunks)
	assert.Equal(t, 1, stats[0].Added)
	assert.Equal(t, 1, stats[0].Removed)

	assert.Equal(t, "scripts/tool.py", stats[1].Path)
	assert.Equal(t, 1, stats[1].Hunks)
	assert.Equal(t, 1, stats[1].Added)
	assert.Equal(t, 2, stats[1].Removed)
}

func TestParseFilesNewFile(t *testing.T) {
	diff := "--- /dev/null\n+++ b/new.cpp\n@@ -0,0 +1,1 @@\n+int x;\n"
	stats := ParseFiles(diff)
	require.Len(t, stats, 1)
	assert.Equal(t, "new.cpp", stats[0].Path)
	assert.Equal(t, 1, stats[0].Added)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, []string{"clang/lib/Foo.cpp", "scripts/tool.py"}, Paths(sampleDiff))
	assert.Empty(t, Paths("not a diff"))
}

func TestParseConflicts(t *testing.T) {
	output := `Checking patch clang/lib/Foo.cpp...
error: patch failed: clang/lib/Foo.cpp:12
error: clang/lib/Foo.cpp: patch does not apply
error: scripts/gone.py: No such file or directory`

	conflicts := parseConflicts(output)
	require.Len(t, conflicts, 3)
	assert.Equal(t, "clang/lib/Foo.cpp", conflicts[0].Path)
	assert.Equal(t, "hunk at line 12 does not match", conflicts[0].Detail)
	assert.Equal(t, "patch does not apply", conflicts[1].Detail)
	assert.Equal(t, "scripts/gone.py", conflicts[2].Path)
	assert.Equal(t, "file no longer exists on the branch", conflicts[2].Detail)
}

func TestParseConflictsUnrecognizedOutput(t *testing.T) {
	conflicts := parseConflicts("fatal: unrecognized input")
	require.Len(t, conflicts, 1)
	assert.Empty(t, conflicts[0].Path)
	assert.Contains(t, conflicts[0].Detail, "unrecognized input")
}

func TestCheckAgreement(t *testing.T) {
	v := &Validator{}

	same := &core.DiffBlob{Formatter: "clang-format", Content: []byte("-a\n+b\n")}
	assert.NoError(t, v.CheckAgreement(same, same))
	assert.NoError(t, v.CheckAgreement(nil, same))

	diverged := &core.DiffBlob{Formatter: "clang-format", Content: []byte("-a\n+c\n")}
	err := v.CheckAgreement(same, diverged)
	require.Error(t, err)
	pe, ok := core.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, core.FailureValidation, pe.Kind)
	assert.Contains(t, pe.Reason, "clang-format")
}

func TestCommitMessage(t *testing.T) {
	msg := CommitMessage("clang-format", 42, 99)
	assert.Contains(t, msg, "clang-format")
	assert.Contains(t, msg, "#42")
	assert.Contains(t, msg, "comment 99")
	// Deterministic: same inputs, same message.
	assert.Equal(t, msg, CommitMessage("clang-format", 42, 99))
}
