package bundlefix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindCollisionsNone(t *testing.T) {
	assignments := []Assignment{
		{Path: "Payload/Runner.app", Identifier: "com.foo.bar"},
		{Path: "Payload/Runner.app/PlugIns/Notifier.appex", Identifier: "com.foo.bar.notificationservice"},
	}
	assert.Empty(t, FindCollisions(assignments))
}

func TestFindCollisionsGroupsByIdentifier(t *testing.T) {
	assignments := []Assignment{
		{Path: "Payload/Runner.app", Identifier: "com.foo.bar"},
		{Path: "Payload/Runner.app/Frameworks/A.framework", Identifier: "com.foo.bar.dup"},
		{Path: "Payload/Runner.app/Frameworks/B.framework", Identifier: "com.foo.bar.dup"},
		{Path: "Payload/Runner.app/Frameworks/C.framework", Identifier: "com.foo.bar.dup"},
		{Path: "Payload/Runner.app/PlugIns/D.appex", Identifier: "com.foo.bar.other"},
		{Path: "Payload/Runner.app/PlugIns/E.appex", Identifier: "com.foo.bar.other"},
	}

	collisions := FindCollisions(assignments)
	require.Len(t, collisions, 2)

	assert.Equal(t, "com.foo.bar.dup", collisions[0].Identifier)
	assert.Equal(t, []string{
		"Payload/Runner.app/Frameworks/A.framework",
		"Payload/Runner.app/Frameworks/B.framework",
		"Payload/Runner.app/Frameworks/C.framework",
	}, collisions[0].Paths)

	assert.Equal(t, "com.foo.bar.other", collisions[1].Identifier)
	assert.Len(t, collisions[1].Paths, 2)
}

func TestFindCollisionsUsesTargetNameForProjects(t *testing.T) {
	assignments := []Assignment{
		{Name: "Runner", Identifier: "com.foo.bar"},
		{Name: "RunnerTests", Identifier: "com.foo.bar"},
	}
	collisions := FindCollisions(assignments)
	require.Len(t, collisions, 1)
	assert.ElementsMatch(t, []string{"Runner", "RunnerTests"}, collisions[0].Paths)
}

func TestFindCollisionsDoesNotMutateInput(t *testing.T) {
	assignments := []Assignment{
		{Path: "b", Identifier: "z"},
		{Path: "a", Identifier: "z"},
	}
	FindCollisions(assignments)
	assert.Equal(t, "b", assignments[0].Path)
}
