package routetree

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/stagecheck/internal/ctxlog"
	"github.com/specialistvlad/stagecheck/internal/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plan(t *testing.T, root *node) []Task {
	t.Helper()
	tasks, err := FindNavigationsToValidate(context.Background(), Build(root))
	require.NoError(t, err)
	return tasks
}

func TestPlan_StaticLayoutWithUnconfiguredPage(t *testing.T) {
	// root layout L (static) with page P (no config)
	tree := seg("", layout(Prefetch(PrefetchStatic)), children(pageSeg(none)))

	want := []Task{{Target: "/__PAGE__", Parents: []segment.Path{""}}}
	if diff := cmp.Diff(want, plan(t, tree)); diff != "" {
		t.Errorf("tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_ThreeLevels(t *testing.T) {
	tree := seg("", layout(none),
		children(seg("blog", layout(Prefetch(PrefetchStatic)),
			children(pageSeg(Prefetch(PrefetchStatic))))))

	want := []Task{
		{Target: "/blog", Parents: []segment.Path{""}},
		{Target: "/blog/__PAGE__", Parents: []segment.Path{"/blog"}},
	}
	if diff := cmp.Diff(want, plan(t, tree)); diff != "" {
		t.Errorf("tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_BlockingLayoutResetsParents(t *testing.T) {
	tree := seg("", layout(none),
		children(seg("a", layout(none),
			children(seg("b", layout(Blocking()),
				children(pageSeg(Prefetch(PrefetchRuntime))))))))

	tasks := plan(t, tree)
	require.Len(t, tasks, 1)
	assert.Equal(t, segment.Path("/a/b/__PAGE__"), tasks[0].Target)
	// Only the blocking layout itself survives the reset.
	assert.Equal(t, []segment.Path{"/a/b"}, tasks[0].Parents)
}

func TestPlan_BlockingPageEmitsNothing(t *testing.T) {
	tree := seg("", layout(Prefetch(PrefetchStatic)),
		children(seg("x", nil, children(pageSeg(Blocking())))))
	assert.Empty(t, plan(t, tree))
}

func TestPlan_PageWithoutLayoutBetweenAddsParent(t *testing.T) {
	// The "x" segment has only a loading boundary, no layout.
	tree := seg("", layout(none),
		children(seg("x", nil, children(pageSeg(Prefetch(PrefetchStatic))))))

	want := []Task{{Target: "/x/__PAGE__", Parents: []segment.Path{"", "/x"}}}
	if diff := cmp.Diff(want, plan(t, tree)); diff != "" {
		t.Errorf("tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_SiblingSlotsDoNotLeak(t *testing.T) {
	var logs bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))

	tree := Build(seg("", layout(none),
		children(seg("feed", layout(Prefetch(PrefetchStatic)), children(pageSeg(none)))),
		slot("modal", seg("photo", layout(Prefetch(PrefetchStatic)), children(pageSeg(none)))),
	))
	tasks, err := FindNavigationsToValidate(ctx, tree)
	require.NoError(t, err)

	want := []Task{
		{Target: "/feed", Parents: []segment.Path{""}},
		{Target: "/feed/__PAGE__", Parents: []segment.Path{"/feed"}},
	}
	if diff := cmp.Diff(want, tasks); diff != "" {
		t.Errorf("tasks mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, logs.String(), "not fully implemented for parallel routes")
	assert.Contains(t, logs.String(), "/@modal/photo")
}

func TestPlan_DisableValidationYieldsNoTasks(t *testing.T) {
	disabled := Prefetch(PrefetchStatic)
	disabled.DisableValidation = true

	trees := []*node{
		seg("", layout(disabled), children(pageSeg(Prefetch(PrefetchStatic)))),
		seg("", layout(Prefetch(PrefetchStatic)), children(seg("a", layout(Prefetch(PrefetchStatic)), children(pageSeg(disabled))))),
		seg("", layout(none), children(seg("a", layout(disabled), children(pageSeg(none))))),
	}
	for _, tree := range trees {
		assert.Empty(t, plan(t, tree))
		assert.False(t, AnySegmentNeedsValidation(Build(tree)))
	}
}

func TestPlan_ConfigErrors(t *testing.T) {
	disabled := Prefetch(PrefetchStatic)
	disabled.DisableValidation = true

	tests := map[string]*node{
		"page without layout":  seg("", nil, children(pageSeg(Prefetch(PrefetchStatic)))),
		"runtime root layout":  seg("", layout(Prefetch(PrefetchRuntime)), children(pageSeg(none))),
		"disable with runtime": seg("", layout(disabled), children(seg("a", layout(Prefetch(PrefetchRuntime)), children(pageSeg(none))))),
	}
	for name, tree := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FindNavigationsToValidate(context.Background(), Build(tree))
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestQueries(t *testing.T) {
	tree := Build(seg("", layout(none),
		children(seg("a", layout(Prefetch(PrefetchRuntime)),
			children(pageSeg(Blocking()))))))

	assert.True(t, AnySegmentHasRuntimePrefetch(tree))
	assert.True(t, AnySegmentNeedsValidation(tree))
	assert.False(t, IsPageAllowedToBlock(tree))
	assert.Equal(t, []segment.Path{"/a", "/a/__PAGE__"}, FindSegmentsWithInstantConfig(tree))

	strict := Build(seg("", layout(Prefetch(PrefetchStatic)), children(pageSeg(none))))
	assert.False(t, IsPageAllowedToBlock(strict))
	assert.False(t, AnySegmentHasRuntimePrefetch(strict))

	bare := Build(seg("", layout(none), children(pageSeg(none))))
	assert.False(t, IsPageAllowedToBlock(bare))
	assert.False(t, AnySegmentNeedsValidation(bare))
}

func TestIsPageAllowedToBlock(t *testing.T) {
	static := Prefetch(PrefetchStatic)
	disabled := static
	disabled.DisableValidation = true

	testCases := []struct {
		name string
		tree *node
		want bool
	}{
		{"no config anywhere", seg("", layout(none), children(pageSeg(none))), false},
		{"blocking page", seg("", layout(none), children(pageSeg(Blocking()))), true},
		{"outermost config decides", seg("", layout(static), children(pageSeg(Blocking()))), false},
		{"blocking layout above strict page", seg("", layout(Blocking()), children(pageSeg(static))), true},
		{"disabled validation still requires a shell", seg("", layout(none), children(pageSeg(disabled))), false},
		{"parallel slot allows blocking", seg("", layout(none),
			children(pageSeg(static)),
			slot("modal", seg("__DEFAULT__", layout(Blocking()))),
		), true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsPageAllowedToBlock(Build(tc.tree)))
		})
	}
}

func TestTree_Find(t *testing.T) {
	tree := Build(seg("", layout(none),
		children(seg("a", nil, children(pageSeg(none)))),
		slot("modal", seg("m", nil))))

	require.NotNil(t, tree.Find("/a/__PAGE__"))
	assert.True(t, tree.Find("/a/__PAGE__").Segment.IsPage())
	require.NotNil(t, tree.Find("/@modal/m"))
	assert.Nil(t, tree.Find("/zzz"))
}
