package validation

import (
	"context"
	"testing"

	"github.com/specialistvlad/stagecheck/internal/flight"
	"github.com/specialistvlad/stagecheck/internal/render"
	"github.com/specialistvlad/stagecheck/internal/routetree"
	"github.com/specialistvlad/stagecheck/internal/segment"
	"github.com/specialistvlad/stagecheck/internal/segmentcache"
	"github.com/specialistvlad/stagecheck/internal/stage"
	"github.com/specialistvlad/stagecheck/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type desc struct {
	seg      segment.Segment
	module   *routetree.ModuleInfo
	children []routetree.Child
}

func (d *desc) Descriptor() segment.Segment         { return d.seg }
func (d *desc) ParallelChildren() []routetree.Child { return d.children }
func (d *desc) ModuleInfo() *routetree.ModuleInfo   { return d.module }

var (
	rootPath   = segment.Root(segment.Named(""))
	layoutPath = rootPath.Child(segment.ChildrenKey, segment.Named("blog"))
	pagePath   = layoutPath.Child(segment.ChildrenKey, segment.Named(segment.PageName))
	pageTask   = routetree.Task{Target: pagePath, Parents: []segment.Path{layoutPath}}
)

const dynamicSite = "app/blog/page.go:12:5"

// route is root -> layout(static) -> page(static) with the given page content.
func route(t *testing.T, pageNode *view.Node) (*routetree.Tree, *segmentcache.Cache, segmentcache.StageEndTimes) {
	t.Helper()
	static := routetree.Prefetch(routetree.PrefetchStatic)
	tree := routetree.Build(&desc{
		seg:    segment.Named(""),
		module: &routetree.ModuleInfo{Kind: routetree.ModuleLayout},
		children: []routetree.Child{{Key: segment.ChildrenKey, Node: &desc{
			seg:    segment.Named("blog"),
			module: &routetree.ModuleInfo{Kind: routetree.ModuleLayout, Instant: static},
			children: []routetree.Child{{Key: segment.ChildrenKey, Node: &desc{
				seg:    segment.Named(segment.PageName),
				module: &routetree.ModuleInfo{Kind: routetree.ModulePage, Instant: static},
			}}},
		}}},
	})

	payload := &view.Payload{Seed: &view.Seed{
		Segment: segment.Named(""),
		Node:    view.Element("html", view.Slot(segment.ChildrenKey)),
		Slots: []view.SeedSlot{{Key: segment.ChildrenKey, Seed: &view.Seed{
			Segment: segment.Named("blog"),
			Node:    view.Element("BlogLayout", view.Slot(segment.ChildrenKey)),
			Slots: []view.SeedSlot{{Key: segment.ChildrenKey, Seed: &view.Seed{
				Segment: segment.Named(segment.PageName),
				Node:    pageNode,
			}}},
		}}},
	}}

	ctrl := stage.NewController(nil, false)
	chunks := &stage.Chunks{}
	var debug [][]byte
	opts := render.Options{
		Stages:      ctrl,
		Environment: render.EnvironmentFor(false),
		Debug: render.ChunkWriterFunc(func(chunk []byte) error {
			debug = append(debug, chunk)
			return nil
		}),
	}
	w := render.ChunkWriterFunc(func(chunk []byte) error {
		return chunks.Append(ctrl.CurrentStage(), chunk)
	})
	ctrl.AdvanceStage(stage.Static)
	finished, err := flight.NewRenderer().Render(context.Background(), payload, nil, w, opts)
	require.NoError(t, err)
	ctrl.AdvanceStage(stage.Runtime)
	ctrl.AdvanceStage(stage.Dynamic)
	require.True(t, finished.Fired())

	cache, err := segmentcache.Collect(context.Background(), chunks, debug, flight.NewRenderer(), segmentcache.Options{})
	require.NoError(t, err)
	return tree, cache, segmentcache.EndTimesOf(ctrl)
}

func validate(t *testing.T, pageNode *view.Node, tasks ...routetree.Task) *Outcome {
	t.Helper()
	tree, cache, ends := route(t, pageNode)
	v := New(tree, cache, Config{EndTimes: ends, Workers: 2})
	return v.Validate(context.Background(), tasks)
}

func dynamicCall(access view.Access) *view.Node {
	if access.Stage == 0 {
		access.Stage = stage.Dynamic
	}
	return view.Element("Comments", view.Data("fetchComments", access, view.Text("comments")))
}

func TestValidate_FallbackCoversDynamicCall(t *testing.T) {
	page := view.Element("Post",
		view.Text("title"),
		view.Suspense(view.Text("Loading comments..."), dynamicCall(view.Access{Site: dynamicSite})),
	)
	outcome := validate(t, page, pageTask)
	require.Len(t, outcome.Tasks, 1)
	assert.NoError(t, outcome.Tasks[0].Err)
	assert.Empty(t, outcome.Tasks[0].Errors)
	assert.True(t, outcome.Passed())
}

func TestValidate_DynamicCallWithoutFallback(t *testing.T) {
	page := view.Element("Post", view.Text("title"), dynamicCall(view.Access{Site: dynamicSite}))
	outcome := validate(t, page, pageTask)
	require.Len(t, outcome.Tasks, 1)
	require.NoError(t, outcome.Tasks[0].Err)
	require.Len(t, outcome.Tasks[0].Errors, 1)

	e := outcome.Tasks[0].Errors[0]
	assert.Equal(t, LabelBlockingRoute, e.Label)
	assert.Equal(t, dynamicSite, e.Site)
	assert.Equal(t, render.EnvServer, e.Environment)
	assert.Equal(t, []string{"html", "BlogLayout", "Post", "Comments"}, e.Stack)
	assert.Equal(t, pagePath, e.Target)
	assert.Equal(t, layoutPath, e.NavigationParent)
	assert.Equal(t, HoleDynamic, e.HoleKind)
	assert.Contains(t, e.Error(), dynamicSite)
	assert.False(t, outcome.Passed())
}

func TestValidate_RuntimeDataIsClassifiedRuntime(t *testing.T) {
	page := view.Element("Post", dynamicCall(view.Access{Stage: stage.Runtime, Site: "app/blog/page.go:7:3"}))
	outcome := validate(t, page, pageTask)
	require.Len(t, outcome.Tasks[0].Errors, 1)
	assert.Equal(t, HoleRuntime, outcome.Tasks[0].Errors[0].HoleKind)
}

func TestValidate_SyncAccessIsConsoleError(t *testing.T) {
	page := view.Element("Post", dynamicCall(view.Access{Site: "app/blog/page.go:3:1", Sync: true}))
	outcome := validate(t, page, pageTask)
	require.Len(t, outcome.Tasks[0].Errors, 1)
	assert.Equal(t, LabelConsoleError, outcome.Tasks[0].Errors[0].Label)
}

func TestValidate_WellKnownDigestIsSuppressed(t *testing.T) {
	page := view.Element("Post", dynamicCall(view.Access{Site: dynamicSite, Digest: render.DigestNotFound}))
	outcome := validate(t, page, pageTask)
	assert.True(t, outcome.Passed())
}

func TestValidate_TasksAreIndependent(t *testing.T) {
	page := view.Element("Post", dynamicCall(view.Access{Site: dynamicSite}))
	broken := routetree.Task{Target: pagePath, Parents: []segment.Path{"/missing"}}
	fromPage := routetree.Task{Target: pagePath, Parents: []segment.Path{pagePath}}

	outcome := validate(t, page, broken, pageTask, fromPage)
	require.Len(t, outcome.Tasks, 3)
	assert.Error(t, outcome.Tasks[0].Err)
	assert.Len(t, outcome.Tasks[1].Errors, 1)
	assert.True(t, outcome.Tasks[2].Passed())
	assert.Len(t, outcome.Failed(), 1)
	assert.Len(t, outcome.Errors(), 1)
}

func TestValidate_CancelledContext(t *testing.T) {
	tree, cache, ends := route(t, view.Text("static"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := New(tree, cache, Config{EndTimes: ends}).Validate(ctx, []routetree.Task{pageTask})
	require.Len(t, outcome.Tasks, 1)
	assert.True(t, outcome.Tasks[0].Cancelled)
	assert.ErrorIs(t, outcome.Tasks[0].Err, stage.ErrCancelled)
	assert.Empty(t, outcome.Failed())
}

func TestInspect(t *testing.T) {
	pending := func() *view.Node {
		h := view.NewHole(1)
		h.Debug = &view.DebugInfo{Site: "x.go:1"}
		return view.Pending(h)
	}
	resolved := view.NewHole(2)
	resolved.Resolve(view.Text("done"))

	tests := []struct {
		name string
		root *view.Node
		want int
	}{
		{"pending outside the boundary", view.Element("html", pending()), 0},
		{"pending below the boundary", view.Element("html", view.Boundary(pending())), 1},
		{"suspense below the boundary", view.Boundary(view.Suspense(view.Text("..."), pending())), 0},
		{"suspense above the boundary does not count", view.Suspense(view.Text("..."), view.Boundary(pending())), 1},
		{"pending fallback", view.Boundary(view.Suspense(pending(), view.Text("a"))), 1},
		{"resolved hole", view.Boundary(view.Pending(resolved)), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Inspect(tt.root), tt.want)
		})
	}
}
