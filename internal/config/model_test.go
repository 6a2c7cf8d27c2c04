package config

import (
	"testing"

	"github.com/specialistvlad/stagecheck/internal/render"
	"github.com/specialistvlad/stagecheck/internal/routetree"
	"github.com/specialistvlad/stagecheck/internal/segment"
	"github.com/specialistvlad/stagecheck/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleModel() *Model {
	page := &Segment{Name: segment.PageName, Module: &Module{
		Kind:    routetree.ModulePage,
		Source:  "app/page.tsx",
		Instant: routetree.Prefetch(routetree.PrefetchStatic),
		View:    view.Fragment(view.ClientElement("Counter"), view.ClientElement("Like")),
	}}
	post := &Segment{Name: "[slug]", Param: &segment.Param{Name: "slug", Value: "hello", Kind: "d"}}
	return &Model{Root: &Segment{
		Name: "",
		Module: &Module{
			Kind:   routetree.ModuleLayout,
			Source: "app/layout.tsx",
			View:   view.Element("html", view.ClientElement("Counter"), view.Slot(segment.ChildrenKey)),
		},
		Children: []*Slot{
			{Key: segment.ChildrenKey, Segment: page},
			{Key: "modal", Segment: post},
		},
	}}
}

func TestModel_Description(t *testing.T) {
	m := sampleModel()
	require.NoError(t, m.Validate())

	tree := routetree.Build(m.Root)
	require.Len(t, tree.Slots, 2)
	assert.Equal(t, routetree.ModuleLayout, tree.Module.Kind)

	page := tree.Child(segment.ChildrenKey)
	require.NotNil(t, page)
	assert.Equal(t, "/__PAGE__", page.Path.String())
	assert.True(t, page.Instant().IsSet())

	modal := tree.Child("modal")
	require.NotNil(t, modal)
	assert.Equal(t, "/@modal/slug|hello|d", modal.Path.String())
	assert.Nil(t, modal.Module)
}

func TestModel_ClientModules(t *testing.T) {
	assert.Equal(t, render.Modules{
		"Counter": "app/layout.tsx#Counter",
		"Like":    "app/page.tsx#Like",
	}, sampleModel().ClientModules())
}

func TestModel_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Model{}).Validate(), ErrInvalidModel)

	m := sampleModel()
	m.Root.Children = append(m.Root.Children, &Slot{Key: "modal", Segment: &Segment{Name: "other"}})
	assert.ErrorIs(t, m.Validate(), ErrInvalidModel)

	m = sampleModel()
	page := m.Root.Slot(segment.ChildrenKey)
	page.Children = []*Slot{{Key: segment.ChildrenKey, Segment: &Segment{Name: "x"}}}
	assert.ErrorContains(t, m.Validate(), "cannot have children")
}
