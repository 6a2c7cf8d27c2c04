package routetree

import "github.com/specialistvlad/stagecheck/internal/segment"

// node is a minimal Description for tests.
type node struct {
	seg      segment.Segment
	module   *ModuleInfo
	children []Child
}

func (n *node) Descriptor() segment.Segment { return n.seg }
func (n *node) ParallelChildren() []Child   { return n.children }
func (n *node) ModuleInfo() *ModuleInfo     { return n.module }

func seg(name string, module *ModuleInfo, children ...Child) *node {
	return &node{seg: segment.Named(name), module: module, children: children}
}

func layout(c InstantConfig) *ModuleInfo {
	return &ModuleInfo{Kind: ModuleLayout, Instant: c}
}

func page(c InstantConfig) *ModuleInfo {
	return &ModuleInfo{Kind: ModulePage, Instant: c}
}

func children(n *node) Child {
	return Child{Key: segment.ChildrenKey, Node: n}
}

func slot(key string, n *node) Child {
	return Child{Key: key, Node: n}
}

func pageSeg(c InstantConfig) *node {
	return seg(segment.PageName, page(c))
}

var none = InstantConfig{}
