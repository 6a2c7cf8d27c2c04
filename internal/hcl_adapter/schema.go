package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Segments []*Segment `hcl:"segment,block"`
	Remain   hcl.Body   `hcl:",remain"`
}

// Segment is the HCL schema of a `segment` block.
type Segment struct {
	Name     string      `hcl:"name,label"`
	Loading  *string     `hcl:"loading,optional"`
	Param    *Param      `hcl:"param,block"`
	Layout   *Module     `hcl:"layout,block"`
	Page     *Module     `hcl:"page,block"`
	Segments []*Segment  `hcl:"segment,block"`
	Parallel []*Parallel `hcl:"parallel,block"`
}

// Param binds a parameterized segment to a concrete value.
type Param struct {
	Name  string `hcl:"name"`
	Value string `hcl:"value"`
	Kind  string `hcl:"kind,optional"`
}

// Parallel is a named parallel slot with its occupant.
type Parallel struct {
	Key     string   `hcl:"key,label"`
	Segment *Segment `hcl:"segment,block"`
}

// Module is the HCL schema of a `layout` or `page` block.
type Module struct {
	Source  string         `hcl:"source,optional"`
	Instant hcl.Expression `hcl:"instant,optional"`
	View    *View          `hcl:"view,block"`
}

// View holds the raw view body. Its blocks are translated in source order.
type View struct {
	Body hcl.Body `hcl:",remain"`
}

// Attribute schemas of the view blocks. Nested blocks are left in Remain.

type elementAttrs struct {
	Client bool     `hcl:"client,optional"`
	Remain hcl.Body `hcl:",remain"`
}

type suspenseAttrs struct {
	Fallback *string  `hcl:"fallback,optional"`
	Remain   hcl.Body `hcl:",remain"`
}

type dataAttrs struct {
	Stage  string   `hcl:"stage,optional"`
	Site   string   `hcl:"site,optional"`
	Value  *string  `hcl:"value,optional"`
	Sync   bool     `hcl:"sync,optional"`
	Digest string   `hcl:"digest,optional"`
	Remain hcl.Body `hcl:",remain"`
}

type emptyAttrs struct {
	Remain hcl.Body `hcl:",remain"`
}
