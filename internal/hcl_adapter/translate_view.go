// This file contains the logic for translating `view` bodies into view
// nodes. Blocks keep their source order.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/stagecheck/internal/stage"
	"github.com/specialistvlad/stagecheck/internal/view"
)

func (l *Loader) translateView(ctx context.Context, body hcl.Body) ([]*view.Node, error) {
	syn, err := syntaxBody(body)
	if err != nil {
		return nil, err
	}
	var out []*view.Node
	for _, b := range syn.Blocks {
		n, err := l.translateViewBlock(ctx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (l *Loader) translateViewBlock(ctx context.Context, b *hclsyntax.Block) (*view.Node, error) {
	switch b.Type {
	case "element":
		if err := wantLabels(b, 1); err != nil {
			return nil, err
		}
		var attrs elementAttrs
		if diags := gohcl.DecodeBody(b.Body, nil, &attrs); diags.HasErrors() {
			return nil, diags
		}
		children, err := l.translateView(ctx, b.Body)
		if err != nil {
			return nil, err
		}
		if attrs.Client {
			return view.ClientElement(b.Labels[0], children...), nil
		}
		return view.Element(b.Labels[0], children...), nil

	case "text":
		if err := wantLabels(b, 1); err != nil {
			return nil, err
		}
		return view.Text(b.Labels[0]), nil

	case "fragment":
		if err := decodeEmpty(b); err != nil {
			return nil, err
		}
		children, err := l.translateView(ctx, b.Body)
		if err != nil {
			return nil, err
		}
		return view.Fragment(children...), nil

	case "suspense":
		if err := wantLabels(b, 0); err != nil {
			return nil, err
		}
		var attrs suspenseAttrs
		if diags := gohcl.DecodeBody(b.Body, nil, &attrs); diags.HasErrors() {
			return nil, diags
		}
		children, err := l.translateView(ctx, b.Body)
		if err != nil {
			return nil, err
		}
		var fallback *view.Node
		if attrs.Fallback != nil {
			fallback = view.Text(*attrs.Fallback)
		}
		return view.Suspense(fallback, children...), nil

	case "data":
		if err := wantLabels(b, 1); err != nil {
			return nil, err
		}
		var attrs dataAttrs
		if diags := gohcl.DecodeBody(b.Body, nil, &attrs); diags.HasErrors() {
			return nil, diags
		}
		s, err := stage.Parse(attrs.Stage)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.DefRange(), err)
		}
		children, err := l.translateView(ctx, b.Body)
		if err != nil {
			return nil, err
		}
		if attrs.Value != nil {
			children = append([]*view.Node{view.Text(*attrs.Value)}, children...)
		}
		access := view.Access{Stage: s, Site: attrs.Site, Sync: attrs.Sync, Digest: attrs.Digest}
		return view.Data(b.Labels[0], access, children...), nil

	case "slot":
		if err := wantLabels(b, 1); err != nil {
			return nil, err
		}
		return view.Slot(b.Labels[0]), nil

	default:
		return nil, fmt.Errorf("%s: unknown view block %q", b.DefRange(), b.Type)
	}
}

func decodeEmpty(b *hclsyntax.Block) error {
	if err := wantLabels(b, 0); err != nil {
		return err
	}
	var attrs emptyAttrs
	if diags := gohcl.DecodeBody(b.Body, nil, &attrs); diags.HasErrors() {
		return diags
	}
	return nil
}
