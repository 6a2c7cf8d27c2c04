package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/stagecheck/internal/ctxlog"
)

// isExprDefined checks if an HCL expression was actually present in the source
// code. The HCL decoder often populates optional fields with non-nil, zero-width
// expression objects, so a simple nil check is insufficient.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		logger.Debug("Expression is nil, considering it undefined.", "attribute", attrName)
		return false
	}

	// A real attribute occupies bytes in the file, while a placeholder for an
	// omitted optional attribute has a zero-width range.
	exprRange := expr.Range()
	isDefined := exprRange.End.Byte > exprRange.Start.Byte

	logger.Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", exprRange.String(),
		"is_defined", isDefined,
	)
	return isDefined
}

// syntaxBody returns the native syntax body behind body. Source order of
// nested blocks is only available there.
func syntaxBody(body hcl.Body) (*hclsyntax.Body, error) {
	if body == nil {
		return &hclsyntax.Body{}, nil
	}
	syn, ok := body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("view bodies must use native HCL syntax, got %T", body)
	}
	return syn, nil
}

// wantLabels checks the label count of a view block.
func wantLabels(b *hclsyntax.Block, n int) error {
	if len(b.Labels) != n {
		return fmt.Errorf("%s: %q block needs %d label(s), got %d", b.DefRange(), b.Type, n, len(b.Labels))
	}
	return nil
}
