// This file contains the logic for evaluating the dynamically typed
// `instant` attribute into a routetree.InstantConfig.

package hcl_adapter

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/stagecheck/internal/routetree"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// translateInstant accepts `false` or an object with `prefetch` and
// `disable_validation` attributes.
func translateInstant(ctx context.Context, expr hcl.Expression) (routetree.InstantConfig, error) {
	if !isExprDefined(ctx, expr, "instant") {
		return routetree.InstantConfig{}, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return routetree.InstantConfig{}, fmt.Errorf("invalid instant value: %w", diags)
	}
	if val.IsNull() {
		return routetree.InstantConfig{}, nil
	}

	ty := val.Type()
	switch {
	case ty == cty.Bool:
		if val.True() {
			return routetree.InstantConfig{}, fmt.Errorf("%s: instant = true is not valid, use an object such as { prefetch = \"static\" }", expr.Range())
		}
		return routetree.Blocking(), nil
	case ty.IsObjectType():
		return instantFromObject(expr.Range(), val)
	default:
		return routetree.InstantConfig{}, fmt.Errorf("%s: instant must be false or an object, got %s", expr.Range(), ty.FriendlyName())
	}
}

func instantFromObject(rng hcl.Range, val cty.Value) (routetree.InstantConfig, error) {
	config := routetree.Prefetch(routetree.PrefetchStatic)

	names := make([]string, 0, len(val.Type().AttributeTypes()))
	for name := range val.Type().AttributeTypes() {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		attr := val.GetAttr(name)
		switch name {
		case "prefetch":
			var mode string
			if err := gocty.FromCtyValue(attr, &mode); err != nil {
				return config, fmt.Errorf("%s: instant.prefetch: %w", rng, err)
			}
			parsed, err := routetree.ParsePrefetchMode(mode)
			if err != nil {
				return config, fmt.Errorf("%s: %w", rng, err)
			}
			config.Prefetch = parsed
		case "disable_validation":
			if err := gocty.FromCtyValue(attr, &config.DisableValidation); err != nil {
				return config, fmt.Errorf("%s: instant.disable_validation: %w", rng, err)
			}
		default:
			return config, fmt.Errorf("%s: unknown instant attribute %q", rng, name)
		}
	}
	return config, nil
}
