package routing

import (
	"fmt"

	"github.com/artpar/modcompose/core/schema"
	"github.com/dlclark/regexp2"
)

// ApplyView rewrites the component and props of every node whose accumulated
// path matches the view pattern. Nodes with an index child (a child with an
// empty path) are never rewritten. It returns the number of nodes changed.
func ApplyView(nodes []*schema.RouteNode, view schema.ViewOverride, prefix string) (int, error) {
	re, err := view.Pattern()
	if err != nil {
		return 0, err
	}
	return applyView(nodes, view, re, prefix)
}

func applyView(nodes []*schema.RouteNode, view schema.ViewOverride, re *regexp2.Regexp, prefix string) (int, error) {
	count := 0
	for _, n := range nodes {
		if n == nil {
			continue
		}
		path := prefix + "/" + n.Path

		matched, err := re.MatchString(path)
		if err != nil {
			return count, fmt.Errorf("match view %q against %q: %w", view.View, path, err)
		}
		if matched && !n.HasIndexChild() {
			if isSet(view.Component) {
				n.Component = view.Component
			}
			if isSet(view.Props) {
				n.Props = view.Props
			}
			count++
		}

		nested, err := applyView(n.Children, view, re, path)
		count += nested
		if err != nil {
			return count, err
		}
	}
	return count, nil
}

func isSet(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}
