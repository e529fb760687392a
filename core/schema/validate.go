package schema

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Validate checks a descriptor and returns every problem found.
func Validate(d *Descriptor) error {
	var result *multierror.Error

	if _, err := d.Config.Dependencies(); err != nil {
		result = multierror.Append(result, err)
	}

	views, err := d.Config.Views()
	if err != nil {
		result = multierror.Append(result, err)
	}
	for i, v := range views {
		if !v.Valid() {
			result = multierror.Append(result, fmt.Errorf("views[%d]: module and view are required", i))
			continue
		}
		if _, err := v.Pattern(); err != nil {
			result = multierror.Append(result, fmt.Errorf("views[%d]: %w", i, err))
		}
	}

	for i, n := range d.Routers.Nodes {
		result = validateNode(result, fmt.Sprintf("routers[%d]", i), n, true)
	}

	if result == nil {
		return nil
	}
	result.ErrorFormat = listFormat
	return result
}

func validateNode(result *multierror.Error, at string, n *RouteNode, top bool) *multierror.Error {
	if n == nil {
		return multierror.Append(result, fmt.Errorf("%s: empty route", at))
	}

	if n.IsRef() {
		if _, _, err := SplitRef(n.Ref); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", at, err))
		}
		return result
	}

	switch {
	case top && n.Path == "":
		result = multierror.Append(result, fmt.Errorf("%s: route needs a path or a ref", at))
	case n.Path == "" && n.Name == "" && n.Redirect == "" && n.Component == nil && len(n.Children) == 0:
		result = multierror.Append(result, fmt.Errorf("%s: empty route", at))
	}

	for i, c := range n.Children {
		result = validateNode(result, fmt.Sprintf("%s.children[%d]", at, i), c, false)
	}
	return result
}

func listFormat(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation errors:\n  - %s", strings.Join(msgs, "\n  - "))
}
