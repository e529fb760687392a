package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/artpar/modcompose/core/schema"
	"github.com/xlab/treeprint"
)

// TreeFormatter prints route trees and module dependency graphs as trees.
type TreeFormatter struct{}

// NewTreeFormatter creates a new tree formatter.
func NewTreeFormatter() *TreeFormatter {
	return &TreeFormatter{}
}

// Name returns the formatter name.
func (f *TreeFormatter) Name() string {
	return "tree"
}

// Description returns the formatter description.
func (f *TreeFormatter) Description() string {
	return "Indented tree output"
}

// FormatModules prints each module with its dependencies below it.
func (f *TreeFormatter) FormatModules(w io.Writer, modules []ModuleSummary, opts FormatOptions) error {
	tree := treeprint.NewWithRoot(fmt.Sprintf("modules (%d)", len(modules)))
	for _, m := range modules {
		label := m.Name
		if m.Original != "" {
			label += " = " + m.Original
		}
		branch := tree.AddBranch(label)
		for _, dep := range m.Dependencies {
			branch.AddNode(dep)
		}
		for _, backend := range m.BackendDependencies {
			branch.AddMetaNode("backend", backend)
		}
	}
	_, err := io.WriteString(w, tree.String())
	return err
}

// FormatRoutes prints the route tree.
func (f *TreeFormatter) FormatRoutes(w io.Writer, routes []*schema.RouteNode, opts FormatOptions) error {
	tree := treeprint.NewWithRoot(fmt.Sprintf("routes (%d)", schema.CountNodes(routes)))
	for _, n := range routes {
		addRoute(tree, n)
	}
	_, err := io.WriteString(w, tree.String())
	return err
}

func addRoute(parent treeprint.Tree, n *schema.RouteNode) {
	if n == nil {
		return
	}
	label := routeLabel(n)
	if len(n.Children) == 0 {
		parent.AddNode(label)
		return
	}
	branch := parent.AddBranch(label)
	for _, c := range n.Children {
		addRoute(branch, c)
	}
}

func routeLabel(n *schema.RouteNode) string {
	path := "/" + n.Path
	if n.Path == "" {
		path = "(index)"
	}

	var attrs []string
	if n.Name != "" {
		attrs = append(attrs, "name="+n.Name)
	}
	if c := ComponentName(n.Component); c != "" {
		attrs = append(attrs, "component="+c)
	}
	if n.Redirect != "" {
		attrs = append(attrs, "redirect="+n.Redirect)
	}
	if len(attrs) == 0 {
		return path
	}
	return path + " [" + strings.Join(attrs, " ") + "]"
}

// FormatError formats an error message.
func (f *TreeFormatter) FormatError(w io.Writer, err error) error {
	fmt.Fprintf(w, "Error: %s\n", err.Error())
	return nil
}

func init() {
	Register(NewTreeFormatter())
}
