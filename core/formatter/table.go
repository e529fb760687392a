package formatter

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/artpar/modcompose/core/schema"
)

// placeholder fills empty table cells so that columns stay aligned for
// readers that split on whitespace.
const placeholder = "-"

// TableFormatter prints aligned columns for terminals.
type TableFormatter struct{}

// NewTableFormatter creates a table formatter.
func NewTableFormatter() *TableFormatter { return &TableFormatter{} }

func (f *TableFormatter) Name() string        { return "table" }
func (f *TableFormatter) Description() string { return "Aligned text columns" }

// FormatModules prints one row per module in load order.
func (f *TableFormatter) FormatModules(w io.Writer, modules []ModuleSummary, opts FormatOptions) error {
	if len(modules) == 0 {
		_, err := fmt.Fprintln(w, "No modules loaded.")
		return err
	}
	t := table{header: []string{"NAME", "ORIGINAL", "DEPENDS ON", "ROUTES", "COMPONENTS", "BACKEND"}}
	for _, m := range modules {
		original := m.Original
		if original == m.Name {
			original = ""
		}
		t.add(opts.MaxWidth,
			m.Name,
			original,
			strings.Join(m.Dependencies, ","),
			strconv.Itoa(m.Routes),
			strconv.Itoa(m.Components),
			strings.Join(m.BackendDependencies, ","),
		)
	}
	return t.write(w, opts.NoHeader)
}

// FormatRoutes prints every node of the trees, depth first, with its full path.
func (f *TableFormatter) FormatRoutes(w io.Writer, routes []*schema.RouteNode, opts FormatOptions) error {
	if len(routes) == 0 {
		_, err := fmt.Fprintln(w, "No routes found.")
		return err
	}
	t := table{header: []string{"PATH", "NAME", "COMPONENT", "REDIRECT"}}
	for _, root := range routes {
		root.Walk("", func(path string, n *schema.RouteNode) bool {
			t.add(opts.MaxWidth, path, n.Name, ComponentName(n.Component), n.Redirect)
			return true
		})
	}
	return t.write(w, opts.NoHeader)
}

func (f *TableFormatter) FormatError(w io.Writer, err error) error {
	_, werr := fmt.Fprintf(w, "Error: %s\n", err)
	return werr
}

type table struct {
	header []string
	rows   [][]string
}

func (t *table) add(width int, cells ...string) {
	row := make([]string, len(cells))
	for i, c := range cells {
		// The first column is the row key and is never shortened.
		if i == 0 {
			row[i] = c
			continue
		}
		row[i] = cell(c, width)
	}
	t.rows = append(t.rows, row)
}

func (t *table) write(w io.Writer, noHeader bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeader {
		fmt.Fprintln(tw, strings.Join(t.header, "\t"))
	}
	for _, row := range t.rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// cell returns s shortened to width runes, or the placeholder when s is
// empty. Widths of three or less disable shortening.
func cell(s string, width int) string {
	if s == "" {
		return placeholder
	}
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

func init() {
	if err := Register(NewTableFormatter()); err != nil {
		panic(err)
	}
	if err := DefaultRegistry.Alias("text", "table"); err != nil {
		panic(err)
	}
}
