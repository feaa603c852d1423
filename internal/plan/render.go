package plan

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Render writes the terse text form of the Diff, one Action per line.
// This is the form embedded in review-channel messages, so it must be
// stable: same Diff, same bytes.
func (d Diff) Render(w io.Writer) {
	if d.Empty() {
		fmt.Fprintf(w, "%s: nothing to do\n", d.Platform)
		return
	}
	fmt.Fprintf(w, "%s: %d action(s)\n", d.Platform, len(d.Actions))
	for _, a := range d.Actions {
		fmt.Fprintf(w, "  %s %s\n", marker(a.Kind), a.Describe())
	}
}

// RenderTable writes the Diff as a table for interactive CLI use.
func (d Diff) RenderTable(w io.Writer) {
	if d.Empty() {
		fmt.Fprintf(w, "%s: nothing to do\n", d.Platform)
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"#", "Op", "Entity", "Target", "Detail"})
	for i, a := range d.Actions {
		tw.AppendRow(table.Row{i + 1, a.Kind, a.Entity, a.Slug, detail(a)})
	}
	tw.Render()
}

func marker(k Kind) string {
	switch k {
	case CreateEntity, AddRelation:
		return "+"
	case RemoveRelation:
		return "-"
	case EditField:
		return "~"
	}
	return "?"
}

func detail(a Action) string {
	switch a.Kind {
	case CreateEntity:
		return describeAttrs(a.Attrs)
	case EditField:
		return fmt.Sprintf("%s: %v -> %v", a.Field, a.Old, a.New)
	case AddRelation:
		return fmt.Sprintf("%s %s", a.Related, describeAttrs(a.Attrs))
	case RemoveRelation:
		return a.Related
	}
	return ""
}
