package cli

import (
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// listRow is a migration shown by the list command.
type listRow struct {
	Name    string
	Format  string
	Status  string
	Applied string
}

// renderList writes the migrations as a table without borders. Names are never
// wrapped, so they can be copied into the to and mark commands.
func renderList(w io.Writer, rows []listRow) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Symbols: tw.NewSymbols(tw.StyleNone),
			Settings: tw.Settings{
				Lines: tw.Lines{
					ShowTop:        tw.Off,
					ShowBottom:     tw.Off,
					ShowHeaderLine: tw.Off,
					ShowFooterLine: tw.Off,
				},
				Separators: tw.Separators{
					ShowHeader:     tw.Off,
					ShowFooter:     tw.Off,
					BetweenRows:    tw.Off,
					BetweenColumns: tw.Off,
				},
			},
		})),
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithHeaderAutoFormat(tw.Off),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)

	table.Header("Name", "Format", "Status", "Applied")
	for _, r := range rows {
		if err := table.Append(r.Name, r.Format, r.Status, r.Applied); err != nil {
			return err //nolint:wrapcheck // This is wrapped by the caller.
		}
	}

	return table.Render() //nolint:wrapcheck // This is wrapped by the caller.
}
