package explain

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Format renders a plan as the text returned by the cost tool: the headline
// cost, a per-step breakdown and the DBMS_XPLAN output.
func Format(p *Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Estimated cost: %d\n", p.EstimatedCost)
	fmt.Fprintf(&b, "Statement ID: %s\n", p.StatementID)
	if p.Warning != "" {
		fmt.Fprintf(&b, "Warning: %s\n", p.Warning)
	}
	b.WriteString("\n")
	WriteSteps(&b, p.Steps)
	if len(p.Display) > 0 {
		b.WriteString("\nExecution plan:\n")
		for _, line := range p.Display {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// WriteSteps writes the per-step breakdown as a table, indenting operations by
// plan depth.
func WriteSteps(w io.Writer, steps []Step) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(true)
	table.SetHeader([]string{"ID", "OPERATION", "OBJECT", "COST", "ROWS", "BYTES"})
	for _, s := range steps {
		table.Append([]string{
			strconv.FormatInt(s.ID, 10),
			strings.Repeat("  ", int(s.Depth)) + s.Name(),
			s.Object(),
			formatOptional(s.Cost),
			formatOptional(s.Cardinality),
			formatOptional(s.Bytes),
		})
	}
	table.Render()
}

// Name is the operation and its options, e.g. "TABLE ACCESS FULL".
func (s Step) Name() string {
	return strings.TrimSpace(s.Operation + " " + s.Options)
}

// Object is the owner-qualified object the step touches, if any.
func (s Step) Object() string {
	if s.ObjectName == "" {
		return ""
	}
	if s.ObjectOwner == "" {
		return s.ObjectName
	}
	return s.ObjectOwner + "." + s.ObjectName
}

func formatOptional(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
