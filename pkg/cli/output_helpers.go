package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printReport renders one pipeline report in the chosen output format.
func printReport(w io.Writer, format, archive string, rep *domain.Report) error {
	if format == "json" {
		return printJSON(w, map[string]interface{}{"archive": archive, "report": rep})
	}

	if rep.Success {
		fmt.Fprintf(w, "%s: %s (strategy %s)\n", archive, rep.ServiceURL, rep.StrategyUsed)
		if rep.ItemID != "" {
			fmt.Fprintf(w, "  item: %s\n", rep.ItemID)
		}
		if rep.LayerID != nil {
			fmt.Fprintf(w, "  layer: %d\n", *rep.LayerID)
		}
	} else {
		fmt.Fprintf(w, "%s: FAILED (%s)\n  %s\n", archive, rep.ErrorKind, rep.Detail)
	}
	for _, warn := range rep.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	return nil
}
