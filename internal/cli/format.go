package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printPropertyTable prints listings as an aligned table.
func printPropertyTable(out io.Writer, props []models.Property) error {
	if len(props) == 0 {
		_, err := fmt.Fprintln(out, "No properties found.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tTITLE\tTYPE\tCITY\tPRICE\tSTATUS\tFEATURED"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, p := range props {
		featured := ""
		if p.Featured {
			featured = "*"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Title, p.Type, p.City, formatPrice(p.Price), p.Status, featured); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return w.Flush()
}

// formatPrice renders pesos with thousands separators, e.g. $1.250.000.
func formatPrice(price int64) string {
	sign := ""
	if price < 0 {
		sign = "-"
		price = -price
	}
	digits := strconv.FormatInt(price, 10)

	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + "$" + b.String()
}
