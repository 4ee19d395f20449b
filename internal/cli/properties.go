package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/repository"
)

type filterFlags struct {
	city     string
	propType string
	status   string
	minPrice int64
	maxPrice int64
	featured bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.city, "city", "", "filter by city")
	cmd.Flags().StringVar(&f.propType, "type", "", "filter by property type (legacy aliases match too)")
	cmd.Flags().StringVar(&f.status, "status", "", "filter by status")
	cmd.Flags().Int64Var(&f.minPrice, "min-price", 0, "minimum price")
	cmd.Flags().Int64Var(&f.maxPrice, "max-price", 0, "maximum price")
	cmd.Flags().BoolVar(&f.featured, "featured", false, "only featured listings")
}

// filters converts the flags that were set into repository filters.
func (f *filterFlags) filters(cmd *cobra.Command) repository.Filters {
	out := repository.Filters{
		City:   f.city,
		Type:   f.propType,
		Status: f.status,
	}
	if cmd.Flags().Changed("min-price") {
		v := f.minPrice
		out.MinPrice = &v
	}
	if cmd.Flags().Changed("max-price") {
		v := f.maxPrice
		out.MaxPrice = &v
	}
	if cmd.Flags().Changed("featured") {
		v := f.featured
		out.Featured = &v
	}
	return out
}

func newPropertiesCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "properties",
		Aliases: []string{"props"},
		Short:   "Inspect property listings",
	}
	cmd.AddCommand(
		newPropertiesListCmd(o),
		newPropertiesShowCmd(o),
		newPropertiesWatchCmd(o),
	)
	return cmd
}

func newPropertiesListCmd(o *options) *cobra.Command {
	var (
		ff       filterFlags
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List properties matching the filters",
		Example: `  realtorctl properties list --city Pasto --type Casa
  realtorctl properties list --min-price 100000000 --page 2 --page-size 10 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			props, closeFn, err := o.open(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			filters := ff.filters(cmd)
			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("page") || cmd.Flags().Changed("page-size") {
				result, err := props.Paginate(ctx, filters, page, pageSize)
				if err != nil {
					return fmt.Errorf("listing properties: %w", err)
				}
				if o.isJSON() {
					return printJSON(out, result)
				}
				if err := printPropertyTable(out, result.Items); err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "\nPage %d of %d (%d total)\n", result.Page, result.TotalPages, result.Total)
				return err
			}

			list, err := props.List(ctx, filters)
			if err != nil {
				return fmt.Errorf("listing properties: %w", err)
			}
			if o.isJSON() {
				if list == nil {
					list = []models.Property{}
				}
				return printJSON(out, list)
			}
			return printPropertyTable(out, list)
		},
	}

	ff.register(cmd)
	cmd.Flags().IntVar(&page, "page", 1, "page number (enables pagination)")
	cmd.Flags().IntVar(&pageSize, "page-size", 12, "page size (enables pagination)")
	return cmd
}

func newPropertiesShowCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			props, closeFn, err := o.open(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := props.Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("getting property %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if o.isJSON() {
				return printJSON(out, p)
			}
			return printPropertyDetail(cmd, *p)
		},
	}
}

func printPropertyDetail(cmd *cobra.Command, p models.Property) error {
	out := cmd.OutOrStdout()
	lines := []struct{ label, value string }{
		{"ID", p.ID},
		{"Title", p.Title},
		{"Address", p.Address},
		{"City", p.City},
		{"Zone", p.Zone},
		{"Type", string(p.Type)},
		{"Status", string(p.Status)},
		{"Price", formatPrice(p.Price)},
		{"Featured", fmt.Sprintf("%t", p.Featured)},
		{"Images", fmt.Sprintf("%d", len(p.Images))},
		{"Videos", fmt.Sprintf("%d", len(p.Videos))},
		{"Updated", p.UpdatedAt.Format(time.RFC3339)},
	}
	for _, l := range lines {
		if l.value == "" {
			continue
		}
		if _, err := fmt.Fprintf(out, "%-9s %s\n", l.label+":", l.value); err != nil {
			return err
		}
	}
	return nil
}

func newPropertiesWatchCmd(o *options) *cobra.Command {
	var (
		ff    filterFlags
		count int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the matching properties every time they change",
		Long:  "Subscribes to the live property query and prints a snapshot on every change until interrupted or --count snapshots were printed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			props, closeFn, err := o.open(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			type snapshot struct {
				items []models.Property
				err   error
			}
			updates := make(chan snapshot, 1)

			ctx, cancel := context.WithCancel(ctx)

			unsubscribe, err := props.Subscribe(ctx, ff.filters(cmd), func(items []models.Property, err error) {
				select {
				case updates <- snapshot{items: items, err: err}:
				case <-ctx.Done():
				}
			})
			if err != nil {
				cancel()
				return fmt.Errorf("watching properties: %w", err)
			}
			// Release a callback blocked on updates before unsubscribing.
			defer func() {
				cancel()
				unsubscribe()
			}()

			out := cmd.OutOrStdout()
			printed := 0
			for {
				select {
				case <-ctx.Done():
					return nil
				case s := <-updates:
					if s.err != nil {
						return fmt.Errorf("watching properties: %w", s.err)
					}
					if err := printSnapshot(out, o, s.items); err != nil {
						return err
					}
					printed++
					if count > 0 && printed >= count {
						return nil
					}
				}
			}
		},
	}

	ff.register(cmd)
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many snapshots (0 watches until interrupted)")
	return cmd
}

func printSnapshot(out io.Writer, o *options, items []models.Property) error {
	if items == nil {
		items = []models.Property{}
	}
	if o.isJSON() {
		return printJSON(out, items)
	}
	if _, err := fmt.Fprintf(out, "--- %s: %d properties\n", time.Now().Format(time.Kitchen), len(items)); err != nil {
		return err
	}
	return printPropertyTable(out, items)
}
