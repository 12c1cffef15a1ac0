package main

import (
	"fmt"
	"text/tabwriter"

	units "github.com/docker/go-units"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	gptfixup "github.com/diskfs/go-gptfixup"
)

func listCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list <device>",
		Aliases: []string{"ls"},
		Short:   "List the partitions in the GPT of a device",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := options(v)
			if err != nil {
				return err
			}
			table, fixable, err := gptfixup.ReadTable(args[0], opts...)
			if err != nil {
				return err
			}
			if fixable != nil {
				log.Warnf("GPT needs a fixup: %v", fixable)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 4, 4, 2, ' ', 0)
			defer tw.Flush()
			_, _ = fmt.Fprintf(tw, "Disk GUID:\t%s\n", table.GUID)
			_, _ = fmt.Fprintf(tw, "Disk size:\t%s\n", units.BytesSize(float64(table.DiskSize())))
			_, _ = fmt.Fprintf(tw, "Sector size:\t%d\n", table.LogicalSectorSize)
			_, _ = fmt.Fprintf(tw, "Usable LBAs:\t%d-%d\n\n", table.FirstUsableLBA(), table.LastUsableLBA())
			_, _ = fmt.Fprintln(tw, "INDEX\tNAME\tSTART\tEND\tSIZE\tTYPE\tGUID")
			for _, p := range table.Partitions {
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\t%s\n", p.Index, p.Name, p.Start, p.End, units.BytesSize(float64(p.Size)), p.Type, p.GUID)
			}
			return nil
		},
	}
	return cmd
}
