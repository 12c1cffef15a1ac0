package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	gptfixup "github.com/diskfs/go-gptfixup"
	"github.com/diskfs/go-gptfixup/fixup"
)

func fixupCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixup <device>",
		Short: "Rewrite the GPT of a device to fit the size of the device",
		Long: `Rewrite the GPT of a device that had a smaller image written to it, e.g. with dd.
The partition entries are kept as they are; the backup header and partition array
are moved to the end of the device and the protective MBR is rewritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := options(v)
			if err != nil {
				return err
			}
			res, err := gptfixup.Fixup(args[0], opts...)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	return cmd
}

func printResult(w io.Writer, res *fixup.Result) {
	tw := tabwriter.NewWriter(w, 4, 4, 2, ' ', 0)
	defer tw.Flush()
	_, _ = fmt.Fprintf(tw, "Disk size:\t%s\t(%d sectors of %d bytes)\n", units.BytesSize(float64(res.DiskSize)), res.DiskSize/res.SectorSize, res.SectorSize)
	_, _ = fmt.Fprintf(tw, "Backup header LBA:\t%d\t(was %d)\n", res.BackupHeaderLBA, res.OldBackupHeaderLBA)
	_, _ = fmt.Fprintf(tw, "Usable LBAs:\t%d-%d\t(was %d-%d)\n", res.FirstUsableLBA, res.LastUsableLBA, res.OldFirstUsableLBA, res.OldLastUsableLBA)
	_, _ = fmt.Fprintf(tw, "Backup partition array LBA:\t%d\t\n", res.BackupPartitionArrayLBA)
	_, _ = fmt.Fprintf(tw, "Header CRC32:\t%#08x\t(was %#08x)\n", res.HeaderCRC, res.OldHeaderCRC)
	_, _ = fmt.Fprintf(tw, "Partition array CRC32:\t%#08x\t(was %#08x)\n", res.PartitionArrayCRC, res.OldPartitionArrayCRC)
}
