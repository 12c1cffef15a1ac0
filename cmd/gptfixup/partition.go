package main

import (
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	gptfixup "github.com/diskfs/go-gptfixup"
	"github.com/diskfs/go-gptfixup/partition/part"
)

const partitionLong = `The partition is given by its name, compared case-insensitively, or failing that
by its 1-based index in the GPT.`

func readCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <device> <partition>",
		Short: "Copy the contents of a partition to stdout",
		Long:  partitionLong,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := options(v)
			if err != nil {
				return err
			}
			p, err := gptfixup.OpenPartition(args[0], args[1], opts...)
			if err != nil {
				return err
			}
			defer p.Close()

			n, err := io.Copy(cmd.OutOrStdout(), p)
			if err != nil {
				return fmt.Errorf("error reading partition %d: %w", p.Index(), err)
			}
			log.Debugf("read %d bytes from partition %d", n, p.Index())
			return nil
		},
	}
	return cmd
}

func writeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write <device> <partition>",
		Short: "Replace the contents of a partition with stdin",
		Long: partitionLong + `

Input that does not fit in the partition is an error; the part that fits has been
written by then.`,
		Example: `  gptfixup write /dev/sdb rootfs < rootfs.ext4`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := options(v)
			if err != nil {
				return err
			}
			p, err := gptfixup.OpenPartition(args[0], args[1], opts...)
			if err != nil {
				return err
			}
			defer p.Close()

			n, err := io.Copy(p, cmd.InOrStdin())
			var ipw *part.IncompletePartitionWriteError
			switch {
			case errors.As(err, &ipw):
				return fmt.Errorf("input is larger than partition %d of %d bytes: %w", p.Index(), p.Size(), err)
			case err != nil:
				return fmt.Errorf("error writing partition %d: %w", p.Index(), err)
			}
			if err := p.Sync(); err != nil {
				return err
			}
			log.Infof("wrote %d bytes to partition %d", n, p.Index())
			return nil
		},
	}
	return cmd
}
