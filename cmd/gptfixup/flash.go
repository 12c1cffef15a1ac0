package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	gptfixup "github.com/diskfs/go-gptfixup"
)

func flashCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flash <image> <device>",
		Short: "Write an image to a device and fix up its GPT",
		Long: `Write a raw, xz or lz4 compressed disk image to the start of a device, then fix up
its GPT to fit the device and ask the kernel to re-read the partition table.

The device is not truncated: anything past the end of the image is left in place.`,
		Example: `  gptfixup flash raspios.img.xz /dev/sdb --verify
  GPTFIXUP_CHUNK_SIZE=64MiB gptfixup flash disk.img /dev/mmcblk0`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := options(v)
			if err != nil {
				return err
			}
			image, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("could not open image: %w", err)
			}
			defer image.Close()

			res, err := gptfixup.Flash(image, args[1], opts...)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().Bool(keyVerify, false, "Compare the device with the image after writing it")
	cmd.Flags().String(keyChunkSize, "9MiB", "How much of the image to write at a time")
	_ = v.BindPFlag(keyVerify, cmd.Flags().Lookup(keyVerify))
	_ = v.BindPFlag(keyChunkSize, cmd.Flags().Lookup(keyChunkSize))
	return cmd
}
