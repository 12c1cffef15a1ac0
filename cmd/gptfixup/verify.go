package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	gptfixup "github.com/diskfs/go-gptfixup"
	"github.com/diskfs/go-gptfixup/sync"
)

func verifyCmd(v *viper.Viper) *cobra.Command {
	var image string
	cmd := &cobra.Command{
		Use:   "verify <device>",
		Short: "Check that the GPT of a device is consistent and fits the device",
		Long: `Check that the primary and backup GPT of a device agree with each other and
describe the whole device. With --image, first check that the device starts with
the contents of the image; do this before a fixup, which changes the device.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device := args[0]
			opts, err := options(v)
			if err != nil {
				return err
			}
			if image != "" {
				f, err := os.Open(image)
				if err != nil {
					return fmt.Errorf("could not open image: %w", err)
				}
				defer f.Close()
				if err := sync.VerifyImage(f, device, sync.WithLogger(log.StandardLogger())); err != nil {
					return err
				}
				log.Infof("%s matches %s", device, image)
			}

			_, fixable, err := gptfixup.ReadTable(device, opts...)
			if err != nil {
				return err
			}
			if fixable != nil {
				return fmt.Errorf("GPT on %s needs a fixup: %w", device, fixable)
			}
			log.Infof("GPT on %s is consistent", device)
			return nil
		},
	}
	cmd.Flags().StringVar(&image, keyImage, "", "Image the device should start with")
	return cmd
}
