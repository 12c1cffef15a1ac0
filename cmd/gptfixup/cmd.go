package main

import (
	"errors"
	"fmt"
	"strings"

	units "github.com/docker/go-units"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	gptfixup "github.com/diskfs/go-gptfixup"
)

const (
	envPrefix      = "GPTFIXUP"
	configName     = "gptfixup"
	keyVerbose     = "verbose"
	keyQuiet       = "quiet"
	keySectorSize  = "sector-size"
	keyChunkSize   = "chunk-size"
	keyVerify      = "verify"
	keyImage       = "image"
	flagConfigName = "config"
)

func newCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "gptfixup",
		Short: "Write disk images to devices and fix up their GPT",
		Long: `gptfixup writes disk images to block devices that are larger than the image, and
repairs the GPT afterwards so that it describes the whole device: the backup header
and partition array are moved to the end of the device and the usable range is
widened to match.

Flags may also be given in a gptfixup.yaml config file, or as environment
variables prefixed with GPTFIXUP_, e.g. GPTFIXUP_SECTOR_SIZE=4096.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := readConfig(v, configFile); err != nil {
				return err
			}
			return setupLogging(v.GetBool(keyQuiet), v.GetInt(keyVerbose), cmd.Flags().Changed(keyVerbose))
		},
	}

	cmd.AddCommand(fixupCmd(v))
	cmd.AddCommand(flashCmd(v))
	cmd.AddCommand(listCmd(v))
	cmd.AddCommand(verifyCmd(v))
	cmd.AddCommand(readCmd(v))
	cmd.AddCommand(writeCmd(v))

	cmd.PersistentFlags().StringVar(&configFile, flagConfigName, "", "Config file to read instead of searching for gptfixup.yaml")
	cmd.PersistentFlags().BoolP(keyQuiet, "q", false, "Quiet execution")
	cmd.PersistentFlags().IntP(keyVerbose, "v", 1, "Verbosity of logging: 0 = quiet, 1 = info, 2 = debug, 3 = trace")
	cmd.PersistentFlags().Int64(keySectorSize, 0, "Logical sector size of the device, 512 or 4096; asked of the kernel if not set")
	_ = v.BindPFlags(cmd.PersistentFlags())

	return cmd
}

// readConfig wire viper to the environment and an optional config file. Flags are bound by the commands.
func readConfig(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		return nil
	}
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/gptfixup")
	v.AddConfigPath("/etc/gptfixup")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// options the library options the flags, environment and config ask for
func options(v *viper.Viper) ([]gptfixup.Option, error) {
	opts := []gptfixup.Option{gptfixup.WithLogger(log.StandardLogger())}
	switch size := v.GetInt64(keySectorSize); size {
	case 0:
	case 512, 4096:
		opts = append(opts, gptfixup.WithSectorSize(size))
	default:
		return nil, fmt.Errorf("invalid sector size %d, must be 512 or 4096", size)
	}
	if chunk := v.GetString(keyChunkSize); chunk != "" {
		size, err := units.RAMInBytes(chunk)
		if err != nil {
			return nil, fmt.Errorf("invalid chunk size %q: %w", chunk, err)
		}
		if size <= 0 {
			return nil, fmt.Errorf("invalid chunk size %q", chunk)
		}
		opts = append(opts, gptfixup.WithChunkSize(int(size)))
	}
	if v.GetBool(keyVerify) {
		opts = append(opts, gptfixup.WithVerify(true))
	}
	return opts, nil
}
