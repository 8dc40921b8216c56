package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	deviceflags "github.com/evo-company/deviceflags-go"
)

const (
	outFlag = "out"
	inFlag  = "in"
)

// snapshotFile is the on-disk form of a namespace snapshot.
type snapshotFile struct {
	Namespace  string            `yaml:"namespace"`
	Properties map[string]string `yaml:"properties"`
}

func newApp(lookuper envconfig.Lookuper) *app {
	return &app{
		lookuper: lookuper,
		logger:   logrus.New(),
	}
}

// execute runs cmd and tears a down whether or not the command failed, so
// closers run and the metrics of failed operations are still written.
func execute(a *app, cmd *cobra.Command) error {
	err := cmd.Execute()
	if tErr := a.teardown(); err == nil {
		err = tErr
	}
	return err
}

func rootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deviceflags",
		Short: "Read, toggle, snapshot and restore a device config flag",
		Long: `
deviceflags works with one boolean device config flag, by default the Safety
Center switch (privacy/safety_center_is_enabled).

The store is chosen with DEVICEFLAGS_BACKEND (shell, redis, file or mem).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger.SetOutput(cmd.ErrOrStderr())
			return a.setup(cmd.Context())
		},
	}

	cmd.AddCommand(
		supportedCommand(a),
		getCommand(a),
		setCommand(a),
		snapshotCommand(a),
		resetCommand(a),
	)
	return cmd
}

func supportedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "supported",
		Short: "Print whether the device supports the feature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.flags.IsSupported(cmd.Context()))
			return nil
		},
	}
}

func getCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print whether the flag is enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := a.flags.Enabled(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), enabled)
			return nil
		},
	}
}

func setCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <true|false>",
		Short: "Enable or disable the flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseBool(args[0])
			if err != nil {
				return errors.Wrapf(err, "invalid flag value %q", args[0])
			}
			return a.flags.SetEnabled(cmd.Context(), value)
		},
	}
}

func snapshotCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write every property of the flag namespace as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := a.flags.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(snapshotFile{
				Namespace:  snapshot.Namespace,
				Properties: snapshot.Map(),
			})
			if err != nil {
				return errors.Wrap(err, "encode snapshot")
			}

			out, _ := cmd.Flags().GetString(outFlag)
			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}

	cmd.Flags().String(outFlag, "", "file to write the snapshot to instead of stdout")
	return cmd
}

func resetCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the flag namespace from a snapshot file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString(inFlag)

			var r io.Reader = cmd.InOrStdin()
			if in != "-" {
				f, err := os.Open(in)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			var file snapshotFile
			if err := yaml.NewDecoder(r).Decode(&file); err != nil {
				return errors.Wrap(err, "decode snapshot")
			}
			if file.Namespace == "" {
				return errors.New("snapshot has no namespace")
			}

			return a.flags.Reset(cmd.Context(), deviceflags.NewProperties(file.Namespace, file.Properties))
		},
	}

	cmd.Flags().String(inFlag, "", "snapshot file to restore, - for stdin")
	_ = cmd.MarkFlagRequired(inFlag)
	return cmd
}
