// cmd/update-ctl/main.go
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gammanik/buildsync/internal/artifacts"
	"github.com/Gammanik/buildsync/internal/catalog"
	"github.com/Gammanik/buildsync/internal/protocol"
	"github.com/Gammanik/buildsync/internal/storage"
	"github.com/Gammanik/buildsync/internal/utils"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

type globalOptions struct {
	node     string
	password string
	timeout  time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:          "update-ctl",
		Short:        "Query and download builds from an update node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.node, "node", "http://127.0.0.1:8000", "Base URL of the node")
	cmd.PersistentFlags().StringVar(&opts.password, "password", "", "Shared secret of the node")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", storage.DefaultTimeout, "Request timeout")

	cmd.AddCommand(newCheckCommand(opts), newFetchCommand(opts))
	return cmd
}

func newCheckCommand(opts *globalOptions) *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Send a local catalog to the node and print components that have newer builds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(catalogPath, nil)
			if err != nil {
				return err
			}

			versions := protocol.VersionList{}
			for _, e := range cat.Outbound() {
				versions = append(versions, protocol.Version{Component: e.Component, Tag: e.Tag})
			}

			stale, err := storage.New(opts.timeout).Check(cmd.Context(), opts.node, opts.password, versions)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range stale {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "./versions.json", "Local catalog file")
	return cmd
}

func newFetchCommand(opts *globalOptions) *cobra.Command {
	var (
		component string
		dir       string
		ext       string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the current build of one component",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(component) == "" {
				return errors.New("--component is required")
			}

			store, err := artifacts.New(dir, ext)
			if err != nil {
				return err
			}

			tmp, err := store.CreateTemp()
			if err != nil {
				return err
			}

			hw := utils.NewHashingWriter()
			info, err := storage.New(opts.timeout).Download(cmd.Context(), opts.node, opts.password, component, io.MultiWriter(tmp, hw))
			if err != nil {
				store.Discard(tmp)
				return err
			}

			tag, err := store.ParseFileName(info.FileName)
			if err != nil {
				store.Discard(tmp)
				return err
			}

			path, err := store.Publish(tmp, tag)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d bytes sha256:%s\n", tag, path, hw.Size(), hw.Sum())
			return nil
		},
	}

	cmd.Flags().StringVar(&component, "component", "", "Component to download")
	cmd.Flags().StringVar(&dir, "dir", ".", "Destination directory")
	cmd.Flags().StringVar(&ext, "ext", artifacts.DefaultExt, "Artifact file extension")
	return cmd
}
