// Package main is the entry of the application.
package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/chanidx/pkg/cmd"
	"github.com/wuxler/chanidx/pkg/cmdhelper"
)

func main() {
	app := cli.Command{
		Name:                  "chanidx",
		Usage:                 "chanidx indexes a packaged-software channel into its repodata documents",
		Suggest:               true,
		EnableShellCompletion: true,
		HideVersion:           true,
		HideHelpCommand:       true,
		Commands: []*cli.Command{
			cmd.NewVersionCommand().ToCLI(),
			cmd.NewIndexCommand().ToCLI(),
			cmd.NewChannelDataCommand().ToCLI(),
			cmd.NewResetCommand().ToCLI(),
			cmd.NewImportCacheCommand().ToCLI(),
		},
		ExitErrHandler: func(_ context.Context, c *cli.Command, err error) {
			cli.HandleExitCoder(err)
			cmdhelper.Fprintf(c.ErrWriter, "Error: %+v\n", err)
			os.Exit(1)
		},
	}
	//nolint:errcheck // already checked in root command ExitErrHandler
	_ = app.Run(context.Background(), os.Args)
}
