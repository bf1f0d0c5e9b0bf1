package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/wuxler/chanidx/pkg/cmdhelper"
)

// NewResetCommand returns a ResetCommand with default values.
func NewResetCommand() *ResetCommand {
	return &ResetCommand{
		Common: NewCommon(),
	}
}

// ResetCommand deletes the per-subdir cache database files under
// Common.CacheDir, forcing the next "index" run to rebuild its observed-file
// and extracted-metadata tables from scratch.
type ResetCommand struct {
	*Common

	Force bool
}

func (c *ResetCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:   "reset",
		Usage:  "Delete cached extraction state, forcing a full re-extract on the next index run",
		Flags:  c.Flags(),
		Before: cli.BeforeFunc(c.before),
		Action: c.Run,
	}
}

func (c *ResetCommand) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "force",
			Aliases:     []string{"f"},
			Usage:       "skip the confirmation prompt",
			Destination: &c.Force,
			Value:       c.Force,
		},
	}
	return append(flags, c.Common.Flags()...)
}

func (c *ResetCommand) before(ctx context.Context, cmd *cli.Command) error {
	return c.Common.Init(ctx, cmd)
}

func (c *ResetCommand) Run(ctx context.Context, cmd *cli.Command) error {
	dbs, err := filepath.Glob(filepath.Join(c.CacheDir, "*.cache.db"))
	if err != nil {
		return fmt.Errorf("globbing %s: %w", c.CacheDir, err)
	}
	if len(dbs) == 0 {
		cmdhelper.Fprintf(cmd.Writer, "no cache database files found under %s", c.CacheDir)
		return nil
	}

	cmdhelper.Fprintf(cmd.Writer, "Found %d cache database file(s) under %s:", len(dbs), c.CacheDir)
	for _, db := range dbs {
		cmdhelper.Fprintf(cmd.Writer, "  - %s", filepath.Base(db))
	}

	confirmed := c.Force
	if !confirmed {
		prompt := &promptui.Prompt{
			Label:     "Are you sure to delete all cached extraction state",
			Default:   "N",
			IsConfirm: true,
		}
		userInput, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrAbort) {
				return nil
			}
			return err
		}
		confirmed = strings.EqualFold(userInput, "y")
	}
	if !confirmed {
		return nil
	}

	for _, db := range dbs {
		if err := os.Remove(db); err != nil {
			return fmt.Errorf("removing %s: %w", db, err)
		}
	}
	cmdhelper.Fprintf(cmd.Writer, "Deleted %d cache database file(s)", len(dbs))
	return nil
}
