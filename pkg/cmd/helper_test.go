package cmd_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/wuxler/chanidx/pkg/cmd"
)

func runWithArgs(t *testing.T, action cmd.ActionFunc, argv ...string) error {
	t.Helper()
	called := false
	app := &cli.Command{
		Name:   "test",
		Before: cli.BeforeFunc(action),
		Action: func(context.Context, *cli.Command) error {
			called = true
			return nil
		},
	}
	err := app.Run(context.Background(), append([]string{"test"}, argv...))
	if err == nil {
		assert.True(t, called, "Action must run when validation passes")
	}
	return err
}

func TestExactArgs(t *testing.T) {
	require.NoError(t, runWithArgs(t, cmd.ExactArgs(1), "one"))
	assert.Error(t, runWithArgs(t, cmd.ExactArgs(1)))
	assert.Error(t, runWithArgs(t, cmd.ExactArgs(1), "one", "two"))
}

func TestMinimumNArgs(t *testing.T) {
	require.NoError(t, runWithArgs(t, cmd.MinimumNArgs(1), "one", "two"))
	assert.Error(t, runWithArgs(t, cmd.MinimumNArgs(2), "one"))
}

func TestMaximumNArgs(t *testing.T) {
	require.NoError(t, runWithArgs(t, cmd.MaximumNArgs(2), "one"))
	assert.Error(t, runWithArgs(t, cmd.MaximumNArgs(1), "one", "two"))
}

func TestNoArgs(t *testing.T) {
	require.NoError(t, runWithArgs(t, cmd.NoArgs()))
	assert.Error(t, runWithArgs(t, cmd.NoArgs(), "unexpected"))
}

func TestActionFuncChainStopsOnFirstError(t *testing.T) {
	order := []string{}
	first := cmd.ActionFunc(func(context.Context, *cli.Command) error {
		order = append(order, "first")
		return assert.AnError
	})
	second := cmd.ActionFunc(func(context.Context, *cli.Command) error {
		order = append(order, "second")
		return nil
	})
	chained := cmd.ActionFuncChain(first, second)
	err := chained(context.Background(), &cli.Command{})
	assert.Error(t, err)
	assert.Equal(t, []string{"first"}, order, "a failing handler must short-circuit the chain")
}
