package main

import (
	"context"
	"fmt"

	"github.com/akashdube/PartsUL/pkg/catalog"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newCacheCommand(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or evict entries in the configured cache backend",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print the raw payload stored under key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return cacheGet(cmd, load, args[0])
			},
		},
		&cobra.Command{
			Use:   "evict <key>...",
			Short: "Remove entries, for example product_7 or topselling",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return cacheEvict(cmd, load, args)
			},
		},
	)
	return cmd
}

func withCache(ctx context.Context, load configLoader, fn func(a *app) error) error {
	a, err := newApp(ctx, load, false)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func cacheGet(cmd *cobra.Command, load configLoader, key string) error {
	return withCache(cmd.Context(), load, func(a *app) error {
		res, err := a.cache.TryGet(cmd.Context(), key)
		if err != nil {
			return err
		}
		payload, ok := res.Value()
		if !ok {
			return errors.Newf("%s: not cached", key)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return err
	})
}

func cacheEvict(cmd *cobra.Command, load configLoader, keys []string) error {
	return withCache(cmd.Context(), load, func(a *app) error {
		failed := catalog.NewInvalidator(a.cache, a.logger).Evict(cmd.Context(), "operator", keys...)
		if failed > 0 {
			return errors.Newf("%d of %d keys could not be evicted", failed, len(keys))
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "evicted %d keys\n", len(keys))
		return err
	})
}
