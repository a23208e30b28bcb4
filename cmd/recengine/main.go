// recengine 是推荐核心的命令行入口，面向 SQLite 实体库执行打分、热门、特征查询与快照重建。
//
//	recengine score --user u1 --algorithm hybrid --top-n 10 -p country=CN
//	recengine trending --window 24h --limit 20
//	recengine features user u1
//	recengine rules
//	recengine rebuild
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rushteam/recengine/config"
	"github.com/rushteam/recengine/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode 按错误类别返回退出码：配置错误 2，未找到 3，其余 1。
func exitCode(err error) int {
	switch {
	case core.IsConfiguration(err), core.IsInvalidInput(err):
		return 2
	case core.IsNotFound(err):
		return 3
	default:
		return 1
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var a *app

	root := &cobra.Command{
		Use:          "recengine",
		Short:        "Hybrid recommendation core",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := config.Load(configPath)
			if err != nil {
				return err
			}
			a, err = newApp(cmd.Context(), s)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $"+config.ConfigPathEnvVar+" or ./recengine.yaml)")

	get := func() *app { return a }
	root.AddCommand(
		newScoreCmd(get),
		newTrendingCmd(get),
		newFeaturesCmd(get),
		newSimilarCmd(get),
		newExplainCmd(get),
		newRulesCmd(get),
		newRebuildCmd(get),
	)
	return root
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// parseParams 解析 key=value 形式的请求参数。
func parseParams(kvs []string) (map[string]string, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, fmt.Sprintf("param %q must be key=value", kv))
		}
		out[k] = v
	}
	return out, nil
}

func newScoreCmd(get func() *app) *cobra.Command {
	var (
		userID    string
		algorithm string
		topN      int
		params    []string
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score recommendations for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			recs, err := get().engine.Score(cmd.Context(), userID, algorithm, topN, p)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id")
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "hybrid", "collaborative | content_based | hybrid")
	cmd.Flags().IntVarP(&topN, "top-n", "n", 10, "number of recommendations")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "request parameter key=value (repeatable)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newTrendingCmd(get func() *app) *cobra.Command {
	var (
		window time.Duration
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "trending",
		Short: "List trending items in a time window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := get().engine.Trending(cmd.Context(), window, limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().DurationVarP(&window, "window", "w", 24*time.Hour, "time window")
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "maximum number of items")
	return cmd
}

func newFeaturesCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:       "features {user|item|pair} ID [ITEM_ID]",
		Short:     "Show computed features",
		Args:      cobra.RangeArgs(2, 3),
		ValidArgs: []string{"user", "item", "pair"},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ctx := get().engine, cmd.Context()
			var (
				v   any
				err error
			)
			switch args[0] {
			case "user":
				v, err = e.GetUserFeatures(ctx, args[1])
			case "item":
				v, err = e.GetItemFeatures(ctx, args[1])
			case "pair":
				if len(args) != 3 {
					return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "pair features need USER_ID and ITEM_ID")
				}
				v, err = e.GetPairFeatures(ctx, args[1], args[2])
			default:
				return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, fmt.Sprintf("unknown feature kind %q", args[0]))
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), v)
		},
	}
}

func newSimilarCmd(get func() *app) *cobra.Command {
	var (
		algorithm string
		n         int
	)
	cmd := &cobra.Command{
		Use:   "similar ITEM_ID",
		Short: "List items similar to an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := get().engine.SimilarItems(cmd.Context(), args[0], algorithm, n)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "content_based", "collaborative | content_based")
	cmd.Flags().IntVarP(&n, "top-n", "n", 10, "number of items")
	return cmd
}

func newExplainCmd(get func() *app) *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "explain USER_ID ITEM_ID",
		Short: "Break down the hybrid score of an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			ex, err := get().engine.Explain(cmd.Context(), args[0], args[1], p)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ex)
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "request parameter key=value (repeatable)")
	return cmd
}

func newRulesCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Show the active business rules in execution order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := get().engine.Rules()
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"version": r.Version(),
				"rules":   r.Summary(),
			})
		},
	}
}

func newRebuildCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the rating matrix and content corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := get().engine
			if err := e.Rebuild(cmd.Context()); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), e.Stats())
		},
	}
}
