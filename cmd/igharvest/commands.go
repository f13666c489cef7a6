package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"igharvest/internal/analytics"
	"igharvest/internal/cmdlog"
	"igharvest/internal/config"
	"igharvest/internal/harvest"
	"igharvest/internal/jobs"
	"igharvest/internal/kpi"
	"igharvest/internal/metrics"
	"igharvest/internal/model"
	"igharvest/internal/normalize"
	"igharvest/internal/store/sqlite"
	"igharvest/internal/theme"
)

func newInitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("init", func() error {
				if err := config.Save(opts.configPath, config.Default()); err != nil {
					return err
				}
				abs, _ := filepath.Abs(opts.configPath)
				theme.PrintBanner(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), "Config written to:", abs)
				return nil
			})
		},
	}
}

func newHarvestCmd(opts *options) *cobra.Command {
	var ids []int64
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest the given activities once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("harvest", func() error {
				return opts.withApp(func(h *harvest.Harvester, _ *sqlite.Store) error {
					var errs []error
					for _, id := range ids {
						res, err := h.Harvest(cmd.Context(), id)
						if err != nil {
							errs = append(errs, err)
							continue
						}
						out := cmd.OutOrStdout()
						fmt.Fprintf(out, "activity %d run %s\n", id, res.RunID)
						for _, m := range res.Messages {
							fmt.Fprintln(out, "  "+m)
						}
					}
					return errors.Join(errs...)
				})
			})
		},
	}
	cmd.Flags().Int64SliceVar(&ids, "activity", nil, "activity id (repeatable)")
	_ = cmd.MarkFlagRequired("activity")
	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	var ids []int64
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose metrics and harvest activities on an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("serve", func() error {
				if interval <= 0 {
					interval = opts.cfg.Harvest.Interval
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				if srv := metrics.StartServer(opts.cfg.Metrics.Addr); srv != nil {
					defer srv.Close()
				}
				return opts.withApp(func(h *harvest.Harvester, st *sqlite.Store) error {
					if len(ids) == 0 {
						all, err := st.Activities(ctx)
						if err != nil {
							return err
						}
						for _, a := range all {
							ids = append(ids, a.ID)
						}
					}
					err := jobs.RunHarvestLoop(ctx, h, ids, interval)
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				})
			})
		},
	}
	cmd.Flags().Int64SliceVar(&ids, "activity", nil, "activity id (repeatable, default all)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "harvest interval (default from config)")
	return cmd
}

func newKPIsCmd(opts *options) *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Print stored KPIs of an activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("kpis", func() error {
				return opts.withStore(func(st *sqlite.Store) error {
					vals, err := st.LoadKPIs(cmd.Context(), id)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprint(w, "user")
					for _, k := range kpi.Kinds {
						fmt.Fprintf(w, "\t%s\t%s", k, kpi.MaxName(k))
					}
					fmt.Fprintln(w)
					users := make([]int64, 0, len(vals))
					for u := range vals {
						users = append(users, u)
					}
					sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
					for _, u := range users {
						fmt.Fprint(w, u)
						for _, k := range kpi.Kinds {
							fmt.Fprintf(w, "\t%d\t%d", vals[u][string(k)], vals[u][kpi.MaxName(k)])
						}
						fmt.Fprintln(w)
					}
					return w.Flush()
				})
			})
		},
	}
	cmd.Flags().Int64Var(&id, "activity", 0, "activity id")
	_ = cmd.MarkFlagRequired("activity")
	return cmd
}

func newReportCmd(opts *options) *cobra.Command {
	var id int64
	var top int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show hourly activity and top contributors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("report", func() error {
				return opts.withStore(func(st *sqlite.Store) error {
					ctx := cmd.Context()
					act, err := st.Activity(ctx, id)
					if err != nil {
						return err
					}
					items, err := st.Query(ctx, id, act.Start, act.End)
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "%s: %d interactions\n", act.Name, len(items))
					buckets := analytics.HourlyActivity(items)
					for _, k := range analytics.SortedBucketKeys(buckets) {
						b := buckets[k]
						fmt.Fprintf(out, "%s  posts=%d replies=%d reactions=%d mentions=%d\n", k.Format("2006-01-02 15:00"),
							b[model.Post], b[model.Reply], b[model.Reaction], b[model.Mention])
					}
					fmt.Fprintln(out, "Top contributors:")
					for _, c := range analytics.TopContributors(items, top) {
						tag := ""
						if c.Student {
							tag = " (student)"
						}
						fmt.Fprintf(out, "  %-20s %4d  %s%s\n", c.NativeFromName, c.Count, normalize.UserURL(c.NativeFromName), tag)
						fmt.Fprintf(out, "  %-20s latest %s\n", "", normalize.InteractionURL(c.Latest))
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().Int64Var(&id, "activity", 0, "activity id")
	cmd.Flags().IntVar(&top, "top", 10, "number of contributors to list")
	_ = cmd.MarkFlagRequired("activity")
	return cmd
}

func newActivityCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "activity", Short: "Manage activities"}

	var a model.Activity
	var mode, start, end string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create or update an activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("activity_add", func() error {
				var err error
				a.Mode = model.HarvestMode(mode)
				if a.Mode != model.ModeUser && a.Mode != model.ModeTag {
					return fmt.Errorf("invalid mode %q: must be 'user' or 'tag'", mode)
				}
				if a.Start, err = parseDate(start, false); err != nil {
					return err
				}
				if a.End, err = parseDate(end, true); err != nil {
					return err
				}
				return opts.withStore(func(st *sqlite.Store) error {
					if err := st.SaveActivity(cmd.Context(), &a); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "activity", a.ID)
					return nil
				})
			})
		},
	}
	add.Flags().Int64Var(&a.ID, "id", 0, "activity id (0 creates a new one)")
	add.Flags().Int64Var(&a.CourseID, "course", 0, "course id")
	add.Flags().StringVar(&a.Name, "name", "", "activity name")
	add.Flags().StringVar(&mode, "mode", string(model.ModeUser), "harvest mode: user or tag")
	add.Flags().StringVar(&a.Search, "search", "", "tag filter expression, e.g. \"#course AND week1, #extra\"")
	add.Flags().StringVar(&start, "start", "", "window start (RFC3339 or YYYY-MM-DD)")
	add.Flags().StringVar(&end, "end", "", "window end (RFC3339 or YYYY-MM-DD, empty for open-ended)")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(h *harvest.Harvester, st *sqlite.Store) error {
				all, err := st.Activities(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "id\tname\tmode\tsearch\ttracking\tlast harvest")
				for _, act := range all {
					last := "-"
					if act.LastHarvest != nil {
						last = act.LastHarvest.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%s\n", act.ID, act.Name, act.Mode, act.Search, h.Tracking(cmd.Context(), act.ID), last)
				}
				return w.Flush()
			})
		},
	}
	cmd.AddCommand(add, list)
	return cmd
}

func newTokensCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "tokens", Short: "Manage connected accounts"}

	var activity, user int64
	var token, username string
	userFlag := func(c *cobra.Command) *int64 {
		if !c.Flags().Changed("user") {
			return nil
		}
		return &user
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Store an access token (omit --user for the master token)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("tokens_add", func() error {
				return opts.withStore(func(st *sqlite.Store) error {
					t := &model.AccountToken{ActivityID: activity, UserID: userFlag(cmd), AccessToken: token, Username: username}
					if err := st.UpsertToken(cmd.Context(), t); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "token", t.ID)
					return nil
				})
			})
		},
	}
	add.Flags().StringVar(&token, "token", "", "access token")
	add.Flags().StringVar(&username, "username", "", "platform username")
	_ = add.MarkFlagRequired("token")

	list := &cobra.Command{
		Use:   "list",
		Short: "List tokens of an activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(h *harvest.Harvester, st *sqlite.Store) error {
				ctx := cmd.Context()
				toks, err := st.UserTokens(ctx, activity, nil)
				if err != nil {
					return err
				}
				if m, err := h.ConnectionToken(ctx, activity); err != nil {
					return err
				} else if m != nil {
					toks = append([]model.AccountToken{*m}, toks...)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "id\tuser\tusername\tlast used\tstatus")
				for _, t := range toks {
					owner, last, status := "master", "-", "ok"
					if !t.IsMaster() {
						owner = strconv.FormatInt(*t.UserID, 10)
					}
					if t.LastUsed != nil {
						last = t.LastUsed.Format(time.RFC3339)
					}
					if t.ErrorStatus != nil {
						status = *t.ErrorStatus
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.ID, owner, t.Username, last, status)
				}
				return w.Flush()
			})
		},
	}

	disconnect := &cobra.Command{
		Use:   "disconnect",
		Short: "Remove a token (omit --user for the master token)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("tokens_disconnect", func() error {
				return opts.withStore(func(st *sqlite.Store) error {
					return st.DeleteToken(cmd.Context(), activity, userFlag(cmd))
				})
			})
		},
	}

	for _, c := range []*cobra.Command{add, list, disconnect} {
		c.Flags().Int64Var(&activity, "activity", 0, "activity id")
		_ = c.MarkFlagRequired("activity")
	}
	for _, c := range []*cobra.Command{add, disconnect} {
		c.Flags().Int64Var(&user, "user", 0, "local user id")
	}
	cmd.AddCommand(add, list, disconnect)
	return cmd
}

func newLinkCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "link", Short: "Map local users to platform accounts"}
	var l model.SocialLink
	add := &cobra.Command{
		Use:   "add",
		Short: "Link a local user to a platform account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("link_add", func() error {
				return opts.withStore(func(st *sqlite.Store) error {
					if err := st.SaveLink(cmd.Context(), l); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "user %d -> %s\n", l.UserID, normalize.UserURL(l.SocialName))
					return nil
				})
			})
		},
	}
	add.Flags().Int64Var(&l.ActivityID, "activity", 0, "activity id")
	add.Flags().Int64Var(&l.UserID, "user", 0, "local user id")
	add.Flags().StringVar(&l.SocialID, "social-id", "", "platform account id")
	add.Flags().StringVar(&l.SocialName, "social-name", "", "platform username")
	for _, f := range []string{"activity", "user", "social-id"} {
		_ = add.MarkFlagRequired(f)
	}
	cmd.AddCommand(add)
	return cmd
}

func newCohortCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "cohort", Short: "Manage the users whose KPIs are computed"}
	var activity int64
	add := &cobra.Command{
		Use:   "add <user-id>...",
		Short: "Enrol users in an activity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("cohort_add", func() error {
				users := make([]int64, 0, len(args))
				for _, a := range args {
					u, err := strconv.ParseInt(a, 10, 64)
					if err != nil {
						return fmt.Errorf("invalid user id %q: %w", a, err)
					}
					users = append(users, u)
				}
				return opts.withStore(func(st *sqlite.Store) error {
					return st.AddToCohort(cmd.Context(), activity, users...)
				})
			})
		},
	}
	add.Flags().Int64Var(&activity, "activity", 0, "activity id")
	_ = add.MarkFlagRequired("activity")
	cmd.AddCommand(add)
	return cmd
}

func newDeleteCmd(opts *options) *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove interactions, tokens and links of an activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("delete", func() error {
				return opts.withApp(func(h *harvest.Harvester, _ *sqlite.Store) error {
					return h.DeleteInstance(cmd.Context(), id)
				})
			})
		},
	}
	cmd.Flags().Int64Var(&id, "activity", 0, "activity id")
	_ = cmd.MarkFlagRequired("activity")
	return cmd
}

// parseDate accepts RFC3339 or a bare date. A bare date used as a window end
// covers the whole day, since window bounds are inclusive.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want RFC3339 or YYYY-MM-DD", s)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Second)
	}
	return t.UTC(), nil
}
