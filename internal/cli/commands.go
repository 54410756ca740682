package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"yumex/pkg/types"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list [installed|available|updates|obsoletes|reinstall|downgrade]",
		Short:   "List packages in one bucket (default: updates)",
		Args:    cobra.MaximumNArgs(1),
		Example: "  yumex list installed\n  yumex --arch x86_64 list available",
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket := types.BucketUpdates
			if len(args) == 1 {
				b, err := types.ParseBucket(args[0])
				if err != nil {
					return err
				}
				bucket = b
			}
			return a.withEnv(cmd, func(ctx context.Context, e *env) error {
				recs, err := e.daemon.ListPackages(ctx, bucket)
				if err != nil {
					return err
				}
				pkgs := e.cache.Populate(bucket, recs)
				tw := tabwriter.NewWriter(a.io.Out, 0, 4, 2, ' ', 0)
				for _, p := range pkgs {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", p.NEVRA(), p.Repo, p.Summary)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				a.log.Info().Str("event", "list_done").Str("bucket", string(bucket)).Int("packages", len(pkgs)).Msg("listed")
				return nil
			})
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search KEY",
		Short: "Search packages by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, e *env) error {
				ids, err := e.daemon.Search(ctx, args[0])
				if err != nil {
					return err
				}
				for _, id := range ids {
					pid, err := types.FromID(id)
					if err != nil {
						continue
					}
					fmt.Fprintf(a.io.Out, "%s\t%s\n", pid.NEVRA(), pid.Repo)
				}
				return nil
			})
		},
	}
}

func (a *app) infoCmd() *cobra.Command {
	var showFiles, showChangelog bool
	cmd := &cobra.Command{
		Use:   "info NAME|ID...",
		Short: "Show package details",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, e *env) error {
				ids, err := lookupIDs(ctx, e, args)
				if err != nil {
					return err
				}
				pkgs := e.cache.Populate(types.BucketAvailable, recordsFromIDs(ids))
				for i, p := range pkgs {
					if i > 0 {
						fmt.Fprintln(a.io.Out)
					}
					if err := a.printInfo(ctx, e, p.ID, showFiles, showChangelog); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showFiles, "files", false, "List installed files")
	cmd.Flags().BoolVar(&showChangelog, "changelog", false, "Show the changelog")
	return cmd
}

func (a *app) printInfo(ctx context.Context, e *env, id string, showFiles, showChangelog bool) error {
	p, ok := e.cache.Lookup(id)
	if !ok {
		return fmt.Errorf("%s: not cached", id)
	}
	w := a.io.Out
	fmt.Fprintf(w, "Name        : %s\n", p.Name)
	fmt.Fprintf(w, "Version     : %s-%s\n", p.Version, p.Release)
	fmt.Fprintf(w, "Architecture: %s\n", p.Arch)
	fmt.Fprintf(w, "Repository  : %s\n", p.Repo)
	if groups, err := e.cache.Groups().Lookup(ctx, p.Name); err == nil && len(groups) > 0 {
		fmt.Fprintf(w, "Groups      : %s\n", strings.Join(groups, ", "))
	}
	desc, err := p.Description(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Description :\n%s\n", desc)
	if reqs, err := p.Requires(ctx); err == nil && len(reqs) > 0 {
		fmt.Fprintf(w, "Requires    : %s\n", strings.Join(reqs, ", "))
	}
	if advs, err := p.Advisories(ctx); err == nil {
		for _, adv := range advs {
			fmt.Fprintf(w, "Advisory    : %s (%s) %s\n", adv.ID, adv.Kind, adv.Title)
		}
	}
	if showFiles {
		files, err := p.Files(ctx)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	if showChangelog {
		logs, err := p.Changelogs(ctx)
		if err != nil {
			return err
		}
		for _, cl := range logs {
			fmt.Fprintf(w, "* %s %s\n%s\n", cl.Time.Format("Mon Jan 02 2006"), cl.Author, cl.Text)
		}
	}
	return nil
}

// lookupIDs maps each argument to identity strings. Arguments that are
// already identity strings pass through; names are searched and must match
// a package name exactly.
func lookupIDs(ctx context.Context, e *env, args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		if _, err := types.FromID(arg); err == nil {
			out = append(out, arg)
			continue
		}
		ids, err := e.daemon.Search(ctx, arg)
		if err != nil {
			return nil, err
		}
		found := false
		for _, id := range ids {
			if pid, err := types.FromID(id); err == nil && pid.Name == arg {
				out = append(out, id)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("no package named %q", arg)
		}
	}
	return out, nil
}

func recordsFromIDs(ids []string) []types.PackageRecord {
	recs := make([]types.PackageRecord, 0, len(ids))
	for _, id := range ids {
		pid, err := types.FromID(id)
		if err != nil {
			continue
		}
		recs = append(recs, types.PackageRecord{
			Name: pid.Name, Epoch: pid.Epoch, Version: pid.Version, Release: pid.Release,
			Arch: pid.Arch, RepoID: pid.Repo, Installed: pid.Repo == "@System",
		})
	}
	return recs
}

func (a *app) reposCmd() *cobra.Command {
	var enable, disable string
	var expire bool
	cmd := &cobra.Command{
		Use:     "repos",
		Short:   "List, enable or disable repositories",
		Args:    cobra.NoArgs,
		Example: "  yumex repos --enable updates-testing\n  yumex repos --expire",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, e *env) error {
				if ids := splitCSV(enable); len(ids) > 0 {
					if err := e.daemon.EnableRepos(ctx, ids...); err != nil {
						return err
					}
				}
				if ids := splitCSV(disable); len(ids) > 0 {
					if err := e.daemon.DisableRepos(ctx, ids...); err != nil {
						return err
					}
				}
				if expire {
					if err := e.daemon.ExpireCache(ctx); err != nil {
						return err
					}
				}
				repos, err := e.daemon.Repositories(ctx)
				if err != nil {
					return err
				}
				sort.Slice(repos, func(i, j int) bool { return repos[i].ID < repos[j].ID })
				tw := tabwriter.NewWriter(a.io.Out, 0, 4, 2, ' ', 0)
				for _, r := range repos {
					state := "disabled"
					if r.Enabled {
						state = "enabled"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, state, r.Name)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&enable, "enable", "", "Comma separated repository ids to enable")
	cmd.Flags().StringVar(&disable, "disable", "", "Comma separated repository ids to disable")
	cmd.Flags().BoolVar(&expire, "expire", false, "Expire cached repository metadata")
	return cmd
}

func (a *app) advisoriesCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "advisories [NAME...]",
		Short: "List available update advisories",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch kind {
			case "", "security", "bugfix", "enhancement", "newpackage":
			default:
				return fmt.Errorf("unknown advisory kind %q", kind)
			}
			return a.withEnv(cmd, func(ctx context.Context, e *env) error {
				advs, err := e.daemon.Advisories(ctx, kind, args)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(a.io.Out, 0, 4, 2, ' ', 0)
				for _, adv := range advs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", adv.ID, adv.Kind, adv.Severity, strings.Join(adv.Packages, ","))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Advisory kind: security|bugfix|enhancement|newpackage")
	return cmd
}
