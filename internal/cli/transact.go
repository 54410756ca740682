package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"yumex/internal/common/fsutil"
	"yumex/internal/pkgcache"
	"yumex/internal/transaction"
	"yumex/pkg/types"
)

// transactCmd builds a command queueing its arguments from bucket and
// running the transaction.
func (a *app) transactCmd(use, short string, bucket types.Bucket) *cobra.Command {
	args := cobra.MinimumNArgs(1)
	if bucket == types.BucketUpdates {
		args = cobra.ArbitraryArgs
	}
	return &cobra.Command{
		Use:   use + " PACKAGE...",
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, names []string) error {
			return a.withEnv(cmd, func(ctx context.Context, e *env) error {
				if err := queueTargets(ctx, e, bucket, names); err != nil {
					return err
				}
				out, err := e.coord.Execute(ctx)
				if err != nil {
					return err
				}
				return a.report(out)
			})
		},
	}
}

// queueTargets queues the packages of bucket named by args. Local RPM
// paths are only accepted for installs.
func queueTargets(ctx context.Context, e *env, bucket types.Bucket, args []string) error {
	var names, paths []string
	for _, arg := range args {
		if bucket == types.BucketAvailable && fsutil.IsRPMPath(arg) {
			paths = append(paths, arg)
			continue
		}
		names = append(names, arg)
	}

	queue := e.coord.Queue()
	if len(paths) > 0 {
		abs, err := fsutil.ResolveRPMs(paths)
		if err != nil {
			return err
		}
		recs, err := e.daemon.ListLocal(ctx, abs)
		if err != nil {
			return err
		}
		if len(recs) != len(abs) {
			return fmt.Errorf("daemon read %d of %d local packages", len(recs), len(abs))
		}
		// The daemon reports local packages in pattern order.
		e.cache.Populate(types.BucketLocalInstall, recs)
		for i, rec := range recs {
			p, ok := e.cache.Lookup(rec.ID())
			if !ok {
				continue
			}
			p.SetAction(types.ActionLocalInstall)
			p.SetQueued(true)
			queue.Add(types.QueueItem{PkgID: p.ID, Action: types.ActionLocalInstall, Path: abs[i]})
		}
	}
	if len(names) == 0 && len(paths) > 0 {
		return nil
	}

	recs, err := e.daemon.ListPackages(ctx, bucket)
	if err != nil {
		return err
	}
	pkgs := e.cache.Populate(bucket, recs)
	action := bucket.DefaultAction()
	if len(names) == 0 {
		for _, p := range pkgs {
			enqueue(queue, p, action)
		}
		return nil
	}
	for _, name := range names {
		matched := false
		for _, p := range pkgs {
			if p.Name == name || p.ID == name {
				enqueue(queue, p, action)
				matched = true
			}
		}
		if !matched {
			return fmt.Errorf("%s: no match among %s packages", name, bucket)
		}
	}
	return nil
}

func enqueue(q *transaction.Queue, p *pkgcache.Package, action types.Action) {
	p.SetAction(action)
	p.SetQueued(true)
	q.Add(types.QueueItem{PkgID: p.ID, Action: action})
}

// report prints the outcome and turns failures into an error.
func (a *app) report(out transaction.Outcome) error {
	w := a.io.Out
	switch out.State {
	case transaction.StateIdle:
		fmt.Fprintln(w, "Transaction cancelled.")
		return nil
	case transaction.StateSucceeded:
		fmt.Fprintf(w, "Transaction complete: %d package(s).\n", out.Resolution.Tree.Len())
		if out.KeyImports > 0 {
			fmt.Fprintf(w, "Imported %d signing key(s).\n", out.KeyImports)
		}
		return nil
	}
	for _, m := range out.Messages {
		fmt.Fprintln(a.io.Err, " ", m)
	}
	if out.Err != nil {
		return out.Err
	}
	return errors.New("transaction failed: " + out.Failure.String())
}
