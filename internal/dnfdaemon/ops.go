package dnfdaemon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"yumex/pkg/types"
)

// Command names without a postprocessor.
const (
	CmdResetGoal      = "reset_goal"
	CmdRunTransaction = "run_transaction"
	CmdConfirmKey     = "confirm_key"
	CmdEnableRepos    = "enable_repos"
	CmdDisableRepos   = "disable_repos"
	CmdReadRepos      = "read_all_repos"
)

var nevraAttrs = []string{"name", "epoch", "version", "release", "arch", "repo_id"}

type options map[string]dbus.Variant

func (o options) set(key string, v any) options {
	o[key] = dbus.MakeVariant(v)
	return o
}

func listOptions(scope string) options {
	return options{}.set("package_attrs", packageAttrs).set("scope", scope)
}

// listScope streams every package the daemon reports for scope.
func (c *Client) listScope(ctx context.Context, opts options) ([]types.PackageRecord, error) {
	v, err := c.do(ctx, Command{
		Name:   CmdListPackages,
		Iface:  IfaceRpm,
		Method: "list_fd",
		Args:   []any{map[string]dbus.Variant(opts)},
		Shape:  ShapePipe,
	})
	if err != nil {
		return nil, err
	}
	recs, _ := v.([]types.PackageRecord)
	return recs, nil
}

// ListPackages returns the packages belonging to bucket. Buckets the
// daemon has no scope for are derived from the installed set.
func (c *Client) ListPackages(ctx context.Context, bucket types.Bucket) ([]types.PackageRecord, error) {
	switch bucket {
	case types.BucketInstalled:
		return c.listScope(ctx, listOptions("installed"))
	case types.BucketAvailable:
		return c.listScope(ctx, listOptions("available").set("latest-limit", int32(1)))
	case types.BucketUpdates:
		return c.listScope(ctx, listOptions("upgrades").set("latest-limit", int32(1)))
	case types.BucketLocalInstall:
		return nil, fmt.Errorf("list %s: use ListLocal", bucket)
	}
	installed, err := c.listScope(ctx, listOptions("installed"))
	if err != nil {
		return nil, err
	}
	var candidates []types.PackageRecord
	if bucket == types.BucketObsoletes {
		candidates, err = c.listScope(ctx, listOptions("upgrades").set("latest-limit", int32(1)))
	} else {
		candidates, err = c.listScope(ctx, listOptions("available"))
	}
	if err != nil {
		return nil, err
	}
	return deriveBucket(bucket, installed, candidates), nil
}

// deriveBucket selects the candidates that belong to bucket relative to
// the installed set.
func deriveBucket(bucket types.Bucket, installed, candidates []types.PackageRecord) []types.PackageRecord {
	byKey := make(map[string]types.PackageRecord, len(installed))
	names := make(map[string]struct{}, len(installed))
	for _, p := range installed {
		byKey[p.Name+"."+p.Arch] = p
		names[p.Name] = struct{}{}
	}
	var out []types.PackageRecord
	for _, p := range candidates {
		inst, ok := byKey[p.Name+"."+p.Arch]
		switch bucket {
		case types.BucketObsoletes:
			if _, upgrade := names[p.Name]; !upgrade {
				out = append(out, p)
			}
		case types.BucketReinstall:
			if ok && types.CompareEVR(p.Epoch, p.Version, p.Release, inst.Epoch, inst.Version, inst.Release) == 0 {
				out = append(out, p)
			}
		case types.BucketDowngrade:
			if ok && types.CompareEVR(p.Epoch, p.Version, p.Release, inst.Epoch, inst.Version, inst.Release) < 0 {
				out = append(out, p)
			}
		}
	}
	return out
}

// ListLocal reads package headers of local RPM files.
func (c *Client) ListLocal(ctx context.Context, paths []string) ([]types.PackageRecord, error) {
	return c.listScope(ctx, listOptions("all").set("patterns", paths))
}

// Search returns the identity strings of packages whose name matches key.
func (c *Client) Search(ctx context.Context, key string) ([]string, error) {
	opts := options{}.
		set("package_attrs", nevraAttrs).
		set("patterns", []string{"*" + key + "*"}).
		set("scope", "all").
		set("latest-limit", int32(1)).
		set("icase", true).
		set("with_nevra", true).
		set("with_provides", false).
		set("with_filenames", false).
		set("with_binaries", false)
	v, err := c.do(ctx, Command{Name: CmdSearch, Iface: IfaceRpm, Method: "list", Args: []any{map[string]dbus.Variant(opts)}})
	if err != nil {
		return nil, err
	}
	ids, _ := v.([]string)
	return ids, nil
}

// FetchAttribute reads one extended attribute of a package. Advisories
// come from the advisory interface; everything else from a package list
// restricted to the package's NEVRA.
func (c *Client) FetchAttribute(ctx context.Context, pkgID string, attr types.Attribute) (any, error) {
	id, err := types.FromID(pkgID)
	if err != nil {
		return nil, &Error{Kind: KindEntityNotFound, Op: CmdGetAttribute, Message: pkgID, Err: err}
	}
	if attr == types.AttrAdvisories {
		return c.Advisories(ctx, "", []string{id.Name})
	}
	if _, err := types.ParseAttribute(attr.String()); err != nil {
		return nil, &Error{Kind: KindIllegalAttribute, Op: CmdGetAttribute, Message: attr.String()}
	}
	opts := options{}.
		set("package_attrs", append(append([]string{}, nevraAttrs...), attr.String())).
		set("patterns", []string{id.NEVRA()}).
		set("scope", "all").
		set("with_nevra", true)
	return c.CallSync(ctx, Command{
		Name:      CmdGetAttribute,
		Iface:     IfaceRpm,
		Method:    "list",
		Args:      []any{map[string]dbus.Variant(opts)},
		Target:    pkgID,
		Attribute: attr,
	})
}

// Repositories lists configured repositories.
func (c *Client) Repositories(ctx context.Context) ([]types.Repository, error) {
	opts := options{}.
		set("repo_attrs", []string{"id", "name", "enabled"}).
		set("enable_disable", "all")
	v, err := c.CallSync(ctx, Command{Name: CmdRepositories, Iface: IfaceRepo, Method: "list", Args: []any{map[string]dbus.Variant(opts)}})
	if err != nil {
		return nil, err
	}
	repos, _ := v.([]types.Repository)
	return repos, nil
}

func (c *Client) EnableRepos(ctx context.Context, ids ...string) error {
	_, err := c.do(ctx, Command{Name: CmdEnableRepos, Iface: IfaceRepoConf, Method: "enable", Args: []any{ids}, Shape: ShapeVoid})
	return err
}

func (c *Client) DisableRepos(ctx context.Context, ids ...string) error {
	_, err := c.do(ctx, Command{Name: CmdDisableRepos, Iface: IfaceRepoConf, Method: "disable", Args: []any{ids}, Shape: ShapeVoid})
	return err
}

// ExpireCache marks repository metadata as expired.
func (c *Client) ExpireCache(ctx context.Context) error {
	_, err := c.do(ctx, Command{Name: CmdExpireCache, Iface: IfaceBase, Method: "clean", Args: []any{"expire-cache"}})
	return err
}

// ReadAllRepos loads repository metadata, downloading it when stale.
func (c *Client) ReadAllRepos(ctx context.Context) error {
	v, err := c.do(ctx, Command{Name: CmdReadRepos, Iface: IfaceBase, Method: "read_all_repos"})
	if err != nil {
		return err
	}
	if ok, isBool := v.(bool); isBool && !ok {
		return &Error{Kind: KindDaemon, Op: CmdReadRepos, Message: "repository metadata could not be loaded"}
	}
	return nil
}

// Advisories lists available advisories of kind (all kinds when empty)
// touching the named packages (all packages when empty).
func (c *Client) Advisories(ctx context.Context, kind string, names []string) ([]types.Advisory, error) {
	opts := options{}.
		set("advisory_attrs", []string{"name", "type", "severity", "title", "collections"}).
		set("availability", "available")
	if kind != "" {
		opts.set("types", []string{kind})
	}
	if len(names) > 0 {
		opts.set("contains_pkgs", names)
	}
	v, err := c.do(ctx, Command{Name: CmdAdvisories, Iface: IfaceAdvisory, Method: "list", Args: []any{map[string]dbus.Variant(opts)}})
	if err != nil {
		return nil, err
	}
	advs, _ := v.([]types.Advisory)
	return advs, nil
}

// goalMethods maps queued actions to the Rpm method adding them to the goal.
var goalMethods = map[types.Action]string{
	types.ActionInstall:      "install",
	types.ActionLocalInstall: "install",
	types.ActionUpdate:       "upgrade",
	types.ActionObsolete:     "upgrade",
	types.ActionRemove:       "remove",
	types.ActionReinstall:    "reinstall",
	types.ActionDowngrade:    "downgrade",
}

// Resolve rebuilds the daemon goal from items and resolves it. A non-zero
// code comes back with the daemon's problem report.
func (c *Client) Resolve(ctx context.Context, items []types.QueueItem) (types.Resolution, error) {
	if _, err := c.do(ctx, Command{Name: CmdResetGoal, Iface: IfaceBase, Method: "reset"}); err != nil {
		return types.Resolution{}, err
	}
	specs := make(map[types.Action][]string)
	for _, it := range items {
		spec := it.PkgID
		if it.Action == types.ActionLocalInstall && it.Path != "" {
			spec = it.Path
		} else if id, err := types.FromID(it.PkgID); err == nil {
			spec = id.NEVRA()
		}
		specs[it.Action] = append(specs[it.Action], spec)
	}
	for _, action := range types.Actions {
		list := specs[action]
		if len(list) == 0 {
			continue
		}
		method, ok := goalMethods[action]
		if !ok {
			return types.Resolution{}, fmt.Errorf("no goal method for action %s", action)
		}
		_, err := c.do(ctx, Command{
			Name:   "goal_" + string(action),
			Iface:  IfaceRpm,
			Method: method,
			Args:   []any{list, map[string]dbus.Variant{}},
			Shape:  ShapeVoid,
		})
		if err != nil {
			return types.Resolution{}, err
		}
	}
	v, err := c.do(ctx, Command{Name: CmdBuildTransaction, Iface: IfaceGoal, Method: "resolve", Args: []any{map[string]dbus.Variant{}}})
	if err != nil {
		return types.Resolution{}, err
	}
	res, _ := v.(types.Resolution)
	if res.Code != types.ResolveOK {
		pv, err := c.do(ctx, Command{Name: CmdProblems, Iface: IfaceGoal, Method: "get_transaction_problems_string"})
		if err != nil {
			return res, err
		}
		res.Problems, _ = pv.([]string)
	}
	return res, nil
}

// Run executes the resolved goal. Transaction-level failures are
// classified into the RunResult; only transport and session errors are
// returned as errors.
func (c *Client) Run(ctx context.Context) (types.RunResult, error) {
	c.mu.Lock()
	c.keyRequest = nil
	c.downloadFailures = nil
	c.mu.Unlock()

	opts := options{}.set("comment", "yumex")
	_, err := c.do(ctx, Command{
		Name:   CmdRunTransaction,
		Iface:  IfaceGoal,
		Method: "do_transaction",
		Args:   []any{map[string]dbus.Variant(opts)},
		Shape:  ShapeVoid,
	})
	if err == nil {
		return types.RunResult{Code: types.RunOK}, nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return types.RunResult{}, err
	}
	switch e.Kind {
	case KindTimeout, KindCommandInProgress, KindAccessDenied, KindLocked:
		return types.RunResult{}, err
	}

	// Key requests and download failures arrive as signals ahead of the
	// failed reply; they must be handled before the failure is classified.
	c.syncSignals(ctx)
	msgs := splitMessages(e.Message)
	c.mu.Lock()
	req := c.keyRequest
	fails := append([]string(nil), c.downloadFailures...)
	c.mu.Unlock()

	switch {
	case req != nil:
		r := *req
		return types.RunResult{Code: types.RunKeyImport, Messages: msgs, KeyRequest: &r}, nil
	case mentions(msgs, "signature", "gpg", "public key"):
		return types.RunResult{Code: types.RunSignature, Messages: msgs}, nil
	case len(fails) > 0 || mentions(msgs, "download"):
		return types.RunResult{Code: types.RunDownloadErrors, Messages: append(fails, msgs...)}, nil
	default:
		return types.RunResult{Code: types.RunFailed, Messages: msgs}, nil
	}
}

// ConfirmKey relays the user's answer to a key import request.
func (c *Client) ConfirmKey(ctx context.Context, keyID string, accept bool) error {
	_, err := c.do(ctx, Command{Name: CmdConfirmKey, Iface: IfaceRepo, Method: "confirm_key", Args: []any{keyID, accept}, Shape: ShapeVoid})
	if err == nil {
		c.mu.Lock()
		c.keyRequest = nil
		c.mu.Unlock()
	}
	return err
}

// Release drops the goal held by the session.
func (c *Client) Release(ctx context.Context) error {
	c.watchdog.stop()
	c.mu.Lock()
	c.keyRequest = nil
	c.downloadFailures = nil
	c.mu.Unlock()
	_, err := c.do(ctx, Command{Name: CmdResetGoal, Iface: IfaceBase, Method: "reset"})
	return err
}

func splitMessages(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func mentions(msgs []string, words ...string) bool {
	for _, m := range msgs {
		lower := strings.ToLower(m)
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
	}
	return false
}
