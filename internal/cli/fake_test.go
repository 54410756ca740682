package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"yumex/internal/dnfdaemon"
	"yumex/pkg/types"
)

// fakeDaemon records calls and answers from canned data.
type fakeDaemon struct {
	mu sync.Mutex

	buckets  map[types.Bucket][]types.PackageRecord
	local    []types.PackageRecord
	searches map[string][]string
	attrs    map[types.Attribute]any
	repos    []types.Repository
	advs     []types.Advisory
	res      types.Resolution
	run      types.RunResult

	resolved  [][]types.QueueItem
	runs      int
	enabled   []string
	disabled  []string
	expired   bool
	closed    bool
	advKind   string
	localSeen []string

	queue *dnfdaemon.Queue
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{
		buckets:  map[types.Bucket][]types.PackageRecord{},
		searches: map[string][]string{},
		attrs:    map[types.Attribute]any{},
		queue:    dnfdaemon.NewQueue(),
	}
}

func (f *fakeDaemon) ListPackages(_ context.Context, b types.Bucket) ([]types.PackageRecord, error) {
	return f.buckets[b], nil
}

func (f *fakeDaemon) ListLocal(_ context.Context, paths []string) ([]types.PackageRecord, error) {
	f.localSeen = append(f.localSeen, paths...)
	return f.local, nil
}

func (f *fakeDaemon) Search(_ context.Context, key string) ([]string, error) {
	return f.searches[key], nil
}

func (f *fakeDaemon) FetchAttribute(_ context.Context, _ string, attr types.Attribute) (any, error) {
	if v, ok := f.attrs[attr]; ok {
		return v, nil
	}
	return nil, &dnfdaemon.Error{Kind: dnfdaemon.KindEntityNotFound, Op: "get_attribute"}
}

func (f *fakeDaemon) Repositories(context.Context) ([]types.Repository, error) { return f.repos, nil }

func (f *fakeDaemon) EnableRepos(_ context.Context, ids ...string) error {
	f.enabled = append(f.enabled, ids...)
	return nil
}

func (f *fakeDaemon) DisableRepos(_ context.Context, ids ...string) error {
	f.disabled = append(f.disabled, ids...)
	return nil
}

func (f *fakeDaemon) ExpireCache(context.Context) error {
	f.expired = true
	return nil
}

func (f *fakeDaemon) Advisories(_ context.Context, kind string, _ []string) ([]types.Advisory, error) {
	f.advKind = kind
	return f.advs, nil
}

func (f *fakeDaemon) Resolve(_ context.Context, items []types.QueueItem) (types.Resolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, items)
	return f.res, nil
}

func (f *fakeDaemon) Run(context.Context) (types.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	return f.run, nil
}

func (f *fakeDaemon) ConfirmKey(context.Context, string, bool) error { return nil }
func (f *fakeDaemon) Release(context.Context) error                  { return nil }

func (f *fakeDaemon) Status() types.StatusResponse {
	return types.StatusResponse{SessionPath: "/org/rpm/dnf/v0/s1", SessionOpen: !f.closed, QueueLen: f.queue.Len()}
}

func (f *fakeDaemon) Events() *dnfdaemon.Queue     { return f.queue }
func (f *fakeDaemon) Reload(context.Context) error { return nil }
func (f *fakeDaemon) Close(context.Context) error  { f.closed = true; return nil }

func rec(name, version, arch, repo string) types.PackageRecord {
	return types.PackageRecord{Name: name, Epoch: "0", Version: version, Release: "1.fc40", Arch: arch, RepoID: repo, Summary: name + " summary"}
}

// runCLI executes args against f with stdin and returns stdout, stderr.
func runCLI(t *testing.T, f *fakeDaemon, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var out, errb bytes.Buffer
	dial := func(context.Context, dnfdaemon.ClientConfig) (Daemon, error) { return f, nil }
	root := NewRootCmd(IO{In: strings.NewReader(stdin), Out: &out, Err: &errb}, dial)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errb.String(), err
}
