package pkgcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"yumex/internal/wire"
	"yumex/pkg/types"
)

// Fetcher reads extended package attributes from the daemon.
type Fetcher interface {
	FetchAttribute(ctx context.Context, pkgID string, attr types.Attribute) (any, error)
}

// Package is the single cached instance for one identity string. UI
// state (queued, selected) lives on it and survives repeated queries.
type Package struct {
	types.PkgID
	ID           string
	Summary      string
	URL          string
	Group        string
	InstallSize  int64
	DownloadSize int64
	Installed    bool

	fetcher Fetcher

	mu       sync.Mutex
	action   types.Action
	queued   bool
	selected bool
	attrs    map[types.Attribute]any
}

func newPackage(rec types.PackageRecord, action types.Action, f Fetcher) *Package {
	id := rec.ID()
	pid, err := types.FromID(id)
	if err != nil {
		pid = types.PkgID{Name: rec.Name, Epoch: rec.Epoch, Version: rec.Version, Release: rec.Release, Arch: rec.Arch, Repo: rec.RepoID}
	}
	return &Package{
		PkgID:        pid,
		ID:           id,
		Summary:      rec.Summary,
		URL:          rec.URL,
		Group:        rec.Group,
		InstallSize:  rec.InstallSize,
		DownloadSize: rec.DownloadSize,
		Installed:    rec.Installed,
		fetcher:      f,
		action:       action,
	}
}

func (p *Package) String() string { return p.NEVRA() }

// Size is the download size for packages to install and the installed
// size otherwise.
func (p *Package) Size() int64 {
	if p.Installed || p.DownloadSize == 0 {
		return p.InstallSize
	}
	return p.DownloadSize
}

func (p *Package) Action() types.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.action
}

func (p *Package) SetAction(a types.Action) {
	p.mu.Lock()
	p.action = a
	p.mu.Unlock()
}

func (p *Package) Queued() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queued
}

func (p *Package) SetQueued(v bool) {
	p.mu.Lock()
	p.queued = v
	p.mu.Unlock()
}

func (p *Package) Selected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

func (p *Package) SetSelected(v bool) {
	p.mu.Lock()
	p.selected = v
	p.mu.Unlock()
}

// Attribute returns attr, fetching it on first use. Values are kept for
// the lifetime of the package; errors are not.
func (p *Package) Attribute(ctx context.Context, attr types.Attribute) (any, error) {
	p.mu.Lock()
	if v, ok := p.attrs[attr]; ok {
		p.mu.Unlock()
		return v, nil
	}
	p.mu.Unlock()
	if p.fetcher == nil {
		return nil, fmt.Errorf("%s: no attribute source", p.ID)
	}
	v, err := p.fetcher.FetchAttribute(ctx, p.ID, attr)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.attrs[attr]; ok {
		return prev, nil
	}
	if p.attrs == nil {
		p.attrs = make(map[types.Attribute]any)
	}
	p.attrs[attr] = v
	return v, nil
}

func (p *Package) Description(ctx context.Context) (string, error) {
	v, err := p.Attribute(ctx, types.AttrDescription)
	if err != nil {
		return "", err
	}
	return wire.String(v), nil
}

func (p *Package) Files(ctx context.Context) ([]string, error) {
	v, err := p.Attribute(ctx, types.AttrFiles)
	if err != nil {
		return nil, err
	}
	return wire.Strings(v), nil
}

func (p *Package) Requires(ctx context.Context) ([]string, error) {
	v, err := p.Attribute(ctx, types.AttrRequires)
	if err != nil {
		return nil, err
	}
	return wire.Strings(v), nil
}

// Changelog is one changelog entry.
type Changelog struct {
	Time   time.Time
	Author string
	Text   string
}

// Changelogs decodes (timestamp, author, text) entries.
func (p *Package) Changelogs(ctx context.Context) ([]Changelog, error) {
	v, err := p.Attribute(ctx, types.AttrChangelogs)
	if err != nil {
		return nil, err
	}
	var out []Changelog
	for _, e := range wire.Slice(v) {
		f := wire.Slice(e)
		if len(f) < 3 {
			continue
		}
		ts, _ := wire.Int64(f[0])
		out = append(out, Changelog{Time: time.Unix(ts, 0).UTC(), Author: wire.String(f[1]), Text: wire.String(f[2])})
	}
	return out, nil
}

func (p *Package) Advisories(ctx context.Context) ([]types.Advisory, error) {
	v, err := p.Attribute(ctx, types.AttrAdvisories)
	if err != nil {
		return nil, err
	}
	advs, _ := v.([]types.Advisory)
	return advs, nil
}
