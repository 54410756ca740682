package types

import (
	"fmt"
	"strings"
)

// idSep joins the six identity fields of a package id.
const idSep = ","

// PkgID is the parsed form of a package identity string.
type PkgID struct {
	Name    string
	Epoch   string
	Version string
	Release string
	Arch    string
	Repo    string
}

// ToID builds the canonical package identity string
// "name,epoch,version,release,arch,repo". An empty epoch is written as "0".
func ToID(name, epoch, version, release, arch, repo string) string {
	if epoch == "" {
		epoch = "0"
	}
	return strings.Join([]string{name, epoch, version, release, arch, repo}, idSep)
}

// FromID splits a package identity string into its six fields.
func FromID(id string) (PkgID, error) {
	parts := strings.Split(id, idSep)
	if len(parts) != 6 {
		return PkgID{}, fmt.Errorf("invalid package id %q: want 6 fields, got %d", id, len(parts))
	}
	if parts[0] == "" {
		return PkgID{}, fmt.Errorf("invalid package id %q: empty name", id)
	}
	epoch := parts[1]
	if epoch == "" {
		epoch = "0"
	}
	return PkgID{
		Name:    parts[0],
		Epoch:   epoch,
		Version: parts[2],
		Release: parts[3],
		Arch:    parts[4],
		Repo:    parts[5],
	}, nil
}

// String returns the identity string for p.
func (p PkgID) String() string {
	return ToID(p.Name, p.Epoch, p.Version, p.Release, p.Arch, p.Repo)
}

// NEVRA formats p the way the daemon accepts package specs,
// omitting a zero epoch: name-[epoch:]version-release.arch
func (p PkgID) NEVRA() string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteByte('-')
	if p.Epoch != "" && p.Epoch != "0" {
		b.WriteString(p.Epoch)
		b.WriteByte(':')
	}
	b.WriteString(p.Version)
	b.WriteByte('-')
	b.WriteString(p.Release)
	if p.Arch != "" {
		b.WriteByte('.')
		b.WriteString(p.Arch)
	}
	return b.String()
}
