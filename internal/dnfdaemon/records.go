package dnfdaemon

import (
	"yumex/internal/wire"
	"yumex/pkg/types"
)

// packageAttrs are requested for every listed package.
var packageAttrs = []string{
	"name", "epoch", "version", "release", "arch", "repo_id",
	"summary", "url", "group", "install_size", "download_size", "is_installed",
}

func recordFromMap(m map[string]any) types.PackageRecord {
	rec := types.PackageRecord{
		Name:    wire.String(m["name"]),
		Epoch:   wire.String(m["epoch"]),
		Version: wire.String(m["version"]),
		Release: wire.String(m["release"]),
		Arch:    wire.String(m["arch"]),
		RepoID:  wire.String(m["repo_id"]),
		Summary: wire.String(m["summary"]),
		URL:     wire.String(m["url"]),
		Group:   wire.String(m["group"]),
	}
	if rec.Epoch == "" {
		rec.Epoch = "0"
	}
	rec.InstallSize, _ = wire.Int64(m["install_size"])
	rec.DownloadSize, _ = wire.Int64(m["download_size"])
	rec.Installed, _ = wire.Bool(m["is_installed"])
	return rec
}
