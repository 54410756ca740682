package dnfdaemon

import (
	"fmt"

	"yumex/internal/wire"
	"yumex/pkg/types"
)

// Command names with a result postprocessor.
const (
	CmdListPackages     = "list_packages"
	CmdSearch           = "search"
	CmdGetAttribute     = "get_attribute"
	CmdBuildTransaction = "build_transaction"
	CmdProblems         = "transaction_problems"
	CmdRepositories     = "list_repos"
	CmdAdvisories       = "list_advisories"
	CmdExpireCache      = "expire_cache"
)

// Attribute sentinels returned by the daemon in place of a value.
const (
	sentinelNone           = ":none"
	sentinelNotImplemented = ":not-implemented"
)

type postprocessor func(cmd Command, payload any) (any, error)

var postprocessors = map[string]postprocessor{
	CmdListPackages:     packageRecords,
	CmdSearch:           searchIDs,
	CmdGetAttribute:     attributeValue,
	CmdBuildTransaction: splitResolution,
	CmdProblems:         func(_ Command, p any) (any, error) { return wire.Strings(p), nil },
	CmdRepositories:     repositories,
	CmdAdvisories:       advisories,
	CmdExpireCache:      cleanResult,
}

func postprocess(cmd Command, payload any) (any, error) {
	if fn, ok := postprocessors[cmd.Name]; ok {
		return fn(cmd, payload)
	}
	return payload, nil
}

// recordMaps accepts either pipe records or a listed aa{sv} reply.
func recordMaps(payload any) []map[string]any {
	switch p := payload.(type) {
	case []map[string]any:
		return p
	case []any:
		out := make([]map[string]any, 0, len(p))
		for _, e := range p {
			if m := wire.Map(e); m != nil {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func packageRecords(_ Command, payload any) (any, error) {
	maps := recordMaps(payload)
	out := make([]types.PackageRecord, 0, len(maps))
	for _, m := range maps {
		out = append(out, recordFromMap(m))
	}
	return out, nil
}

func searchIDs(_ Command, payload any) (any, error) {
	maps := recordMaps(payload)
	seen := make(map[string]struct{}, len(maps))
	out := make([]string, 0, len(maps))
	for _, m := range maps {
		id := recordFromMap(m).ID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// attributeValue picks cmd.Target out of the listed records and returns
// its cmd.Attribute value.
func attributeValue(cmd Command, payload any) (any, error) {
	name := cmd.Attribute.String()
	maps := recordMaps(payload)
	if len(maps) == 0 {
		return nil, &Error{Kind: KindEntityNotFound, Op: cmd.Name, Message: cmd.Target}
	}
	rec := maps[0]
	for _, m := range maps {
		if recordFromMap(m).ID() == cmd.Target {
			rec = m
			break
		}
	}
	v, ok := rec[name]
	if !ok {
		return nil, &Error{Kind: KindIllegalAttribute, Op: cmd.Name, Message: name}
	}
	if s, isStr := v.(string); isStr {
		switch s {
		case sentinelNone:
			return nil, &Error{Kind: KindEntityNotFound, Op: cmd.Name, Message: cmd.Target}
		case sentinelNotImplemented:
			return nil, &Error{Kind: KindIllegalAttribute, Op: cmd.Name, Message: name}
		}
	}
	return v, nil
}

// splitResolution turns the (items, code) reply of Goal.resolve into a
// Resolution. Problems are fetched separately.
func splitResolution(cmd Command, payload any) (any, error) {
	parts, ok := payload.([]any)
	if !ok || len(parts) != 2 {
		return nil, &Error{Kind: KindDaemon, Op: cmd.Name, Message: fmt.Sprintf("unexpected resolve reply %T", payload)}
	}
	code, _ := wire.Int64(parts[1])
	res := types.Resolution{Code: types.ResolveCode(code), Tree: types.TransactionTree{}}
	for _, raw := range wire.Slice(parts[0]) {
		item, action, ok := transactionItem(wire.Slice(raw))
		if !ok {
			continue
		}
		res.Tree[action] = append(res.Tree[action], item)
	}
	return res, nil
}

var itemActions = map[string]types.Action{
	"Install":   types.ActionInstall,
	"Upgrade":   types.ActionUpdate,
	"Downgrade": types.ActionDowngrade,
	"Reinstall": types.ActionReinstall,
	"Remove":    types.ActionRemove,
}

// transactionItem reads one (object_type, action, reason, attrs, package)
// element. Replaced packages are reported through their replacement.
func transactionItem(fields []any) (types.TransactionItem, types.Action, bool) {
	if len(fields) < 5 || wire.String(fields[0]) != "Package" {
		return types.TransactionItem{}, "", false
	}
	action, ok := itemActions[wire.String(fields[1])]
	if !ok {
		return types.TransactionItem{}, "", false
	}
	attrs := wire.Map(fields[3])
	pkg := recordFromMap(wire.Map(fields[4]))
	item := types.TransactionItem{PkgID: pkg.ID(), Size: pkg.DownloadSize}
	if action == types.ActionRemove || item.Size == 0 {
		item.Size = pkg.InstallSize
	}
	if attrs != nil {
		item.Replaces = wire.Strings(attrs["replaces"])
	}
	if action == types.ActionInstall && len(item.Replaces) > 0 {
		action = types.ActionObsolete
	}
	return item, action, true
}

func repositories(_ Command, payload any) (any, error) {
	maps := recordMaps(payload)
	out := make([]types.Repository, 0, len(maps))
	for _, m := range maps {
		enabled, _ := wire.Bool(m["enabled"])
		out = append(out, types.Repository{
			ID:      wire.String(m["id"]),
			Name:    wire.String(m["name"]),
			Enabled: enabled,
		})
	}
	return out, nil
}

func advisories(_ Command, payload any) (any, error) {
	maps := recordMaps(payload)
	out := make([]types.Advisory, 0, len(maps))
	for _, m := range maps {
		adv := types.Advisory{
			ID:       wire.String(m["name"]),
			Kind:     wire.String(m["type"]),
			Severity: wire.String(m["severity"]),
			Title:    wire.String(m["title"]),
		}
		for _, coll := range wire.Slice(m["collections"]) {
			for _, p := range wire.Slice(wire.Map(coll)["packages"]) {
				if nevra := wire.String(wire.Map(p)["nevra"]); nevra != "" {
					adv.Packages = append(adv.Packages, nevra)
				}
			}
		}
		out = append(out, adv)
	}
	return out, nil
}

// cleanResult checks the (success, message) reply of Base.clean.
func cleanResult(cmd Command, payload any) (any, error) {
	parts, _ := payload.([]any)
	if len(parts) == 0 {
		return nil, nil
	}
	if ok, isBool := wire.Bool(parts[0]); isBool && !ok {
		msg := ""
		if len(parts) > 1 {
			msg = wire.String(parts[1])
		}
		return nil, &Error{Kind: KindDaemon, Op: cmd.Name, Message: msg}
	}
	return nil, nil
}
