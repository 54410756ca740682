package types

import "fmt"

// Action is the operation queued for a package.
type Action string

const (
	ActionInstall      Action = "install"
	ActionUpdate       Action = "update"
	ActionRemove       Action = "remove"
	ActionObsolete     Action = "obsolete"
	ActionReinstall    Action = "reinstall"
	ActionDowngrade    Action = "downgrade"
	ActionLocalInstall Action = "localinstall"
)

// Actions lists every action in the order transaction trees are reported.
var Actions = []Action{
	ActionInstall, ActionUpdate, ActionRemove, ActionObsolete,
	ActionReinstall, ActionDowngrade, ActionLocalInstall,
}

// ParseAction maps a user supplied action name to an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "upgrade":
		return ActionUpdate, nil
	case "local-install":
		return ActionLocalInstall, nil
	}
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Bucket is one partition of the package cache, named after the query
// filter that produced it.
type Bucket string

const (
	BucketInstalled    Bucket = "installed"
	BucketAvailable    Bucket = "available"
	BucketUpdates      Bucket = "updates"
	BucketObsoletes    Bucket = "obsoletes"
	BucketReinstall    Bucket = "reinstall"
	BucketDowngrade    Bucket = "downgrade"
	BucketLocalInstall Bucket = "localinstall"
)

// Buckets lists all cache buckets.
var Buckets = []Bucket{
	BucketInstalled, BucketAvailable, BucketUpdates, BucketObsoletes,
	BucketReinstall, BucketDowngrade, BucketLocalInstall,
}

// ParseBucket validates a bucket name.
func ParseBucket(s string) (Bucket, error) {
	for _, b := range Buckets {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown package filter %q", s)
}

// DefaultAction is the action a package discovered under b is tagged with.
func (b Bucket) DefaultAction() Action {
	switch b {
	case BucketInstalled:
		return ActionRemove
	case BucketUpdates:
		return ActionUpdate
	case BucketObsoletes:
		return ActionObsolete
	case BucketReinstall:
		return ActionReinstall
	case BucketDowngrade:
		return ActionDowngrade
	case BucketLocalInstall:
		return ActionLocalInstall
	default:
		return ActionInstall
	}
}

// Attribute is one of the extended package attributes the daemon can
// return on request. The set is closed; see ParseAttribute.
type Attribute int

const (
	AttrDescription Attribute = iota + 1
	AttrFiles
	AttrChangelogs
	AttrRequires
	AttrAdvisories
)

var attributeNames = map[Attribute]string{
	AttrDescription: "description",
	AttrFiles:       "files",
	AttrChangelogs:  "changelogs",
	AttrRequires:    "requires",
	AttrAdvisories:  "advisories",
}

// String returns the daemon-side attribute name.
func (a Attribute) String() string {
	if n, ok := attributeNames[a]; ok {
		return n
	}
	return fmt.Sprintf("attribute(%d)", int(a))
}

// ParseAttribute maps a daemon attribute name to an Attribute.
func ParseAttribute(s string) (Attribute, error) {
	for a, n := range attributeNames {
		if n == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown package attribute %q", s)
}

// PackageRecord is one package as reported by the daemon's list calls.
type PackageRecord struct {
	Name         string `json:"name"`
	Epoch        string `json:"epoch"`
	Version      string `json:"version"`
	Release      string `json:"release"`
	Arch         string `json:"arch"`
	RepoID       string `json:"repo_id"`
	Summary      string `json:"summary,omitempty"`
	URL          string `json:"url,omitempty"`
	Group        string `json:"group,omitempty"`
	InstallSize  int64  `json:"install_size,omitempty"`
	DownloadSize int64  `json:"download_size,omitempty"`
	Installed    bool   `json:"is_installed,omitempty"`
}

// ID returns the identity string of the record.
func (r PackageRecord) ID() string {
	return ToID(r.Name, r.Epoch, r.Version, r.Release, r.Arch, r.RepoID)
}

// Repository summarizes one configured repository.
type Repository struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Advisory is an update advisory attached to one or more packages.
type Advisory struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Severity string   `json:"severity,omitempty"`
	Title    string   `json:"title,omitempty"`
	Packages []string `json:"packages,omitempty"`
}
