package types

import "testing"

func TestPkgIDRoundTrip(t *testing.T) {
	cases := []PkgID{
		{Name: "bash", Epoch: "0", Version: "5.2.26", Release: "3.fc40", Arch: "x86_64", Repo: "fedora"},
		{Name: "kernel-core", Epoch: "2", Version: "6.8.9", Release: "300.fc40", Arch: "x86_64", Repo: "@System"},
		{Name: "noarch-doc", Epoch: "0", Version: "1", Release: "1", Arch: "noarch", Repo: ""},
	}
	for _, c := range cases {
		id := ToID(c.Name, c.Epoch, c.Version, c.Release, c.Arch, c.Repo)
		got, err := FromID(id)
		if err != nil {
			t.Fatalf("FromID(%q): %v", id, err)
		}
		if got != c {
			t.Fatalf("round trip %q: got %+v want %+v", id, got, c)
		}
		if got.String() != id {
			t.Fatalf("String()=%q want %q", got.String(), id)
		}
	}
}

func TestToIDEmptyEpochBecomesZero(t *testing.T) {
	id := ToID("vim", "", "9.1", "1.fc40", "x86_64", "updates")
	if id != "vim,0,9.1,1.fc40,x86_64,updates" {
		t.Fatalf("id=%q", id)
	}
	p, err := FromID(id)
	if err != nil {
		t.Fatalf("FromID: %v", err)
	}
	if p.Epoch != "0" {
		t.Fatalf("epoch=%q", p.Epoch)
	}
}

func TestFromIDRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "a,b,c", "a,0,1,1,x86_64,repo,extra", ",0,1,1,x86_64,repo"} {
		if _, err := FromID(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestNEVRA(t *testing.T) {
	p := PkgID{Name: "bash", Epoch: "0", Version: "5.2", Release: "1", Arch: "x86_64"}
	if got := p.NEVRA(); got != "bash-5.2-1.x86_64" {
		t.Fatalf("NEVRA=%q", got)
	}
	p.Epoch = "3"
	if got := p.NEVRA(); got != "bash-3:5.2-1.x86_64" {
		t.Fatalf("NEVRA=%q", got)
	}
}

func TestParseBucketAndAction(t *testing.T) {
	if b, err := ParseBucket("updates"); err != nil || b != BucketUpdates {
		t.Fatalf("ParseBucket: %v %v", b, err)
	}
	if _, err := ParseBucket("bogus"); err == nil {
		t.Fatalf("expected error")
	}
	if a, err := ParseAction("upgrade"); err != nil || a != ActionUpdate {
		t.Fatalf("ParseAction: %v %v", a, err)
	}
	if BucketInstalled.DefaultAction() != ActionRemove {
		t.Fatalf("installed packages default to remove")
	}
}

func TestParseAttribute(t *testing.T) {
	a, err := ParseAttribute("changelogs")
	if err != nil || a != AttrChangelogs {
		t.Fatalf("ParseAttribute: %v %v", a, err)
	}
	if _, err := ParseAttribute("color"); err == nil {
		t.Fatalf("expected error for unknown attribute")
	}
	if AttrFiles.String() != "files" {
		t.Fatalf("String=%q", AttrFiles.String())
	}
}
