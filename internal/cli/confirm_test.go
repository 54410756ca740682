package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"yumex/internal/dnfdaemon"
	"yumex/pkg/types"
)

func TestPromptConfirmerAnswers(t *testing.T) {
	cases := map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false, "maybe\n": false}
	for in, want := range cases {
		var out bytes.Buffer
		c := &promptConfirmer{in: strings.NewReader(in), out: &out}
		if got := c.ConfirmKey(types.KeyImportRequest{KeyID: "ABCD", UserID: "Fedora"}); got != want {
			t.Fatalf("input %q: got %v want %v", in, got, want)
		}
		if !strings.Contains(out.String(), "0xABCD") {
			t.Fatalf("key prompt missing id: %q", out.String())
		}
	}
}

func TestKeyPromptNamesPackage(t *testing.T) {
	var out bytes.Buffer
	c := &promptConfirmer{in: strings.NewReader("n\n"), out: &out}
	c.ConfirmKey(types.KeyImportRequest{KeyID: "ABCD", PkgID: "vim,2,9.1,1.fc40,x86_64,fedora"})
	if !strings.Contains(out.String(), "Package    : vim-2:9.1-1.fc40.x86_64") {
		t.Fatalf("package line missing: %q", out.String())
	}
	out.Reset()
	c = &promptConfirmer{in: strings.NewReader("n\n"), out: &out}
	c.ConfirmKey(types.KeyImportRequest{KeyID: "ABCD"})
	if strings.Contains(out.String(), "Package") {
		t.Fatalf("unexpected package line: %q", out.String())
	}
}

func TestPromptConfirmerReadsSuccessiveLines(t *testing.T) {
	var out bytes.Buffer
	c := &promptConfirmer{in: strings.NewReader("y\nn\n"), out: &out}
	tree := types.TransactionTree{types.ActionInstall: {{PkgID: "vim,2,9.1,1.fc40,x86_64,fedora", Size: 3 << 20}}}
	if !c.ConfirmTransaction(tree) {
		t.Fatal("first answer should be yes")
	}
	if c.ConfirmTransaction(tree) {
		t.Fatal("second answer should be no")
	}
	if !strings.Contains(out.String(), "vim-2:9.1-1.fc40.x86_64") || !strings.Contains(out.String(), "3.0 MiB") {
		t.Fatalf("summary missing package: %q", out.String())
	}
}

func TestPromptConfirmerAssumeYes(t *testing.T) {
	var out bytes.Buffer
	c := &promptConfirmer{in: strings.NewReader(""), out: &out, assumeYes: true}
	if !c.ConfirmTransaction(types.TransactionTree{}) {
		t.Fatal("assumeyes should confirm")
	}
}

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{0: "0 B", 1023: "1023 B", 1024: "1.0 KiB", 1536: "1.5 KiB", 5 << 30: "5.0 GiB"}
	for in, want := range cases {
		if got := formatSize(in); got != want {
			t.Fatalf("formatSize(%d)=%q want %q", in, got, want)
		}
	}
}

func TestStderrSinkNamesKind(t *testing.T) {
	var buf bytes.Buffer
	s := &stderrSink{w: &buf}
	s.ReportError(&dnfdaemon.Error{Kind: dnfdaemon.KindAccessDenied, Op: "open_session", Message: "not authorized"})
	if !strings.Contains(buf.String(), "access_denied") {
		t.Fatalf("missing kind: %q", buf.String())
	}
	buf.Reset()
	s.ReportError(errors.New("plain"))
	if !strings.Contains(buf.String(), "plain") {
		t.Fatalf("missing message: %q", buf.String())
	}
}
