package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"

	"yumex/internal/cli"
	"yumex/internal/dnfdaemon"
	"yumex/internal/httpapi"
	"yumex/pkg/types"
)

// runYumex executes the CLI against d and returns stdout and stderr.
func runYumex(t *testing.T, d *scriptedDaemon, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dial := func(ctx context.Context, cfg dnfdaemon.ClientConfig) (cli.Daemon, error) {
		c, err := dnfdaemon.NewClient(ctx, d, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	var out, errb bytes.Buffer
	root := cli.NewRootCmd(cli.IO{In: strings.NewReader(stdin), Out: &out, Err: &errb}, dial)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errb.String(), err
}

func scriptInstall(d *scriptedDaemon) {
	d.on(dnfdaemon.IfaceRpm+".list_fd", func(args []any) ([]any, error) {
		d.stream(args,
			`{"name":"vim","epoch":"2","version":"9.1","release":"1.fc40","arch":"x86_64","repo_id":"fedora"}`,
			`{"name":"nano","epoch":"0","version":"8.0","release":"1.fc40","arch":"x86_64","repo_id":"fedora"}`)
		return nil, nil
	})
	d.on(dnfdaemon.IfaceRpm+".install", func(args []any) ([]any, error) { return nil, nil })
	d.on(dnfdaemon.IfaceGoal+".resolve", func([]any) ([]any, error) {
		return []any{[]any{resolved("Install", "vim", "9.1", "fedora")}, uint32(0)}, nil
	})
}

func TestE2E_InstallThroughCLI(t *testing.T) {
	d := newScriptedDaemon(t)
	scriptInstall(d)
	var installed []string
	d.on(dnfdaemon.IfaceRpm+".install", func(args []any) ([]any, error) {
		installed, _ = args[0].([]string)
		return nil, nil
	})
	d.on(dnfdaemon.IfaceGoal+".do_transaction", func([]any) ([]any, error) {
		d.emit(dnfdaemon.IfaceRpm, "transaction_before_begin", uint64(1))
		d.emit(dnfdaemon.IfaceRpm, "transaction_after_complete", true)
		return nil, nil
	})

	out, stderr, err := runYumex(t, d, "y\n", "install", "vim")
	if err != nil {
		t.Fatalf("install: %v (stderr %q)", err, stderr)
	}
	if len(installed) != 1 || installed[0] != "vim-2:9.1-1.fc40.x86_64" {
		t.Fatalf("goal install specs: %v", installed)
	}
	if !strings.Contains(out, "Transaction complete: 1 package(s).") {
		t.Fatalf("output: %q", out)
	}
	if d.count(dnfdaemon.IfaceGoal+".do_transaction") != 1 {
		t.Fatal("transaction not run")
	}
	// Resolve resets the goal once; finishing the cycle releases it again.
	if n := d.count(dnfdaemon.IfaceBase + ".reset"); n != 2 {
		t.Fatalf("reset calls = %d", n)
	}
	if d.count(dnfdaemon.IfaceSessionManager+".close_session") != 1 {
		t.Fatal("session not closed")
	}
}

func TestE2E_KeyImportThenSuccess(t *testing.T) {
	d := newScriptedDaemon(t)
	scriptInstall(d)
	var confirmed []any
	d.on(dnfdaemon.IfaceRepo+".confirm_key", func(args []any) ([]any, error) {
		confirmed = args
		return nil, nil
	})
	runs := 0
	d.on(dnfdaemon.IfaceGoal+".do_transaction", func([]any) ([]any, error) {
		runs++
		if runs == 1 {
			d.emit(dnfdaemon.IfaceBase, "repo_key_import_request", "9867C58F", []string{"Fedora (40) <fedora-40@fedoraproject.org>"}, "115DF9AEF857853EE8445D0A0727707EA15B79CC", "file:///etc/pki/rpm-gpg/RPM-GPG-KEY-fedora-40", int64(1700000000))
			return nil, dbus.Error{Name: "org.rpm.dnf.v0.Error", Body: []any{"Transaction failed: GPG check FAILED"}}
		}
		return nil, nil
	})

	out, stderr, err := runYumex(t, d, "y\ny\n", "install", "vim")
	if err != nil {
		t.Fatalf("install: %v (stderr %q)", err, stderr)
	}
	if len(confirmed) != 2 || confirmed[0] != "9867C58F" || confirmed[1] != true {
		t.Fatalf("confirm_key args: %#v", confirmed)
	}
	if runs != 2 || !strings.Contains(out, "Imported 1 signing key(s).") {
		t.Fatalf("runs=%d out=%q", runs, out)
	}
	if d.count(dnfdaemon.IfaceGoal+".resolve") != 2 {
		t.Fatal("goal not resolved again after key import")
	}
}

func TestE2E_LockedDaemonIsFatal(t *testing.T) {
	d := newScriptedDaemon(t)
	d.on(dnfdaemon.IfaceSessionManager+".open_session", func([]any) ([]any, error) {
		return nil, dbus.Error{Name: "org.rpm.dnf.v0.Error", Body: []any{"Failed to obtain lock '/run/dnf/rpmtransaction.lock'"}}
	})
	_, stderr, err := runYumex(t, d, "", "list", "installed")
	if !dnfdaemon.IsLocked(err) {
		t.Fatalf("expected locked error, got %v", err)
	}
	if !strings.Contains(stderr, "locked") {
		t.Fatalf("error sink did not report: %q", stderr)
	}
}

// clientService exposes a client to the HTTP layer.
type clientService struct{ c *dnfdaemon.Client }

func (s clientService) Status() types.StatusResponse { return s.c.Status() }
func (s clientService) Ready() bool                  { return s.c.Status().SessionOpen }
func (s clientService) Reload(ctx context.Context) error {
	return s.c.Reload(ctx)
}

func (s clientService) DrainEvents(max int) []types.EventView {
	var out []types.EventView
	for _, e := range s.c.Events().Drain(max) {
		out = append(out, e.View())
	}
	return out
}

func (s clientService) WaitEvent(ctx context.Context) (types.EventView, error) {
	e, err := s.c.Events().Next(ctx)
	return e.View(), err
}

func TestE2E_SignalsReachHTTPEvents(t *testing.T) {
	d := newScriptedDaemon(t)
	c, err := dnfdaemon.NewClient(context.Background(), d, dnfdaemon.ClientConfig{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close(context.Background())
	srv := httptest.NewServer(httpapi.NewMux(clientService{c}))
	defer srv.Close()

	d.emit(dnfdaemon.IfaceBase, "download_add_new", "vim", "vim-9.1", int64(1024))
	d.emit(dnfdaemon.IfaceBase, "download_end", "vim", dnfdaemon.DownloadOK, "")
	waitFor(t, func() bool { return c.Events().Len() == 2 })

	resp, err := http.Get(srv.URL + "/events?max=10")
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	var names []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		var ev types.EventView
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("decode %q: %v", sc.Text(), err)
		}
		names = append(names, ev.Name)
	}
	if strings.Join(names, ",") != "download_add_new,download_end" {
		t.Fatalf("events = %v", names)
	}

	resp, err = http.Post(srv.URL+"/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /reload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reload status = %d", resp.StatusCode)
	}
	if d.count(dnfdaemon.IfaceSessionManager+".open_session") != 2 {
		t.Fatal("reload did not reopen the session")
	}
}
