package dnfdaemon

import (
	"context"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"yumex/internal/wire"
	"yumex/pkg/types"
)

type signalSpec struct {
	iface  string
	member string
	// fields names the positional arguments after the session path.
	fields []string
}

// Transaction lifecycle signals share this prefix and feed the watchdog.
const lifecyclePrefix = "transaction_"

// SignalTransactionTimeout is the synthetic event pushed when the
// transaction watchdog fires.
const SignalTransactionTimeout = "transaction_timeout"

var subscribedSignals = []signalSpec{
	{IfaceBase, "download_add_new", []string{"id", "description", "total"}},
	{IfaceBase, "download_progress", []string{"id", "total", "amount"}},
	{IfaceBase, "download_end", []string{"id", "status", "message"}},
	{IfaceBase, "download_mirror_failure", []string{"id", "message", "url", "metadata"}},
	{IfaceBase, "repo_key_import_request", []string{"key_id", "user_ids", "fingerprint", "url", "timestamp"}},

	{IfaceRpm, "transaction_before_begin", []string{"total"}},
	{IfaceRpm, "transaction_elem_progress", []string{"nevra", "amount", "total"}},
	{IfaceRpm, "transaction_verify_start", []string{"total"}},
	{IfaceRpm, "transaction_verify_progress", []string{"amount", "total"}},
	{IfaceRpm, "transaction_verify_stop", []string{"total"}},
	{IfaceRpm, "transaction_action_start", []string{"nevra", "action", "total"}},
	{IfaceRpm, "transaction_action_progress", []string{"nevra", "amount", "total"}},
	{IfaceRpm, "transaction_action_stop", []string{"nevra", "total"}},
	{IfaceRpm, "transaction_transaction_start", []string{"total"}},
	{IfaceRpm, "transaction_transaction_progress", []string{"amount", "total"}},
	{IfaceRpm, "transaction_transaction_stop", []string{"total"}},
	{IfaceRpm, "transaction_script_start", []string{"nevra", "scriptlet"}},
	{IfaceRpm, "transaction_script_stop", []string{"nevra", "scriptlet", "code"}},
	{IfaceRpm, "transaction_script_error", []string{"nevra", "scriptlet", "code"}},
	{IfaceRpm, "transaction_after_complete", []string{"success"}},
	{IfaceRpm, "transaction_unpack_error", []string{"nevra"}},
}

var signalIndex = func() map[string]signalSpec {
	m := make(map[string]signalSpec, len(subscribedSignals))
	for _, s := range subscribedSignals {
		m[s.iface+"."+s.member] = s
	}
	return m
}()

// Download transfer status reported by download_end.
const (
	DownloadOK      uint32 = 0
	DownloadExists  uint32 = 1
	DownloadFailure uint32 = 2
)

type DownloadAdd struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Total       int64  `json:"total"`
}

type DownloadProgress struct {
	ID         string `json:"id"`
	Total      int64  `json:"total"`
	Downloaded int64  `json:"downloaded"`
}

type DownloadEnd struct {
	ID      string `json:"id"`
	Status  uint32 `json:"status"`
	Message string `json:"message,omitempty"`
}

func (d DownloadEnd) Failed() bool { return d.Status == DownloadFailure }

type MirrorFailure struct {
	ID       string `json:"id"`
	Message  string `json:"message"`
	URL      string `json:"url"`
	Metadata string `json:"metadata,omitempty"`
}

// TransactionSignal is the normalized payload of every transaction_*
// signal. Phase is the member name without the transaction_ prefix.
type TransactionSignal struct {
	Phase   string `json:"phase"`
	Nevra   string `json:"nevra,omitempty"`
	Action  uint32 `json:"action,omitempty"`
	Amount  int64  `json:"amount,omitempty"`
	Total   int64  `json:"total,omitempty"`
	Code    int64  `json:"code,omitempty"`
	Success bool   `json:"success,omitempty"`
}

func isLifecycle(member string) bool { return strings.HasPrefix(member, lifecyclePrefix) }

// normalizeSignal converts the arguments following the session path into
// the typed payload for member.
func normalizeSignal(spec signalSpec, args []any) any {
	field := func(name string) any {
		for i, f := range spec.fields {
			if f == name && i < len(args) {
				return args[i]
			}
		}
		return nil
	}
	i64 := func(name string) int64 {
		n, _ := wire.Int64(field(name))
		return n
	}
	str := func(name string) string { return wire.String(field(name)) }

	switch spec.member {
	case "download_add_new":
		return DownloadAdd{ID: str("id"), Description: str("description"), Total: i64("total")}
	case "download_progress":
		return DownloadProgress{ID: str("id"), Total: i64("total"), Downloaded: i64("amount")}
	case "download_end":
		return DownloadEnd{ID: str("id"), Status: uint32(i64("status")), Message: str("message")}
	case "download_mirror_failure":
		return MirrorFailure{ID: str("id"), Message: str("message"), URL: str("url"), Metadata: str("metadata")}
	case "repo_key_import_request":
		req := types.KeyImportRequest{
			KeyID:       str("key_id"),
			Fingerprint: str("fingerprint"),
			KeyURL:      str("url"),
		}
		if ids := wire.Strings(field("user_ids")); len(ids) > 0 {
			req.UserID = strings.Join(ids, ", ")
		}
		if ts := i64("timestamp"); ts > 0 {
			req.Timestamp = time.Unix(ts, 0).UTC()
		}
		return req
	}

	ts := TransactionSignal{Phase: strings.TrimPrefix(spec.member, lifecyclePrefix)}
	ts.Nevra = str("nevra")
	ts.Amount = i64("amount")
	ts.Total = i64("total")
	ts.Code = i64("code")
	if a := field("action"); a != nil {
		ts.Action = uint32(i64("action"))
	} else if field("scriptlet") != nil {
		ts.Action = uint32(i64("scriptlet"))
	}
	if b, ok := wire.Bool(field("success")); ok {
		ts.Success = b
	}
	return ts
}

// signalBarrier names the marker syncSignals pushes through the signal
// channel. Its only body element is the channel to close once reached.
const signalBarrier = "yumex.internal.barrier"

// signalLoop drains the bus signal channel until stop is closed.
func (c *Client) signalLoop(ch <-chan *dbus.Signal) {
	defer close(c.signalsDone)
	for {
		select {
		case <-c.stop:
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			if sig != nil && sig.Name == signalBarrier {
				close(sig.Body[0].(chan struct{}))
				continue
			}
			c.handleSignal(sig)
		}
	}
}

// syncSignals returns once every signal queued before the call has been
// handled, or when ctx ends or the signal loop has stopped.
func (c *Client) syncSignals(ctx context.Context) {
	reached := make(chan struct{})
	marker := &dbus.Signal{Name: signalBarrier, Body: []any{reached}}
	select {
	case c.signals <- marker:
	case <-c.signalsDone:
		return
	case <-ctx.Done():
		return
	}
	select {
	case <-reached:
	case <-c.signalsDone:
	case <-ctx.Done():
	}
}

func (c *Client) handleSignal(sig *dbus.Signal) {
	if sig == nil {
		return
	}
	spec, ok := signalIndex[sig.Name]
	if !ok {
		return
	}
	if len(sig.Body) == 0 {
		return
	}
	session, _ := sig.Body[0].(dbus.ObjectPath)
	if current := c.session.Path(); current == "" || session != current {
		c.log.Debug().Str("event", "signal_ignored").Str("signal", spec.member).Str("session", string(session)).Msg("signal for another session")
		return
	}
	payload := normalizeSignal(spec, wire.NativeAll(sig.Body[1:]))

	switch p := payload.(type) {
	case types.KeyImportRequest:
		c.mu.Lock()
		req := p
		c.keyRequest = &req
		c.mu.Unlock()
	case DownloadEnd:
		if p.Failed() {
			c.mu.Lock()
			msg := p.Message
			if msg == "" {
				msg = "download failed: " + p.ID
			}
			c.downloadFailures = append(c.downloadFailures, msg)
			c.mu.Unlock()
		}
	}

	lifecycle := isLifecycle(spec.member)
	if lifecycle && spec.member != "transaction_after_complete" {
		c.watchdog.touch()
	}
	c.publish(Event{Kind: SignalEvent, Name: spec.member, Payload: payload})
	signalsTotal.WithLabelValues(spec.member).Inc()
	if spec.member == "transaction_after_complete" {
		c.watchdog.stop()
	}
	c.log.Debug().Str("event", "signal").Str("signal", spec.member).Msg("daemon signal")
}
