package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"yumex/internal/dnfdaemon"
	"yumex/pkg/types"
)

// promptConfirmer asks y/N questions on the terminal.
type promptConfirmer struct {
	in        io.Reader
	out       io.Writer
	assumeYes bool

	once   sync.Once
	reader *bufio.Reader
}

func (c *promptConfirmer) ConfirmTransaction(tree types.TransactionTree) bool {
	fmt.Fprintln(c.out, "Transaction summary:")
	for _, action := range types.Actions {
		items := tree[action]
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(c.out, "  %s:\n", action)
		for _, it := range items {
			name := it.PkgID
			if pid, err := types.FromID(it.PkgID); err == nil {
				name = pid.NEVRA()
			}
			fmt.Fprintf(c.out, "    %-50s %10s\n", name, formatSize(it.Size))
			for _, r := range it.Replaces {
				fmt.Fprintf(c.out, "      replacing %s\n", r)
			}
		}
	}
	return c.ask("Is this ok")
}

func (c *promptConfirmer) ConfirmKey(req types.KeyImportRequest) bool {
	fmt.Fprintf(c.out, "Importing GPG key 0x%s:\n", req.KeyID)
	fmt.Fprintf(c.out, "  Userid     : %s\n", req.UserID)
	if req.Fingerprint != "" {
		fmt.Fprintf(c.out, "  Fingerprint: %s\n", req.Fingerprint)
	}
	fmt.Fprintf(c.out, "  From       : %s\n", req.KeyURL)
	if p, err := types.FromID(req.PkgID); err == nil {
		fmt.Fprintf(c.out, "  Package    : %s\n", p.NEVRA())
	}
	return c.ask("Import key")
}

func (c *promptConfirmer) ask(q string) bool {
	if c.assumeYes {
		fmt.Fprintf(c.out, "%s [y/N]: y\n", q)
		return true
	}
	c.once.Do(func() { c.reader = bufio.NewReader(c.in) })
	fmt.Fprintf(c.out, "%s [y/N]: ", q)
	line, _ := c.reader.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// stderrSink prints fatal client errors with their kind.
type stderrSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *stderrSink) ReportError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "yumex: daemon error (%s): %v\n", dnfdaemon.KindOf(err), err)
}
