package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/adw-ith/hack25-spicechain/internal/app"
	"github.com/adw-ith/hack25-spicechain/internal/core"
)

// ErrViolations is returned by verify when the ledger does not balance.
var ErrViolations = fmt.Errorf("conservation invariant violated")

// Usage lists the commands Run understands.
const Usage = `commands:
  status                 ledger position of the loaded projection
  verify [--replay]      check conservation on every holding
  trace <id>             provenance of a batch or package (JSON)
  history <id>           completed ownership changes along the lineage
  family <id>            root batch and everything split or packaged from it (JSON)`

// Run executes a one-shot command against svc and writes its output to out.
// args is the argument list after the program name; args[0] is the command.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", Usage)
	}

	switch args[0] {
	case "status", "st":
		h := svc.Health(ctx)
		fmt.Fprintf(out, "status:     %s\n", h.Status)
		fmt.Fprintf(out, "last seq:   %d\n", h.LastSeq)
		if !h.LastEventAt.IsZero() {
			fmt.Fprintf(out, "last event: %s\n", h.LastEventAt.Format("2006-01-02 15:04:05 MST"))
		}
		return nil

	case "verify", "v":
		replay := len(args) > 1 && args[1] == "--replay"
		res, err := svc.Verify(ctx, replay)
		if err != nil {
			return err
		}
		printViolations(out, res)
		if !res.OK() {
			return ErrViolations
		}
		return nil

	case "trace", "t":
		id, err := argID(args, "trace")
		if err != nil {
			return err
		}
		p, err := svc.Trace(ctx, id)
		if err != nil {
			return err
		}
		return encode(out, p)

	case "history", "h":
		id, err := argID(args, "history")
		if err != nil {
			return err
		}
		changes, err := svc.History(ctx, id)
		if err != nil {
			return err
		}
		printHistory(out, changes)
		return nil

	case "family", "f":
		id, err := argID(args, "family")
		if err != nil {
			return err
		}
		fam, err := svc.Family(ctx, id)
		if err != nil {
			return err
		}
		return encode(out, fam)
	}
	return fmt.Errorf("unknown command: %s\n%s", args[0], Usage)
}

func argID(args []string, cmd string) (string, error) {
	if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
		return "", fmt.Errorf("usage: %s <id>", cmd)
	}
	return strings.TrimSpace(args[1]), nil
}

func encode(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printViolations(out io.Writer, res *app.VerifyResult) {
	mode := "live projection"
	if res.Replayed {
		mode = "replayed projection"
	}
	if res.OK() {
		fmt.Fprintf(out, "OK: every holding balances (%s, seq %d)\n", mode, res.LastSeq)
		return
	}
	fmt.Fprintf(out, "FAIL: %d holding(s) out of balance (%s, seq %d)\n", len(res.Violations), mode, res.LastSeq)
	fmt.Fprintln(out, strings.Repeat("-", 72))
	fmt.Fprintf(out, "  %-36s %15s %15s\n", "ENTITY", "EXPECTED KG", "ACTUAL KG")
	for _, v := range res.Violations {
		fmt.Fprintf(out, "  %-36s %15s %15s\n", v.EntityID, v.Expected.String(), v.Actual.String())
	}
}

func printHistory(out io.Writer, changes []core.OwnershipChange) {
	if len(changes) == 0 {
		fmt.Fprintln(out, "no completed ownership changes")
		return
	}
	fmt.Fprintf(out, "  %-20s %-10s %-10s %12s  %s\n", "WHEN", "FROM", "TO", "KG", "ITEM")
	fmt.Fprintln(out, strings.Repeat("-", 90))
	for _, c := range changes {
		fmt.Fprintf(out, "  %-20s %-10s %-10s %12s  %s\n",
			c.Timestamp.Format("2006-01-02 15:04:05"), c.From, c.To, c.Quantity.String(), c.ItemID)
	}
}
