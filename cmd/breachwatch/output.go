package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"breachwatch/internal/format"
	"breachwatch/internal/store"
	"breachwatch/internal/syncer"
)

// outputFormatter is nil for plain text output.
var outputFormatter format.Formatter

func writeStructured(w io.Writer, payload any) (bool, error) {
	if outputFormatter == nil {
		return false, nil
	}
	return true, outputFormatter.Write(w, payload)
}

func writePlain(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeResult(w io.Writer, payload any) error {
	if ok, err := writeStructured(w, payload); ok {
		return err
	}
	switch res := payload.(type) {
	case syncer.RunSummary:
		return writeRunSummary(w, res)
	case syncer.BootstrapResult:
		return writePlain(w, "%s\n", strings.Join(bootstrapLines(res), "\n"))
	case syncer.ReconcileResult:
		return writePlain(w, "%s\n", strings.Join(reconcileLines(res), "\n"))
	default:
		return writePlain(w, "%v\n", payload)
	}
}

func writeRunSummary(w io.Writer, summary syncer.RunSummary) error {
	lines := []string{fmt.Sprintf("run_id: %s", summary.RunID)}
	lines = append(lines, bootstrapLines(summary.Bootstrap)...)
	if !summary.Bootstrap.Ran {
		lines = append(lines, fmt.Sprintf("catalog_added: %d", summary.CatalogAdded))
	}
	lines = append(lines, reconcileLines(summary.Reconcile)...)
	lines = append(lines, fmt.Sprintf("duration: %s", summary.Duration.Round(time.Millisecond)))
	return writePlain(w, "%s\n", strings.Join(lines, "\n"))
}

func bootstrapLines(res syncer.BootstrapResult) []string {
	if !res.Ran {
		return []string{"bootstrap: not needed"}
	}
	lines := []string{
		"bootstrap: ran",
		fmt.Sprintf("  identities: %d", res.Identities),
		fmt.Sprintf("  breaches: %d", res.Breaches),
		fmt.Sprintf("  data_classes: %d", res.DataClasses),
	}
	if len(res.Skipped) > 0 {
		lines = append(lines, fmt.Sprintf("  skipped: %s", strings.Join(res.Skipped, ", ")))
	}
	return lines
}

func reconcileLines(res syncer.ReconcileResult) []string {
	lines := []string{
		fmt.Sprintf("identities: %d (linked %d, skipped %d)", res.Identities, res.Linked, res.Skipped),
		fmt.Sprintf("breach_links_added: %d", res.BreachLinksAdded),
		fmt.Sprintf("paste_links_added: %d", res.PasteLinksAdded),
	}
	if res.Unresolved > 0 {
		lines = append(lines, fmt.Sprintf("unresolved_breaches: %d", res.Unresolved))
	}
	for _, o := range res.Outcomes {
		switch {
		case o.State == syncer.StateSkipped:
			lines = append(lines, fmt.Sprintf("  ✗ %s: %v", o.Email, o.Err))
		case o.BreachLinksAdded > 0 || o.PasteLinksAdded > 0:
			lines = append(lines, fmt.Sprintf("  + %s: %d breach, %d paste", o.Email, o.BreachLinksAdded, o.PasteLinksAdded))
		}
	}
	return lines
}

func writeMigrationStatus(w io.Writer, plan *store.MigrationStatus) error {
	if ok, err := writeStructured(w, plan); ok {
		return err
	}
	lines := []string{
		fmt.Sprintf("Current version: %d", plan.CurrentVersion),
		fmt.Sprintf("Available version: %d", plan.AvailableVersion),
	}
	if len(plan.Pending) == 0 {
		lines = append(lines, "No pending migrations.")
	} else {
		lines = append(lines, fmt.Sprintf("Pending migrations: %d", len(plan.Pending)))
		for _, m := range plan.Pending {
			lines = append(lines, fmt.Sprintf("  %d: %s", m.Version, m.Description))
		}
	}
	return writePlain(w, "%s\n", strings.Join(lines, "\n"))
}
