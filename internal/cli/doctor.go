package cli

import (
	"fmt"

	"github.com/julianstephens/studylit/internal/service"
)

type DoctorCmd struct {
	Fix bool `help:"Remove duplicate notes after taking a backup."`
	Yes bool `short:"y" help:"Do not ask for confirmation."`
}

func (cmd *DoctorCmd) Run(ctx *Context) error {
	svc, err := ctx.Service()
	if err != nil {
		return err
	}

	ctx.println("Running diagnostics...")
	ctx.println()

	hasError := false
	duplicates := false
	for _, check := range svc.Doctor(ctx.Ctx()) {
		switch check.Status {
		case service.CheckOK:
			ctx.printf("✓ %s: OK\n", check.Name)
		case service.CheckWarn:
			ctx.printf("⚠ %s: WARNING\n", check.Name)
		default:
			ctx.printf("❌ %s: FAIL\n", check.Name)
			hasError = true
		}
		if check.Detail != "" {
			ctx.printf("   %s\n", check.Detail)
		}
		if check.Name == service.CheckDuplicateNotes && check.Status == service.CheckWarn {
			duplicates = true
		}
	}
	ctx.println()

	if cmd.Fix && duplicates {
		if err := cmd.fixDuplicates(ctx, svc); err != nil {
			return err
		}
	}

	if hasError {
		return fmt.Errorf("one or more checks failed")
	}
	ctx.println("All checks passed.")
	return nil
}

func (cmd *DoctorCmd) fixDuplicates(ctx *Context, svc *service.Service) error {
	if !cmd.Yes {
		ok, err := ctx.confirm("Remove duplicate notes? A backup is taken first.")
		if err != nil {
			return err
		}
		if !ok {
			ctx.println("Fix cancelled.")
			return nil
		}
	}
	ctx.PerformAutomaticBackup(svc.StoragePath())
	removed, err := svc.RemoveDuplicateNotes(ctx.Ctx())
	if err != nil {
		return fmt.Errorf("failed to remove duplicates: %w", err)
	}
	ctx.printf("✓ Removed %d duplicate notes\n", len(removed))
	return nil
}
