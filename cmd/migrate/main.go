package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yungbote/lms-progress/internal/app"
	"github.com/yungbote/lms-progress/internal/migration"
	"github.com/yungbote/lms-progress/internal/realtime/bus"
)

const usage = `usage: migrate <command> [flags]

commands:
  run       schedule the migration chain (--dry-run, --force, --drain)
  status    print the migration status
  clear     clear migration state and pending actions
  tick      execute due scheduled actions once (--max)
  verify    compare legacy comments with the progress tables (--drain)
  watch     print migration events until interrupted
  install   create the progress tables if the schema version changed
  uninstall drop the progress tables
`

var errUsage = errors.New("invalid usage")

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := execute(ctx, a, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			a.Close()
			os.Exit(2)
		}
		fmt.Printf("%s: %v\n", os.Args[1], err)
		a.Close()
		os.Exit(1)
	}
}

func execute(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)

	switch cmd {
	case "run":
		dryRun := fs.Bool("dry-run", false, "report what the next batch of each migration would move")
		force := fs.Bool("force", false, "restart even if a run is in progress")
		drain := fs.Bool("drain", false, "execute queued actions until the chain finishes")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return runMigration(ctx, a, out, *dryRun, *force, *drain)

	case "status":
		desc, err := a.Services.Scheduler.Describe(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, desc)
		return nil

	case "clear":
		if err := a.Services.Scheduler.ClearState(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Migration state cleared.")
		return nil

	case "tick":
		max := fs.Int("max", 0, "maximum actions to execute (0 = all due)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		n, err := a.Services.Queue.RunDue(ctx, *max)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Executed %d action(s).\n", n)
		return nil

	case "verify":
		drain := fs.Bool("drain", true, "execute the verification job inline")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return runVerify(ctx, a, out, *drain)

	case "watch":
		return watch(ctx, a, out)

	case "install":
		if err := a.Services.Installer.Install(ctx); err != nil {
			return err
		}
		v, err := a.Services.Installer.InstalledVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Progress schema at version %s.\n", v)
		return nil

	case "uninstall":
		dropped, err := a.Services.Eraser.DropTables(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped %d table(s).\n", len(dropped))
		return nil
	}
	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

func runMigration(ctx context.Context, a *app.App, out io.Writer, dryRun, force, drain bool) error {
	sched := a.Services.Scheduler
	if dryRun {
		results, err := sched.DryRun(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	current, err := sched.Report(ctx)
	if err != nil {
		return err
	}
	if current.Running() && !force {
		return errors.New("migration already in progress (use --force to restart)")
	}
	if err := sched.Schedule(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Migration scheduled.")
	if !drain {
		return nil
	}
	if err := drainUntil(ctx, a, func() bool { return sched.IsComplete(ctx) || sched.IsFailed(ctx) }); err != nil {
		return err
	}
	desc, err := sched.Describe(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, desc)
	return nil
}

func runVerify(ctx context.Context, a *app.App, out io.Writer, drain bool) error {
	v := a.Services.Verifier
	id, err := v.Start(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Verification %s scheduled.\n", id)
	if !drain {
		return nil
	}
	var res *migration.VerifyResult
	if err := drainUntil(ctx, a, func() bool {
		res, err = v.LastResult(ctx)
		return err != nil || (res != nil && res.ID == id)
	}); err != nil {
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Checked %d record(s), %d mismatch(es).\n", res.Checked, res.Mismatches)
	for _, s := range res.Samples {
		fmt.Fprintf(out, "  %s\n", s)
	}
	return nil
}

// drainUntil executes due actions until done reports true or the queue has
// nothing left to run.
func drainUntil(ctx context.Context, a *app.App, done func() bool) error {
	for !done() {
		n, err := a.Services.Queue.RunDue(ctx, 0)
		if err != nil {
			return err
		}
		if n == 0 {
			if done() {
				return nil
			}
			return errors.New("queue drained before the job finished")
		}
	}
	return nil
}

func watch(ctx context.Context, a *app.App, out io.Writer) error {
	err := a.Services.Events.StartForwarder(ctx, func(ev bus.Event) {
		at := ev.At
		if at.IsZero() {
			at = time.Now()
		}
		fmt.Fprintf(out, "%s %s %v\n", at.Format(time.RFC3339), ev.Name, ev.Props)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
