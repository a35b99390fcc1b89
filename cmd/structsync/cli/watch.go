package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/structsync/structsync/internal/config"
	"github.com/structsync/structsync/internal/scheduler"
	"github.com/structsync/structsync/internal/service"
)

func newWatchCmd() *cobra.Command {
	var (
		f        compareFlags
		schedule string
		out      string
		timeout  time.Duration
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "watch [<source> <target>]",
		Short: "Compare two connections on a schedule and log schema drift",
		Long: `Run a comparison on a cron schedule and log whether the target has drifted
from the source. With --out, every run that finds drift writes its sync script
to that file. Without arguments, the watches from the config file are run.

Schedules use cron syntax ("0 */6 * * *") or descriptors ("@hourly",
"@every 30m").`,
		Example: `  structsync watch dev prod --schedule "@every 1h"
  structsync watch dev prod --schedule "0 3 * * *" --out drift/prod.sql
  structsync watch   # watches from structsync.yaml`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("watch takes a source and a target, or no arguments")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var watches []scheduler.Watch
			if len(args) == 2 {
				watches = []scheduler.Watch{{
					Schedule: schedule,
					Request:  f.request(args[0], args[1]),
					Out:      out,
				}}
			} else {
				watches = watchesFromConfig(a.cfg)
			}
			if len(watches) == 0 {
				return fmt.Errorf("no watches configured; pass a source and a target")
			}

			sched := scheduler.New(a.svc, a.logger, timeout)
			ctx := cmd.Context()

			if once {
				drifted := false
				for _, w := range watches {
					r := sched.RunNow(ctx, w)
					if r.Err != nil {
						return r.Err
					}
					drifted = drifted || r.Drifted()
				}
				if drifted {
					return fmt.Errorf("schema drift detected")
				}
				return nil
			}

			for _, w := range watches {
				if err := sched.Add(w); err != nil {
					return err
				}
			}
			sched.Start()
			for _, w := range watches {
				a.logger.Info("watching", "watch", w.Label(), "schedule", w.Schedule, "next", sched.Next(w.Label()))
			}

			<-ctx.Done()
			a.logger.Info("stopping watches")
			<-sched.Stop().Done()
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().StringVarP(&schedule, "schedule", "s", "@every 1h", "Cron schedule")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the sync script here when drift is found")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Time limit for one comparison")
	cmd.Flags().BoolVar(&once, "once", false, "Run every watch once and exit non-zero on drift")

	return cmd
}

func watchesFromConfig(cfg *config.YAMLConfig) []scheduler.Watch {
	watches := make([]scheduler.Watch, 0, len(cfg.Watches))
	for _, w := range cfg.Watches {
		watches = append(watches, scheduler.Watch{
			Name:     w.Name,
			Schedule: w.Schedule,
			Request: service.CompareRequest{
				SourceID: w.Source,
				TargetID: w.Target,
				SourceDB: w.SourceDB,
				TargetDB: w.TargetDB,
			},
			Out: w.Out,
		})
	}
	return watches
}
