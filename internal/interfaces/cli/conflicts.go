package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/attendance/internal/domain/schedule"
	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/infrastructure/fixture"
)

// conflictReport is the output of the conflicts command
type conflictReport struct {
	Detection  *schedule.DetectionResult `json:"detection"`
	Resolution *schedule.Resolution      `json:"resolution,omitempty"`
	Schedule   *schedule.ScheduleData    `json:"schedule,omitempty"`
}

func newConflictsCommand(a *app) *cobra.Command {
	var (
		scheduleFile string
		resolve      string
	)

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Detect and optionally resolve schedule conflicts",
		Long: `Check a proposed schedule for overlapping assignments, missing skills,
work-hour limit breaches and over-capacity shifts.

With --resolve auto the conflicts are resolved on a copy of the schedule and
the edited schedule is printed alongside the resolution.

Example:
  attendance conflicts --schedule week-10.yaml --resolve auto`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fixture.LoadSchedule(scheduleFile)
			if err != nil {
				return err
			}

			detector := schedule.NewDetector(schedule.WithLimits(schedule.Limits{
				MaxDailyMinutes:  a.cfg.Schedule.MaxDailyMinutes,
				MaxWeeklyMinutes: a.cfg.Schedule.MaxWeeklyMinutes,
			}))
			detection := detector.Detect(data)

			counts := make(map[schedule.ConflictType]int)
			for _, c := range detection.Conflicts {
				counts[c.Type]++
			}
			for conflictType, n := range counts {
				a.metrics.RecordConflicts(cmd.Context(), string(conflictType), n)
			}

			report := conflictReport{Detection: detection}
			if resolve != "" {
				strategy := schedule.ResolutionStrategy(strings.ToUpper(resolve))
				if strategy != schedule.StrategyAuto && strategy != schedule.StrategyManual {
					return fmt.Errorf("%w: --resolve must be auto or manual, got %q", shared.ErrInvalidInput, resolve)
				}
				report.Resolution = schedule.Resolve(data, detection.Conflicts, strategy)
				report.Schedule = schedule.ApplyResolution(data, report.Resolution)

				a.logger.Info("Schedule conflicts resolved",
					zap.String("strategy", string(strategy)),
					zap.Int("resolved", report.Resolution.ResolvedCount),
					zap.Int("unresolved", len(report.Resolution.Unresolved)),
				)
			}

			a.logger.Info("Schedule checked",
				zap.String("schedule_id", data.ID),
				zap.Int("assignments", len(data.Assignments)),
				zap.Int("conflicts", detection.ConflictCount),
			)
			return writeJSON(cmd, report)
		},
	}

	cmd.Flags().StringVar(&scheduleFile, "schedule", "", "Path to schedule YAML file")
	cmd.Flags().StringVar(&resolve, "resolve", "", "Resolution strategy: auto or manual")
	_ = cmd.MarkFlagRequired("schedule")
	return cmd
}
