package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/attendance/internal/application/attendance"
	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/worktime"
	"github.com/erp/attendance/internal/infrastructure/cache"
	"github.com/erp/attendance/internal/infrastructure/config"
	"github.com/erp/attendance/internal/infrastructure/event"
	"github.com/erp/attendance/internal/infrastructure/fixture"
	"github.com/erp/attendance/internal/infrastructure/persistence"
	"github.com/erp/attendance/internal/infrastructure/strategy"
)

// configuredShifts fills unset shift parameters from the worktime config
type configuredShifts struct {
	source   attendance.ShiftSource
	defaults config.WorktimeConfig
}

func (s configuredShifts) ShiftFor(ctx context.Context, employeeID string, day time.Time) (*worktime.WorkShift, error) {
	shift, err := s.source.ShiftFor(ctx, employeeID, day)
	if err != nil {
		return nil, err
	}
	applyShiftDefaults(shift, s.defaults)
	return shift, nil
}

// processedLog writes one line per processed punch event
type processedLog struct {
	logger *zap.Logger
}

func (h processedLog) EventTypes() []string {
	return []string{attendance.EventTypeProcessed}
}

func (h processedLog) Handle(_ context.Context, e shared.DomainEvent) error {
	processed, ok := e.(*attendance.ProcessedEvent)
	if !ok {
		return nil
	}
	h.logger.Info("Punch processed",
		zap.String("event_id", e.EventID().String()),
		zap.String("punch_id", e.AggregateID()),
		zap.String("employee_id", processed.EmployeeID),
		zap.String("shift_id", processed.ShiftID),
		zap.String("status", string(processed.Status)),
	)
	return nil
}

func newProcessCommand(a *app) *cobra.Command {
	var (
		terminalsFile string
		eventsFile    string
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process raw punch events against the stored roster and rules",
		Long: `Run each punch event through the attendance pipeline: validate, check the
device, identify the employee, record the punch, calculate the shift instance,
evaluate the attendance rules, persist the result and publish it.

Devices and credentials come from --terminals; shifts, rules, punches and
results live in the database.

Example:
  attendance process --terminals terminals.yaml --events punches.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, directory, err := fixture.LoadTerminals(terminalsFile)
			if err != nil {
				return err
			}
			events, err := fixture.LoadEvents(eventsFile)
			if err != nil {
				return err
			}

			db, err := a.database()
			if err != nil {
				return err
			}
			defer db.Close()

			engine, release, err := a.newEngine(persistence.NewGormRuleRepository(db.DB))
			if err != nil {
				return err
			}
			defer release()

			registry, err := strategy.NewRegistryWithDefaults()
			if err != nil {
				return err
			}
			steps := &attendance.DefaultSteps{
				Directory: directory,
				Punches:   persistence.NewGormPunchRepository(db.DB),
				Shifts: configuredShifts{
					source:   persistence.NewGormShiftRepository(db.DB),
					defaults: a.cfg.Worktime,
				},
				Selector: strategy.NewSelector(registry, strategy.WithSelectorLogger(a.logger.Named("strategy"))),
				Rules:    engine,
				Category: a.cfg.Engine.AttendanceCategory,
			}

			bus := event.NewInMemoryEventBus(a.logger.Named("event"))
			if err := bus.Start(cmd.Context()); err != nil {
				return err
			}
			defer func() { _ = bus.Stop(context.Background()) }()

			factory := cache.NewRuleCacheFactory(a.cfg.Cache, a.cfg.Redis,
				cache.WithLogger(a.logger.Named("cache")),
				cache.WithInMemoryFallback(true),
			)
			handlerStore, err := factory.CreateDedupStore(a.cfg.Dedup)
			if err != nil {
				return err
			}
			defer handlerStore.Close()
			bus.Subscribe(event.NewIdempotentHandler(processedLog{logger: a.logger}, handlerStore, a.logger.Named("event")))

			opts := []attendance.ProcessorOption{
				attendance.WithNotificationHook(attendance.NewEventNotifier(bus)),
				attendance.WithLogger(a.logger.Named("attendance")),
				attendance.WithMetrics(a.metrics),
			}
			if a.cfg.Dedup.Enabled {
				dedup, err := factory.CreateDedupStore(a.cfg.Dedup)
				if err != nil {
					return err
				}
				defer dedup.Close()
				opts = append(opts, attendance.WithDeduplicator(dedup, a.cfg.Dedup.TTL))
			}

			processor := attendance.NewProcessor(devices, steps,
				persistence.NewGormResultRepository(db.DB), opts...)

			results := make([]*attendance.ProcessResult, 0, len(events))
			counts := make(map[attendance.Outcome]int)
			for _, ev := range events {
				result := processor.Process(cmd.Context(), ev)
				counts[result.Outcome]++
				results = append(results, result)
			}

			a.logger.Info("Punch events processed",
				zap.Int("events", len(events)),
				zap.Int("succeeded", counts[attendance.OutcomeSuccess]),
				zap.Int("denied", counts[attendance.OutcomeDenied]),
				zap.Int("failed", counts[attendance.OutcomeSystemError]),
			)
			return writeJSON(cmd, results)
		},
	}

	cmd.Flags().StringVar(&terminalsFile, "terminals", "", "Path to devices and credentials YAML file")
	cmd.Flags().StringVar(&eventsFile, "events", "", "Path to punch events YAML file")
	_ = cmd.MarkFlagRequired("terminals")
	_ = cmd.MarkFlagRequired("events")
	return cmd
}
