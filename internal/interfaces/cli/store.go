package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/infrastructure/cache"
	"github.com/erp/attendance/internal/infrastructure/config"
	"github.com/erp/attendance/internal/infrastructure/fixture"
	"github.com/erp/attendance/internal/infrastructure/persistence"
	"github.com/erp/attendance/internal/infrastructure/persistence/models"
)

func newRulesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage stored attendance rules",
	}

	var file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert rules from a YAML file into the database",
		Long: `Validate every rule in the file, then insert or replace them in one transaction.
Cached results of the imported rules are invalidated when a shared cache is configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defs, err := fixture.LoadRules(file)
			if err != nil {
				return err
			}
			db, err := a.database()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			err = db.Transaction(func(tx *gorm.DB) error {
				repo := persistence.NewGormRuleRepository(db.DB).WithTx(tx)
				for _, def := range defs {
					if err := repo.Save(ctx, def); err != nil {
						return fmt.Errorf("save rule %s: %w", def.ID, err)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			if a.cfg.Cache.Backend != config.CacheBackendMemory {
				resultCache, err := cache.NewRuleCacheFactory(a.cfg.Cache, a.cfg.Redis,
					cache.WithLogger(a.logger.Named("cache")),
				).CreateCache()
				if err != nil {
					a.logger.Warn("Rule cache not invalidated", zap.Error(err))
				} else {
					for _, def := range defs {
						resultCache.Invalidate(ctx, def.ID)
					}
					if c, ok := resultCache.(io.Closer); ok {
						_ = c.Close()
					}
				}
			}

			a.logger.Info("Rules imported", zap.String("file", file), zap.Int("count", len(defs)))
			return writeJSON(cmd, map[string]int{"imported": len(defs)})
		},
	}
	importCmd.Flags().StringVar(&file, "file", "", "Path to rules YAML file")
	_ = importCmd.MarkFlagRequired("file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List active rules in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.database()
			if err != nil {
				return err
			}
			defer db.Close()

			defs, err := persistence.NewGormRuleRepository(db.DB).ListActive(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, defs)
		},
	}

	cmd.AddCommand(importCmd, listCmd)
	return cmd
}

func newShiftsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shifts",
		Short: "Manage shift definitions and the roster",
	}

	var file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Insert or replace a shift definition from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			shift, err := fixture.LoadShift(file)
			if err != nil {
				return err
			}
			db, err := a.database()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := persistence.NewGormShiftRepository(db.DB).Save(cmd.Context(), shift); err != nil {
				return err
			}
			a.logger.Info("Shift imported", zap.String("shift_id", shift.ID), zap.String("family", string(shift.Family)))
			return writeJSON(cmd, shift)
		},
	}
	importCmd.Flags().StringVar(&file, "file", "", "Path to shift YAML file")
	_ = importCmd.MarkFlagRequired("file")

	var employeeID, shiftID, from, to string
	assignCmd := &cobra.Command{
		Use:   "assign",
		Short: "Roster an employee on a shift for a range of days",
		Long: `Roster an employee on a shift for every day from --from to --to inclusive.
Existing assignments on those days are replaced.

Example:
  attendance shifts assign --employee emp-1 --shift night --from 2024-03-04 --to 2024-03-08`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseDate(from)
			if err != nil {
				return err
			}
			end := start
			if to != "" {
				if end, err = parseDate(to); err != nil {
					return err
				}
			}
			if end.Before(start) {
				return fmt.Errorf("%w: --to is before --from", shared.ErrInvalidInput)
			}

			db, err := a.database()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			repo := persistence.NewGormShiftRepository(db.DB)
			if _, err := repo.Get(ctx, shiftID); err != nil {
				return err
			}
			days := 0
			for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
				if err := repo.Assign(ctx, employeeID, day, shiftID); err != nil {
					return fmt.Errorf("assign %s: %w", day.Format(dateLayout), err)
				}
				days++
			}
			a.logger.Info("Shift assigned",
				zap.String("employee_id", employeeID),
				zap.String("shift_id", shiftID),
				zap.Int("days", days),
			)
			return writeJSON(cmd, map[string]int{"assigned_days": days})
		},
	}
	assignCmd.Flags().StringVar(&employeeID, "employee", "", "Employee ID")
	assignCmd.Flags().StringVar(&shiftID, "shift", "", "Shift ID")
	assignCmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	assignCmd.Flags().StringVar(&to, "to", "", "Last day, inclusive (default: --from)")
	_ = assignCmd.MarkFlagRequired("employee")
	_ = assignCmd.MarkFlagRequired("shift")
	_ = assignCmd.MarkFlagRequired("from")

	cmd.AddCommand(importCmd, assignCmd)
	return cmd
}

// resultRow is a stored result as printed by results list
type resultRow struct {
	ID          string          `json:"id"`
	EventID     string          `json:"event_id,omitempty"`
	DeviceID    string          `json:"device_id"`
	EmployeeID  string          `json:"employee_id,omitempty"`
	Outcome     string          `json:"outcome"`
	Message     string          `json:"message,omitempty"`
	WorkDate    string          `json:"work_date,omitempty"`
	ShiftID     string          `json:"shift_id,omitempty"`
	Status      string          `json:"status,omitempty"`
	Calculation json.RawMessage `json:"calculation,omitempty"`
	ProcessedAt time.Time       `json:"processed_at"`
}

func toResultRow(m models.AttendanceResultModel) resultRow {
	row := resultRow{
		ID:          m.ID,
		EventID:     m.EventID,
		DeviceID:    m.DeviceID,
		EmployeeID:  m.EmployeeID,
		Outcome:     m.Outcome,
		Message:     m.Message,
		WorkDate:    m.WorkDate,
		ShiftID:     m.ShiftID,
		Status:      string(m.Status),
		ProcessedAt: m.ProcessedAt,
	}
	if m.CalculationJSON != nil {
		row.Calculation = json.RawMessage(*m.CalculationJSON)
	}
	return row
}

func newResultsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect processed punch results",
	}

	var employeeID, sortBy, sortOrder string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List an employee's stored results, newest first by default",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("%w: --limit must be positive", shared.ErrInvalidInput)
			}
			db, err := a.database()
			if err != nil {
				return err
			}
			defer db.Close()

			stored, err := persistence.NewGormResultRepository(db.DB).ListForEmployee(cmd.Context(), persistence.ResultQuery{
				EmployeeID: employeeID,
				Limit:      limit,
				SortBy:     sortBy,
				SortOrder:  sortOrder,
			})
			if err != nil {
				return err
			}
			rows := make([]resultRow, 0, len(stored))
			for _, m := range stored {
				rows = append(rows, toResultRow(m))
			}
			return writeJSON(cmd, rows)
		},
	}
	listCmd.Flags().StringVar(&employeeID, "employee", "", "Employee ID")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	listCmd.Flags().StringVar(&sortBy, "sort", "processed_at", "Sort field: processed_at, work_date, outcome, created_at")
	listCmd.Flags().StringVar(&sortOrder, "order", "desc", "Sort order: asc or desc")
	_ = listCmd.MarkFlagRequired("employee")

	cmd.AddCommand(listCmd)
	return cmd
}
