package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/worktime"
	"github.com/erp/attendance/internal/infrastructure/fixture"
	"github.com/erp/attendance/internal/infrastructure/strategy"
)

func newCalculateCommand(a *app) *cobra.Command {
	var (
		shiftFile  string
		punchFile  string
		date       string
		employeeID string
	)

	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Calculate worked time for one shift instance",
		Long: `Pick the work-time strategy for a shift and calculate late, early-leave,
overtime and worked minutes from a punch file.

Example:
  attendance calculate --shift night.yaml --punches punches.yaml --date 2024-03-04`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := parseDate(date)
			if err != nil {
				return err
			}
			shift, err := fixture.LoadShift(shiftFile)
			if err != nil {
				return err
			}
			applyShiftDefaults(shift, a.cfg.Worktime)

			punches, err := fixture.LoadPunches(punchFile)
			if err != nil {
				return err
			}
			if employeeID == "" && len(punches) > 0 {
				employeeID = punches[0].EmployeeID
			}
			records := make([]worktime.PunchRecord, 0, len(punches))
			for _, p := range punches {
				if p.EmployeeID == employeeID {
					records = append(records, p)
				}
			}

			registry, err := strategy.NewRegistryWithDefaults()
			if err != nil {
				return err
			}
			selected := strategy.NewSelector(registry,
				strategy.WithSelectorLogger(a.logger.Named("strategy")),
			).Select(shift)

			result, err := selected.Calculate(worktime.CalculateContext{
				EmployeeID: employeeID,
				Date:       day,
				Shift:      shift,
				Records:    records,
			})
			if err != nil {
				return fmt.Errorf("%w: calculate: %v", shared.ErrInvalidInput, err)
			}

			a.logger.Info("Calculation finished",
				zap.String("shift_id", shift.ID),
				zap.String("strategy", result.Strategy),
				zap.String("status", string(result.Status)),
			)
			return writeJSON(cmd, result)
		},
	}

	cmd.Flags().StringVar(&shiftFile, "shift", "", "Path to shift YAML file")
	cmd.Flags().StringVar(&punchFile, "punches", "", "Path to punches YAML file")
	cmd.Flags().StringVar(&date, "date", "", "Day the shift instance starts on (YYYY-MM-DD)")
	cmd.Flags().StringVar(&employeeID, "employee", "", "Employee whose punches are used (default: employee of the first punch)")
	_ = cmd.MarkFlagRequired("shift")
	_ = cmd.MarkFlagRequired("punches")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
