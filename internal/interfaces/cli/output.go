package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/worktime"
	"github.com/erp/attendance/internal/infrastructure/config"
)

const dateLayout = "2006-01-02"

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", shared.ErrInvalidInput, s)
	}
	return d, nil
}

// applyShiftDefaults fills unset shift parameters from the worktime config
func applyShiftDefaults(shift *worktime.WorkShift, cfg config.WorktimeConfig) {
	if shift.WorkMinutes == 0 {
		shift.WorkMinutes = cfg.DefaultWorkMinutes
	}
	if shift.CoreMinutes == 0 {
		shift.CoreMinutes = cfg.CoreMinutes
	}
	if shift.PunchWindowMinutes == 0 {
		shift.PunchWindowMinutes = cfg.PunchWindowMinutes
	}
	if shift.FlexWindowMinutes == 0 {
		shift.FlexWindowMinutes = cfg.FlexStartWindowMinutes
	}
}
