package util

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Recurring invoice schedules use the standard five-field cron format
// (minute, hour, day of month, month, day of week).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextCronTime returns the first occurrence of the expression after 'from',
// evaluated in UTC.
func NextCronTime(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(from.UTC()), nil
}

// ValidateCronExpr rejects expressions the schedule parser cannot handle.
// Called at schedule create/update time so bad expressions never reach the
// worker.
func ValidateCronExpr(cronExpr string) error {
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
