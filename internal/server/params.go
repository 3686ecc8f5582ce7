package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const dateOnlyLayout = "2006-01-02"

// pathID parses the :id route parameter as a snowflake id.
func pathID(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id <= 0 {
		return 0, newValidationError("id", "invalid_id", "invalid id")
	}
	return id, nil
}

// queryTimeRange reads an inclusive [start, end] window from two query values.
// Each bound is RFC 3339 or a bare date; a bare end date covers that whole day in UTC.
func queryTimeRange(startRaw, endRaw string) (start, end *time.Time, err error) {
	if start, err = parseBound(startRaw, false); err != nil {
		return nil, nil, newValidationError("start_at", "invalid_start_at", "invalid start_at")
	}
	if end, err = parseBound(endRaw, true); err != nil {
		return nil, nil, newValidationError("end_at", "invalid_end_at", "invalid end_at")
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, newValidationError("end_at", "invalid_range", "end_at is before start_at")
	}
	return start, end, nil
}

func parseBound(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	day, err := time.ParseInLocation(dateOnlyLayout, raw, time.UTC)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &day, nil
}
