package main

import (
	"net/http"

	"cleaneradmin/models"

	"github.com/gin-gonic/gin"
)

type periodTotal struct {
	Period string `json:"period"`
	Total  int64  `json:"total"` // pence
	Warn   bool   `json:"warn"`
}

// incomeSummaryHandler sums job income per month and per year and flags
// any period that has reached warn_at_percent of the configured limit. A
// limit of zero disables warnings for that period kind.
func (s *server) incomeSummaryHandler(c *gin.Context) {
	user, ok := s.userFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	setting, err := s.settingsFor(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings load failed"})
		return
	}

	monthly, err := s.incomeByPeriod(user.ID, "YYYY-MM", setting.MonthlyIncomeLimit, setting.WarnAtPercent)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	annual, err := s.incomeByPeriod(user.ID, "YYYY", setting.AnnualIncomeLimit, setting.WarnAtPercent)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"currency": setting.Currency,
		"monthly":  monthly,
		"annual":   annual,
	})
}

// incomeByPeriod groups job amounts with to_char (Postgres) the way the
// revenue summary always has.
func (s *server) incomeByPeriod(userID uint, format string, limit int64, warnAt int) ([]periodTotal, error) {
	rows, err := s.db.Model(&models.Job{}).
		Where("user_id = ?", userID).
		Select("to_char(date, ?) as period, sum(amount) as total", format).
		Group("period").Order("period").Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []periodTotal{}
	for rows.Next() {
		var p periodTotal
		if err := rows.Scan(&p.Period, &p.Total); err != nil {
			return nil, err
		}
		p.Warn = warnThreshold(p.Total, limit, warnAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// warnThreshold reports whether total has reached warnAt percent of limit.
func warnThreshold(total, limit int64, warnAt int) bool {
	if limit <= 0 || warnAt <= 0 {
		return false
	}
	return total*100 >= limit*int64(warnAt)
}
