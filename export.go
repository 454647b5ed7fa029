package main

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"cleaneradmin/models"
	"cleaneradmin/pkg/receipt"

	"github.com/gin-gonic/gin"
)

func csvHeader(c *gin.Context, name string) *csv.Writer {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Status(http.StatusOK)
	return csv.NewWriter(c.Writer)
}

// exportJobsHandler streams the user's jobs as CSV, amounts formatted to two
// decimals for spreadsheet use.
func (s *server) exportJobsHandler(c *gin.Context) {
	user, ok := s.userFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var jobs []models.Job
	if err := s.db.Where("user_id = ?", user.ID).Order("date, id").Find(&jobs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	w := csvHeader(c, "jobs.csv")
	_ = w.Write([]string{"date", "client", "description", "amount", "paid", "method"})
	for _, j := range jobs {
		_ = w.Write([]string{
			j.Date.Format("2006-01-02"),
			j.Client,
			j.Description,
			receipt.FormatPence(j.Amount),
			strconv.FormatBool(j.Paid),
			j.Method,
		})
	}
	w.Flush()
}

// exportExpensesHandler streams the user's expenses as CSV.
func (s *server) exportExpensesHandler(c *gin.Context) {
	user, ok := s.userFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var expenses []models.Expense
	if err := s.db.Where("user_id = ?", user.ID).Order("date, id").Find(&expenses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	w := csvHeader(c, "expenses.csv")
	_ = w.Write([]string{"date", "merchant", "category", "total", "business_portion", "note", "receipt_url"})
	for _, e := range expenses {
		_ = w.Write([]string{
			e.Date.Format("2006-01-02"),
			e.Merchant,
			e.Category,
			receipt.FormatPence(e.Total),
			receipt.FormatPence(e.BusinessPortion),
			e.Note,
			e.ReceiptURL,
		})
	}
	w.Flush()
}
