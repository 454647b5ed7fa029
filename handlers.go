package main

import (
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cleaneradmin/models"
	"cleaneradmin/pkg/receipt"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// server carries the shared dependencies for all handlers. The db handle and
// recognizer are injected at construction instead of living in package
// globals.
type server struct {
	db         *gorm.DB
	jwtSecret  []byte
	recognizer receipt.Recognizer

	// scanMu serializes OCR work across requests: Tesseract is heavy and the
	// entry flow disallows overlapping submissions anyway.
	scanMu sync.Mutex
}

func newServer(db *gorm.DB, jwtSecret []byte) *server {
	return &server{
		db:         db,
		jwtSecret:  jwtSecret,
		recognizer: &receipt.TesseractRecognizer{Lang: os.Getenv("OCR_LANG")},
	}
}

func setupRoutes(r *gin.Engine, s *server) {
	r.POST("/register", s.registerHandler)
	r.POST("/login", s.loginHandler)
	r.POST("/refresh", s.refreshHandler)
	r.POST("/revoke_refresh", s.revokeRefreshHandler)
	authGroup := r.Group("")
	authGroup.Use(s.jwtAuthMiddleware())
	authGroup.GET("/me", s.meHandler)
	authGroup.POST("/jobs", s.createJobHandler)
	authGroup.GET("/jobs", s.listJobsHandler)
	authGroup.POST("/expenses", s.createExpenseHandler)
	authGroup.GET("/expenses", s.listExpensesHandler)
	authGroup.GET("/settings", s.getSettingsHandler)
	authGroup.PUT("/settings", s.saveSettingsHandler)
	authGroup.GET("/summary/income", s.incomeSummaryHandler)
	authGroup.GET("/export/jobs.csv", s.exportJobsHandler)
	authGroup.GET("/export/expenses.csv", s.exportExpensesHandler)
	authGroup.POST("/uploads", s.uploadFileHandler)
	authGroup.GET("/uploads", s.listUploadsHandler)
	authGroup.POST("/receipts/scan", s.scanReceiptHandler)
}

func (s *server) jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

func (s *server) meHandler(c *gin.Context) {
	usernameVal, _ := c.Get("username")
	if usernameVal == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing username"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": usernameVal.(string)})
}

// userFromContext fetches the authenticated user set by jwtAuthMiddleware.
func (s *server) userFromContext(c *gin.Context) (*models.User, bool) {
	unameVal, _ := c.Get("username")
	if unameVal == nil {
		return nil, false
	}
	var user models.User
	if err := s.db.Where("username = ?", unameVal.(string)).First(&user).Error; err != nil {
		return nil, false
	}
	return &user, true
}

func (s *server) registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.RegisterUser(req.Username, req.Password); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func (s *server) loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := s.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	tokenString, err := s.signAccessToken(user, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := s.createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

func (s *server) signAccessToken(user models.User, ttl time.Duration) (string, error) {
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := s.db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(s.jwtSecret)
}

// refreshHandler exchanges a refresh token for a new access token and rotates
// the refresh token.
func (s *server) refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := s.findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	var user models.User
	if err := s.db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	tokenString, err := s.signAccessToken(user, 15*time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	s.db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := s.createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout).
func (s *server) revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := s.findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := s.db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

func parseEntryDate(s string) time.Time {
	if s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return time.Now()
}

func validMethod(m string) bool {
	switch m {
	case "", "cash", "bank", "card", "other":
		return true
	}
	return false
}

// createJobHandler records an income event. Amounts arrive as decimal strings
// and are validated at this boundary, never coerced.
func (s *server) createJobHandler(c *gin.Context) {
	user, ok := s.userFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		Date        string `json:"date"`
		Client      string `json:"client" binding:"required"`
		Description string `json:"description"`
		Amount      string `json:"amount" binding:"required"`
		Paid        bool   `json:"paid"`
		Method      string `json:"method"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := receipt.ParseDecimalToPence(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	if !validMethod(req.Method) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid method"})
		return
	}
	job := models.Job{
		UserID:      user.ID,
		Date:        parseEntryDate(req.Date),
		Client:      req.Client,
		Description: req.Description,
		Amount:      amount,
		Paid:        req.Paid,
		Method:      req.Method,
	}
	if err := s.db.Create(&job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": job.ID})
}

func (s *server) listJobsHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := s.userFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var jobs []models.Job
	q := s.db.Model(&models.Job{})
	if role != "administrator" {
		q = q.Where("user_id = ?", user.ID)
	}
	if err := q.Order("date desc, id desc").Limit(200).Find(&jobs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, jobs)
}

type lineItemDraft struct {
	Label      string `json:"label"`
	Amount     string `json:"amount" binding:"required"`
	IsBusiness bool   `json:"is_business"`
}

// createExpenseHandler saves an expense entry. The draft carries the working
// item list plus the two summary fields; the reconciliation rules in
// pkg/receipt produce the final (total, business_portion) pair, so a draft
// with only summary fields, only items, or both all save sensibly.
func (s *server) createExpenseHandler(c *gin.Context) {
	user, ok := s.userFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		Date            string          `json:"date"`
		Merchant        string          `json:"merchant" binding:"required"`
		Category        string          `json:"category"`
		Total           string          `json:"total"`
		BusinessPortion string          `json:"business_portion"`
		Note            string          `json:"note"`
		ReceiptURL      string          `json:"receipt_url"`
		Items           []lineItemDraft `json:"items"`
		UploadID        *uint           `json:"upload_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := make([]receipt.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		pence, err := receipt.ParseDecimalToPence(it.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item amount"})
			return
		}
		items = append(items, receipt.LineItem{
			ID:         uuid.NewString(),
			Label:      receipt.CleanLabel(it.Label),
			Amount:     pence,
			IsBusiness: it.IsBusiness,
		})
	}
	st := receipt.NewState()
	st.ReplaceItems(st.Generation(), items)
	// Summary fields are manual values entered after the last item edit, so
	// they land after the structural change and stay authoritative.
	if req.Total != "" {
		pence, err := receipt.ParseDecimalToPence(req.Total)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid total"})
			return
		}
		_ = st.SetReportedTotal(pence)
	}
	if req.BusinessPortion != "" {
		pence, err := receipt.ParseDecimalToPence(req.BusinessPortion)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid business portion"})
			return
		}
		_ = st.SetReportedBusiness(pence)
	}
	total, business := st.Finalize()

	exp := models.Expense{
		UserID:          user.ID,
		Date:            parseEntryDate(req.Date),
		Merchant:        req.Merchant,
		Category:        req.Category,
		Total:           total,
		BusinessPortion: business,
		Note:            req.Note,
		ReceiptURL:      req.ReceiptURL,
	}
	if err := s.db.Create(&exp).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	if req.UploadID != nil {
		s.db.Model(&models.Upload{}).
			Where("id = ? AND user_id = ?", *req.UploadID, user.ID).
			Update("expense_id", exp.ID)
	}
	c.JSON(http.StatusOK, gin.H{"id": exp.ID, "total": total, "business_portion": business})
}

func (s *server) listExpensesHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := s.userFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var expenses []models.Expense
	q := s.db.Model(&models.Expense{})
	if role != "administrator" {
		q = q.Where("user_id = ?", user.ID)
	}
	if err := q.Order("date desc, id desc").Limit(200).Find(&expenses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, expenses)
}

// settingsFor loads (or creates with defaults) the user's settings row.
func (s *server) settingsFor(userID uint) (models.Setting, error) {
	var st models.Setting
	err := s.db.Where(models.Setting{UserID: userID}).
		Attrs(models.Setting{WarnAtPercent: 80, Currency: "GBP"}).
		FirstOrCreate(&st).Error
	return st, err
}

func (s *server) getSettingsHandler(c *gin.Context) {
	user, ok := s.userFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	st, err := s.settingsFor(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings load failed"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *server) saveSettingsHandler(c *gin.Context) {
	user, ok := s.userFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		MonthlyIncomeLimit string `json:"monthly_income_limit"`
		AnnualIncomeLimit  string `json:"annual_income_limit"`
		WarnAtPercent      *int   `json:"warn_at_percent"`
		Currency           string `json:"currency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := s.settingsFor(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings load failed"})
		return
	}
	if req.MonthlyIncomeLimit != "" {
		pence, err := receipt.ParseDecimalToPence(req.MonthlyIncomeLimit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid monthly limit"})
			return
		}
		st.MonthlyIncomeLimit = pence
	}
	if req.AnnualIncomeLimit != "" {
		pence, err := receipt.ParseDecimalToPence(req.AnnualIncomeLimit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid annual limit"})
			return
		}
		st.AnnualIncomeLimit = pence
	}
	if req.WarnAtPercent != nil {
		if *req.WarnAtPercent < 1 || *req.WarnAtPercent > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "warn_at_percent must be 1-100"})
			return
		}
		st.WarnAtPercent = *req.WarnAtPercent
	}
	if req.Currency != "" {
		st.Currency = req.Currency
	}
	if err := s.db.Save(&st).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// uploadFileHandler stores a receipt image under UPLOAD_BASE and returns the
// public store path used as receipt_url on save. The pipeline never touches
// storage; this is the persistence collaborator side of the flow.
func (s *server) uploadFileHandler(c *gin.Context) {
	user, ok := s.userFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	folder := c.PostForm("folder")
	if folder == "" {
		folder = "receipts"
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > 5*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 5MB)"})
		return
	}
	ct := file.Header.Get("Content-Type")
	baseDir := uploadBaseDir()
	relPath := filepath.Join(folder, file.Filename)
	fullPath := filepath.Join(baseDir, relPath)
	if err := os.MkdirAll(filepath.Join(baseDir, folder), 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mkdir failed"})
		return
	}
	if err := c.SaveUploadedFile(file, fullPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	storePath := "public/" + filepath.ToSlash(relPath)
	up := models.Upload{UserID: user.ID, FileName: file.Filename, StorePath: storePath, ContentType: ct}
	if err := s.db.Create(&up).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": up.ID, "path": relPath, "store_path": storePath})
}

func (s *server) listUploadsHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := s.userFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var uploads []models.Upload
	q := s.db.Model(&models.Upload{})
	if role != "administrator" {
		q = q.Where("user_id = ?", user.ID)
	}
	if err := q.Order("id desc").Limit(100).Find(&uploads).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, uploads)
}

// scanReceiptHandler digitizes an uploaded receipt image into a line-item
// draft. Nothing is persisted: the caller edits the draft and saves it via
// POST /expenses. A scan already in flight rejects the new one.
func (s *server) scanReceiptHandler(c *gin.Context) {
	if _, ok := s.userFromContext(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > 5*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 5MB)"})
		return
	}
	if !s.scanMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "still processing the previous receipt"})
		return
	}
	defer s.scanMu.Unlock()

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file unreadable"})
		return
	}
	defer f.Close()

	var notices []string
	pipe := receipt.NewPipeline(s.recognizer, receipt.NotifierFunc(func(msg string) {
		notices = append(notices, msg)
	}))
	st := receipt.NewState()
	ok := pipe.Process(c.Request.Context(), f, st)

	c.JSON(http.StatusOK, gin.H{
		"ok":          ok,
		"items":       st.Items(),
		"total_guess": st.ReportedTotal(),
		"notices":     notices,
	})
}
