package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/snehaaiyer/shehn.ai-local-sub002/internal/catalog"
	"github.com/snehaaiyer/shehn.ai-local-sub002/internal/planner"
	"github.com/snehaaiyer/shehn.ai-local-sub002/internal/store"
)

// Config defines server dependencies.
type Config struct {
	DBPath         string
	BracketsPath   string
	AllowedOrigins []string
	SilentDB       bool
}

// Server wires HTTP handlers with persistence and the planning engines.
type Server struct {
	db             *store.Database
	confidence     *planner.ConfidenceEngine
	budget         *planner.BudgetEngine
	catalog        *catalog.Service
	allowedOrigins []string
	scoreNotifier  *ScoreNotifier
	jobMu          sync.Mutex
	activeJob      *scoreJob
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	brackets := planner.DefaultBracketTable()
	if strings.TrimSpace(cfg.BracketsPath) != "" {
		loaded, err := planner.LoadBracketTable(cfg.BracketsPath)
		if err != nil {
			return nil, fmt.Errorf("bracket table: %w", err)
		}
		brackets = loaded
		logrus.WithField("path", cfg.BracketsPath).Info("bracket table override loaded")
	}

	budgetEngine, err := planner.NewBudgetEngine(brackets, planner.DefaultCategoryMultipliers())
	if err != nil {
		return nil, fmt.Errorf("budget engine: %w", err)
	}

	return &Server{
		db:             db,
		confidence:     planner.NewConfidenceEngine(planner.DefaultConfidenceWeights()),
		budget:         budgetEngine,
		catalog:        catalog.NewService(db),
		allowedOrigins: cfg.AllowedOrigins,
		scoreNotifier:  NewScoreNotifier(),
	}, nil
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.GET("/vendor-data/:category", s.handleVendorData)
		api.GET("/vendors/:name", s.handleVendorLookup)
		api.POST("/vendors/upload", s.handleVendorUpload)
		api.GET("/preferences", s.handleGetPreferences)
		api.PUT("/preferences", s.handlePutPreferences)
		api.POST("/budget-analysis", s.handleBudgetAnalysis)
		api.GET("/budget-analysis", s.handleBudgetHistory)
		api.POST("/score", s.handleScore)
		api.GET("/score/status", s.handleScoreStatus)
		api.DELETE("/score/:jobID", s.handleCancelScore)
		api.GET("/score/stream", s.handleScoreStream)
		api.GET("/results", s.handleResults)
		api.GET("/export.csv", s.handleExportCSV)
	}

	return r, nil
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	payload := gin.H{"error": err.Error()}
	var invalid *planner.InvalidInputError
	if errors.As(err, &invalid) {
		payload["field"] = invalid.Field
	}
	c.JSON(status, payload)
}

// statusForError maps engine validation failures to 400, everything else 500.
func statusForError(err error) int {
	var invalid *planner.InvalidInputError
	if errors.As(err, &invalid) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	bracketTotals := make(map[string]float64)
	for _, bracket := range s.budget.Brackets() {
		total, err := s.budget.BracketTotal(bracket)
		if err != nil {
			s.renderError(c, http.StatusInternalServerError, err)
			return
		}
		bracketTotals[string(bracket)] = total
	}

	categories := make([]string, 0, len(planner.Categories()))
	for _, cat := range planner.Categories() {
		categories = append(categories, string(cat))
	}

	c.JSON(http.StatusOK, gin.H{
		"categories":      categories,
		"brackets":        bracketTotals,
		"multipliers":     s.budget.Multipliers(),
		"vendor_count":    s.catalog.Count(),
		"scoring_weights": s.confidence.Weights(),
	})
}

// scheduleFromRequest resolves the schedule inputs from the query string,
// falling back to the stored preference snapshot for missing values.
func (s *Server) scheduleFromRequest(c *gin.Context) (planner.DateFlexibility, int, *int, error) {
	pref, err := s.db.GetPreference()
	if err != nil {
		return "", 0, nil, err
	}

	flexValue := strings.TrimSpace(c.Query("flexibility"))
	if flexValue == "" && pref != nil {
		flexValue = pref.Flexibility
	}
	if flexValue == "" {
		return "", 0, nil, &planner.InvalidInputError{Field: "flexibility", Value: ""}
	}
	flexibility, err := planner.ParseFlexibility(flexValue)
	if err != nil {
		return "", 0, nil, err
	}

	durationDays := 0
	if value := strings.TrimSpace(c.Query("duration_days")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return "", 0, nil, &planner.InvalidInputError{Field: "duration_days", Value: value}
		}
		durationDays = parsed
	} else if pref != nil {
		durationDays = pref.DurationDays
	}

	var daysUntil *int
	if value := strings.TrimSpace(c.Query("days_until_wedding")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return "", 0, nil, &planner.InvalidInputError{Field: "days_until_wedding", Value: value}
		}
		daysUntil = &parsed
	} else if pref != nil {
		daysUntil = pref.DaysUntilWedding
	}

	if err := planner.ValidateSchedule(flexibility, durationDays, daysUntil); err != nil {
		return "", 0, nil, err
	}
	return flexibility, durationDays, daysUntil, nil
}

func (s *Server) handleVendorData(c *gin.Context) {
	category, err := planner.ParseCategory(c.Param("category"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	flexibility, durationDays, daysUntil, err := s.scheduleFromRequest(c)
	if err != nil {
		s.renderError(c, statusForError(err), err)
		return
	}

	minRating := 0.0
	if value := strings.TrimSpace(c.Query("min_rating")); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || parsed < 0 || parsed > 5 {
			s.renderError(c, http.StatusBadRequest, &planner.InvalidInputError{Field: "min_rating", Value: value})
			return
		}
		minRating = parsed
	}

	limit := 50
	if value := strings.TrimSpace(c.Query("limit")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	vendors, err := s.db.ListVendorsByCategory(string(category), minRating, limit)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	profiles := make([]planner.VendorProfile, 0, len(vendors))
	for _, vendor := range vendors {
		profiles = append(profiles, planner.VendorProfile{
			ID:       vendor.ID,
			Name:     vendor.Name,
			Category: category,
			Rating:   vendor.Rating,
			PriceMin: vendor.PriceMin,
			PriceMax: vendor.PriceMax,
		})
	}

	ranked, err := planner.RankVendors(s.confidence, profiles, flexibility, durationDays, daysUntil)
	if err != nil {
		s.renderError(c, statusForError(err), err)
		return
	}

	byID := make(map[uint]store.Vendor, len(vendors))
	for _, vendor := range vendors {
		byID[vendor.ID] = vendor
	}

	items := make([]VendorDTO, 0, len(ranked))
	for _, entry := range ranked {
		dto := VendorFromModel(byID[entry.Vendor.ID])
		percentage := entry.Confidence.Percentage
		tier := entry.Confidence.Tier
		dto.Percentage = &percentage
		dto.Tier = &tier
		items = append(items, dto)
	}

	c.JSON(http.StatusOK, VendorDataResponse{
		Category: string(category),
		Items:    items,
		Total:    len(items),
	})
}

func (s *Server) handleVendorLookup(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	vendor, found, err := s.catalog.Lookup(name)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if !found {
		s.renderError(c, http.StatusNotFound, fmt.Errorf("vendor %q not found", name))
		return
	}
	c.JSON(http.StatusOK, VendorFromModel(vendor))
}

func (s *Server) handleVendorUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("csv file required: %w", err))
		return
	}

	minRating := 0.0
	if value := strings.TrimSpace(c.PostForm("min_rating")); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed >= 0 {
			minRating = parsed
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()

	imported, err := s.catalog.ImportReader(file, minRating)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if imported == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("no vendors detected in csv"))
		return
	}

	c.JSON(http.StatusOK, UploadResponse{
		Imported:     imported,
		CatalogTotal: s.catalog.Count(),
	})
}

func (s *Server) handleGetPreferences(c *gin.Context) {
	pref, err := s.db.GetPreference()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if pref == nil {
		s.renderError(c, http.StatusNotFound, errors.New("no preferences saved"))
		return
	}
	c.JSON(http.StatusOK, PreferenceFromModel(*pref))
}

func (s *Server) handlePutPreferences(c *gin.Context) {
	var req PreferenceDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	flexibility, err := planner.ParseFlexibility(req.Flexibility)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if err := planner.ValidateSchedule(flexibility, req.DurationDays, req.DaysUntilWedding); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Bracket) != "" {
		if _, err := planner.ParseBracket(req.Bracket); err != nil {
			s.renderError(c, http.StatusBadRequest, err)
			return
		}
	}

	pref := store.Preference{
		Flexibility:      string(flexibility),
		DaysUntilWedding: req.DaysUntilWedding,
		DurationDays:     req.DurationDays,
		Bracket:          strings.ToLower(strings.TrimSpace(req.Bracket)),
		GuestCount:       req.GuestCount,
	}
	if err := s.db.SavePreference(&pref); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, PreferenceFromModel(pref))
}

func (s *Server) handleBudgetAnalysis(c *gin.Context) {
	var req BudgetAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	bracket, err := planner.ParseBracket(req.Bracket)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	result, err := s.budget.Compute(bracket, req.DurationDays)
	if err != nil {
		s.renderError(c, statusForError(err), err)
		return
	}

	breakdown := make(map[string]float64, len(result.CategoryBreakdown))
	for cat, amount := range result.CategoryBreakdown {
		breakdown[string(cat)] = round2(amount)
	}

	analysis := store.BudgetAnalysis{
		Bracket:      string(result.Bracket),
		DurationDays: result.DurationDays,
		TotalBudget:  result.TotalBudget,
	}
	analysis.SetBreakdown(breakdown)
	if err := s.db.SaveBudgetAnalysis(&analysis); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, BudgetAnalysisFromModel(analysis))
}

func (s *Server) handleBudgetHistory(c *gin.Context) {
	limit := 20
	if value := strings.TrimSpace(c.Query("limit")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	rows, err := s.db.ListBudgetAnalyses(limit)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	items := make([]BudgetAnalysisDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, BudgetAnalysisFromModel(row))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (s *Server) handleScore(c *gin.Context) {
	pref, err := s.db.GetPreference()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if pref == nil {
		s.renderError(c, http.StatusBadRequest, errors.New("save preferences before scoring"))
		return
	}

	flexibility, err := planner.ParseFlexibility(pref.Flexibility)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if err := planner.ValidateSchedule(flexibility, pref.DurationDays, pref.DaysUntilWedding); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	total, err := s.db.CountVendors()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if total == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("vendor catalog is empty"))
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob != nil {
		s.renderError(c, http.StatusConflict, errors.New("scoring already running"))
		return
	}

	job, err := s.startScoreJob(*pref, total)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusAccepted, StartScoreResponse{
		JobID:     job.id,
		RequestID: job.requestID,
		Total:     job.total,
		StartedAt: job.startedAt,
	})
}

func (s *Server) handleCancelScore(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("jobID"))
	if jobID == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("job id required"))
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob == nil {
		s.renderError(c, http.StatusNotFound, errors.New("no scoring running"))
		return
	}
	if s.activeJob.id != jobID {
		s.renderError(c, http.StatusNotFound, errors.New("job not found"))
		return
	}

	s.cancelScoreJob()
	logrus.WithField("job", jobID).Info("scoring cancellation requested")
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func (s *Server) handleScoreStatus(c *gin.Context) {
	s.jobMu.Lock()
	job := s.activeJob
	s.jobMu.Unlock()

	status := s.scoreNotifier.LastStatus()

	resp := ScoreStatusResponse{Running: job != nil}
	if job != nil {
		resp.JobID = job.id
		resp.RequestID = job.requestID
		resp.Total = job.total
	}
	if status != nil {
		resp.State = status.Type
		resp.Message = status.Message
		resp.Processed = status.Processed
		if status.Total != 0 {
			resp.Total = status.Total
		}
		if status.Score != nil {
			scoreCopy := *status.Score
			resp.LastScore = &scoreCopy
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleScoreStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.scoreNotifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("score websocket connected")
	defer s.scoreNotifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Warn("score websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) handleResults(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = 100
	}

	category := strings.TrimSpace(c.Query("category"))
	if category != "" {
		parsed, err := planner.ParseCategory(category)
		if err != nil {
			s.renderError(c, http.StatusBadRequest, err)
			return
		}
		category = string(parsed)
	}

	minPercentage, _ := strconv.Atoi(c.Query("minConfidence"))

	rows, total, err := s.db.ListVendorScores(store.ScoreQuery{
		Category:      category,
		Tier:          strings.TrimSpace(c.Query("tier")),
		MinPercentage: minPercentage,
		Sort:          strings.TrimSpace(c.Query("sort")),
		Offset:        page * pageSize,
		Limit:         pageSize,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	items := make([]ScoreDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, ScoreFromModel(row))
	}
	c.JSON(http.StatusOK, ResultsResponse{Items: items, Total: total})
}

func (s *Server) handleExportCSV(c *gin.Context) {
	rows, _, err := s.db.ListVendorScores(store.ScoreQuery{})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="vendor-scores.csv"`)

	writer := csv.NewWriter(c.Writer)
	header := []string{"vendor", "category", "rating", "confidence", "tier", "flexibility", "duration_days", "scored_at"}
	if err := writer.Write(header); err != nil {
		logrus.WithError(err).Warn("write csv header")
		return
	}
	for _, row := range rows {
		record := []string{
			row.VendorName,
			row.Category,
			strconv.FormatFloat(row.Rating, 'f', 1, 64),
			strconv.Itoa(row.Percentage),
			row.Tier,
			row.Flexibility,
			strconv.Itoa(row.DurationDays),
			row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			logrus.WithError(err).Warn("write csv row")
			return
		}
	}
	writer.Flush()
}
