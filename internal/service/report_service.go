package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
	"github.com/Mahad-Ghauri/School-Backend/pkg/export"
	"github.com/Mahad-Ghauri/School-Backend/pkg/storage"
)

type reportRepo interface {
	Defaulters(ctx context.Context, classID string) ([]models.Defaulter, error)
	FeeStats(ctx context.Context, month time.Time) (*models.FeeStats, error)
	StudentDue(ctx context.Context, studentID string) (*models.StudentDue, error)
	SalaryStats(ctx context.Context, month time.Time) (*models.SalaryStats, error)
	ClassCollection(ctx context.Context, month time.Time) ([]models.ClassCollection, error)
	MonthlyFinance(ctx context.Context, from, to time.Time) ([]models.MonthlyFinance, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Export formats accepted by the report endpoints.
const (
	ExportCSV = "csv"
	ExportPDF = "pdf"
)

// ReportService implements financial reporting. Rollups are always derived
// from the ledgers; Redis only shortens repeated reads and is invalidated on
// every financial write.
type ReportService struct {
	reports  reportRepo
	cache    reportCache
	cacheTTL time.Duration
	storage  *storage.LocalStorage
	signer   *storage.SignedURLSigner
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewReportService constructs the report service.
func NewReportService(reports reportRepo, cache reportCache, cacheTTL time.Duration, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &ReportService{
		reports:  reports,
		cache:    cache,
		cacheTTL: cacheTTL,
		storage:  store,
		signer:   signer,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

func (s *ReportService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("report cache read", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *ReportService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("report cache write", zap.String("key", key), zap.Error(err))
	}
}

// Defaulters returns students with outstanding dues.
func (s *ReportService) Defaulters(ctx context.Context, classID string) ([]models.Defaulter, error) {
	key := "reports:defaulters:" + classID
	var defaulters []models.Defaulter
	if s.cacheGet(ctx, key, &defaulters) {
		return defaulters, nil
	}

	defaulters, err := s.reports.Defaulters(ctx, classID)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, defaulters)
	return defaulters, nil
}

// FeeSummary returns the collection rollup for a month.
func (s *ReportService) FeeSummary(ctx context.Context, month time.Time) (*models.FeeStats, error) {
	month = NormalizeMonth(month)
	key := "reports:fees:" + month.Format("2006-01")
	var stats models.FeeStats
	if s.cacheGet(ctx, key, &stats) {
		return &stats, nil
	}

	fresh, err := s.reports.FeeStats(ctx, month)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, fresh)
	return fresh, nil
}

// SalarySummary returns the payroll rollup for a month.
func (s *ReportService) SalarySummary(ctx context.Context, month time.Time) (*models.SalaryStats, error) {
	month = NormalizeMonth(month)
	key := "reports:salaries:" + month.Format("2006-01")
	var stats models.SalaryStats
	if s.cacheGet(ctx, key, &stats) {
		return &stats, nil
	}

	fresh, err := s.reports.SalaryStats(ctx, month)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, fresh)
	return fresh, nil
}

// ClassCollection returns per-class collection rollups for a month.
func (s *ReportService) ClassCollection(ctx context.Context, month time.Time) ([]models.ClassCollection, error) {
	month = NormalizeMonth(month)
	key := "reports:classes:" + month.Format("2006-01")
	var rows []models.ClassCollection
	if s.cacheGet(ctx, key, &rows) {
		return rows, nil
	}

	rows, err := s.reports.ClassCollection(ctx, month)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, rows)
	return rows, nil
}

// MonthlyFinance returns income-vs-expense rollups for a month range. The
// range is inclusive of both months.
func (s *ReportService) MonthlyFinance(ctx context.Context, from, to time.Time) ([]models.MonthlyFinance, error) {
	from = NormalizeMonth(from)
	to = NormalizeMonth(to).AddDate(0, 1, 0)
	if !from.Before(to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from month must not be after to month")
	}

	key := fmt.Sprintf("reports:finance:%s:%s", from.Format("2006-01"), to.Format("2006-01"))
	var rows []models.MonthlyFinance
	if s.cacheGet(ctx, key, &rows) {
		return rows, nil
	}

	rows, err := s.reports.MonthlyFinance(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, rows)
	return rows, nil
}

// StudentDue returns the aggregate outstanding balance for one student.
func (s *ReportService) StudentDue(ctx context.Context, studentID string) (*models.StudentDue, error) {
	return s.reports.StudentDue(ctx, studentID)
}

// ExportDefaulters renders the defaulter list to a file and returns a signed
// download link.
func (s *ReportService) ExportDefaulters(ctx context.Context, classID, format string) (*models.ReportExport, error) {
	defaulters, err := s.Defaulters(ctx, classID)
	if err != nil {
		return nil, err
	}

	headers := []string{"Student", "Roll No", "Class", "Section", "Vouchers", "Total Fee", "Paid", "Due"}
	rows := make([]map[string]string, 0, len(defaulters))
	for _, d := range defaulters {
		roll := ""
		if d.RollNo != nil {
			roll = *d.RollNo
		}
		rows = append(rows, map[string]string{
			"Student":   d.StudentName,
			"Roll No":   roll,
			"Class":     d.ClassName,
			"Section":   d.SectionName,
			"Vouchers":  fmt.Sprintf("%d", d.TotalVouchers),
			"Total Fee": fmt.Sprintf("%.2f", d.TotalFee),
			"Paid":      fmt.Sprintf("%.2f", d.PaidAmount),
			"Due":       fmt.Sprintf("%.2f", d.DueAmount),
		})
	}

	return s.export(export.Dataset{Headers: headers, Rows: rows}, "defaulters", "Fee Defaulters", format)
}

// ExportMonthlyFinance renders the finance rollup to a file and returns a
// signed download link.
func (s *ReportService) ExportMonthlyFinance(ctx context.Context, from, to time.Time, format string) (*models.ReportExport, error) {
	finance, err := s.MonthlyFinance(ctx, from, to)
	if err != nil {
		return nil, err
	}

	headers := []string{"Month", "Fees Collected", "Salaries Paid", "Expenses", "Net"}
	rows := make([]map[string]string, 0, len(finance))
	for _, m := range finance {
		rows = append(rows, map[string]string{
			"Month":          m.Month.Format("2006-01"),
			"Fees Collected": fmt.Sprintf("%.2f", m.FeesCollected),
			"Salaries Paid":  fmt.Sprintf("%.2f", m.SalariesPaid),
			"Expenses":       fmt.Sprintf("%.2f", m.Expenses),
			"Net":            fmt.Sprintf("%.2f", m.Net),
		})
	}

	return s.export(export.Dataset{Headers: headers, Rows: rows}, "monthly-finance", "Monthly Finance", format)
}

func (s *ReportService) export(data export.Dataset, name, title, format string) (*models.ReportExport, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "report exports are not configured")
	}

	var payload []byte
	var err error
	switch format {
	case "", ExportCSV:
		format = ExportCSV
		payload, err = s.csv.Render(data)
	case ExportPDF:
		payload, err = s.pdf.Render(data, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", name, err)
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("%s-%s.%s", name, time.Now().UTC().Format("20060102-150405"), format)
	if _, err := s.storage.Save(filename, payload); err != nil {
		return nil, fmt.Errorf("store %s export: %w", name, err)
	}

	token, expiresAt, err := s.signer.Generate(exportID, filename)
	if err != nil {
		return nil, fmt.Errorf("sign %s export: %w", name, err)
	}

	s.logger.Info("report exported",
		zap.String("report", name),
		zap.String("format", format),
		zap.String("file", filename))
	return &models.ReportExport{
		FileName:    filename,
		Format:      format,
		DownloadURL: "/api/reports/exports/" + token,
		ExpiresAt:   expiresAt,
	}, nil
}

// ResolveDownload validates a signed token and returns the file path to
// stream.
func (s *ReportService) ResolveDownload(token string) (string, error) {
	if s.storage == nil || s.signer == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "report exports are not configured")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link")
	}
	return s.storage.Path(relPath), nil
}
