package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-results-api/internal/models"
	"github.com/noah-isme/school-results-api/internal/ranking"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
	"github.com/noah-isme/school-results-api/pkg/export"
	"github.com/noah-isme/school-results-api/pkg/storage"
)

const defaultSchoolName = "School Result Sheet"

type classRosterReader interface {
	ListByClass(ctx context.Context, classLevel models.ClassLevel) ([]models.Student, error)
}

type attendanceLister interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceView, int, error)
}

type schoolSettingsReader interface {
	Get(ctx context.Context) (*models.SchoolSettings, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, subtitles ...string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Format       models.ReportFormat
}

// RenderedExport is an in-memory export served directly to the caller.
type RenderedExport struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService builds result sheet and attendance datasets, renders them
// and persists generated files for report jobs.
type ExportService struct {
	students   classRosterReader
	attendance attendanceLister
	school     schoolSettingsReader
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        ExportConfig
	now        func() time.Time
}

// NewExportService constructs an ExportService. Renderers default to pkg/export.
func NewExportService(students classRosterReader, attendance attendanceLister, school schoolSettingsReader, files fileStorage, signer *storage.SignedURLSigner, metrics *MetricsService, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		students:   students,
		attendance: attendance,
		school:     school,
		storage:    files,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// ResultSheet renders the ranked result sheet of a class synchronously.
func (s *ExportService) ResultSheet(ctx context.Context, rawClass, rawPeriod, sortKey string, format models.ReportFormat) (*RenderedExport, error) {
	classLevel, period, err := parseClassPeriod(rawClass, rawPeriod)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = models.ReportFormatCSV
	}
	params := models.ReportJobParams{ClassLevel: classLevel, ExamPeriod: period, SortKey: sortKey, Format: format}
	data, err := s.render(ctx, models.ReportTypeResultSheet, params)
	if err != nil {
		return nil, err
	}
	return &RenderedExport{
		Filename:    path.Base(s.buildFilename(models.ReportTypeResultSheet, params)),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// Generate renders a report job and stores the file, returning its storage path.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	data, err := s.render(ctx, job.Type, job.Params)
	if err != nil {
		return nil, err
	}
	relPath, err := s.storage.Save(s.buildFilename(job.Type, job.Params), data)
	if err != nil {
		return nil, fmt.Errorf("store export: %w", err)
	}
	s.logger.Info("report generated",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("path", relPath),
		zap.Int("bytes", len(data)),
	)
	return &ExportResult{RelativePath: relPath, Format: job.Params.Format}, nil
}

// SignDownload issues a signed download URL for a stored export.
func (s *ExportService) SignDownload(jobID, relPath string) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Generate(jobID, relPath)
	if err != nil {
		return "", time.Time{}, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/reports/download/%s", prefix, token), expiresAt, nil
}

// VerifyToken validates a download token.
func (s *ExportService) VerifyToken(token string) (storage.DownloadToken, error) {
	return s.signer.Verify(token)
}

// Open opens a stored export.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes stored exports older than ttl.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) render(ctx context.Context, reportType models.ReportType, params models.ReportJobParams) ([]byte, error) {
	var (
		dataset   export.Dataset
		subtitles []string
		err       error
	)
	switch reportType {
	case models.ReportTypeResultSheet:
		dataset, subtitles, err = s.resultSheetDataset(ctx, params)
	case models.ReportTypeAttendance:
		dataset, subtitles, err = s.attendanceDataset(ctx, params)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report type %s", reportType))
	}
	if err != nil {
		return nil, err
	}

	switch params.Format {
	case models.ReportFormatCSV:
		return s.csv.Render(dataset)
	case models.ReportFormatPDF:
		title, session := s.pdfHeading(ctx)
		if session != "" {
			subtitles = append(subtitles, session)
		}
		return s.pdf.Render(dataset, title, subtitles...)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", params.Format))
	}
}

// resultSheetDataset lists every result in ranking order with one column per subject.
func (s *ExportService) resultSheetDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, []string, error) {
	subjects, err := ranking.SubjectsFor(params.ClassLevel)
	if err != nil {
		return export.Dataset{}, nil, mapRankingError(err, "failed to resolve subjects")
	}
	students, err := s.students.ListByClass(ctx, params.ClassLevel)
	if err != nil {
		return export.Dataset{}, nil, fmt.Errorf("load students: %w", err)
	}
	start := time.Now()
	results, err := ranking.RankStudents(students, params.ClassLevel, params.ExamPeriod, params.SortKey)
	s.metrics.ObserveRanking("export", time.Since(start))
	if err != nil {
		return export.Dataset{}, nil, mapRankingError(err, "failed to rank class")
	}

	headers := []string{"Roll No", "Name"}
	for _, subject := range subjects {
		headers = append(headers, subject.Label)
	}
	headers = append(headers, "Total", "Percentage", "Rank")

	rows := make([]map[string]string, 0, len(results))
	for _, result := range results {
		row := map[string]string{
			"Roll No":    result.RollNo,
			"Name":       result.Name,
			"Total":      strconv.Itoa(result.Total),
			"Percentage": strconv.FormatFloat(result.Percentage, 'f', 2, 64),
			"Rank":       strconv.Itoa(result.Rank),
		}
		for _, subject := range subjects {
			row[subject.Label] = strconv.Itoa(result.Marks.Get(ranking.StorageKey(params.ExamPeriod, subject.Key)))
		}
		rows = append(rows, row)
	}
	subtitle := fmt.Sprintf("Class %s, %s Examination", params.ClassLevel, params.ExamPeriod)
	return export.Dataset{Headers: headers, Rows: rows}, []string{subtitle}, nil
}

func (s *ExportService) attendanceDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, []string, error) {
	filter := models.AttendanceFilter{ClassLevel: string(params.ClassLevel), PageSize: 500}
	if from, ok := parseDay(params.Extras["from"]); ok {
		filter.DateFrom = &from
	}
	if to, ok := parseDay(params.Extras["to"]); ok {
		filter.DateTo = &to
	}

	records := []models.AttendanceView{}
	for page := 1; ; page++ {
		filter.Page = page
		batch, total, err := s.attendance.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, nil, fmt.Errorf("load attendance: %w", err)
		}
		records = append(records, batch...)
		if len(batch) == 0 || len(records) >= total {
			break
		}
	}

	headers := []string{"Date", "Roll No", "Name", "Status", "Note"}
	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		note := ""
		if record.Note != nil {
			note = *record.Note
		}
		rows = append(rows, map[string]string{
			"Date":    record.Date.Format("2006-01-02"),
			"Roll No": record.RollNo,
			"Name":    record.StudentName,
			"Status":  string(record.Status),
			"Note":    note,
		})
	}
	subtitle := fmt.Sprintf("Class %s Attendance", params.ClassLevel)
	if filter.DateFrom != nil || filter.DateTo != nil {
		subtitle = fmt.Sprintf("%s, %s to %s", subtitle, params.Extras["from"], params.Extras["to"])
	}
	return export.Dataset{Headers: headers, Rows: rows}, []string{subtitle}, nil
}

// pdfHeading resolves the school name and session line printed above tables.
func (s *ExportService) pdfHeading(ctx context.Context) (string, string) {
	if s.school == nil {
		return defaultSchoolName, ""
	}
	settings, err := s.school.Get(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to load school settings", zap.Error(err))
		}
		return defaultSchoolName, ""
	}
	name := settings.Name
	if name == "" {
		name = defaultSchoolName
	}
	session := ""
	if settings.Session != "" {
		session = "Session " + settings.Session
	}
	return name, session
}

func (s *ExportService) buildFilename(reportType models.ReportType, params models.ReportJobParams) string {
	parts := []string{"class", string(params.ClassLevel)}
	if params.ExamPeriod != "" {
		parts = append(parts, strings.ToLower(string(params.ExamPeriod)))
	}
	parts = append(parts, s.now().UTC().Format("20060102T150405"))
	name := sanitizeFilename(strings.Join(parts, "_"))
	return fmt.Sprintf("%s/%s.%s", reportType, name, params.Format)
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_\-]+`)

func sanitizeFilename(name string) string {
	return strings.Trim(unsafeFilenameChars.ReplaceAllString(name, "-"), "-")
}

func parseDay(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}
