package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-results-api/internal/models"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
)

type schoolSettingsStore interface {
	Get(ctx context.Context) (*models.SchoolSettings, error)
	Upsert(ctx context.Context, settings *models.SchoolSettings) error
}

// UpdateSchoolRequest replaces the school profile.
type UpdateSchoolRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Address   string `json:"address" validate:"max=500"`
	Session   string `json:"session" validate:"max=20"`
	Principal string `json:"principal" validate:"max=200"`
}

// SchoolService exposes the singleton school settings.
type SchoolService struct {
	repo      schoolSettingsStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolService constructs the service.
func NewSchoolService(repo schoolSettingsStore, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{repo: repo, validator: validate, logger: logger}
}

// Get returns the settings, or an empty profile named after the default heading when unset.
func (s *SchoolService) Get(ctx context.Context) (*models.SchoolSettings, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.SchoolSettings{Name: defaultSchoolName}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school settings")
	}
	return settings, nil
}

// Update stores a new school profile.
func (s *SchoolService) Update(ctx context.Context, req UpdateSchoolRequest) (*models.SchoolSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid school settings payload")
	}
	settings := &models.SchoolSettings{
		Name:      strings.TrimSpace(req.Name),
		Address:   strings.TrimSpace(req.Address),
		Session:   strings.TrimSpace(req.Session),
		Principal: strings.TrimSpace(req.Principal),
	}
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save school settings")
	}
	s.logger.Info("school settings updated", zap.String("name", settings.Name))
	return settings, nil
}
