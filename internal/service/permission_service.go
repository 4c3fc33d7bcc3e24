package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/school-results-api/internal/models"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
)

type assignmentReader interface {
	ListAssignments(ctx context.Context, userID string) ([]models.StaffAssignment, error)
}

// PermissionService decides which marks and classes a caller may touch.
type PermissionService struct {
	assignments assignmentReader
	logger      *zap.Logger
}

// NewPermissionService constructs the authorization collaborator.
func NewPermissionService(assignments assignmentReader, logger *zap.Logger) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionService{assignments: assignments, logger: logger}
}

// CanEditMark reports whether the caller may write marks for the class and subject.
func (s *PermissionService) CanEditMark(ctx context.Context, claims *models.JWTClaims, classLevel models.ClassLevel, subjectKey string) (bool, error) {
	if claims == nil {
		return false, nil
	}
	if claims.Role.IsAdmin() {
		return true, nil
	}
	if claims.Role != models.RoleTeacher {
		return false, nil
	}
	assignments, err := s.assignments.ListAssignments(ctx, claims.UserID)
	if err != nil {
		return false, err
	}
	subjectKey = strings.ToLower(strings.TrimSpace(subjectKey))
	for _, a := range assignments {
		if a.ClassLevel != classLevel {
			continue
		}
		if a.SubjectKey == models.AllSubjects || strings.EqualFold(a.SubjectKey, subjectKey) {
			return true, nil
		}
	}
	return false, nil
}

// CanAccessClass reports whether the caller may read class-wide data.
func (s *PermissionService) CanAccessClass(ctx context.Context, claims *models.JWTClaims, classLevel models.ClassLevel) (bool, error) {
	if claims == nil {
		return false, nil
	}
	switch {
	case claims.Role.IsAdmin():
		return true, nil
	case claims.Role == models.RoleTeacher:
		assignments, err := s.assignments.ListAssignments(ctx, claims.UserID)
		if err != nil {
			return false, err
		}
		for _, a := range assignments {
			if a.ClassLevel == classLevel {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nil
	}
}

// RequireMarkAccess fails with FORBIDDEN naming the first subject the caller may not edit.
// With no subjects it still requires access to the class.
func (s *PermissionService) RequireMarkAccess(ctx context.Context, claims *models.JWTClaims, classLevel models.ClassLevel, subjectKeys []string) error {
	if len(subjectKeys) == 0 {
		ok, err := s.CanAccessClass(ctx, claims, classLevel)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check permissions")
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("not assigned to class %s", classLevel))
		}
		return nil
	}
	for _, key := range subjectKeys {
		ok, err := s.CanEditMark(ctx, claims, classLevel, key)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check permissions")
		}
		if !ok {
			s.logger.Info("mark edit denied",
				zap.String("class_level", string(classLevel)),
				zap.String("subject", key),
				zap.String("user_id", userIDOf(claims)),
			)
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("not allowed to edit %s marks for class %s", key, classLevel))
		}
	}
	return nil
}

func userIDOf(claims *models.JWTClaims) string {
	if claims == nil {
		return ""
	}
	return claims.UserID
}
