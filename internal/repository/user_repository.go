package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-results-api/internal/models"
)

const userColumns = "id, email, password_hash, full_name, role, active, last_login, created_at, updated_at"

var userSorts = map[string]string{
	"email":      "email",
	"full_name":  "full_name",
	"role":       "role",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// UserRepository stores staff accounts and the class/subject grants attached to them.
type UserRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

func (r *UserRepository) getOne(ctx context.Context, column string, value interface{}) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s = $1 LIMIT 1", userColumns, column)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, value); err != nil {
		return nil, wrapNotFound(err, "find user by "+column)
	}
	return &user, nil
}

// FindByEmail matches case-insensitively; emails are stored lowercased.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email", normaliseEmail(email))
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2, updated_at = $3 WHERE id = $1`, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// List pages through accounts. Unknown sort keys fall back to newest first.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	cond := where()
	if filter.Role != nil {
		cond.and("role = ?", *filter.Role)
	}
	if filter.Active != nil {
		cond.and("active = ?", *filter.Active)
	}
	if filter.Search != "" {
		cond.and("(LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?)", likePattern(filter.Search))
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize, 20, 100)
	order := sortClause(userSorts, filter.SortBy, "created_at", filter.SortOrder, "DESC")

	users := []models.User{}
	total, err := selectPage(ctx, r.db, &users, userColumns, "FROM users WHERE "+cond.String(), order, limit, offset, cond.args)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = normaliseEmail(user.Email)

	const query = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
        VALUES (:id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update writes name, role and active flag. Email and password have their own paths.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = r.now().UTC()
	res, err := r.db.NamedExecContext(ctx, `UPDATE users SET full_name = :full_name, role = :role, active = :active, updated_at = :updated_at WHERE id = :id`, user)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireAffected(res)
}

// Delete deactivates the account; rows are kept so recorded_by references stay valid.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET active = FALSE, updated_at = $2 WHERE id = $1`, id, r.now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	return requireAffected(res)
}

func (r *UserRepository) ListAssignments(ctx context.Context, userID string) ([]models.StaffAssignment, error) {
	assignments := []models.StaffAssignment{}
	err := r.db.SelectContext(ctx, &assignments,
		`SELECT user_id, class_level, subject_key FROM staff_assignments WHERE user_id = $1 ORDER BY class_level, subject_key`, userID)
	if err != nil {
		return nil, fmt.Errorf("list staff assignments: %w", err)
	}
	return assignments, nil
}

// ReplaceAssignments swaps a teacher's grants in one transaction.
func (r *UserRepository) ReplaceAssignments(ctx context.Context, userID string, assignments []models.StaffAssignment) error {
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM staff_assignments WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear staff assignments: %w", err)
		}
		for _, a := range assignments {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO staff_assignments (user_id, class_level, subject_key) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				userID, a.ClassLevel, a.SubjectKey); err != nil {
				return fmt.Errorf("insert staff assignment: %w", err)
			}
		}
		return nil
	})
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
