package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/helpdesk/internal/models"
)

// ProjectRepository reads projects.
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository constructs a repository using the provided gorm DB.
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// List returns all projects ordered by name.
func (r *ProjectRepository) List(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.WithContext(ctx).Order("name asc").Find(&projects).Error
	return projects, errors.WithStack(err)
}

// FindByID returns the project by id.
func (r *ProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return &project, nil
}

// NamesByID loads the names of the given projects in one query.
func (r *ProjectRepository) NamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var projects []models.Project
	if err := r.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&projects).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	for _, p := range projects {
		out[p.ID] = p.Name
	}
	return out, nil
}

// UserRepository reads and upserts identity rows.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a repository using the provided gorm DB.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// List returns all users ordered by name.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("name asc").Find(&users).Error
	return users, errors.WithStack(err)
}

// FindByID returns the user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return &user, nil
}

// Resolve finds a user by id or, failing that, by case-insensitive email.
func (r *UserRepository) Resolve(ctx context.Context, ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	var user models.User
	err := r.db.WithContext(ctx).
		Where("id = ? OR lower(email) = ?", ref, strings.ToLower(ref)).
		Order("id asc").
		First(&user).Error
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &user, nil
}

// ByID loads the given users in one query.
func (r *UserRepository) ByID(ctx context.Context, ids []string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// Upsert inserts the user or refreshes its profile fields.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "image", "updated_at"}),
	}).Create(user).Error
	return errors.WithStack(err)
}

// AssetFilter narrows an asset listing.
type AssetFilter struct {
	Query    string
	Category string
	Limit    int
}

// AssetRepository reads the asset directory.
type AssetRepository struct {
	db *gorm.DB
}

// NewAssetRepository constructs a repository using the provided gorm DB.
func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// List returns assets matching filter ordered by tag.
func (r *AssetRepository) List(ctx context.Context, filter AssetFilter) ([]models.Asset, error) {
	q := r.db.WithContext(ctx).Model(&models.Asset{})
	if filter.Category != "" {
		q = q.Where("lower(category) = ?", strings.ToLower(filter.Category))
	}
	if term := strings.TrimSpace(filter.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("(lower(name) LIKE ? OR lower(tag) LIKE ? OR lower(location) LIKE ?)", like, like, like)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	var assets []models.Asset
	err := q.Order("tag asc").Limit(limit).Find(&assets).Error
	return assets, errors.WithStack(err)
}
