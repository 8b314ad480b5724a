package repository

import (
	"context"
	"errors"

	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"gorm.io/gorm"
)

// LocationRepository site location directory
type LocationRepository struct {
	db *gorm.DB
}

// NewLocationRepository creates the location repository
func NewLocationRepository(db *gorm.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// FindByID looks a location up by id
func (r *LocationRepository) FindByID(ctx context.Context, id string) (*entity.Location, error) {
	var loc entity.Location
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&loc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &loc, nil
}

// Create inserts a new location
func (r *LocationRepository) Create(ctx context.Context, loc *entity.Location) error {
	return r.db.WithContext(ctx).Create(loc).Error
}

// Update saves location fields
func (r *LocationRepository) Update(ctx context.Context, loc *entity.Location) error {
	return r.db.WithContext(ctx).Save(loc).Error
}

// List returns locations matching the optional keyword, paginated.
func (r *LocationRepository) List(ctx context.Context, page, pageSize int, keyword string) ([]entity.Location, int64, error) {
	var locations []entity.Location
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Location{})
	if keyword != "" {
		query = query.Where("name ILIKE ? OR code ILIKE ? OR zone ILIKE ?",
			"%"+keyword+"%", "%"+keyword+"%", "%"+keyword+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("code ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&locations).Error
	if err != nil {
		return nil, 0, err
	}

	return locations, total, nil
}

// ContractorRepository contractor directory
type ContractorRepository struct {
	db *gorm.DB
}

// NewContractorRepository creates the contractor repository
func NewContractorRepository(db *gorm.DB) *ContractorRepository {
	return &ContractorRepository{db: db}
}

// FindByID looks a contractor up by id
func (r *ContractorRepository) FindByID(ctx context.Context, id string) (*entity.Contractor, error) {
	var c entity.Contractor
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Create inserts a new contractor
func (r *ContractorRepository) Create(ctx context.Context, c *entity.Contractor) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// Update saves contractor fields
func (r *ContractorRepository) Update(ctx context.Context, c *entity.Contractor) error {
	return r.db.WithContext(ctx).Save(c).Error
}

// List returns contractors matching the optional keyword, paginated.
func (r *ContractorRepository) List(ctx context.Context, page, pageSize int, keyword string) ([]entity.Contractor, int64, error) {
	var contractors []entity.Contractor
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Contractor{})
	if keyword != "" {
		query = query.Where("name ILIKE ? OR code ILIKE ? OR contact_person ILIKE ?",
			"%"+keyword+"%", "%"+keyword+"%", "%"+keyword+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("code ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&contractors).Error
	if err != nil {
		return nil, 0, err
	}

	return contractors, total, nil
}
