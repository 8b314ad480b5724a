package service

import (
	"context"
	"fmt"

	"github.com/fieldsafe/ptw/internal/ptw/apperr"
	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"github.com/fieldsafe/ptw/internal/ptw/repository"
)

// DirectoryService location and contractor directories
type DirectoryService struct {
	locationRepo   *repository.LocationRepository
	contractorRepo *repository.ContractorRepository
}

// NewDirectoryService creates the directory service
func NewDirectoryService(locationRepo *repository.LocationRepository, contractorRepo *repository.ContractorRepository) *DirectoryService {
	return &DirectoryService{
		locationRepo:   locationRepo,
		contractorRepo: contractorRepo,
	}
}

// CreateLocationRequest new location payload
type CreateLocationRequest struct {
	Code        string `json:"code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Zone        string `json:"zone"`
	Description string `json:"description"`
}

// UpdateLocationRequest location edit payload
type UpdateLocationRequest struct {
	Name        *string `json:"name"`
	Zone        *string `json:"zone"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// CreateLocation adds a location to the directory.
func (s *DirectoryService) CreateLocation(ctx context.Context, req *CreateLocationRequest) (*entity.Location, error) {
	loc := &entity.Location{
		ID:          generateID(),
		Code:        req.Code,
		Name:        req.Name,
		Zone:        req.Zone,
		Description: req.Description,
		Status:      "active",
	}
	if err := s.locationRepo.Create(ctx, loc); err != nil {
		return nil, fmt.Errorf("create location: %w", err)
	}
	return loc, nil
}

// UpdateLocation edits a location.
func (s *DirectoryService) UpdateLocation(ctx context.Context, id string, req *UpdateLocationRequest) (*entity.Location, error) {
	loc, err := s.locationRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("location")
		}
		return nil, err
	}
	if req.Name != nil {
		loc.Name = *req.Name
	}
	if req.Zone != nil {
		loc.Zone = *req.Zone
	}
	if req.Description != nil {
		loc.Description = *req.Description
	}
	if req.Status != nil {
		loc.Status = *req.Status
	}
	if err := s.locationRepo.Update(ctx, loc); err != nil {
		return nil, fmt.Errorf("update location: %w", err)
	}
	return loc, nil
}

// GetLocation loads a location.
func (s *DirectoryService) GetLocation(ctx context.Context, id string) (*entity.Location, error) {
	loc, err := s.locationRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("location")
		}
		return nil, err
	}
	return loc, nil
}

// ListLocations returns a paginated location page.
func (s *DirectoryService) ListLocations(ctx context.Context, page, pageSize int, keyword string) (map[string]interface{}, error) {
	locations, total, err := s.locationRepo.List(ctx, page, pageSize, keyword)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"locations": locations,
		"total":     total,
	}, nil
}

// CreateContractorRequest new contractor payload
type CreateContractorRequest struct {
	Code          string `json:"code" binding:"required"`
	Name          string `json:"name" binding:"required"`
	ContactPerson string `json:"contact_person"`
	ContactPhone  string `json:"contact_phone"`
	Email         string `json:"email"`
}

// UpdateContractorRequest contractor edit payload
type UpdateContractorRequest struct {
	Name          *string `json:"name"`
	ContactPerson *string `json:"contact_person"`
	ContactPhone  *string `json:"contact_phone"`
	Email         *string `json:"email"`
	Status        *string `json:"status"`
}

// CreateContractor adds a contractor to the directory.
func (s *DirectoryService) CreateContractor(ctx context.Context, req *CreateContractorRequest) (*entity.Contractor, error) {
	c := &entity.Contractor{
		ID:            generateID(),
		Code:          req.Code,
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		ContactPhone:  req.ContactPhone,
		Email:         req.Email,
		Status:        "active",
	}
	if err := s.contractorRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create contractor: %w", err)
	}
	return c, nil
}

// UpdateContractor edits a contractor.
func (s *DirectoryService) UpdateContractor(ctx context.Context, id string, req *UpdateContractorRequest) (*entity.Contractor, error) {
	c, err := s.contractorRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("contractor")
		}
		return nil, err
	}
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.ContactPerson != nil {
		c.ContactPerson = *req.ContactPerson
	}
	if req.ContactPhone != nil {
		c.ContactPhone = *req.ContactPhone
	}
	if req.Email != nil {
		c.Email = *req.Email
	}
	if req.Status != nil {
		c.Status = *req.Status
	}
	if err := s.contractorRepo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update contractor: %w", err)
	}
	return c, nil
}

// GetContractor loads a contractor.
func (s *DirectoryService) GetContractor(ctx context.Context, id string) (*entity.Contractor, error) {
	c, err := s.contractorRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("contractor")
		}
		return nil, err
	}
	return c, nil
}

// ListContractors returns a paginated contractor page.
func (s *DirectoryService) ListContractors(ctx context.Context, page, pageSize int, keyword string) (map[string]interface{}, error) {
	contractors, total, err := s.contractorRepo.List(ctx, page, pageSize, keyword)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"contractors": contractors,
		"total":       total,
	}, nil
}
