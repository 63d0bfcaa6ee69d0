package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/repository"
)

// ClassInput is the body of a class create request.
type ClassInput struct {
	Name            string
	Description     string
	ProfessorID     string
	MaxStudents     int
	DurationMinutes int
	Price           decimal.Decimal
}

// ClassPatch lists the fields an update may change; nil leaves a field as is.
type ClassPatch struct {
	Name            *string
	Description     *string
	MaxStudents     *int
	DurationMinutes *int
	Price           *decimal.Decimal
	IsActive        *bool
}

// ClassService manages the class catalogue.
type ClassService struct {
	store repository.Store
	Now   func() time.Time
}

// NewClassService wires a ClassService.
func NewClassService(store repository.Store) *ClassService {
	return &ClassService{store: store, Now: func() time.Time { return time.Now().UTC() }}
}

// List returns classes ordered by name.
func (s *ClassService) List(ctx context.Context, activeOnly bool) ([]model.Class, error) {
	return s.store.ListClasses(ctx, activeOnly)
}

// Get returns one class.
func (s *ClassService) Get(ctx context.Context, id string) (model.Class, error) {
	c, err := s.store.GetClass(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Class{}, ErrClassNotFound
	}
	return c, err
}

// Create adds a class taught by in.ProfessorID, who must be a teacher.
func (s *ClassService) Create(ctx context.Context, caller model.Identity, in ClassInput) (model.Class, error) {
	if err := Authorize(caller, ActionCreateClass, Resource{ProfessorID: in.ProfessorID}); err != nil {
		return model.Class{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.ProfessorID = strings.TrimSpace(in.ProfessorID)
	if in.Name == "" || in.ProfessorID == "" {
		return model.Class{}, fmt.Errorf("%w: name and professorId are required", ErrInvalidInput)
	}
	if in.MaxStudents <= 0 {
		return model.Class{}, fmt.Errorf("%w: maxStudents must be positive", ErrInvalidInput)
	}
	if in.DurationMinutes < 0 || in.Price.IsNegative() {
		return model.Class{}, fmt.Errorf("%w: duration and price must not be negative", ErrInvalidInput)
	}

	var c model.Class
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		prof, err := tx.GetUser(ctx, in.ProfessorID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if prof.Role != model.RoleTeacher {
			return fmt.Errorf("%w: professor must have the teacher role", ErrInvalidInput)
		}
		now := s.Now()
		c = model.Class{
			ID:              uuid.NewString(),
			Name:            in.Name,
			Description:     strings.TrimSpace(in.Description),
			ProfessorID:     prof.ID,
			ProfessorName:   prof.Name,
			MaxStudents:     in.MaxStudents,
			DurationMinutes: in.DurationMinutes,
			Price:           in.Price,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.CreateClass(ctx, c)
	})
	if err != nil {
		return model.Class{}, err
	}
	return c, nil
}

// Update applies p to class id.  Admins may change anything; the
// teaching professor may change their own class.
func (s *ClassService) Update(ctx context.Context, caller model.Identity, id string, p ClassPatch) (model.Class, error) {
	var c model.Class
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		c, err = tx.GetClassForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrClassNotFound
		}
		if err != nil {
			return err
		}
		if err := Authorize(caller, ActionManageClass, Resource{ProfessorID: c.ProfessorID}); err != nil {
			return err
		}
		if p.Name != nil {
			if strings.TrimSpace(*p.Name) == "" {
				return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
			}
			c.Name = strings.TrimSpace(*p.Name)
		}
		if p.Description != nil {
			c.Description = strings.TrimSpace(*p.Description)
		}
		if p.MaxStudents != nil {
			if *p.MaxStudents <= 0 {
				return fmt.Errorf("%w: maxStudents must be positive", ErrInvalidInput)
			}
			c.MaxStudents = *p.MaxStudents
		}
		if p.DurationMinutes != nil {
			if *p.DurationMinutes < 0 {
				return fmt.Errorf("%w: duration must not be negative", ErrInvalidInput)
			}
			c.DurationMinutes = *p.DurationMinutes
		}
		if p.Price != nil {
			if p.Price.IsNegative() {
				return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
			}
			c.Price = *p.Price
		}
		if p.IsActive != nil {
			c.IsActive = *p.IsActive
		}
		c.UpdatedAt = s.Now()
		return tx.UpdateClass(ctx, c)
	})
	if err != nil {
		return model.Class{}, err
	}
	return c, nil
}
