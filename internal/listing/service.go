// Package listing manages the bookable resources hosts publish.
package listing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/PaulBabatuyi/coova/internal/apperr"
	"github.com/PaulBabatuyi/coova/internal/data"
	"github.com/PaulBabatuyi/coova/internal/normalize"
	"github.com/PaulBabatuyi/coova/internal/validation"
)

// Store persists resources.
type Store interface {
	CreateResource(ctx context.Context, r *data.Resource) error
	GetResource(ctx context.Context, id string) (*data.Resource, error)
	UpdateResource(ctx context.Context, r *data.Resource) error
	ListResources(ctx context.Context, ownerID string, visibleOnly bool) ([]*data.Resource, error)
}

// CreateRequest describes a new listing. Prices are minor units per hour,
// capped so that a booking total always fits in an int64.
type CreateRequest struct {
	OwnerID      string `json:"ownerId" validate:"required"`
	Title        string `json:"title" validate:"required,max=200"`
	Kind         string `json:"kind" validate:"required,oneof=space vehicle"`
	PricePerHour int64  `json:"pricePerHour" validate:"gt=0,lte=100000000"`
	Capacity     int    `json:"capacity" validate:"gte=0"`
	Visible      bool   `json:"visible"`
}

// UpdateRequest changes only the fields that are set. Existing bookings keep
// the totals they were priced with.
type UpdateRequest struct {
	Title        *string `json:"title" validate:"omitempty,min=1,max=200"`
	PricePerHour *int64  `json:"pricePerHour" validate:"omitempty,gt=0,lte=100000000"`
	Capacity     *int    `json:"capacity" validate:"omitempty,gte=0"`
	Visible      *bool   `json:"visible"`
}

type Service struct {
	store    Store
	validate *validation.Validator
	now      func() time.Time
	log      *logrus.Logger
}

func NewService(store Store, logger *logrus.Logger) *Service {
	return &Service{store: store, validate: validation.New(), now: time.Now, log: logger}
}

func (s *Service) clock() time.Time { return s.now().UTC().Truncate(time.Millisecond) }

// Create stores a new resource owned by req.OwnerID.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*data.Resource, error) {
	req.OwnerID = normalize.ID(req.OwnerID)
	req.Title = normalize.Body(req.Title)
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	now := s.clock()
	r := &data.Resource{
		ID:           uuid.NewString(),
		OwnerID:      req.OwnerID,
		Title:        req.Title,
		Kind:         req.Kind,
		PricePerHour: req.PricePerHour,
		Capacity:     req.Capacity,
		Visible:      req.Visible,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateResource(ctx, r); err != nil {
		return nil, apperr.Internal("create resource", err)
	}
	s.log.WithFields(logrus.Fields{"resource_id": r.ID, "owner_id": r.OwnerID}).Info("resource created")
	return r, nil
}

// Get returns a resource. Hidden resources only exist for their owner.
func (s *Service) Get(ctx context.Context, id, viewerID string) (*data.Resource, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Visible && r.OwnerID != normalize.ID(viewerID) {
		return nil, apperr.NotFound("resource")
	}
	return r, nil
}

// Update applies a partial change on behalf of the owner.
func (s *Service) Update(ctx context.Context, id, actorID string, req UpdateRequest) (*data.Resource, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	actorID = normalize.ID(actorID)
	if r.OwnerID != actorID {
		if !r.Visible {
			return nil, apperr.NotFound("resource")
		}
		s.log.WithFields(logrus.Fields{"resource_id": r.ID, "actor_id": actorID}).Warn("security: resource update by non-owner")
		return nil, apperr.Forbidden("only the owner can change a resource")
	}
	if req.Title != nil {
		r.Title = normalize.Body(*req.Title)
		if r.Title == "" {
			return nil, apperr.Field("title", "is required")
		}
	}
	if req.PricePerHour != nil {
		r.PricePerHour = *req.PricePerHour
	}
	if req.Capacity != nil {
		r.Capacity = *req.Capacity
	}
	if req.Visible != nil {
		r.Visible = *req.Visible
	}
	r.UpdatedAt = s.clock()
	if err := s.store.UpdateResource(ctx, r); err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperr.NotFound("resource")
		}
		return nil, apperr.Internal("update resource", err)
	}
	return r, nil
}

// List returns ownerID's resources (all of them when ownerID is empty). Only
// the owner sees hidden ones.
func (s *Service) List(ctx context.Context, ownerID, viewerID string) ([]*data.Resource, error) {
	ownerID = normalize.ID(ownerID)
	visibleOnly := ownerID == "" || ownerID != normalize.ID(viewerID)
	out, err := s.store.ListResources(ctx, ownerID, visibleOnly)
	if err != nil {
		return nil, apperr.Internal("list resources", err)
	}
	if out == nil {
		out = []*data.Resource{}
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, id string) (*data.Resource, error) {
	id = normalize.ID(id)
	if id == "" {
		return nil, apperr.Field("resourceId", "is required")
	}
	r, err := s.store.GetResource(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperr.NotFound("resource")
		}
		return nil, apperr.Internal("load resource", err)
	}
	return r, nil
}
