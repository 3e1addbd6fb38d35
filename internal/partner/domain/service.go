package domain

import (
	"context"
	"errors"
)

// Service manages the partner registry.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Partner, error)
	Get(ctx context.Context, id string) (*Partner, error)
	List(ctx context.Context, req ListRequest) ([]Partner, error)
	SetStatus(ctx context.Context, id string, status PartnerStatus) (*Partner, error)
}

// CreateRequest registers a new partner.
type CreateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// ListRequest filters the partner listing.
type ListRequest struct {
	Status PartnerStatus `json:"status,omitempty"`
	Limit  int           `json:"limit,omitempty"`
}

var (
	ErrNotFound       = errors.New("partner_not_found")
	ErrInvalidPartner = errors.New("invalid_partner")
	ErrInvalidName    = errors.New("invalid_partner_name")
	ErrInvalidStatus  = errors.New("invalid_partner_status")
)
