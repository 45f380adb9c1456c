package handler

import "github.com/pharmastock/stock-system/internal/core/domain"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Auth ---

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type createUserRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=4"`
	Role     string `json:"role"     validate:"required,oneof=admin user"`
}

// --- Medications ---

type createMedicationRequest struct {
	Name         string `json:"name"         validate:"required,max=100"`
	Batch        string `json:"batch"        validate:"required"`
	Expiry       string `json:"expiry"       validate:"required,ddmmyyyy"`
	Manufacturer string `json:"manufacturer" validate:"required"`
	Quantity     *int   `json:"quantity"     validate:"omitempty,min=0"`
}

// updateMedicationRequest is a partial update: absent fields stay unchanged,
// present ones are validated by the domain, empty strings included.
type updateMedicationRequest struct {
	Name         *string `json:"name"`
	Batch        *string `json:"batch"`
	Expiry       *string `json:"expiry"`
	Manufacturer *string `json:"manufacturer"`
	Quantity     *int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}

type adjustStockRequest struct {
	Amount    *int   `json:"amount"    validate:"required,min=0"`
	Direction string `json:"direction" validate:"required,oneof=increase decrease"`
}

type medicationListResponse struct {
	Items []domain.Snapshot `json:"items"`
	Count int               `json:"count"`
}
