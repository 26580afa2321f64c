package service

import (
	"context"
	"database/sql"
	"time"

	"xingqu-shop/internal/database"
	"xingqu-shop/internal/domain"
	"xingqu-shop/internal/repository"

	"github.com/google/uuid"
)

type AddressInput struct {
	ReceiverName string
	Phone        string
	Province     string
	City         string
	District     string
	Detail       string
	IsDefault    bool
}

type AddressService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error)
	Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*domain.Address, error)
}

type addressService struct {
	addressRepo repository.AddressRepository
	tx          database.TxRunner
}

func NewAddressService(addressRepo repository.AddressRepository, tx database.TxRunner) AddressService {
	return &addressService{addressRepo: addressRepo, tx: tx}
}

func (s *addressService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	addresses, err := s.addressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, internal(err, "failed to list addresses")
	}
	return addresses, nil
}

// Create stores a new address. The user's first address becomes the default.
func (s *addressService) Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*domain.Address, error) {
	address := &domain.Address{
		ID:           uuid.New(),
		UserID:       userID,
		ReceiverName: input.ReceiverName,
		Phone:        input.Phone,
		Province:     input.Province,
		City:         input.City,
		District:     input.District,
		Detail:       input.Detail,
		IsDefault:    input.IsDefault,
		CreatedAt:    time.Now(),
	}

	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		repo := s.addressRepo.WithTx(tx)
		if !address.IsDefault {
			existing, err := repo.ListByUser(ctx, userID)
			if err != nil {
				return err
			}
			address.IsDefault = len(existing) == 0
		}
		return repo.Create(ctx, address)
	})
	if err != nil {
		return nil, internal(err, "failed to create address")
	}
	return address, nil
}
