package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"loan-engine/internal/event"
	"loan-engine/internal/pkg/apperrors"
)

const customerNotFound = "Customer not found by repository"

type CustomerService interface {
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error)
	GetCustomer(ctx context.Context, customerID int64) (*Customer, error)
	ListCustomers(ctx context.Context, activeOnly bool) ([]*Customer, error)
	UpdateCustomerAddress(ctx context.Context, customerID int64, newAddress string) error
	DeactivateCustomer(ctx context.Context, customerID int64) error
	ReactivateCustomer(ctx context.Context, customerID int64) error
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo   CustomerRepository
	pub    event.EventPublisher
	logger *slog.Logger
}

func NewCustomerService(repo CustomerRepository, pub event.EventPublisher, logger *slog.Logger) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		logger.Warn("No event publisher provided to NewCustomerService, events will be dropped")
		pub = event.NoopPublisher{}
	}

	return &customerService{
		repo:   repo,
		pub:    pub,
		logger: logger.With(slog.String("component", "customerService")),
	}
}

func NewCustomerEventPayload(cust *Customer) event.CustomerEventPayload {
	if cust == nil {
		return event.CustomerEventPayload{}
	}
	return event.CustomerEventPayload{
		CustomerID: cust.ID,
		Name:       cust.Name,
		Email:      cust.Email,
		Phone:      cust.Phone,
		Address:    cust.Address,
		Active:     cust.Active,
		CreatedAt:  cust.CreatedAt,
		UpdatedAt:  cust.UpdatedAt,
	}
}

func (s *customerService) publishUpdated(ctx context.Context, customer *Customer) {
	log := s.logger.With(slog.Int64("customerID", customer.ID))
	evt := event.CustomerUpdatedEvent{
		Timestamp: time.Now(),
		Payload:   NewCustomerEventPayload(customer),
	}
	if err := s.pub.PublishCustomerUpdated(ctx, evt); err != nil {
		log.ErrorContext(ctx, "Failed to publish customer update event", slog.Any("error", err))
		return
	}
	log.InfoContext(ctx, "Successfully published customer update event")
}

func (s *customerService) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to create new customer")

	req = req.normalize()
	if err := req.Validate(); err != nil {
		s.logger.WarnContext(ctx, "Customer validation failed", slog.Any("error", err))
		return nil, err
	}

	customer := NewCustomer(req)
	if err := s.repo.Save(ctx, customer); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save new customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}

	log := s.logger.With(slog.Int64("customerID", customer.ID))
	createdEvent := event.CustomerCreatedEvent{
		Timestamp: time.Now(),
		Payload:   NewCustomerEventPayload(customer),
	}
	if err := s.pub.PublishCustomerCreated(ctx, createdEvent); err != nil {
		log.ErrorContext(ctx, "Customer created, but FAILED to publish creation event", slog.Any("error", err))
	}

	log.InfoContext(ctx, "Successfully created new customer")
	return customer, nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	log := s.logger.With(slog.Int64("customerID", customerID))

	customer, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WarnContext(ctx, customerNotFound)
			return nil, ErrNotFound
		}
		log.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}

	return customer, nil
}

func (s *customerService) ListCustomers(ctx context.Context, activeOnly bool) ([]*Customer, error) {
	customers, err := s.repo.FindAll(ctx, activeOnly)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository error listing customers", slog.Bool("activeOnly", activeOnly), slog.Any("error", err))
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	s.logger.InfoContext(ctx, "Listed customers", slog.Bool("activeOnly", activeOnly), slog.Int("count", len(customers)))
	return customers, nil
}

func (s *customerService) UpdateCustomerAddress(ctx context.Context, customerID int64, newAddress string) error {
	log := s.logger.With(slog.Int64("customerID", customerID))

	newAddress = strings.TrimSpace(newAddress)
	if newAddress == "" {
		log.WarnContext(ctx, "Validation failed: new address is empty")
		return apperrors.NewValidationError("address", "cannot be empty")
	}

	customer, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WarnContext(ctx, customerNotFound)
			return ErrNotFound
		}
		log.ErrorContext(ctx, "Repository error finding customer for update", slog.Any("error", err))
		return fmt.Errorf("cannot find customer %d to update address: %w", customerID, err)
	}

	if customer.Address == newAddress {
		log.InfoContext(ctx, "No address change needed, skipping save")
		return nil
	}
	customer.Address = newAddress
	customer.UpdatedAt = time.Now()

	if err := s.repo.Save(ctx, customer); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.ErrorContext(ctx, "Customer disappeared before save completed")
			return ErrNotFound
		}
		log.ErrorContext(ctx, "Repository failed to save updated address", slog.Any("error", err))
		return fmt.Errorf("failed to save updated address for customer %d: %w", customerID, err)
	}

	s.publishUpdated(ctx, customer)
	log.InfoContext(ctx, "Successfully updated customer address")
	return nil
}

func (s *customerService) DeactivateCustomer(ctx context.Context, customerID int64) error {
	log := s.logger.With(slog.Int64("customerID", customerID))

	hasOpen, err := s.repo.HasOpenLoans(ctx, customerID)
	if err != nil {
		log.ErrorContext(ctx, "Repository error checking open loans", slog.Any("error", err))
		return fmt.Errorf("failed to check open loans for customer %d: %w", customerID, err)
	}
	if hasOpen {
		log.WarnContext(ctx, "Refusing to deactivate customer with open loans")
		return ErrCannotDeactivateOpenLoans
	}

	return s.setActive(ctx, customerID, false)
}

func (s *customerService) ReactivateCustomer(ctx context.Context, customerID int64) error {
	return s.setActive(ctx, customerID, true)
}

func (s *customerService) setActive(ctx context.Context, customerID int64, active bool) error {
	log := s.logger.With(slog.Int64("customerID", customerID), slog.Bool("active", active))

	if err := s.repo.SetActiveStatus(ctx, customerID, active); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WarnContext(ctx, customerNotFound)
			return ErrNotFound
		}
		log.ErrorContext(ctx, "Repository error changing active status", slog.Any("error", err))
		return fmt.Errorf("failed to set active=%t for customer %d: %w", active, customerID, err)
	}

	updated, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		log.ErrorContext(ctx, "Updated status, but FAILED to re-fetch customer for event publishing", slog.Any("error", err))
		return nil
	}
	s.publishUpdated(ctx, updated)

	log.InfoContext(ctx, "Successfully changed customer active status")
	return nil
}
