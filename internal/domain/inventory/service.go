package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "inventory").Logger(),
	}
}

// ConsumeForAppointment decrements stock for each material line of an
// appointment entering the realized state. Every line gets its own outbound
// movement; duplicate products decrement once per line. A line that cannot
// be settled (unknown product) is logged and skipped so one bad line does
// not strand the rest.
func (s *Service) ConsumeForAppointment(ctx context.Context, appointmentID uuid.UUID, lines []Line, actorID uuid.UUID) error {
	for _, line := range lines {
		if !line.Valid() {
			s.logger.Warn().
				Str("appointment_id", appointmentID.String()).
				Str("product_id", line.ProductID.String()).
				Int("quantity", line.Quantity).
				Msg("skipping invalid material line")
			continue
		}

		p, err := s.repo.AdjustQuantity(ctx, line.ProductID, -line.Quantity)
		if err != nil {
			if err == ErrProductNotFound {
				s.logger.Warn().
					Str("appointment_id", appointmentID.String()).
					Str("product_id", line.ProductID.String()).
					Msg("material line references unknown product, skipped")
				continue
			}
			return fmt.Errorf("consume product %s: %w", line.ProductID, err)
		}

		if err := s.repo.CreateMovement(ctx, &StockMovement{
			ProductID: line.ProductID,
			Direction: DirectionOut,
			Quantity:  line.Quantity,
			Reason:    fmt.Sprintf("consumed by appointment %s", appointmentID),
			ActorID:   actorRef(actorID),
		}); err != nil {
			return fmt.Errorf("log consumption of product %s: %w", line.ProductID, err)
		}

		if p.Quantity <= p.MinQuantity {
			s.raiseReorderAlert(ctx, p)
		}
	}
	return nil
}

// RestoreForAppointment puts the materials of an appointment back into stock
// when it leaves the realized state or is deleted. Alerts raised by the
// original consumption are left alone.
func (s *Service) RestoreForAppointment(ctx context.Context, appointmentID uuid.UUID, lines []Line, actorID uuid.UUID) error {
	for _, line := range lines {
		if !line.Valid() {
			continue
		}

		if _, err := s.repo.AdjustQuantity(ctx, line.ProductID, line.Quantity); err != nil {
			if err == ErrProductNotFound {
				s.logger.Warn().
					Str("appointment_id", appointmentID.String()).
					Str("product_id", line.ProductID.String()).
					Msg("cannot restore unknown product, skipped")
				continue
			}
			return fmt.Errorf("restore product %s: %w", line.ProductID, err)
		}

		if err := s.repo.CreateMovement(ctx, &StockMovement{
			ProductID: line.ProductID,
			Direction: DirectionIn,
			Quantity:  line.Quantity,
			Reason:    fmt.Sprintf("restored by reversal of appointment %s", appointmentID),
			ActorID:   actorRef(actorID),
		}); err != nil {
			return fmt.Errorf("log restoration of product %s: %w", line.ProductID, err)
		}
	}
	return nil
}

// raiseReorderAlert creates a low-stock alert unless an unread one already
// exists for the product. Alert failures never fail the settlement.
func (s *Service) raiseReorderAlert(ctx context.Context, p *Product) {
	exists, err := s.repo.HasUnreadAlert(ctx, p.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", p.ID.String()).Msg("alert dedup check failed")
		return
	}
	if exists {
		return
	}
	err = s.repo.CreateAlert(ctx, &StockAlert{
		ProductID: p.ID,
		Kind:      AlertKindReorder,
		Message:   fmt.Sprintf("%s está com estoque baixo: %d %s (mínimo %d)", p.Name, p.Quantity, p.Unit, p.MinQuantity),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", p.ID.String()).Msg("could not create reorder alert")
	}
}

// -- Products --

func (s *Service) CreateProduct(ctx context.Context, p *Product) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Unit == "" {
		p.Unit = "un"
	}
	return s.repo.CreateProduct(ctx, p)
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) UpdateProduct(ctx context.Context, p *Product) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.repo.UpdateProduct(ctx, p)
}

func (s *Service) ListProducts(ctx context.Context, limit, offset int) ([]*Product, int, error) {
	return s.repo.ListProducts(ctx, limit, offset)
}

// RecordMovement applies a manual stock correction: an inbound purchase or
// an outbound loss outside any appointment. It adjusts the quantity, logs
// the movement, and runs the same low-stock alerting as a settlement.
func (s *Service) RecordMovement(ctx context.Context, m *StockMovement) error {
	if m.Direction != DirectionIn && m.Direction != DirectionOut {
		return fmt.Errorf("direction must be %q or %q", DirectionIn, DirectionOut)
	}
	if m.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if m.Reason == "" {
		return fmt.Errorf("reason is required")
	}

	delta := m.Quantity
	if m.Direction == DirectionOut {
		delta = -m.Quantity
	}

	p, err := s.repo.AdjustQuantity(ctx, m.ProductID, delta)
	if err != nil {
		return err
	}
	if err := s.repo.CreateMovement(ctx, m); err != nil {
		return err
	}
	if m.Direction == DirectionOut && p.Quantity <= p.MinQuantity {
		s.raiseReorderAlert(ctx, p)
	}
	return nil
}

func (s *Service) ListMovements(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*StockMovement, int, error) {
	return s.repo.ListMovements(ctx, productID, limit, offset)
}

func (s *Service) ListAlerts(ctx context.Context, unreadOnly bool, limit, offset int) ([]*StockAlert, int, error) {
	return s.repo.ListAlerts(ctx, unreadOnly, limit, offset)
}

func (s *Service) MarkAlertRead(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkAlertRead(ctx, id)
}

func actorRef(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
