package receipts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/entity"
	"github.com/joseph-ayodele/receipt-parser/internal/extract"
	"github.com/joseph-ayodele/receipt-parser/internal/receipt"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
)

// ManualValidator checks hand-entered receipts.
type ManualValidator interface {
	ValidateManual(in receipt.ManualEntry) (receipt.Record, error)
}

// Service handles stored receipt business logic.
type Service struct {
	receipts  repository.ReceiptRepository
	owners    repository.OwnerRepository
	validator ManualValidator
	logger    *slog.Logger
}

// NewService creates a new receipt service.
func NewService(receipts repository.ReceiptRepository, owners repository.OwnerRepository, validator ManualValidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{receipts: receipts, owners: owners, validator: validator, logger: logger}
}

// AddReceiptRequest is a receipt typed in by hand for an owner.
type AddReceiptRequest struct {
	OwnerID string
	Entry   receipt.ManualEntry
}

// AddReceipt validates a hand-entered receipt and stores it.
func (s *Service) AddReceipt(ctx context.Context, req AddReceiptRequest) (*entity.Receipt, error) {
	owner, err := s.owner(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	rec, err := s.validator.ValidateManual(req.Entry)
	if err != nil {
		var ve common.ValidationErrors
		if errors.As(err, &ve) {
			s.logger.Info("manual receipt rejected", "owner_id", owner.ID, "fields", ve.Fields())
			return nil, status.Error(codes.InvalidArgument, ve.Error())
		}
		s.logger.Error("manual receipt validation failed", "owner_id", owner.ID, "error", err)
		return nil, common.ToStatus(err)
	}

	saved, err := s.receipts.Save(ctx, repository.SaveReceiptRequest{OwnerID: owner.ID, Record: rec})
	if err != nil {
		s.logger.Error("failed to save manual receipt", "owner_id", owner.ID, "error", err)
		return nil, status.Errorf(codes.Internal, "save receipt: %v", err)
	}
	s.logger.Info("manual receipt stored", "owner_id", owner.ID, "receipt_id", saved.ID)
	return saved, nil
}

// ListReceiptsRequest represents receipt listing parameters. Dates are YYYY-MM-DD or empty.
type ListReceiptsRequest struct {
	OwnerID  string
	FromDate string
	ToDate   string
}

// ListReceipts returns an owner's receipts inside the optional date window.
func (s *Service) ListReceipts(ctx context.Context, req ListReceiptsRequest) ([]*entity.Receipt, error) {
	owner, err := s.owner(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	check := common.NewValidator()
	from := s.day(check, "from_date", req.FromDate)
	to := s.day(check, "to_date", req.ToDate)
	if err := common.ValidateAndReturnError(check); err != nil {
		return nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, common.InvalidArgumentError("to_date must not precede from_date")
	}

	recs, err := s.receipts.ListReceipts(ctx, owner.ID, from, to)
	if err != nil {
		s.logger.Error("failed to list receipts", "owner_id", owner.ID, "error", err)
		return nil, status.Errorf(codes.Internal, "list receipts: %v", err)
	}
	s.logger.Info("receipts listed successfully", "owner_id", owner.ID, "count", len(recs))
	return recs, nil
}

// SearchByVendor finds an owner's receipts whose vendor loosely matches query.
func (s *Service) SearchByVendor(ctx context.Context, ownerID, query string) ([]*entity.Receipt, error) {
	owner, err := s.owner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, common.InvalidArgumentError("query is required")
	}
	recs, err := s.receipts.SearchByVendor(ctx, owner.ID, query)
	if err != nil {
		s.logger.Error("vendor search failed", "owner_id", owner.ID, "query", query, "error", err)
		return nil, common.ToStatus(err)
	}
	return recs, nil
}

func (s *Service) owner(ctx context.Context, raw string) (*entity.Owner, error) {
	raw = strings.TrimSpace(raw)
	check := common.NewValidator().Field("owner_id", raw, common.Required, common.UUID)
	if err := common.ValidateAndReturnError(check); err != nil {
		return nil, err
	}
	owner, err := s.owners.GetByID(ctx, uuid.MustParse(raw))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFoundError("owner " + raw + " not found")
		}
		s.logger.Error("failed to load owner", "owner_id", raw, "error", err)
		return nil, common.ToStatus(err)
	}
	return owner, nil
}

func (s *Service) day(check *common.Validator, field, raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, ok := extract.ParseDate(raw)
	if !ok {
		check.Add(field, common.MalformedDate, raw, "is not a recognizable date")
		return nil
	}
	return &t
}
