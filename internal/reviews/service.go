package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/merakimart/backend/pkg/db"
	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/outbox"
	"github.com/merakimart/backend/pkg/outbox/payloads"
	"github.com/merakimart/backend/pkg/pagination"
)

const (
	maxTitleLen = 100
	minBodyLen  = 10
	maxBodyLen  = 1000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CreateReviewInput carries the submit payload.
type CreateReviewInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Rating    int       `json:"rating"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
}

// UpdateReviewInput carries the owner edit payload. Nil means "leave as is".
type UpdateReviewInput struct {
	Rating *int    `json:"rating,omitempty"`
	Title  *string `json:"title,omitempty"`
	Body   *string `json:"body,omitempty"`
}

// Service owns review submission, moderation, and the helpful-vote toggle.
// Every mutation recomputes the product's rating aggregates in the same
// transaction.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateReviewInput) (*models.Review, error)
	Update(ctx context.Context, userID, reviewID uuid.UUID, input UpdateReviewInput) (*models.Review, error)
	Delete(ctx context.Context, userID, reviewID uuid.UUID) error
	SetStatus(ctx context.Context, reviewID uuid.UUID, status enums.ReviewStatus) (*models.Review, error)
	ToggleHelpful(ctx context.Context, userID, reviewID uuid.UUID) (*models.Review, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.Review, string, error)
	ListByStatus(ctx context.Context, status enums.ReviewStatus, params pagination.Params) ([]models.Review, string, error)
}

type service struct {
	repo   ReviewRepository
	tx     txRunner
	events outboxEmitter
}

// NewService builds a review service backed by the provided stack.
func NewService(repo ReviewRepository, tx txRunner, events outboxEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, tx: tx, events: events}, nil
}

func validateContent(rating int, title, body string) error {
	if rating < 1 || rating > 5 {
		return pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "title exceeds 100 characters")
	}
	if n := utf8.RuneCountInString(body); n < minBodyLen || n > maxBodyLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "comment must be between 10 and 1000 characters")
	}
	return nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateReviewInput) (*models.Review, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	title := strings.TrimSpace(input.Title)
	body := strings.TrimSpace(input.Body)
	if err := validateContent(input.Rating, title, body); err != nil {
		return nil, err
	}

	verified, err := s.repo.HasDeliveredPurchase(ctx, userID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase history")
	}

	review := &models.Review{
		ProductID:       input.ProductID,
		UserID:          userID,
		Rating:          input.Rating,
		Title:           title,
		Body:            body,
		Status:          enums.ReviewStatusPending,
		Verified:        verified,
		HelpfulVoterIDs: pq.StringArray{},
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		created, err := txRepo.Create(ctx, review)
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "you have already reviewed this product")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
		}
		if err := txRepo.RecomputeProductAggregates(ctx, input.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute product aggregates")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewSubmitted,
			AggregateType: enums.AggregateReview,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.ReviewSubmittedEvent{
				ReviewID:  created.ID,
				ProductID: created.ProductID,
				UserID:    userID,
				Rating:    created.Rating,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

func (s *service) Update(ctx context.Context, userID, reviewID uuid.UUID, input UpdateReviewInput) (*models.Review, error) {
	review, err := s.ownedReview(ctx, userID, reviewID)
	if err != nil {
		return nil, err
	}

	if input.Rating != nil {
		review.Rating = *input.Rating
	}
	if input.Title != nil {
		review.Title = strings.TrimSpace(*input.Title)
	}
	if input.Body != nil {
		review.Body = strings.TrimSpace(*input.Body)
	}
	if err := validateContent(review.Rating, review.Title, review.Body); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.Update(ctx, review); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update review")
		}
		return txRepo.RecomputeProductAggregates(ctx, review.ProductID)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

func (s *service) Delete(ctx context.Context, userID, reviewID uuid.UUID) error {
	review, err := s.ownedReview(ctx, userID, reviewID)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Delete(ctx, review.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
		}
		return txRepo.RecomputeProductAggregates(ctx, review.ProductID)
	})
}

func (s *service) SetStatus(ctx context.Context, reviewID uuid.UUID, status enums.ReviewStatus) (*models.Review, error) {
	if status != enums.ReviewStatusApproved && status != enums.ReviewStatusRejected {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be approved or rejected")
	}

	review, err := s.load(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.Status == status {
		return review, nil
	}
	review.Status = status

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.Update(ctx, review); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update review status")
		}
		if err := txRepo.RecomputeProductAggregates(ctx, review.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute product aggregates")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewModerated,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Data: payloads.ReviewModeratedEvent{
				ReviewID:  review.ID,
				ProductID: review.ProductID,
				Status:    status,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// ToggleHelpful flips the caller's membership in the helpful-voter set; the
// count is always the set size, so voting twice unmarks.
func (s *service) ToggleHelpful(ctx context.Context, userID, reviewID uuid.UUID) (*models.Review, error) {
	review, err := s.load(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	voter := userID.String()
	voters := make(pq.StringArray, 0, len(review.HelpfulVoterIDs)+1)
	found := false
	for _, id := range review.HelpfulVoterIDs {
		if id == voter {
			found = true
			continue
		}
		voters = append(voters, id)
	}
	if !found {
		voters = append(voters, voter)
	}
	review.HelpfulVoterIDs = voters
	review.HelpfulCount = len(voters)

	if _, err := s.repo.Update(ctx, review); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update helpful votes")
	}
	return review, nil
}

func (s *service) ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.Review, string, error) {
	rows, cursor, err := s.repo.ListByProduct(ctx, productID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	return rows, cursor, nil
}

func (s *service) ListByStatus(ctx context.Context, status enums.ReviewStatus, params pagination.Params) ([]models.Review, string, error) {
	if !status.IsValid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "unknown review status")
	}
	rows, cursor, err := s.repo.ListByStatus(ctx, status, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	return rows, cursor, nil
}

func (s *service) load(ctx context.Context, reviewID uuid.UUID) (*models.Review, error) {
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	return review, nil
}

func (s *service) ownedReview(ctx context.Context, userID, reviewID uuid.UUID) (*models.Review, error) {
	review, err := s.load(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
	}
	return review, nil
}

// AverageRating returns the mean of approved ratings rounded to one decimal
// place, or zero when there are no ratings.
func AverageRating(sum, count int64) float64 {
	if count == 0 {
		return 0
	}
	avg, _ := decimal.NewFromInt(sum).
		Div(decimal.NewFromInt(count)).
		Round(1).
		Float64()
	return avg
}
