package reviews

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/outbox"
	"github.com/merakimart/backend/pkg/pagination"
)

type stubReviewRepo struct {
	review     *models.Review
	findErr    error
	createErr  error
	updated    *models.Review
	deleted    bool
	purchased  bool
	recomputes int
}

func (s *stubReviewRepo) WithTx(tx *gorm.DB) ReviewRepository { return s }

func (s *stubReviewRepo) Create(ctx context.Context, review *models.Review) (*models.Review, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	review.ID = uuid.New()
	return review, nil
}

func (s *stubReviewRepo) Update(ctx context.Context, review *models.Review) (*models.Review, error) {
	s.updated = review
	return review, nil
}

func (s *stubReviewRepo) Delete(ctx context.Context, id uuid.UUID) error {
	s.deleted = true
	return nil
}

func (s *stubReviewRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.review, nil
}

func (s *stubReviewRepo) ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.Review, string, error) {
	return nil, "", nil
}

func (s *stubReviewRepo) ListByStatus(ctx context.Context, status enums.ReviewStatus, params pagination.Params) ([]models.Review, string, error) {
	return nil, "", nil
}

func (s *stubReviewRepo) HasDeliveredPurchase(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	return s.purchased, nil
}

func (s *stubReviewRepo) RecomputeProductAggregates(ctx context.Context, productID uuid.UUID) error {
	s.recomputes++
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func newTestService(t *testing.T, repo *stubReviewRepo, emitter *stubEmitter) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, emitter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func validInput() CreateReviewInput {
	return CreateReviewInput{
		ProductID: uuid.New(),
		Rating:    4,
		Title:     "Good ghee",
		Body:      "Rich aroma, arrived well packed.",
	}
}

func TestServiceCreateValidatesContent(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubReviewRepo{}, &stubEmitter{})

	input := validInput()
	input.Rating = 6
	if _, err := svc.Create(context.Background(), uuid.New(), input); err == nil {
		t.Fatal("expected validation error for rating")
	}

	input = validInput()
	input.Body = "too short"
	_, err := svc.Create(context.Background(), uuid.New(), input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}

	input = validInput()
	input.Title = strings.Repeat("x", 101)
	if _, err := svc.Create(context.Background(), uuid.New(), input); err == nil {
		t.Fatal("expected validation error for title")
	}
}

func TestServiceCreateDuplicate(t *testing.T) {
	t.Parallel()

	repo := &stubReviewRepo{createErr: errors.New(`duplicate key value violates unique constraint "idx_review_product_user"`)}
	svc := newTestService(t, repo, &stubEmitter{})

	_, err := svc.Create(context.Background(), uuid.New(), validInput())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestServiceCreateSetsVerifiedAndPending(t *testing.T) {
	t.Parallel()

	repo := &stubReviewRepo{purchased: true}
	emitter := &stubEmitter{}
	svc := newTestService(t, repo, emitter)

	review, err := svc.Create(context.Background(), uuid.New(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !review.Verified {
		t.Fatal("expected verified purchase flag")
	}
	if review.Status != enums.ReviewStatusPending {
		t.Fatalf("expected pending status, got %s", review.Status)
	}
	if repo.recomputes != 1 {
		t.Fatalf("expected aggregate recompute, got %d", repo.recomputes)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventReviewSubmitted {
		t.Fatalf("unexpected events: %+v", emitter.events)
	}
}

func TestServiceSetStatusModerates(t *testing.T) {
	t.Parallel()

	repo := &stubReviewRepo{review: &models.Review{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		UserID:    uuid.New(),
		Rating:    5,
		Status:    enums.ReviewStatusPending,
	}}
	emitter := &stubEmitter{}
	svc := newTestService(t, repo, emitter)

	review, err := svc.SetStatus(context.Background(), repo.review.ID, enums.ReviewStatusApproved)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if review.Status != enums.ReviewStatusApproved {
		t.Fatalf("unexpected status: %s", review.Status)
	}
	if repo.recomputes != 1 {
		t.Fatalf("expected aggregate recompute, got %d", repo.recomputes)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventReviewModerated {
		t.Fatalf("unexpected events: %+v", emitter.events)
	}

	if _, err := svc.SetStatus(context.Background(), repo.review.ID, enums.ReviewStatusPending); err == nil {
		t.Fatal("expected validation error for pending target")
	}
}

func TestServiceDeleteRequiresOwnership(t *testing.T) {
	t.Parallel()

	repo := &stubReviewRepo{review: &models.Review{
		ID:     uuid.New(),
		UserID: uuid.New(),
	}}
	svc := newTestService(t, repo, &stubEmitter{})

	err := svc.Delete(context.Background(), uuid.New(), repo.review.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error code: %v", err)
	}
	if repo.deleted {
		t.Fatal("review should not have been deleted")
	}
}

func TestServiceToggleHelpful(t *testing.T) {
	t.Parallel()

	voter := uuid.New()
	repo := &stubReviewRepo{review: &models.Review{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		HelpfulVoterIDs: pq.StringArray{},
	}}
	svc := newTestService(t, repo, &stubEmitter{})

	review, err := svc.ToggleHelpful(context.Background(), voter, repo.review.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if review.HelpfulCount != 1 {
		t.Fatalf("expected count 1, got %d", review.HelpfulCount)
	}

	review, err = svc.ToggleHelpful(context.Background(), voter, repo.review.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if review.HelpfulCount != 0 {
		t.Fatalf("expected toggle off, got %d", review.HelpfulCount)
	}
}

func TestAverageRating(t *testing.T) {
	t.Parallel()

	if got := AverageRating(9, 2); got != 4.5 {
		t.Fatalf("expected 4.5, got %v", got)
	}
	if got := AverageRating(5, 1); got != 5.0 {
		t.Fatalf("expected 5.0, got %v", got)
	}
	if got := AverageRating(0, 0); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := AverageRating(10, 3); got != 3.3 {
		t.Fatalf("expected 3.3, got %v", got)
	}
}
