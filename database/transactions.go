package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledgerly/backend/common"
	"ledgerly/backend/models"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
)

// TransactionStore persists account transactions in the transactions collection.
type TransactionStore struct {
	client *firestore.Client
	logger *slog.Logger
	now    func() time.Time
}

func (s *TransactionStore) col() *firestore.CollectionRef {
	return s.client.Collection(transactionsCollection)
}

// List returns the owner's transactions matching filter, newest occurrence first.
func (s *TransactionStore) List(ctx context.Context, ownerID string, filter models.TransactionFilter) ([]models.Transaction, error) {
	q := s.col().Where("ownerId", "==", ownerID)
	if !filter.From.IsZero() {
		q = q.Where("occurredOn", ">=", dateTimestamp(filter.From))
	}
	if !filter.To.IsZero() {
		q = q.Where("occurredOn", "<=", dateTimestamp(filter.To))
	}

	list, err := s.query(ctx, ownerID, q)
	if err != nil {
		return nil, err
	}

	out := make([]models.Transaction, 0, len(list))
	for _, t := range list {
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListByMonth returns the owner's transactions dated in year/month.
func (s *TransactionStore) ListByMonth(ctx context.Context, ownerID string, year int, month time.Month) ([]models.Transaction, error) {
	first := models.NewDate(year, month, 1)
	last := models.DateOf(first.AddDate(0, 1, -1))
	return s.List(ctx, ownerID, models.TransactionFilter{From: first, To: last})
}

// query runs q ordered by occurredOn and falls back to the owner-only query when the
// composite index is missing.
func (s *TransactionStore) query(ctx context.Context, ownerID string, q firestore.Query) ([]models.Transaction, error) {
	return listOrdered(ctx, s.logger, ownerID, func(ctx context.Context, ordered bool) ([]models.Transaction, error) {
		if ordered {
			return decodeTransactions(q.OrderBy("occurredOn", firestore.Desc).Documents(ctx))
		}
		return decodeTransactions(s.col().Where("ownerId", "==", ownerID).Documents(ctx))
	})
}

// listOrdered asks fetch for the store-ordered result first. Without the composite
// index the store answers FailedPrecondition; the unordered result is then sorted here.
func listOrdered(ctx context.Context, logger *slog.Logger, ownerID string, fetch func(ctx context.Context, ordered bool) ([]models.Transaction, error)) ([]models.Transaction, error) {
	list, err := fetch(ctx, true)
	if isMissingIndex(err) {
		logger.Warn("Missing Firestore index for transactions, sorting in memory",
			"owner_id", ownerID,
			"error", err)
		list, err = fetch(ctx, false)
	}
	if err != nil {
		return nil, classify(err, "list transactions")
	}
	sortTransactionsDesc(list)
	return list, nil
}

func decodeTransactions(it *firestore.DocumentIterator) ([]models.Transaction, error) {
	docs, err := collect(it)
	if err != nil {
		return nil, err
	}
	list := make([]models.Transaction, 0, len(docs))
	for _, doc := range docs {
		t, err := decodeTransaction(doc.Ref.ID, doc.Data())
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, nil
}

// Get returns one transaction of the owner.
func (s *TransactionStore) Get(ctx context.Context, ownerID, id string) (models.Transaction, error) {
	doc, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		return models.Transaction{}, classify(err, "transaction "+id)
	}
	t, err := decodeTransaction(doc.Ref.ID, doc.Data())
	if err != nil {
		return models.Transaction{}, err
	}
	if t.OwnerID != ownerID {
		return models.Transaction{}, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return t, nil
}

// Create stores a new transaction with a store-assigned id.
func (s *TransactionStore) Create(ctx context.Context, ownerID string, in models.TransactionInput) (models.Transaction, error) {
	ref := s.col().NewDoc()
	created := s.now().UTC()
	if _, err := ref.Create(ctx, transactionData(ownerID, in, created)); err != nil {
		return models.Transaction{}, classify(err, "create transaction")
	}

	t := models.Transaction{ID: ref.ID, OwnerID: ownerID, CreatedAt: created}
	in.Apply(&t)
	return t, nil
}

// Update replaces the editable fields of a transaction.
func (s *TransactionStore) Update(ctx context.Context, ownerID, id string, in models.TransactionInput) (models.Transaction, error) {
	existing, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return models.Transaction{}, err
	}

	_, err = s.col().Doc(id).Update(ctx, []firestore.Update{
		{Path: "kind", Value: string(in.Kind)},
		{Path: "category", Value: string(in.Category)},
		{Path: "customLabel", Value: in.CustomLabel},
		{Path: "amount", Value: in.Amount},
		{Path: "occurredOn", Value: dateTimestamp(in.OccurredOn)},
	})
	if err != nil {
		return models.Transaction{}, classify(err, "update transaction "+id)
	}

	in.Apply(&existing)
	return existing, nil
}

// Delete removes a transaction of the owner.
func (s *TransactionStore) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if _, err := s.col().Doc(id).Delete(ctx); err != nil {
		return classify(err, "delete transaction "+id)
	}
	return nil
}

// Count returns how many transactions the owner has.
func (s *TransactionStore) Count(ctx context.Context, ownerID string) (int, error) {
	q := s.col().Where("ownerId", "==", ownerID)
	result, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, classify(err, "count transactions")
	}
	return countValue(result, "all")
}

// countValue reads the integer stored under alias in an aggregation result.
func countValue(result firestore.AggregationResult, alias string) (int, error) {
	value, ok := result[alias].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count result %T", result[alias])
	}
	return int(value.GetIntegerValue()), nil
}
