package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"ledgerly/backend/common"
	"ledgerly/backend/models"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Collection names.
const (
	transactionsCollection = "transactions"
	goalsCollection        = "goals"
	usersCollection        = "users"
)

// Store groups the Firestore repositories.
type Store struct {
	Client       *firestore.Client
	Transactions *TransactionStore
	Goals        *GoalStore
	Profiles     *ProfileStore
}

// NewFirestore opens the Firestore client of app and builds the repositories.
func NewFirestore(ctx context.Context, app *firebase.App, logger *slog.Logger) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open Firestore: %w", err)
	}
	return NewStore(client, logger), nil
}

// NewStore builds the repositories on an existing client.
func NewStore(client *firestore.Client, logger *slog.Logger) *Store {
	txs := &TransactionStore{client: client, logger: logger, now: time.Now}
	return &Store{
		Client:       client,
		Transactions: txs,
		Goals:        &GoalStore{client: client, logger: logger, now: time.Now},
		Profiles:     &ProfileStore{client: client, logger: logger, now: time.Now},
	}
}

// Close releases the client.
func (s *Store) Close() error {
	return s.Client.Close()
}

// classify maps Firestore status codes onto the common sentinels.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	case codes.FailedPrecondition:
		return fmt.Errorf("%s: %w: %v", what, common.ErrIndexMissing, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func isMissingIndex(err error) bool {
	return status.Code(err) == codes.FailedPrecondition || errors.Is(err, common.ErrIndexMissing)
}

// collect drains a document iterator.
func collect(it *firestore.DocumentIterator) ([]*firestore.DocumentSnapshot, error) {
	defer it.Stop()
	var docs []*firestore.DocumentSnapshot
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}

// deleteWhere queues deletes of every document in collection owned by ownerID.
func deleteWhere(ctx context.Context, client *firestore.Client, bw *firestore.BulkWriter, collection, ownerID string) ([]*firestore.BulkWriterJob, error) {
	docs, err := collect(client.Collection(collection).Where("ownerId", "==", ownerID).Documents(ctx))
	if err != nil {
		return nil, classify(err, "list "+collection)
	}
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			return nil, fmt.Errorf("failed to queue delete of %s: %w", doc.Ref.Path, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func sortTransactionsDesc(list []models.Transaction) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].OccurredOn.Equal(list[j].OccurredOn.Time) {
			return list[i].OccurredOn.After(list[j].OccurredOn)
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
