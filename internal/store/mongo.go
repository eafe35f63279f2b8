// Package store implements the document-store adapter for threads and
// notifications on top of MongoDB.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agora/internal/models"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Every store call carries its own timeout so a slow primary cannot stall the
// request path indefinitely.
const opTimeout = 5 * time.Second

// Connect opens a client, verifies connectivity and returns the database handle.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(dbName), nil
}

// Disconnect closes the client, tolerating a nil handle.
func Disconnect(ctx context.Context, client *mongo.Client) error {
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

// wrapErr translates driver failures into the application taxonomy:
// missing documents stay distinguishable from connectivity problems, which
// callers retry once as StorageUnavailable.
func wrapErr(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewStorageUnavailableError(err)
}
