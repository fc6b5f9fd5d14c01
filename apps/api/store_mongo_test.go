package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

var mongoTestNow = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

func newMockMongoStore(mt *mtest.T) *mongoStore {
	return &mongoStore{
		client: mt.Client,
		users:  mt.Coll,
		forms:  mt.Coll,
		now:    func() time.Time { return mongoTestNow },
	}
}

func duplicateKeyResponse() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error collection: ncrp-portal.users index: email_unique",
	})
}

func TestMongoStoreInsertAccount(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("assigns id and timestamp", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		account := &UserAccount{Email: "a@example.com", PasswordHash: "h"}
		require.NoError(mt, store.InsertAccount(context.Background(), account))
		assert.Len(mt, account.ID, 24)
		assert.Equal(mt, mongoTestNow, account.CreatedAt)
	})

	mt.Run("duplicate key maps to ErrDuplicateEmail", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(duplicateKeyResponse())

		err := store.InsertAccount(context.Background(), &UserAccount{Email: "a@example.com", PasswordHash: "h"})
		assert.ErrorIs(mt, err, ErrDuplicateEmail)
	})

	mt.Run("other write errors pass through", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 121, Message: "Document failed validation"}))

		err := store.InsertAccount(context.Background(), &UserAccount{Email: "a@example.com", PasswordHash: "h"})
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, ErrDuplicateEmail)
	})
}

func TestMongoStoreFindAccountByEmail(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("no documents is not an error", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ncrp-portal.users", mtest.FirstBatch))

		account, err := store.FindAccountByEmail(context.Background(), "missing@example.com")
		require.NoError(mt, err)
		assert.Nil(mt, account)
	})

	mt.Run("decodes legacy and hashed fields", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ncrp-portal.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "email", Value: "old@example.com"},
			{Key: "password", Value: "plain"},
		}))

		account, err := store.FindAccountByEmail(context.Background(), "old@example.com")
		require.NoError(mt, err)
		require.NotNil(mt, account)
		assert.Equal(mt, id.Hex(), account.ID)
		assert.Equal(mt, "plain", account.LegacyPassword)
		assert.Empty(mt, account.PasswordHash)
	})
}

func TestMongoStoreUpgradeLegacyPassword(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	id := primitive.NewObjectID().Hex()

	mt.Run("success", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		assert.NoError(mt, store.UpgradeLegacyPassword(context.Background(), id, "old@example.com", "hash"))
	})

	mt.Run("normalized email collision maps to ErrDuplicateEmail", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(duplicateKeyResponse())

		err := store.UpgradeLegacyPassword(context.Background(), id, "taken@example.com", "hash")
		assert.ErrorIs(mt, err, ErrDuplicateEmail)
	})

	mt.Run("invalid id is rejected before the call", func(mt *mtest.T) {
		store := newMockMongoStore(mt)

		err := store.UpgradeLegacyPassword(context.Background(), "not-an-object-id", "a@example.com", "hash")
		assert.ErrorContains(mt, err, "invalid account id")
	})
}
