package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const (
	defaultMongoDatabase    = "ncrp-portal"
	mongoUsersCollection    = "users"
	mongoFormsCollection    = "forms"
	mongoEmailIndexName     = "email_unique"
	mongoServerSelectWindow = 10 * time.Second
)

// Collection names and the plaintext "password" field match documents
// written by the previous Node backend.
type accountDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Email          string             `bson:"email"`
	PasswordHash   string             `bson:"passwordHash,omitempty"`
	LegacyPassword string             `bson:"password,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt,omitempty"`
}

type reportDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ReferenceID string             `bson:"referenceId"`
	Name        string             `bson:"name"`
	Email       string             `bson:"email"`
	Category    string             `bson:"category"`
	Date        string             `bson:"date"`
	Time        string             `bson:"time"`
	Location    string             `bson:"location"`
	Reason      string             `bson:"reason,omitempty"`
	Description string             `bson:"description"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

type mongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
	forms  *mongo.Collection
	now    func() time.Time
}

func newMongoStore(ctx context.Context, uri string) (*mongoStore, error) {
	dbName, err := mongoDatabaseName(uri)
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(mongoServerSelectWindow))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(dbName)
	return &mongoStore{
		client: client,
		users:  db.Collection(mongoUsersCollection),
		forms:  db.Collection(mongoFormsCollection),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func mongoDatabaseName(uri string) (string, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", fmt.Errorf("invalid MONGO_URI: %w", err)
	}
	if cs.Database == "" {
		return defaultMongoDatabase, nil
	}
	return cs.Database, nil
}

func (s *mongoStore) EnsureSchema(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(mongoEmailIndexName),
	})
	if err != nil {
		return fmt.Errorf("create %s index (duplicate emails must be resolved first): %w", mongoEmailIndexName, err)
	}
	return nil
}

func (s *mongoStore) FindAccountByEmail(ctx context.Context, email string) (*UserAccount, error) {
	var doc accountDocument
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	account := doc.toAccount()
	return &account, nil
}

func (s *mongoStore) InsertAccount(ctx context.Context, account *UserAccount) error {
	doc := accountDocument{
		Email:        account.Email,
		PasswordHash: account.PasswordHash,
		CreatedAt:    s.now(),
	}
	result, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	account.ID = insertedIDHex(result.InsertedID)
	account.CreatedAt = doc.CreatedAt
	return nil
}

func (s *mongoStore) InsertReport(ctx context.Context, report *IncidentReport) error {
	now := s.now()
	doc := reportDocument{
		ReferenceID: report.ReferenceID,
		Name:        report.Name,
		Email:       report.Email,
		Category:    report.Category,
		Date:        report.Date,
		Time:        report.Time,
		Location:    report.Location,
		Reason:      report.Reason,
		Description: report.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	result, err := s.forms.InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	report.ID = insertedIDHex(result.InsertedID)
	report.CreatedAt = now
	report.UpdatedAt = now
	return nil
}

func (s *mongoStore) ListLegacyAccounts(ctx context.Context) ([]UserAccount, error) {
	cursor, err := s.users.Find(ctx, bson.M{
		"password":     bson.M{"$exists": true, "$ne": ""},
		"passwordHash": bson.M{"$exists": false},
	})
	if err != nil {
		return nil, err
	}
	var docs []accountDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	accounts := make([]UserAccount, 0, len(docs))
	for _, doc := range docs {
		accounts = append(accounts, doc.toAccount())
	}
	return accounts, nil
}

func (s *mongoStore) UpgradeLegacyPassword(ctx context.Context, id, email, passwordHash string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid account id %q: %w", id, err)
	}
	_, err = s.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set":   bson.M{"email": email, "passwordHash": passwordHash},
		"$unset": bson.M{"password": ""},
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (s *mongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (d accountDocument) toAccount() UserAccount {
	return UserAccount{
		ID:             d.ID.Hex(),
		Email:          d.Email,
		PasswordHash:   d.PasswordHash,
		LegacyPassword: d.LegacyPassword,
		CreatedAt:      d.CreatedAt,
	}
}

func insertedIDHex(id any) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}
