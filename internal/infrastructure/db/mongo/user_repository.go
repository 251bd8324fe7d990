package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
)

const collectionUsers = "users"

// UserRepository implements ports.UserRepository using MongoDB.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

type mongoUser struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	Name         string             `bson:"name"`
	Phone        string             `bson:"phone,omitempty"`
	PasswordHash string             `bson:"password_hash"`
	Role         string             `bson:"role"`

	RegistrationApprovalStatus string              `bson:"registration_approval_status,omitempty"`
	PivaFormSubmitted          bool                `bson:"piva_form_submitted"`
	PivaApprovalStatus         string              `bson:"piva_approval_status,omitempty"`
	PivaRequest                *domain.PivaRequest `bson:"piva_request,omitempty"`

	SubscriptionStatus           string       `bson:"subscription_status,omitempty"`
	SelectedPlan                 *domain.Plan `bson:"selected_plan,omitempty"`
	SubscriptionCurrentPeriodEnd time.Time    `bson:"subscription_current_period_end,omitempty"`
	PaymentCustomerID            string       `bson:"payment_customer_id,omitempty"`
	PaymentSubscriptionID        string       `bson:"payment_subscription_id,omitempty"`

	TwoFactorEnabled bool   `bson:"two_factor_enabled"`
	TwoFactorSecret  string `bson:"two_factor_secret,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toDoc(u *domain.User) mongoUser {
	return mongoUser{
		Email:                        u.Email,
		Name:                         u.Name,
		Phone:                        u.Phone,
		PasswordHash:                 u.PasswordHash,
		Role:                         string(u.Role),
		RegistrationApprovalStatus:   string(u.RegistrationApprovalStatus),
		PivaFormSubmitted:            u.PivaFormSubmitted,
		PivaApprovalStatus:           string(u.PivaApprovalStatus),
		PivaRequest:                  u.PivaRequest,
		SubscriptionStatus:           string(u.SubscriptionStatus),
		SelectedPlan:                 u.SelectedPlan,
		SubscriptionCurrentPeriodEnd: u.SubscriptionCurrentPeriodEnd.UTC(),
		PaymentCustomerID:            u.PaymentCustomerID,
		PaymentSubscriptionID:        u.PaymentSubscriptionID,
		TwoFactorEnabled:             u.TwoFactorEnabled,
		TwoFactorSecret:              u.TwoFactorSecret,
		CreatedAt:                    u.CreatedAt.UTC(),
		UpdatedAt:                    u.UpdatedAt.UTC(),
	}
}

func (m mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:                           m.ID.Hex(),
		Email:                        m.Email,
		Name:                         m.Name,
		Phone:                        m.Phone,
		PasswordHash:                 m.PasswordHash,
		Role:                         domain.Role(m.Role),
		RegistrationApprovalStatus:   domain.ApprovalStatus(m.RegistrationApprovalStatus),
		PivaFormSubmitted:            m.PivaFormSubmitted,
		PivaApprovalStatus:           domain.ApprovalStatus(m.PivaApprovalStatus),
		PivaRequest:                  m.PivaRequest,
		SubscriptionStatus:           domain.SubscriptionStatus(m.SubscriptionStatus),
		SelectedPlan:                 m.SelectedPlan,
		SubscriptionCurrentPeriodEnd: m.SubscriptionCurrentPeriodEnd,
		PaymentCustomerID:            m.PaymentCustomerID,
		PaymentSubscriptionID:        m.PaymentSubscriptionID,
		TwoFactorEnabled:             m.TwoFactorEnabled,
		TwoFactorSecret:              m.TwoFactorSecret,
		CreatedAt:                    m.CreatedAt,
		UpdatedAt:                    m.UpdatedAt,
	}
}

// classify maps driver failures onto domain errors. Connectivity problems
// become ErrStoreUnavailable so the API can answer 503.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.ErrUserNotFound
	case mongo.IsDuplicateKeyError(err):
		return domain.ErrUserExists
	case mongo.IsNetworkError(err),
		mongo.IsTimeout(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *UserRepository) findOne(ctx context.Context, op string, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoUser
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, classify(op, err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "find user by email", bson.M{"email": email})
}

// FindByID treats a malformed id like a missing user.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, "find user by id", bson.M{"_id": oid})
}

func (r *UserRepository) FindByPaymentCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	if customerID == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, "find user by customer", bson.M{"payment_customer_id": customerID})
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, toDoc(user))
	if err != nil {
		return nil, classify("insert user", err)
	}

	created := *user
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		created.ID = oid.Hex()
	}
	return &created, nil
}

// Save overwrites every stored field except the id and creation time.
func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toDoc(user)
	update := bson.M{"$set": bson.M{
		"email":                           doc.Email,
		"name":                            doc.Name,
		"phone":                           doc.Phone,
		"password_hash":                   doc.PasswordHash,
		"role":                            doc.Role,
		"registration_approval_status":    doc.RegistrationApprovalStatus,
		"piva_form_submitted":             doc.PivaFormSubmitted,
		"piva_approval_status":            doc.PivaApprovalStatus,
		"piva_request":                    doc.PivaRequest,
		"subscription_status":             doc.SubscriptionStatus,
		"selected_plan":                   doc.SelectedPlan,
		"subscription_current_period_end": doc.SubscriptionCurrentPeriodEnd,
		"payment_customer_id":             doc.PaymentCustomerID,
		"payment_subscription_id":         doc.PaymentSubscriptionID,
		"two_factor_enabled":              doc.TwoFactorEnabled,
		"two_factor_secret":               doc.TwoFactorSecret,
		"updated_at":                      doc.UpdatedAt,
	}}

	res, err := r.col.UpdateByID(ctx, oid, update)
	if err != nil {
		return classify("save user", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// statusFilter matches a stored approval status. Pending also matches
// documents where the field was never written.
func statusFilter(status domain.ApprovalStatus) any {
	if status.Normalize() == domain.ApprovalPending {
		return bson.M{"$in": bson.A{string(domain.ApprovalPending), "", nil}}
	}
	return string(status)
}

func listQuery(filter ports.ListUsersFilter) bson.M {
	q := bson.M{}
	if filter.Role != "" {
		q["role"] = string(filter.Role)
	}
	if filter.RegistrationStatus != "" {
		q["registration_approval_status"] = statusFilter(filter.RegistrationStatus)
	}
	if filter.PivaStatus != "" {
		q["piva_approval_status"] = statusFilter(filter.PivaStatus)
	}
	if filter.PivaFormSubmitted != nil {
		q["piva_form_submitted"] = *filter.PivaFormSubmitted
	}
	return q
}

// List returns matching users, newest first.
func (r *UserRepository) List(ctx context.Context, filter ports.ListUsersFilter) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := r.col.Find(ctx, listQuery(filter), opts)
	if err != nil {
		return nil, classify("list users", err)
	}
	defer cur.Close(ctx)

	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify("list users", err)
	}

	users := make([]*domain.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toDomain())
	}
	return users, nil
}

// EnsureIndexes creates necessary indexes on the users collection.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys:    bson.D{{Key: "payment_customer_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{Keys: bson.D{{Key: "registration_approval_status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "piva_approval_status", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

var _ ports.UserRepository = (*UserRepository)(nil)
