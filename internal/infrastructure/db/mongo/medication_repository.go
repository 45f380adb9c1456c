package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pharmastock/stock-system/internal/core/domain"
	"github.com/pharmastock/stock-system/internal/core/ports"
)

type MedicationRepository struct {
	db   *mongo.Database
	coll *mongo.Collection
	now  func() time.Time
}

func NewMedicationRepository(db *mongo.Database) *MedicationRepository {
	return &MedicationRepository{db: db, coll: db.Collection(collectionMedications), now: time.Now}
}

type medicationDoc struct {
	ID           int64     `bson:"_id"`
	Name         string    `bson:"name"`
	Batch        string    `bson:"batch"`
	Expiry       string    `bson:"expiry"`
	Manufacturer string    `bson:"manufacturer"`
	Quantity     int       `bson:"quantity"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d medicationDoc) toDomain() *domain.Medication {
	return domain.RestoreMedication(domain.MedicationRecord{
		ID:           d.ID,
		Name:         d.Name,
		Batch:        d.Batch,
		Expiry:       d.Expiry,
		Manufacturer: d.Manufacturer,
		Quantity:     d.Quantity,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	})
}

// stamp matches the millisecond precision of BSON dates.
func (r *MedicationRepository) stamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

func (r *MedicationRepository) Add(ctx context.Context, m *domain.Medication) (*domain.Medication, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := nextSequence(ctx, r.db, collectionMedications)
	if err != nil {
		return nil, err
	}

	stored := m.Clone()
	if err := stored.AssignID(id); err != nil {
		return nil, err
	}
	stored.Touch(r.stamp())

	doc := medicationDoc{
		ID:           stored.ID(),
		Name:         stored.Name(),
		Batch:        stored.Batch(),
		Expiry:       stored.Expiry(),
		Manufacturer: stored.Manufacturer(),
		Quantity:     stored.Quantity(),
		CreatedAt:    stored.CreatedAt(),
		UpdatedAt:    stored.UpdatedAt(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert medication: %w", err)
	}
	return stored, nil
}

func (r *MedicationRepository) FindByID(ctx context.Context, id int64) (*domain.Medication, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc medicationDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find medication %d: %w", id, err)
	}
	return doc.toDomain(), true, nil
}

func (r *MedicationRepository) FindAll(ctx context.Context) ([]*domain.Medication, error) {
	return r.load(ctx, func(*domain.Medication) bool { return true })
}

func (r *MedicationRepository) FindExpired(ctx context.Context, asOf time.Time) ([]*domain.Medication, error) {
	return r.load(ctx, func(m *domain.Medication) bool { return m.IsExpiredAt(asOf) })
}

func (r *MedicationRepository) FindByName(ctx context.Context, substr string) ([]*domain.Medication, error) {
	return r.load(ctx, func(m *domain.Medication) bool { return domain.ContainsFold(m.Name(), substr) })
}

func (r *MedicationRepository) FindByManufacturer(ctx context.Context, substr string) ([]*domain.Medication, error) {
	return r.load(ctx, func(m *domain.Medication) bool { return domain.ContainsFold(m.Manufacturer(), substr) })
}

func (r *MedicationRepository) Update(ctx context.Context, m *domain.Medication) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": m.ID()}, bson.M{"$set": bson.M{
		"name":         m.Name(),
		"batch":        m.Batch(),
		"expiry":       m.Expiry(),
		"manufacturer": m.Manufacturer(),
		"quantity":     m.Quantity(),
		"updated_at":   r.stamp(),
	}})
	if err != nil {
		return false, fmt.Errorf("update medication %d: %w", m.ID(), err)
	}
	return res.MatchedCount > 0, nil
}

func (r *MedicationRepository) UpdateFields(ctx context.Context, id int64, patch ports.MedicationPatch) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"updated_at": r.stamp()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Batch != nil {
		set["batch"] = *patch.Batch
	}
	if patch.Expiry != nil {
		set["expiry"] = *patch.Expiry
	}
	if patch.Manufacturer != nil {
		set["manufacturer"] = *patch.Manufacturer
	}
	if patch.Quantity != nil {
		set["quantity"] = *patch.Quantity
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("update medication %d: %w", id, err)
	}
	return res.MatchedCount > 0, nil
}

func (r *MedicationRepository) Remove(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete medication %d: %w", id, err)
	}
	return res.DeletedCount > 0, nil
}

func (r *MedicationRepository) Exists(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count medication %d: %w", id, err)
	}
	return n > 0, nil
}

// AdjustQuantity only matches the document while quantity >= -delta, so the
// check and the increment happen in one atomic write.
func (r *MedicationRepository) AdjustQuantity(ctx context.Context, id int64, delta int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "quantity": bson.M{"$gte": -delta}},
		bson.M{
			"$inc": bson.M{"quantity": delta},
			"$set": bson.M{"updated_at": r.stamp()},
		},
	)
	if err != nil {
		return false, fmt.Errorf("adjust quantity of medication %d: %w", id, err)
	}
	return res.MatchedCount > 0, nil
}

func (r *MedicationRepository) load(ctx context.Context, keep func(*domain.Medication) bool) ([]*domain.Medication, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]*domain.Medication, 0)
	for cur.Next(ctx) {
		var doc medicationDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode medication: %w", err)
		}
		if m := doc.toDomain(); keep(m) {
			out = append(out, m)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate medications: %w", err)
	}
	return out, nil
}
