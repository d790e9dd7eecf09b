package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marmos91/mountkeep/pkg/mount"
)

// ErrShareNotFound is returned when a share ID has no persisted record.
var ErrShareNotFound = errors.New("share not found")

// ShareRecord is the persisted form of a share. Status and actual mount
// point are runtime state and never touch the database.
type ShareRecord struct {
	ID             string `gorm:"primaryKey;size:36"`
	ResourceURI    string `gorm:"uniqueIndex;not null"`
	AuthKind       string `gorm:"not null"`
	CredentialRef  string
	MountPointName string
	Managed        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName overrides the GORM default.
func (ShareRecord) TableName() string {
	return "shares"
}

func toRecord(s *mount.Share) ShareRecord {
	return ShareRecord{
		ID:             s.ID,
		ResourceURI:    s.ResourceURI,
		AuthKind:       string(s.AuthKind),
		CredentialRef:  s.CredentialRef,
		MountPointName: s.MountPointName,
		Managed:        s.Managed,
	}
}

func (r ShareRecord) toShare() *mount.Share {
	return &mount.Share{
		ID:             r.ID,
		ResourceURI:    r.ResourceURI,
		AuthKind:       mount.AuthKind(r.AuthKind),
		CredentialRef:  r.CredentialRef,
		MountPointName: r.MountPointName,
		Status:         mount.StatusUndefined,
		Managed:        r.Managed,
	}
}

// LoadShares returns every persisted share in creation order, all in the
// undefined state.
func (s *GORMStore) LoadShares(ctx context.Context) ([]*mount.Share, error) {
	var records []ShareRecord
	if err := s.db.WithContext(ctx).Order("created_at").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load shares: %w", err)
	}

	shares := make([]*mount.Share, len(records))
	for i, r := range records {
		shares[i] = r.toShare()
	}
	return shares, nil
}

// SaveShares replaces the persisted share list with the given snapshot.
// Used as the registry's change callback: the registry is the source of
// truth, the database follows it.
func (s *GORMStore) SaveShares(ctx context.Context, shares []*mount.Share) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keep := make([]string, 0, len(shares))
		for _, share := range shares {
			record := toRecord(share)
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"resource_uri", "auth_kind", "credential_ref",
					"mount_point_name", "managed", "updated_at",
				}),
			}).Create(&record).Error; err != nil {
				return fmt.Errorf("failed to upsert share %s: %w", share.ID, err)
			}
			keep = append(keep, share.ID)
		}

		del := tx.Model(&ShareRecord{})
		if len(keep) > 0 {
			del = del.Where("id NOT IN ?", keep)
		}
		if err := del.Delete(&ShareRecord{}).Error; err != nil {
			return fmt.Errorf("failed to prune removed shares: %w", err)
		}
		return nil
	})
}

// GetShare returns one persisted share by ID.
func (s *GORMStore) GetShare(ctx context.Context, id string) (*mount.Share, error) {
	var record ShareRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, convertNotFoundError(err, ErrShareNotFound)
	}
	return record.toShare(), nil
}

// DeleteShare removes one persisted share by ID.
func (s *GORMStore) DeleteShare(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&ShareRecord{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete share %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrShareNotFound
	}
	return nil
}
