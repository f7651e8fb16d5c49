package datastore

import (
	"context"

	"gorm.io/gorm"

	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
)

// ActiveVoiceProfiles returns every active voice profile.
func (s *Store) ActiveVoiceProfiles(ctx context.Context) ([]entities.VoiceProfile, error) {
	var profiles []entities.VoiceProfile
	err := s.Do(ctx, "active_voice_profiles", func(db *gorm.DB) error {
		return db.Where("is_active = ?", true).Order("created_at ASC").Find(&profiles).Error
	})
	return profiles, err
}

// CreateVoiceProfile stores a reference embedding for a user.
func (s *Store) CreateVoiceProfile(ctx context.Context, p *entities.VoiceProfile) (string, error) {
	p.IsActive = true
	err := s.Do(ctx, "create_voice_profile", func(db *gorm.DB) error {
		return db.Create(p).Error
	})
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// SaveSpeakerVerification appends one verification attempt.
func (s *Store) SaveSpeakerVerification(ctx context.Context, v *entities.SpeakerVerification) (string, error) {
	err := s.Do(ctx, "save_speaker_verification", func(db *gorm.DB) error {
		v.ID = ""
		return db.Create(v).Error
	})
	if err != nil {
		return "", err
	}
	return v.ID, nil
}
