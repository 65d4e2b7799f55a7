package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AchievementType string

const (
	AchievementTypeRegular AchievementType = "regular"
	AchievementTypeEvent   AchievementType = "event"
	AchievementTypeSecret  AchievementType = "secret"
)

type AchievementCategory string

const (
	CategoryStudy    AchievementCategory = "study"
	CategoryScience  AchievementCategory = "science"
	CategorySport    AchievementCategory = "sport"
	CategorySocial   AchievementCategory = "social"
	CategoryCreative AchievementCategory = "creative"
)

type AchievementRarity string

const (
	RarityCommon    AchievementRarity = "common"
	RarityRare      AchievementRarity = "rare"
	RarityEpic      AchievementRarity = "epic"
	RarityLegendary AchievementRarity = "legendary"
)

// Achievement is catalog reference data.
type Achievement struct {
	Base
	Name               string              `gorm:"not null" json:"name"`
	Type               AchievementType     `gorm:"type:varchar(16);not null" json:"type"`
	Category           AchievementCategory `gorm:"type:varchar(16);not null" json:"category"`
	Rarity             AchievementRarity   `gorm:"type:varchar(16);not null" json:"rarity"`
	Reward             int64               `gorm:"not null;check:reward >= 0" json:"reward"`
	HiddenIconPath     string              `json:"hidden_icon_path"`
	OpenedIconPath     string              `json:"opened_icon_path"`
	SputnikRequirement string              `json:"sputnik_requirement"`
	StudentRequirement string              `json:"student_requirement"`
	Hint               *string             `json:"hint,omitempty"`
	RoflDescription    *string             `json:"rofl_description,omitempty"`
}

type AwardState string

const (
	AwardActive   AwardState = "active"
	AwardCanceled AwardState = "canceled"
)

// IssuedAchievement is one award of an achievement to a student. Reward is a
// snapshot of the catalog value at issuance time.
type IssuedAchievement struct {
	Base
	AchievementID      uuid.UUID   `gorm:"type:uuid;not null;index" json:"achievement_id"`
	Achievement        Achievement `json:"achievement"`
	IssuerID           uuid.UUID   `gorm:"type:uuid;not null;index" json:"issuer_id"`
	Issuer             User        `gorm:"foreignKey:IssuerID" json:"issuer"`
	StudentID          uuid.UUID   `gorm:"type:uuid;not null;index" json:"student_id"`
	Student            User        `gorm:"foreignKey:StudentID" json:"student"`
	Reward             int64       `gorm:"not null" json:"reward"`
	IsCanceled         bool        `gorm:"not null;default:false;index" json:"is_canceled"`
	CancellationReason *string     `json:"cancellation_reason,omitempty"`
	CancelerID         *uuid.UUID  `gorm:"type:uuid" json:"canceler_id,omitempty"`
	Canceler           *User       `gorm:"foreignKey:CancelerID" json:"canceler,omitempty"`
	CanceledAt         *time.Time  `json:"canceled_at,omitempty"`
}

func (a IssuedAchievement) State() AwardState {
	if a.IsCanceled {
		return AwardCanceled
	}
	return AwardActive
}

// AwardAcknowledgment is the inbox "seen" flag of one award.
type AwardAcknowledgment struct {
	IssuedAchievementID uuid.UUID  `gorm:"type:uuid;primaryKey"`
	StudentID           uuid.UUID  `gorm:"type:uuid;not null;index"`
	Seen                bool       `gorm:"not null;default:false"`
	SeenAt              *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type OperationType string

const (
	OperationIssue  OperationType = "issue"
	OperationCancel OperationType = "cancel"
)

// AchievementOperation is the append-only audit record. Rows are never
// updated or deleted.
type AchievementOperation struct {
	ID                  uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Type                OperationType     `gorm:"type:varchar(16);not null;index" json:"type"`
	ActorID             uuid.UUID         `gorm:"type:uuid;not null;index" json:"actor_id"`
	Actor               User              `gorm:"foreignKey:ActorID" json:"actor"`
	IssuedAchievementID uuid.UUID         `gorm:"type:uuid;not null;index" json:"issued_achievement_id"`
	IssuedAchievement   IssuedAchievement `json:"issued_achievement"`
	CreatedAt           time.Time         `gorm:"index" json:"created_at"`
}

func (o *AchievementOperation) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
