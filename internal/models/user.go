package models

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleSputnik Role = "sputnik"
	RoleCurator Role = "curator"
	RoleAdmin   Role = "admin"
)

// CanIssue reports whether the role may issue and cancel awards.
func (r Role) CanIssue() bool {
	switch r {
	case RoleSputnik, RoleCurator, RoleAdmin:
		return true
	}
	return false
}

func (r Role) IsStaff() bool {
	return r != RoleStudent
}

type Institute struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `json:"name"`
}

type Group struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `json:"name"`
	InstituteID uint      `gorm:"index" json:"institute_id"`
	Institute   Institute `json:"-"`
}

// User is owned by the profile component. The ledger is the only writer of
// Balance.
type User struct {
	Base
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	Avatar      string        `json:"avatar"`
	Role        Role          `gorm:"type:varchar(16);index;not null" json:"role"`
	Balance     int64         `gorm:"not null;default:0;index" json:"balance"`
	IsBanned    bool          `gorm:"not null;default:false" json:"is_banned"`
	GroupID     *uint         `gorm:"index" json:"group_id"`
	Group       *Group        `json:"group,omitempty"`
	InstituteID *uint         `gorm:"index" json:"institute_id"`
	Institute   *Institute    `json:"institute,omitempty"`
	TelegramID  *int64        `json:"-"`
	DiscordID   *string       `gorm:"uniqueIndex" json:"-"`
	Settings    *UserSettings `gorm:"foreignKey:UserID" json:"settings,omitempty"`
}

func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}

// UserSettings defaults are applied by DefaultUserSettings, not by column
// defaults, so that an explicit false survives gorm's zero-value handling.
type UserSettings struct {
	UserID                       uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	IsVisibleInTop               bool      `gorm:"not null" json:"is_visible_in_top"`
	ReceiveTelegramNotifications bool      `gorm:"not null" json:"receive_telegram_notifications"`
	ReceiveDiscordNotifications  bool      `gorm:"not null" json:"receive_discord_notifications"`
}

func DefaultUserSettings(userID uuid.UUID) UserSettings {
	return UserSettings{
		UserID:                       userID,
		IsVisibleInTop:               true,
		ReceiveTelegramNotifications: true,
		ReceiveDiscordNotifications:  true,
	}
}

// Actor is the authenticated caller as supplied by the authorization layer.
type Actor struct {
	ID   uuid.UUID
	Role Role
}
