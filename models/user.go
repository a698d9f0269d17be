package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
	"gorm.io/gorm"
)

// User is a chat-platform identity known to the system. There are no stored
// credentials; sessions map opaque tokens to usernames in Redis.
type User struct {
	ID       int      `gorm:"primary_key" json:"id"`
	Username string   `gorm:"size:100;not null;uniqueIndex" json:"username"`
	ChatId   string   `gorm:"size:64;index" json:"chat_id"`
	Phone    string   `gorm:"size:32" json:"phone"`
	FullName string   `gorm:"size:255" json:"full_name"`
	Role     UserRole `gorm:"size:20;not null;default:'employee'" json:"role"`
	IsActive bool     `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeSave normalizes the phone number to E.164 when one is set.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if strings.TrimSpace(u.Phone) == "" {
		u.Phone = ""
		return nil
	}
	normalized, err := utils.NormalizePhone(u.Phone)
	if err != nil {
		return utils.NewValidationError("invalid-phone", "phone %q: %v", u.Phone, err)
	}
	u.Phone = normalized
	return nil
}

func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, utils.ErrorRecordNotFound
	}

	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func GetUserById(ctx context.Context, id int) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListUsersByUsernames loads whitelist members in one query. Unknown names
// are silently absent from the result.
func ListUsersByUsernames(ctx context.Context, usernames []string) ([]*User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	db := config.GetDB()
	var users []*User
	if err := db.WithContext(ctx).
		Where("username IN ? AND is_active = ?", usernames, true).
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
