package users

import "time"

const (
	StatusDisabled = 0
	StatusEnabled  = 1
)

type User struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Username  string    `json:"username" gorm:"uniqueIndex;size:100;not null"`
	Password  string    `json:"-" gorm:"size:255;not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Nickname  string    `json:"nickname" gorm:"size:100"`
	Avatar    string    `json:"avatar" gorm:"size:500"`
	Role      string    `json:"role" gorm:"size:32;not null"`
	Status    int       `json:"status" gorm:"not null"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) Enabled() bool {
	return u != nil && u.Status == StatusEnabled
}
