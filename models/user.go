package models

import "time"

// User 是身分平台回傳的使用者，role 放在 app_metadata、顯示名稱放在 user_metadata
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// FullName 依序嘗試 user_metadata 的 full_name、name、display_name
func (u *User) FullName() string {
	for _, key := range []string{"full_name", "name", "display_name"} {
		if v, ok := u.UserMetadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Role 讀取 app_metadata.role
func (u *User) Role() string {
	if v, ok := u.AppMetadata["role"].(string); ok {
		return v
	}
	return ""
}

func (u *User) IsAdmin() bool {
	return u.Role() == "admin"
}

// Session 是身分平台發出的登入會話
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}
