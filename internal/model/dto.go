package model

import "time"

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken           string     `json:"accessToken"`
	RefreshToken          string     `json:"refreshToken"`
	AccessTokenExpiresAt  time.Time  `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time  `json:"refreshTokenExpiresAt"`
	User                  PublicUser `json:"user"`
}

type RefreshResponse struct {
	AccessToken          string    `json:"accessToken"`
	AccessTokenExpiresAt time.Time `json:"accessTokenExpiresAt"`
}

type RegisterClientRequest struct {
	ClientType        string `json:"clientType" binding:"required"`
	ClientDescription string `json:"clientDescription"`
}

type RegisterClientResponse struct {
	ClientUUID string `json:"clientUuid"`
	ClientType string `json:"clientType"`
	IsActive   bool   `json:"isActive"`
	Message    string `json:"message"`
}
