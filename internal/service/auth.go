package service

import (
	"errors"
	"fmt"
	"time"

	"cargodesk-backend/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// AuthService verifies access tokens minted by the identity provider. Claims:
// sub (user id), name and role.
type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret)}
}

func (s *AuthService) ValidateAccessToken(tokenString string) (model.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return model.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return model.Identity{}, ErrInvalidToken
	}

	userID, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	role, _ := claims["role"].(string)
	if userID == "" {
		return model.Identity{}, ErrInvalidToken
	}

	id := model.Identity{UserID: userID, Name: name, Role: model.Role(role)}
	switch id.Role {
	case model.RoleStaff, model.RoleAdmin:
	case "", model.RoleCustomer:
		id.Role = model.RoleCustomer
	default:
		// "system" and unknown roles are never accepted from a token.
		return model.Identity{}, ErrInvalidToken
	}
	return id, nil
}

// IssueAccessToken signs a token for id. Used by supportctl and tests; in
// production tokens come from the identity provider.
func (s *AuthService) IssueAccessToken(id model.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  id.UserID,
		"name": id.Name,
		"role": string(id.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}
