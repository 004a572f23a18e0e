package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserClaims はライブ接続用トークンのクレーム。
// パスのuser_idが本人のものであることを確認するために使用する。
type UserClaims struct {
	jwt.RegisteredClaims
	// UserID はトークンを発行されたユーザーの識別子。
	UserID int64 `json:"user_id"`
}

// tokenIssuer はトークンの発行者名。
const tokenIssuer = "pensift"

// GenerateUserToken はユーザーIDからHS256署名付きトークンを生成する。
func GenerateUserToken(secret string, userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		UserID: userID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseUserToken はトークンを検証し、含まれるユーザーIDを返す。
func ParseUserToken(secret, tokenString string) (int64, error) {
	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("想定外の署名方式: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	if !token.Valid {
		return 0, fmt.Errorf("トークンが無効です")
	}
	return claims.UserID, nil
}

// RequireUserToken はパスパラメータのuser_idとトークンのuser_idが一致することを要求するGinミドルウェアを返す。
// secretが空の場合は検証を行わない。
// ブラウザのWebSocket APIはヘッダーを付与できないため、tokenクエリパラメータも受け付ける。
func RequireUserToken(secret, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		tokenString := c.Query("token")
		if tokenString == "" {
			tokenString, _ = strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Token required"})
			return
		}

		userID, err := ParseUserToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token"})
			return
		}

		if fmt.Sprint(userID) != c.Param(param) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Token does not match user_id"})
			return
		}

		c.Next()
	}
}

// serviceAudience はサービス間トークンのaud。ユーザートークンとの取り違えを防ぐ。
const serviceAudience = "pensift-internal"

// GenerateServiceToken はサービス間呼び出し用のHS256署名付きトークンを生成する。
// serviceには呼び出し元のサービス名を指定する。
func GenerateServiceToken(secret, service string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   service,
		Audience:  jwt.ClaimStrings{serviceAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    tokenIssuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseServiceToken はサービス間トークンを検証し、呼び出し元のサービス名を返す。
func ParseServiceToken(secret, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("想定外の署名方式: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithAudience(serviceAudience), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return "", fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("トークンが無効です")
	}
	return claims.Subject, nil
}

// RequireServiceToken はAuthorizationヘッダーに有効なサービス間トークンを要求するGinミドルウェアを返す。
// secretが空の場合は検証を行わない。
func RequireServiceToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		tokenString, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Token required"})
			return
		}

		service, err := ParseServiceToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token"})
			return
		}

		c.Set("service", service)
		c.Next()
	}
}
