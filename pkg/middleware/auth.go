package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// CookieNameToken は認証トークンを格納するCookie名。
const CookieNameToken = "token"

// AuthClaims は認証トークンのクレーム（ペイロード）を表す。
// ログイン中のユーザーを識別するための情報を保持する。
type AuthClaims struct {
	jwt.RegisteredClaims
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// GenerateToken はメールアドレスから署名付き認証トークンを生成する。
// 有効期限はttlで指定する（本番設定では365日）。
func GenerateToken(secret, email string, ttl time.Duration) (string, error) {
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "friendnest",
		},
		Email: email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// SetTokenCookie は認証トークンをHTTP-only Cookieとしてレスポンスに設定する。
// 本番環境ではSecure属性とSameSite=Noneを有効にし、
// ローカル開発ではSameSite=Strictの非Secure Cookieを使用する。
func SetTokenCookie(c *gin.Context, token string, ttl time.Duration, production bool) {
	if production {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteStrictMode)
	}
	c.SetCookie(CookieNameToken, token, int(ttl.Seconds()), "/", "", production, true)
}

// ClearTokenCookie は認証トークンのCookieを即時失効させる。
func ClearTokenCookie(c *gin.Context, production bool) {
	if production {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteStrictMode)
	}
	c.SetCookie(CookieNameToken, "", -1, "/", "", production, true)
}

// CookieAuth はCookie内の認証トークンを検証するGinミドルウェアを返す。
// Cookieが存在しない場合と、トークンが無効・期限切れ・改ざんされている場合で
// 別々の401レスポンスを返す。検証に成功した場合はコンテキストに "email" を設定する。
func CookieAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(CookieNameToken)
		if err != nil || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "認証トークンがありません",
			})
			return
		}

		claims := &AuthClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			// HMAC以外の署名方式は受け付けない
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("予期しない署名方式: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			log.Printf("トークンの検証に失敗: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set("email", claims.Email)
		c.Next()
	}
}

// GetEmail はGinコンテキストから認証済みユーザーのメールアドレスを取得する。
// CookieAuthミドルウェアが事前に適用されている必要がある。
func GetEmail(c *gin.Context) string {
	email, _ := c.Get("email")
	if e, ok := email.(string); ok {
		return e
	}
	return ""
}
