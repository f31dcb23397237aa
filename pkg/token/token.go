// Package token 签发与解析访问令牌
// 线上令牌由账号服务签发，这里的签发只给 trackwatch 调试和测试使用
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// IdentityKey 令牌中保存用户 ID 的 claim
const IdentityKey = "uid"

var ErrInvalidToken = errors.New("token: invalid token")

// Issue 使用 HS256 签发访问令牌
func Issue(secret string, userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtv5.MapClaims{
		IdentityKey: strconv.FormatInt(userID, 10),
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}
	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse 校验签名和有效期，返回用户 ID
func Parse(secret, raw string) (int64, error) {
	tok, err := jwtv5.Parse(raw, func(t *jwtv5.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}), jwtv5.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	return UserIDFromClaim(claims[IdentityKey])
}

// UserIDFromClaim uid 既可能是字符串也可能是数字
func UserIDFromClaim(v interface{}) (int64, error) {
	switch uid := v.(type) {
	case string:
		id, err := strconv.ParseInt(uid, 10, 64)
		if err != nil || id <= 0 {
			return 0, ErrInvalidToken
		}
		return id, nil
	case float64:
		if uid <= 0 {
			return 0, ErrInvalidToken
		}
		return int64(uid), nil
	case int64:
		if uid <= 0 {
			return 0, ErrInvalidToken
		}
		return uid, nil
	default:
		return 0, ErrInvalidToken
	}
}
