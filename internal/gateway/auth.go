package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	world "github.com/WOW112/jingdianwow2"
)

// sessionClaims is the ticket minted by the account service after a
// successful login. The gateway only trusts the account id and security
// tier it carries; everything else about the session lives server-side.
type sessionClaims struct {
	AccountID uint32 `json:"account_id"`
	Security  uint8  `json:"security"`
	jwt.RegisteredClaims
}

var errInvalidToken = errors.New("invalid session token")

func parseSessionToken(tokenString, secret string) (*sessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, errInvalidToken
	}
	if claims.AccountID == 0 {
		return nil, errInvalidToken
	}
	return claims, nil
}

// MintSessionToken issues a signed ticket for the given account. Login
// portals call this; the gateway itself only parses.
func MintSessionToken(secret string, accountID uint32, security world.Security, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &sessionClaims{
		AccountID: accountID,
		Security:  uint8(security),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("account:%d", accountID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
