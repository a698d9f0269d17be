package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// InternalOpsClaim identifies a caller of the /internal endpoints (Cloud
// Scheduler jobs, ops tooling). Not an end-user session.
type InternalOpsClaim struct {
	Caller string `json:"caller"`
	Scope  string `json:"scope"`
	jwt.StandardClaims
}

const InternalOpsScope = "internal-ops"

var jwtSecret = []byte(getJwtSecret())

func getJwtSecret() string {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return "RetailCheck-Secret"
	}
	return secret
}

// JwtGenerateInternal mints a short-lived HS256 token for internal ops calls.
func JwtGenerateInternal(caller string, lifespan time.Duration) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &InternalOpsClaim{
		Caller: caller,
		Scope:  InternalOpsScope,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(lifespan).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})
	return t.SignedString(jwtSecret)
}

// JwtValidateInternal checks signature, expiry and scope, returning the claim.
func JwtValidateInternal(token string) (*InternalOpsClaim, error) {
	parsed, err := jwt.ParseWithClaims(token, &InternalOpsClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claim, ok := parsed.Claims.(*InternalOpsClaim)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid internal ops token")
	}
	if claim.Scope != InternalOpsScope {
		return nil, fmt.Errorf("token scope %q is not %s", claim.Scope, InternalOpsScope)
	}
	return claim, nil
}
