package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"recaudo/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by RequireRole.
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"

	accessCookie = "access_token"
	tokenTTL     = 24 * time.Hour
)

var errNoToken = errors.New("authorization is missing")

// Auth validates and issues staff session tokens.
type Auth struct {
	secret        []byte
	secureCookies bool
	now           func() time.Time
}

// NewAuth builds the session layer. secure switches cookies to SameSite=None; Secure.
func NewAuth(secret string, secure bool) *Auth {
	return &Auth{secret: []byte(secret), secureCookies: secure, now: time.Now}
}

// IssueToken signs a session token for userID carrying its role claim.
func (a *Auth) IssueToken(userID, role string) (string, error) {
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
	})
	return token.SignedString(a.secret)
}

// ParseToken returns subject and role of a valid token.
func (a *Auth) ParseToken(tokenString string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return "", "", err
	}
	if !token.Valid {
		return "", "", jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", jwt.ErrTokenInvalidClaims
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role == "" {
		return "", "", jwt.ErrTokenInvalidClaims
	}
	return sub, role, nil
}

// TokenFromRequest reads the access cookie, falling back to a Bearer header.
func TokenFromRequest(c *gin.Context) (string, error) {
	if tokenString, err := c.Cookie(accessCookie); err == nil && tokenString != "" {
		return tokenString, nil
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errNoToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization format. Expected 'Bearer <token>'")
	}
	return parts[1], nil
}

// SetTokenCookies sets access_token as an HttpOnly cookie.
func (a *Auth) SetTokenCookies(c *gin.Context, accessToken string) {
	c.SetSameSite(a.sameSite())
	c.SetCookie(accessCookie, accessToken, int(tokenTTL.Seconds()), "/", "", a.secureCookies, true)
}

// ClearTokenCookies removes the session cookie.
func (a *Auth) ClearTokenCookies(c *gin.Context) {
	c.SetSameSite(a.sameSite())
	c.SetCookie(accessCookie, "", -1, "/", "", a.secureCookies, true)
}

func (a *Auth) sameSite() http.SameSite {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	if a.secureCookies {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// RequireRole validates the session token and checks the role claim against allowedRoles.
func (a *Auth) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := TokenFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}

		userID, userRole, err := a.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}

		roleAllowed := false
		for _, role := range allowedRoles {
			if userRole == role {
				roleAllowed = true
				break
			}
		}
		if !roleAllowed {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextUserRole, userRole)
		c.Next()
	}
}
