package echoapi

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/user"
)

var contextUserKey = "user"

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	UserID int       `json:"uid"`
	Name   string    `json:"name,omitempty"`
	Email  string    `json:"email,omitempty"`
	Role   user.Role `json:"role"`
	RollNo string    `json:"roll_no,omitempty"` // students only
}

type authenticator struct {
	config middleware.JWTConfig
	issuer string
	expiry time.Duration
}

func newAuthenticator(conf *core.Config) *authenticator {
	return &authenticator{
		config: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    "userToken",
			Claims:        new(Claims),
		},
		issuer: conf.AppName,
		expiry: conf.Server.JWTExpirationDelta,
	}
}

func (a *authenticator) claimsFor(usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.issuer,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: now.Add(a.expiry).Unix(),
			IssuedAt:  now.Unix(),
		},
		UserID: usr.ID,
		Name:   usr.Name,
		Email:  usr.Email,
		Role:   usr.Role,
		RollNo: usr.RollNo,
	}
}

// generateToken generates a signed JWT token string representing the user Claims.
func (a *authenticator) generateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.config.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.config.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// parseToken validates a token received outside the Authorization header.
func (a *authenticator) parseToken(raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, middleware.ErrJWTMissing
	}
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != a.config.SigningMethod {
			return nil, errors.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
		}
		return a.config.SigningKey, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, errUnauthorized
	}
	return *claims, nil
}

func (a *authenticator) contextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(a.config.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// contextUser loads the user of the request token once per request.
func (a *authenticator) contextUser(ctx echo.Context, users *user.Directory) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	claims, err := a.contextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := users.GetByID(claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// roleMiddleware only lets through tokens holding one of roles.
func roleMiddleware(a *authenticator, roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := a.contextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}
