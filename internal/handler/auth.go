package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avelora/ticket-office/internal/repository"
	"github.com/avelora/ticket-office/internal/utils"
)

// AuthHandler issues staff access tokens.  There is no refresh flow;
// operators log in again when the token expires.
type AuthHandler struct {
	Staff     *repository.StaffRepo
	JWTSecret string
	TTLMin    int
}

func NewAuthHandler(staff *repository.StaffRepo, secret string, ttlMin int) *AuthHandler {
	if staff == nil {
		panic("nil repository passed to NewAuthHandler")
	}
	return &AuthHandler{Staff: staff, JWTSecret: secret, TTLMin: ttlMin}
}

// Login handles POST /v1/auth/login.  Invalid email and invalid
// password answer identically so the endpoint does not leak which
// staff accounts exist.
func (h *AuthHandler) Login(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Email == "" || body.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	staff, err := h.Staff.GetByEmail(c.Request().Context(), body.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !staff.IsActive || !utils.VerifyPassword(staff.PasswordHash, body.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := utils.NewAccessToken(h.JWTSecret, staff.ID, staff.Email, staff.Role, h.TTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token signing failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token.Token,
		"expires_at":   token.Exp,
		"role":         staff.Role,
	})
}
