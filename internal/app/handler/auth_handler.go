package handler

import (
	"errors"
	"net/http"
	"time"

	"filingdesk/internal/app/config"
	"filingdesk/internal/app/ds"
	"filingdesk/internal/app/dto"
	"filingdesk/internal/app/middleware"
	"filingdesk/internal/app/redis"
	"filingdesk/internal/app/repository"
	"filingdesk/internal/app/role"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "filingdesk"

type AuthHandler struct {
	Repository  *repository.Repository
	RedisClient *redis.Client
	Config      *config.Config
}

func NewAuthHandler(r *repository.Repository, redisClient *redis.Client, config *config.Config) *AuthHandler {
	return &AuthHandler{
		Repository:  r,
		RedisClient: redisClient,
		Config:      config,
	}
}

func toUserResponse(user *ds.User) dto.UserResponse {
	return dto.UserResponse{
		ID:       user.ID,
		Login:    user.Login,
		FullName: user.FullName,
		Email:    user.Email,
		Phone:    user.Phone,
		Role:     role.Role(user.Role).String(),
	}
}

func (h *AuthHandler) issueToken(user *ds.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(h.Config.JWT.SigningMethod, ds.JWTClaims{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(h.Config.JWT.ExpiresIn).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    tokenIssuer,
		},
		UserID: user.ID,
		Role:   role.Role(user.Role),
	})
	return token.SignedString([]byte(h.Config.JWT.Token))
}

func (h *AuthHandler) loginResponse(user *ds.User, token string) dto.LoginResponse {
	return dto.LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int(h.Config.JWT.ExpiresIn.Seconds()),
		User:      toUserResponse(user),
	}
}

// RegisterUser creates an applicant account
// @Summary Register
// @Description Creates an applicant account and returns a token.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Account details"
// @Success 201 {object} dto.LoginResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) RegisterUser(ctx *gin.Context) {
	var request dto.RegisterRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		h.errorHandler(ctx, http.StatusBadRequest, codeValidation, err)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(request.Password), bcrypt.DefaultCost)
	if err != nil {
		h.errorHandler(ctx, http.StatusInternalServerError, codeInternal, err)
		return
	}

	user, err := h.Repository.CreateUser(ds.User{
		Login:    request.Login,
		Password: string(hashedPassword),
		Role:     int(role.Applicant),
		Email:    request.Email,
		Phone:    request.Phone,
		FullName: request.FullName,
	})
	if errors.Is(err, repository.ErrUserExists) {
		h.errorHandler(ctx, http.StatusConflict, "user_exists", err)
		return
	}
	if err != nil {
		h.errorHandler(ctx, http.StatusInternalServerError, codeInternal, err)
		return
	}

	accessToken, err := h.issueToken(user)
	if err != nil {
		h.errorHandler(ctx, http.StatusInternalServerError, codeInternal, err)
		return
	}

	ctx.JSON(http.StatusCreated, h.loginResponse(user, accessToken))
}

// LoginUser authenticates a user
// @Summary Login
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) LoginUser(ctx *gin.Context) {
	var request dto.LoginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		h.errorHandler(ctx, http.StatusBadRequest, codeValidation, err)
		return
	}

	user, err := h.Repository.GetUserByLogin(request.Login)
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(request.Password)) != nil {
		h.errorHandler(ctx, http.StatusUnauthorized, codeUnauthorized, errors.New("invalid login or password"))
		return
	}

	accessToken, err := h.issueToken(user)
	if err != nil {
		h.errorHandler(ctx, http.StatusInternalServerError, codeInternal, err)
		return
	}

	ctx.JSON(http.StatusOK, h.loginResponse(user, accessToken))
}

// LogoutUser blacklists the current token
// @Summary Logout
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) LogoutUser(ctx *gin.Context) {
	tokenString := middleware.BearerToken(ctx)
	if tokenString == "" {
		h.errorHandler(ctx, http.StatusUnauthorized, codeUnauthorized, errors.New("authorization header missing"))
		return
	}

	token, err := middleware.ParseToken(tokenString, h.Config.JWT.Token)
	if err != nil {
		h.errorHandler(ctx, http.StatusUnauthorized, codeUnauthorized, err)
		return
	}

	claims, ok := token.Claims.(*ds.JWTClaims)
	if !ok {
		h.errorHandler(ctx, http.StatusUnauthorized, codeUnauthorized, errors.New("invalid token claims"))
		return
	}

	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if ttl > 0 && h.RedisClient != nil {
		if err := h.RedisClient.WriteJWTToBlacklist(ctx.Request.Context(), tokenString, ttl); err != nil {
			h.errorHandler(ctx, http.StatusInternalServerError, codeInternal, err)
			return
		}
	}

	ctx.JSON(http.StatusOK, dto.SuccessResponse{Status: "success", Message: "logged out"})
}

// GetUserProfile returns the current user
// @Summary Profile
// @Description Identity used to prefill the filing form.
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/auth/profile [get]
func (h *AuthHandler) GetUserProfile(ctx *gin.Context) {
	current, ok := middleware.GetUserFromContext(ctx)
	if !ok {
		h.errorHandler(ctx, http.StatusUnauthorized, codeUnauthorized, errors.New("user not authenticated"))
		return
	}

	user, err := h.Repository.GetUserByID(current.ID)
	if err != nil {
		h.errorHandler(ctx, http.StatusNotFound, codeNotFound, errors.New("user not found"))
		return
	}

	ctx.JSON(http.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) errorHandler(ctx *gin.Context, errorStatusCode int, code string, err error) {
	if errorStatusCode >= http.StatusInternalServerError {
		logrus.Error(err.Error())
	} else {
		logrus.Warn(err.Error())
	}
	ctx.JSON(errorStatusCode, dto.ErrorResponse{
		Status:  "fail",
		Code:    code,
		Message: err.Error(),
	})
}
