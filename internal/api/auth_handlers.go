// Package api - Authentication handlers
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/aethra/strata/internal/auth"
	"github.com/aethra/strata/internal/errors"
	"github.com/aethra/strata/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoginRateLimiter implements rate limiting for login attempts
type LoginRateLimiter struct {
	attempts map[string]*loginAttempt
	mu       sync.RWMutex
}

type loginAttempt struct {
	count     int
	firstTry  time.Time
	blockedAt *time.Time
}

// NewLoginRateLimiter creates a new rate limiter
func NewLoginRateLimiter() *LoginRateLimiter {
	rl := &LoginRateLimiter{
		attempts: make(map[string]*loginAttempt),
	}
	// Start cleanup goroutine
	go rl.cleanup()
	return rl
}

// Allow checks if a login attempt is allowed
func (rl *LoginRateLimiter) Allow(key string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	attempt, exists := rl.attempts[key]

	if !exists {
		rl.attempts[key] = &loginAttempt{count: 1, firstTry: now}
		return true, 4, 0 // 5 attempts allowed, 4 remaining
	}

	// If blocked, check if block has expired (15 minutes)
	if attempt.blockedAt != nil {
		blockDuration := 15 * time.Minute
		if now.Sub(*attempt.blockedAt) < blockDuration {
			remaining := blockDuration - now.Sub(*attempt.blockedAt)
			return false, 0, remaining
		}
		// Block expired, reset
		attempt.count = 1
		attempt.firstTry = now
		attempt.blockedAt = nil
		return true, 4, 0
	}

	// Reset if window (5 minutes) has passed
	if now.Sub(attempt.firstTry) > 5*time.Minute {
		attempt.count = 1
		attempt.firstTry = now
		return true, 4, 0
	}

	// Increment and check
	attempt.count++
	if attempt.count > 5 {
		attempt.blockedAt = &now
		return false, 0, 15 * time.Minute
	}

	return true, 5 - attempt.count, 0
}

// Reset resets the attempts for a key (on successful login)
func (rl *LoginRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

// cleanup removes old entries periodically
func (rl *LoginRateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, attempt := range rl.attempts {
			// Remove entries older than 30 minutes
			if now.Sub(attempt.firstTry) > 30*time.Minute {
				delete(rl.attempts, key)
			}
		}
		rl.mu.Unlock()
	}
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	db          *gorm.DB
	jwtService  *auth.JWTService
	rateLimiter *LoginRateLimiter
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		db:          db,
		jwtService:  jwtService,
		rateLimiter: NewLoginRateLimiter(),
	}
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	SiteID   string `json:"site_id" binding:"required"`
}

// RegisterRequest represents registration data
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	SiteID    string `json:"site_id" binding:"required"`
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// UserResponse represents user data in responses (without password)
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	SiteID    uuid.UUID `json:"site_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsActive  bool      `json:"is_active"`
}

// userResponse converts a user model to a response
func userResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		SiteID:    user.SiteID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsActive:  user.IsActive,
	}
}

// roleCodes returns the codes of a user's roles
func (h *AuthHandler) roleCodes(userID uuid.UUID) []string {
	var roles []string
	h.db.Table("user_roles").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ?", userID).
		Pluck("roles.code", &roles)
	return roles
}

// Login authenticates a user and returns tokens
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	// Rate limiting key: IP + email combination
	clientIP := c.ClientIP()
	rateLimitKey := clientIP + ":" + req.Email

	// Check rate limit
	allowed, remaining, retryAfter := h.rateLimiter.Allow(rateLimitKey)
	if !allowed {
		c.Header("Retry-After", retryAfter.String())
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "too many login attempts",
			"retry_after": retryAfter.Seconds(),
		})
		return
	}

	siteID, err := uuid.Parse(req.SiteID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid site_id"})
		return
	}

	// Find user
	var user models.User
	err = h.db.Where("email = ? AND site_id = ?", req.Email, siteID).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		} else {
			status, response := errors.ToHTTPError(errors.NewInternalError(err))
			c.JSON(status, response)
		}
		return
	}

	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "account is disabled"})
		return
	}

	// Verify password
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":              "invalid credentials",
			"attempts_remaining": remaining,
		})
		return
	}

	// Successful login - reset rate limiter
	h.rateLimiter.Reset(rateLimitKey)

	roles := h.roleCodes(user.ID)

	// Generate tokens
	tokens, err := h.jwtService.GenerateTokenPair(user.ID, user.SiteID, user.Email, roles)
	if err != nil {
		status, response := errors.ToHTTPError(errors.NewInternalError(err))
		c.JSON(status, response)
		return
	}

	// Update last login
	h.db.Model(&models.User{}).Where("id = ?", user.ID).Update("last_login_at", gorm.Expr("CURRENT_TIMESTAMP"))

	c.JSON(http.StatusOK, gin.H{
		"user":   userResponse(&user),
		"tokens": tokens,
		"roles":  roles,
	})
}

// Register creates a new user account
// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	siteID, err := uuid.Parse(req.SiteID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid site_id"})
		return
	}

	// Check if site exists and is active
	var siteCount int64
	h.db.Model(&models.Site{}).Where("id = ? AND is_active = true", siteID).Count(&siteCount)
	if siteCount == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid site"})
		return
	}

	// Check if email already exists
	var existingCount int64
	h.db.Model(&models.User{}).Where("email = ? AND site_id = ?", req.Email, siteID).Count(&existingCount)
	if existingCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	// Hash password
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		status, response := errors.ToHTTPError(errors.NewInternalError(err))
		c.JSON(status, response)
		return
	}

	user := models.User{
		ID:           uuid.New(),
		SiteID:       siteID,
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
	}
	if err := h.db.Create(&user).Error; err != nil {
		status, response := errors.ToHTTPError(errors.NewInternalError(err))
		c.JSON(status, response)
		return
	}

	// Assign the author role by default: site-local if one exists,
	// otherwise the global system role
	var defaultRole models.Role
	err = h.db.Where("code = ? AND (site_id = ? OR site_id IS NULL)", "author", siteID).
		Order("site_id IS NULL").
		First(&defaultRole).Error
	if err == nil {
		h.db.Exec("INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)", user.ID, defaultRole.ID)
	}

	// Generate tokens
	tokens, err := h.jwtService.GenerateTokenPair(user.ID, siteID, req.Email, []string{"author"})
	if err != nil {
		status, response := errors.ToHTTPError(errors.NewInternalError(err))
		c.JSON(status, response)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":   userResponse(&user),
		"tokens": tokens,
	})
}

// RefreshToken generates new tokens using a refresh token
// POST /auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	// Validate refresh token and get claims
	claims, err := h.jwtService.ValidateToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	// Get user info (to get latest email and roles)
	var user models.User
	err = h.db.Select("email, is_active").Where("id = ?", claims.UserID).First(&user).Error
	if err != nil || !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found or disabled"})
		return
	}

	roles := h.roleCodes(claims.UserID)

	// Generate new token pair
	tokens, err := h.jwtService.GenerateTokenPair(claims.UserID, claims.SiteID, user.Email, roles)
	if err != nil {
		status, response := errors.ToHTTPError(errors.NewInternalError(err))
		c.JSON(status, response)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// GetMe returns the current authenticated user
// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var user models.User
	if err := h.db.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  userResponse(&user),
		"roles": h.roleCodes(user.ID),
	})
}

// ChangePassword updates the current user's password
// POST /auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var user models.User
	if err := h.db.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	if !auth.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is incorrect"})
		return
	}

	newHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		status, response := errors.ToHTTPError(errors.NewInternalError(err))
		c.JSON(status, response)
		return
	}

	if err := h.db.Model(&user).Update("password_hash", newHash).Error; err != nil {
		status, response := errors.ToHTTPError(errors.NewInternalError(err))
		c.JSON(status, response)
		return
	}

	c.JSON(http.StatusOK, gin.H{"changed": true})
}

// Logout is a no-op for stateless JWT; clients discard their tokens
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}
