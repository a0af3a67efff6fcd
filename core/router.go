package core

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, store sessions.Store, gateway *AuthGateway, authService AuthService, emojis EmojiRepository, probes map[string]HealthProbe) *gin.Engine {
	r := gin.Default()
	startedAt := time.Now()

	// Global middleware: CORS -> session
	r.Use(CORSMiddleware(cfg))
	r.Use(SessionMiddleware(cfg, store))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to the emoji API"})
	})

	r.GET("/healthz", func(c *gin.Context) {
		st := CollectSystemStatus(c.Request.Context(), probes, startedAt)
		if !st.Healthy() {
			c.JSON(http.StatusServiceUnavailable, st)
			return
		}
		c.JSON(http.StatusOK, st)
	})

	requireToken := RequireToken(gateway)
	requireSession := RequireSession(gateway)

	auth := r.Group("/auth")
	{
		auth.POST("/login", func(c *gin.Context) {
			var creds Credentials
			if err := c.ShouldBind(&creds); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid login payload")
				return
			}

			ctx := c.Request.Context()
			prev := sessionID(c)
			sid := newSessionID()
			result, err := gateway.Login(ctx, LoginRequest{
				SessionID:   sid,
				Issuer:      issuerFor(c, cfg),
				Credentials: creds,
			})
			if err != nil {
				log.Printf("auth: login failed: %v", err)
				if errors.Is(err, ErrConfiguration) {
					respondError(c, http.StatusInternalServerError, "SERVER_MISCONFIGURATION", "token signing is not configured")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "login failed")
				return
			}
			if result.Status != http.StatusOK {
				respondError(c, http.StatusBadRequest, "INVALID_CREDENTIALS", "invalid username or password")
				return
			}

			// the anonymous sid is retired; the client continues under the new one
			if prev != "" {
				if _, err := gateway.Logout(ctx, prev); err != nil {
					log.Printf("auth: retire previous session: %v", err)
				}
			}
			if err := rotateSession(c, cfg, sid); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to set session")
				return
			}

			c.Header(TokenHeader, result.Token.Token)
			c.JSON(http.StatusOK, result.Token.Envelope)
		})

		auth.POST("/register", func(c *gin.Context) {
			var req struct {
				Username string `form:"username" json:"username"`
				Email    string `form:"email" json:"email"`
				Password string `form:"password" json:"password"`
			}
			if err := c.ShouldBind(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid registration payload")
				return
			}

			identity, err := authService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
			switch {
			case errors.Is(err, ErrInvalidCredentials):
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "username, email and password are required")
				return
			case errors.Is(err, ErrUserExists):
				respondError(c, http.StatusConflict, "CONFLICT", "username is already taken")
				return
			case err != nil:
				log.Printf("auth: register failed: %v", err)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to register user")
				return
			}
			c.JSON(http.StatusCreated, identity)
		})

		auth.GET("/logout", requireToken, func(c *gin.Context) {
			if _, err := gateway.Logout(c.Request.Context(), sessionID(c)); err != nil {
				log.Printf("auth: logout failed: %v", err)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to end session")
				return
			}
			if err := expireSession(c, cfg); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to clear session")
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "logged out"})
		})

		auth.GET("/me", requireToken, requireSession, func(c *gin.Context) {
			claims := claimsFrom(c)
			c.JSON(http.StatusOK, gin.H{
				"user":       claims.Data,
				"expires_at": claims.ExpiresAt.Time.Format(time.RFC3339),
			})
		})
	}

	r.GET("/emojis", func(c *gin.Context) {
		page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		items, total, err := emojis.List(c.Request.Context(), page, perPage)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch emojis")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"items":       items,
			"page":        page,
			"per_page":    perPage,
			"total_items": total,
			"total_pages": calcTotalPages(total, perPage),
		})
	})

	r.GET("/emojis/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
			return
		}
		e, err := emojis.Get(c.Request.Context(), id)
		if err != nil {
			respondEmojiError(c, err, "failed to fetch emoji")
			return
		}
		c.JSON(http.StatusOK, e)
	})

	r.POST("/emojis", requireToken, func(c *gin.Context) {
		var in EmojiInput
		if err := c.ShouldBind(&in); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid emoji payload")
			return
		}
		var e Emoji
		in.apply(&e)
		if e.Name == "" || e.Char == "" {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name and char are required")
			return
		}
		e.CreatedBy = claimsFrom(c).Data.ID

		created, err := emojis.Create(c.Request.Context(), e)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create emoji")
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	// partial update: omitted fields keep their stored value
	updateEmoji := func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
			return
		}
		var in EmojiInput
		if err := c.ShouldBind(&in); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid emoji payload")
			return
		}
		if in.Name == nil && in.Char == nil && in.Category == nil && in.Keywords == nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "nothing to update")
			return
		}

		ctx := c.Request.Context()
		current, err := emojis.Get(ctx, id)
		if err != nil {
			respondEmojiError(c, err, "failed to fetch emoji")
			return
		}
		in.apply(current)
		if strings.TrimSpace(current.Name) == "" || strings.TrimSpace(current.Char) == "" {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name and char cannot be empty")
			return
		}
		updated, err := emojis.Update(ctx, *current)
		if err != nil {
			respondEmojiError(c, err, "failed to update emoji")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
	r.PUT("/emojis/:id", requireToken, updateEmoji)
	r.PATCH("/emojis/:id", requireToken, updateEmoji)

	r.DELETE("/emojis/:id", requireToken, func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
			return
		}
		if err := emojis.Delete(c.Request.Context(), id); err != nil {
			respondEmojiError(c, err, "failed to delete emoji")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "emoji deleted"})
	})

	return r
}

// issuerFor names the serving host at issuance time.
func issuerFor(c *gin.Context, cfg Config) string {
	if host := strings.TrimSpace(c.Request.Host); host != "" {
		return host
	}
	return cfg.DefaultIssuer
}

func respondEmojiError(c *gin.Context, err error, message string) {
	if errors.Is(err, ErrEmojiNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "emoji not found")
		return
	}
	log.Printf("emoji: %s: %v", message, err)
	respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message)
}
