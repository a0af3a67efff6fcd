package core

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	sessionName  = "emoji_session"
	sessionIDKey = "sid"

	ctxSessionKey = "session"
	ctxClaimsKey  = "claims"
)

// SessionMiddleware loads the session cookie and makes sure it carries a sid.
func SessionMiddleware(cfg Config, store sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		// a cookie that fails to decode yields a fresh session alongside the error
		session, err := store.Get(c.Request, sessionName)
		if session == nil {
			log.Printf("session: load failed: %v", err)
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session error")
			c.Abort()
			return
		}

		if sid, _ := session.Values[sessionIDKey].(string); sid == "" {
			session.Values[sessionIDKey] = newSessionID()
			applySessionOptions(cfg, session)
			if err := session.Save(c.Request, c.Writer); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to persist session")
				c.Abort()
				return
			}
		}

		c.Set(ctxSessionKey, session)
		c.Next()
	}
}

// RequireToken rejects requests without a valid bearer token and stores the
// verified claims on the context.
func RequireToken(gateway *AuthGateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := gateway.Authorize(c.Request)
		if !decision.Allowed {
			log.Printf("auth: denied path=%s reason=%v", c.FullPath(), decision.Reason)
			if decision.Status == http.StatusInternalServerError {
				respondError(c, decision.Status, "INTERNAL_SERVER_ERROR", "token verification unavailable")
			} else {
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", decision.Reason.Error())
			}
			c.Abort()
			return
		}
		c.Set(ctxClaimsKey, decision.Claims)
		c.Next()
	}
}

// RequireSession runs after RequireToken and insists that the cookie's
// session still belongs to the token subject.
func RequireSession(gateway *AuthGateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := gateway.AuthorizeSession(c.Request.Context(), sessionID(c), claimsFrom(c))
		if !decision.Allowed {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "login required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CORSMiddleware lets browsers read the token header from login responses.
func CORSMiddleware(cfg Config) gin.HandlerFunc {
	conf := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = cfg.AllowedOrigins
		conf.AllowCredentials = true
	}
	conf.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	conf.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", TokenHeader}
	conf.ExposeHeaders = []string{TokenHeader}
	return cors.New(conf)
}

func currentSession(c *gin.Context) *sessions.Session {
	sessionAny, _ := c.Get(ctxSessionKey)
	sess, _ := sessionAny.(*sessions.Session)
	return sess
}

// sessionID returns the transport session id of the request, or "".
func sessionID(c *gin.Context) string {
	sess := currentSession(c)
	if sess == nil {
		return ""
	}
	sid, _ := sess.Values[sessionIDKey].(string)
	return sid
}

func claimsFrom(c *gin.Context) *Claims {
	v, _ := c.Get(ctxClaimsKey)
	claims, _ := v.(*Claims)
	return claims
}

// rotateSession points the cookie at sid, dropping everything stored under
// the previous identifier.
func rotateSession(c *gin.Context, cfg Config, sid string) error {
	sess := currentSession(c)
	if sess == nil {
		return http.ErrNoCookie
	}
	sess.Values = map[interface{}]interface{}{sessionIDKey: sid}
	applySessionOptions(cfg, sess)
	return sess.Save(c.Request, c.Writer)
}

// expireSession clears the cookie on the client.
func expireSession(c *gin.Context, cfg Config) error {
	sess := currentSession(c)
	if sess == nil {
		return nil
	}
	sess.Values = map[interface{}]interface{}{}
	applySessionOptions(cfg, sess)
	sess.Options.MaxAge = -1 // after applySessionOptions, which resets MaxAge
	return sess.Save(c.Request, c.Writer)
}

func applySessionOptions(cfg Config, session *sessions.Session) {
	if session.Options == nil {
		session.Options = &sessions.Options{}
	}
	maxAge := cfg.SessionTTL
	if maxAge <= 0 {
		maxAge = defaultSessionTTL
	}
	session.Options.Path = "/"
	session.Options.MaxAge = int(maxAge.Seconds())
	session.Options.HttpOnly = true
	session.Options.Secure = cfg.CookieSecure
	session.Options.SameSite = sameSiteFromString(cfg.CookieSameSite)
}

func sameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
