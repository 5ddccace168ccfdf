package stubapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mpekarov/coinwatch/internal/api"
)

const claimsContextKey = "auth_claims"

// Server wires the stub stores behind a gin router.
type Server struct {
	config        Config
	users         *InMemoryUsers
	refreshTokens RefreshTokenStore
	data          *DataStore
	clock         Clock
	logger        *zap.Logger
}

// ServerOptions configures optional collaborators; zero values get defaults.
type ServerOptions struct {
	Config        Config
	Users         *InMemoryUsers
	RefreshTokens RefreshTokenStore
	Data          *DataStore
	Clock         Clock
	Logger        *zap.Logger
}

// NewServer constructs a stub server.
func NewServer(options ServerOptions) (*Server, error) {
	clock := options.Clock
	if clock == nil {
		clock = NewSystemClock()
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	users := options.Users
	if users == nil {
		users = NewInMemoryUsers()
	}
	refreshTokens := options.RefreshTokens
	if refreshTokens == nil {
		refreshTokens = NewMemoryRefreshTokenStore(clock)
	}
	data := options.Data
	if data == nil {
		loaded, loadErr := NewDataStore(clock)
		if loadErr != nil {
			return nil, loadErr
		}
		data = loaded
	}
	configuration := options.Config
	if len(configuration.SigningKey) == 0 {
		configuration = DefaultConfig()
	}
	return &Server{
		config:        configuration,
		users:         users,
		refreshTokens: refreshTokens,
		data:          data,
		clock:         clock,
		logger:        logger,
	}, nil
}

// Users exposes the user store for seeding.
func (server *Server) Users() *InMemoryUsers {
	return server.users
}

// Router builds the gin engine with every stub route mounted.
func (server *Server) Router(enableCORS bool, allowedOrigins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(server.logger))

	if enableCORS {
		corsConfiguration := cors.DefaultConfig()
		corsConfiguration.AllowOrigins = allowedOrigins
		corsConfiguration.AllowCredentials = true
		corsConfiguration.AddAllowHeaders("Authorization")
		router.Use(cors.New(corsConfiguration))
	}

	server.mountAuthRoutes(router)
	server.mountMarketRoutes(router)
	server.mountNewsRoutes(router)

	member := router.Group("/user")
	member.Use(server.requireBearer(), server.requireRole(RoleMember))
	member.GET("/watchlist", server.handleWatchlist)
	member.POST("/watchlist", server.handleWatchlistAdd)
	member.DELETE("/watchlist/:id", server.handleWatchlistRemove)

	admin := router.Group("/admin")
	admin.Use(server.requireBearer(), server.requireRole(RoleAdmin))
	admin.GET("/tips", server.handleAdminTips)
	admin.POST("/create_tip", server.handleCreateTip)
	admin.PUT("/edit_tip/:id", server.handleEditTip)
	admin.DELETE("/delete_tip/:id", server.handleDeleteTip)

	return router
}

func (server *Server) mountAuthRoutes(router gin.IRouter) {
	router.POST("/auth/register", func(contextGin *gin.Context) {
		var inbound struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"msg": "Missing JSON in request"})
			return
		}
		if fieldErrors := validateRegistration(inbound.Name, inbound.Email, inbound.Password); len(fieldErrors) > 0 {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
			return
		}
		if _, registerErr := server.users.Register(inbound.Name, inbound.Email, inbound.Password); registerErr != nil {
			if errors.Is(registerErr, ErrEmailTaken) {
				contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"errors": gin.H{"email": []string{"Email is already registered."}}})
				return
			}
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
	})

	router.POST("/auth/login", func(contextGin *gin.Context) {
		var inbound struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"msg": "Missing JSON in request"})
			return
		}
		profile, authErr := server.users.Authenticate(inbound.Email, inbound.Password)
		if authErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"errors": gin.H{"server": []string{"Invalid email or password."}}})
			return
		}

		accessToken, _, mintErr := mintAccessJWT(server.clock, profile.ID, profile.Email, profile.Name, profile.Role, server.config)
		if mintErr != nil {
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		refreshExpiry := server.clock.Now().Add(server.config.RefreshTTL).Unix()
		_, refreshOpaque, issueErr := server.refreshTokens.Issue(contextGin, profile.ID, refreshExpiry)
		if issueErr != nil || strings.TrimSpace(refreshOpaque) == "" {
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		contextGin.JSON(http.StatusOK, gin.H{
			"user":          profilePayload(profile),
			"access_token":  accessToken,
			"refresh_token": refreshOpaque,
		})
	})

	router.POST("/auth/refresh", func(contextGin *gin.Context) {
		refreshOpaque := bearerToken(contextGin.Request)
		if refreshOpaque == "" {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		userID, _, _, validateErr := server.refreshTokens.Validate(contextGin, refreshOpaque)
		if validateErr != nil {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		profile, profileErr := server.users.GetByID(userID)
		if profileErr != nil {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		accessToken, _, mintErr := mintAccessJWT(server.clock, profile.ID, profile.Email, profile.Name, profile.Role, server.config)
		if mintErr != nil {
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"access_token": accessToken})
	})

	router.DELETE("/auth/logout", func(contextGin *gin.Context) {
		if claims, parseErr := parseAccessJWT(server.clock, bearerToken(contextGin.Request), server.config); parseErr == nil {
			if revokeErr := server.refreshTokens.RevokeAllForUser(contextGin, claims.UserID); revokeErr != nil {
				server.logger.Warn("stub logout revoke failed", zap.Error(revokeErr))
			}
		}
		contextGin.Status(http.StatusNoContent)
	})

	router.GET("/auth/me", server.requireBearer(), func(contextGin *gin.Context) {
		claims := claimsFrom(contextGin)
		profile, profileErr := server.users.GetByID(claims.UserID)
		if profileErr != nil {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"user": profilePayload(profile)})
	})
}

func (server *Server) mountMarketRoutes(router gin.IRouter) {
	router.GET("/", func(contextGin *gin.Context) {
		page, limit := pageParams(contextGin)
		contextGin.JSON(http.StatusOK, server.data.ListCoins(page, limit))
	})

	router.GET("/coin/:id", func(contextGin *gin.Context) {
		coinID, parseErr := strconv.ParseInt(contextGin.Param("id"), 10, 64)
		if parseErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid coin id"})
			return
		}
		coin, lookupErr := server.data.GetCoin(coinID)
		if lookupErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Coin data not found"})
			return
		}
		contextGin.JSON(http.StatusOK, coin)
	})

	router.GET("/search", func(contextGin *gin.Context) {
		matches := server.data.SearchCoins(contextGin.Query("q"))
		contextGin.JSON(http.StatusOK, gin.H{"data": matches})
	})
}

func (server *Server) mountNewsRoutes(router gin.IRouter) {
	router.GET("/tips", func(contextGin *gin.Context) {
		page, limit := pageParams(contextGin)
		contextGin.JSON(http.StatusOK, server.data.ListTips(page, limit, false))
	})

	router.GET("/tips/:id", func(contextGin *gin.Context) {
		tipID, parseErr := strconv.ParseInt(contextGin.Param("id"), 10, 64)
		if parseErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid tip id"})
			return
		}
		tip, lookupErr := server.data.GetTip(tipID)
		if lookupErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"errors": []string{"Tip not found."}})
			return
		}
		contextGin.JSON(http.StatusOK, tip)
	})
}

func (server *Server) handleWatchlist(contextGin *gin.Context) {
	claims := claimsFrom(contextGin)
	page, limit := pageParams(contextGin)
	contextGin.JSON(http.StatusOK, server.data.Watchlist(claims.UserID, page, limit))
}

func (server *Server) handleWatchlistAdd(contextGin *gin.Context) {
	claims := claimsFrom(contextGin)
	var inbound struct {
		CoinID int64 `json:"coin_id"`
	}
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil || inbound.CoinID == 0 {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "coin_id is required"})
		return
	}
	switch addErr := server.data.AddWatch(claims.UserID, inbound.CoinID); {
	case errors.Is(addErr, ErrCoinNotFound):
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Coin data not found"})
	case errors.Is(addErr, ErrAlreadyWatched):
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Coin already in watchlist"})
	default:
		contextGin.JSON(http.StatusCreated, gin.H{"message": "Coin added to watchlist"})
	}
}

func (server *Server) handleWatchlistRemove(contextGin *gin.Context) {
	claims := claimsFrom(contextGin)
	coinID, parseErr := strconv.ParseInt(contextGin.Param("id"), 10, 64)
	if parseErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid coin id"})
		return
	}
	if removeErr := server.data.RemoveWatch(claims.UserID, coinID); removeErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Coin not in watchlist"})
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"message": "Coin removed from watchlist"})
}

func (server *Server) handleAdminTips(contextGin *gin.Context) {
	page, limit := pageParams(contextGin)
	contextGin.JSON(http.StatusOK, server.data.ListTips(page, limit, true))
}

func (server *Server) handleCreateTip(contextGin *gin.Context) {
	draft, ok := bindTipDraft(contextGin)
	if !ok {
		return
	}
	contextGin.JSON(http.StatusCreated, server.data.CreateTip(draft))
}

func (server *Server) handleEditTip(contextGin *gin.Context) {
	tipID, parseErr := strconv.ParseInt(contextGin.Param("id"), 10, 64)
	if parseErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid tip id"})
		return
	}
	draft, ok := bindTipDraft(contextGin)
	if !ok {
		return
	}
	updated, editErr := server.data.EditTip(tipID, draft)
	if editErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"errors": []string{"Tip not found."}})
		return
	}
	contextGin.JSON(http.StatusOK, updated)
}

func (server *Server) handleDeleteTip(contextGin *gin.Context) {
	tipID, parseErr := strconv.ParseInt(contextGin.Param("id"), 10, 64)
	if parseErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid tip id"})
		return
	}
	if deleteErr := server.data.DeleteTip(tipID); deleteErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"errors": []string{"Tip not found."}})
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"message": "Tip deleted"})
}

// requireBearer validates the access token and injects its claims.
func (server *Server) requireBearer() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		claims, parseErr := parseAccessJWT(server.clock, bearerToken(contextGin.Request), server.config)
		if parseErr != nil {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.Set(claimsContextKey, claims)
		contextGin.Next()
	}
}

// requireRole rejects callers whose access token carries a different role.
func (server *Server) requireRole(role string) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		claims := claimsFrom(contextGin)
		if claims == nil || claims.UserRole != role {
			contextGin.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		contextGin.Next()
	}
}

func claimsFrom(contextGin *gin.Context) *accessClaims {
	value, exists := contextGin.Get(claimsContextKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*accessClaims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(request *http.Request) string {
	header := request.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func profilePayload(profile UserProfile) gin.H {
	return gin.H{
		"id":    profile.ID,
		"name":  profile.Name,
		"email": profile.Email,
		"role":  profile.Role,
	}
}

func pageParams(contextGin *gin.Context) (int, int) {
	page, pageErr := strconv.Atoi(contextGin.DefaultQuery("page", "1"))
	if pageErr != nil || page < 1 {
		page = 1
	}
	limit, limitErr := strconv.Atoi(contextGin.DefaultQuery("limit", "20"))
	if limitErr != nil || limit < 1 {
		limit = 20
	}
	return page, limit
}

func bindTipDraft(contextGin *gin.Context) (api.TipDraft, bool) {
	var draft api.TipDraft
	if bindErr := contextGin.BindJSON(&draft); bindErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"msg": "Missing JSON in request"})
		return api.TipDraft{}, false
	}
	fieldErrors := make(map[string][]string)
	if strings.TrimSpace(draft.Title) == "" {
		fieldErrors["title"] = []string{"Title is required."}
	}
	if strings.TrimSpace(draft.Description) == "" {
		fieldErrors["description"] = []string{"Description is required."}
	}
	if len(fieldErrors) > 0 {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
		return api.TipDraft{}, false
	}
	return draft, true
}

func validateRegistration(name string, email string, password string) map[string][]string {
	fieldErrors := make(map[string][]string)
	if len(strings.TrimSpace(name)) < 3 {
		fieldErrors["name"] = []string{"Name must be at least 3 characters long."}
	}
	if !strings.Contains(email, "@") {
		fieldErrors["email"] = []string{"Not a valid email address."}
	}
	if len(password) < 8 {
		fieldErrors["password"] = []string{"Password must be at least 8 characters long."}
	}
	return fieldErrors
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		started := time.Now()
		contextGin.Next()
		logger.Debug("stub request",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.Duration("elapsed", time.Since(started)),
		)
	}
}
