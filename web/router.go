package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"facemorph/config"
	"facemorph/handlers"
	"facemorph/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const (
	sessionCookieName     = "flash"
	sessionExpirationTime = 3600
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(templatesFS, "templates/*.tmpl"))
}

// NewRouter wires the HTML pages, the JSON API and the uploaded files
func NewRouter(env *handlers.Env) *gin.Engine {
	router := gin.Default()
	_ = router.SetTrustedProxies([]string{})
	if config.DEBUG_MODE {
		router.Use(utils.ErrorLogMiddleware)
	}
	router.SetHTMLTemplate(Templates())

	cookieStore := cookie.NewStore([]byte(config.SESSION_SECRET))
	cookieStore.Options(sessions.Options{Path: "/", MaxAge: sessionExpirationTime, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	router.Use(sessions.Sessions(sessionCookieName, cookieStore))
	if !config.DEBUG_MODE {
		router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{handlers.UploadsPath})))
	}
	router.Use((&utils.CacheRouter{CacheTime: utils.CacheNoCache}).Handler()) // No cache by default, individual end-points can override that

	pages := &Pages{Env: env}
	router.GET("/", pages.Index)
	router.GET("/face_swap", pages.FaceSwapForm)
	router.GET("/face_morph", pages.FaceMorphForm)
	router.GET("/healthz", env.HealthAPI)
	router.GET("/robots.txt", DisallowRobots)
	router.GET(handlers.UploadsPath+":name", utils.CacheFor(config.RESULT_TTL).Handler(), env.ServeUpload)

	forms := router.Group("/", utils.LimitBody(config.MAX_UPLOAD_SIZE), env.ReleasePins)
	forms.POST("/face_swap", pages.FaceSwap)
	forms.POST("/face_morph", pages.FaceMorph)

	api := router.Group("/api", cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"POST"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          30 * 24 * time.Hour,
	}), utils.LimitBody(config.MAX_UPLOAD_SIZE), env.ReleasePins)
	api.POST("/face_swap", env.FaceSwapAPI)
	api.POST("/face_morph", env.FaceMorphAPI)
	api.POST("/landmarks", env.LandmarksAPI)
	api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	return router
}
