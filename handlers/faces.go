package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (e *Env) abort(c *gin.Context, err error) {
	message, status := UserMessage(err)
	if status == http.StatusInternalServerError {
		log.Errorf("handlers: %s %s: %s", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, Response{Error: message})
}

// FaceSwapAPI handles POST /api/face_swap
func (e *Env) FaceSwapAPI(c *gin.Context) {
	resp, err := e.FaceSwap(c)
	if err != nil {
		e.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// FaceMorphAPI handles POST /api/face_morph
func (e *Env) FaceMorphAPI(c *gin.Context) {
	resp, err := e.FaceMorph(c)
	if err != nil {
		e.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// LandmarksAPI handles POST /api/landmarks
func (e *Env) LandmarksAPI(c *gin.Context) {
	resp, err := e.Landmarks(c)
	if err != nil {
		e.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (e *Env) HealthAPI(c *gin.Context) {
	c.JSON(http.StatusOK, e.Health())
}

// ServeUpload handles GET /static/uploads/:name
func (e *Env) ServeUpload(c *gin.Context) {
	e.Storage.Serve(c.Param("name"), c.Request, c.Writer)
}
