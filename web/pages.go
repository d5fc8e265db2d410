package web

import (
	"net/http"

	"facemorph/event"
	"facemorph/handlers"

	"github.com/gin-gonic/gin"
)

var log = event.Log

// Pages renders the HTML forms on top of the shared handlers.Env
type Pages struct {
	Env *handlers.Env
}

func (p *Pages) render(c *gin.Context, status int, page, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["title"] = title
	if _, ok := data["messages"]; !ok {
		data["messages"] = LoadSession(c).Messages()
	}
	c.HTML(status, page, data)
}

// fail flashes the user message for err and redirects back to the form
func (p *Pages) fail(c *gin.Context, err error, back string) {
	message, status := handlers.UserMessage(err)
	if status == http.StatusInternalServerError {
		log.Errorf("web: %s %s: %s", c.Request.Method, c.Request.URL.Path, err)
	}
	LoadSession(c).Flash(message)
	c.Redirect(http.StatusSeeOther, back)
}

func (p *Pages) Index(c *gin.Context) {
	p.render(c, http.StatusOK, "index.tmpl", "Face tools", nil)
}

func (p *Pages) FaceSwapForm(c *gin.Context) {
	p.render(c, http.StatusOK, "face_swap.tmpl", "Face swap", nil)
}

func (p *Pages) FaceSwap(c *gin.Context) {
	resp, err := p.Env.FaceSwap(c)
	if err != nil {
		p.fail(c, err, "/face_swap")
		return
	}
	p.render(c, http.StatusOK, "face_swap.tmpl", "Face swap", gin.H{"result": resp})
}

func (p *Pages) morphData(c *gin.Context, result *handlers.MorphResponse) gin.H {
	clusters := p.Env.Segment.Clusters
	if result != nil {
		clusters = result.Clusters
	}
	return gin.H{
		"result":      result,
		"clusters":    clusters,
		"maxClusters": handlers.MaxClusters,
	}
}

func (p *Pages) FaceMorphForm(c *gin.Context) {
	p.render(c, http.StatusOK, "face_morph.tmpl", "Face morph", p.morphData(c, nil))
}

func (p *Pages) FaceMorph(c *gin.Context) {
	resp, err := p.Env.FaceMorph(c)
	if err != nil {
		p.fail(c, err, "/face_morph")
		return
	}
	p.render(c, http.StatusOK, "face_morph.tmpl", "Face morph", p.morphData(c, resp))
}

func DisallowRobots(c *gin.Context) {
	c.String(http.StatusOK, "User-agent: *\nDisallow: /\n")
}
