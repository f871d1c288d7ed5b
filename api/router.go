// Package api exposes map sessions over HTTP.
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/mapsvc"
	"github.com/s3kfm/lezhure-maps/mapview"
)

// Server translates HTTP requests into MapService calls.
type Server struct {
	backend mapsvc.MapService
}

func NewServer(backend mapsvc.MapService) *Server {
	return &Server{backend: backend}
}

// Router returns the gin engine serving the /api routes. Extra middleware
// runs after recovery and CORS.
func (s *Server) Router(middleware ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), cors())
	r.Use(middleware...)

	r.GET("/api/sessions", s.listSessions)
	r.POST("/api/sessions", s.createSession)
	r.POST("/api/sessions/:id/settle", s.settle)
	r.GET("/api/sessions/:id/ops", s.drain)
	r.GET("/api/sessions/:id/stream", s.stream)
	r.GET("/api/sessions/:id/events/:eventId", s.selectEvent)
	r.GET("/api/sessions/:id/summary", s.summary)
	r.DELETE("/api/sessions/:id", s.closeSession)

	return r
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// httpStatus maps a service error to an HTTP status code.
func httpStatus(err error) int {
	switch status.Code(err) {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(httpStatus(err), gin.H{"error": status.Convert(err).Message()})
}

// bindOptionalJSON decodes the body into v, accepting an empty body.
func bindOptionalJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// viewFromQuery reads ?lat=&lng=&zoom=&width=&height=. It returns nil when
// zoom is absent.
func viewFromQuery(c *gin.Context) (*mapview.View, error) {
	if c.Query("zoom") == "" {
		return nil, nil
	}
	zoom, err := strconv.Atoi(c.Query("zoom"))
	if err != nil {
		return nil, fmt.Errorf("invalid zoom parameter")
	}

	floats := map[string]float64{}
	for _, name := range []string{"lat", "lng", "width", "height"} {
		v, err := strconv.ParseFloat(c.Query(name), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s parameter", name)
		}
		floats[name] = v
	}

	return &mapview.View{
		Center: cluster.LatLng{Lat: floats["lat"], Lng: floats["lng"]},
		Zoom:   zoom,
		Width:  floats["width"],
		Height: floats["height"],
	}, nil
}

func (s *Server) listSessions(c *gin.Context) {
	resp, err := s.backend.ListSessions(c.Request.Context(), &mapsvc.ListSessionsRequest{})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) createSession(c *gin.Context) {
	var req mapsvc.CreateSessionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	resp, err := s.backend.CreateSession(c.Request.Context(), &req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp.Session)
}

func (s *Server) settle(c *gin.Context) {
	req := mapsvc.SettleRequest{}
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.SessionID = c.Param("id")

	view, err := viewFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if view != nil {
		req.View = view
	}

	resp, err := s.backend.Settle(c.Request.Context(), &req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) drain(c *gin.Context) {
	resp, err := s.backend.Drain(c.Request.Context(), &mapsvc.DrainRequest{SessionID: c.Param("id")})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) selectEvent(c *gin.Context) {
	resp, err := s.backend.Select(c.Request.Context(), &mapsvc.SelectRequest{
		SessionID: c.Param("id"),
		EventID:   c.Param("eventId"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.Detail)
}

func (s *Server) summary(c *gin.Context) {
	resp, err := s.backend.Summary(c.Request.Context(), &mapsvc.SummaryRequest{SessionID: c.Param("id")})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.Summary)
}

func (s *Server) closeSession(c *gin.Context) {
	_, err := s.backend.CloseSession(c.Request.Context(), &mapsvc.CloseSessionRequest{SessionID: c.Param("id")})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
