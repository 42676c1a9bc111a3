package handler

import (
	"p2p-desk/internal/adapter/http/dto"
	"p2p-desk/internal/adapter/http/middleware"
	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/service"
	"p2p-desk/pkg/apperror"
	"p2p-desk/pkg/response"

	"github.com/gin-gonic/gin"
)

// requireSession returns the desk session of the request or writes a 401.
func requireSession(c *gin.Context) (*service.Session, bool) {
	sess := middleware.SessionFrom(c)
	if sess == nil {
		response.Error(c, apperror.ErrInvalidSession())
		return nil, false
	}
	return sess, true
}

func roleParam(c *gin.Context) (domain.Role, bool) {
	role, ok := domain.ParseRole(c.Param("role"))
	if !ok {
		response.Error(c, apperror.Validation("Unknown role: "+c.Param("role")))
		return "", false
	}
	return role, true
}

func actorParam(c *gin.Context) (domain.Actor, bool) {
	actor, ok := domain.ParseActor(c.Param("actor"))
	if !ok {
		response.Error(c, apperror.Validation("Unknown actor: "+c.Param("actor")))
		return "", false
	}
	return actor, true
}

func bindPage(c *gin.Context) (service.PageQuery, bool) {
	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return service.PageQuery{}, false
	}
	return service.PageQuery{Page: q.Page, Limit: q.Limit}, true
}

// bindOrderQuery reads the page and status filter of an order queue.
func bindOrderQuery(c *gin.Context) (service.OrderFilter, service.PageQuery, bool) {
	var q dto.OrderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return service.OrderFilter{}, service.PageQuery{}, false
	}
	dto.SanitizeStruct(&q)
	filter, err := service.ParseOrderFilter(q.Status)
	if err != nil {
		response.Error(c, err)
		return service.OrderFilter{}, service.PageQuery{}, false
	}
	return filter, service.PageQuery{Page: q.Page, Limit: q.Limit}, true
}
