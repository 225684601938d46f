package controller

import (
	"github.com/gin-gonic/gin"

	"returns-reconciliation-service/internal/middleware"
	"returns-reconciliation-service/internal/service"
)

type Routes struct {
	Returns *ReturnsController
	Forms   *FormsController
	Auth    gin.HandlerFunc
	Health  gin.HandlerFunc
}

func (rt Routes) Register(r gin.IRouter) {
	// public
	r.GET("/health", rt.Health)
	r.POST("/forms", rt.Forms.Submit)
	r.GET("/forms/return-number", rt.Forms.NextReturnNumber)

	// operators
	auth := r.Group("/")
	auth.Use(rt.Auth)
	auth.GET("/returns", rt.Returns.ListReturns)
	auth.GET("/returns/:id", rt.Returns.GetReturn)
	auth.GET("/returns/:id/history", rt.Returns.History)
	auth.GET("/sync/runs", rt.Returns.ListRuns)
	auth.GET("/submissions/:number/photos", rt.Forms.ListPhotos)
	auth.GET("/photos/:id", rt.Forms.GetPhoto)

	write := auth.Group("/")
	write.Use(middleware.RequirePermission(service.PermissionReturnsWrite))
	write.PATCH("/returns/:id/status", rt.Returns.UpdateStatus)
	write.POST("/sync/:source", rt.Returns.RunSync)
}
