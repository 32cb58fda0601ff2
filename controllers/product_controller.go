package controllers

import (
	"net/http"

	"github.com/Dayvhiid/Simple-E-commerce-API/middleware"
	"github.com/Dayvhiid/Simple-E-commerce-API/models"
	"github.com/Dayvhiid/Simple-E-commerce-API/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProductController struct {
	svc    services.ProductService
	logger *zap.Logger
}

func NewProductController(svc services.ProductService, logger *zap.Logger) *ProductController {
	return &ProductController{svc: svc, logger: logger}
}

// GetProducts returns one page of the catalogue. page and perPage are optional.
func (pc *ProductController) GetProducts(c *gin.Context) {
	page, err := pc.svc.List(c.Request.Context(), queryInt(c, "page"), queryInt(c, "perPage"))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetMyProducts lists the products owned by the caller.
func (pc *ProductController) GetMyProducts(c *gin.Context) {
	page, err := pc.svc.ListByOwner(c.Request.Context(), middleware.UserID(c), queryInt(c, "page"), queryInt(c, "perPage"))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (pc *ProductController) GetProductByID(c *gin.Context) {
	product, err := pc.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (pc *ProductController) CreateProduct(c *gin.Context) {
	var in models.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid JSON body")
		return
	}

	product, err := pc.svc.Create(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// UpdateProduct applies a partial update; only fields present in the body change.
func (pc *ProductController) UpdateProduct(c *gin.Context) {
	var in models.ProductUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid JSON body")
		return
	}

	product, err := pc.svc.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), in)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (pc *ProductController) DeleteProduct(c *gin.Context) {
	if err := pc.svc.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
