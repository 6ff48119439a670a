package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListStores(c *gin.Context) {
	stores, err := s.refrepo.ListStores(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stores})
}

func (s *Server) ListStoreDepartments(c *gin.Context) {
	storeID, err := parseOptionalSnowflakeID(c.Param("id"))
	if err != nil || storeID == nil {
		AbortWithError(c, newValidationError("id", "invalid_store_id", "invalid store id"))
		return
	}

	departments, err := s.refrepo.ListDepartmentsByStore(c.Request.Context(), *storeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": departments})
}

func (s *Server) ListCategories(c *gin.Context) {
	categories, err := s.refrepo.ListCategories(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": categories})
}

func (s *Server) ListCategorySubcategories(c *gin.Context) {
	categoryID, err := parseOptionalSnowflakeID(strings.TrimSpace(c.Param("id")))
	if err != nil || categoryID == nil {
		AbortWithError(c, newValidationError("id", "invalid_category_id", "invalid category id"))
		return
	}

	subcategories, err := s.refrepo.ListSubcategoriesByCategory(c.Request.Context(), *categoryID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subcategories})
}
