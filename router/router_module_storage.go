package router

import (
	"net/http"
	"strconv"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"

	"github.com/priyxstudio/sgo/internal/models"
	"github.com/priyxstudio/sgo/router/middleware"
)

// ModuleExists ensures the module referenced by :moduleId is registered and
// attaches it to the request.
func ModuleExists() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("moduleId"), 10, 64)
		if err != nil || id == 0 {
			middleware.CaptureAndAbort(c, middleware.InvalidRequest(errors.New("module id must be a positive integer")))
			return
		}
		m, err := middleware.ExtractServices(c).Registry.GetByID(c.Request.Context(), uint(id))
		if err != nil {
			middleware.CaptureAndAbort(c, err)
			return
		}
		c.Set("module", m)
		c.Next()
	}
}

func extractModule(c *gin.Context) *models.Module {
	return c.MustGet("module").(*models.Module)
}

// getModuleConfigs lists every setting of a module.
// @Summary List module settings
// @Tags Module Config
// @Produce json
// @Param moduleId path int true "Module id"
// @Success 200 {object} router.ModuleConfigListResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerToken
// @Router /api/module-config/{moduleId} [get]
func getModuleConfigs(c *gin.Context) {
	list, err := middleware.ExtractServices(c).Config.List(c.Request.Context(), extractModule(c).ID)
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusOK, ModuleConfigListResponse{Data: list})
}

// getModuleConfig returns a single setting.
// @Summary Get module setting
// @Tags Module Config
// @Produce json
// @Param moduleId path int true "Module id"
// @Param key path string true "Setting key"
// @Success 200 {object} models.ModuleConfig
// @Failure 404 {object} ErrorResponse
// @Security BearerToken
// @Router /api/module-config/{moduleId}/{key} [get]
func getModuleConfig(c *gin.Context) {
	v, err := middleware.ExtractServices(c).Config.Get(c.Request.Context(), extractModule(c).ID, c.Param("key"))
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// putModuleConfig inserts or replaces a setting.
// @Summary Set module setting
// @Tags Module Config
// @Accept json
// @Produce json
// @Param moduleId path int true "Module id"
// @Param key path string true "Setting key"
// @Param body body router.ModuleConfigRequest true "Value and optional type"
// @Success 200 {object} models.ModuleConfig
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerToken
// @Router /api/module-config/{moduleId}/{key} [put]
func putModuleConfig(c *gin.Context) {
	var req ModuleConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.CaptureAndAbort(c, middleware.InvalidRequest(err))
		return
	}
	v, err := middleware.ExtractServices(c).Config.Set(c.Request.Context(), extractModule(c).ID, c.Param("key"), req.Value, req.Type)
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// deleteModuleConfig removes a setting.
// @Summary Delete module setting
// @Tags Module Config
// @Param moduleId path int true "Module id"
// @Param key path string true "Setting key"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Security BearerToken
// @Router /api/module-config/{moduleId}/{key} [delete]
func deleteModuleConfig(c *gin.Context) {
	if err := middleware.ExtractServices(c).Config.Delete(c.Request.Context(), extractModule(c).ID, c.Param("key")); err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// getModuleDataList lists the documents of an entity type, newest first.
// @Summary List module documents
// @Tags Module Data
// @Produce json
// @Param moduleId path int true "Module id"
// @Param entityType path string true "Entity type"
// @Param limit query int false "Maximum number of documents"
// @Param offset query int false "Documents to skip"
// @Success 200 {object} router.ModuleDataListResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerToken
// @Router /api/module-data/{moduleId}/{entityType} [get]
func getModuleDataList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	list, err := middleware.ExtractServices(c).Data.List(c.Request.Context(), extractModule(c).ID, c.Param("entityType"), limit, offset)
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusOK, ModuleDataListResponse{Data: list})
}

// getModuleData returns a single document.
// @Summary Get module document
// @Tags Module Data
// @Produce json
// @Param moduleId path int true "Module id"
// @Param entityType path string true "Entity type"
// @Param entityId path string true "Entity id"
// @Success 200 {object} models.ModuleData
// @Failure 404 {object} ErrorResponse
// @Security BearerToken
// @Router /api/module-data/{moduleId}/{entityType}/{entityId} [get]
func getModuleData(c *gin.Context) {
	d, err := middleware.ExtractServices(c).Data.Get(c.Request.Context(), extractModule(c).ID, c.Param("entityType"), c.Param("entityId"))
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// postModuleData stores a new document. Without an id the current Unix time
// in milliseconds is used.
// @Summary Create module document
// @Tags Module Data
// @Accept json
// @Produce json
// @Param moduleId path int true "Module id"
// @Param entityType path string true "Entity type"
// @Param body body router.ModuleDataRequest true "Document"
// @Success 201 {object} models.ModuleData
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerToken
// @Router /api/module-data/{moduleId}/{entityType} [post]
func postModuleData(c *gin.Context) {
	var req ModuleDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.CaptureAndAbort(c, middleware.InvalidRequest(err))
		return
	}
	d, err := middleware.ExtractServices(c).Data.Create(c.Request.Context(), extractModule(c).ID, c.Param("entityType"), req.ID, req.Data)
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// putModuleData replaces the body of a document.
// @Summary Replace module document
// @Tags Module Data
// @Accept json
// @Produce json
// @Param moduleId path int true "Module id"
// @Param entityType path string true "Entity type"
// @Param entityId path string true "Entity id"
// @Param body body router.ModuleDataRequest true "Document"
// @Success 200 {object} models.ModuleData
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerToken
// @Router /api/module-data/{moduleId}/{entityType}/{entityId} [put]
func putModuleData(c *gin.Context) {
	var req ModuleDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.CaptureAndAbort(c, middleware.InvalidRequest(err))
		return
	}
	d, err := middleware.ExtractServices(c).Data.Replace(c.Request.Context(), extractModule(c).ID, c.Param("entityType"), c.Param("entityId"), req.Data)
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// patchModuleData deep merges the request into a document.
// @Summary Merge into module document
// @Tags Module Data
// @Accept json
// @Produce json
// @Param moduleId path int true "Module id"
// @Param entityType path string true "Entity type"
// @Param entityId path string true "Entity id"
// @Param body body router.ModuleDataRequest true "Partial document"
// @Success 200 {object} models.ModuleData
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerToken
// @Router /api/module-data/{moduleId}/{entityType}/{entityId} [patch]
func patchModuleData(c *gin.Context) {
	var req ModuleDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.CaptureAndAbort(c, middleware.InvalidRequest(err))
		return
	}
	d, err := middleware.ExtractServices(c).Data.Merge(c.Request.Context(), extractModule(c).ID, c.Param("entityType"), c.Param("entityId"), req.Data)
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// deleteModuleData removes a document.
// @Summary Delete module document
// @Tags Module Data
// @Param moduleId path int true "Module id"
// @Param entityType path string true "Entity type"
// @Param entityId path string true "Entity id"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Security BearerToken
// @Router /api/module-data/{moduleId}/{entityType}/{entityId} [delete]
func deleteModuleData(c *gin.Context) {
	if err := middleware.ExtractServices(c).Data.Delete(c.Request.Context(), extractModule(c).ID, c.Param("entityType"), c.Param("entityId")); err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
