package router

import (
	"io"
	"net/http"
	"os"
	"strings"

	"emperror.dev/errors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/modules"
	"github.com/priyxstudio/sgo/modules/discovery"
	"github.com/priyxstudio/sgo/remote"
	"github.com/priyxstudio/sgo/router/middleware"
)

// Archive types accepted by the upload endpoint, checked against the sniffed
// content rather than the file name.
var acceptedArchiveTypes = []string{"application/zip", "application/gzip", "application/x-tar"}

// getModules returns every registered module.
// @Summary List modules
// @Description Returns modules ordered by sort order and name. Pass `active=true` to only list active modules.
// @Tags Modules
// @Produce json
// @Param active query bool false "Only return active modules"
// @Success 200 {object} router.ModuleListResponse
// @Failure 500 {object} ErrorResponse
// @Security BearerToken
// @Router /api/modules [get]
func getModules(c *gin.Context) {
	s := middleware.ExtractServices(c)
	list, err := s.Registry.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusOK, ModuleListResponse{Data: list})
}

// getModule returns a single module.
// @Summary Get module
// @Tags Modules
// @Produce json
// @Param slug path string true "Module slug"
// @Success 200 {object} models.Module
// @Failure 404 {object} ErrorResponse
// @Security BearerToken
// @Router /api/modules/{slug} [get]
func getModule(c *gin.Context) {
	m, err := middleware.ExtractServices(c).Registry.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// patchModule updates the administrator editable fields of a module.
// @Summary Update module
// @Tags Modules
// @Accept json
// @Produce json
// @Param slug path string true "Module slug"
// @Param body body modules.ModuleUpdate true "Fields to update"
// @Success 200 {object} models.Module
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerToken
// @Router /api/modules/{slug} [patch]
func patchModule(c *gin.Context) {
	var req modules.ModuleUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.CaptureAndAbort(c, middleware.InvalidRequest(err))
		return
	}
	m, err := middleware.ExtractServices(c).Registry.Update(c.Request.Context(), c.Param("slug"), req)
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// putModulesOrder reassigns the launcher order.
// @Summary Reorder modules
// @Tags Modules
// @Accept json
// @Param body body router.ModuleOrderRequest true "Slugs in launcher order"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerToken
// @Router /api/modules/order [put]
func putModulesOrder(c *gin.Context) {
	var req ModuleOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.CaptureAndAbort(c, middleware.InvalidRequest(err))
		return
	}
	if err := middleware.ExtractServices(c).Registry.Reorder(c.Request.Context(), req.Slugs); err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// deleteModule removes a module, its settings and its documents.
// @Summary Delete module
// @Tags Modules
// @Param slug path string true "Module slug"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Security BearerToken
// @Router /api/modules/{slug} [delete]
func deleteModule(c *gin.Context) {
	s := middleware.ExtractServices(c)
	if err := s.Registry.Delete(c.Request.Context(), c.Param("slug"), s.Installer.Root()); err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// postModuleInstall installs a module from an uploaded archive.
// @Summary Install module from upload
// @Tags Modules
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Module archive (.zip)"
// @Success 201 {object} router.InstallResponse
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Security BearerToken
// @Router /api/modules/install [post]
func postModuleInstall(c *gin.Context) {
	s := middleware.ExtractServices(c)
	limit := int64(config.Get().Api.UploadLimit) * 1024 * 1024
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "The uploaded archive exceeds the configured upload limit."})
			return
		}
		middleware.CaptureAndAbort(c, middleware.InvalidRequest(errors.New("a module archive must be uploaded in the \"file\" field")))
		return
	}

	src, err := header.Open()
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	defer src.Close()

	tmp, err := s.Installer.TempFile("upload-*" + archiveExtension(header.Filename))
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		middleware.CaptureAndAbort(c, errors.Wrap(err, "failed to store uploaded archive"))
		return
	}
	if err := tmp.Close(); err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}

	mime, err := mimetype.DetectFile(tmp.Name())
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	if !isArchive(mime) {
		middleware.CaptureAndAbort(c, errors.WrapIff(modules.ErrInvalidArchive, "uploaded file is %s", mime.String()))
		return
	}

	res, err := s.Installer.InstallFromFile(c.Request.Context(), tmp.Name())
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusCreated, newInstallResponse(res))
}

// postModuleInstallLink installs a module from a remote archive.
// @Summary Install module from URL
// @Description Downloads the archive server side. `authToken`, when present, is sent as a bearer token.
// @Tags Modules
// @Accept json
// @Produce json
// @Param body body router.InstallLinkRequest true "Archive location"
// @Success 201 {object} router.InstallResponse
// @Failure 400 {object} ErrorResponse
// @Security BearerToken
// @Router /api/modules/install-link [post]
func postModuleInstallLink(c *gin.Context) {
	var req InstallLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.CaptureAndAbort(c, middleware.InvalidRequest(err))
		return
	}
	if _, err := remote.ValidateURL(req.URL); err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}

	res, err := middleware.ExtractServices(c).Installer.InstallFromURL(c.Request.Context(), req.URL, req.AuthToken)
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusCreated, newInstallResponse(res))
}

// getDiscoveryStatus reports the state of the dev discovery loop.
// @Summary Dev discovery status
// @Tags Modules
// @Produce json
// @Success 200 {object} discovery.Status
// @Security BearerToken
// @Router /api/modules/discovery [get]
func getDiscoveryStatus(c *gin.Context) {
	d := middleware.ExtractServices(c).Discovery
	if d == nil {
		c.JSON(http.StatusOK, discovery.Status{Found: []string{}})
		return
	}
	c.JSON(http.StatusOK, d.Status())
}

// postDiscoveryScan runs a single discovery scan and waits for it.
// @Summary Run dev discovery scan
// @Tags Modules
// @Produce json
// @Success 200 {object} discovery.Result
// @Failure 409 {object} ErrorResponse
// @Security BearerToken
// @Router /api/modules/discovery/scan [post]
func postDiscoveryScan(c *gin.Context) {
	d := middleware.ExtractServices(c).Discovery
	if d == nil {
		c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{Error: "Dev module discovery is disabled in this environment."})
		return
	}
	res, err := d.ScanOnce(c.Request.Context())
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func newInstallResponse(res *modules.InstallResult) InstallResponse {
	return InstallResponse{
		Slug:       res.Slug,
		Name:       res.Name,
		Version:    res.Version,
		Installed:  true,
		Migrations: res.Migrations,
	}
}

func isArchive(mime *mimetype.MIME) bool {
	for m := mime; m != nil; m = m.Parent() {
		for _, t := range acceptedArchiveTypes {
			if m.Is(t) {
				return true
			}
		}
	}
	return false
}

// archiveExtension keeps the original extension so the installer can use it
// as a hint when identifying the format.
func archiveExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".tar.gz", ".tgz", ".tar", ".zip"} {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ".zip"
}
