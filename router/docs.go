package router

//go:generate sh -c "cd .. && swag init --generalInfo router/docs.go --output docs/swagger --parseDependency --parseInternal --quiet"

// @title SGO API
// @version 1.0
// @description API of the SGO module chassi: module registry, installs, dev discovery and generic module storage.
// @BasePath /
// @schemes https http
// @securityDefinitions.apikey BearerToken
// @description Session token returned by `POST /api/auth/login`, sent as `Authorization: Bearer <token>`.
// @in header
// @name Authorization
// @contact.name priyxstudio
// @contact.url https://github.com/priyxstudio/sgo
// @produce json
