package v1

import (
	"github.com/gin-gonic/gin"

	chathttp "github.com/360john360/childnur-sub000/internal/pkg/chat/presentation/http"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(r *gin.Engine, deps chathttp.Dependencies, uc chathttp.UseCases) {
	v1 := r.Group("/api/v1")
	chathttp.RegisterRoutes(v1, deps, uc)
}
