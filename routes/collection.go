package routes

import (
	"net/http"

	"customer-support-rag/internal/vectorstore"
	"customer-support-rag/utils"

	"github.com/gin-gonic/gin"
)

func SetupCollectionRoutes(router *gin.Engine, store *vectorstore.Store) {
	collection := router.Group("/api/v1/collection")
	collection.GET("/status", CollectionStatus(store))
}

// CollectionStatus reports the vector collection's existence, row count
// and dimensionality. Exists=false means the collection has not been
// created yet.
func CollectionStatus(store *vectorstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := store.Status(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read collection status", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, status)
	}
}
