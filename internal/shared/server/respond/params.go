package respond

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UUIDParam reads a path parameter that must be a UUID. On failure it writes
// a 400 and returns false.
func UUIDParam(c *gin.Context, name string) (string, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := uuid.Parse(raw)
	if err != nil {
		Error(c, http.StatusBadRequest, "validation_error", "invalid "+name, nil)
		return "", false
	}
	return id.String(), true
}

// DocumentID reads and validates the :id parameter and tags the request log
// with it.
func DocumentID(c *gin.Context) (string, bool) {
	id, ok := UUIDParam(c, "id")
	if ok {
		c.Set("documentId", id)
	}
	return id, ok
}
