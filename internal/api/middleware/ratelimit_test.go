package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"banappeals/backend/internal/api/middleware"
)

// TestSubmitRateLimit verifies requests beyond the per-IP burst are
// bounced home instead of reaching the handler.
func TestSubmitRateLimit(t *testing.T) {
	r := gin.New()
	handled := 0
	r.POST("/submit", middleware.SubmitRateLimit(2), func(c *gin.Context) {
		handled++
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/submit", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusFound}, codes)
	assert.Equal(t, 2, handled, "the limited request must not reach the handler")
}
