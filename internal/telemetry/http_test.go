package telemetry_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/victornm/examiner/internal/telemetry"
)

func TestHTTPLogger_RecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(telemetry.HTTPLogger())
	e.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	before := testutil.CollectAndCount(telemetry.HTTPRequestDuration)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/43", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.CollectAndCount(telemetry.HTTPRequestDuration),
		"requests to the same route share one series")
}
