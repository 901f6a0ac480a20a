package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadinessNotReadyWhileComponentsUnhealthy(t *testing.T) {
	for _, name := range criticalComponents {
		UpdateComponent(name, false, "not started")
	}
	rd := GetReadiness()
	assert.Equal(t, "not_ready", rd.Status)
}

func TestReadinessReadyOnceAllComponentsHealthy(t *testing.T) {
	for _, name := range criticalComponents {
		UpdateComponent(name, true, "")
	}
	rd := GetReadiness()
	assert.Equal(t, "ready", rd.Status)
}

func TestHealthUnhealthyIfAnyComponentUnhealthy(t *testing.T) {
	UpdateComponent("resourcemanager", true, "")
	UpdateComponent("rackresolver", false, "timeout contacting rack topology service")
	h := GetHealth()
	assert.Equal(t, "unhealthy", h.Status)
	assert.Contains(t, h.Components["rackresolver"], "timeout")
}

func TestHealthHandlerReturns503WhenUnhealthy(t *testing.T) {
	UpdateComponent("resourcemanager", false, "disconnected")
	w := httptest.NewRecorder()
	HealthHandler()(w, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 503, w.Code)
}
