package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListModels(t *testing.T) {
	routerSvc := newTestRouter(t)
	h := NewModelsHandler(routerSvc)

	app := fiber.New()
	app.Get("/models", h.ListModels)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/models", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body ListModelsResponse
	decodeBody(t, resp, &body)

	assert.Equal(t, "gemini-2.5-flash", body.DefaultModel)
	assert.Equal(t, len(body.Models), body.Count)
	require.NotEmpty(t, body.Models)

	seenDefault := false
	for _, m := range body.Models {
		assert.NotEmpty(t, m.ID)
		assert.NotEmpty(t, m.Tier)
		if m.ID == body.DefaultModel {
			seenDefault = true
		}
	}
	assert.True(t, seenDefault, "default model must be a catalog entry")
}
