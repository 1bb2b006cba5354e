package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticValidator map[string]string

func (v staticValidator) Validate(token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

type countingRecorder map[int]int

func (r countingRecorder) Request(_ string, status int) { r[status]++ }

func TestRequireAuth(t *testing.T) {
	app := fiber.New()
	app.Use(RequireAuth(staticValidator{"good": "u1"}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(UserID(c)) })

	cases := map[string]int{
		"":             fiber.StatusUnauthorized,
		"Basic abc":    fiber.StatusUnauthorized,
		"Bearer ":      fiber.StatusUnauthorized,
		"Bearer wrong": fiber.StatusUnauthorized,
		"Bearer good":  fiber.StatusOK,
	}
	for hdr, want := range cases {
		req := httptest.NewRequest("GET", "/", nil)
		if hdr != "" {
			req.Header.Set("Authorization", hdr)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, hdr)
	}
}

func TestRateLimiter(t *testing.T) {
	app := fiber.New()
	rec := countingRecorder{}
	app.Use(AccessLog(zap.NewNop(), rec))
	app.Use(NewIPRateLimiter(1, 2, zap.NewNop()).Handler())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{204, 204, 429}, codes)
	assert.Equal(t, 2, rec[204])
	assert.Equal(t, 1, rec[429])
}
