package authmw

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/datachat/backend/internal/auth"
)

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	tokens, err := auth.NewTokenManager("test-secret", 60)
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	app := fiber.New()
	app.Get("/protected", RequireAuth(tokens), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRequireAuthAcceptsBearerToken(t *testing.T) {
	tokens, err := auth.NewTokenManager("test-secret", 60)
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	app := fiber.New()
	app.Get("/protected", RequireAuth(tokens), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	token, err := tokens.Issue("u1", "free")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRequireAuthUpgradeRejectsAnonymous(t *testing.T) {
	tokens, err := auth.NewTokenManager("test-secret", 60)
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	app := fiber.New()
	app.Get("/ws/chat", RequireAuthUpgrade(tokens), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/ws/chat", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("anonymous upgrade: status = %d, want 401", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/ws/chat?token=not.a.token", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", resp.StatusCode)
	}
}

func TestRequireAuthUpgradeAcceptsQueryToken(t *testing.T) {
	tokens, err := auth.NewTokenManager("test-secret", 60)
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	app := fiber.New()
	app.Get("/ws/chat", RequireAuthUpgrade(tokens), func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		tier, _ := c.Locals("tier").(string)
		if userID != "u1" || tier != "pro" {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	token, err := tokens.Issue("u1", "pro")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/ws/chat?token="+token, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d, want 200 with claims in locals", resp.StatusCode)
	}
}
