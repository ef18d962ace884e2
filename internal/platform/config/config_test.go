package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"API_FIRESTORE_PROJECT_ID": "demo-project",
		"API_AUTH_JWT_SECRET":      "test-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(baseEnv()),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("unexpected port %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected read timeout %s", cfg.Server.ReadTimeout)
	}
	if cfg.Payments.ChargeTimeout != 10*time.Second {
		t.Fatalf("unexpected charge timeout %s", cfg.Payments.ChargeTimeout)
	}
	if cfg.Payments.DefaultCurrency != "USD" {
		t.Fatalf("unexpected currency %q", cfg.Payments.DefaultCurrency)
	}
	if cfg.Shipping.DefaultCarrier != "Standard Delivery" {
		t.Fatalf("unexpected carrier %q", cfg.Shipping.DefaultCarrier)
	}
	if cfg.Shipping.DeliveryDays != 5 {
		t.Fatalf("unexpected delivery days %d", cfg.Shipping.DeliveryDays)
	}
	if cfg.PubSub.ProjectID != "demo-project" {
		t.Fatalf("pubsub project should default to firestore project, got %q", cfg.PubSub.ProjectID)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	env := baseEnv()
	env["API_SERVER_PORT"] = "9000"
	env["API_PAYMENTS_CHARGE_TIMEOUT"] = "3s"
	env["API_PAYMENTS_DEFAULT_CURRENCY"] = "eur"
	env["API_SHIPPING_DELIVERY_DAYS"] = "7"

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Fatalf("unexpected port %q", cfg.Server.Port)
	}
	if cfg.Payments.ChargeTimeout != 3*time.Second {
		t.Fatalf("unexpected charge timeout %s", cfg.Payments.ChargeTimeout)
	}
	if cfg.Payments.DefaultCurrency != "EUR" {
		t.Fatalf("currency should be upper-cased, got %q", cfg.Payments.DefaultCurrency)
	}
	if cfg.Shipping.DeliveryDays != 7 {
		t.Fatalf("unexpected delivery days %d", cfg.Shipping.DeliveryDays)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "API_FIRESTORE_PROJECT_ID=dotenv-project\nAPI_AUTH_JWT_SECRET=\"dotenv-secret\"\n# comment\nexport API_SERVER_PORT=7777\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(path),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Firestore.ProjectID != "dotenv-project" {
		t.Fatalf("unexpected project %q", cfg.Firestore.ProjectID)
	}
	if cfg.Auth.JWTSecret != "dotenv-secret" {
		t.Fatalf("quotes should be stripped, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Server.Port != "7777" {
		t.Fatalf("export prefix should be accepted, got %q", cfg.Server.Port)
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	env := baseEnv()
	env["API_PAYMENTS_STRIPE_API_KEY"] = "secret://projects/demo/secrets/stripe/versions/latest"

	var requested string
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		requested = ref
		return "sk_test_resolved", nil
	})

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Payments.StripeAPIKey != "sk_test_resolved" {
		t.Fatalf("unexpected stripe key %q", cfg.Payments.StripeAPIKey)
	}
	if requested != "secret://projects/demo/secrets/stripe/versions/latest" {
		t.Fatalf("unexpected resolved ref %q", requested)
	}
}

func TestLoadNormalisesSMReferences(t *testing.T) {
	env := baseEnv()
	env["API_AUTH_JWT_SECRET"] = "sm://projects/demo/secrets/jwt/versions/1"

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://projects/demo/secrets/jwt/versions/1" {
			return "", errors.New("unexpected ref " + ref)
		}
		return "normalised", nil
	})

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.JWTSecret != "normalised" {
		t.Fatalf("unexpected secret %q", cfg.Auth.JWTSecret)
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := baseEnv()
	env["API_PAYMENTS_STRIPE_API_KEY"] = "secret://broken"

	resolver := SecretResolverFunc(func(context.Context, string) (string, error) {
		return "", errors.New("boom")
	})

	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
		WithSecretResolver(resolver),
	)

	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if secretErr.Ref != "secret://broken" {
		t.Fatalf("unexpected ref %q", secretErr.Ref)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{}),
	)

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	fields := validationErr.Fields()
	wantMissing := map[string]bool{"Firestore.ProjectID": false, "Auth.JWTSecret": false}
	for _, field := range fields {
		if _, ok := wantMissing[field]; ok {
			wantMissing[field] = true
		}
	}
	for field, seen := range wantMissing {
		if !seen {
			t.Fatalf("expected %s in validation fields %v", field, fields)
		}
	}
}
