// Package secrets reads credentials from AWS SSM Parameter Store and fills
// the blanks in the loaded configuration.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog/log"

	"github.com/leadintake/internal/config"
)

// ssmAPI is the part of *ssm.Client the package needs
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter fetches a single decrypted parameter
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ErrNotFound is returned when the parameter does not exist
var ErrNotFound = errors.New("secrets: parameter not found")

// Client wraps an AWS SSM API for parameter retrieval.
type Client struct {
	api ssmAPI
}

func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("secrets: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("secrets: name is required")
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		var nf *types.ParameterNotFound
		if errors.As(err, &nf) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("secrets: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("secrets: parameter %q has no value", name)
	}
	return *out.Parameter.Value, nil
}

// Apply loads every secret that is still empty in cfg from prefix + name.
// Missing parameters are skipped; any other failure aborts.
func Apply(ctx context.Context, g Getter, prefix string, cfg *config.Config) error {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil
	}

	targets := []struct {
		name string
		dst  *string
	}{
		{"ai/api_key", &cfg.AI.APIKey},
		{"auth/jwt_secret", &cfg.Auth.JWTSecret},
		{"database/url", &cfg.Database.URL},
		{"notify/smtp_password", &cfg.Notify.SMTP.Password},
		{"notify/twilio_auth_token", &cfg.Notify.Twilio.AuthToken},
	}

	loaded := 0
	for _, tgt := range targets {
		if *tgt.dst != "" {
			continue
		}
		v, err := g.GetParameter(ctx, prefix+"/"+tgt.name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		*tgt.dst = v
		loaded++
	}

	log.Info().Str("prefix", prefix).Int("loaded", loaded).Msg("Secrets loaded from parameter store")
	return nil
}
