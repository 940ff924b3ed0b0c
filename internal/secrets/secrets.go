// Package secrets reads API credentials from AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// API is the subset of the Secrets Manager client in use.
type API interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// TwitterCredentials are the four OAuth1 tokens of the posting account.
type TwitterCredentials struct {
	ConsumerKey    string `json:"CONSUMER_KEY"`
	ConsumerSecret string `json:"CONSUMER_SECRET"`
	AccessToken    string `json:"ACCESS_TOKEN_KEY"`
	AccessSecret   string `json:"ACCESS_TOKEN_SECRET"`
}

func (c TwitterCredentials) validate() error {
	var missing []string
	if c.ConsumerKey == "" {
		missing = append(missing, "CONSUMER_KEY")
	}
	if c.ConsumerSecret == "" {
		missing = append(missing, "CONSUMER_SECRET")
	}
	if c.AccessToken == "" {
		missing = append(missing, "ACCESS_TOKEN_KEY")
	}
	if c.AccessSecret == "" {
		missing = append(missing, "ACCESS_TOKEN_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("secret is missing keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

type Client struct {
	api        API
	secretName string
}

func New(api API, secretName string) *Client {
	return &Client{api: api, secretName: secretName}
}

func NewFromEnv(ctx context.Context, region, secretName string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(secretsmanager.NewFromConfig(cfg), secretName), nil
}

func (c *Client) TwitterCredentials(ctx context.Context) (TwitterCredentials, error) {
	out, err := c.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(c.secretName),
	})
	if err != nil {
		return TwitterCredentials{}, fmt.Errorf("get secret %q: %w", c.secretName, err)
	}

	var raw []byte
	switch {
	case out.SecretString != nil:
		raw = []byte(*out.SecretString)
	case len(out.SecretBinary) > 0:
		// the SDK hands back raw bytes; some writers store base64 text in them
		if dec, derr := base64.StdEncoding.DecodeString(string(out.SecretBinary)); derr == nil {
			raw = dec
		} else {
			raw = out.SecretBinary
		}
	default:
		return TwitterCredentials{}, errors.New("secret has neither SecretString nor SecretBinary")
	}

	var creds TwitterCredentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return TwitterCredentials{}, fmt.Errorf("decode secret %q: %w", c.secretName, err)
	}
	if err := creds.validate(); err != nil {
		return TwitterCredentials{}, fmt.Errorf("secret %q: %w", c.secretName, err)
	}
	return creds, nil
}
