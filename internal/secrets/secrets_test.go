package secrets

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type fakeAPI struct {
	out *secretsmanager.GetSecretValueOutput
	err error
	id  string
}

func (f *fakeAPI) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.id = aws.ToString(in.SecretId)
	return f.out, f.err
}

const fullSecret = `{"CONSUMER_KEY":"ck","CONSUMER_SECRET":"cs","ACCESS_TOKEN_KEY":"at","ACCESS_TOKEN_SECRET":"as"}`

func TestTwitterCredentials_SecretString(t *testing.T) {
	api := &fakeAPI{out: &secretsmanager.GetSecretValueOutput{SecretString: aws.String(fullSecret)}}
	creds, err := New(api, "TwitterApiTokenForBms").TwitterCredentials(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if api.id != "TwitterApiTokenForBms" {
		t.Fatalf("wrong secret id: %q", api.id)
	}
	want := TwitterCredentials{ConsumerKey: "ck", ConsumerSecret: "cs", AccessToken: "at", AccessSecret: "as"}
	if creds != want {
		t.Fatalf("got %+v want %+v", creds, want)
	}
}

func TestTwitterCredentials_Base64Binary(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString([]byte(fullSecret))
	api := &fakeAPI{out: &secretsmanager.GetSecretValueOutput{SecretBinary: []byte(enc)}}
	creds, err := New(api, "s").TwitterCredentials(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if creds.AccessSecret != "as" {
		t.Fatalf("binary secret not decoded: %+v", creds)
	}
}

func TestTwitterCredentials_MissingKeys(t *testing.T) {
	api := &fakeAPI{out: &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"CONSUMER_KEY":"ck"}`)}}
	_, err := New(api, "s").TwitterCredentials(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ACCESS_TOKEN_SECRET") {
		t.Fatalf("want missing-key error, got %v", err)
	}
}

func TestTwitterCredentials_APIError(t *testing.T) {
	api := &fakeAPI{err: errors.New("AccessDeniedException")}
	if _, err := New(api, "s").TwitterCredentials(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
