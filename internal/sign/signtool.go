package sign

import (
	"context"
	"errors"
	"os"

	"github.com/odant/conan-freeimage/internal/builderr"
	"github.com/odant/conan-freeimage/pkgs/buildsys"
)

// Environment variables read by SignToolFromEnv.
const (
	EnvSignTool     = "FIPKG_SIGNTOOL"
	EnvCert         = "FIPKG_SIGN_CERT"
	EnvPassword     = "FIPKG_SIGN_PASSWORD"
	EnvTimestampURL = "FIPKG_TIMESTAMP_URL"
)

// DefaultTimestampURL is the RFC 3161 server used when none is configured.
const DefaultTimestampURL = "http://timestamp.digicert.com"

// SignTool signs files with the Windows SDK signtool.
type SignTool struct {
	Path         string
	CertFile     string
	Password     string
	TimestampURL string
	Runner       buildsys.Runner
}

var _ Signer = (*SignTool)(nil)

// SignToolFromEnv configures a SignTool from the environment. Fields set in
// fallback are used for variables the environment leaves unset. The
// certificate file is required.
func SignToolFromEnv(runner buildsys.Runner, fallback SignTool) (*SignTool, error) {
	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}
	s := &SignTool{
		Path:         getenv(EnvSignTool, fallback.Path),
		CertFile:     getenv(EnvCert, fallback.CertFile),
		Password:     getenv(EnvPassword, fallback.Password),
		TimestampURL: getenv(EnvTimestampURL, fallback.TimestampURL),
		Runner:       runner,
	}
	if s.Path == "" {
		s.Path = "signtool"
	}
	if s.TimestampURL == "" {
		s.TimestampURL = DefaultTimestampURL
	}
	if s.CertFile == "" {
		return nil, &builderr.SigningError{Err: errors.New(EnvCert + " is not set")}
	}
	return s, nil
}

// Args returns the signtool arguments for one signature. SHA-256 signatures
// are appended to the existing one.
func (s *SignTool) Args(path string, digest Digest, timestamp bool) []string {
	args := []string{"sign", "/fd", string(digest), "/f", s.CertFile}
	if s.Password != "" {
		args = append(args, "/p", s.Password)
	}
	if digest != SHA1 {
		args = append(args, "/as")
	}
	if timestamp {
		if digest == SHA1 {
			args = append(args, "/t", s.TimestampURL)
		} else {
			args = append(args, "/tr", s.TimestampURL, "/td", string(digest))
		}
	}
	return append(args, path)
}

func (s *SignTool) Sign(ctx context.Context, path string, digest Digest, timestamp bool) error {
	err := s.Runner.Run(ctx, buildsys.Command{Name: s.Path, Args: s.Args(path, digest, timestamp)})
	if err == nil {
		return nil
	}
	var nerr *builderr.NativeBuildError
	if errors.As(err, &nerr) && s.Password != "" {
		redacted := *nerr
		redacted.Args = redact(nerr.Args, s.Password)
		err = &redacted
	}
	return &builderr.SigningError{File: path, Digest: string(digest), Err: err}
}

func redact(args []string, secret string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if a == secret {
			a = "***"
		}
		out[i] = a
	}
	return out
}
