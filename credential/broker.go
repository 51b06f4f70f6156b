// credential/broker.go
package credential

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"

	gk_errors "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/errors"
	logger "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/logging"
)

// integritySlack absorbs provider-side rounding when checking the granted
// lifetime against the requested maximum.
const integritySlack = time.Minute

type stsAPI interface {
	AssumeRoleWithWebIdentity(ctx context.Context, params *sts.AssumeRoleWithWebIdentityInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleWithWebIdentityOutput, error)
}

// TokenSource supplies the trust assertion presented to the identity
// provider. How the assertion is produced is the CI system's business.
type TokenSource func() (string, error)

// FileTokenSource reads the web identity token from the file named by
// AWS_WEB_IDENTITY_TOKEN_FILE, the convention CI runners use.
func FileTokenSource() (string, error) {
	path := os.Getenv("AWS_WEB_IDENTITY_TOKEN_FILE")
	if path == "" {
		return "", fmt.Errorf("AWS_WEB_IDENTITY_TOKEN_FILE not set")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read web identity token: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Broker exchanges a scoped trust assertion for temporary operational
// credentials. It validates that the granted credential is no broader than
// the environment it was requested for; a wider grant is an integrity
// failure, never silently accepted.
type Broker struct {
	client   stsAPI
	roleARNs map[string]string
	tokens   TokenSource
}

// NewBroker wires the broker against real STS using the ambient AWS
// configuration.
func NewBroker(ctx context.Context, roleARNs map[string]string, tokens TokenSource) (*Broker, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewBrokerWithClient(sts.NewFromConfig(cfg), roleARNs, tokens), nil
}

// NewBrokerWithClient injects the STS client, for tests.
func NewBrokerWithClient(client stsAPI, roleARNs map[string]string, tokens TokenSource) *Broker {
	return &Broker{client: client, roleARNs: roleARNs, tokens: tokens}
}

// Obtain performs the trust exchange for the named environment. The caller
// must hold an allow decision; the pipeline enforces that ordering.
func (b *Broker) Obtain(ctx context.Context, environment string, maxLifetime time.Duration) (Credential, error) {
	roleARN, ok := b.roleARNs[environment]
	if !ok {
		return Credential{}, fmt.Errorf("%w: %q", gk_errors.ErrUnknownEnvironment, environment)
	}

	token, err := b.tokens()
	if err != nil {
		return Credential{}, fmt.Errorf("trust assertion unavailable: %w", err)
	}

	now := time.Now()
	out, err := b.client.AssumeRoleWithWebIdentity(ctx, &sts.AssumeRoleWithWebIdentityInput{
		RoleArn:          aws.String(roleARN),
		RoleSessionName:  aws.String("gatekeeper-" + environment),
		WebIdentityToken: aws.String(token),
		DurationSeconds:  aws.Int32(int32(maxLifetime / time.Second)),
	})
	if err != nil {
		return Credential{}, fmt.Errorf("trust exchange failed: %w", err)
	}

	if err := validateGrant(out, roleARN, environment, now, maxLifetime); err != nil {
		return Credential{}, err
	}

	logger.Info("Credential obtained",
		zap.String("environment", environment),
		zap.Time("expiresAt", *out.Credentials.Expiration))
	return Credential{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Scope:           environment,
		ExpiresAt:       *out.Credentials.Expiration,
	}, nil
}

// validateGrant rejects a credential whose effective scope or lifetime is
// broader than requested. This defends against a misconfigured trust policy
// granting cross-environment access.
func validateGrant(out *sts.AssumeRoleWithWebIdentityOutput, roleARN, environment string, requestedAt time.Time, maxLifetime time.Duration) error {
	if out.Credentials == nil || out.Credentials.Expiration == nil {
		return fmt.Errorf("%w: provider returned no credential material", gk_errors.ErrCredentialIntegrity)
	}
	if out.AssumedRoleUser == nil || out.AssumedRoleUser.Arn == nil {
		return fmt.Errorf("%w: provider did not identify the assumed role", gk_errors.ErrCredentialIntegrity)
	}

	requestedRole, err := roleName(roleARN)
	if err != nil {
		return fmt.Errorf("%w: %v", gk_errors.ErrCredentialIntegrity, err)
	}
	grantedRole, err := assumedRoleName(*out.AssumedRoleUser.Arn)
	if err != nil {
		return fmt.Errorf("%w: %v", gk_errors.ErrCredentialIntegrity, err)
	}
	if grantedRole != requestedRole {
		return fmt.Errorf("%w: requested role %q for %q, provider granted %q",
			gk_errors.ErrCredentialIntegrity, requestedRole, environment, grantedRole)
	}

	if out.Credentials.Expiration.After(requestedAt.Add(maxLifetime + integritySlack)) {
		return fmt.Errorf("%w: granted lifetime ends %s, requested at most %s",
			gk_errors.ErrCredentialIntegrity,
			out.Credentials.Expiration.UTC().Format(time.RFC3339), maxLifetime)
	}
	return nil
}

// roleName extracts the role name from an IAM role ARN,
// arn:aws:iam::<account>:role/<name>. Typed parsing, not substring trust:
// a malformed ARN is rejected outright.
func roleName(arn string) (string, error) {
	const marker = ":role/"
	idx := strings.Index(arn, marker)
	if !strings.HasPrefix(arn, "arn:") || idx < 0 {
		return "", fmt.Errorf("malformed role ARN %q", arn)
	}
	name := arn[idx+len(marker):]
	if name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("malformed role ARN %q", arn)
	}
	return name, nil
}

// assumedRoleName extracts the role name from an assumed-role ARN,
// arn:aws:sts::<account>:assumed-role/<name>/<session>.
func assumedRoleName(arn string) (string, error) {
	const marker = ":assumed-role/"
	idx := strings.Index(arn, marker)
	if !strings.HasPrefix(arn, "arn:") || idx < 0 {
		return "", fmt.Errorf("malformed assumed-role ARN %q", arn)
	}
	rest := arn[idx+len(marker):]
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", fmt.Errorf("malformed assumed-role ARN %q", arn)
	}
	return parts[0], nil
}
