// credential/broker_test.go
package credential_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/credential"
	gk_errors "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/errors"
	logger "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/logging"
)

func TestMain(m *testing.M) {
	logger.InitLogger("../logging")
	os.Exit(m.Run())
}

type fakeSTS struct {
	output *sts.AssumeRoleWithWebIdentityOutput
	err    error
	input  *sts.AssumeRoleWithWebIdentityInput
}

func (f *fakeSTS) AssumeRoleWithWebIdentity(ctx context.Context, params *sts.AssumeRoleWithWebIdentityInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleWithWebIdentityOutput, error) {
	f.input = params
	return f.output, f.err
}

var roleARNs = map[string]string{
	"dev":  "arn:aws:iam::123456789012:role/gatekeeper-dev",
	"prod": "arn:aws:iam::123456789012:role/gatekeeper-prod",
}

func staticToken() (string, error) { return "ci-trust-token", nil }

func grant(role string, lifetime time.Duration) *sts.AssumeRoleWithWebIdentityOutput {
	return &sts.AssumeRoleWithWebIdentityOutput{
		Credentials: &types.Credentials{
			AccessKeyId:     aws.String("ASIAEXAMPLE"),
			SecretAccessKey: aws.String("secret"),
			SessionToken:    aws.String("session"),
			Expiration:      aws.Time(time.Now().Add(lifetime)),
		},
		AssumedRoleUser: &types.AssumedRoleUser{
			Arn: aws.String("arn:aws:sts::123456789012:assumed-role/" + role + "/gatekeeper-dev"),
		},
	}
}

func TestObtainHappyPath(t *testing.T) {
	client := &fakeSTS{output: grant("gatekeeper-dev", 15*time.Minute)}
	broker := credential.NewBrokerWithClient(client, roleARNs, staticToken)

	cred, err := broker.Obtain(context.Background(), "dev", 15*time.Minute)

	require.NoError(t, err)
	assert.Equal(t, "ASIAEXAMPLE", cred.AccessKeyID)
	assert.Equal(t, "dev", cred.Scope)
	require.NotNil(t, client.input)
	assert.Equal(t, roleARNs["dev"], aws.ToString(client.input.RoleArn))
	assert.Equal(t, "ci-trust-token", aws.ToString(client.input.WebIdentityToken))
	assert.Equal(t, int32(900), aws.ToInt32(client.input.DurationSeconds))
}

func TestObtainUnknownEnvironment(t *testing.T) {
	broker := credential.NewBrokerWithClient(&fakeSTS{}, roleARNs, staticToken)
	_, err := broker.Obtain(context.Background(), "staging", 15*time.Minute)
	assert.ErrorIs(t, err, gk_errors.ErrUnknownEnvironment)
}

func TestObtainRejectsCrossEnvironmentGrant(t *testing.T) {
	// Requested the dev role, provider handed back the prod role.
	client := &fakeSTS{output: grant("gatekeeper-prod", 15*time.Minute)}
	broker := credential.NewBrokerWithClient(client, roleARNs, staticToken)

	_, err := broker.Obtain(context.Background(), "dev", 15*time.Minute)

	assert.ErrorIs(t, err, gk_errors.ErrCredentialIntegrity)
}

func TestObtainRejectsOverlongLifetime(t *testing.T) {
	client := &fakeSTS{output: grant("gatekeeper-dev", 2*time.Hour)}
	broker := credential.NewBrokerWithClient(client, roleARNs, staticToken)

	_, err := broker.Obtain(context.Background(), "dev", 15*time.Minute)

	assert.ErrorIs(t, err, gk_errors.ErrCredentialIntegrity)
}

func TestObtainToleratesProviderRounding(t *testing.T) {
	// 30 seconds past the requested maximum is within the slack.
	client := &fakeSTS{output: grant("gatekeeper-dev", 15*time.Minute+30*time.Second)}
	broker := credential.NewBrokerWithClient(client, roleARNs, staticToken)

	_, err := broker.Obtain(context.Background(), "dev", 15*time.Minute)

	assert.NoError(t, err)
}

func TestObtainRejectsMissingCredentialMaterial(t *testing.T) {
	out := grant("gatekeeper-dev", 15*time.Minute)
	out.Credentials = nil
	broker := credential.NewBrokerWithClient(&fakeSTS{output: out}, roleARNs, staticToken)

	_, err := broker.Obtain(context.Background(), "dev", 15*time.Minute)

	assert.ErrorIs(t, err, gk_errors.ErrCredentialIntegrity)
}

func TestObtainRejectsMalformedAssumedRoleARN(t *testing.T) {
	out := grant("gatekeeper-dev", 15*time.Minute)
	out.AssumedRoleUser.Arn = aws.String("gatekeeper-dev")
	broker := credential.NewBrokerWithClient(&fakeSTS{output: out}, roleARNs, staticToken)

	_, err := broker.Obtain(context.Background(), "dev", 15*time.Minute)

	assert.ErrorIs(t, err, gk_errors.ErrCredentialIntegrity)
}

func TestObtainPropagatesExchangeFailure(t *testing.T) {
	client := &fakeSTS{err: errors.New("AccessDenied")}
	broker := credential.NewBrokerWithClient(client, roleARNs, staticToken)

	_, err := broker.Obtain(context.Background(), "dev", 15*time.Minute)

	require.Error(t, err)
	assert.NotErrorIs(t, err, gk_errors.ErrCredentialIntegrity)
}

func TestObtainFailsWhenTokenSourceFails(t *testing.T) {
	client := &fakeSTS{output: grant("gatekeeper-dev", 15*time.Minute)}
	broker := credential.NewBrokerWithClient(client, roleARNs,
		func() (string, error) { return "", errors.New("token file missing") })

	_, err := broker.Obtain(context.Background(), "dev", 15*time.Minute)

	require.Error(t, err)
	assert.Nil(t, client.input)
}

func TestCredentialNeverPrintsSecrets(t *testing.T) {
	cred := credential.Credential{
		AccessKeyID:     "ASIAEXAMPLE",
		SecretAccessKey: "super-secret",
		SessionToken:    "session-token",
		Scope:           "dev",
	}

	for _, rendered := range []string{
		cred.String(),
		strings.TrimSpace(cred.GoString()),
	} {
		assert.NotContains(t, rendered, "super-secret")
		assert.NotContains(t, rendered, "session-token")
	}

	raw, err := cred.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "super-secret")
	assert.NotContains(t, string(raw), "session-token")
}
