package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"

	"carparams/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestDisabledIsNoop(t *testing.T) {
	rec := &telemetry.Recorder{}
	n := NewNotifier(SMTPConfig{}, rec)
	require.False(t, n.Enabled())
	require.NoError(t, n.Send(context.Background(), "subject", "body"))
	require.Empty(t, rec.Reports(""))
}

func TestSendFailureIsReported(t *testing.T) {
	rec := &telemetry.Recorder{}
	n := NewNotifier(SMTPConfig{
		Server: "127.0.0.1",
		Port:   1,
		From:   "carparams@example.com",
		To:     []string{"ops@example.com"},
	}, rec)
	require.Error(t, n.Send(context.Background(), "subject", "body"))
	require.True(t, rec.Has("broken", report_notify_send))
}

func TestSendThroughSMTP(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	smtpServer, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			Started: true,
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "haravich/fake-smtp-server",
				ExposedPorts: []string{"1025/tcp", "1080/tcp"},
				WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
			},
		},
	)
	if err != nil {
		t.Skipf("could not start smtp container: %v", err)
	}
	defer func() {
		err := smtpServer.Terminate(ctx)
		if err != nil {
			t.Fatal(err)
		}
	}()

	host, err := smtpServer.Host(ctx)
	require.NoError(t, err)
	smtpPort, err := smtpServer.MappedPort(ctx, "1025/tcp")
	require.NoError(t, err)
	webPort, err := smtpServer.MappedPort(ctx, "1080/tcp")
	require.NoError(t, err)

	n := NewNotifier(SMTPConfig{
		Server:   host,
		Port:     smtpPort.Int(),
		From:     "carparams@email.com",
		Password: "default",
		To:       []string{"bob@email.com"},
	}, &telemetry.Recorder{})
	require.NoError(t, n.Send(ctx, "carparams run", "added 12 records"))

	res, err := resty.New().R().
		Get(fmt.Sprintf("http://%s:%s/messages/1.plain", host, webPort.Port()))
	require.NoError(t, err)
	require.Contains(t, res.String(), "added 12 records")
}
